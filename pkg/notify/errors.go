package notify

import "errors"

// Common errors
var (
	// ErrRecipientRequired is returned when Emit is called without a recipient.
	ErrRecipientRequired = errors.New("recipient is required")

	// ErrEventTypeRequired is returned when Emit is called without an event type.
	ErrEventTypeRequired = errors.New("event type is required")

	// ErrCategoryRequired is returned when Emit is called without a category.
	ErrCategoryRequired = errors.New("category is required")

	// ErrEventNotFound is returned when an event lookup misses.
	ErrEventNotFound = errors.New("notification event not found")

	// ErrDigestNotFound is returned when a digest lookup misses.
	ErrDigestNotFound = errors.New("notification digest not found")

	// ErrStorageNil is returned when a Hub is constructed without storage.
	ErrStorageNil = errors.New("storage cannot be nil")
)
