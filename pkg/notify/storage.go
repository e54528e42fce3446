package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListOptions filters and paginates event listings.
type ListOptions struct {
	Limit      int  // Maximum number of events to return (0 = no limit)
	Offset     int  // Number of events to skip for pagination
	OnlyUnread bool // When true, only return unread events
}

// Storage handles persistence for the four notification entities. The
// Upsert* operations must be atomic get-or-create primitives: concurrent
// emission for the same user may hit the same preference tuple or digest
// window simultaneously, and both callers must observe the same row.
type Storage interface {
	// InTx runs fn against a transactional view of the storage. All writes
	// made by one Emit call go through a single InTx so a crash cannot
	// leave an event without its deliveries.
	InTx(ctx context.Context, fn func(Storage) error) error

	// CreateEvent stores a new event.
	CreateEvent(ctx context.Context, event *Event) error

	// GetEvent retrieves an event by ID.
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)

	// ListEvents returns a user's events, newest first.
	ListEvents(ctx context.Context, userID string, opts ListOptions) ([]Event, error)

	// MarkRead marks the given events read for the user.
	MarkRead(ctx context.Context, userID string, ids ...uuid.UUID) error

	// CountUnread returns the user's unread event count.
	CountUnread(ctx context.Context, userID string) (int, error)

	// LatestThrottleCandidate returns the most recent event for the
	// recipient and dedupe key whose throttle window still covers now,
	// or nil when there is none.
	LatestThrottleCandidate(ctx context.Context, recipientID, dedupeKey string, now time.Time) (*Event, error)

	// CreateDelivery stores a new delivery row.
	CreateDelivery(ctx context.Context, delivery *Delivery) error

	// UpdateDelivery persists status, timestamps and metadata changes.
	UpdateDelivery(ctx context.Context, delivery *Delivery) error

	// ListPendingDeliveries returns deliveries awaiting dispatch: every
	// pending row plus scheduled rows whose scheduled_for has passed.
	ListPendingDeliveries(ctx context.Context, now time.Time) ([]Delivery, error)

	// ListEventDeliveries returns the deliveries produced for one event,
	// oldest first.
	ListEventDeliveries(ctx context.Context, eventID uuid.UUID) ([]Delivery, error)

	// UpsertPreference inserts the row if absent and returns the stored
	// row either way. Concurrent callers for the same tuple must both
	// receive the same row.
	UpsertPreference(ctx context.Context, pref Preference) (Preference, error)

	// FindPreference returns the row for the tuple, or nil when absent.
	FindPreference(ctx context.Context, userID string, category Category, channel Channel) (*Preference, error)

	// SavePreference overwrites an existing row (user settings updates).
	SavePreference(ctx context.Context, pref Preference) error

	// UpsertDigest inserts the digest bucket if its window key is absent
	// and returns the stored row either way, with status forced to
	// scheduled. The window key is (user, channel, category, period
	// start, period end).
	UpsertDigest(ctx context.Context, digest Digest) (Digest, error)

	// AttachDigestEvent idempotently links an event to a digest and bumps
	// the digest's event counter when the link is new. Returns whether
	// the link was newly created.
	AttachDigestEvent(ctx context.Context, digestID, eventID uuid.UUID) (bool, error)

	// UpdateDigest persists digest status and timestamps.
	UpdateDigest(ctx context.Context, digest *Digest) error

	// ListDueDigests returns pending or scheduled digests whose
	// scheduled_for has passed.
	ListDueDigests(ctx context.Context, now time.Time) ([]Digest, error)

	// ListDigestEvents returns the events attached to a digest in
	// attachment order.
	ListDigestEvents(ctx context.Context, digestID uuid.UUID) ([]Event, error)
}
