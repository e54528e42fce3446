package sla

import (
	"context"
	"errors"
	"time"
)

// ErrNotCompletable is returned by ContractSource.Complete when the contract
// cannot be auto-completed right now (an open dispute, a refund in flight).
// The sweeper skips such contracts without recording an action, so they are
// retried on later passes.
var ErrNotCompletable = errors.New("sla: contract not completable")

// UnansweredMessage is a chat message whose recipient has not replied or
// read it since it was sent.
type UnansweredMessage struct {
	MessageID   string
	ThreadID    string
	RecipientID string
	SenderName  string
	SentAt      time.Time
}

// ThreadSource lists chat messages breaching the response-time target.
type ThreadSource interface {
	// ListUnanswered returns messages sent before the cutoff that are still
	// unanswered.
	ListUnanswered(ctx context.Context, cutoff time.Time) ([]UnansweredMessage, error)
}

// StaleDispute is a dispute case open past the escalation threshold.
// ClientID is the client on the disputed contract, the party the escalation
// notice goes to.
type StaleDispute struct {
	CaseID     string
	ContractID string
	ClientID   string
	OpenedAt   time.Time
}

// DisputeSource lists overdue disputes and raises their priority.
type DisputeSource interface {
	// ListStale returns disputes opened before the cutoff that are not yet
	// escalated.
	ListStale(ctx context.Context, cutoff time.Time) ([]StaleDispute, error)

	// EscalatePriority marks the case high priority. Must be idempotent.
	EscalatePriority(ctx context.Context, caseID string) error
}

// ReleasableContract is a delivered contract whose client has not accepted
// or disputed the work within the review window.
type ReleasableContract struct {
	ContractID   string
	ClientID     string
	FreelancerID string
	Amount       string
	Currency     string
	DeliveredAt  time.Time
}

// ContractSource lists contracts due for automatic completion and performs
// the completion itself.
type ContractSource interface {
	// ListReleasable returns contracts delivered before the cutoff that are
	// still awaiting acceptance.
	ListReleasable(ctx context.Context, cutoff time.Time) ([]ReleasableContract, error)

	// Complete finishes the contract and releases the escrowed funds.
	// Returns ErrNotCompletable when the contract state forbids it.
	Complete(ctx context.Context, contractID string) error
}
