package notify

import (
	"time"

	"github.com/google/uuid"
)

// Category groups event types into the buckets preferences are keyed by.
type Category string

const (
	CategoryChat     Category = "chat"
	CategoryContract Category = "contract"
	CategoryPayments Category = "payments"
	CategoryAccount  Category = "account"
)

// EventType identifies one kind of notification-worthy occurrence.
type EventType string

const (
	EventChatNewMessage EventType = "chat.new_message"
	EventChatMention    EventType = "chat.mention"

	EventContractCreated              EventType = "contract.created"
	EventContractSigned               EventType = "contract.signed"
	EventContractDelivered            EventType = "contract.delivered"
	EventContractDisputeOpened        EventType = "contract.dispute_opened"
	EventContractDisputeClosed        EventType = "contract.dispute_closed"
	EventContractApplicationSubmitted EventType = "contract.application_submitted"
	EventContractApplicationDecision  EventType = "contract.application_decision"
	EventContractTerminationRequested EventType = "contract.termination_requested"
	EventContractTerminationApproved  EventType = "contract.termination_approved"
	EventContractCompleted            EventType = "contract.completed"

	EventPaymentsHold    EventType = "payments.hold"
	EventPaymentsRelease EventType = "payments.release"
	EventPaymentsPayout  EventType = "payments.payout"

	EventAccountLogin         EventType = "account.login"
	EventAccount2FA           EventType = "account.2fa"
	EventAccountPasswordReset EventType = "account.password_reset"
	EventAccountGeneric       EventType = "account.generic"
)

// Priority of an event. Affects presentation only; routing ignores it.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Event is one semantic occurrence worth telling a user about. Created once
// per accepted Emit call (or per digest flush); mutated only to mark read.
type Event struct {
	ID            uuid.UUID      `json:"id"`
	RecipientID   string         `json:"recipient_id"`
	ActorID       string         `json:"actor_id,omitempty"`
	ProfileID     string         `json:"profile_id,omitempty"`
	Category      Category       `json:"category"`
	Type          EventType      `json:"event_type"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	Data          map[string]any `json:"data,omitempty"`
	Priority      Priority       `json:"priority"`
	DedupeKey     string         `json:"dedupe_key,omitempty"`
	ThrottleUntil time.Time      `json:"throttle_until,omitzero"`
	IsDigest      bool           `json:"is_digest"`
	IsRead        bool           `json:"is_read"`
	ReadAt        *time.Time     `json:"read_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// MarkAsRead marks the event read with the current timestamp. Idempotent.
func (e *Event) MarkAsRead() {
	if e.IsRead {
		return
	}
	e.IsRead = true
	now := time.Now()
	e.ReadAt = &now
}
