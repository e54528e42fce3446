package notify

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a way of conveying an event to its recipient.
type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelEmail    Channel = "email"
	ChannelWebPush  Channel = "web_push"
	ChannelTelegram Channel = "telegram"
)

// DeliveryStatus encodes the routing decision made for one channel.
// Suppressed, digested and throttled are terminal; pending and scheduled are
// later resolved to sent or failed by the dispatch step.
type DeliveryStatus string

const (
	StatusPending    DeliveryStatus = "pending"
	StatusScheduled  DeliveryStatus = "scheduled"
	StatusSent       DeliveryStatus = "sent"
	StatusFailed     DeliveryStatus = "failed"
	StatusSuppressed DeliveryStatus = "suppressed"
	StatusDigested   DeliveryStatus = "digested"
	StatusThrottled  DeliveryStatus = "throttled"
)

// Delivery is one channel-specific attempt tied to exactly one event.
type Delivery struct {
	ID           uuid.UUID      `json:"id"`
	EventID      uuid.UUID      `json:"event_id"`
	Channel      Channel        `json:"channel"`
	Status       DeliveryStatus `json:"status"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	DigestID     *uuid.UUID     `json:"digest_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
