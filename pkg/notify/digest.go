package notify

import (
	"time"

	"github.com/google/uuid"
)

// DigestStatus tracks a digest bucket through its lifecycle.
type DigestStatus string

const (
	DigestPending   DigestStatus = "pending"
	DigestScheduled DigestStatus = "scheduled"
	DigestSent      DigestStatus = "sent"
	DigestCancelled DigestStatus = "cancelled"
)

// Digest accumulates events destined for one (user, channel, category,
// time-window) tuple, bounding notification volume during bursts. At most
// one digest exists per tuple; events attach idempotently.
type Digest struct {
	ID           uuid.UUID      `json:"id"`
	UserID       string         `json:"user_id"`
	Category     Category       `json:"category"`
	Channel      Channel        `json:"channel"`
	PeriodStart  time.Time      `json:"period_start"`
	PeriodEnd    time.Time      `json:"period_end"`
	Title        string         `json:"title"`
	Summary      map[string]int `json:"summary,omitempty"`
	Status       DigestStatus   `json:"status"`
	ScheduledFor time.Time      `json:"scheduled_for"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
