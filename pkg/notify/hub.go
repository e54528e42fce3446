package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianhq/notifykit/pkg/copydeck"
	"github.com/obsidianhq/notifykit/pkg/feature"
	"github.com/obsidianhq/notifykit/pkg/logger"
	"github.com/obsidianhq/notifykit/pkg/render"
)

// DefaultThrottleWindow suppresses semantically duplicate events emitted
// within this span unless the caller overrides it.
const DefaultThrottleWindow = 5 * time.Minute

// DefaultChannels are used when an Emit call does not name channels.
var DefaultChannels = []Channel{ChannelInApp, ChannelEmail}

// EmailSender hands a rendered email to the transport layer. A transport
// error marks the delivery failed.
type EmailSender interface {
	Send(ctx context.Context, payload render.EmailPayload) error
}

// PushSender hands a rendered web-push payload to the transport layer.
type PushSender interface {
	SendPush(ctx context.Context, userID string, payload render.PushPayload) error
}

// Hub is the notification engine's sole write entry point.
type Hub struct {
	storage     Storage
	flags       feature.Provider
	throttle    ThrottleIndex
	renderer    *render.Renderer
	emailSender EmailSender
	pushSender  PushSender
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Hub) { h.logger = log }
}

// WithFlags injects the capability flags the hub consults. Without a
// provider every channel is considered available; with one, web_push is
// dropped unless feature.FlagWebPush evaluates to enabled.
func WithFlags(flags feature.Provider) Option {
	return func(h *Hub) { h.flags = flags }
}

// WithThrottleIndex adds a fast-path duplicate detector (typically Redis).
func WithThrottleIndex(index ThrottleIndex) Option {
	return func(h *Hub) { h.throttle = index }
}

// WithRenderer overrides the payload renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(h *Hub) { h.renderer = r }
}

// WithEmailSender attaches an outbound email transport to the dispatch step.
func WithEmailSender(sender EmailSender) Option {
	return func(h *Hub) { h.emailSender = sender }
}

// WithPushSender attaches an outbound web-push transport to the dispatch step.
func WithPushSender(sender PushSender) Option {
	return func(h *Hub) { h.pushSender = sender }
}

// WithClock overrides the time source. Tests use it to pin routing decisions
// to a known instant.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub creates a notification hub over the given storage.
func NewHub(storage Storage, opts ...Option) (*Hub, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	h := &Hub{
		storage: storage,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.renderer == nil {
		h.renderer = render.New(copydeck.MustNew())
	}
	return h, nil
}

// EmitParams describes one notification-worthy occurrence.
type EmitParams struct {
	RecipientID string
	ActorID     string
	ProfileID   string
	Title       string
	Body        string
	Category    Category
	Type        EventType
	Data        map[string]any
	Channels    []Channel
	Priority    Priority

	// DedupeKey overrides the derived key. ThrottleFor overrides the
	// default suppression window. DigestWindow overrides the window
	// derived from the recipient's frequency preference.
	DedupeKey    string
	ThrottleFor  time.Duration
	DigestWindow time.Duration
}

// Emit records one event and routes one delivery per requested channel,
// all inside a single storage transaction. A near-duplicate emission within
// the throttle window reuses the existing event and produces only a single
// throttled in-app delivery.
func (h *Hub) Emit(ctx context.Context, p EmitParams) (*Event, []Delivery, error) {
	if p.RecipientID == "" {
		return nil, nil, ErrRecipientRequired
	}
	if p.Type == "" {
		return nil, nil, ErrEventTypeRequired
	}
	if p.Category == "" {
		return nil, nil, ErrCategoryRequired
	}

	now := h.now()
	channels := h.resolveChannels(ctx, p.Channels)
	throttleFor := p.ThrottleFor
	if throttleFor <= 0 {
		throttleFor = DefaultThrottleWindow
	}
	dedupeKey := p.DedupeKey
	if dedupeKey == "" {
		dedupeKey = buildDedupeKey(p.RecipientID, p.Type, p.Data)
	}
	priority := p.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	var (
		event      *Event
		deliveries []Delivery
	)
	err := h.storage.InTx(ctx, func(s Storage) error {
		existing, err := h.findThrottled(ctx, s, p.RecipientID, dedupeKey, now, throttleFor)
		if err != nil {
			return err
		}
		if existing != nil {
			throttled := Delivery{
				EventID:  existing.ID,
				Channel:  ChannelInApp,
				Status:   StatusThrottled,
				Metadata: map[string]any{"detail": "duplicate suppressed"},
			}
			if err := s.CreateDelivery(ctx, &throttled); err != nil {
				return err
			}
			event = existing
			deliveries = []Delivery{throttled}
			return nil
		}

		event = &Event{
			ID:            uuid.New(),
			RecipientID:   p.RecipientID,
			ActorID:       p.ActorID,
			ProfileID:     p.ProfileID,
			Category:      p.Category,
			Type:          p.Type,
			Title:         p.Title,
			Body:          p.Body,
			Data:          p.Data,
			Priority:      priority,
			DedupeKey:     dedupeKey,
			ThrottleUntil: now.Add(throttleFor),
			CreatedAt:     now,
		}
		if err := s.CreateEvent(ctx, event); err != nil {
			return err
		}

		for _, channel := range channels {
			delivery, err := h.routeDelivery(ctx, s, event, channel, now, p.DigestWindow)
			if err != nil {
				return err
			}
			deliveries = append(deliveries, delivery)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("emit %s: %w", p.Type, err)
	}

	h.logger.LogAttrs(ctx, slog.LevelDebug, "notification emitted",
		logger.EventID(event.ID),
		logger.UserID(p.RecipientID),
		slog.String("event_type", string(p.Type)),
		slog.Int("deliveries", len(deliveries)),
	)
	return event, deliveries, nil
}

// resolveChannels applies the default channel set and the global web-push
// capability flag.
func (h *Hub) resolveChannels(ctx context.Context, requested []Channel) []Channel {
	source := requested
	if len(source) == 0 {
		source = DefaultChannels
	}

	resolved := make([]Channel, 0, len(source))
	for _, channel := range source {
		if channel == ChannelWebPush && !h.webPushEnabled(ctx) {
			continue
		}
		resolved = append(resolved, channel)
	}
	return resolved
}

func (h *Hub) webPushEnabled(ctx context.Context) bool {
	if h.flags == nil {
		return true
	}
	enabled, err := h.flags.IsEnabled(ctx, feature.FlagWebPush)
	if err != nil {
		return false
	}
	return enabled
}

// buildDedupeKey derives the suppression key from the most specific subject
// identifier present in the data bag, in contract > case > thread order.
func buildDedupeKey(recipientID string, eventType EventType, data map[string]any) string {
	suffix := ""
	if data != nil {
		if id, ok := data["contract_id"]; ok {
			suffix = fmt.Sprintf("contract:%v", id)
		} else if id, ok := data["case_id"]; ok {
			suffix = fmt.Sprintf("case:%v", id)
		} else if id, ok := data["thread_id"]; ok {
			suffix = fmt.Sprintf("thread:%v", id)
		}
	}
	return fmt.Sprintf("%s:%s:%s", recipientID, eventType, suffix)
}

// findThrottled decides whether this emission is a duplicate. The throttle
// index, when configured, short-circuits the storage lookup for first
// occurrences; storage remains the authority for what event a duplicate
// references.
func (h *Hub) findThrottled(ctx context.Context, s Storage, recipientID, dedupeKey string, now time.Time, window time.Duration) (*Event, error) {
	if h.throttle != nil {
		first, err := h.throttle.Reserve(ctx, dedupeKey, window)
		if err != nil {
			h.logger.LogAttrs(ctx, slog.LevelWarn, "throttle index unavailable, falling back to storage",
				logger.Error(err),
			)
		} else if first {
			return nil, nil
		}
	}
	return s.LatestThrottleCandidate(ctx, recipientID, dedupeKey, now)
}

// Get retrieves a single event.
func (h *Hub) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	return h.storage.GetEvent(ctx, id)
}

// List returns a user's events, newest first.
func (h *Hub) List(ctx context.Context, userID string, opts ListOptions) ([]Event, error) {
	return h.storage.ListEvents(ctx, userID, opts)
}

// MarkRead marks the given events read.
func (h *Hub) MarkRead(ctx context.Context, userID string, ids ...uuid.UUID) error {
	return h.storage.MarkRead(ctx, userID, ids...)
}

// MarkAllRead marks every unread event read for a user.
func (h *Hub) MarkAllRead(ctx context.Context, userID string) error {
	events, err := h.storage.ListEvents(ctx, userID, ListOptions{OnlyUnread: true})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}
	return h.storage.MarkRead(ctx, userID, ids...)
}

// CountUnread returns the user's unread event count.
func (h *Hub) CountUnread(ctx context.Context, userID string) (int, error) {
	return h.storage.CountUnread(ctx, userID)
}

// Storage exposes the underlying storage to collaborators (the SLA sweep
// shares the hub's storage for its own queries).
func (h *Hub) Storage() Storage {
	return h.storage
}
