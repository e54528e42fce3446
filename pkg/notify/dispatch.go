package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianhq/notifykit/pkg/l10n"
	"github.com/obsidianhq/notifykit/pkg/logger"
)

// DispatchResult summarizes one DispatchPending pass.
type DispatchResult struct {
	Sent       int
	Failed     int
	Suppressed int
}

const (
	digestTitle        = "Сводка уведомлений"
	digestTotalLine    = "Всего событий: %d"
	digestOverflowLine = "… и другие события"
	digestMaxItems     = 10
	digestItemMaxRunes = 120
)

// DispatchPending renders and sends every delivery that is due: pending rows
// plus scheduled rows whose quiet-hours deferral has elapsed. Preferences are
// re-checked at send time, so a channel the user disabled after routing is
// suppressed instead of sent.
func (h *Hub) DispatchPending(ctx context.Context) (DispatchResult, error) {
	now := h.now()
	var result DispatchResult

	deliveries, err := h.storage.ListPendingDeliveries(ctx, now)
	if err != nil {
		return result, fmt.Errorf("list pending deliveries: %w", err)
	}

	for i := range deliveries {
		delivery := deliveries[i]
		if err := h.dispatchOne(ctx, &delivery, now, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (h *Hub) dispatchOne(ctx context.Context, delivery *Delivery, now time.Time, result *DispatchResult) error {
	event, err := h.storage.GetEvent(ctx, delivery.EventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", delivery.EventID, err)
	}

	pref, err := h.resolvePreference(ctx, h.storage, event.RecipientID, event.Category, delivery.Channel)
	if err != nil {
		return err
	}
	if !pref.Enabled {
		delivery.Status = StatusSuppressed
		delivery.Metadata = mergeMetadata(delivery.Metadata, map[string]any{"detail": "channel disabled before dispatch"})
		result.Suppressed++
		return h.storage.UpdateDelivery(ctx, delivery)
	}

	locale := resolveLocale(event.Data, pref)
	data := renderData(event)

	var sendErr error
	switch delivery.Channel {
	case ChannelEmail:
		payload := h.renderer.Email(ctx, string(event.Type), data, locale)
		if payload.Recipient == "" {
			payload.Recipient = stringField(event.Data, "email")
		}
		delivery.Metadata = mergeMetadata(delivery.Metadata, map[string]any{
			"subject":   payload.Subject,
			"body":      payload.Body,
			"headers":   payload.Headers,
			"recipient": payload.Recipient,
			"locale":    string(locale),
		})
		if h.emailSender != nil {
			sendErr = h.emailSender.Send(ctx, payload)
		}

	case ChannelWebPush:
		payload := h.renderer.Push(ctx, string(event.Type), data, locale)
		if payload.URL == "" {
			payload.URL = stringField(event.Data, "url")
		}
		delivery.Metadata = mergeMetadata(delivery.Metadata, map[string]any{
			"title":  payload.Title,
			"body":   payload.Body,
			"url":    payload.URL,
			"locale": string(locale),
		})
		if h.pushSender != nil {
			sendErr = h.pushSender.SendPush(ctx, event.RecipientID, payload)
		}

	default:
		// No transport wired for the channel; record the attempt as sent so
		// the row does not spin forever.
	}

	if sendErr != nil {
		delivery.Status = StatusFailed
		delivery.Metadata = mergeMetadata(delivery.Metadata, map[string]any{"error": sendErr.Error()})
		result.Failed++
		h.logger.LogAttrs(ctx, slog.LevelError, "delivery failed",
			logger.EventID(event.ID),
			logger.Channel(string(delivery.Channel)),
			logger.Error(sendErr),
		)
	} else {
		sentAt := now
		delivery.Status = StatusSent
		delivery.SentAt = &sentAt
		result.Sent++
	}
	return h.storage.UpdateDelivery(ctx, delivery)
}

// FlushDigests closes every digest bucket whose window has ended: empty
// buckets are cancelled, non-empty ones produce one synthetic summary event
// and one delivery on the bucket's channel. Returns the number of digests
// sent.
func (h *Hub) FlushDigests(ctx context.Context) (int, error) {
	now := h.now()

	due, err := h.storage.ListDueDigests(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due digests: %w", err)
	}

	sent := 0
	for i := range due {
		digest := due[i]
		err := h.storage.InTx(ctx, func(s Storage) error {
			flushed, err := h.flushDigest(ctx, s, &digest, now)
			if err != nil {
				return err
			}
			if flushed {
				sent++
			}
			return nil
		})
		if err != nil {
			return sent, fmt.Errorf("flush digest %s: %w", digest.ID, err)
		}
	}
	return sent, nil
}

func (h *Hub) flushDigest(ctx context.Context, s Storage, digest *Digest, now time.Time) (bool, error) {
	events, err := s.ListDigestEvents(ctx, digest.ID)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		digest.Status = DigestCancelled
		return false, s.UpdateDigest(ctx, digest)
	}

	eventIDs := make([]string, len(events))
	for i := range events {
		eventIDs[i] = events[i].ID.String()
	}

	summary := &Event{
		ID:          uuid.New(),
		RecipientID: digest.UserID,
		Category:    digest.Category,
		Type:        digestEventType(digest.Category),
		Title:       digestTitle,
		Body:        digestBody(events),
		Data: map[string]any{
			"digest_id": digest.ID.String(),
			"events":    eventIDs,
		},
		Priority:  PriorityLow,
		IsDigest:  true,
		CreatedAt: now,
	}
	if err := s.CreateEvent(ctx, summary); err != nil {
		return false, err
	}

	delivery := Delivery{
		EventID:  summary.ID,
		Channel:  digest.Channel,
		DigestID: &digest.ID,
	}
	if digest.Channel == ChannelInApp {
		sentAt := now
		delivery.Status = StatusSent
		delivery.SentAt = &sentAt
	} else {
		// Transported channels go through the regular dispatch pass, which
		// runs in the same sweep tick, so digest sends get the same
		// rendering and failure handling as any other delivery.
		delivery.Status = StatusPending
	}
	if err := s.CreateDelivery(ctx, &delivery); err != nil {
		return false, err
	}

	sentAt := now
	digest.Status = DigestSent
	digest.SentAt = &sentAt
	digest.Title = digestTitle
	if err := s.UpdateDigest(ctx, digest); err != nil {
		return false, err
	}

	h.logger.LogAttrs(ctx, slog.LevelInfo, "digest flushed",
		logger.UserID(digest.UserID),
		logger.Channel(string(digest.Channel)),
		slog.Int("events", len(events)),
	)
	return true, nil
}

func digestEventType(category Category) EventType {
	if category == CategoryChat {
		return EventChatNewMessage
	}
	return EventAccountGeneric
}

// digestBody builds the summary text: a total line, up to ten bullet items
// and an overflow marker.
func digestBody(events []Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, digestTotalLine, len(events))
	b.WriteString("\n")

	shown := len(events)
	if shown > digestMaxItems {
		shown = digestMaxItems
	}
	for _, event := range events[:shown] {
		b.WriteString("\n• ")
		b.WriteString(event.Title)
		if event.Body != "" {
			b.WriteString(": ")
			b.WriteString(truncateRunes(event.Body, digestItemMaxRunes))
		}
	}
	if len(events) > digestMaxItems {
		b.WriteString("\n")
		b.WriteString(digestOverflowLine)
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

// resolveLocale picks the render locale: an explicit locale in the event data
// wins, then the preference language, then the platform default.
func resolveLocale(data map[string]any, pref Preference) l10n.Locale {
	if v := stringField(data, "locale"); v != "" {
		return l10n.Normalize(v)
	}
	if v := stringField(data, "language"); v != "" {
		return l10n.Normalize(v)
	}
	return l10n.Normalize(pref.Language)
}

// renderData exposes the event's title and body to templates without
// clobbering caller-provided values.
func renderData(event *Event) map[string]any {
	data := make(map[string]any, len(event.Data)+2)
	for k, v := range event.Data {
		data[k] = v
	}
	if _, ok := data["title"]; !ok {
		data["title"] = event.Title
	}
	if _, ok := data["body"]; !ok {
		data["body"] = event.Body
	}
	return data
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	v, ok := data[key].(string)
	if !ok {
		return ""
	}
	return v
}

func mergeMetadata(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
