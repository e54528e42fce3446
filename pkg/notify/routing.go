package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/obsidianhq/notifykit/pkg/logger"
)

// routeDelivery decides what happens to one event on one channel and persists
// the resulting delivery row. Decision order:
//
//  1. channel disabled by preference -> suppressed
//  2. in_app -> sent immediately, never batched or deferred
//  3. digest frequency (or explicit window) -> digested, attached to bucket
//  4. inside quiet hours -> scheduled for the quiet window's end
//  5. otherwise -> pending, picked up by DispatchPending
func (h *Hub) routeDelivery(ctx context.Context, s Storage, event *Event, channel Channel, now time.Time, digestWindow time.Duration) (Delivery, error) {
	pref, err := h.resolvePreference(ctx, s, event.RecipientID, event.Category, channel)
	if err != nil {
		return Delivery{}, err
	}

	delivery := Delivery{
		EventID: event.ID,
		Channel: channel,
	}

	switch {
	case !pref.Enabled:
		delivery.Status = StatusSuppressed
		delivery.Metadata = map[string]any{"detail": "channel disabled by user"}

	case channel == ChannelInApp:
		sentAt := now
		delivery.Status = StatusSent
		delivery.SentAt = &sentAt

	case digestWindow > 0 || pref.Frequency != FrequencyImmediate:
		window := digestWindow
		if window <= 0 {
			window = pref.Frequency.Window()
		}
		digest, err := h.attachToDigest(ctx, s, event, channel, pref, now, window)
		if err != nil {
			return Delivery{}, err
		}
		delivery.Status = StatusDigested
		delivery.DigestID = &digest.ID

	default:
		if resume, quiet := quietHoursResume(now, pref); quiet {
			resumeUTC := resume.UTC()
			delivery.Status = StatusScheduled
			delivery.ScheduledFor = &resumeUTC
			delivery.Metadata = map[string]any{"detail": "deferred by quiet hours"}
		} else {
			delivery.Status = StatusPending
		}
	}

	if err := s.CreateDelivery(ctx, &delivery); err != nil {
		return Delivery{}, err
	}

	h.logger.LogAttrs(ctx, slog.LevelDebug, "delivery routed",
		logger.EventID(event.ID),
		logger.Channel(string(channel)),
		slog.String("status", string(delivery.Status)),
	)
	return delivery, nil
}

// resolvePreference loads the (user, category, channel) row, lazily creating
// the default row on first contact. The upsert guarantees concurrent emits
// converge on one stored row.
func (h *Hub) resolvePreference(ctx context.Context, s Storage, userID string, category Category, channel Channel) (Preference, error) {
	existing, err := s.FindPreference(ctx, userID, category, channel)
	if err != nil {
		return Preference{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	return s.UpsertPreference(ctx, DefaultPreference(userID, category, channel))
}

// attachToDigest finds or creates the digest bucket covering now and links
// the event to it.
func (h *Hub) attachToDigest(ctx context.Context, s Storage, event *Event, channel Channel, pref Preference, now time.Time, window time.Duration) (Digest, error) {
	start, end := digestPeriod(now, window, pref)

	digest, err := s.UpsertDigest(ctx, Digest{
		UserID:       event.RecipientID,
		Category:     event.Category,
		Channel:      channel,
		PeriodStart:  start,
		PeriodEnd:    end,
		ScheduledFor: end,
		Status:       DigestScheduled,
	})
	if err != nil {
		return Digest{}, err
	}
	if _, err := s.AttachDigestEvent(ctx, digest.ID, event.ID); err != nil {
		return Digest{}, err
	}
	return digest, nil
}

// digestPeriod computes the bucket window covering now, in UTC. Sub-daily
// windows are fixed slots counted from local midnight, so all events within
// the same slot collapse into one bucket. Daily windows are anchored at the
// user's digest hour.
func digestPeriod(now time.Time, window time.Duration, pref Preference) (start, end time.Time) {
	loc := pref.Location()
	local := now.In(loc)

	if window >= 24*time.Hour {
		hour := pref.DailyDigestHour
		if hour <= 0 || hour > 23 {
			hour = DefaultDigestHour
		}
		anchor := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
		if local.Before(anchor) {
			anchor = anchor.AddDate(0, 0, -1)
		}
		return anchor.UTC(), anchor.AddDate(0, 0, 1).UTC()
	}

	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	elapsed := local.Sub(midnight)
	slotStart := midnight.Add(elapsed - elapsed%window)
	return slotStart.UTC(), slotStart.Add(window).UTC()
}

// quietHoursResume reports whether now falls inside the preference's quiet
// window and, if so, when delivery may resume. A window whose start equals
// its end is treated as disabled.
func quietHoursResume(now time.Time, pref Preference) (time.Time, bool) {
	start := DefaultQuietStart
	end := DefaultQuietEnd
	if pref.QuietHoursStart != nil {
		start = *pref.QuietHoursStart
	}
	if pref.QuietHoursEnd != nil {
		end = *pref.QuietHoursEnd
	}
	if start == end {
		return time.Time{}, false
	}

	local := now.In(pref.Location())
	cur := local.Hour()*60 + local.Minute()

	var quiet bool
	if start.Minutes() < end.Minutes() {
		quiet = cur >= start.Minutes() && cur < end.Minutes()
	} else {
		// Overnight window, e.g. 22:00-08:00.
		quiet = cur >= start.Minutes() || cur < end.Minutes()
	}
	if !quiet {
		return time.Time{}, false
	}

	resume := time.Date(local.Year(), local.Month(), local.Day(), end.Hour, end.Minute, 0, 0, local.Location())
	if start.Minutes() > end.Minutes() {
		// Overnight window: the morning tail still defers to the following
		// day, so a night's notifications land in one batch.
		resume = resume.AddDate(0, 0, 1)
	}
	return resume, true
}
