package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianhq/notifykit/pkg/notify"
)

func TestMemoryStorageEvents(t *testing.T) {
	t.Parallel()

	storage := notify.NewMemoryStorage()
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	var created []notify.Event
	for i := 0; i < 5; i++ {
		event := notify.Event{
			RecipientID: "u1",
			Category:    notify.CategoryChat,
			Type:        notify.EventChatNewMessage,
			Title:       "msg",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, storage.CreateEvent(ctx, &event))
		require.NotEqual(t, uuid.Nil, event.ID)
		created = append(created, event)
	}

	t.Run("get", func(t *testing.T) {
		got, err := storage.GetEvent(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Equal(t, created[0].ID, got.ID)

		_, err = storage.GetEvent(ctx, uuid.New())
		require.ErrorIs(t, err, notify.ErrEventNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		events, err := storage.ListEvents(ctx, "u1", notify.ListOptions{})
		require.NoError(t, err)
		require.Len(t, events, 5)
		assert.Equal(t, created[4].ID, events[0].ID)
		assert.Equal(t, created[0].ID, events[4].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		events, err := storage.ListEvents(ctx, "u1", notify.ListOptions{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, created[3].ID, events[0].ID)

		events, err = storage.ListEvents(ctx, "u1", notify.ListOptions{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("mark read ignores foreign events", func(t *testing.T) {
		require.NoError(t, storage.MarkRead(ctx, "someone-else", created[0].ID))
		count, err := storage.CountUnread(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 5, count)

		require.NoError(t, storage.MarkRead(ctx, "u1", created[0].ID, created[1].ID))
		count, err = storage.CountUnread(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		events, err := storage.ListEvents(ctx, "u1", notify.ListOptions{OnlyUnread: true})
		require.NoError(t, err)
		assert.Len(t, events, 3)
	})
}

func TestMemoryStorageThrottleCandidate(t *testing.T) {
	t.Parallel()

	storage := notify.NewMemoryStorage()
	ctx := context.Background()

	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	event := notify.Event{
		RecipientID:   "u1",
		Category:      notify.CategoryChat,
		Type:          notify.EventChatNewMessage,
		DedupeKey:     "u1:chat.new_message:thread:7",
		ThrottleUntil: now.Add(5 * time.Minute),
		CreatedAt:     now,
	}
	require.NoError(t, storage.CreateEvent(ctx, &event))

	t.Run("inside window", func(t *testing.T) {
		got, err := storage.LatestThrottleCandidate(ctx, "u1", event.DedupeKey, now.Add(time.Minute))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, event.ID, got.ID)
	})

	t.Run("expired window", func(t *testing.T) {
		got, err := storage.LatestThrottleCandidate(ctx, "u1", event.DedupeKey, now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("different key", func(t *testing.T) {
		got, err := storage.LatestThrottleCandidate(ctx, "u1", "u1:chat.new_message:thread:8", now)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("empty key never matches", func(t *testing.T) {
		got, err := storage.LatestThrottleCandidate(ctx, "u1", "", now)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestMemoryStoragePreferenceUpsert(t *testing.T) {
	t.Parallel()

	storage := notify.NewMemoryStorage()
	ctx := context.Background()

	first, err := storage.UpsertPreference(ctx, notify.DefaultPreference("u1", notify.CategoryChat, notify.ChannelEmail))
	require.NoError(t, err)
	assert.True(t, first.Enabled)

	// A later upsert must not overwrite the stored row.
	modified := notify.DefaultPreference("u1", notify.CategoryChat, notify.ChannelEmail)
	modified.Enabled = false
	second, err := storage.UpsertPreference(ctx, modified)
	require.NoError(t, err)
	assert.True(t, second.Enabled, "upsert returns the existing row, not the candidate")

	// SavePreference does overwrite.
	modified.Frequency = notify.FrequencyDaily
	require.NoError(t, storage.SavePreference(ctx, modified))
	stored, err := storage.FindPreference(ctx, "u1", notify.CategoryChat, notify.ChannelEmail)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Enabled)
	assert.Equal(t, notify.FrequencyDaily, stored.Frequency)

	missing, err := storage.FindPreference(ctx, "u2", notify.CategoryChat, notify.ChannelEmail)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStorageDigests(t *testing.T) {
	t.Parallel()

	storage := notify.NewMemoryStorage()
	ctx := context.Background()

	start := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	template := notify.Digest{
		UserID:       "u1",
		Category:     notify.CategoryContract,
		Channel:      notify.ChannelEmail,
		PeriodStart:  start,
		PeriodEnd:    end,
		ScheduledFor: end,
	}

	first, err := storage.UpsertDigest(ctx, template)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, notify.DigestScheduled, first.Status)

	second, err := storage.UpsertDigest(ctx, template)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same window key must yield the same digest")

	event := notify.Event{RecipientID: "u1", Category: notify.CategoryContract, Type: notify.EventContractCreated}
	require.NoError(t, storage.CreateEvent(ctx, &event))

	attached, err := storage.AttachDigestEvent(ctx, first.ID, event.ID)
	require.NoError(t, err)
	assert.True(t, attached)

	attached, err = storage.AttachDigestEvent(ctx, first.ID, event.ID)
	require.NoError(t, err)
	assert.False(t, attached, "re-attaching the same event is a no-op")

	events, err := storage.ListDigestEvents(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = storage.AttachDigestEvent(ctx, uuid.New(), event.ID)
	require.ErrorIs(t, err, notify.ErrDigestNotFound)

	t.Run("due listing", func(t *testing.T) {
		due, err := storage.ListDueDigests(ctx, start.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Empty(t, due, "digest is not due before its window closes")

		due, err = storage.ListDueDigests(ctx, end.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, first.ID, due[0].ID)

		sentAt := end.Add(time.Minute)
		done := due[0]
		done.Status = notify.DigestSent
		done.SentAt = &sentAt
		require.NoError(t, storage.UpdateDigest(ctx, &done))

		due, err = storage.ListDueDigests(ctx, end.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}

func TestMemoryStorageDeliveries(t *testing.T) {
	t.Parallel()

	storage := notify.NewMemoryStorage()
	ctx := context.Background()

	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	event := notify.Event{RecipientID: "u1", Category: notify.CategoryChat, Type: notify.EventChatNewMessage}
	require.NoError(t, storage.CreateEvent(ctx, &event))

	pending := notify.Delivery{EventID: event.ID, Channel: notify.ChannelEmail, Status: notify.StatusPending}
	require.NoError(t, storage.CreateDelivery(ctx, &pending))

	future := now.Add(2 * time.Hour)
	scheduled := notify.Delivery{EventID: event.ID, Channel: notify.ChannelWebPush, Status: notify.StatusScheduled, ScheduledFor: &future}
	require.NoError(t, storage.CreateDelivery(ctx, &scheduled))

	suppressed := notify.Delivery{EventID: event.ID, Channel: notify.ChannelTelegram, Status: notify.StatusSuppressed}
	require.NoError(t, storage.CreateDelivery(ctx, &suppressed))

	due, err := storage.ListPendingDeliveries(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, pending.ID, due[0].ID)

	// Once the scheduled time passes the deferred row becomes dispatchable.
	due, err = storage.ListPendingDeliveries(ctx, future.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, due, 2)

	pending.Status = notify.StatusSent
	sentAt := now
	pending.SentAt = &sentAt
	require.NoError(t, storage.UpdateDelivery(ctx, &pending))

	due, err = storage.ListPendingDeliveries(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	// All three rows stay visible through the per-event listing.
	all, err := storage.ListEventDeliveries(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)

	other, err := storage.ListEventDeliveries(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}
