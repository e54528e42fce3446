package notify_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianhq/notifykit/pkg/notify"
	"github.com/obsidianhq/notifykit/pkg/render"
)

type fakeEmailSender struct {
	mu       sync.Mutex
	payloads []render.EmailPayload
	err      error
}

func (f *fakeEmailSender) Send(ctx context.Context, payload render.EmailPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeEmailSender) sent() []render.EmailPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]render.EmailPayload(nil), f.payloads...)
}

type fakePushSender struct {
	mu       sync.Mutex
	payloads []render.PushPayload
}

func (f *fakePushSender) SendPush(ctx context.Context, userID string, payload render.PushPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestDispatchPendingSendsEmail(t *testing.T) {
	t.Parallel()

	sender := &fakeEmailSender{}
	clock := newFakeClock(noonUTC)
	hub, storage := newTestHub(t, clock, notify.WithEmailSender(sender))
	ctx := context.Background()

	event, _, err := hub.Emit(ctx, notify.EmitParams{
		RecipientID: "u1",
		Category:    notify.CategoryAccount,
		Type:        notify.EventAccountGeneric,
		Title:       "Добро пожаловать",
		Body:        "Аккаунт создан",
		Data:        map[string]any{"email": "user@example.com"},
	})
	require.NoError(t, err)

	result, err := hub.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Zero(t, result.Failed)

	payloads := sender.sent()
	require.Len(t, payloads, 1)
	assert.Equal(t, "user@example.com", payloads[0].Recipient)
	assert.NotEmpty(t, payloads[0].Subject)
	assert.Contains(t, payloads[0].Body, "Добро пожаловать")
	assert.NotEmpty(t, payloads[0].Headers["List-Unsubscribe"])
	assert.NotEmpty(t, payloads[0].Headers["List-ID"])
	assert.Equal(t, "bulk", payloads[0].Headers["Precedence"])

	// The rendered message is snapshotted into the delivery row.
	deliveries, err := storage.ListEventDeliveries(ctx, event.ID)
	require.NoError(t, err)
	var email *notify.Delivery
	for i := range deliveries {
		if deliveries[i].Channel == notify.ChannelEmail {
			email = &deliveries[i]
		}
	}
	require.NotNil(t, email)
	assert.Equal(t, payloads[0].Subject, email.Metadata["subject"])
	assert.Equal(t, payloads[0].Body, email.Metadata["body"])
	assert.Equal(t, "user@example.com", email.Metadata["recipient"])

	// The pending row is resolved; a second pass sends nothing.
	result, err = hub.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Sent)

	pending, err := storage.ListPendingDeliveries(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDispatchPendingTransportError(t *testing.T) {
	t.Parallel()

	sender := &fakeEmailSender{err: errors.New("smtp unreachable")}
	clock := newFakeClock(noonUTC)
	hub, storage := newTestHub(t, clock, notify.WithEmailSender(sender))
	ctx := context.Background()

	event, _, err := hub.Emit(ctx, notify.EmitParams{
		RecipientID: "u1",
		Category:    notify.CategoryChat,
		Type:        notify.EventChatNewMessage,
	})
	require.NoError(t, err)

	result, err := hub.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Sent)

	// The failed row is terminal, not retried on the next pass.
	pending, err := storage.ListPendingDeliveries(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, pending)

	events, err := hub.List(ctx, "u1", notify.ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
}

func TestDispatchPendingStalePreference(t *testing.T) {
	t.Parallel()

	sender := &fakeEmailSender{}
	clock := newFakeClock(noonUTC)
	hub, storage := newTestHub(t, clock, notify.WithEmailSender(sender))
	ctx := context.Background()

	_, _, err := hub.Emit(ctx, notify.EmitParams{
		RecipientID: "u1",
		Category:    notify.CategoryChat,
		Type:        notify.EventChatNewMessage,
	})
	require.NoError(t, err)

	// The user disables email between routing and dispatch.
	pref, err := storage.FindPreference(ctx, "u1", notify.CategoryChat, notify.ChannelEmail)
	require.NoError(t, err)
	require.NotNil(t, pref)
	pref.Enabled = false
	require.NoError(t, storage.SavePreference(ctx, *pref))

	result, err := hub.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Suppressed)
	assert.Zero(t, result.Sent)
	assert.Empty(t, sender.sent())
}

func TestDispatchPendingRespectsSchedule(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Asia/Tashkent")
	require.NoError(t, err)

	sender := &fakeEmailSender{}
	clock := newFakeClock(time.Date(2025, 3, 10, 23, 30, 0, 0, loc))
	hub, _ := newTestHub(t, clock, notify.WithEmailSender(sender))
	ctx := context.Background()

	_, _, err = hub.Emit(ctx, notify.EmitParams{
		RecipientID: "u1",
		Category:    notify.CategoryChat,
		Type:        notify.EventChatNewMessage,
		Title:       "Ночное сообщение",
	})
	require.NoError(t, err)

	// Still inside quiet hours: nothing to send.
	result, err := hub.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Sent)
	assert.Empty(t, sender.sent())

	// Past 08:00 the deferred email goes out.
	clock.Advance(9 * time.Hour)
	result, err = hub.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	require.Len(t, sender.sent(), 1)
}

func TestDispatchPendingWebPush(t *testing.T) {
	t.Parallel()

	push := &fakePushSender{}
	clock := newFakeClock(noonUTC)
	hub, storage := newTestHub(t, clock, notify.WithPushSender(push))
	ctx := context.Background()

	event, _, err := hub.Emit(ctx, notify.EmitParams{
		RecipientID: "u1",
		Category:    notify.CategoryChat,
		Type:        notify.EventChatNewMessage,
		Title:       "Новое сообщение",
		Body:        "Привет",
		Channels:    []notify.Channel{notify.ChannelWebPush},
		Data:        map[string]any{"url": "https://obsidian.uz/chat/42", "sender_name": "Алишер", "preview": "Привет"},
	})
	require.NoError(t, err)

	result, err := hub.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	require.Len(t, push.payloads, 1)
	assert.NotEmpty(t, push.payloads[0].Title)
	assert.Equal(t, "https://obsidian.uz/chat/42", push.payloads[0].URL)

	deliveries, err := storage.ListEventDeliveries(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, push.payloads[0].Title, deliveries[0].Metadata["title"])
	assert.Equal(t, push.payloads[0].Body, deliveries[0].Metadata["body"])
	assert.Equal(t, "https://obsidian.uz/chat/42", deliveries[0].Metadata["url"])
}

func TestFlushDigests(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Asia/Tashkent")
	require.NoError(t, err)

	sender := &fakeEmailSender{}
	clock := newFakeClock(time.Date(2025, 3, 10, 12, 5, 0, 0, loc))
	hub, storage := newTestHub(t, clock, notify.WithEmailSender(sender))
	ctx := context.Background()

	pref := notify.DefaultPreference("u1", notify.CategoryContract, notify.ChannelEmail)
	pref.Frequency = notify.FrequencyHourly
	require.NoError(t, storage.SavePreference(ctx, pref))

	for contractID := 1; contractID <= 2; contractID++ {
		_, _, err := hub.Emit(ctx, notify.EmitParams{
			RecipientID: "u1",
			Category:    notify.CategoryContract,
			Type:        notify.EventContractCreated,
			Title:       fmt.Sprintf("Контракт №%d", contractID),
			Body:        "Контракт ожидает подписи",
			Channels:    []notify.Channel{notify.ChannelEmail},
			Data:        map[string]any{"contract_id": contractID, "email": "user@example.com"},
		})
		require.NoError(t, err)
	}

	// Window still open: nothing flushes.
	sent, err := hub.FlushDigests(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	clock.Advance(time.Hour)
	sent, err = hub.FlushDigests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// The flush produced one synthetic summary event.
	events, err := hub.List(ctx, "u1", notify.ListOptions{})
	require.NoError(t, err)
	var summary *notify.Event
	for i := range events {
		if events[i].IsDigest {
			summary = &events[i]
		}
	}
	require.NotNil(t, summary, "expected a digest summary event")
	assert.Equal(t, "Сводка уведомлений", summary.Title)
	assert.Contains(t, summary.Body, "Всего событий: 2")
	assert.Contains(t, summary.Body, "• Контракт №1")
	assert.Contains(t, summary.Body, "• Контракт №2")

	// The summary references its bucket and the contributing events.
	assert.NotEmpty(t, summary.Data["digest_id"])
	ids, ok := summary.Data["events"].([]string)
	require.True(t, ok, "summary data must carry the attached event ids")
	assert.Len(t, ids, 2)
	for _, batched := range events {
		if !batched.IsDigest {
			assert.Contains(t, ids, batched.ID.String())
		}
	}

	// Its delivery is pending and goes out on the next dispatch pass.
	result, err := hub.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	payloads := sender.sent()
	require.Len(t, payloads, 1)
	assert.Contains(t, payloads[0].Body, "Всего событий: 2")

	// A second flush is a no-op.
	sent, err = hub.FlushDigests(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestFlushDigestsCancelsEmptyBucket(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(noonUTC)
	hub, storage := newTestHub(t, clock)
	ctx := context.Background()

	digest, err := storage.UpsertDigest(ctx, notify.Digest{
		UserID:       "u1",
		Category:     notify.CategoryChat,
		Channel:      notify.ChannelEmail,
		PeriodStart:  noonUTC.Add(-time.Hour),
		PeriodEnd:    noonUTC.Add(-45 * time.Minute),
		ScheduledFor: noonUTC.Add(-45 * time.Minute),
	})
	require.NoError(t, err)

	sent, err := hub.FlushDigests(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	due, err := storage.ListDueDigests(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, due, "cancelled digest must not stay due")

	events, err := storage.ListDigestEvents(ctx, digest.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFlushDigestsOverflow(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Asia/Tashkent")
	require.NoError(t, err)

	clock := newFakeClock(time.Date(2025, 3, 10, 12, 5, 0, 0, loc))
	hub, storage := newTestHub(t, clock)
	ctx := context.Background()

	pref := notify.DefaultPreference("u1", notify.CategoryContract, notify.ChannelEmail)
	pref.Frequency = notify.FrequencyHourly
	require.NoError(t, storage.SavePreference(ctx, pref))

	longBody := strings.Repeat("а", 300)
	for contractID := 1; contractID <= 12; contractID++ {
		_, _, err := hub.Emit(ctx, notify.EmitParams{
			RecipientID: "u1",
			Category:    notify.CategoryContract,
			Type:        notify.EventContractCreated,
			Title:       fmt.Sprintf("Контракт №%d", contractID),
			Body:        longBody,
			Channels:    []notify.Channel{notify.ChannelEmail},
			Data:        map[string]any{"contract_id": contractID},
		})
		require.NoError(t, err)
	}

	clock.Advance(time.Hour)
	sent, err := hub.FlushDigests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	events, err := hub.List(ctx, "u1", notify.ListOptions{})
	require.NoError(t, err)
	var summary *notify.Event
	for i := range events {
		if events[i].IsDigest {
			summary = &events[i]
		}
	}
	require.NotNil(t, summary)
	assert.Contains(t, summary.Body, "Всего событий: 12")
	assert.Contains(t, summary.Body, "… и другие события")
	assert.Equal(t, 10, strings.Count(summary.Body, "•"), "at most ten items are listed")
	assert.NotContains(t, summary.Body, longBody, "item bodies are truncated")
}
