package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianhq/notifykit/pkg/copydeck"
	"github.com/obsidianhq/notifykit/pkg/l10n"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	return New(copydeck.MustNew())
}

func TestRenderer_Email(t *testing.T) {
	r := newTestRenderer(t)
	ctx := context.Background()

	t.Run("escrow template with formatted amount", func(t *testing.T) {
		payload := r.Email(ctx, "contract.signed", map[string]any{
			"email":  "user@example.com",
			"amount": 1500000,
		}, l10n.LocaleRU)

		assert.Equal(t, "Оплата на холде", payload.Subject)
		assert.Contains(t, payload.Body, "1 500 000 сум")
		assert.Equal(t, "user@example.com", payload.Recipient)
	})

	t.Run("default headers attached", func(t *testing.T) {
		payload := r.Email(ctx, "payments.payout", map[string]any{"amount": 100}, l10n.LocaleRU)

		assert.Equal(t, DefaultListUnsubscribe, payload.Headers["List-Unsubscribe"])
		assert.Equal(t, DefaultListID, payload.Headers["List-ID"])
		assert.Equal(t, DefaultPrecedence, payload.Headers["Precedence"])
	})

	t.Run("unknown event type falls back to generic template", func(t *testing.T) {
		payload := r.Email(ctx, "chat.new_message", map[string]any{
			"title": "Новое сообщение",
			"body":  "Вам написали в чате.",
		}, l10n.LocaleRU)

		assert.Equal(t, "Уведомление Obsidian", payload.Subject)
		assert.Equal(t, "Новое сообщение\n\nВам написали в чате.", payload.Body)
	})

	t.Run("unresolved placeholders stay verbatim", func(t *testing.T) {
		payload := r.Email(ctx, "escrow.opened", map[string]any{}, l10n.LocaleRU)

		assert.Contains(t, payload.Subject, "{contract_id}")
	})

	t.Run("deadline enrichment", func(t *testing.T) {
		due := time.Now().Add(72 * time.Hour)
		payload := r.Email(ctx, "dispute.opened", map[string]any{
			"case_id": 7,
			"due_at":  due,
		}, l10n.LocaleRU)

		assert.Contains(t, payload.Subject, "№7")
		assert.Contains(t, payload.Body, l10n.FormatDateTime(due, l10n.LocaleRU))
	})
}

func TestRenderer_Push(t *testing.T) {
	r := newTestRenderer(t)
	ctx := context.Background()

	t.Run("registry template", func(t *testing.T) {
		payload := r.Push(ctx, "payments.release", map[string]any{
			"amount": 250000,
			"url":    "https://obsidian.uz/wallet",
		}, l10n.LocaleRU)

		assert.Equal(t, "Выплата отправлена", payload.Title)
		assert.Contains(t, payload.Body, "250 000 сум")
		assert.Equal(t, "https://obsidian.uz/wallet", payload.URL)
	})

	t.Run("fallback to event copy", func(t *testing.T) {
		payload := r.Push(ctx, "chat.new_message", map[string]any{
			"title": "Новое сообщение",
			"body":  "Текст",
		}, l10n.LocaleRU)

		assert.Equal(t, "Новое сообщение", payload.Title)
		assert.Equal(t, "Текст", payload.Body)
	})
}

func TestInterpolate(t *testing.T) {
	out, missing := interpolate("Привет, {name}! Код: {otp}", map[string]any{"name": "Ali"})
	assert.Equal(t, "Привет, Ali! Код: {otp}", out)
	require.Equal(t, []string{"otp"}, missing)

	out, missing = interpolate("без подстановок", nil)
	assert.Equal(t, "без подстановок", out)
	assert.Empty(t, missing)
}
