package copydeck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianhq/notifykit/pkg/l10n"
)

func TestNew(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	require.NotNil(t, r)
}

func TestRegistry_Email(t *testing.T) {
	r := MustNew()

	t.Run("direct lookup", func(t *testing.T) {
		tmpl, meta := r.Email("escrow.opened", l10n.LocaleRU)
		require.NotNil(t, tmpl)
		assert.Contains(t, tmpl.Subject, "Escrow открыт")
		assert.Equal(t, "transactional", meta.Category)
	})

	t.Run("alias resolution", func(t *testing.T) {
		direct, _ := r.Email("escrow.hold", l10n.LocaleRU)
		viaContract, _ := r.Email("contract.signed", l10n.LocaleRU)
		viaPayment, _ := r.Email("payments.hold", l10n.LocaleRU)
		require.NotNil(t, direct)
		assert.Equal(t, direct, viaContract)
		assert.Equal(t, direct, viaPayment)
	})

	t.Run("uz locale", func(t *testing.T) {
		tmpl, _ := r.Email("payouts.sent", l10n.LocaleUZ)
		require.NotNil(t, tmpl)
		assert.Contains(t, tmpl.Subject, "To'lov")
	})

	t.Run("unknown event type", func(t *testing.T) {
		tmpl, _ := r.Email("contract.application_submitted", l10n.LocaleRU)
		assert.Nil(t, tmpl)
	})

	t.Run("security family meta", func(t *testing.T) {
		_, meta := r.Email("account.login", l10n.LocaleRU)
		assert.Equal(t, "security", meta.Category)
	})
}

func TestRegistry_Push(t *testing.T) {
	r := MustNew()

	t.Run("direct lookup", func(t *testing.T) {
		tmpl := r.Push("dispute.opened", l10n.LocaleRU)
		require.NotNil(t, tmpl)
		assert.Equal(t, "Спор открыт", tmpl.Title)
	})

	t.Run("alias resolution", func(t *testing.T) {
		tmpl := r.Push("payments.payout", l10n.LocaleUZ)
		require.NotNil(t, tmpl)
		assert.Contains(t, tmpl.Title, "To'lov")
	})

	t.Run("unknown event type", func(t *testing.T) {
		assert.Nil(t, r.Push("chat.new_message", l10n.LocaleRU))
	})
}
