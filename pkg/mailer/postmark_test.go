package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianhq/notifykit/pkg/render"
)

type fakePostmarkAPI struct {
	sent []postmark.Email
	resp postmark.EmailResponse
	err  error
}

func (f *fakePostmarkAPI) SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error) {
	f.sent = append(f.sent, email)
	return f.resp, f.err
}

func validConfig() Config {
	return Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "notify@obsidian.uz",
		SupportEmail:         "support@obsidian.uz",
	}
}

func TestNewPostmarkSenderConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing server token", func(c *Config) { c.PostmarkServerToken = "" }, "PostmarkServerToken"},
		{"missing account token", func(c *Config) { c.PostmarkAccountToken = "" }, "PostmarkAccountToken"},
		{"invalid sender", func(c *Config) { c.SenderEmail = "not-an-email" }, "SenderEmail"},
		{"invalid support", func(c *Config) { c.SupportEmail = "" }, "SupportEmail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)
			_, err := NewPostmarkSender(cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		sender, err := NewPostmarkSender(validConfig())
		require.NoError(t, err)
		assert.NotNil(t, sender)
	})
}

func TestPostmarkSenderSend(t *testing.T) {
	t.Parallel()

	payload := render.EmailPayload{
		Subject:   "Оплата получена",
		Body:      "Средства зарезервированы",
		Recipient: "user@example.com",
		Headers: map[string]string{
			"List-Unsubscribe": "<mailto:unsubscribe@obsidian.uz>",
			"List-ID":          "notifications.obsidian.uz",
			"Precedence":       "bulk",
		},
	}

	t.Run("passes payload through", func(t *testing.T) {
		t.Parallel()

		api := &fakePostmarkAPI{}
		sender := &PostmarkSender{client: api, config: validConfig()}

		require.NoError(t, sender.Send(context.Background(), payload))
		require.Len(t, api.sent, 1)

		sent := api.sent[0]
		assert.Equal(t, "notify@obsidian.uz", sent.From)
		assert.Equal(t, "support@obsidian.uz", sent.ReplyTo)
		assert.Equal(t, "user@example.com", sent.To)
		assert.Equal(t, payload.Subject, sent.Subject)
		assert.Equal(t, payload.Body, sent.TextBody)
		require.Len(t, sent.Headers, 3)
		assert.Equal(t, "List-ID", sent.Headers[0].Name)
		assert.Equal(t, "List-Unsubscribe", sent.Headers[1].Name)
		assert.Equal(t, "Precedence", sent.Headers[2].Name)
	})

	t.Run("missing recipient", func(t *testing.T) {
		t.Parallel()

		api := &fakePostmarkAPI{}
		sender := &PostmarkSender{client: api, config: validConfig()}

		p := payload
		p.Recipient = ""
		require.ErrorIs(t, sender.Send(context.Background(), p), ErrMissingRecipient)
		assert.Empty(t, api.sent)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		api := &fakePostmarkAPI{err: errors.New("connection reset")}
		sender := &PostmarkSender{client: api, config: validConfig()}

		require.ErrorIs(t, sender.Send(context.Background(), payload), ErrFailedToSendEmail)
	})

	t.Run("api error code", func(t *testing.T) {
		t.Parallel()

		api := &fakePostmarkAPI{resp: postmark.EmailResponse{ErrorCode: 300, Message: "invalid from"}}
		sender := &PostmarkSender{client: api, config: validConfig()}

		err := sender.Send(context.Background(), payload)
		require.ErrorIs(t, err, ErrFailedToSendEmail)
		assert.Contains(t, err.Error(), "300")
	})
}
