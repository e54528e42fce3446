package mailer

import (
	"context"
	"log/slog"

	"github.com/obsidianhq/notifykit/pkg/render"
)

// DevSender logs rendered emails instead of sending them.
type DevSender struct {
	logger *slog.Logger
}

// NewDevSender creates a log-only sender for local development.
func NewDevSender(logger *slog.Logger) *DevSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DevSender{logger: logger}
}

func (d *DevSender) Send(ctx context.Context, payload render.EmailPayload) error {
	d.logger.InfoContext(ctx, "email (dev mode, not sent)",
		slog.String("to", payload.Recipient),
		slog.String("subject", payload.Subject),
		slog.String("body", payload.Body),
	)
	return nil
}
