package render

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/obsidianhq/notifykit/pkg/copydeck"
	"github.com/obsidianhq/notifykit/pkg/l10n"
)

// Default delivery headers attached to every rendered email unless the
// template family's metadata overrides them.
const (
	DefaultListUnsubscribe = "<mailto:unsubscribe@obsidian.uz>, <https://obsidian.uz/unsubscribe>"
	DefaultListID          = "notifications.obsidian.uz"
	DefaultPrecedence      = "bulk"
)

// EmailPayload is a fully rendered transactional email ready for transport.
type EmailPayload struct {
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Recipient string            `json:"recipient"`
	Headers   map[string]string `json:"headers"`
}

// PushPayload is a fully rendered web-push message.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// Renderer formats channel payloads from registry copy and event context.
type Renderer struct {
	registry *copydeck.Registry
	logger   *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for missing-template and missing-placeholder
// warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// New creates a Renderer over the given copy registry.
func New(registry *copydeck.Registry, opts ...Option) *Renderer {
	r := &Renderer{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Email renders the transactional email for an event type. The data bag is
// enriched with formatted fields first; "title", "body" and "email" are
// expected to be present for the generic fallback path.
func (r *Renderer) Email(ctx context.Context, eventType string, data map[string]any, locale l10n.Locale) EmailPayload {
	enriched := l10n.EnrichContext(data, locale)

	tmpl, meta := r.registry.Email(eventType, locale)
	if tmpl == nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "no email template, using generic fallback",
			slog.String("event_type", eventType),
			slog.String("locale", string(locale)),
		)
		tmpl = &copydeck.EmailTemplate{
			Subject: "Уведомление Obsidian",
			Body:    "{title}\n\n{body}",
		}
	}

	subject, missingSubject := interpolate(tmpl.Subject, enriched)
	body, missingBody := interpolate(tmpl.Body, enriched)
	if len(missingSubject)+len(missingBody) > 0 {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "unresolved template placeholders",
			slog.String("event_type", eventType),
			slog.Any("missing", append(missingSubject, missingBody...)),
		)
	}

	recipient := ""
	if email, ok := enriched["email"].(string); ok {
		recipient = email
	}

	return EmailPayload{
		Subject:   subject,
		Body:      body,
		Recipient: recipient,
		Headers:   buildHeaders(meta),
	}
}

// Push renders the web-push payload for an event type. Without a registry
// template the event's own title and body are used as-is.
func (r *Renderer) Push(ctx context.Context, eventType string, data map[string]any, locale l10n.Locale) PushPayload {
	enriched := l10n.EnrichContext(data, locale)

	var title, body string
	if tmpl := r.registry.Push(eventType, locale); tmpl != nil {
		var missing []string
		title, missing = interpolate(tmpl.Title, enriched)
		var missingBody []string
		body, missingBody = interpolate(tmpl.Body, enriched)
		if len(missing)+len(missingBody) > 0 {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "unresolved template placeholders",
				slog.String("event_type", eventType),
				slog.Any("missing", append(missing, missingBody...)),
			)
		}
	} else {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "no push template, using event copy",
			slog.String("event_type", eventType),
			slog.String("locale", string(locale)),
		)
		title = fmt.Sprint(enriched["title"])
		body = fmt.Sprint(enriched["body"])
	}

	url := ""
	if u, ok := enriched["url"].(string); ok {
		url = u
	}

	return PushPayload{Title: title, Body: body, URL: url}
}

func buildHeaders(meta copydeck.Meta) map[string]string {
	headers := map[string]string{
		"List-Unsubscribe": DefaultListUnsubscribe,
		"List-ID":          DefaultListID,
		"Precedence":       DefaultPrecedence,
	}
	if meta.ListUnsubscribe != "" {
		headers["List-Unsubscribe"] = meta.ListUnsubscribe
	}
	if meta.ListID != "" {
		headers["List-ID"] = meta.ListID
	}
	if meta.Precedence != "" {
		headers["Precedence"] = meta.Precedence
	}
	return headers
}
