package mailer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/mrz1836/postmark"

	"github.com/obsidianhq/notifykit/pkg/render"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// postmarkAPI is the slice of the Postmark client the sender uses, extracted
// so tests can substitute a fake.
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkSender delivers notification emails through Postmark's
// transactional API.
type PostmarkSender struct {
	client postmarkAPI
	config Config
}

// NewPostmarkSender creates a Postmark-backed sender. Tokens and valid sender
// addresses are required so a misconfigured production boot fails fast.
func NewPostmarkSender(cfg Config) (*PostmarkSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SupportEmail) {
		return nil, fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}

	return &PostmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// Send delivers one rendered payload. The payload's List-Unsubscribe, List-ID
// and Precedence headers are passed through to the wire.
func (s *PostmarkSender) Send(ctx context.Context, payload render.EmailPayload) error {
	if !emailRegex.MatchString(payload.Recipient) {
		return ErrMissingRecipient
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.config.SenderEmail,
		ReplyTo:  s.config.SupportEmail,
		To:       payload.Recipient,
		Subject:  payload.Subject,
		TextBody: payload.Body,
		Headers:  wireHeaders(payload.Headers),
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}

func wireHeaders(headers map[string]string) []postmark.Header {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]postmark.Header, 0, len(names))
	for _, name := range names {
		result = append(result, postmark.Header{Name: name, Value: headers[name]})
	}
	return result
}
