package mailer

import "errors"

var (
	ErrInvalidConfig     = errors.New("mailer: invalid config")
	ErrMissingRecipient  = errors.New("mailer: payload has no recipient")
	ErrFailedToSendEmail = errors.New("mailer: failed to send email")
)
