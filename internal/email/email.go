package email

import (
	"context"
	"errors"
	"net/mail"

	"github.com/dukerupert/prota/internal/config"
)

// ErrNotConfigured is returned by senders that lack credentials.
var ErrNotConfigured = errors.New("mail not configured")

// Message is a plain email. HTML is optional.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages over some transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Configured() bool
}

// NewSender builds the transport selected in cfg.
func NewSender(cfg config.MailConfig) Sender {
	if cfg.Transport == config.TransportPostmark {
		return NewClient(cfg.PostmarkToken, cfg.From)
	}
	return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password, cfg.From)
}

// ValidAddress reports whether s parses as a single email address.
func ValidAddress(s string) bool {
	_, err := mail.ParseAddress(s)
	return err == nil
}
