package notifier

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"LimitUpWatch/internal/config"
)

// Message is one outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Mailer delivers a Message. Delivery is attempted once.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
}

// New returns the mailer for cfg.Provider. The sender address is
// email.from when set, else the username.
func New(cfg config.EmailConfig, cred config.Credentials) (Mailer, error) {
	switch cfg.Provider {
	case "smtp":
		return &SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cred.Username,
			Password: cred.Password,
			Timeout:  cfg.Timeout,
		}, nil
	case "sendgrid":
		return &SendGridMailer{
			URL:    cfg.SendGridURL,
			APIKey: cred.Password,
			Client: &http.Client{Timeout: cfg.Timeout},
		}, nil
	}
	return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
}

// SenderAddress picks the From address.
func SenderAddress(cfg config.EmailConfig, cred config.Credentials) string {
	if cfg.From != "" {
		return cfg.From
	}
	return cred.Username
}

// DryRunMailer logs the message instead of sending it.
type DryRunMailer struct {
	Log zerolog.Logger
}

func (d *DryRunMailer) Name() string { return "dry-run" }

func (d *DryRunMailer) Send(_ context.Context, msg *Message) error {
	d.Log.Info().
		Str("subject", msg.Subject).
		Strs("to", msg.To).
		Int("html_bytes", len(msg.HTML)).
		Msg("dry run, email not sent")
	d.Log.Debug().Str("html", msg.HTML).Msg("email body")
	return nil
}
