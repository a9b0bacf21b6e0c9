package mailer

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/drtc-peru/tramite-api/pkg/config"
)

// Mailer sends plain HTML mail through the configured SMTP relay.
type Mailer struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
}

// New builds a Mailer from SMTP settings.
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

// Send delivers a single message. It blocks for the SMTP round trip; callers
// run it from a worker pool.
func (m *Mailer) Send(to, subject, htmlBody string) error {
	if !m.cfg.Enabled {
		return fmt.Errorf("smtp delivery disabled")
	}
	if to == "" {
		return fmt.Errorf("recipient address required")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
