package notify

import (
	"fmt"
	"time"

	gomail "gopkg.in/gomail.v2"

	"github.com/yegara-dev/community-api/pkg/config"
)

// Mailer delivers one email message.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	timeout time.Duration
}

// NewSMTPMailer builds a mailer from SMTP settings.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPMailer{dialer: dialer, from: from, timeout: timeout}
}

// Send delivers a single HTML message. Each call dials a fresh connection;
// fan-out volume is low enough that pooling is not worth the bookkeeping.
// A relay that hangs mid-handshake is cut off after the configured send
// timeout.
func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	err := runWithTimeout(m.timeout, func() error {
		return m.dialer.DialAndSend(msg)
	})
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// runWithTimeout bounds fn to the given duration. gomail offers no context
// support, so the deadline is enforced around the whole dial-and-send; the
// abandoned goroutine exits once the underlying connection errors out.
func runWithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s", timeout)
	}
}
