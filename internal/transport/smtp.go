package transport

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"casemail-go/internal/config"
)

// SMTPTransport delivers mail through a plain SMTP relay.
type SMTPTransport struct {
	dialer     *gomail.Dialer
	senderName string
}

// NewSMTPTransport creates an SMTP transport from configuration.
func NewSMTPTransport(cfg *config.SMTPConfig) *SMTPTransport {
	logrus.Infof("Initializing SMTP transport for host %s:%d", cfg.Host, cfg.Port)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		logrus.Warn("InsecureSkipVerify is enabled for the SMTP TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &SMTPTransport{
		dialer:     d,
		senderName: cfg.SenderName,
	}
}

// Send delivers one message. A nil return means the relay accepted it.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.From, t.senderName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.HTML != "" && msg.Text != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	if err := t.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail via SMTP: %w", err)
	}
	return nil
}

// Close closes the transport (no-op; the dialer connects per send)
func (t *SMTPTransport) Close() error {
	return nil
}
