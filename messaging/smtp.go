package messaging

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends plain-text email through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{cfg: cfg, auth: auth, send: smtp.SendMail}
}

// Send ignores ctx cancellation once the SMTP exchange has started;
// net/smtp has no context support.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validHeaderValue(msg.Destination) || strings.ContainsAny(msg.Subject, "\r\n") {
		return ErrBadDestination
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, m.auth, m.cfg.From, []string{msg.Destination}, m.render(msg)); err != nil {
		return fmt.Errorf("messaging: smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) render(msg Message) []byte {
	lines := []string{
		"From: " + m.cfg.From,
		"To: " + msg.Destination,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		strings.ReplaceAll(msg.Body, "\n", "\r\n"),
	}
	return []byte(strings.Join(lines, "\r\n"))
}
