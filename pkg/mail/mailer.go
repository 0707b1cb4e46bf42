package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gopkg.in/gomail.v2"
)

// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

// Message represents an outbound email.
type Message struct {
	From     string   `json:"from,omitempty"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	HTMLBody string   `json:"html,omitempty"`
	TextBody string   `json:"text,omitempty"`
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSettings capture the runtime configuration required by the SMTP mailer.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// sender is the subset of *gomail.Dialer used by smtpMailer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpMailer struct {
	cfg    SMTPSettings
	sender sender
}

// NewSMTPMailer builds a Mailer that delivers through an SMTP relay.
func NewSMTPMailer(cfg SMTPSettings) (Mailer, error) {
	if err := validateSMTPConfig(cfg); err != nil {
		return nil, err
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.UseTLS
	if cfg.Host != "" {
		dialer.TLSConfig = &tls.Config{ServerName: cfg.Host}
	}
	if strings.TrimSpace(cfg.Username) == "" {
		dialer.Auth = nil
	}

	return &smtpMailer{cfg: cfg, sender: dialer}, nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrSMTPDisabled
	}

	prepared, err := prepare(msg, m.cfg.From)
	if err != nil {
		return fmt.Errorf("smtp: %w", err)
	}

	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if err := m.sender.DialAndSend(buildMessage(prepared)); err != nil {
		return fmt.Errorf("smtp: send: %w", err)
	}
	return nil
}

// prepare normalises recipients, applies the default sender and validates addresses.
func prepare(msg Message, defaultFrom string) (Message, error) {
	msg.To = uniqueAddresses(msg.To)
	if len(msg.To) == 0 {
		return msg, errors.New("at least one recipient is required")
	}

	msg.From = strings.TrimSpace(msg.From)
	if msg.From == "" {
		msg.From = strings.TrimSpace(defaultFrom)
	}
	if msg.From == "" {
		return msg, errors.New("sender address is required")
	}

	if _, err := mail.ParseAddress(msg.From); err != nil {
		return msg, fmt.Errorf("invalid from address: %w", err)
	}
	for _, rcpt := range msg.To {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return msg, fmt.Errorf("invalid recipient address %q: %w", rcpt, err)
		}
	}

	msg.Subject = escapeHeader(msg.Subject)
	return msg, nil
}

func buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}
	return m
}

func validateSMTPConfig(cfg SMTPSettings) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return errors.New("smtp: host is required when enabled")
	}
	if cfg.Port == 0 {
		return errors.New("smtp: port is required when enabled")
	}
	return nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	var result []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

func escapeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}
