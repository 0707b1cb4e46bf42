package app

import (
	"strings"

	"github.com/charlesng35/adpulse/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  strings.TrimSpace(c.SMTP.Host) != "",
		Host:     strings.TrimSpace(c.SMTP.Host),
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.From,
		UseTLS:   c.SMTP.UseTLS,
	}
}

// KafkaSettings converts EmailConfig into the queue publisher settings.
func (c EmailConfig) KafkaSettings() mail.KafkaSettings {
	brokers := make([]string, 0, len(c.Kafka.Brokers))
	for _, broker := range c.Kafka.Brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return mail.KafkaSettings{
		Brokers:      brokers,
		Topic:        strings.TrimSpace(c.Kafka.Topic),
		GroupID:      strings.TrimSpace(c.Kafka.GroupID),
		Username:     c.Kafka.Username,
		Password:     c.Kafka.Password,
		TLS:          c.Kafka.TLS,
		WriteTimeout: c.Kafka.WriteTimeout,
		From:         c.From,
	}
}

// TransportName returns the normalised transport, defaulting to disabled.
func (c EmailConfig) TransportName() string {
	transport := strings.ToLower(strings.TrimSpace(c.Transport))
	if transport == "" {
		return TransportDisabled
	}
	return transport
}
