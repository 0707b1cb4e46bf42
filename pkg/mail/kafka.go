package mail

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// KafkaSettings configure the queue used to hand mail off to the relay.
type KafkaSettings struct {
	Brokers      []string
	Topic        string
	GroupID      string
	Username     string
	Password     string
	TLS          bool
	WriteTimeout time.Duration
	From         string
}

// Envelope is the payload published for every queued message.
type Envelope struct {
	Message  Message   `json:"message"`
	QueuedAt time.Time `json:"queued_at"`
}

// DecodeEnvelope parses a queued payload.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("mail: decode envelope: %w", err)
	}
	if len(env.Message.To) == 0 {
		return Envelope{}, errors.New("mail: envelope has no recipients")
	}
	return env, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMailer publishes messages to a Kafka topic instead of talking SMTP directly.
type KafkaMailer struct {
	writer  messageWriter
	from    string
	timeout time.Duration
	now     func() time.Time
}

// NewKafkaMailer constructs a publisher for the configured topic.
func NewKafkaMailer(cfg KafkaSettings) (*KafkaMailer, error) {
	if err := validateKafkaConfig(cfg); err != nil {
		return nil, err
	}

	transport := &kafka.Transport{}
	if cfg.Username != "" {
		transport.SASL = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	}
	if cfg.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Transport:    transport,
		WriteTimeout: cfg.WriteTimeout,
	}

	return newKafkaMailer(writer, cfg), nil
}

func newKafkaMailer(writer messageWriter, cfg KafkaSettings) *KafkaMailer {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KafkaMailer{
		writer:  writer,
		from:    cfg.From,
		timeout: timeout,
		now:     time.Now,
	}
}

// Send validates the message and publishes it keyed by its first recipient.
func (k *KafkaMailer) Send(ctx context.Context, msg Message) error {
	prepared, err := prepare(msg, k.from)
	if err != nil {
		return fmt.Errorf("kafka mailer: %w", err)
	}

	payload, err := json.Marshal(Envelope{Message: prepared, QueuedAt: k.now().UTC()})
	if err != nil {
		return fmt.Errorf("kafka mailer: encode: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strings.ToLower(prepared.To[0])),
		Value: payload,
		Time:  k.now(),
	}); err != nil {
		return fmt.Errorf("kafka mailer: publish: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaMailer) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

func validateKafkaConfig(cfg KafkaSettings) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka: at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return errors.New("kafka: topic is required")
	}
	return nil
}
