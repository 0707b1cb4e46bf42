// Package mailrelay drains the queued mail topic and delivers each message over SMTP.
package mailrelay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"

	"github.com/charlesng35/adpulse/internal/monitoring"
	"github.com/charlesng35/adpulse/pkg/logger"
	"github.com/charlesng35/adpulse/pkg/mail"
)

const (
	defaultMaxAttempts = 5
	defaultBackoff     = 2 * time.Second
	maxBackoff         = time.Minute
	commitTimeout      = 5 * time.Second

	resultInterrupted = "interrupted"
)

// MessageReader is the consumer-group subset of *kafka.Reader the relay needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Relay consumes mail envelopes and hands them to a Mailer. Offsets are
// committed only after a message is delivered or given up on, so a crash
// redelivers rather than loses mail.
type Relay struct {
	reader      MessageReader
	sender      mail.Mailer
	maxAttempts int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	log         *zap.Logger
}

// Option customises the Relay.
type Option func(*Relay)

// WithMaxAttempts bounds delivery attempts per message before it is dropped.
func WithMaxAttempts(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the initial delay between attempts; it doubles up to a minute.
func WithBackoff(d time.Duration) Option {
	return func(r *Relay) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// New builds a relay over reader delivering through sender.
func New(reader MessageReader, sender mail.Mailer, opts ...Option) (*Relay, error) {
	if reader == nil {
		return nil, errors.New("mailrelay: reader is required")
	}
	if sender == nil {
		return nil, errors.New("mailrelay: sender is required")
	}
	r := &Relay{
		reader:      reader,
		sender:      sender,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		sleep:       sleepContext,
		log:         logger.WithModule("mailrelay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewReader opens a consumer-group reader for the configured mail topic.
func NewReader(cfg mail.KafkaSettings) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("mailrelay: brokers and topic are required")
	}
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "adpulse-mailrelay"
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	if cfg.Username != "" {
		dialer.SASLMechanism = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	}
	if cfg.TLS {
		dialer.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  groupID,
		Topic:    cfg.Topic,
		Dialer:   dialer,
		MinBytes: 1,
		MaxBytes: 10e6,
	}), nil
}

// Run processes messages until ctx is cancelled. A cancelled context is a clean stop.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info("mail relay started", zap.Int("max_attempts", r.maxAttempts))
	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.log.Info("mail relay stopped")
				return nil
			}
			return fmt.Errorf("mailrelay: fetch: %w", err)
		}

		result := r.handle(ctx, msg)
		if result == resultInterrupted {
			// Leave the offset uncommitted so the message is redelivered.
			return nil
		}
		monitoring.RecordRelayMessage(result)

		if err := r.commit(ctx, msg); err != nil {
			return fmt.Errorf("mailrelay: commit offset %d: %w", msg.Offset, err)
		}
	}
}

// commit survives shutdown so a message handled just before cancellation is not replayed.
func (r *Relay) commit(ctx context.Context, msg kafka.Message) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	return r.reader.CommitMessages(ctx, msg)
}

// handle returns "delivered", "dropped" or "interrupted".
func (r *Relay) handle(ctx context.Context, msg kafka.Message) string {
	fields := []zap.Field{zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset)}

	envelope, err := mail.DecodeEnvelope(msg.Value)
	if err != nil {
		r.log.Error("dropping undecodable mail event", append(fields, zap.Error(err))...)
		return "dropped"
	}
	fields = append(fields, zap.String("subject", envelope.Message.Subject))

	delay := r.backoff
	for attempt := 1; ; attempt++ {
		err := r.sender.Send(ctx, envelope.Message)
		switch {
		case err == nil:
			r.log.Debug("mail delivered", append(fields, zap.Int("attempt", attempt))...)
			return "delivered"
		case errors.Is(err, mail.ErrSMTPDisabled):
			r.log.Warn("smtp disabled; dropping queued mail", fields...)
			return "dropped"
		case attempt >= r.maxAttempts:
			r.log.Error("giving up on queued mail", append(fields, zap.Int("attempts", attempt), zap.Error(err))...)
			return "dropped"
		}

		r.log.Warn("mail delivery failed; retrying", append(fields, zap.Int("attempt", attempt), zap.Error(err))...)
		monitoring.RecordRelayMessage("retried")
		if err := r.sleep(ctx, delay); err != nil {
			return resultInterrupted
		}
		if delay *= 2; delay > maxBackoff {
			delay = maxBackoff
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
