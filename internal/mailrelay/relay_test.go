package mailrelay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adpulse/internal/monitoring"
	"github.com/charlesng35/adpulse/pkg/mail"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	fetchErr  error
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		err := r.fetchErr
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	if len(r.queue) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type scriptedSender struct {
	mu    sync.Mutex
	errs  []error
	sent  []mail.Message
	calls int
}

func (s *scriptedSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return err
		}
	}
	s.sent = append(s.sent, msg)
	return nil
}

func envelope(t *testing.T, offset int64, to string) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(mail.Envelope{
		Message:  mail.Message{To: []string{to}, Subject: "Join Growth on AdPulse", TextBody: "hi"},
		QueuedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: payload}
}

func runUntilDrained(t *testing.T, relay *Relay, reader *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case <-reader.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not drain the queue")
	}
	cancel()
	require.NoError(t, <-done)
}

func installMonitoring(t *testing.T) {
	t.Helper()
	mod, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(mod)
}

func TestRelayDeliversAndCommits(t *testing.T) {
	installMonitoring(t)
	reader := newFakeReader(envelope(t, 1, "bob@acme.com"), envelope(t, 2, "mia@acme.com"))
	sender := &scriptedSender{}

	relay, err := New(reader, sender)
	require.NoError(t, err)
	runUntilDrained(t, relay, reader)

	require.Len(t, sender.sent, 2)
	require.Equal(t, []string{"bob@acme.com"}, sender.sent[0].To)
	require.Equal(t, []int64{1, 2}, reader.offsets())
	require.Equal(t, uint64(2), monitoring.Snapshot().MailRelay.Delivered)
}

func TestRelayRetriesWithBackoff(t *testing.T) {
	installMonitoring(t)
	reader := newFakeReader(envelope(t, 7, "bob@acme.com"))
	sender := &scriptedSender{errs: []error{errors.New("421 busy"), errors.New("421 busy")}}

	relay, err := New(reader, sender, WithBackoff(time.Second), WithMaxAttempts(3))
	require.NoError(t, err)
	var delays []time.Duration
	relay.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	runUntilDrained(t, relay, reader)

	require.Equal(t, 3, sender.calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	summary := monitoring.Snapshot().MailRelay
	require.Equal(t, uint64(2), summary.Retried)
	require.Equal(t, uint64(1), summary.Delivered)
}

func TestRelayDropsAfterMaxAttempts(t *testing.T) {
	installMonitoring(t)
	reader := newFakeReader(envelope(t, 3, "bob@acme.com"))
	fail := errors.New("550 mailbox unavailable")
	sender := &scriptedSender{errs: []error{fail, fail}}

	relay, err := New(reader, sender, WithBackoff(0), WithMaxAttempts(2))
	require.NoError(t, err)
	runUntilDrained(t, relay, reader)

	require.Empty(t, sender.sent)
	require.Equal(t, []int64{3}, reader.offsets())
	require.Equal(t, uint64(1), monitoring.Snapshot().MailRelay.Dropped)
}

func TestRelayDropsUndecodablePayloads(t *testing.T) {
	installMonitoring(t)
	reader := newFakeReader(
		kafka.Message{Offset: 4, Value: []byte("not json")},
		kafka.Message{Offset: 5, Value: []byte(`{"message":{"to":[]}}`)},
	)
	sender := &scriptedSender{}

	relay, err := New(reader, sender)
	require.NoError(t, err)
	runUntilDrained(t, relay, reader)

	require.Zero(t, sender.calls)
	require.Equal(t, []int64{4, 5}, reader.offsets())
	require.Equal(t, uint64(2), monitoring.Snapshot().MailRelay.Dropped)
}

func TestRelayDropsWhenSMTPDisabled(t *testing.T) {
	installMonitoring(t)
	reader := newFakeReader(envelope(t, 9, "bob@acme.com"))
	sender := &scriptedSender{errs: []error{mail.ErrSMTPDisabled}}

	relay, err := New(reader, sender)
	require.NoError(t, err)
	runUntilDrained(t, relay, reader)

	require.Equal(t, 1, sender.calls)
	require.Equal(t, []int64{9}, reader.offsets())
}

func TestRelayLeavesOffsetWhenInterrupted(t *testing.T) {
	reader := newFakeReader(envelope(t, 11, "bob@acme.com"))
	sender := &scriptedSender{errs: []error{errors.New("timeout")}}

	relay, err := New(reader, sender, WithMaxAttempts(5))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	relay.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	require.NoError(t, relay.Run(ctx))
	require.Empty(t, reader.offsets())
}

func TestRelayReturnsFetchErrors(t *testing.T) {
	reader := newFakeReader()
	reader.fetchErr = errors.New("broker unreachable")

	relay, err := New(reader, &scriptedSender{})
	require.NoError(t, err)
	require.ErrorContains(t, relay.Run(context.Background()), "broker unreachable")
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, &scriptedSender{})
	require.Error(t, err)
	_, err = New(newFakeReader(), nil)
	require.Error(t, err)

	_, err = NewReader(mail.KafkaSettings{Topic: "mail"})
	require.Error(t, err)
	reader, err := NewReader(mail.KafkaSettings{Brokers: []string{"localhost:9092"}, Topic: "mail", Username: "relay", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "adpulse-mailrelay", reader.Config().GroupID)
	require.NoError(t, reader.Close())
}
