package mail

import (
	"context"

	"github.com/charlesng35/adpulse/pkg/metrics"
)

type instrumentedMailer struct {
	next      Mailer
	transport string
}

// Instrument wraps next so each delivery is counted per transport.
func Instrument(next Mailer, transport string) Mailer {
	return &instrumentedMailer{next: next, transport: transport}
}

func (m *instrumentedMailer) Send(ctx context.Context, msg Message) error {
	err := m.next.Send(ctx, msg)
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MailDeliveries.WithLabelValues(m.transport, result).Inc()
	return err
}
