package checks

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/charlesng35/adpulse/internal/monitoring"
)

const defaultMailTimeout = 3 * time.Second

// MailTarget describes where outbound mail is handed off.
type MailTarget struct {
	// Transport is "smtp", "kafka" or "disabled".
	Transport string
	SMTPHost  string
	SMTPPort  int
	Brokers   []string
}

// Dialer opens a connection to the mail transport.
type Dialer func(ctx context.Context, target MailTarget) error

// Mail returns a readiness probe for the configured mail transport. Mail
// outages degrade readiness; invite and reset requests fail but the API keeps serving.
func Mail(target MailTarget, timeout time.Duration) monitoring.Check {
	return MailWithDialer(target, timeout, dialMailTarget)
}

// MailWithDialer is Mail with an injectable dialer.
func MailWithDialer(target MailTarget, timeout time.Duration, dial Dialer) monitoring.Check {
	return monitoring.NewCheck("mail", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		switch target.Transport {
		case "", "disabled":
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "mail disabled",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultMailTimeout))
		defer cancel()

		if err := dial(probeCtx, target); err != nil {
			result := monitoring.ResultFromError("mail", err, time.Since(start))
			result.Status = monitoring.StatusDegraded
			result.Details = target.Transport + ": " + result.Details
			return result
		}
		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  target.Transport,
			Duration: time.Since(start),
		}
	})
}

func dialMailTarget(ctx context.Context, target MailTarget) error {
	switch target.Transport {
	case "smtp":
		if target.SMTPHost == "" {
			return errors.New("smtp host not configured")
		}
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(target.SMTPHost, strconv.Itoa(target.SMTPPort)))
		if err != nil {
			return err
		}
		return conn.Close()
	case "kafka":
		if len(target.Brokers) == 0 {
			return errors.New("kafka brokers not configured")
		}
		conn, err := kafka.DialContext(ctx, "tcp", target.Brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	default:
		return errors.New("unknown mail transport " + strconv.Quote(target.Transport))
	}
}
