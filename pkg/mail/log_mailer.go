package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/adpulse/pkg/logger"
)

// LogMailer records outgoing mail instead of delivering it. It backs the
// "disabled" transport so local setups can run without SMTP or Kafka.
type LogMailer struct{}

// Send logs recipients and subject. Bodies carry single-use links and are never logged.
func (LogMailer) Send(_ context.Context, msg Message) error {
	logger.WithModule("mail").Info("mail delivery disabled; dropping message",
		zap.Int("recipients", len(msg.To)),
		zap.String("subject", msg.Subject),
	)
	return nil
}
