package notify

import (
	"context"

	"github.com/MrEthical07/otpAuth/internal/logging"
)

// Log is a development notifier that writes messages to the logger instead of
// sending them. The body, which contains the code, is logged at debug level.
type Log struct {
	logger logging.Logger
}

func NewLog(logger logging.Logger) *Log {
	return &Log{logger: logging.OrNop(logger).With("component", "notify")}
}

func (l *Log) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	l.logger.Info(ctx, "notification", "recipient", recipient, "subject", subject)
	l.logger.Debug(ctx, "notification body", "recipient", recipient, "body", htmlBody)
	return nil
}
