package email

import (
	"context"
	"log/slog"
)

type noopSender struct {
	logger *slog.Logger
}

// NewNoopSender creates a Sender that only logs, for demo mode and tests.
func NewNoopSender(logger *slog.Logger) Sender {
	return &noopSender{logger: logger}
}

func (s *noopSender) SendPasswordReset(_ context.Context, toEmail, toName, resetURL string) error {
	s.logger.Info("noop email: password reset",
		"to", toEmail,
		"name", toName,
		"reset_url", resetURL)
	return nil
}
