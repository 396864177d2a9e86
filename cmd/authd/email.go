package main

import (
	"context"
	"log/slog"
)

// logEmailSender writes outgoing mail to the log instead of delivering it.
// Stands in until an SMTP sender is wired up.
type logEmailSender struct {
	logger *slog.Logger
}

func (s *logEmailSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info("outgoing mail", "to", to, "subject", subject, "body", body)
	return nil
}
