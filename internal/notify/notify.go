// Package notify delivers confirmation codes to users.  Three dispatchers
// are available: AMQP (publish to the mail queue, delivered by the
// consumer in package queue), SMTP (send directly) and Log (development).
package notify

import (
	"context"
	"log/slog"
)

// LogDispatcher writes messages to the log instead of sending them.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, to, subject, body string) error {
	d.logger.InfoContext(ctx, "mail (log dispatcher)", "to", to, "subject", subject, "body", body)
	return nil
}
