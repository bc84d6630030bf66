package notify

import (
	"context"
	"log/slog"
)

// LogSink writes every event to a logger. It stands in for the external
// collaborators when none are configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(ctx context.Context, ev Event) error {
	s.logger.InfoContext(ctx, "custody event",
		"kind", ev.Kind,
		"item_id", ev.ItemID,
		"code", ev.Code,
		"department", ev.Department,
		"amount", ev.Amount,
	)
	return nil
}
