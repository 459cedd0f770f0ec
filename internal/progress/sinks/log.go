package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/progress"
)

// LogSink writes every event as a structured log line. Session milestones are
// logged at Info, fetch events at Debug.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("session_id", evt.SessionUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.Time("ts", evt.TS),
		}
		switch evt.Stage {
		case progress.StageSessionStart, progress.StageSessionStop:
			if evt.Dur > 0 {
				fields = append(fields, zap.Duration("runtime", evt.Dur))
			}
			if evt.Note != "" {
				fields = append(fields, zap.String("note", evt.Note))
			}
			s.logger.Info("crawl session event", fields...)
		default:
			fields = append(fields,
				zap.String("site", evt.Site),
				zap.String("url", evt.URL),
				zap.Int64("bytes", evt.Bytes),
				zap.Int64("links", evt.Links),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Duration("dur", evt.Dur),
				zap.String("note", evt.Note),
			)
			s.logger.Debug("fetch event", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
