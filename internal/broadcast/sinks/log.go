// Package sinks provides broadcast.Sink implementations for logging, metrics,
// and external pub/sub notification.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/leadgenhq/leadgen-engine/internal/broadcast"
)

// LogSink emits structured logs for each broadcast event. It is useful during
// development or audits where no live subscriber is attached.
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

// Deliver logs the event using structured fields.
func (s *LogSink) Deliver(_ context.Context, evt broadcast.Event) error {
	s.logger.Info("broadcast event",
		zap.String("event", evt.Name),
		zap.String("project_id", evt.ProjectID),
		zap.String("vendor_id", evt.VendorID),
		zap.String("status", string(evt.Status)),
		zap.Int("leads", len(evt.Leads)),
		zap.String("message", evt.Message),
		zap.Time("ts", evt.TS),
	)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
