package audit

import (
	"context"
	"log/slog"
)

// Event represents an audit entry for pipeline and batch execution.
type Event struct {
	// Type describes the event kind (run_start, step_ok, item_error, ...).
	Type string
	// RunID links events of one pipeline or batch run.
	RunID string
	// Tool is the tool name, when the event concerns one invocation.
	Tool string
	// StepID is the pipeline step id, when applicable.
	StepID string
	// Index is the loop/batch item index; -1 when not applicable.
	Index int
	// Reason provides additional context.
	Reason string
}

// Logger records audit events.
type Logger interface {
	// Record stores an audit event.
	Record(ctx context.Context, event Event)
}

// StdLogger writes audit events to slog.
type StdLogger struct {
	logger *slog.Logger
}

// New returns a StdLogger.
func New(logger *slog.Logger) *StdLogger {
	return &StdLogger{logger: logger}
}

// Record logs an audit event.
func (l *StdLogger) Record(_ context.Context, event Event) {
	if l == nil || l.logger == nil {
		return
	}
	attrs := []any{
		"type", event.Type,
		"run_id", event.RunID,
	}
	if event.Tool != "" {
		attrs = append(attrs, "tool", event.Tool)
	}
	if event.StepID != "" {
		attrs = append(attrs, "step_id", event.StepID)
	}
	if event.Index >= 0 {
		attrs = append(attrs, "index", event.Index)
	}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	l.logger.Info("audit", attrs...)
}
