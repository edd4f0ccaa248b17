package logging

import "github.com/rs/zerolog"

// RunLogger writes the event dispatcher's diagnostics for one run through
// zerolog. It satisfies dispatcher.Logger.
type RunLogger struct {
	logger zerolog.Logger
}

// NewRunLogger returns a RunLogger whose entries carry the run id.
func NewRunLogger(logger zerolog.Logger, runID string) *RunLogger {
	return &RunLogger{
		logger: logger.With().Str("component", "dispatcher").Str("runId", runID).Logger(),
	}
}

// Debug logs per-event tracing.
func (l *RunLogger) Debug(msg string, keysAndValues ...any) {
	l.write(l.logger.Debug(), msg, keysAndValues)
}

// Info logs a message with optional key-value pairs.
func (l *RunLogger) Info(msg string, keysAndValues ...any) {
	l.write(l.logger.Info(), msg, keysAndValues)
}

// Error logs a failed dispatch.
func (l *RunLogger) Error(msg string, keysAndValues ...any) {
	l.write(l.logger.Error(), msg, keysAndValues)
}

func (l *RunLogger) write(ev *zerolog.Event, msg string, keysAndValues []any) {
	if !ev.Enabled() {
		return
	}
	ev.Fields(pairs(keysAndValues)).Msg(msg)
}

// pairs keeps the well-formed key-value pairs in order. Non-string keys and a
// trailing key without a value are dropped.
func pairs(keysAndValues []any) []any {
	out := make([]any, 0, len(keysAndValues)&^1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if _, ok := keysAndValues[i].(string); ok {
			out = append(out, keysAndValues[i], keysAndValues[i+1])
		}
	}
	return out
}
