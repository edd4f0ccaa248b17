package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// stdout is the console target; tests swap it.
var stdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger
	zlog   zerolog.Logger
	level  string

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// SetupOption adds optional outputs or context to Setup.
type SetupOption func(*setupOptions)

type setupOptions struct {
	graylog  io.Writer
	provider ContextProvider
}

// WithGraylog ships JSON records to a GELF writer.
func WithGraylog(w io.Writer) SetupOption {
	return func(o *setupOptions) {
		o.graylog = w
	}
}

// WithContext injects dynamic attributes (run id, tick) into every record.
func WithContext(p ContextProvider) SetupOption {
	return func(o *setupOptions) {
		o.provider = p
	}
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{zlog: zerolog.Nop()}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseZerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "TRACE":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup initializes the logging system. Records go to file when one is given,
// to stdout otherwise, plus Graylog and OTel when configured.
// If provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, opts ...SetupOption) {
	o := &setupOptions{}
	for _, opt := range opts {
		opt(o)
	}

	lvl := parseLevel(level)
	m.logProvider = provider
	m.level = level

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	out := stdout
	if file != nil {
		out = file
	}

	handlers := []slog.Handler{slog.NewTextHandler(out, handlerOpts)}

	if o.graylog != nil {
		handlers = append(handlers, slog.NewJSONHandler(o.graylog, handlerOpts))
	}

	// OTel handler (if provider is available)
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler("mechevo", otelslog.WithLoggerProvider(provider)))
	}

	var handler slog.Handler = NewMultiHandler(handlers...)
	if o.provider != nil {
		handler = NewContextHandler(handler, o.provider)
	}

	m.logger = slog.New(handler)
	m.zlog = newZerolog(out, o.graylog, level)
	m.logger.Info("Logging initialized", "level", level)
}

func newZerolog(out, graylog io.Writer, level string) zerolog.Logger {
	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    out != stdout,
		},
	}
	if graylog != nil {
		writers = append(writers, graylog)
	}
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseZerologLevel(level)).
		With().Timestamp().Logger()
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Zerolog returns a zerolog logger over the same outputs, for the metrics and
// database managers. It discards everything before Setup.
func (m *SlogManager) Zerolog() zerolog.Logger {
	return m.zlog
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog writes a log entry with the specified function name, data, and level.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}

	lvl := parseLevel(level)

	switch lvl {
	case slog.LevelDebug:
		m.logger.Debug(data, "function", functionName)
	case slog.LevelInfo:
		m.logger.Info(data, "function", functionName)
	case slog.LevelWarn:
		m.logger.Warn(data, "function", functionName)
	case slog.LevelError:
		m.logger.Error(data, "function", functionName)
	default:
		m.logger.Info(data, "function", functionName)
	}
}
