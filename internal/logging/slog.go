package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName is the instrumentation scope of records bridged to OTel.
const ServiceName = "timeslider"

// consoleOut receives records when no log file is configured. The REPL owns
// stdout, so the console is stderr.
var consoleOut io.Writer = os.Stderr

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger
	level  slog.LevelVar
	out    io.Writer

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	// view stamps the timeline view onto every record.
	view ViewSource
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
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

// Setup initializes the logging system. Records go to file when it is set and
// to the console otherwise. If provider is nil, OTel logging is disabled.
// Calling Setup again replaces the outputs; the view callback is kept.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	m.level.Set(parseLevel(level))
	m.logProvider = provider

	handlerOpts := &slog.HandlerOptions{
		Level: &m.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	m.out = file
	if m.out == nil {
		m.out = consoleOut
	}
	handlers = append(handlers, slog.NewTextHandler(m.out, handlerOpts))

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}

	m.logger = slog.New(NewViewHandler(NewMultiHandler(handlers...), &m.view))
	m.logger.Info("Logging initialized", "level", m.level.Level().String())
}

// SetViewAttrs installs the function whose attributes are added to every
// record, including records of loggers returned before the call.
func (m *SlogManager) SetViewAttrs(fn ViewFunc) {
	m.view.Set(fn)
}

// SetLevel changes the minimum level of every handler created by Setup.
func (m *SlogManager) SetLevel(level string) slog.Level {
	m.level.Set(parseLevel(level))
	return m.level.Level()
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Writer returns the destination chosen by the last Setup.
func (m *SlogManager) Writer() io.Writer {
	if m.out == nil {
		return consoleOut
	}
	return m.out
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
