package observability

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldRequestID is the field name for request ID.
	LogFieldRequestID = "request_id"
	// LogFieldCallID is the field name for call SID.
	LogFieldCallID = "call_sid"
	// LogFieldCaller is the field name for the caller phone number.
	LogFieldCaller = "caller"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldToolName is the field name for the tool name.
	LogFieldToolName = "tool"
	// LogFieldRound is the field name for the tool-loop round counter.
	LogFieldRound = "round"
	// LogFieldErrorCode is the field name for error code.
	LogFieldErrorCode = "error_code"
)

// SetupLogger installs the default slog logger for the process.
// Dev mode uses a human-readable text handler at debug level,
// prod uses JSON at info level.
func SetupLogger(dev bool) *slog.Logger {
	var handler slog.Handler
	if dev {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// CallContext carries per-call structured logging state through one utterance.
type CallContext struct {
	RequestID string
	CallID    string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewCallContext creates a new call context with a generated request ID.
func NewCallContext(logger *slog.Logger, callID string) *CallContext {
	return &CallContext{
		RequestID: uuid.New().String(),
		CallID:    callID,
		StartTime: time.Now(),
		Logger:    logger,
	}
}

// Info logs an info message.
func (c *CallContext) Info(msg string, attrs ...slog.Attr) {
	c.Logger.LogAttrs(context.Background(), slog.LevelInfo, msg, c.baseAttrsAppended(attrs...)...)
}

// Debug logs a debug message.
func (c *CallContext) Debug(msg string, attrs ...slog.Attr) {
	c.Logger.LogAttrs(context.Background(), slog.LevelDebug, msg, c.baseAttrsAppended(attrs...)...)
}

// Warn logs a warning message.
func (c *CallContext) Warn(msg string, attrs ...slog.Attr) {
	c.Logger.LogAttrs(context.Background(), slog.LevelWarn, msg, c.baseAttrsAppended(attrs...)...)
}

// Error logs an error message with the error.
func (c *CallContext) Error(msg string, err error, attrs ...slog.Attr) {
	allAttrs := append(attrs, slog.String("error", err.Error()))
	c.Logger.LogAttrs(context.Background(), slog.LevelError, msg, c.baseAttrsAppended(allAttrs...)...)
}

// Duration returns the elapsed time since the utterance started.
func (c *CallContext) Duration() time.Duration {
	return time.Since(c.StartTime)
}

// DurationMs returns the elapsed time in milliseconds.
func (c *CallContext) DurationMs() int64 {
	return c.Duration().Milliseconds()
}

func (c *CallContext) baseAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String(LogFieldRequestID, c.RequestID),
		slog.String(LogFieldCallID, c.CallID),
	}
}

func (c *CallContext) baseAttrsAppended(attrs ...slog.Attr) []slog.Attr {
	return append(c.baseAttrs(), attrs...)
}
