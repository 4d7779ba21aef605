// Package auditlog appends one JSON line per call event to a log file, giving
// an ordered, grep-able record of every conversation the agent handles.
package auditlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// Event names recorded in the log.
const (
	EventCallStart   = "call_start"
	EventInteraction = "interaction"
	EventCallEnd     = "call_end"
	EventError       = "error"
)

// Record is one JSONL entry.
type Record struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	CallSID   string    `json:"call_sid"`
	Timestamp time.Time `json:"timestamp"`

	Caller     string `json:"caller,omitempty"`
	CallerText string `json:"caller_text,omitempty"`
	AgentText  string `json:"agent_text,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	TurnCount  int    `json:"turn_count,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Logger writes call events as JSON lines. Safe for concurrent use.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewLogger opens (or creates) the JSONL log at path, appending to existing
// content.
func NewLogger(path string) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o770); err != nil {
			return nil, errors.Wrapf(err, "failed to create log directory %s", dir)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open interaction log %s", path)
	}
	return &Logger{file: file, enc: json.NewEncoder(file)}, nil
}

// LogCallStart records a new inbound call.
func (l *Logger) LogCallStart(callSID, caller string) {
	l.write(Record{Event: EventCallStart, CallSID: callSID, Caller: caller})
}

// LogInteraction records one utterance round trip.
func (l *Logger) LogInteraction(callSID, callerText, agentText string, duration time.Duration) {
	l.write(Record{
		Event:      EventInteraction,
		CallSID:    callSID,
		CallerText: callerText,
		AgentText:  agentText,
		DurationMs: duration.Milliseconds(),
	})
}

// LogCallEnd records the end of a call with its total duration and turn count.
func (l *Logger) LogCallEnd(callSID string, duration time.Duration, turnCount int) {
	l.write(Record{
		Event:      EventCallEnd,
		CallSID:    callSID,
		DurationMs: duration.Milliseconds(),
		TurnCount:  turnCount,
	})
}

// LogError records a processing failure at the named stage.
func (l *Logger) LogError(callSID, stage string, err error) {
	l.write(Record{Event: EventError, CallSID: callSID, Stage: stage, Error: err.Error()})
}

func (l *Logger) write(rec Record) {
	rec.ID = shortuuid.New()
	rec.Timestamp = time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()
	// Encode errors are swallowed: the audit log must never fail a call.
	_ = l.enc.Encode(rec)
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
