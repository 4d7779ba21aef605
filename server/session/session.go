// Package session holds the per-call conversation state: the append-only
// transcript, caller metadata, and the ACTIVE/ENDED lifecycle. A Session is
// the unit of isolation; concurrent calls never share one.
package session

import (
	"encoding/json"
	"sync"
	"time"
)

// Status represents the lifecycle state of a call session.
type Status string

const (
	// StatusActive indicates the call is in progress.
	StatusActive Status = "ACTIVE"
	// StatusEnded indicates the call has ended; the session is immutable.
	StatusEnded Status = "ENDED"
)

// Role identifies the speaker of a transcript turn.
type Role string

const (
	// RoleCaller is the customer on the phone.
	RoleCaller Role = "CALLER"
	// RoleAgent is the AI receptionist.
	RoleAgent Role = "AGENT"
	// RoleTool is a tool result folded back into the conversation.
	RoleTool Role = "TOOL"
)

// ToolCall is a model-requested tool invocation recorded in the transcript.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Turn is a single entry in the conversation transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// ToolCalls is set on AGENT turns that request tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID is set on TOOL turns and links the result to its request.
	ToolCallID string    `json:"tool_call_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Session tracks the full state of one phone call.
type Session struct {
	ID          string
	CallerPhone string
	StartedAt   time.Time

	// turnMu serializes utterance processing for this call. Distinct calls
	// hold distinct locks, so cross-call concurrency is unaffected.
	turnMu sync.Mutex

	mu           sync.Mutex
	status       Status
	transcript   []Turn
	pendingTools []ToolCall
	metadata     map[string]string
	lastActivity time.Time
}

// New creates an ACTIVE session for the given call SID.
func New(callID, callerPhone string) *Session {
	now := time.Now()
	return &Session{
		ID:           callID,
		CallerPhone:  callerPhone,
		StartedAt:    now,
		status:       StatusActive,
		metadata:     make(map[string]string),
		lastActivity: now,
	}
}

// Status returns the current lifecycle status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Append adds a turn to the transcript.
// Returns ErrSessionClosed if the session has ended.
func (s *Session) Append(turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return ErrSessionClosed
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	s.transcript = append(s.transcript, turn)
	s.lastActivity = time.Now()
	return nil
}

// Transcript returns a copy of the transcript in conversational order.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// TranscriptLen returns the number of transcript turns.
func (s *Session) TranscriptLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// SetPendingTools records tool invocations requested by the model but not yet
// resolved within the current reasoning round.
func (s *Session) SetPendingTools(calls []ToolCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return ErrSessionClosed
	}
	s.pendingTools = append([]ToolCall(nil), calls...)
	return nil
}

// ClearPendingTools clears the pending tool set once all results have been
// folded back into the transcript.
func (s *Session) ClearPendingTools() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingTools = nil
}

// PendingTools returns a copy of the unresolved tool invocations.
func (s *Session) PendingTools() []ToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ToolCall(nil), s.pendingTools...)
}

// SetMetadata stores an opaque key-value pair on the session.
func (s *Session) SetMetadata(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
}

// Metadata returns a copy of the caller metadata.
func (s *Session) Metadata() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

// LastActivity returns the time of the most recent transcript mutation.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// End transitions the session to ENDED. The transition happens exactly once;
// subsequent calls return ErrSessionClosed.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return ErrSessionClosed
	}
	s.status = StatusEnded
	s.pendingTools = nil
	return nil
}

// BeginTurn acquires the per-call turn lock, blocking until any in-flight
// utterance for this call completes. Call EndTurn when done.
func (s *Session) BeginTurn() {
	s.turnMu.Lock()
}

// EndTurn releases the per-call turn lock.
func (s *Session) EndTurn() {
	s.turnMu.Unlock()
}
