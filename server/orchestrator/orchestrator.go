// Package orchestrator coordinates the lifecycle of phone calls: it owns the
// session registry and routes each utterance through speech recognition, the
// conversation engine, and speech synthesis. Turns within one call run
// strictly one at a time; distinct calls run concurrently.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/velora-ai/velora/internal/auditlog"
	velerrors "github.com/velora-ai/velora/internal/errors"
	"github.com/velora-ai/velora/internal/observability"
	"github.com/velora-ai/velora/server/session"
	"github.com/velora-ai/velora/server/voice"
	"github.com/velora-ai/velora/store"
)

// FallbackTranscription is spoken when the caller's audio could not be
// understood.
const FallbackTranscription = "I'm sorry, I didn't catch that. Could you say that again?"

const defaultTTSConcurrency = 4

// Engine is the conversation surface the orchestrator drives.
type Engine interface {
	Greet(sess *session.Session) (string, error)
	RespondToUtterance(ctx context.Context, sess *session.Session, utterance string) (string, error)
}

// Config tunes the orchestrator.
type Config struct {
	// TTSConcurrency bounds simultaneous synthesis requests across all calls.
	TTSConcurrency int64
}

// Orchestrator manages active calls end to end.
type Orchestrator struct {
	sessions    *session.Store
	engine      Engine
	transcriber voice.Transcriber
	synthesizer voice.Synthesizer
	audit       *auditlog.Logger
	records     *store.Store // optional; nil disables durable call records

	ttsSem *semaphore.Weighted
	logger *slog.Logger
}

// New creates an orchestrator. The transcriber, synthesizer, and records
// store may be nil; the corresponding paths are then disabled.
func New(sessions *session.Store, engine Engine, transcriber voice.Transcriber,
	synthesizer voice.Synthesizer, audit *auditlog.Logger, records *store.Store, cfg Config) *Orchestrator {
	if cfg.TTSConcurrency <= 0 {
		cfg.TTSConcurrency = defaultTTSConcurrency
	}
	return &Orchestrator{
		sessions:    sessions,
		engine:      engine,
		transcriber: transcriber,
		synthesizer: synthesizer,
		audit:       audit,
		records:     records,
		ttsSem:      semaphore.NewWeighted(cfg.TTSConcurrency),
		logger:      slog.Default(),
	}
}

// StartCall registers a new call and returns the greeting to speak. Transport
// metadata (Twilio custom parameters, chat channel) is recorded on the
// session. Starting an already-active call returns the greeting without
// creating a duplicate session.
func (o *Orchestrator) StartCall(ctx context.Context, callSID, callerPhone string, metadata map[string]string) (string, error) {
	sess, created := o.sessions.GetOrCreate(callSID, callerPhone)
	if !created {
		o.logger.Debug("call already active", observability.LogFieldCallID, callSID)
		return o.greetingFromTranscript(sess), nil
	}
	for key, value := range metadata {
		sess.SetMetadata(key, value)
	}

	observability.GlobalMetrics().RecordCallStarted()
	o.audit.LogCallStart(callSID, callerPhone)
	o.logger.Info("call started",
		observability.LogFieldCallID, callSID,
		observability.LogFieldCaller, callerPhone,
		"active_calls", o.sessions.ActiveCount())

	greeting, err := o.engine.Greet(sess)
	if err != nil {
		return "", err
	}
	return greeting, nil
}

// greetingFromTranscript replays the recorded opening line for a duplicate
// start, keeping the transcript free of repeated greetings.
func (o *Orchestrator) greetingFromTranscript(sess *session.Session) string {
	for _, turn := range sess.Transcript() {
		if turn.Role == session.RoleAgent && turn.Content != "" {
			return turn.Content
		}
	}
	return ""
}

// HandleUtterance processes one caller utterance and returns the agent's
// reply. A non-empty reply is always speakable, even when the error is
// non-nil: failures inside the turn come back as a spoken fallback plus the
// structured cause.
func (o *Orchestrator) HandleUtterance(ctx context.Context, callSID, utterance string) (string, error) {
	sess, err := o.sessions.Get(callSID)
	if err != nil {
		return "", velerrors.SessionNotFound(callSID)
	}

	// One turn at a time per call. A second utterance arriving mid-turn
	// waits here rather than interleaving.
	sess.BeginTurn()
	defer sess.EndTurn()

	if sess.Status() == session.StatusEnded {
		return "", velerrors.SessionClosed(callSID)
	}

	// Every log line of this turn shares one request ID.
	cc := observability.NewCallContext(o.logger, callSID)
	metrics := observability.GlobalMetrics()
	metrics.RecordUtterance()

	reply, err := o.engine.RespondToUtterance(ctx, sess, utterance)
	duration := cc.Duration()
	metrics.RecordDuration(duration)

	if err != nil {
		metrics.RecordUtteranceFailure()
		o.audit.LogError(callSID, "conversation", err)
		cc.Error("utterance failed", err,
			slog.String(observability.LogFieldErrorCode,
				string(velerrors.GetCodeFromError(err, velerrors.ErrCodeServiceUnavailable))),
			slog.Int64(observability.LogFieldDuration, duration.Milliseconds()))
		return reply, err
	}

	o.audit.LogInteraction(callSID, utterance, reply, duration)
	cc.Info("utterance handled",
		slog.Int64(observability.LogFieldDuration, duration.Milliseconds()))
	return reply, nil
}

// HandleAudio processes one caller utterance captured as 8 kHz mu-law audio
// and returns the reply as audio in the same format. Unintelligible audio
// gets a spoken retry prompt rather than an error.
func (o *Orchestrator) HandleAudio(ctx context.Context, callSID string, audio []byte) ([]byte, error) {
	if o.transcriber == nil {
		return nil, velerrors.ServiceUnavailable("speech recognition is not configured")
	}
	utterance, err := o.transcriber.Transcribe(ctx, audio)
	if err != nil {
		o.audit.LogError(callSID, "transcription", err)
		o.logger.Warn("transcription failed",
			observability.LogFieldCallID, callSID, "error", err)
		return o.synthesize(ctx, callSID, FallbackTranscription)
	}
	if utterance == "" {
		return o.synthesize(ctx, callSID, FallbackTranscription)
	}

	reply, err := o.HandleUtterance(ctx, callSID, utterance)
	if reply == "" && err != nil {
		return nil, err
	}
	return o.synthesize(ctx, callSID, reply)
}

// Speak renders text to audio for a call, used for greetings and prompts
// outside the utterance flow.
func (o *Orchestrator) Speak(ctx context.Context, callSID, text string) ([]byte, error) {
	return o.synthesize(ctx, callSID, text)
}

func (o *Orchestrator) synthesize(ctx context.Context, callSID, text string) ([]byte, error) {
	if o.synthesizer == nil {
		return nil, velerrors.ServiceUnavailable("speech synthesis is not configured")
	}
	if err := o.ttsSem.Acquire(ctx, 1); err != nil {
		return nil, velerrors.ContextCanceled(err)
	}
	defer o.ttsSem.Release(1)

	audio, err := o.synthesizer.Synthesize(ctx, text)
	if err != nil {
		o.audit.LogError(callSID, "synthesis", err)
		return nil, velerrors.Wrap(err, velerrors.ErrCodeServiceUnavailable, "speech synthesis failed")
	}
	return audio, nil
}

// EndCall ends a call, flushing its session to the audit sinks. Ending an
// unknown call returns a SESSION_NOT_FOUND error.
func (o *Orchestrator) EndCall(ctx context.Context, callSID string) error {
	sess, err := o.sessions.End(callSID)
	if err != nil {
		return velerrors.SessionNotFound(callSID)
	}
	o.flush(ctx, sess)
	return nil
}

// FlushEnded records an already-ended session in the audit sinks. Used by
// the idle-session reaper.
func (o *Orchestrator) FlushEnded(ctx context.Context, sess *session.Session) {
	o.flush(ctx, sess)
}

func (o *Orchestrator) flush(ctx context.Context, sess *session.Session) {
	duration := time.Since(sess.StartedAt)
	transcript := sess.Transcript()

	observability.GlobalMetrics().RecordCallEnded()
	o.audit.LogCallEnd(sess.ID, duration, len(transcript))
	o.logger.Info("call ended",
		observability.LogFieldCallID, sess.ID,
		observability.LogFieldDuration, duration.Milliseconds(),
		"turns", len(transcript),
		"active_calls", o.sessions.ActiveCount())

	if o.records == nil {
		return
	}
	rec := &store.CallRecord{
		CallSID:         sess.ID,
		CallerPhone:     sess.CallerPhone,
		StartedAt:       sess.StartedAt,
		EndedAt:         time.Now(),
		DurationSeconds: int(duration.Seconds()),
		TurnCount:       len(transcript),
		Transcript:      transcript,
	}
	if err := o.records.CreateCallRecord(ctx, rec); err != nil {
		o.logger.Error("failed to persist call record",
			observability.LogFieldCallID, sess.ID, "error", err)
	}
}

// ActiveCalls returns the number of calls currently in progress.
func (o *Orchestrator) ActiveCalls() int {
	return o.sessions.ActiveCount()
}
