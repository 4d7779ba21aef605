// Package agent implements the conversation engine: the tool-calling loop
// that turns one caller utterance into one spoken reply, backed by the
// scheduling and knowledge tools.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/velora-ai/velora/plugin/ai"
	velerrors "github.com/velora-ai/velora/internal/errors"
	"github.com/velora-ai/velora/internal/observability"
	"github.com/velora-ai/velora/server/session"
)

// Spoken fallbacks for turns the engine cannot complete. They are returned to
// the transport but never recorded as agent turns, so a later utterance
// replays a clean context.
const (
	// FallbackModelFailure is spoken when the language model is unreachable.
	FallbackModelFailure = "I'm sorry, I'm having a bit of trouble right now. Could you repeat that?"
	// FallbackLoopExceeded is spoken when a turn burns through its tool budget
	// without producing a reply.
	FallbackLoopExceeded = "I apologize for the delay. Let me help you with that. Could you tell me what you'd like to do?"
)

const (
	defaultMaxToolRounds = 5
	defaultHistoryLimit  = 40
	defaultHistoryHead   = 4
)

// turnState tracks where one utterance is in its reasoning loop.
type turnState int

const (
	stateAwaitingModel turnState = iota
	stateDispatchingTools
	stateFinalized
	stateAborted
)

// ModelClient is the language model surface the engine depends on.
type ModelClient interface {
	Chat(ctx context.Context, messages []ai.Message, tools []openai.Tool) (*ai.ChatResult, error)
}

// Config tunes the conversation engine.
type Config struct {
	SalonName string
	// Location resolves "today" in the system prompt. Defaults to UTC.
	Location *time.Location
	// MaxToolRounds bounds model round-trips that request tools within a
	// single utterance.
	MaxToolRounds int
	// HistoryLimit caps the transcript turns replayed to the model; beyond
	// it the first HistoryHead turns and the most recent remainder are kept.
	HistoryLimit int
	HistoryHead  int
}

func (c *Config) applyDefaults() {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = defaultMaxToolRounds
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	if c.HistoryHead <= 0 || c.HistoryHead >= c.HistoryLimit {
		c.HistoryHead = defaultHistoryHead
	}
}

// Engine drives the per-utterance reasoning loop. It is stateless across
// calls; all conversation state lives in the Session.
type Engine struct {
	model      ModelClient
	dispatcher *Dispatcher
	config     Config
	tools      []openai.Tool
	now        func() time.Time
}

// NewEngine creates a conversation engine.
func NewEngine(model ModelClient, dispatcher *Dispatcher, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		model:      model,
		dispatcher: dispatcher,
		config:     cfg,
		tools:      ToolSpecs(),
		now:        time.Now,
	}
}

// Greet records and returns the opening line for a newly connected call.
func (e *Engine) Greet(sess *session.Session) (string, error) {
	greeting := Greeting(e.config.SalonName)
	if err := sess.Append(session.Turn{Role: session.RoleAgent, Content: greeting}); err != nil {
		return "", velerrors.SessionClosed(sess.ID)
	}
	return greeting, nil
}

// RespondToUtterance runs one full conversation turn: the caller's words go
// into the transcript, the model reasons over the context window with up to
// MaxToolRounds tool rounds, and the final reply comes back. On failure the
// returned text is a spoken fallback and the error carries the structured
// cause; the fallback is not added to the transcript.
func (e *Engine) RespondToUtterance(ctx context.Context, sess *session.Session, utterance string) (string, error) {
	if err := sess.Append(session.Turn{Role: session.RoleCaller, Content: utterance}); err != nil {
		return "", velerrors.SessionClosed(sess.ID)
	}

	state := stateAwaitingModel
	rounds := 0

	for {
		switch state {
		case stateAwaitingModel:
			result, err := e.chatWithRetry(ctx, sess)
			if err != nil {
				return FallbackModelFailure, velerrors.LLMUnavailable(err)
			}

			if !result.IsToolCall() {
				if err := sess.Append(session.Turn{Role: session.RoleAgent, Content: result.Reply}); err != nil {
					return "", velerrors.SessionClosed(sess.ID)
				}
				state = stateFinalized
				return result.Reply, nil
			}

			if rounds >= e.config.MaxToolRounds {
				state = stateAborted
				slog.Warn("tool loop budget exhausted",
					observability.LogFieldCallID, sess.ID,
					observability.LogFieldRound, rounds)
				return FallbackLoopExceeded, velerrors.LoopBoundExceeded(e.config.MaxToolRounds)
			}

			if err := e.recordToolRequests(sess, result.ToolCalls); err != nil {
				return "", err
			}
			state = stateDispatchingTools

		case stateDispatchingTools:
			for _, call := range sess.PendingTools() {
				output := e.dispatcher.Dispatch(ctx, call)
				if err := sess.Append(session.Turn{
					Role:       session.RoleTool,
					Content:    output,
					ToolCallID: call.ID,
				}); err != nil {
					return "", velerrors.SessionClosed(sess.ID)
				}
			}
			sess.ClearPendingTools()
			rounds++
			state = stateAwaitingModel
		}
	}
}

func (e *Engine) recordToolRequests(sess *session.Session, requests []ai.ToolRequest) error {
	calls := make([]session.ToolCall, 0, len(requests))
	for _, req := range requests {
		calls = append(calls, session.ToolCall{
			ID:        req.ID,
			Name:      req.Name,
			Arguments: json.RawMessage(req.Arguments),
		})
	}
	if err := sess.Append(session.Turn{Role: session.RoleAgent, ToolCalls: calls}); err != nil {
		return velerrors.SessionClosed(sess.ID)
	}
	if err := sess.SetPendingTools(calls); err != nil {
		return velerrors.SessionClosed(sess.ID)
	}
	return nil
}

// chatWithRetry calls the model once and retries a single time on failure.
func (e *Engine) chatWithRetry(ctx context.Context, sess *session.Session) (*ai.ChatResult, error) {
	messages := e.contextWindow(sess)

	result, err := e.model.Chat(ctx, messages, e.tools)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	slog.Warn("model call failed, retrying once",
		observability.LogFieldCallID, sess.ID,
		"error", err)
	return e.model.Chat(ctx, messages, e.tools)
}

// contextWindow builds the model messages: system prompt plus the trimmed
// transcript.
func (e *Engine) contextWindow(sess *session.Session) []ai.Message {
	turns := trimTranscript(sess.Transcript(), e.config.HistoryLimit, e.config.HistoryHead)

	messages := make([]ai.Message, 0, len(turns)+1)
	messages = append(messages, ai.Message{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(e.config.SalonName, e.now().In(e.config.Location)),
	})
	for _, turn := range turns {
		messages = append(messages, toMessage(turn))
	}
	return messages
}

func toMessage(turn session.Turn) ai.Message {
	switch turn.Role {
	case session.RoleCaller:
		return ai.Message{Role: openai.ChatMessageRoleUser, Content: turn.Content}
	case session.RoleTool:
		return ai.Message{
			Role:       openai.ChatMessageRoleTool,
			Content:    turn.Content,
			ToolCallID: turn.ToolCallID,
		}
	default:
		msg := ai.Message{Role: openai.ChatMessageRoleAssistant, Content: turn.Content}
		for _, call := range turn.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ai.ToolRequest{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: string(call.Arguments),
			})
		}
		return msg
	}
}

// trimTranscript keeps the first head turns and the most recent remainder
// when the transcript exceeds limit. The window never starts on a TOOL turn
// and never ends the head on an unanswered tool request, so replayed context
// keeps every tool request paired with its results.
func trimTranscript(turns []session.Turn, limit, head int) []session.Turn {
	if len(turns) <= limit {
		return turns
	}

	kept := turns[:head]
	for len(kept) > 0 && len(kept[len(kept)-1].ToolCalls) > 0 {
		kept = kept[:len(kept)-1]
	}

	tailStart := len(turns) - (limit - head)
	for tailStart < len(turns) && turns[tailStart].Role == session.RoleTool {
		tailStart++
	}

	out := make([]session.Turn, 0, len(kept)+len(turns)-tailStart)
	out = append(out, kept...)
	out = append(out, turns[tailStart:]...)
	return out
}
