package agent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora-ai/velora/plugin/ai"
	velerrors "github.com/velora-ai/velora/internal/errors"
	"github.com/velora-ai/velora/server/session"
)

// scriptedModel replays a fixed sequence of chat outcomes.
type scriptedModel struct {
	results []*ai.ChatResult
	errs    []error
	calls   int

	lastMessages []ai.Message
}

func (m *scriptedModel) Chat(_ context.Context, messages []ai.Message, _ []openai.Tool) (*ai.ChatResult, error) {
	m.lastMessages = messages
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	return m.results[i], nil
}

func reply(text string) *ai.ChatResult {
	return &ai.ChatResult{Reply: text}
}

func toolCall(id, name, args string) *ai.ChatResult {
	return &ai.ChatResult{ToolCalls: []ai.ToolRequest{{ID: id, Name: name, Arguments: args}}}
}

func newTestEngine(model ModelClient) *Engine {
	dispatcher := NewDispatcher(&fakeGateway{}, &fakeKnowledge{})
	return NewEngine(model, dispatcher, Config{SalonName: "Luxe Beauty Salon"})
}

func TestGreet(t *testing.T) {
	engine := newTestEngine(&scriptedModel{})
	sess := session.New("CA1", "+15550001111")

	greeting, err := engine.Greet(sess)
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Luxe Beauty Salon! Thank you for calling. How can I help you today?", greeting)

	turns := sess.Transcript()
	require.Len(t, turns, 1)
	assert.Equal(t, session.RoleAgent, turns[0].Role)
}

func TestRespondPlainReply(t *testing.T) {
	model := &scriptedModel{results: []*ai.ChatResult{reply("We're open nine to seven.")}}
	engine := newTestEngine(model)
	sess := session.New("CA1", "+15550001111")

	text, err := engine.RespondToUtterance(context.Background(), sess, "what are your hours?")
	require.NoError(t, err)
	assert.Equal(t, "We're open nine to seven.", text)

	turns := sess.Transcript()
	require.Len(t, turns, 2)
	assert.Equal(t, session.RoleCaller, turns[0].Role)
	assert.Equal(t, session.RoleAgent, turns[1].Role)

	// The context window carries the system prompt first.
	require.NotEmpty(t, model.lastMessages)
	assert.Equal(t, openai.ChatMessageRoleSystem, model.lastMessages[0].Role)
	assert.Contains(t, model.lastMessages[0].Content, "Luxe Beauty Salon")
}

func TestRespondWithToolRound(t *testing.T) {
	model := &scriptedModel{results: []*ai.ChatResult{
		toolCall("call_1", ToolCheckAvailability, `{"date":"2026-09-02","service":"Haircut"}`),
		reply("We have nothing open that day, sorry."),
	}}
	engine := newTestEngine(model)
	sess := session.New("CA1", "+15550001111")

	text, err := engine.RespondToUtterance(context.Background(), sess, "anything tomorrow?")
	require.NoError(t, err)
	assert.Equal(t, "We have nothing open that day, sorry.", text)

	turns := sess.Transcript()
	require.Len(t, turns, 4)
	assert.Equal(t, session.RoleCaller, turns[0].Role)
	require.Len(t, turns[1].ToolCalls, 1)
	assert.Equal(t, ToolCheckAvailability, turns[1].ToolCalls[0].Name)
	assert.Equal(t, session.RoleTool, turns[2].Role)
	assert.Equal(t, "call_1", turns[2].ToolCallID)
	assert.Contains(t, turns[2].Content, "no_slots")
	assert.Equal(t, session.RoleAgent, turns[3].Role)

	assert.Empty(t, sess.PendingTools())

	// The second model call saw the tool result as a tool-role message.
	var sawToolMessage bool
	for _, msg := range model.lastMessages {
		if msg.Role == openai.ChatMessageRoleTool {
			sawToolMessage = true
			assert.Equal(t, "call_1", msg.ToolCallID)
		}
	}
	assert.True(t, sawToolMessage)
}

func TestRespondLoopBound(t *testing.T) {
	model := &scriptedModel{results: []*ai.ChatResult{
		toolCall("call_x", ToolSearchKnowledgeBase, `{"query":"hours"}`),
	}}
	engine := newTestEngine(model)
	sess := session.New("CA1", "+15550001111")

	text, err := engine.RespondToUtterance(context.Background(), sess, "hello")
	assert.Equal(t, FallbackLoopExceeded, text)
	require.Error(t, err)
	assert.True(t, velerrors.IsCode(err, velerrors.ErrCodeLoopBoundExceeded))

	// 5 dispatched rounds plus the final refused request.
	assert.Equal(t, 6, model.calls)

	// The fallback is not recorded; the transcript ends on the last tool
	// result so the attempted work stays visible.
	turns := sess.Transcript()
	assert.Equal(t, session.RoleTool, turns[len(turns)-1].Role)
	for _, turn := range turns {
		assert.NotEqual(t, FallbackLoopExceeded, turn.Content)
	}
}

func TestRespondModelFailure(t *testing.T) {
	boom := fmt.Errorf("upstream 503")
	model := &scriptedModel{errs: []error{boom, boom}, results: []*ai.ChatResult{reply("unused")}}
	engine := newTestEngine(model)
	sess := session.New("CA1", "+15550001111")

	text, err := engine.RespondToUtterance(context.Background(), sess, "hello")
	assert.Equal(t, FallbackModelFailure, text)
	require.Error(t, err)
	assert.True(t, velerrors.IsCode(err, velerrors.ErrCodeLLMUnavailable))
	assert.Equal(t, 2, model.calls)

	// Only the caller turn was recorded.
	turns := sess.Transcript()
	require.Len(t, turns, 1)
	assert.Equal(t, session.RoleCaller, turns[0].Role)
}

func TestRespondModelRecoversOnRetry(t *testing.T) {
	model := &scriptedModel{
		errs:    []error{fmt.Errorf("transient"), nil},
		results: []*ai.ChatResult{reply("first"), reply("Hello there!")},
	}
	engine := newTestEngine(model)
	sess := session.New("CA1", "+15550001111")

	text, err := engine.RespondToUtterance(context.Background(), sess, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", text)
	assert.Equal(t, 2, model.calls)
}

func TestRespondEndedSession(t *testing.T) {
	engine := newTestEngine(&scriptedModel{results: []*ai.ChatResult{reply("hi")}})
	sess := session.New("CA1", "+15550001111")
	require.NoError(t, sess.End())

	_, err := engine.RespondToUtterance(context.Background(), sess, "hello")
	require.Error(t, err)
	assert.True(t, velerrors.IsCode(err, velerrors.ErrCodeSessionClosed))
}

func TestTrimTranscript(t *testing.T) {
	var turns []session.Turn
	turns = append(turns, session.Turn{Role: session.RoleAgent, Content: "greeting"})
	for i := 0; i < 30; i++ {
		turns = append(turns,
			session.Turn{Role: session.RoleCaller, Content: fmt.Sprintf("q%d", i)},
			session.Turn{Role: session.RoleAgent, Content: fmt.Sprintf("a%d", i)},
		)
	}

	trimmed := trimTranscript(turns, 40, 4)
	require.Len(t, trimmed, 40)
	assert.Equal(t, "greeting", trimmed[0].Content)
	assert.Equal(t, turns[len(turns)-1].Content, trimmed[len(trimmed)-1].Content)
}

func TestTrimTranscriptSkipsOrphanToolTurns(t *testing.T) {
	var turns []session.Turn
	for i := 0; i < 50; i++ {
		turns = append(turns, session.Turn{Role: session.RoleCaller, Content: fmt.Sprintf("q%d", i)})
	}
	// Force the tail boundary onto tool results.
	turns[14] = session.Turn{Role: session.RoleTool, Content: "result", ToolCallID: "c1"}
	turns[15] = session.Turn{Role: session.RoleTool, Content: "result", ToolCallID: "c2"}

	trimmed := trimTranscript(turns, 40, 4)
	assert.NotEqual(t, session.RoleTool, trimmed[4].Role)
	for i, turn := range trimmed {
		if turn.Role == session.RoleTool {
			require.Greater(t, i, 0)
			prev := trimmed[i-1]
			assert.True(t, prev.Role == session.RoleTool || len(prev.ToolCalls) > 0,
				"tool turn at %d has no preceding request", i)
		}
	}
}

func TestTrimTranscriptUnderLimit(t *testing.T) {
	turns := []session.Turn{
		{Role: session.RoleCaller, Content: "hi"},
		{Role: session.RoleAgent, Content: "hello"},
	}
	assert.Len(t, trimTranscript(turns, 40, 4), 2)
}

func TestSystemPromptDateContext(t *testing.T) {
	now := time.Date(2026, 9, 2, 14, 30, 0, 0, time.UTC)
	prompt := systemPrompt("Luxe Beauty Salon", now)
	assert.Contains(t, prompt, "Luxe Beauty Salon")
	assert.Contains(t, prompt, "Wednesday")
	assert.Contains(t, prompt, "September 2, 2026")
	assert.Contains(t, prompt, "2:30 PM")
}
