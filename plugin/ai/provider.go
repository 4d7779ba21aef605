// Package ai wraps the OpenAI-compatible chat-completion and embedding APIs
// used by the conversation engine and the knowledge retriever.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Config holds the AI provider configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float32
	MaxRetries     int
	Timeout        time.Duration
}

// DefaultConfig returns the default configuration. The chat endpoint defaults
// to OpenRouter, which speaks the OpenAI wire protocol.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://openrouter.ai/api/v1",
		ChatModel:      "openai/gpt-4o",
		EmbeddingModel: "text-embedding-3-small",
		MaxTokens:      500,
		Temperature:    0.7,
		MaxRetries:     3,
		Timeout:        30 * time.Second,
	}
}

// Message is one entry of the model context window.
type Message struct {
	Role       string // system, user, assistant, tool
	Content    string
	ToolCalls  []ToolRequest // assistant messages that request tools
	ToolCallID string        // tool messages: the request this result answers
}

// ToolRequest is a tool invocation requested by the model.
type ToolRequest struct {
	ID        string
	Name      string
	Arguments string // raw JSON as produced by the model
}

// ChatResult is the tagged outcome of one model turn: either a final spoken
// reply or one or more tool requests, never both.
type ChatResult struct {
	ToolCalls []ToolRequest
	Reply     string
}

// IsToolCall reports whether the model requested tool invocations.
func (r *ChatResult) IsToolCall() bool {
	return len(r.ToolCalls) > 0
}

// Provider provides chat completion with tool calling, plus embeddings.
type Provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates a new AI provider.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "openai/gpt-4o"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Chat performs one chat completion over the given context window. Tools, if
// any, are declared to the model; the result distinguishes a final reply from
// tool requests. Chat does not retry; the retry policy for conversation
// turns belongs to the engine.
func (p *Provider) Chat(ctx context.Context, messages []Message, tools []openai.Tool) (*ChatResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       p.config.ChatModel,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty chat response")
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) > 0 {
		calls := make([]ToolRequest, 0, len(choice.Message.ToolCalls))
		for _, tc := range choice.Message.ToolCalls {
			calls = append(calls, ToolRequest{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		return &ChatResult{ToolCalls: calls}, nil
	}

	return &ChatResult{Reply: choice.Message.Content}, nil
}

// Embedding generates an embedding vector for the given text, with bounded
// retry and exponential backoff.
func (p *Provider) Embedding(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := p.doWithRetry(ctx, func() error {
		req := openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(p.config.EmbeddingModel),
		}
		resp, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("empty embedding response")
		}
		result = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	return result, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, m)
	}
	return out
}

// doWithRetry executes a function with exponential backoff retry.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("AI request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}
