package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// LLMError wraps a failed or empty language-model call.
type LLMError struct {
	Message string
	Err     error
}

func (e *LLMError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *LLMError) Unwrap() error { return e.Err }

// GenerateParams are the knobs for a single generation call.
type GenerateParams struct {
	Prompt            string
	SystemInstruction string
	Temperature       float64
	MaxTokens         int
}

// ChatMessage is one turn in a multi-turn chat request.
type ChatMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// Client wraps the Anthropic SDK behind the TextGenerator contract so the
// generator can be tested against deterministic stubs.
type Client struct {
	client *anthropic.Client
	model  string
}

// NewClient builds a client for Anthropic Claude or a compatible proxy.
func NewClient(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Generate sends a single-prompt request and returns the response text.
// A transport failure or an empty response yields *LLMError.
func (c *Client) Generate(ctx context.Context, p GenerateParams) (string, error) {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(p.Prompt)),
	}
	return c.send(ctx, messages, p)
}

// Chat sends an ordered list of turns instead of a single prompt.
func (c *Client) Chat(ctx context.Context, turns []ChatMessage, p GenerateParams) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == "assistant" || t.Role == "model" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	return c.send(ctx, messages, p)
}

func (c *Client) send(ctx context.Context, messages []anthropic.MessageParam, p GenerateParams) (string, error) {
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(c.model)),
		MaxTokens:   anthropic.F(int64(maxTokens)),
		Temperature: anthropic.F(p.Temperature),
		Messages:    anthropic.F(messages),
	}
	if p.SystemInstruction != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(p.SystemInstruction),
		})
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", &LLMError{Message: "generation failed", Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
			text += b.Text
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &LLMError{Message: "empty response from model"}
	}
	return text, nil
}
