// Package llm adapts OpenAI-compatible chat completion endpoints to the
// executors.Completer contract used by llm_prompt nodes and the agent loop.
package llm

import (
	"context"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/rendis/flowcore/internal/executors"
	"github.com/rendis/flowcore/internal/memory"
	"github.com/rendis/flowcore/pkg/schema"
)

// DefaultModel is used when neither the request nor the config names one.
const DefaultModel = "gpt-4o-mini"

// Config configures an OpenAICompleter.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
}

// OpenAICompleter implements executors.Completer over the chat completions API.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

// NewOpenAICompleter builds a completer. An empty BaseURL targets the
// official API.
func NewOpenAICompleter(cfg Config) *OpenAICompleter {
	opts := []option.RequestOption{option.WithMaxRetries(max(cfg.MaxRetries, 0))}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAICompleter{client: openai.NewClient(opts...), model: model}
}

// Messages converts a completion request into chat messages: system prompt,
// history in order, then the prompt as the final user message.
func Messages(req executors.CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, t := range req.History {
		switch t.Role {
		case memory.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		case memory.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))
	return msgs
}

func (c *OpenAICompleter) Complete(ctx context.Context, req executors.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: Messages(req),
	})
	if err != nil {
		code := schema.ErrCodeExecution
		if ctx.Err() != nil {
			code = schema.ErrCodeTimeout
		}
		return "", schema.NewErrorf(code, "chat completion with %s failed", model).WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "chat completion with %s returned no choices", model)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var _ executors.Completer = (*OpenAICompleter)(nil)
