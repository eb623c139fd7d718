package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rendis/flowcore/internal/executors"
	"github.com/rendis/flowcore/pkg/schema"
)

// DefaultSystemPrompt tells the model how to answer.
const DefaultSystemPrompt = `You are an agent working toward a goal by running workflow actions.
You receive JSON with the goal, the current state, the steps taken so far and the candidate actions.
Reply with a single JSON object and nothing else:
{"thought": string, "action": candidate id or "", "input": any, "confidence": 0..1, "continue": bool}
Set "continue" to false once the goal is met.`

// LLMProvider asks a chat model for decisions.
type LLMProvider struct {
	completer executors.Completer
	model     string
	system    string
}

// NewLLMProvider wraps completer. An empty model uses the completer's
// default; an empty system uses DefaultSystemPrompt.
func NewLLMProvider(completer executors.Completer, model, system string) *LLMProvider {
	if system == "" {
		system = DefaultSystemPrompt
	}
	return &LLMProvider{completer: completer, model: model, system: system}
}

// llmDecision mirrors Decision with an optional continue flag: when the
// model omits it, choosing an action means continue.
type llmDecision struct {
	Thought    string  `json:"thought"`
	Action     string  `json:"action"`
	Input      any     `json:"input"`
	Confidence float64 `json:"confidence"`
	Continue   *bool   `json:"continue"`
}

func (p *LLMProvider) Decide(ctx context.Context, dc *DecisionContext) (*Decision, error) {
	reply, err := p.completer.Complete(ctx, executors.CompletionRequest{
		Model:   p.model,
		System:  p.system,
		History: dc.Memory,
		Prompt:  dc.JSON(),
	})
	if err != nil {
		return nil, err
	}
	return ParseDecision(reply)
}

// ParseDecision reads a decision from a model reply, tolerating text or
// code fences around the JSON object.
func ParseDecision(content string) (*Decision, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty decision")
	}

	var parsed llmDecision
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return nil, schema.NewError(schema.ErrCodeValidation, "decision is not a JSON object").WithCause(err)
		}
		if err2 := json.Unmarshal([]byte(content[start:end+1]), &parsed); err2 != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "decision is not a JSON object").
				WithCause(errors.Join(err, err2))
		}
	}

	d := &Decision{
		Thought:    parsed.Thought,
		Action:     strings.TrimSpace(parsed.Action),
		Input:      parsed.Input,
		Confidence: parsed.Confidence,
		Continue:   wantsContinue(parsed),
	}
	return d, nil
}

func wantsContinue(p llmDecision) bool {
	if p.Continue != nil {
		return *p.Continue
	}
	return strings.TrimSpace(p.Action) != ""
}
