package executors

import (
	"context"

	"github.com/rendis/flowcore/internal/memory"
)

// llmPromptExec sends the resolved prompt to the runtime completer. With a
// session_id the last max_turns turns of that session are sent along and the
// exchange is appended to it.
func llmPromptExec(ctx context.Context, req *Request) (any, error) {
	if req.Runtime == nil || req.Runtime.Completer() == nil {
		return nil, req.configErrorf("no language model is configured")
	}
	prompt := req.String("prompt", "")
	if prompt == "" {
		return nil, req.configErrorf("prompt is required")
	}
	session := req.String("session_id", "")
	maxTurns := req.Int("max_turns", 10)
	conv := req.Runtime.Memory()

	var history []memory.Turn
	if session != "" && conv != nil {
		h, err := conv.GetHistory(ctx, session, maxTurns)
		if err != nil {
			return nil, nodeError(req, err)
		}
		history = h
	}

	callCtx, cancel := context.WithTimeout(ctx, req.Duration("timeout", req.Runtime.DefaultTimeout()))
	defer cancel()

	reply, err := req.Runtime.Completer().Complete(callCtx, CompletionRequest{
		Model:   req.String("model", ""),
		System:  req.String("system", ""),
		History: history,
		Prompt:  prompt,
	})
	if err != nil {
		return nil, nodeError(req, err)
	}

	if session != "" && conv != nil {
		if err := conv.Append(ctx, session, memory.RoleUser, prompt); err != nil {
			return nil, nodeError(req, err)
		}
		if err := conv.Append(ctx, session, memory.RoleAssistant, reply); err != nil {
			return nil, nodeError(req, err)
		}
	}

	out := map[string]any{"response": reply}
	if session != "" {
		out["session_id"] = session
	}
	return out, nil
}
