package executors

import (
	"context"
	"slices"
	"time"

	"github.com/rendis/flowcore/internal/expressions"
	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/pkg/schema"
)

// DefaultCase is the switch handle taken when no case matches, if declared.
const DefaultCase = "default"

// passThrough returns the node input unchanged. Used by triggers and noop.
func passThrough(_ context.Context, req *Request) (any, error) {
	return req.Input, nil
}

type ifElseExecutor struct {
	conditions *expressions.ConditionEvaluator
}

func (e *ifElseExecutor) Execute(_ context.Context, req *Request) (any, error) {
	cond := req.Template("condition", "")
	handle := schema.HandleFalse
	if cond != "" && e.conditions.Evaluate(cond, req.Input) {
		handle = schema.HandleTrue
	}
	if req.Runtime != nil {
		req.Runtime.Logger().Debug("condition evaluated", "node_id", req.NodeID, "handle", handle)
	}
	return &Branch{Handle: handle, Data: req.Input}, nil
}

// switchExec routes on the stringified value. With no matching case the
// "default" case is taken when declared, otherwise no branch is live.
func switchExec(_ context.Context, req *Request) (any, error) {
	value := expressions.Stringify(req.Value("value"))
	cases := req.Strings("cases")
	handle := ""
	switch {
	case slices.Contains(cases, value):
		handle = value
	case slices.Contains(cases, DefaultCase):
		handle = DefaultCase
	}
	return &Branch{Handle: handle, Data: req.Input}, nil
}

// mergeExec joins fan-in input. In object mode the source-keyed map is
// returned as is; in array mode the values are listed in source id order.
func mergeExec(_ context.Context, req *Request) (any, error) {
	mode := req.String("mode", "object")
	switch mode {
	case "object":
		return req.Input, nil
	case "array":
		m, ok := req.Input.(map[string]any)
		if !ok {
			if req.Input == nil {
				return []any{}, nil
			}
			return []any{req.Input}, nil
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, m[k])
		}
		return out, nil
	default:
		return nil, req.configErrorf("unknown mode %q", mode)
	}
}

// waitExec sleeps for the configured duration and passes input through.
func waitExec(ctx context.Context, req *Request) (any, error) {
	d := req.Duration("duration", time.Second)
	if d < 0 {
		return nil, req.configErrorf("negative duration %s", d)
	}
	if err := WaitForBackoff(ctx, d); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeCancelled, "wait interrupted").WithNode(req.NodeID).WithCause(err)
	}
	return req.Input, nil
}

// stopAndErrorExec always fails with the configured message.
func stopAndErrorExec(_ context.Context, req *Request) (any, error) {
	msg := req.String("message", "workflow stopped")
	return nil, schema.NewError(schema.ErrCodeExecution, msg).
		WithNode(req.NodeID).
		WithDetails(map[string]any{"node_type": nodetypes.TypeStopAndError})
}
