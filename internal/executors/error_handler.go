package executors

import (
	"context"
	"time"

	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/pkg/schema"
)

// errorHandlerExecutor runs a wrapped node type with node-local retries.
// After the last failed attempt the configured fallback value is returned
// if present, otherwise the last error.
type errorHandlerExecutor struct {
	registry *Registry
}

func (e *errorHandlerExecutor) Execute(ctx context.Context, req *Request) (any, error) {
	childType := req.String("node_type", "")
	if childType == "" {
		return nil, req.configErrorf("node_type is required")
	}
	if childType == nodetypes.TypeErrorHandler {
		return nil, req.configErrorf("cannot wrap another error_handler")
	}
	child, err := e.registry.Get(childType)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "error_handler: %s", err.Error()).WithNode(req.NodeID).WithCause(err)
	}

	policy := RetryPolicy{
		MaxRetries: max(req.Int("max_retries", 3), 0),
		Delay:      req.Duration("retry_delay", time.Second),
		Backoff:    req.String("backoff", "exponential"),
		MaxDelay:   req.Duration("max_delay", 0),
	}

	childConfig, _ := req.Config["node_config"].(map[string]any)
	childReq := &Request{
		NodeID:   req.NodeID,
		NodeType: childType,
		Config:   schema.CloneMap(childConfig),
		Input:    req.Input,
		Runtime:  req.Runtime,
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if werr := WaitForBackoff(ctx, ComputeBackoff(policy, attempt-1)); werr != nil {
				lastErr = werr
				break
			}
		}
		out, err := child.Execute(ctx, childReq)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if req.Runtime != nil {
			req.Runtime.Logger().Warn("wrapped node failed",
				"node_id", req.NodeID, "node_type", childType, "attempt", attempt+1, "error", err)
		}
		if !shouldRetry(err) {
			break
		}
	}

	if req.Has("fallback") {
		return req.Value("fallback"), nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeExecution, "error_handler: %s failed: %s", childType, lastErr.Error()).
		WithNode(req.NodeID).
		WithCause(lastErr)
}
