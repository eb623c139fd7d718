package executors

import (
	"context"
	"log/slog"
	"strings"
)

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// logExec emits the resolved message through the runtime logger and
// outputs it.
func logExec(ctx context.Context, req *Request) (any, error) {
	msg := req.String("message", "{{input}}")
	level := strings.ToLower(req.String("level", "info"))
	if req.Runtime != nil {
		req.Runtime.Logger().Log(ctx, logLevel(level), msg, "node_id", req.NodeID)
	}
	return map[string]any{"message": msg, "level": level}, nil
}

// respondExec outputs the resolved body. A body that is a single template
// reference keeps the referenced value's type.
func respondExec(_ context.Context, req *Request) (any, error) {
	if !req.Has("body") {
		return req.Input, nil
	}
	return req.Value("body"), nil
}
