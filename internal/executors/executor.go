// Package executors holds the node executor contract and the built-in
// executors for every node type in the catalog.
package executors

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/flowcore/internal/memory"
)

// NodeExecutor runs one node. The returned value becomes the node's output;
// a *Branch output additionally selects an outgoing handle.
type NodeExecutor interface {
	Execute(ctx context.Context, req *Request) (any, error)
}

// ExecutorFunc adapts a function to NodeExecutor.
type ExecutorFunc func(ctx context.Context, req *Request) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}

// Branch is the output of a branching node: Handle names the outgoing edge
// handle to follow and Data is what downstream nodes receive.
type Branch struct {
	Handle string `json:"handle"`
	Data   any    `json:"data"`
}

// Request carries a single node invocation.
type Request struct {
	NodeID   string
	NodeType string
	Config   map[string]any
	Input    any
	Runtime  Runtime
}

// Runtime is what an executor may reach outside its own config and input.
type Runtime interface {
	// Credentials resolves a named credential. A missing credential is a
	// CONFIGURATION_ERROR.
	Credentials(ctx context.Context, name string) (string, error)
	Memory() memory.Store
	DefaultTimeout() time.Duration
	Completer() Completer
	Logger() *slog.Logger
}

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	Model   string
	System  string
	History []memory.Turn
	Prompt  string
}

// Completer produces a model completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
