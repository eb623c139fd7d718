package executors

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/flowcore/internal/logging"
	"github.com/rendis/flowcore/internal/memory"
	"github.com/rendis/flowcore/internal/secrets"
	"github.com/rendis/flowcore/pkg/schema"
)

const defaultCallTimeout = 30 * time.Second

// Env is the standard Runtime. Zero-valued fields fall back to an in-memory
// conversation store, a 30s call timeout, and a discarding logger.
type Env struct {
	Vault   secrets.Vault
	Conv    memory.Store
	Timeout time.Duration
	LLM     Completer
	Log     *slog.Logger
}

// NewEnv fills the zero-valued fields of e.
func NewEnv(e Env) *Env {
	if e.Conv == nil {
		e.Conv = memory.NewInMemoryStore(0)
	}
	if e.Timeout <= 0 {
		e.Timeout = defaultCallTimeout
	}
	if e.Log == nil {
		e.Log = logging.Discard()
	}
	return &e
}

func (e *Env) Credentials(ctx context.Context, name string) (string, error) {
	if e.Vault == nil {
		return "", schema.NewErrorf(schema.ErrCodeConfiguration, "credential %q: no vault configured", name)
	}
	v, err := e.Vault.Resolve(ctx, name)
	if err != nil {
		if schema.CodeOf(err) == schema.ErrCodeNotFound {
			return "", schema.NewErrorf(schema.ErrCodeConfiguration, "credential %q is not configured", name).WithCause(err)
		}
		return "", err
	}
	return string(v), nil
}

func (e *Env) Memory() memory.Store          { return e.Conv }
func (e *Env) DefaultTimeout() time.Duration { return e.Timeout }
func (e *Env) Completer() Completer          { return e.LLM }
func (e *Env) Logger() *slog.Logger          { return e.Log }
