package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/flowcore/internal/engine"
	"github.com/rendis/flowcore/internal/executors"
	"github.com/rendis/flowcore/internal/llm"
	"github.com/rendis/flowcore/internal/logging"
	"github.com/rendis/flowcore/internal/memory"
	"github.com/rendis/flowcore/internal/reasoning"
	"github.com/rendis/flowcore/internal/secrets"
	"github.com/rendis/flowcore/internal/store"
	"github.com/rendis/flowcore/internal/streaming"
	"github.com/rendis/flowcore/pkg/schema"
)

// app is the wired set of components behind the run, agent and serve
// commands.
type app struct {
	cfg       Config
	logger    *slog.Logger
	store     *store.LibSQLStore
	vault     secrets.Vault
	conv      memory.Store
	completer executors.Completer
	registry  *executors.Registry
	engine    *engine.Engine
	agent     *reasoning.Loop
	hub       *streaming.MemoryHub

	closers []io.Closer
}

func newLogger(cfg Config, w io.Writer) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.slogLevel()})
	return slog.New(logging.NewCorrelationHandler(h))
}

// libsqlDSN turns a plain filesystem path into a file: URL. Paths that
// already carry a scheme go-libsql understands pass through unchanged.
func libsqlDSN(path string) string {
	for _, scheme := range []string{"file:", "libsql://", "http://", "https://"} {
		if strings.HasPrefix(path, scheme) {
			return path
		}
	}
	return "file:" + path
}

// localDBDir returns the directory holding a local database file, or ""
// for remote URLs.
func localDBDir(path string) string {
	if strings.Contains(path, "://") {
		return ""
	}
	path = strings.TrimPrefix(path, "file:")
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return ""
	}
	return filepath.Dir(path)
}

// newApp opens the store and builds the engine. The agent loop is built
// only when a completer is available.
func newApp(ctx context.Context, cfg Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if dir := localDBDir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "creating database directory").WithCause(err)
		}
	}
	s, err := store.NewLibSQLStore(libsqlDSN(cfg.DBPath))
	if err != nil {
		return nil, err
	}
	a.store = s
	a.closers = append(a.closers, s)
	if err := s.Migrate(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.VaultKey != "" {
		key, err := secrets.ParseMasterKey(cfg.VaultKey)
		if err != nil {
			a.Close()
			return nil, err
		}
		v, err := secrets.NewAESVault(s, secrets.VaultConfig{MasterKey: key})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.vault = v
	}

	if cfg.RedisURL != "" {
		rs, err := memory.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.conv = rs
		a.closers = append(a.closers, rs)
	} else {
		a.conv = memory.NewInMemoryStore(0)
	}

	if cfg.OpenAIKey != "" {
		a.completer = llm.NewOpenAICompleter(llm.Config{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.Model,
		})
	}

	reg, err := executors.NewBuiltinRegistry(executors.BuiltinConfig{})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = reg

	rt := executors.NewEnv(executors.Env{
		Vault:   a.vault,
		Conv:    a.conv,
		Timeout: cfg.callTimeout(),
		LLM:     a.completer,
		Log:     logger,
	})
	a.hub = streaming.NewMemoryHub()
	a.engine = engine.New(reg,
		engine.WithRuntime(rt),
		engine.WithRecorder(s),
		engine.WithLogger(logger),
		engine.WithPoolSize(cfg.PoolSize),
		engine.WithTransitionHook(a.hub.Transition),
	)

	if a.completer != nil {
		provider := reasoning.NewLLMProvider(a.completer, cfg.Model, "")
		a.agent = reasoning.NewLoop(provider, reg,
			reasoning.WithRuntime(rt),
			reasoning.WithMemory(a.conv, cfg.MemoryTurns),
			reasoning.WithIterationHook(store.NewAgentRecorder(s)),
			reasoning.WithLogger(logger),
		)
	}
	return a, nil
}

// requireAgent reports a configuration error when no completer is set.
func (a *app) requireAgent() error {
	if a.agent == nil {
		return schema.NewError(schema.ErrCodeConfiguration,
			"agent needs an OpenAI-compatible endpoint: set FLOWCORE_OPENAI_API_KEY")
	}
	return nil
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func stderrLogger(cfg Config) *slog.Logger {
	return newLogger(cfg, os.Stderr)
}
