package executors

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/pkg/schema"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewBuiltinRegistry(BuiltinConfig{})
	require.NoError(t, err)
	return reg
}

func run(t *testing.T, reg *Registry, rt Runtime, nodeType string, config map[string]any, input any) (any, error) {
	t.Helper()
	exec, err := reg.Get(nodeType)
	require.NoError(t, err)
	return exec.Execute(context.Background(), &Request{
		NodeID:   nodeType + "_1",
		NodeType: nodeType,
		Config:   config,
		Input:    input,
		Runtime:  rt,
	})
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("noop", ExecutorFunc(passThrough)))

	err := reg.Register("noop", ExecutorFunc(passThrough))
	assert.Equal(t, schema.ErrCodeConflict, schema.CodeOf(err))
	assert.Error(t, reg.Register("", ExecutorFunc(passThrough)))
	assert.Error(t, reg.Register("x", nil))

	_, err = reg.Get("missing")
	assert.Equal(t, schema.ErrCodeExecutorUnavailable, schema.CodeOf(err))
	assert.True(t, reg.Has("noop"))
}

func TestBuiltins_CoverCatalog(t *testing.T) {
	reg := newTestRegistry(t)
	var want []string
	for _, s := range nodetypes.BuiltinSchemas() {
		want = append(want, s.Type)
	}
	assert.ElementsMatch(t, want, reg.Types())
}

func TestTrigger_PassThrough(t *testing.T) {
	reg := newTestRegistry(t)
	in := map[string]any{"x": 1.0}
	out, err := run(t, reg, nil, nodetypes.TypeManualTrigger, nil, in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestIfElse(t *testing.T) {
	reg := newTestRegistry(t)
	cases := []struct {
		name   string
		cond   any
		input  any
		handle string
	}{
		{"true", "{{input.x}} > 1", map[string]any{"x": 5.0}, schema.HandleTrue},
		{"false", "{{input.x}} > 1", map[string]any{"x": 0.0}, schema.HandleFalse},
		{"unresolved is false", "{{input.missing}} > 1", map[string]any{}, schema.HandleFalse},
		{"no condition", nil, nil, schema.HandleFalse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := map[string]any{}
			if tc.cond != nil {
				cfg["condition"] = tc.cond
			}
			out, err := run(t, reg, NewEnv(Env{}), nodetypes.TypeIfElse, cfg, tc.input)
			require.NoError(t, err)
			b, ok := out.(*Branch)
			require.True(t, ok)
			assert.Equal(t, tc.handle, b.Handle)
			assert.Equal(t, tc.input, b.Data)
		})
	}
}

func TestSwitch(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := map[string]any{"value": "{{input.kind}}", "cases": []any{"a", "b"}}

	out, err := run(t, reg, nil, nodetypes.TypeSwitch, cfg, map[string]any{"kind": "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", out.(*Branch).Handle)

	out, err = run(t, reg, nil, nodetypes.TypeSwitch, cfg, map[string]any{"kind": "z"})
	require.NoError(t, err)
	assert.Equal(t, "", out.(*Branch).Handle)

	cfg["cases"] = []any{"a", DefaultCase}
	out, err = run(t, reg, nil, nodetypes.TypeSwitch, cfg, map[string]any{"kind": "z"})
	require.NoError(t, err)
	assert.Equal(t, DefaultCase, out.(*Branch).Handle)
}

func TestMerge(t *testing.T) {
	reg := newTestRegistry(t)
	in := map[string]any{"b": 2.0, "a": 1.0}

	out, err := run(t, reg, nil, nodetypes.TypeMerge, map[string]any{"mode": "object"}, in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out, err = run(t, reg, nil, nodetypes.TypeMerge, map[string]any{"mode": "array"}, in)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, out)

	_, err = run(t, reg, nil, nodetypes.TypeMerge, map[string]any{"mode": "zip"}, in)
	assert.Equal(t, schema.ErrCodeConfiguration, schema.CodeOf(err))
}

func TestWait(t *testing.T) {
	reg := newTestRegistry(t)
	out, err := run(t, reg, nil, nodetypes.TypeWait, map[string]any{"duration": 1}, "x")
	require.NoError(t, err)
	assert.Equal(t, "x", out)

	exec, _ := reg.Get(nodetypes.TypeWait)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exec.Execute(ctx, &Request{NodeID: "w", NodeType: "wait", Config: map[string]any{"duration": 5000}})
	assert.Equal(t, schema.ErrCodeCancelled, schema.CodeOf(err))
}

func TestStopAndError(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := run(t, reg, nil, nodetypes.TypeStopAndError, map[string]any{"message": "bad {{input.id}}"}, map[string]any{"id": "42"})
	require.Error(t, err)
	var fe *schema.FlowError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "bad 42", fe.Message)
	assert.Equal(t, "stop_and_error_1", fe.NodeID)
}

func flakyRegistry(t *testing.T, failures int32) (*Registry, *atomic.Int32) {
	t.Helper()
	reg := newTestRegistry(t)
	var calls atomic.Int32
	require.NoError(t, reg.Register("flaky", ExecutorFunc(func(_ context.Context, req *Request) (any, error) {
		n := calls.Add(1)
		if n <= failures {
			return nil, schema.NewError(schema.ErrCodeExecution, "transient")
		}
		return map[string]any{"ok": true, "attempt": int(n)}, nil
	})))
	return reg, &calls
}

func TestErrorHandler_RetriesThenSucceeds(t *testing.T) {
	reg, calls := flakyRegistry(t, 2)
	out, err := run(t, reg, NewEnv(Env{}), nodetypes.TypeErrorHandler, map[string]any{
		"node_type": "flaky", "max_retries": 3, "retry_delay": 1, "backoff": "constant",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true, "attempt": 3}, out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestErrorHandler_Fallback(t *testing.T) {
	reg, calls := flakyRegistry(t, 100)
	out, err := run(t, reg, NewEnv(Env{}), nodetypes.TypeErrorHandler, map[string]any{
		"node_type": "flaky", "max_retries": 2, "retry_delay": 0, "fallback": map[string]any{"ok": false},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": false}, out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestErrorHandler_ExhaustedWithoutFallback(t *testing.T) {
	reg, _ := flakyRegistry(t, 100)
	_, err := run(t, reg, NewEnv(Env{}), nodetypes.TypeErrorHandler, map[string]any{
		"node_type": "flaky", "max_retries": 1, "retry_delay": 0,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExecution, schema.CodeOf(err))
	assert.Contains(t, err.Error(), "transient")
}

func TestErrorHandler_ConfigErrorsNotRetried(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := run(t, reg, nil, nodetypes.TypeErrorHandler, map[string]any{}, nil)
	assert.Equal(t, schema.ErrCodeConfiguration, schema.CodeOf(err))

	_, err = run(t, reg, nil, nodetypes.TypeErrorHandler, map[string]any{"node_type": "nope"}, nil)
	assert.Equal(t, schema.ErrCodeConfiguration, schema.CodeOf(err))

	_, err = run(t, reg, nil, nodetypes.TypeErrorHandler, map[string]any{"node_type": nodetypes.TypeErrorHandler}, nil)
	assert.Equal(t, schema.ErrCodeConfiguration, schema.CodeOf(err))
}

func TestErrorHandler_PermanentErrorNotRetried(t *testing.T) {
	reg := newTestRegistry(t)
	var calls atomic.Int32
	require.NoError(t, reg.Register("misconfigured", ExecutorFunc(func(context.Context, *Request) (any, error) {
		calls.Add(1)
		return nil, schema.NewError(schema.ErrCodeConfiguration, "missing url")
	})))

	_, err := run(t, reg, NewEnv(Env{}), nodetypes.TypeErrorHandler, map[string]any{
		"node_type": "misconfigured", "max_retries": 3, "retry_delay": 0,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestErrorHandler_WrapsChildConfig(t *testing.T) {
	reg := newTestRegistry(t)
	out, err := run(t, reg, nil, nodetypes.TypeErrorHandler, map[string]any{
		"node_type":   nodetypes.TypeSet,
		"node_config": map[string]any{"values": map[string]any{"v": "{{input.n}}"}},
	}, map[string]any{"n": 7.0})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": 7.0}, out)
}

func TestSet(t *testing.T) {
	reg := newTestRegistry(t)
	in := map[string]any{"a": 1.0, "name": "ada"}

	out, err := run(t, reg, nil, nodetypes.TypeSet, map[string]any{
		"values": map[string]any{"greeting": "hi {{input.name}}", "copy": "{{input.a}}"},
	}, in)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"greeting": "hi ada", "copy": 1.0}, out)

	out, err = run(t, reg, nil, nodetypes.TypeSet, map[string]any{
		"keep_input": true, "values": map[string]any{"a": 2.0},
	}, in)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 2.0, "name": "ada"}, out)
	assert.Equal(t, 1.0, in["a"])
}

func TestTransform(t *testing.T) {
	reg := newTestRegistry(t)
	out, err := run(t, reg, nil, nodetypes.TypeTransform, map[string]any{"expression": ".user.name"},
		map[string]any{"user": map[string]any{"name": "ada"}})
	require.NoError(t, err)
	assert.Equal(t, "ada", out)

	_, err = run(t, reg, nil, nodetypes.TypeTransform, map[string]any{"expression": ".[[["}, nil)
	require.Error(t, err)
	var fe *schema.FlowError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "transform_1", fe.NodeID)
}

func TestFilter(t *testing.T) {
	reg := newTestRegistry(t)
	items := []any{
		map[string]any{"n": 1.0},
		map[string]any{"n": 2.0},
		map[string]any{"n": 3.0},
	}

	out, err := run(t, reg, nil, nodetypes.TypeFilter, map[string]any{"condition": "item.n > 1"}, items)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = run(t, reg, nil, nodetypes.TypeFilter, map[string]any{"condition": "item.n == 3", "field": "rows"},
		map[string]any{"rows": items})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"n": 3.0}}, out)

	_, err = run(t, reg, nil, nodetypes.TypeFilter, map[string]any{"condition": "true"}, "not a list")
	assert.Equal(t, schema.ErrCodeExecution, schema.CodeOf(err))
}

func TestExpression(t *testing.T) {
	reg := newTestRegistry(t)
	out, err := run(t, reg, nil, nodetypes.TypeExpression, map[string]any{"expression": "input.x * 2"},
		map[string]any{"x": 5.0})
	require.NoError(t, err)
	assert.Equal(t, 10.0, out)

	_, err = run(t, reg, nil, nodetypes.TypeExpression, map[string]any{}, nil)
	assert.Equal(t, schema.ErrCodeConfiguration, schema.CodeOf(err))
}

func TestHash(t *testing.T) {
	reg := newTestRegistry(t)
	out, err := run(t, reg, nil, nodetypes.TypeHash, map[string]any{"data": "abc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", out.(map[string]any)["hash"])

	out, err = run(t, reg, nil, nodetypes.TypeHash, map[string]any{"algorithm": "md5"}, "abc")
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", out.(map[string]any)["hash"])

	_, err = run(t, reg, nil, nodetypes.TypeHash, map[string]any{"algorithm": "crc"}, "abc")
	assert.Equal(t, schema.ErrCodeConfiguration, schema.CodeOf(err))
}

func TestUUID(t *testing.T) {
	reg := newTestRegistry(t)
	out, err := run(t, reg, nil, nodetypes.TypeUUID, nil, nil)
	require.NoError(t, err)
	_, perr := uuid.Parse(out.(map[string]any)["uuid"].(string))
	assert.NoError(t, perr)
}

func TestLog(t *testing.T) {
	reg := newTestRegistry(t)
	var buf bytes.Buffer
	env := NewEnv(Env{Log: slog.New(slog.NewTextHandler(&buf, nil))})

	out, err := run(t, reg, env, nodetypes.TypeLog, map[string]any{"message": "big {{input.x}}", "level": "warn"},
		map[string]any{"x": 5.0})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"message": "big 5", "level": "warn"}, out)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `msg="big 5"`)
}

func TestRespond(t *testing.T) {
	reg := newTestRegistry(t)
	in := map[string]any{"user": map[string]any{"id": 3.0}}

	out, err := run(t, reg, nil, nodetypes.TypeRespond, map[string]any{"body": "{{input.user}}"}, in)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 3.0}, out)

	out, err = run(t, reg, nil, nodetypes.TypeRespond, nil, in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestComputeBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	cases := []struct {
		backoff string
		attempt int
		want    time.Duration
	}{
		{"exponential", 0, 100 * time.Millisecond},
		{"exponential", 3, 800 * time.Millisecond},
		{"linear", 2, 300 * time.Millisecond},
		{"constant", 5, 100 * time.Millisecond},
		{"none", 1, 100 * time.Millisecond},
	}
	for _, tc := range cases {
		got := ComputeBackoff(RetryPolicy{Delay: base, Backoff: tc.backoff}, tc.attempt)
		assert.Equal(t, tc.want, got, "%s attempt %d", tc.backoff, tc.attempt)
	}

	capped := ComputeBackoff(RetryPolicy{Delay: base, Backoff: "exponential", MaxDelay: 250 * time.Millisecond}, 4)
	assert.Equal(t, 250*time.Millisecond, capped)
	assert.Zero(t, ComputeBackoff(RetryPolicy{}, 3))
}
