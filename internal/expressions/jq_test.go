package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcore/pkg/schema"
)

func TestJQTransformer_Transform(t *testing.T) {
	jq := NewJQTransformer()
	ctx := context.Background()
	input := map[string]any{
		"user":  map[string]any{"name": "ada", "tags": []any{"x", "y"}},
		"items": []any{map[string]any{"n": 1}, map[string]any{"n": 2}, map[string]any{"n": 3}},
	}

	tests := []struct {
		name    string
		program string
		want    any
	}{
		{"field", ".user.name", "ada"},
		{"missing", ".nope", nil},
		{"select", "[.items[] | select(.n > 1) | .n]", []any{2.0, 3.0}},
		{"object", "{who: .user.name, count: (.items | length)}", map[string]any{"who": "ada", "count": 3}},
		{"sum", "[.items[].n] | add", 6.0},
		{"multiple outputs", ".user.tags[]", []any{"x", "y"}},
		{"empty", "empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := jq.Transform(ctx, tt.program, input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestJQTransformer_NonObjectInput(t *testing.T) {
	jq := NewJQTransformer()

	out, err := jq.Transform(context.Background(), "map(. * 2)", []any{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []any{2.0, 4.0, 6.0}, out)

	out, err = jq.Transform(context.Background(), ".", "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	out, err = jq.Transform(context.Background(), ".a", nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestJQTransformer_Errors(t *testing.T) {
	jq := NewJQTransformer()
	ctx := context.Background()

	_, err := jq.Transform(ctx, "", nil)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	_, err = jq.Transform(ctx, ".a[", nil)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	_, err = jq.Transform(ctx, `error("boom")`, map[string]any{})
	assert.Equal(t, schema.ErrCodeExecution, schema.CodeOf(err))
}

func TestJQTransformer_NoEnvironment(t *testing.T) {
	t.Setenv("FLOWCORE_SECRET", "hunter2")
	jq := NewJQTransformer()

	out, err := jq.Transform(context.Background(), "$ENV.FLOWCORE_SECRET", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestJQTransformer_Concurrent(t *testing.T) {
	jq := NewJQTransformer()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := jq.Transform(context.Background(), ".v + 1", map[string]any{"v": n})
			assert.NoError(t, err)
			assert.Equal(t, float64(n+1), out)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, jq.progs.len())
}

func TestWidenNumbers(t *testing.T) {
	in := map[string]any{"a": 1, "b": []any{int64(2), float32(1.5)}, "c": "s", "d": nil}
	assert.Equal(t, map[string]any{"a": 1.0, "b": []any{2.0, 1.5}, "c": "s", "d": nil}, widenNumbers(in))
	assert.Nil(t, widenNumbers(nil))
	// The caller's map is left untouched.
	assert.Equal(t, 1, in["a"])
}
