package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcore/pkg/schema"
)

func newCEL(t *testing.T) *CELFilter {
	t.Helper()
	f, err := NewCELFilter()
	require.NoError(t, err)
	return f
}

func TestCELFilter_Filter(t *testing.T) {
	f := newCEL(t)
	items := []any{
		map[string]any{"age": 12.0},
		map[string]any{"age": 40.0},
		map[string]any{"age": 18},
	}

	kept, err := f.Filter(context.Background(), "item.age >= input.min", items, map[string]any{"min": 18})
	require.NoError(t, err)
	assert.Equal(t, []any{items[1], items[2]}, kept)

	kept, err = f.Filter(context.Background(), "false", items, nil)
	require.NoError(t, err)
	assert.Empty(t, kept)
}

func TestCELFilter_StringFunctions(t *testing.T) {
	f := newCEL(t)
	items := []any{
		map[string]any{"age": 30.0, "name": "ada"},
		map[string]any{"age": 30.0, "name": "bob"},
		map[string]any{"age": 10.0, "name": "al"},
	}
	kept, err := f.Filter(context.Background(), `item.age >= 18 && item.name.startsWith("a")`, items, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{items[0]}, kept)
}

func TestCELFilter_NonBool(t *testing.T) {
	f := newCEL(t)
	_, err := f.Filter(context.Background(), "item", []any{"x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected bool")
}

func TestCELFilter_Errors(t *testing.T) {
	f := newCEL(t)
	ctx := context.Background()
	items := []any{map[string]any{}}

	_, err := f.Filter(ctx, "", items, nil)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	_, err = f.Filter(ctx, "item.", items, nil)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	_, err = f.Filter(ctx, "undeclared > 1", items, nil)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	_, err = f.Filter(ctx, "item.missing", items, nil)
	assert.Equal(t, schema.ErrCodeExecution, schema.CodeOf(err))
}
