package nodetypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcore/pkg/schema"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Schema{Type: "custom", Category: schema.CategoryData}))

	s, ok := r.Get("custom")
	require.True(t, ok)
	assert.Equal(t, schema.CategoryData, s.Category)
	assert.True(t, r.Has("custom"))
	assert.False(t, r.Has("other"))
}

func TestRegistry_RegisterRejects(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Schema{Category: schema.CategoryData})
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	err = r.Register(Schema{Type: "x", Category: "misc"})
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	require.NoError(t, r.Register(Schema{Type: "x", Category: schema.CategoryLogic}))
	err = r.Register(Schema{Type: "x", Category: schema.CategoryLogic})
	assert.Equal(t, schema.ErrCodeConflict, schema.CodeOf(err))
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Schema{Type: "b", Category: schema.CategoryData}))
	require.NoError(t, r.Register(Schema{Type: "a", Category: schema.CategoryData}))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Type)
	assert.Equal(t, "b", list[1].Type)
}

func TestBuiltin_Catalog(t *testing.T) {
	reg := Builtin()
	assert.Len(t, reg.List(), len(BuiltinSchemas()))

	for _, c := range schema.Categories {
		def := DefaultType(c)
		s, ok := reg.Get(def)
		require.True(t, ok, "default type for %s must be registered", c)
		assert.Equal(t, c, s.Category)
	}
	assert.Equal(t, "", DefaultType("misc"))
}

func TestBuiltin_Classification(t *testing.T) {
	reg := Builtin()

	assert.True(t, reg.IsTerminal(schema.Node{Type: TypeLog}))
	assert.True(t, reg.IsTerminal(schema.Node{Type: TypeStopAndError}))
	assert.True(t, reg.IsTerminal(schema.Node{Type: TypeLLMPrompt}))
	assert.False(t, reg.IsTerminal(schema.Node{Type: TypeSet}))
	assert.True(t, reg.IsTerminal(schema.Node{Type: "slack_post", Category: schema.CategoryOutput}))

	assert.True(t, reg.IsAction(schema.Node{Type: TypeHTTPRequest}))
	assert.True(t, reg.IsAction(schema.Node{Type: TypeLLMPrompt}))
	assert.False(t, reg.IsAction(schema.Node{Type: TypeIfElse}))

	assert.True(t, reg.IsBranching(schema.Node{Type: TypeIfElse}))
	assert.True(t, reg.IsBranching(schema.Node{Type: TypeSwitch}))
	assert.False(t, reg.IsBranching(schema.Node{Type: TypeMerge}))

	assert.Equal(t, schema.CategoryLogic, reg.Category(schema.Node{Type: TypeIfElse, Category: schema.CategoryData}))
	assert.Equal(t, schema.CategoryAI, reg.Category(schema.Node{Type: "unknown", Category: schema.CategoryAI}))
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "GET", Placeholder("method"))
	assert.Equal(t, 30000, Placeholder("timeout"))
	assert.Equal(t, 1000, Placeholder("duration"))
	assert.Equal(t, 3, Placeholder("max_retries"))
	assert.Equal(t, "", Placeholder("url"))
}
