package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcore/pkg/schema"
)

func dagOnly(t *testing.T, g schema.Graph) *schema.ValidationResult {
	t.Helper()
	v, err := NewGraphValidator(nil)
	require.NoError(t, err)
	r := &schema.ValidationResult{}
	ix := v.index(g, r)
	return v.validateDAG(g, ix)
}

func TestDAG_NoCycle(t *testing.T) {
	g := chain("t", "a", "b")
	result := dagOnly(t, g)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestDAG_SimpleCycle(t *testing.T) {
	g := chain("t", "a", "b")
	g.Edges = append(g.Edges, schema.Edge{Source: "b", Target: "a"})

	result := dagOnly(t, g)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.IssueCycle, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "a, b")
}

func TestDAG_SelfLoop(t *testing.T) {
	g := chain("t", "a")
	g.Edges = append(g.Edges, schema.Edge{Source: "a", Target: "a"})

	result := dagOnly(t, g)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.IssueCycle, result.Errors[0].Code)
}

func TestDAG_IsolatedNodeWarns(t *testing.T) {
	g := chain("t", "a")
	g.Nodes = append(g.Nodes, logNode("island"))

	result := dagOnly(t, g)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, schema.IssueNodeIsolated, result.Warnings[0].Code)
	assert.Equal(t, "island", result.Warnings[0].NodeID)
	assert.Contains(t, result.Warnings[0].Message, "runs with the trigger payload")
	assert.NotContains(t, result.Warnings[0].Message, "never run")
}

func TestDAG_IgnoresDanglingEdges(t *testing.T) {
	g := chain("t", "a")
	g.Edges = append(g.Edges, schema.Edge{Source: "ghost", Target: "a"})

	result := dagOnly(t, g)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}
