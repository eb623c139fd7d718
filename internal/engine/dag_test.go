package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcore/pkg/schema"
)

func node(id, typ string) schema.Node {
	return schema.Node{ID: id, Type: typ}
}

func edge(src, dst string) schema.Edge {
	return schema.Edge{Source: src, Target: dst}
}

func handleEdge(src, dst, handle string) schema.Edge {
	return schema.Edge{Source: src, Target: dst, SourceHandle: handle}
}

func TestBuildPlan_AuthoredOrderBreaksTies(t *testing.T) {
	g := schema.Graph{
		Nodes: []schema.Node{
			node("t", "manual_trigger"),
			node("z", "set"),
			node("a", "set"),
			node("m", "log"),
		},
		Edges: []schema.Edge{edge("t", "a"), edge("t", "z"), edge("z", "m"), edge("a", "m")},
	}
	plan, err := BuildPlan(g, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"t", "z", "a", "m"}, plan.Order)
	assert.Equal(t, "t", plan.Trigger)
}

func TestBuildPlan_DependenciesBeforeIndex(t *testing.T) {
	// "b" is authored first but depends on "a".
	g := schema.Graph{
		Nodes: []schema.Node{
			node("t", "manual_trigger"),
			node("b", "log"),
			node("a", "set"),
		},
		Edges: []schema.Edge{edge("t", "a"), edge("a", "b")},
	}
	plan, err := BuildPlan(g, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"t", "a", "b"}, plan.Order)
}

func TestBuildPlan_Cycle(t *testing.T) {
	g := schema.Graph{
		Nodes: []schema.Node{node("t", "manual_trigger"), node("a", "set"), node("b", "set"), node("out", "log")},
		Edges: []schema.Edge{edge("t", "a"), edge("a", "b"), edge("b", "a"), edge("b", "out")},
	}
	_, err := BuildPlan(g, nil)
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeCycleDetected, fe.Code)
	assert.Equal(t, []string{"a", "b", "out"}, fe.Details["nodes"])
}

func TestBuildPlan_StructuralErrors(t *testing.T) {
	cases := map[string]schema.Graph{
		"no trigger": {
			Nodes: []schema.Node{node("a", "set")},
		},
		"two triggers": {
			Nodes: []schema.Node{node("t1", "manual_trigger"), node("t2", "webhook_trigger")},
		},
		"duplicate id": {
			Nodes: []schema.Node{node("t", "manual_trigger"), node("t", "log")},
		},
		"missing id": {
			Nodes: []schema.Node{node("t", "manual_trigger"), {Type: "log"}},
		},
		"dangling edge": {
			Nodes: []schema.Node{node("t", "manual_trigger")},
			Edges: []schema.Edge{edge("t", "ghost")},
		},
	}
	for name, g := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildPlan(g, nil)
			assert.Equal(t, schema.ErrCodeStructural, schema.CodeOf(err))
		})
	}
}

func TestBuildPlan_Adjacency(t *testing.T) {
	g := schema.Graph{
		Nodes: []schema.Node{node("t", "manual_trigger"), node("if", "if_else"), node("y", "log"), node("n", "log")},
		Edges: []schema.Edge{edge("t", "if"), handleEdge("if", "y", "true"), handleEdge("if", "n", "false")},
	}
	plan, err := BuildPlan(g, nil)
	require.NoError(t, err)
	assert.Len(t, plan.Outgoing("if"), 2)
	assert.Len(t, plan.Incoming("y"), 1)
	assert.Equal(t, "if_else", plan.Node("if").Type)
}
