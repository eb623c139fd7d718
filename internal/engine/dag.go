package engine

import (
	"slices"
	"strings"

	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/pkg/schema"
)

// Plan is the scheduling view of a graph: adjacency lists and a
// topological order whose ties are broken by authored node position.
type Plan struct {
	Graph    schema.Graph
	Order    []string
	Trigger  string
	index    map[string]int
	incoming map[string][]schema.Edge
	outgoing map[string][]schema.Edge
}

// BuildPlan indexes g and orders it with Kahn's algorithm. Duplicate ids,
// dangling edges and a trigger count other than one are STRUCTURAL_ERROR; a
// cycle is CYCLE_DETECTED. Nothing runs if BuildPlan fails.
func BuildPlan(g schema.Graph, types *nodetypes.Registry) (*Plan, error) {
	if types == nil {
		types = nodetypes.Builtin()
	}
	p := &Plan{
		Graph:    g,
		index:    make(map[string]int, len(g.Nodes)),
		incoming: make(map[string][]schema.Edge, len(g.Nodes)),
		outgoing: make(map[string][]schema.Edge, len(g.Nodes)),
	}

	var triggers []string
	for i, n := range g.Nodes {
		if n.ID == "" {
			return nil, schema.NewErrorf(schema.ErrCodeStructural, "node at position %d has no id", i)
		}
		if _, dup := p.index[n.ID]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeStructural, "duplicate node id %q", n.ID).WithNode(n.ID)
		}
		p.index[n.ID] = i
		if types.Category(n) == schema.CategoryTrigger {
			triggers = append(triggers, n.ID)
		}
	}
	if len(triggers) != 1 {
		return nil, schema.NewErrorf(schema.ErrCodeStructural, "graph must have exactly one trigger, found %d", len(triggers)).
			WithDetails(map[string]any{"triggers": triggers})
	}
	p.Trigger = triggers[0]

	for i, e := range g.Edges {
		_, okS := p.index[e.Source]
		_, okT := p.index[e.Target]
		if !okS || !okT {
			return nil, schema.NewErrorf(schema.ErrCodeStructural, "edge %d (%s -> %s) references a missing node", i, e.Source, e.Target)
		}
		p.outgoing[e.Source] = append(p.outgoing[e.Source], e)
		p.incoming[e.Target] = append(p.incoming[e.Target], e)
	}

	order, err := p.sort()
	if err != nil {
		return nil, err
	}
	p.Order = order
	return p, nil
}

// sort is Kahn's algorithm with a ready set ordered by authored index.
func (p *Plan) sort() ([]string, error) {
	nodes := p.Graph.Nodes
	inDegree := make([]int, len(nodes))
	for _, n := range nodes {
		for _, e := range p.outgoing[n.ID] {
			inDegree[p.index[e.Target]]++
		}
	}

	var ready []int
	for i, d := range inDegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, nodes[cur].ID)

		for _, e := range p.outgoing[nodes[cur].ID] {
			t := p.index[e.Target]
			inDegree[t]--
			if inDegree[t] == 0 {
				pos, _ := slices.BinarySearch(ready, t)
				ready = slices.Insert(ready, pos, t)
			}
		}
	}

	if len(order) != len(nodes) {
		var stuck []string
		for i, d := range inDegree {
			if d > 0 {
				stuck = append(stuck, nodes[i].ID)
			}
		}
		return nil, schema.NewErrorf(schema.ErrCodeCycleDetected, "graph contains a cycle; nodes never scheduled: %s", strings.Join(stuck, ", ")).
			WithDetails(map[string]any{"nodes": stuck})
	}
	return order, nil
}

// Node returns the node with the given id.
func (p *Plan) Node(id string) schema.Node {
	return p.Graph.Nodes[p.index[id]]
}

// Incoming returns the edges into id in authored edge order.
func (p *Plan) Incoming(id string) []schema.Edge {
	return p.incoming[id]
}

// ErrorOnly reports whether every edge into id is an error route. Such a
// node is reachable only when another node fails.
func (p *Plan) ErrorOnly(id string) bool {
	in := p.incoming[id]
	if len(in) == 0 {
		return false
	}
	for _, e := range in {
		if e.SourceHandle != schema.HandleError {
			return false
		}
	}
	return true
}

// Outgoing returns the edges out of id in authored edge order.
func (p *Plan) Outgoing(id string) []schema.Edge {
	return p.outgoing[id]
}
