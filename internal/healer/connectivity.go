package healer

import (
	"fmt"
	"sort"

	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/pkg/schema"
)

// breakCycles removes back edges found by a depth-first walk that visits
// roots and successors in authored order.
func (p *pass) breakCycles() {
	const (
		unvisited = iota
		onStack
		done
	)

	succ := make(map[string][]int, len(p.g.Nodes))
	for i, e := range p.g.Edges {
		succ[e.Source] = append(succ[e.Source], i)
	}

	state := make(map[string]int, len(p.g.Nodes))
	back := make(map[int]bool)

	var visit func(id string)
	visit = func(id string) {
		state[id] = onStack
		for _, ei := range succ[id] {
			next := p.g.Edges[ei].Target
			switch state[next] {
			case onStack:
				back[ei] = true
			case unvisited:
				visit(next)
			}
		}
		state[id] = done
	}

	// Trigger first so edges leaving it are never the ones removed.
	if t := p.triggerID(); t != "" {
		visit(t)
	}
	for _, n := range p.g.Nodes {
		if state[n.ID] == unvisited {
			visit(n.ID)
		}
	}
	if len(back) == 0 {
		return
	}

	kept := p.g.Edges[:0:0]
	for i, e := range p.g.Edges {
		if back[i] {
			p.fix("removed edge %s to break a cycle", edgeLabel(e))
			continue
		}
		kept = append(kept, e)
	}
	p.g.Edges = kept
}

// repairIfElseHandles gives every if_else exactly one edge per branch handle,
// with distinct targets and a guaranteed true branch.
func (p *pass) repairIfElseHandles() {
	ids := make([]string, 0)
	for _, n := range p.g.Nodes {
		if n.Type == nodetypes.TypeIfElse {
			ids = append(ids, n.ID)
		}
	}
	for _, id := range ids {
		p.repairIfElse(id)
	}
}

func (p *pass) repairIfElse(id string) {
	taken := map[string]int{}
	for _, e := range p.g.Edges {
		if e.Source == id && (e.SourceHandle == schema.HandleTrue || e.SourceHandle == schema.HandleFalse) {
			taken[e.SourceHandle]++
		}
	}

	// Label stray edges onto free handles, true first.
	for i := range p.g.Edges {
		e := &p.g.Edges[i]
		if e.Source != id || isBranchHandle(e.SourceHandle) {
			continue
		}
		for _, h := range []string{schema.HandleTrue, schema.HandleFalse} {
			if taken[h] == 0 {
				p.fix("labeled edge %s as %q", edgeLabel(*e), h)
				e.SourceHandle = h
				taken[h]++
				break
			}
		}
	}

	seen := map[string]string{}
	for _, e := range p.removeEdges(func(e schema.Edge) bool {
		if e.Source != id || e.SourceHandle == schema.HandleError {
			return true
		}
		if !isBranchHandle(e.SourceHandle) {
			return false
		}
		if _, dup := seen[e.SourceHandle]; dup {
			return false
		}
		seen[e.SourceHandle] = e.Target
		return true
	}) {
		p.fix("removed extra edge %s from if_else %q", edgeLabel(e), id)
	}

	if t, f := seen[schema.HandleTrue], seen[schema.HandleFalse]; t != "" && t == f {
		p.removeEdges(func(e schema.Edge) bool {
			return !(e.Source == id && e.SourceHandle == schema.HandleFalse)
		})
		delete(seen, schema.HandleFalse)
		p.fix("removed false branch of %q because it shared its target %q with the true branch", id, t)
	}

	if seen[schema.HandleTrue] == "" {
		l := p.newNode(nodetypes.TypeLog)
		p.g.Nodes = append(p.g.Nodes, l)
		p.link(id, l.ID, schema.HandleTrue)
		p.fix("added true branch %q for if_else %q", l.ID, id)
	}
}

func isBranchHandle(h string) bool {
	return h == schema.HandleTrue || h == schema.HandleFalse || h == schema.HandleError
}

// linkIsolated chains every non-trigger node without an incoming edge from
// the previously linked node, starting at the trigger.
func (p *pass) linkIsolated() {
	trigger := p.triggerID()
	var orphans []string
	for _, n := range p.g.Nodes {
		if n.ID != trigger && !p.hasIncoming(n.ID) {
			orphans = append(orphans, n.ID)
		}
	}

	prev := trigger
	for _, id := range orphans {
		source, handle := prev, ""
		if n, ok := p.g.NodeByID(prev); ok {
			h, free := p.freeHandle(n)
			if free {
				handle = h
			} else {
				source = trigger
			}
		}
		p.link(source, id, handle)
		p.fix("connected isolated node %q from %q", id, source)
		prev = id
	}
}

func nodeRef(n schema.Node, pos int) string {
	if n.ID != "" {
		return fmt.Sprintf("%q", n.ID)
	}
	return fmt.Sprintf("node at position %d", pos)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
