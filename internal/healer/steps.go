package healer

import (
	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/internal/validation"
	"github.com/rendis/flowcore/pkg/schema"
)

// dropMalformed removes nodes that cannot be classified, duplicate node ids,
// and edges that are dangling, self-referencing or repeated.
func (p *pass) dropMalformed() {
	seen := make(map[string]bool, len(p.g.Nodes))
	kept := make([]schema.Node, 0, len(p.g.Nodes))
	for i, n := range p.g.Nodes {
		if n.Type == "" && !n.Category.Valid() {
			p.fix("removed node at position %d: it has neither a type nor a category", i)
			continue
		}
		if n.ID != "" {
			if seen[n.ID] {
				p.fix("removed duplicate node %q at position %d", n.ID, i)
				continue
			}
			seen[n.ID] = true
		}
		kept = append(kept, n)
	}
	p.g.Nodes = kept

	type edgeKey struct{ source, target, handle string }
	seenEdges := make(map[edgeKey]bool, len(p.g.Edges))
	p.removeEdges(func(e schema.Edge) bool {
		switch {
		case !seen[e.Source] || !seen[e.Target]:
			p.fix("removed edge %s: endpoint does not exist", edgeLabel(e))
			return false
		case e.Source == e.Target:
			p.fix("removed self-loop on %q", e.Source)
			return false
		}
		k := edgeKey{e.Source, e.Target, e.SourceHandle}
		if seenEdges[k] {
			p.fix("removed duplicate edge %s", edgeLabel(e))
			return false
		}
		seenEdges[k] = true
		return true
	})
}

// fillFromRegistry completes type, category, id and config defaults.
func (p *pass) fillFromRegistry() {
	for i := range p.g.Nodes {
		n := &p.g.Nodes[i]

		if n.Type == "" {
			n.Type = nodetypes.DefaultType(n.Category)
			p.fix("set type of node at position %d to %q from its category", i, n.Type)
		}

		s, known := p.types.Get(n.Type)
		if !known {
			fallback := nodetypes.DefaultType(n.Category)
			if fallback == "" {
				fallback = nodetypes.TypeNoop
			}
			if n.Config == nil {
				n.Config = map[string]any{}
			}
			n.Config["_original_type"] = n.Type
			p.fix("replaced unknown type %q with %q", n.Type, fallback)
			n.Type = fallback
			s, _ = p.types.Get(fallback)
		}

		if n.Category != s.Category {
			n.Category = s.Category
			p.fix("set category of %s to %q", nodeRef(*n, i), s.Category)
		}

		if n.ID == "" {
			n.ID = p.uniqueID(n.Type)
			p.fix("assigned id %q to %s node at position %d", n.ID, n.Type, i)
		}

		for _, key := range sortedKeys(s.Defaults) {
			if _, present := n.Config[key]; present {
				continue
			}
			if n.Config == nil {
				n.Config = map[string]any{}
			}
			n.Config[key] = schema.CloneValue(s.Defaults[key])
			p.fix("set default %q on %q", key, n.ID)
		}
	}
}

// ensureSingleTrigger makes the graph start at exactly one trigger with no
// incoming edges.
func (p *pass) ensureSingleTrigger() {
	var triggers []string
	for _, n := range p.g.Nodes {
		if n.Category == schema.CategoryTrigger {
			triggers = append(triggers, n.ID)
		}
	}

	if len(triggers) == 0 {
		t := p.newNode(nodetypes.TypeManualTrigger)
		p.g.Nodes = append([]schema.Node{t}, p.g.Nodes...)
		p.fix("added trigger node %q", t.ID)
		return
	}

	keep := triggers[0]
	if len(triggers) > 1 {
		drop := make(map[string]bool, len(triggers)-1)
		for _, id := range triggers[1:] {
			drop[id] = true
		}
		kept := p.g.Nodes[:0:0]
		for _, n := range p.g.Nodes {
			if drop[n.ID] {
				p.fix("removed extra trigger %q; %q is the graph's trigger", n.ID, keep)
				continue
			}
			kept = append(kept, n)
		}
		p.g.Nodes = kept
		for _, e := range p.removeEdges(func(e schema.Edge) bool { return !drop[e.Source] && !drop[e.Target] }) {
			p.fix("removed edge %s attached to a removed trigger", edgeLabel(e))
		}
	}

	for _, e := range p.removeEdges(func(e schema.Edge) bool { return e.Target != keep }) {
		p.fix("removed edge %s into the trigger", edgeLabel(e))
	}
}

// ensureTerminal appends a log node when nothing ends the graph.
func (p *pass) ensureTerminal() {
	for _, n := range p.g.Nodes {
		if p.types.IsTerminal(n) {
			return
		}
	}

	source, handle := p.tail()
	l := p.newNode(nodetypes.TypeLog)
	p.g.Nodes = append(p.g.Nodes, l)
	p.link(source, l.ID, handle)
	p.fix("added terminal node %q connected from %q", l.ID, source)
}

// tail picks the last non-trigger node able to take another outgoing edge,
// falling back to the trigger.
func (p *pass) tail() (string, string) {
	for i := len(p.g.Nodes) - 1; i >= 0; i-- {
		n := p.g.Nodes[i]
		if n.Category == schema.CategoryTrigger {
			continue
		}
		if handle, ok := p.freeHandle(n); ok {
			return n.ID, handle
		}
	}
	return p.triggerID(), ""
}

// freeHandle returns the source handle a new outgoing edge from n should use.
// Switch nodes never take synthesized edges; if_else nodes only on an unused
// branch handle.
func (p *pass) freeHandle(n schema.Node) (string, bool) {
	switch n.Type {
	case nodetypes.TypeSwitch:
		return "", false
	case nodetypes.TypeIfElse:
		used := make(map[string]bool, 2)
		for _, e := range p.g.Edges {
			if e.Source == n.ID {
				used[e.SourceHandle] = true
			}
		}
		for _, h := range []string{schema.HandleTrue, schema.HandleFalse} {
			if !used[h] {
				return h, true
			}
		}
		return "", false
	default:
		return "", true
	}
}

// repairRequiredConfig fills required config keys and aligns switch cases
// with the handles actually wired.
func (p *pass) repairRequiredConfig() {
	for i := range p.g.Nodes {
		n := &p.g.Nodes[i]
		s, ok := p.types.Get(n.Type)
		if !ok {
			continue
		}
		for _, key := range s.Required {
			current, present := n.Config[key]
			if !validation.IsEmptyValue(current) {
				continue
			}
			candidate, hasDefault := s.Defaults[key]
			if placeholder := nodetypes.Placeholder(key); !hasDefault ||
				(validation.IsEmptyValue(candidate) && !validation.IsEmptyValue(placeholder)) {
				candidate = placeholder
			}
			if present && validation.IsEmptyValue(candidate) {
				continue
			}
			if n.Config == nil {
				n.Config = map[string]any{}
			}
			n.Config[key] = schema.CloneValue(candidate)
			p.fix("filled required config %q on %q", key, n.ID)
		}

		if n.Type == nodetypes.TypeSwitch {
			p.alignSwitchCases(n)
		}
	}
}

const defaultCase = "default"

func (p *pass) alignSwitchCases(n *schema.Node) {
	for i := range p.g.Edges {
		e := &p.g.Edges[i]
		if e.Source == n.ID && e.SourceHandle == "" {
			e.SourceHandle = defaultCase
			p.fix("labeled unlabeled switch edge %s -> %s as %q", e.Source, e.Target, defaultCase)
		}
	}

	known := make(map[string]bool)
	for _, c := range n.ConfigStrings("cases") {
		known[c] = true
	}
	var missing []string
	for _, e := range p.g.Edges {
		if e.Source != n.ID || e.SourceHandle == schema.HandleError || known[e.SourceHandle] {
			continue
		}
		known[e.SourceHandle] = true
		missing = append(missing, e.SourceHandle)
	}
	if len(missing) == 0 {
		return
	}

	var cases []any
	switch v := n.Config["cases"].(type) {
	case []any:
		cases = append(cases, v...)
	case []string:
		for _, c := range v {
			cases = append(cases, c)
		}
	}
	for _, m := range missing {
		cases = append(cases, m)
		p.fix("added case %q to switch %q", m, n.ID)
	}
	if n.Config == nil {
		n.Config = map[string]any{}
	}
	n.Config["cases"] = cases
}

// ensureSafetyNet appends a stop node on the trigger's error route when the
// graph talks to the outside world and has no error handling at all.
func (p *pass) ensureSafetyNet() {
	hasAction := false
	for _, n := range p.g.Nodes {
		switch n.Type {
		case nodetypes.TypeErrorHandler, nodetypes.TypeStopAndError:
			return
		}
		if p.types.IsAction(n) {
			hasAction = true
		}
	}
	if !hasAction {
		return
	}

	stop := p.newNode(nodetypes.TypeStopAndError)
	trigger := p.triggerID()
	p.g.Nodes = append(p.g.Nodes, stop)
	p.link(trigger, stop.ID, schema.HandleError)
	p.fix("added error route %q from %q", stop.ID, trigger)
}
