// Package healer repairs graphs into a minimally runnable shape. Repairs are
// applied in a fixed order and every change is reported as a readable fix.
package healer

import (
	"fmt"
	"sync"

	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/internal/validation"
	"github.com/rendis/flowcore/pkg/schema"
)

// Report is the outcome of a heal: the repaired graph, the applied fixes in
// order, and the validation result of the repaired graph.
type Report struct {
	Graph      schema.Graph             `json:"graph"`
	Fixes      []string                 `json:"fixes"`
	Validation *schema.ValidationResult `json:"validation"`
}

// Healer repairs graphs using a node type registry.
type Healer struct {
	types     *nodetypes.Registry
	validator *validation.GraphValidator
}

// New creates a Healer. types may be nil to use the built-in node catalog.
func New(types *nodetypes.Registry) (*Healer, error) {
	if types == nil {
		types = nodetypes.Builtin()
	}
	v, err := validation.NewGraphValidator(types)
	if err != nil {
		return nil, err
	}
	return &Healer{types: types, validator: v}, nil
}

// Heal returns a repaired copy of g and the fixes applied. The input is never
// mutated. Healing an already healed graph applies no fixes.
func (h *Healer) Heal(g schema.Graph) (schema.Graph, []string) {
	r := h.Repair(g)
	return r.Graph, r.Fixes
}

// Repair runs every step and re-validates the result.
func (h *Healer) Repair(g schema.Graph) *Report {
	p := &pass{types: h.types, g: g.Clone()}

	p.dropMalformed()
	p.fillFromRegistry()
	p.ensureSingleTrigger()
	p.ensureTerminal()
	p.repairRequiredConfig()
	p.breakCycles()
	p.repairIfElseHandles()
	p.linkIsolated()
	p.ensureSafetyNet()

	if p.fixes == nil {
		p.fixes = []string{}
	}
	if p.g.Nodes == nil {
		p.g.Nodes = []schema.Node{}
	}
	if p.g.Edges == nil {
		p.g.Edges = []schema.Edge{}
	}
	return &Report{
		Graph:      p.g,
		Fixes:      p.fixes,
		Validation: h.validator.Validate(p.g),
	}
}

var (
	defaultOnce   sync.Once
	defaultHealer *Healer
	defaultErr    error
)

// Heal repairs g with the built-in node catalog.
func Heal(g schema.Graph) (schema.Graph, []string) {
	defaultOnce.Do(func() {
		defaultHealer, defaultErr = New(nil)
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultHealer.Heal(g)
}

// pass holds the working copy for a single heal.
type pass struct {
	types *nodetypes.Registry
	g     schema.Graph
	fixes []string
}

func (p *pass) fix(format string, args ...any) {
	p.fixes = append(p.fixes, fmt.Sprintf(format, args...))
}

func (p *pass) hasNode(id string) bool {
	if id == "" {
		return false
	}
	for _, n := range p.g.Nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

// uniqueID returns the first "<base>_<n>" not used by any node.
func (p *pass) uniqueID(base string) string {
	for n := 1; ; n++ {
		id := fmt.Sprintf("%s_%d", base, n)
		if !p.hasNode(id) {
			return id
		}
	}
}

// newNode builds a node of a registered type with its schema defaults.
func (p *pass) newNode(nodeType string) schema.Node {
	n := schema.Node{ID: p.uniqueID(nodeType), Type: nodeType}
	if s, ok := p.types.Get(nodeType); ok {
		n.Category = s.Category
		n.Config = schema.CloneMap(s.Defaults)
	}
	return n
}

// link appends a synthesized edge with a deterministic id,
// "e_<source>_<target>[_<handle>]", suffixed when already taken.
func (p *pass) link(source, target, handle string) {
	base := "e_" + source + "_" + target
	if handle != "" {
		base += "_" + handle
	}
	id := base
	for n := 2; p.hasEdgeID(id); n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	p.g.Edges = append(p.g.Edges, schema.Edge{ID: id, Source: source, Target: target, SourceHandle: handle})
}

func (p *pass) hasEdgeID(id string) bool {
	for _, e := range p.g.Edges {
		if e.ID == id {
			return true
		}
	}
	return false
}

func (p *pass) triggerID() string {
	for _, n := range p.g.Nodes {
		if n.Category == schema.CategoryTrigger {
			return n.ID
		}
	}
	return ""
}

func (p *pass) removeEdges(keep func(schema.Edge) bool) []schema.Edge {
	var removed []schema.Edge
	kept := p.g.Edges[:0:0]
	for _, e := range p.g.Edges {
		if keep(e) {
			kept = append(kept, e)
		} else {
			removed = append(removed, e)
		}
	}
	p.g.Edges = kept
	return removed
}

func (p *pass) hasIncoming(id string) bool {
	for _, e := range p.g.Edges {
		if e.Target == id {
			return true
		}
	}
	return false
}

func edgeLabel(e schema.Edge) string {
	if e.SourceHandle != "" {
		return fmt.Sprintf("%s -[%s]-> %s", e.Source, e.SourceHandle, e.Target)
	}
	return fmt.Sprintf("%s -> %s", e.Source, e.Target)
}
