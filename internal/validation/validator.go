package validation

import (
	"sync"

	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/pkg/schema"
)

// GraphValidator checks graphs against the structural invariants a runnable
// graph must satisfy. It never mutates its input and returns identical
// findings for identical graphs.
type GraphValidator struct {
	types      *nodetypes.Registry
	jsonSchema *JSONSchemaValidator
}

// NewGraphValidator creates a GraphValidator. types may be nil to use the
// built-in node catalog.
func NewGraphValidator(types *nodetypes.Registry) (*GraphValidator, error) {
	if types == nil {
		types = nodetypes.Builtin()
	}
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &GraphValidator{types: types, jsonSchema: jsv}, nil
}

// Validate runs every rule and returns the aggregated findings. Structural
// problems with nodes and edges do not short-circuit: branch and cycle
// checks run over the well-formed remainder.
func (v *GraphValidator) Validate(g schema.Graph) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	ix := v.index(g, result)
	result.Merge(v.validateEdges(g, ix))
	result.Merge(v.validateTriggers(g, ix))
	result.Merge(v.validateTerminals(g, ix))
	result.Merge(v.validateBranches(g, ix))
	result.Merge(v.validateConfigs(g, ix))
	result.Merge(v.validateDAG(g, ix))

	return result
}

// ValidateDocument checks a serialized graph against the document schema.
func (v *GraphValidator) ValidateDocument(raw []byte) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if err := v.jsonSchema.ValidateDocument(raw); err != nil {
		for _, msg := range violationsOf(err) {
			result.AddError("/", schema.IssueDocumentSchema, msg)
		}
	}
	return result
}

// Types exposes the node type registry the validator classifies with.
func (v *GraphValidator) Types() *nodetypes.Registry {
	return v.types
}

var (
	defaultOnce      sync.Once
	defaultValidator *GraphValidator
	defaultErr       error
)

// Validate checks g with the built-in node catalog.
func Validate(g schema.Graph) *schema.ValidationResult {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewGraphValidator(nil)
	})
	if defaultErr != nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, defaultErr.Error())
		return r
	}
	return defaultValidator.Validate(g)
}

// graphIndex holds the well-formed nodes of a graph keyed by ID, in authored order.
type graphIndex struct {
	order []string
	nodes map[string]schema.Node
	pos   map[string]int
}

func (ix *graphIndex) has(id string) bool {
	_, ok := ix.nodes[id]
	return ok
}

// index records malformed and duplicate nodes and builds the lookup used by
// the remaining rules. Only the first node with a given ID is indexed.
func (v *GraphValidator) index(g schema.Graph, result *schema.ValidationResult) *graphIndex {
	ix := &graphIndex{
		nodes: make(map[string]schema.Node, len(g.Nodes)),
		pos:   make(map[string]int, len(g.Nodes)),
	}
	for i, n := range g.Nodes {
		if n.ID == "" {
			result.AddError(nodeIndexPath(i), schema.IssueMalformedNode, "node has no id")
			continue
		}
		if n.Type == "" {
			result.AddNodeError(n.ID, schema.IssueMalformedNode, "node "+quote(n.ID)+" has no type")
			continue
		}
		if ix.has(n.ID) {
			result.AddNodeError(n.ID, schema.IssueDuplicateNodeID, "duplicate node id "+quote(n.ID))
			continue
		}
		ix.nodes[n.ID] = n
		ix.pos[n.ID] = i
		ix.order = append(ix.order, n.ID)
	}
	return ix
}
