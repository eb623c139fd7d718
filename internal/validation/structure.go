package validation

import (
	"fmt"
	"strconv"

	"github.com/rendis/flowcore/pkg/schema"
)

func (v *GraphValidator) validateEdges(g schema.Graph, ix *graphIndex) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for i, e := range g.Edges {
		if !ix.has(e.Source) {
			result.AddError(schema.EdgePath(i), schema.IssueDanglingEdge,
				fmt.Sprintf("edge source %q does not exist", e.Source))
		}
		if !ix.has(e.Target) {
			result.AddError(schema.EdgePath(i), schema.IssueDanglingEdge,
				fmt.Sprintf("edge target %q does not exist", e.Target))
		}
	}
	return result
}

func (v *GraphValidator) validateTriggers(g schema.Graph, ix *graphIndex) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	var triggers []string
	for _, id := range ix.order {
		if v.types.Category(ix.nodes[id]) == schema.CategoryTrigger {
			triggers = append(triggers, id)
		}
	}
	if len(triggers) != 1 {
		result.AddError("nodes", schema.IssueTriggerCount,
			fmt.Sprintf("graph must have exactly one trigger node, found %d", len(triggers)))
	}

	for _, id := range triggers {
		for _, e := range g.Edges {
			if e.Target == id && ix.has(e.Source) {
				result.AddNodeError(id, schema.IssueTriggerHasIncoming,
					fmt.Sprintf("trigger %q has an incoming edge from %q", id, e.Source))
				break
			}
		}
	}
	return result
}

func (v *GraphValidator) validateTerminals(_ schema.Graph, ix *graphIndex) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for _, id := range ix.order {
		if v.types.IsTerminal(ix.nodes[id]) {
			return result
		}
	}
	result.AddError("nodes", schema.IssueTerminalMissing, "graph has no terminal node")
	return result
}

func (v *GraphValidator) validateConfigs(_ schema.Graph, ix *graphIndex) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for _, id := range ix.order {
		n := ix.nodes[id]
		s, ok := v.types.Get(n.Type)
		if !ok {
			result.AddNodeWarning(id, schema.IssueUnknownNodeType,
				fmt.Sprintf("node %q has unknown type %q", id, n.Type))
			continue
		}
		if n.Category != "" && n.Category != s.Category {
			result.AddNodeWarning(id, schema.IssueCategoryMismatch,
				fmt.Sprintf("node %q declares category %q but type %q is %q", id, n.Category, n.Type, s.Category))
		}
		for _, key := range s.Required {
			if IsEmptyValue(n.Config[key]) {
				result.AddNodeWarning(id, schema.IssueRequiredConfig,
					fmt.Sprintf("node %q is missing required config %q", id, key))
			}
		}
		if len(s.ConfigSchema) > 0 {
			if err := v.jsonSchema.ValidateConfig(n.Config, s.ConfigSchema); err != nil {
				for _, msg := range violationsOf(err) {
					result.AddNodeWarning(id, schema.IssueConfigSchema, fmt.Sprintf("node %q config: %s", id, msg))
				}
			}
		}
	}
	return result
}

// IsEmptyValue reports whether a config value counts as missing.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

func nodeIndexPath(i int) string {
	return "nodes[" + strconv.Itoa(i) + "]"
}

func quote(s string) string {
	return strconv.Quote(s)
}
