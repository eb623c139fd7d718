package validation

import (
	"fmt"
	"strings"

	"github.com/rendis/flowcore/pkg/schema"
)

// validateDAG detects cycles with Kahn's algorithm and warns about non-trigger
// nodes that no edge reaches.
func (v *GraphValidator) validateDAG(g schema.Graph, ix *graphIndex) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	inDegree := make(map[string]int, len(ix.order))
	succ := make(map[string][]string, len(ix.order))
	for _, id := range ix.order {
		inDegree[id] = 0
	}
	for _, e := range g.Edges {
		if !ix.has(e.Source) || !ix.has(e.Target) {
			continue
		}
		succ[e.Source] = append(succ[e.Source], e.Target)
		inDegree[e.Target]++
	}

	incoming := make(map[string]bool, len(ix.order))
	for id, d := range inDegree {
		incoming[id] = d > 0
	}

	queue := make([]string, 0, len(ix.order))
	for _, id := range ix.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range succ[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(ix.order) {
		var stuck []string
		for _, id := range ix.order {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		result.AddError("edges", schema.IssueCycle,
			fmt.Sprintf("graph contains a cycle; nodes never scheduled: %s", strings.Join(stuck, ", ")))
	}

	for _, id := range ix.order {
		if v.types.Category(ix.nodes[id]) == schema.CategoryTrigger {
			continue
		}
		if !incoming[id] {
			result.AddNodeWarning(id, schema.IssueNodeIsolated,
				fmt.Sprintf("node %q has no incoming edge; it runs with the trigger payload", id))
		}
	}

	return result
}
