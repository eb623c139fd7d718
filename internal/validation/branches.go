package validation

import (
	"fmt"

	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/pkg/schema"
)

func (v *GraphValidator) validateBranches(g schema.Graph, ix *graphIndex) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for _, id := range ix.order {
		n := ix.nodes[id]
		switch n.Type {
		case nodetypes.TypeIfElse:
			validateIfElse(g, ix, n, result)
		case nodetypes.TypeSwitch:
			validateSwitch(g, ix, n, result)
		}
	}
	return result
}

func validateIfElse(g schema.Graph, ix *graphIndex, n schema.Node, result *schema.ValidationResult) {
	targets := make(map[string][]string, 2)
	for _, e := range g.Outgoing(n.ID) {
		if !ix.has(e.Target) {
			continue
		}
		switch e.SourceHandle {
		case schema.HandleTrue, schema.HandleFalse:
			targets[e.SourceHandle] = append(targets[e.SourceHandle], e.Target)
		case schema.HandleError:
		default:
			result.AddNodeError(n.ID, schema.IssueBranchHandleInvalid,
				fmt.Sprintf("if_else %q has an edge to %q with handle %q; expected \"true\" or \"false\"", n.ID, e.Target, e.SourceHandle))
		}
	}

	trueTargets, falseTargets := targets[schema.HandleTrue], targets[schema.HandleFalse]
	if len(trueTargets) == 0 {
		result.AddNodeError(n.ID, schema.IssueBranchTrueMissing,
			fmt.Sprintf("if_else %q has no \"true\" branch", n.ID))
	}
	if len(falseTargets) == 0 {
		result.AddNodeWarning(n.ID, schema.IssueBranchFalseMissing,
			fmt.Sprintf("if_else %q has no \"false\" branch", n.ID))
	}
	for _, handle := range []string{schema.HandleTrue, schema.HandleFalse} {
		if ts := targets[handle]; len(ts) > 1 {
			result.AddNodeError(n.ID, schema.IssueBranchHandleDup,
				fmt.Sprintf("if_else %q has %d edges on handle %q", n.ID, len(ts), handle))
		}
	}
	if len(trueTargets) == 1 && len(falseTargets) == 1 && trueTargets[0] == falseTargets[0] {
		result.AddNodeError(n.ID, schema.IssueBranchTargetsShared,
			fmt.Sprintf("if_else %q routes both branches to %q", n.ID, trueTargets[0]))
	}
}

func validateSwitch(g schema.Graph, ix *graphIndex, n schema.Node, result *schema.ValidationResult) {
	cases := make(map[string]bool)
	for _, c := range n.ConfigStrings("cases") {
		cases[c] = true
	}
	for _, e := range g.Outgoing(n.ID) {
		if !ix.has(e.Target) || e.SourceHandle == schema.HandleError {
			continue
		}
		if !cases[e.SourceHandle] {
			result.AddNodeError(n.ID, schema.IssueSwitchHandleUnknown,
				fmt.Sprintf("switch %q has an edge to %q with handle %q which is not a configured case", n.ID, e.Target, e.SourceHandle))
		}
	}
}
