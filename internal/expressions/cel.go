package expressions

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/rendis/flowcore/pkg/schema"
)

// CELFilter tests list items against Common Expression Language predicates
// for the filter node. A predicate sees "item" (the element under test) and
// "input" (the whole node input).
type CELFilter struct {
	env   *cel.Env
	progs *programCache[cel.Program]
}

func NewCELFilter() (*CELFilter, error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("input", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &CELFilter{env: env, progs: newProgramCache[cel.Program](0)}, nil
}

// Filter keeps the items for which predicate holds, in order. A predicate
// that yields anything but a bool fails the whole call.
func (f *CELFilter) Filter(ctx context.Context, predicate string, items []any, input any) ([]any, error) {
	if predicate == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty CEL predicate")
	}
	prg, err := f.progs.get(predicate, f.compile)
	if err != nil {
		return nil, err
	}

	kept := make([]any, 0, len(items))
	for i, item := range items {
		out, _, err := prg.ContextEval(ctx, map[string]any{"item": item, "input": input})
		if err != nil {
			return nil, exprError(schema.ErrCodeExecution, fmt.Sprintf("CEL evaluation failed for item %d", i), predicate, err)
		}
		keep, ok := out.Value().(bool)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"CEL predicate %q returned %T for item %d, expected bool", predicate, out.Value(), i)
		}
		if keep {
			kept = append(kept, item)
		}
	}
	return kept, nil
}

func (f *CELFilter) compile(predicate string) (cel.Program, error) {
	ast, issues := f.env.Compile(predicate)
	if issues != nil && issues.Err() != nil {
		return nil, exprError(schema.ErrCodeValidation, "CEL compile error", predicate, issues.Err())
	}
	prg, err := f.env.Program(ast)
	if err != nil {
		return nil, exprError(schema.ErrCodeValidation, "CEL program error", predicate, err)
	}
	return prg, nil
}
