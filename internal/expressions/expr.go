package expressions

import (
	"context"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/flowcore/pkg/schema"
)

// exprEnv is the only scope an expression node sees.
type exprEnv struct {
	Input any `expr:"input"`
}

// ExprEvaluator runs expr-lang programs for the expression node. The node
// input is bound to "input"; now() and date() are unavailable.
type ExprEvaluator struct {
	progs *programCache[*vm.Program]
}

func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{progs: newProgramCache[*vm.Program](0)}
}

// Eval runs code with input bound to "input".
func (e *ExprEvaluator) Eval(ctx context.Context, code string, input any) (any, error) {
	if code == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}
	prg, err := e.progs.get(code, compileExpr)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := vm.Run(prg, exprEnv{Input: input})
	if err != nil {
		return nil, exprError(schema.ErrCodeExecution, "expr evaluation failed", code, err)
	}
	return out, nil
}

func compileExpr(code string) (*vm.Program, error) {
	prg, err := expr.Compile(code,
		expr.Env(exprEnv{}),
		expr.DisableBuiltin("now"),
		expr.DisableBuiltin("date"),
	)
	if err != nil {
		return nil, exprError(schema.ErrCodeValidation, "expr compile error", code, err)
	}
	return prg, nil
}
