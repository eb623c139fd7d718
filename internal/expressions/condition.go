package expressions

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Substituted conditions embed input values, so the cache is flushed once it
// grows past this many programs.
const maxCachedConditions = 4096

// ConditionEvaluator evaluates boolean branch conditions. References are
// substituted with JSON literals first, so the compiled program sees only
// literals, comparison and logical operators. Builtin functions are disabled
// and no variables are in scope.
type ConditionEvaluator struct {
	progs *programCache[*vm.Program]
}

// NewConditionEvaluator creates an evaluator with an empty program cache.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{progs: newProgramCache[*vm.Program](maxCachedConditions)}
}

// Evaluate reports whether cond holds for input. Any failure to substitute,
// compile or run the condition yields false.
func (c *ConditionEvaluator) Evaluate(cond string, input any) bool {
	ok, err := c.EvaluateErr(cond, input)
	return err == nil && ok
}

// EvaluateErr is Evaluate with the failure reason exposed for logging.
func (c *ConditionEvaluator) EvaluateErr(cond string, input any) (bool, error) {
	prg, err := c.progs.get(Substitute(cond, input), compileCondition)
	if err != nil {
		return false, err
	}
	out, err := vm.Run(prg, nil)
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}

func compileCondition(code string) (*vm.Program, error) {
	return expr.Compile(code, expr.AsBool(), expr.DisableAllBuiltins())
}

// Substitute replaces {{path}} references in cond with JSON literals of the
// resolved values. JSON null becomes nil. Unresolved references stay as
// written, which makes the condition fail to compile.
func Substitute(cond string, input any) string {
	return scan(cond, func(ref string) (string, bool) {
		v, ok := LookupPath(input, ref)
		if !ok {
			return "", false
		}
		if v == nil {
			return "nil", true
		}
		b, err := marshalLiteral(v)
		if err != nil {
			return "", false
		}
		return string(b), true
	})
}

var defaultConditions = NewConditionEvaluator()

// EvaluateCondition evaluates cond against input with a shared evaluator.
func EvaluateCondition(cond string, input any) bool {
	return defaultConditions.Evaluate(cond, input)
}
