package expressions

import (
	"context"

	"github.com/itchyny/gojq"

	"github.com/rendis/flowcore/pkg/schema"
)

// JQTransformer runs jq programs for the transform node. $ENV is empty
// inside programs.
type JQTransformer struct {
	progs *programCache[*gojq.Code]
}

func NewJQTransformer() *JQTransformer {
	return &JQTransformer{progs: newProgramCache[*gojq.Code](0)}
}

// Transform runs program against input. Integers are widened to float64
// first to match jq's number model. A single result is returned as is,
// several as []any and none as nil.
func (t *JQTransformer) Transform(ctx context.Context, program string, input any) (any, error) {
	if program == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty jq expression")
	}
	code, err := t.progs.get(program, compileJQ)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := code.RunWithContext(ctx, widenNumbers(input))
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, exprError(schema.ErrCodeExecution, "jq evaluation failed", program, err)
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	}
	return results, nil
}

func compileJQ(program string) (*gojq.Code, error) {
	query, err := gojq.Parse(program)
	if err != nil {
		return nil, exprError(schema.ErrCodeValidation, "jq parse error", program, err)
	}
	code, err := gojq.Compile(query, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, exprError(schema.ErrCodeValidation, "jq compile error", program, err)
	}
	return code, nil
}

// widenNumbers copies v with every Go integer or float32 turned into float64.
func widenNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = widenNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = widenNumbers(item)
		}
		return out
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	}
	return v
}

// exprError wraps an expression failure with the offending source attached.
func exprError(code, what, src string, cause error) *schema.FlowError {
	return schema.NewErrorf(code, "%s in %q: %s", what, src, cause.Error()).
		WithCause(cause).
		WithDetails(map[string]any{"expression": src})
}
