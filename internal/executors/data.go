package executors

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"
	"maps"

	"github.com/google/uuid"

	"github.com/rendis/flowcore/internal/expressions"
	"github.com/rendis/flowcore/pkg/schema"
)

// nodeError attaches the node id to err, wrapping plain errors as
// EXECUTION_ERROR.
func nodeError(req *Request, err error) error {
	var fe *schema.FlowError
	if errors.As(err, &fe) {
		if fe.NodeID == "" {
			fe.NodeID = req.NodeID
		}
		return fe
	}
	return schema.NewErrorf(schema.ErrCodeExecution, "%s: %s", req.NodeType, err.Error()).
		WithNode(req.NodeID).
		WithCause(err)
}

// setExec produces the resolved values map, laid over the input when
// keep_input is set and the input is an object.
func setExec(_ context.Context, req *Request) (any, error) {
	out := make(map[string]any)
	if req.Bool("keep_input", false) {
		if in, ok := req.Input.(map[string]any); ok {
			maps.Copy(out, schema.CloneMap(in))
		}
	}
	values, _ := req.Value("values").(map[string]any)
	maps.Copy(out, values)
	return out, nil
}

type transformExecutor struct {
	jq *expressions.JQTransformer
}

func (e *transformExecutor) Execute(ctx context.Context, req *Request) (any, error) {
	expr := req.Template("expression", ".")
	out, err := e.jq.Transform(ctx, expr, req.Input)
	if err != nil {
		return nil, nodeError(req, err)
	}
	return out, nil
}

// filterExecutor keeps the items of a list for which a CEL predicate over
// item (and input) holds. The list is the input itself or the value at field.
type filterExecutor struct {
	cel *expressions.CELFilter
}

func (e *filterExecutor) Execute(ctx context.Context, req *Request) (any, error) {
	list := req.Input
	if field := req.String("field", ""); field != "" {
		v, ok := expressions.LookupPath(req.Input, field)
		if !ok {
			return nil, req.execErrorf("field %q not found in input", field)
		}
		list = v
	}
	items, ok := list.([]any)
	if !ok {
		return nil, req.execErrorf("expected a list, got %T", list)
	}
	kept, err := e.cel.Filter(ctx, req.Template("condition", "true"), items, req.Input)
	if err != nil {
		return nil, nodeError(req, err)
	}
	return kept, nil
}

type expressionExecutor struct {
	expr *expressions.ExprEvaluator
}

func (e *expressionExecutor) Execute(ctx context.Context, req *Request) (any, error) {
	code := req.Template("expression", "")
	if code == "" {
		return nil, req.configErrorf("expression is required")
	}
	out, err := e.expr.Eval(ctx, code, req.Input)
	if err != nil {
		return nil, nodeError(req, err)
	}
	return out, nil
}

// hashFunc returns a new hash.Hash for the given algorithm name.
func hashFunc(algorithm string) (func() hash.Hash, bool) {
	switch algorithm {
	case "sha256":
		return sha256.New, true
	case "sha512":
		return sha512.New, true
	case "sha384":
		return sha512.New384, true
	case "md5":
		return md5.New, true
	case "sha1":
		return sha1.New, true
	default:
		return nil, false
	}
}

// hashExec hashes data (default: the whole input, stringified).
func hashExec(_ context.Context, req *Request) (any, error) {
	algorithm := req.String("algorithm", "sha256")
	newHash, ok := hashFunc(algorithm)
	if !ok {
		return nil, req.configErrorf("unsupported hash algorithm %q", algorithm)
	}
	data := expressions.Stringify(req.Input)
	if req.Has("data") {
		data = req.String("data", "")
	}

	h := newHash()
	h.Write([]byte(data))
	return map[string]any{
		"hash":      hex.EncodeToString(h.Sum(nil)),
		"algorithm": algorithm,
	}, nil
}

func uuidExec(_ context.Context, _ *Request) (any, error) {
	return map[string]any{"uuid": uuid.NewString()}, nil
}
