package executors

import (
	"github.com/rendis/flowcore/internal/expressions"
	"github.com/rendis/flowcore/internal/nodetypes"
)

// BuiltinConfig configures the built-in executors.
type BuiltinConfig struct {
	HTTP HTTPConfig
}

// RegisterBuiltins registers an executor for every built-in node type.
func RegisterBuiltins(reg *Registry, cfg BuiltinConfig) error {
	cel, err := expressions.NewCELFilter()
	if err != nil {
		return err
	}

	all := map[string]NodeExecutor{
		nodetypes.TypeManualTrigger:   ExecutorFunc(passThrough),
		nodetypes.TypeWebhookTrigger:  ExecutorFunc(passThrough),
		nodetypes.TypeScheduleTrigger: ExecutorFunc(passThrough),

		nodetypes.TypeIfElse:       &ifElseExecutor{conditions: expressions.NewConditionEvaluator()},
		nodetypes.TypeSwitch:       ExecutorFunc(switchExec),
		nodetypes.TypeMerge:        ExecutorFunc(mergeExec),
		nodetypes.TypeWait:         ExecutorFunc(waitExec),
		nodetypes.TypeNoop:         ExecutorFunc(passThrough),
		nodetypes.TypeErrorHandler: &errorHandlerExecutor{registry: reg},
		nodetypes.TypeStopAndError: ExecutorFunc(stopAndErrorExec),

		nodetypes.TypeSet:        ExecutorFunc(setExec),
		nodetypes.TypeTransform:  &transformExecutor{jq: expressions.NewJQTransformer()},
		nodetypes.TypeFilter:     &filterExecutor{cel: cel},
		nodetypes.TypeExpression: &expressionExecutor{expr: expressions.NewExprEvaluator()},
		nodetypes.TypeHash:       ExecutorFunc(hashExec),
		nodetypes.TypeUUID:       ExecutorFunc(uuidExec),

		nodetypes.TypeLog:         ExecutorFunc(logExec),
		nodetypes.TypeRespond:     ExecutorFunc(respondExec),
		nodetypes.TypeHTTPRequest: newHTTPExecutor(cfg.HTTP),

		nodetypes.TypeLLMPrompt: ExecutorFunc(llmPromptExec),
	}

	for nodeType, exec := range all {
		if err := reg.Register(nodeType, exec); err != nil {
			return err
		}
	}
	return nil
}

// NewBuiltinRegistry returns a registry holding the built-in executors.
func NewBuiltinRegistry(cfg BuiltinConfig) (*Registry, error) {
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, cfg); err != nil {
		return nil, err
	}
	return reg, nil
}
