package nodetypes

import (
	"encoding/json"
	"sync"

	"github.com/rendis/flowcore/pkg/schema"
)

// Built-in node type tags.
const (
	TypeManualTrigger   = "manual_trigger"
	TypeWebhookTrigger  = "webhook_trigger"
	TypeScheduleTrigger = "schedule_trigger"

	TypeIfElse       = "if_else"
	TypeSwitch       = "switch"
	TypeMerge        = "merge"
	TypeWait         = "wait"
	TypeNoop         = "noop"
	TypeErrorHandler = "error_handler"
	TypeStopAndError = "stop_and_error"

	TypeSet        = "set"
	TypeTransform  = "transform"
	TypeFilter     = "filter"
	TypeExpression = "expression"
	TypeHash       = "hash"
	TypeUUID       = "uuid"

	TypeLog         = "log"
	TypeRespond     = "respond"
	TypeHTTPRequest = "http_request"

	TypeLLMPrompt = "llm_prompt"
)

var httpRequestConfigSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"url": {"type": "string"},
		"method": {"type": "string", "enum": ["GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"]},
		"headers": {"type": "object", "additionalProperties": {"type": "string"}},
		"timeout": {"type": "integer", "minimum": 0},
		"credential": {"type": "string"},
		"fail_on_error_status": {"type": "boolean"}
	}
}`)

var waitConfigSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"duration": {"type": "integer", "minimum": 0}
	}
}`)

var switchConfigSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"value": {"type": "string"},
		"cases": {"type": "array", "items": {"type": "string"}}
	}
}`)

var errorHandlerConfigSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"node_type": {"type": "string"},
		"node_config": {"type": "object"},
		"max_retries": {"type": "integer", "minimum": 0, "maximum": 10},
		"retry_delay": {"type": "integer", "minimum": 0},
		"backoff": {"type": "string", "enum": ["none", "linear", "exponential", "constant"]}
	}
}`)

var mergeConfigSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"mode": {"type": "string", "enum": ["object", "array"]}
	}
}`)

var hashConfigSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"algorithm": {"type": "string", "enum": ["sha256", "sha384", "sha512", "sha1", "md5"]}
	}
}`)

// BuiltinSchemas returns the catalog of node types shipped with flowcore, in
// catalog order.
func BuiltinSchemas() []Schema {
	return []Schema{
		{Type: TypeManualTrigger, Category: schema.CategoryTrigger, Description: "Starts a run with the caller's payload"},
		{Type: TypeWebhookTrigger, Category: schema.CategoryTrigger, Description: "Starts a run from an inbound webhook payload",
			Defaults: map[string]any{"path": "/"}},
		{Type: TypeScheduleTrigger, Category: schema.CategoryTrigger, Description: "Starts a run on a schedule; dispatch happens outside the engine",
			Required: []string{"cron"}, Defaults: map[string]any{"cron": "0 * * * *"}},

		{Type: TypeIfElse, Category: schema.CategoryLogic, Description: "Routes to the true or false branch by a boolean condition",
			Required: []string{"condition"}, Branching: true},
		{Type: TypeSwitch, Category: schema.CategoryLogic, Description: "Routes to the branch whose case equals the resolved value",
			Required: []string{"value", "cases"}, Defaults: map[string]any{"cases": []any{}}, Branching: true,
			ConfigSchema: switchConfigSchema},
		{Type: TypeMerge, Category: schema.CategoryLogic, Description: "Joins several branches into one value",
			Defaults: map[string]any{"mode": "object"}, ConfigSchema: mergeConfigSchema},
		{Type: TypeWait, Category: schema.CategoryLogic, Description: "Pauses for a duration in milliseconds",
			Required: []string{"duration"}, Defaults: map[string]any{"duration": 1000}, ConfigSchema: waitConfigSchema},
		{Type: TypeNoop, Category: schema.CategoryLogic, Description: "Passes input through unchanged"},
		{Type: TypeErrorHandler, Category: schema.CategoryLogic, Description: "Runs a wrapped node type with retries and an optional fallback",
			Defaults: map[string]any{"max_retries": 3, "retry_delay": 1000, "backoff": "exponential"},
			ConfigSchema: errorHandlerConfigSchema},
		{Type: TypeStopAndError, Category: schema.CategoryLogic, Description: "Fails the run with a message",
			Terminal: true, Defaults: map[string]any{"message": "workflow stopped"}},

		{Type: TypeSet, Category: schema.CategoryData, Description: "Sets fields, optionally on top of the input",
			Defaults: map[string]any{"values": map[string]any{}}},
		{Type: TypeTransform, Category: schema.CategoryData, Description: "Reshapes input with a jq expression",
			Required: []string{"expression"}, Defaults: map[string]any{"expression": "."}},
		{Type: TypeFilter, Category: schema.CategoryData, Description: "Keeps list items matching a CEL predicate over item",
			Required: []string{"condition"}, Defaults: map[string]any{"condition": "true"}},
		{Type: TypeExpression, Category: schema.CategoryData, Description: "Evaluates an expression over input",
			Required: []string{"expression"}},
		{Type: TypeHash, Category: schema.CategoryData, Description: "Hashes a value",
			Defaults: map[string]any{"algorithm": "sha256"}, ConfigSchema: hashConfigSchema},
		{Type: TypeUUID, Category: schema.CategoryData, Description: "Generates a random UUID"},

		{Type: TypeLog, Category: schema.CategoryOutput, Description: "Emits a message and ends the path",
			Defaults: map[string]any{"message": "{{input}}", "level": "info"}},
		{Type: TypeRespond, Category: schema.CategoryOutput, Description: "Produces the response body of the run",
			Defaults: map[string]any{"body": "{{input}}"}},
		{Type: TypeHTTPRequest, Category: schema.CategoryOutput, Description: "Performs an HTTP request",
			Required: []string{"url", "method"}, Defaults: map[string]any{"method": "GET", "timeout": 30000},
			Action: true, ConfigSchema: httpRequestConfigSchema},

		{Type: TypeLLMPrompt, Category: schema.CategoryAI, Description: "Sends a prompt to the configured language model",
			Required: []string{"prompt"}, Defaults: map[string]any{"max_turns": 10}, Action: true},
	}
}

var (
	builtinOnce sync.Once
	builtinReg  *Registry
)

// Builtin returns the shared registry populated with BuiltinSchemas. It is
// read-only by convention after first use.
func Builtin() *Registry {
	builtinOnce.Do(func() {
		builtinReg = NewRegistry()
		for _, s := range BuiltinSchemas() {
			if err := builtinReg.Register(s); err != nil {
				panic(err)
			}
		}
	})
	return builtinReg
}
