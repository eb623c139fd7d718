package executors

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rendis/flowcore/internal/expressions"
	"github.com/rendis/flowcore/pkg/schema"
)

// Config accessors. Every accessor resolves {{...}} templates against the
// node input before converting.

// Has reports whether key is present in the config.
func (r *Request) Has(key string) bool {
	_, ok := r.Config[key]
	return ok
}

// Value returns the resolved config value, nil if absent.
func (r *Request) Value(key string) any {
	v, ok := r.Config[key]
	if !ok {
		return nil
	}
	return expressions.ResolveValue(v, r.Input)
}

// Template returns the raw, unresolved config string.
func (r *Request) Template(key, defaultVal string) string {
	s, ok := r.Config[key].(string)
	if !ok {
		return defaultVal
	}
	return s
}

func (r *Request) String(key, defaultVal string) string {
	v, ok := r.Config[key]
	if !ok || v == nil {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return expressions.Resolve(s, r.Input)
	}
	return expressions.Stringify(v)
}

func (r *Request) Bool(key string, defaultVal bool) bool {
	switch b := r.Value(key).(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func (r *Request) Int(key string, defaultVal int) int {
	if n, ok := toFloat(r.Value(key)); ok {
		return int(n)
	}
	return defaultVal
}

// Duration reads a number of milliseconds or a Go duration string.
func (r *Request) Duration(key string, defaultVal time.Duration) time.Duration {
	v := r.Value(key)
	if s, ok := v.(string); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d
		}
	}
	if n, ok := toFloat(v); ok {
		return time.Duration(n * float64(time.Millisecond))
	}
	return defaultVal
}

func (r *Request) Map(key string) map[string]any {
	m, _ := r.Value(key).(map[string]any)
	return m
}

func (r *Request) Strings(key string) []string {
	switch list := r.Value(key).(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, expressions.Stringify(item))
		}
		return out
	}
	return nil
}

func (r *Request) configErrorf(format string, args ...any) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeConfiguration, "%s: %s", r.NodeType, fmt.Sprintf(format, args...)).WithNode(r.NodeID)
}

func (r *Request) execErrorf(format string, args ...any) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeExecution, "%s: %s", r.NodeType, fmt.Sprintf(format, args...)).WithNode(r.NodeID)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
