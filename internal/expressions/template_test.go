package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	input := map[string]any{
		"a":     map[string]any{"b": "x"},
		"items": []any{"zero", map[string]any{"name": "one"}},
		"n":     5,
		"html":  "<b>",
	}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"dotted input path", "{{input.a.b}}", "x"},
		{"bare path", "{{a.b}}", "x"},
		{"index", "{{input.items[0]}}", "zero"},
		{"index then key", "{{items[1].name}}", "one"},
		{"embedded", "value=[{{input.n}}]", "value=[5]"},
		{"whitespace", "{{ input.a.b }}", "x"},
		{"object serialized", "{{input.a}}", `{"b":"x"}`},
		{"no html escaping", "{{input.html}}", "<b>"},
		{"unresolved verbatim", "{{input.nope.deeper}}", "{{input.nope.deeper}}"},
		{"out of range verbatim", "{{input.items[9]}}", "{{input.items[9]}}"},
		{"bad index verbatim", "{{input.items[x]}}", "{{input.items[x]}}"},
		{"mixed", "{{a.b}}-{{missing}}", "x-{{missing}}"},
		{"unterminated", "{{input.a.b", "{{input.a.b"},
		{"empty ref", "{{}}", "{{}}"},
		{"no template", "plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.tmpl, input))
		})
	}
}

func TestResolve_WholeInput(t *testing.T) {
	assert.Equal(t, "hello", Resolve("{{input}}", "hello"))
	assert.Equal(t, `{"x":5}`, Resolve("{{input}}", map[string]any{"x": 5}))
	assert.Equal(t, "[1,2]", Resolve("{{input}}", []any{1, 2}))
	assert.Equal(t, "42", Resolve("{{input}}", 42))
	assert.Equal(t, "null", Resolve("{{input}}", nil))
	assert.Equal(t, "a", Resolve("{{input[0]}}", []any{"a"}))
}

func TestResolveValue(t *testing.T) {
	input := map[string]any{"n": 5, "user": map[string]any{"name": "ada"}}

	cfg := map[string]any{
		"count":   "{{input.n}}",
		"greet":   "hi {{user.name}}",
		"nested":  []any{"{{input.user}}", 7},
		"missing": "{{input.nope}}",
	}

	out := ResolveValue(cfg, input).(map[string]any)
	assert.Equal(t, 5, out["count"])
	assert.Equal(t, "hi ada", out["greet"])
	assert.Equal(t, []any{map[string]any{"name": "ada"}, 7}, out["nested"])
	assert.Equal(t, "{{input.nope}}", out["missing"])
	assert.Equal(t, "{{input.n}}", cfg["count"], "input config is not mutated")
}

func TestLookupPath(t *testing.T) {
	input := map[string]any{"input": "shadowed", "list": []any{[]any{1, 2}}}

	v, ok := LookupPath(input, "list[0][1]")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = LookupPath(input, "input")
	assert.True(t, ok)
	assert.Equal(t, input, v)

	_, ok = LookupPath(input, "list..x")
	assert.False(t, ok)

	_, ok = LookupPath("scalar", "a")
	assert.False(t, ok)
}
