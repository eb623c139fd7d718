package expressions

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
	inputRoot  = "input"
)

// Resolve replaces every {{path}} reference in tmpl with the value found at
// path inside input. Non-string values are rendered as JSON. References that
// do not resolve are left verbatim.
func Resolve(tmpl string, input any) string {
	if !strings.Contains(tmpl, openDelim) {
		return tmpl
	}
	return scan(tmpl, func(ref string) (string, bool) {
		v, ok := LookupPath(input, ref)
		if !ok {
			return "", false
		}
		return Stringify(v), true
	})
}

// ResolveValue walks a config value and resolves templates inside strings,
// maps and slices. A string that is exactly one reference resolves to the
// typed value rather than its text form.
func ResolveValue(v any, input any) any {
	switch t := v.(type) {
	case string:
		if ref, whole := wholeReference(t); whole {
			if val, ok := LookupPath(input, ref); ok {
				return val
			}
			return t
		}
		return Resolve(t, input)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = ResolveValue(item, input)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = ResolveValue(item, input)
		}
		return out
	default:
		return v
	}
}

// LookupPath resolves a dotted path such as "input.a.b", "a.b" or
// "items[2].name" against input. A leading "input" segment refers to the
// input itself.
func LookupPath(input any, path string) (any, bool) {
	segs, ok := parsePath(strings.TrimSpace(path))
	if !ok {
		return nil, false
	}
	if len(segs) > 0 && segs[0].key == inputRoot {
		segs[0].key = ""
	}

	cur := input
	for _, s := range segs {
		if s.key != "" {
			m, isMap := cur.(map[string]any)
			if !isMap {
				return nil, false
			}
			next, exists := m[s.key]
			if !exists {
				return nil, false
			}
			cur = next
		}
		for _, idx := range s.indexes {
			list, isList := cur.([]any)
			if !isList || idx < 0 || idx >= len(list) {
				return nil, false
			}
			cur = list[idx]
		}
	}
	return cur, true
}

// Stringify renders a value as text: strings verbatim, anything else as JSON.
func Stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := marshalLiteral(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// marshalLiteral encodes v as compact JSON without HTML escaping.
func marshalLiteral(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type pathSegment struct {
	key     string
	indexes []int
}

// parsePath splits "a.b[1][2].c" into segments. Each segment is an optional
// key followed by zero or more [N] indexes.
func parsePath(path string) ([]pathSegment, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	segs := make([]pathSegment, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, false
		}
		key := part
		var indexes []int
		if open := strings.IndexByte(part, '['); open >= 0 {
			key = part[:open]
			rest := part[open:]
			for rest != "" {
				if rest[0] != '[' {
					return nil, false
				}
				end := strings.IndexByte(rest, ']')
				if end < 0 {
					return nil, false
				}
				n, err := strconv.Atoi(rest[1:end])
				if err != nil {
					return nil, false
				}
				indexes = append(indexes, n)
				rest = rest[end+1:]
			}
		}
		if key == "" && len(indexes) == 0 {
			return nil, false
		}
		segs = append(segs, pathSegment{key: key, indexes: indexes})
	}
	return segs, true
}

// scan walks tmpl and replaces each {{ref}} with the result of resolve.
// Unresolved references are copied through unchanged.
func scan(tmpl string, resolve func(ref string) (string, bool)) string {
	var out strings.Builder
	out.Grow(len(tmpl))

	i := 0
	for i < len(tmpl) {
		start := strings.Index(tmpl[i:], openDelim)
		if start < 0 {
			out.WriteString(tmpl[i:])
			break
		}
		start += i
		end := strings.Index(tmpl[start+len(openDelim):], closeDelim)
		if end < 0 {
			out.WriteString(tmpl[i:])
			break
		}
		end += start + len(openDelim)

		out.WriteString(tmpl[i:start])
		ref := tmpl[start+len(openDelim) : end]
		if val, ok := resolve(strings.TrimSpace(ref)); ok {
			out.WriteString(val)
		} else {
			out.WriteString(tmpl[start : end+len(closeDelim)])
		}
		i = end + len(closeDelim)
	}
	return out.String()
}

// wholeReference reports whether s is exactly one {{ref}} with nothing around it.
func wholeReference(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, openDelim) || !strings.HasSuffix(trimmed, closeDelim) {
		return "", false
	}
	inner := trimmed[len(openDelim) : len(trimmed)-len(closeDelim)]
	if strings.Contains(inner, openDelim) || strings.Contains(inner, closeDelim) {
		return "", false
	}
	return strings.TrimSpace(inner), true
}
