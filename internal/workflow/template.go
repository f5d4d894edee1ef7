package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Context is the accumulating execution state of one SOP run. Keys only grow:
// no step output is ever removed or replaced during a run.
type Context struct {
	Params map[string]any
	Steps  map[string]any
}

// NewContext creates a run context seeded with caller parameters.
func NewContext(params map[string]any) *Context {
	if params == nil {
		params = map[string]any{}
	}
	return &Context{
		Params: params,
		Steps:  map[string]any{},
	}
}

// Lookup resolves a dotted path like "params.n" or "steps.fetch.status"
// against the context. Only map traversal is supported; any miss reports
// false.
func (c *Context) Lookup(path string) (any, bool) {
	segments := strings.Split(path, ".")

	var cur any = map[string]any{
		"params": c.Params,
		"steps":  c.Steps,
	}
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

var (
	// A value that is exactly one placeholder resolves to the typed value.
	exactPlaceholder = regexp.MustCompile(`^\{\{\s*([^{}\s][^{}]*?)\s*\}\}$`)
	// Placeholders embedded in surrounding text interpolate as strings.
	anyPlaceholder = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
)

// Resolve walks a template value and substitutes context paths.
//
// A string that is exactly "{{ path }}" becomes the typed value at that path
// (numbers stay numbers, objects stay objects); an undefined path leaves the
// literal template text in place. A string containing placeholders among
// other text replaces each resolvable placeholder with its string form and
// leaves unresolvable ones untouched. Maps and slices are resolved
// structurally; everything else passes through unchanged.
func Resolve(value any, ctx *Context) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, ctx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = Resolve(elem, ctx)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = Resolve(elem, ctx)
		}
		return out
	default:
		return value
	}
}

func resolveString(s string, ctx *Context) any {
	if m := exactPlaceholder.FindStringSubmatch(s); m != nil {
		if val, ok := ctx.Lookup(m[1]); ok {
			return val
		}
		return s
	}

	if !strings.Contains(s, "{{") {
		return s
	}

	return anyPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		path := anyPlaceholder.FindStringSubmatch(match)[1]
		val, ok := ctx.Lookup(path)
		if !ok {
			return match
		}
		return stringify(val)
	})
}

// stringify coerces a resolved value for string interpolation.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		// Structured values interpolate as compact JSON.
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", t)
	}
}
