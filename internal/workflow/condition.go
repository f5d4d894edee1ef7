package workflow

import "strings"

// evalCondition interprets a step condition against the run context.
//
// The condition string is first resolved as a template, so a condition that is
// exactly one placeholder yields the typed value: booleans pass through, nil
// is false, numbers are true iff non-zero. Strings support a single
// "lhs == rhs" / "lhs != rhs" comparison (both sides trimmed and stripped of
// surrounding quotes); otherwise a string is falsy only when it equals
// "false", "null", "undefined", or the empty string. Structured values are
// truthy.
func evalCondition(cond string, ctx *Context) bool {
	return truthy(Resolve(cond, ctx))
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return stringTruthy(t)
	default:
		return true
	}
}

func stringTruthy(s string) bool {
	if lhs, rhs, ok := splitComparison(s, "=="); ok {
		return unquote(lhs) == unquote(rhs)
	}
	if lhs, rhs, ok := splitComparison(s, "!="); ok {
		return unquote(lhs) != unquote(rhs)
	}

	switch strings.TrimSpace(s) {
	case "false", "null", "undefined", "":
		return false
	}
	return true
}

func splitComparison(s, op string) (lhs, rhs string, ok bool) {
	idx := strings.Index(s, op)
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+len(op):], true
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
