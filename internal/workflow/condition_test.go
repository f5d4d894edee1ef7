package workflow

import "testing"

// TestEvalCondition covers the condition truthiness table.
func TestEvalCondition(t *testing.T) {
	ctx := NewContext(map[string]any{
		"yes":   true,
		"no":    false,
		"zero":  float64(0),
		"one":   float64(1),
		"env":   "prod",
		"empty": "",
	})
	ctx.Steps["check"] = map[string]any{"ok": true}

	tests := []struct {
		name string
		cond string
		want bool
	}{
		{"typed true", "{{ params.yes }}", true},
		{"typed false", "{{ params.no }}", false},
		{"zero number is falsy", "{{ params.zero }}", false},
		{"non-zero number is truthy", "{{ params.one }}", true},
		{"undefined path is literal text, truthy", "{{ params.ghost }}", true},
		{"equality match", "{{ params.env }} == prod", true},
		{"equality mismatch", "{{ params.env }} == staging", false},
		{"equality with quotes", `{{ params.env }} == "prod"`, true},
		{"inequality match", "{{ params.env }} != staging", true},
		{"inequality mismatch", "{{ params.env }} != prod", false},
		{"literal false string", "false", false},
		{"literal null string", "null", false},
		{"literal undefined string", "undefined", false},
		{"empty interpolation is falsy", "{{ params.empty }}", false},
		{"arbitrary string is truthy", "go ahead", true},
		{"object is truthy", "{{ steps.check }}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evalCondition(tt.cond, ctx); got != tt.want {
				t.Errorf("evalCondition(%q) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}
