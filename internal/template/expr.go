package template

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// splitTopLevel splits s on every top-level occurrence of sep (not nested
// inside (), [], or a quoted string), used to find pipe-filter boundaries
// without disturbing parenthesized/bracketed sub-expressions.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	inStr := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inStr = !inStr
		case inStr:
			// skip
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// filterFuncs are the pipe-filter builtins available to template
// expressions, in Jinja's "value | filter(args)" style.
var filterFuncs = map[string]any{
	"length": func(v any) int { return genericLen(v) },
	"upper": func(s string) string { return strings.ToUpper(s) },
	"lower": func(s string) string { return strings.ToLower(s) },
	"trim":  func(s string) string { return strings.TrimSpace(s) },
	"join": func(items []any, sep string) string {
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = fmt.Sprintf("%v", it)
		}
		return strings.Join(parts, sep)
	},
	"default": func(v, fallback any) any {
		if v == nil {
			return fallback
		}
		if s, ok := v.(string); ok && s == "" {
			return fallback
		}
		return v
	},
	"first": func(items []any) any {
		if len(items) == 0 {
			return nil
		}
		return items[0]
	},
	"last": func(items []any) any {
		if len(items) == 0 {
			return nil
		}
		return items[len(items)-1]
	},
}

func genericLen(v any) int {
	switch x := v.(type) {
	case string:
		return len(x)
	case []any:
		return len(x)
	case map[string]any:
		return len(x)
	default:
		return 0
	}
}

// rewriteForExprLang rewrites Jinja-style `value | filter(args)` pipe
// chains into nested function calls `filter(value, args)` so the result
// is a plain expr-lang expression; all other syntax (dotted access,
// indexing, arithmetic, comparison, ternary, function calls) passes
// through untouched since expr-lang's grammar already covers it.
func rewriteForExprLang(src string) string {
	segs := splitTopLevel(src, '|')
	for i := range segs {
		segs[i] = strings.TrimSpace(segs[i])
	}
	if len(segs) == 1 {
		return segs[0]
	}
	base := segs[0]
	for _, seg := range segs[1:] {
		name, argsTail := splitFilterCall(seg)
		if argsTail == "" {
			base = fmt.Sprintf("%s(%s)", name, base)
		} else {
			base = fmt.Sprintf("%s(%s, %s)", name, base, argsTail)
		}
	}
	return base
}

// splitFilterCall splits "name(args)" into ("name", "args") or "name"
// into ("name", "").
func splitFilterCall(seg string) (name, args string) {
	open := strings.IndexByte(seg, '(')
	if open < 0 {
		return seg, ""
	}
	close := strings.LastIndexByte(seg, ')')
	if close < open {
		return seg, ""
	}
	return seg[:open], strings.TrimSpace(seg[open+1 : close])
}

// Evaluate compiles and runs a single template expression against env
// (variable bindings plus filterFuncs), returning its dynamic result.
func Evaluate(exprSrc string, env map[string]any) (any, error) {
	rewritten := rewriteForExprLang(exprSrc)
	full := make(map[string]any, len(env)+len(filterFuncs))
	for k, v := range env {
		full[k] = v
	}
	for k, v := range filterFuncs {
		if _, exists := full[k]; !exists {
			full[k] = v
		}
	}
	program, err := expr.Compile(rewritten, expr.Env(full), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compiling expression %q: %w", exprSrc, err)
	}
	out, err := expr.Run(program, full)
	if err != nil {
		return nil, fmt.Errorf("evaluating expression %q: %w", exprSrc, err)
	}
	return out, nil
}

// Truthy mirrors Jinja truthiness: false/nil/0/""/empty collections are
// falsy, everything else is truthy.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
