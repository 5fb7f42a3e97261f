package llmclient

import (
	"github.com/bamlgo/baml/internal/ast"
	"github.com/bamlgo/baml/internal/bamlerr"
)

// Env is the per-call environment snapshot options are resolved against.
// Lookups always go through this snapshot, never the OS directly, so a
// single call's view of the environment is stable.
type Env map[string]string

// resolveExpr evaluates an option-bag literal expression (string, int,
// float, bool, null, env-var reference, array, or nested map) against env,
// matching the small literal subset ast.Expression allows in a client's
// options block.
func resolveExpr(e *ast.Expression, env Env) (any, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case ast.ExprString, ast.ExprRawString:
		return e.Str, nil
	case ast.ExprInt:
		return e.Int, nil
	case ast.ExprFloat:
		return e.Float, nil
	case ast.ExprBool:
		return e.Bool, nil
	case ast.ExprNull:
		return nil, nil
	case ast.ExprEnvVar:
		name := ""
		if len(e.Path) > 0 {
			name = e.Path[len(e.Path)-1]
		}
		v, ok := env[name]
		if !ok {
			return nil, bamlerr.At(bamlerr.ValidationError, e.Span, "environment variable %q is not set", name)
		}
		return v, nil
	case ast.ExprArray:
		out := make([]any, 0, len(e.Items))
		for _, it := range e.Items {
			v, err := resolveExpr(it, env)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case ast.ExprMap:
		out := make(map[string]any, len(e.MapEntries))
		for _, entry := range e.MapEntries {
			v, err := resolveExpr(entry.Value, env)
			if err != nil {
				return nil, err
			}
			out[entry.Key] = v
		}
		return out, nil
	default:
		return nil, bamlerr.At(bamlerr.ValidationError, e.Span, "unsupported option expression")
	}
}

// ResolvedOptions is a client's options bag resolved to concrete Go
// values against one call's environment snapshot.
type ResolvedOptions struct {
	APIKey  *Secret
	BaseURL string
	Model   string
	Headers map[string]string
	Extra   map[string]any // arbitrary model params passed through verbatim
}

// ResolveOptions walks options (in declared order) and resolves each entry
// against env, pulling out the well-known fields and leaving the rest in
// Extra.
func ResolveOptions(options map[string]*ast.Expression, order []string, env Env) (ResolvedOptions, error) {
	out := ResolvedOptions{Extra: map[string]any{}}
	for _, key := range order {
		v, err := resolveExpr(options[key], env)
		if err != nil {
			return out, err
		}
		switch key {
		case "api_key":
			if s, ok := v.(string); ok {
				out.APIKey = NewSecretString(s)
			}
		case "base_url":
			if s, ok := v.(string); ok {
				out.BaseURL = s
			}
		case "model":
			if s, ok := v.(string); ok {
				out.Model = s
			}
		case "headers":
			if m, ok := v.(map[string]any); ok {
				out.Headers = map[string]string{}
				for hk, hv := range m {
					if s, ok := hv.(string); ok {
						out.Headers[hk] = s
					}
				}
			}
		default:
			out.Extra[key] = v
		}
	}
	return out, nil
}
