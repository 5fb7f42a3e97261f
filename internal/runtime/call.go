package runtime

import (
	"context"

	"github.com/bamlgo/baml/internal/ast"
	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/checks"
	"github.com/bamlgo/baml/internal/coerce"
	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/llmclient"
	"github.com/bamlgo/baml/internal/outputformat"
	"github.com/bamlgo/baml/internal/template"
	"github.com/bamlgo/baml/internal/value"
)

// outputFormatRenderer returns a renderer over the runtime's IR with
// default options; a new renderer is constructed on every call.
func (rt *Runtime) outputFormatRenderer() *outputformat.Renderer {
	return outputformat.New(rt.IR, outputformat.DefaultOptions())
}

func (rt *Runtime) function(name string) (*ir.Function, error) {
	fn, ok := rt.IR.Functions[name]
	if !ok {
		return nil, bamlerr.New(bamlerr.UserFailure, "unknown function %q", name)
	}
	return fn, nil
}

// CallOpts controls client selection for RenderPrompt/CallFunction/
// StreamFunction, mirroring spec.md §6's optional which_config and
// client_override parameters. The zero value picks the function's first
// declared config and its declared client.
type CallOpts struct {
	// WhichConfig selects fn.Configs[WhichConfig] instead of the first
	// entry. Ignored (treated as 0) when out of range.
	WhichConfig int
	// ClientOverride, if set, replaces the selected config's declared
	// client name for this call only; the function's prompt template is
	// still rendered with the override client's name/provider in ctx.client.
	ClientOverride string
}

func (o CallOpts) configIndex(n int) int {
	if o.WhichConfig < 0 || o.WhichConfig >= n {
		return 0
	}
	return o.WhichConfig
}

// RenderPrompt renders fn's prompt template against args without
// dispatching to any provider.
func (rt *Runtime) RenderPrompt(fnName string, args map[string]*value.Value, opts ...CallOpts) (*template.RenderedPrompt, *ir.Client, error) {
	fn, err := rt.function(fnName)
	if err != nil {
		return nil, nil, err
	}
	if len(fn.Configs) == 0 {
		return nil, nil, bamlerr.New(bamlerr.ValidationError, "function %q has no client configuration", fnName)
	}
	var opt CallOpts
	if len(opts) > 0 {
		opt = opts[0]
	}
	cfg := fn.Configs[opt.configIndex(len(fn.Configs))]
	clientName := cfg.Client
	if opt.ClientOverride != "" {
		clientName = opt.ClientOverride
	}
	client, ok := rt.IR.Clients[clientName]
	if !ok {
		return nil, nil, bamlerr.New(bamlerr.ValidationError, "function %q references unknown client %q", fnName, clientName)
	}
	ts, ok := rt.IR.TemplateStrings[cfg.PromptTSName]
	if !ok {
		return nil, nil, bamlerr.New(bamlerr.InternalFailure, "missing synthetic prompt template for function %q", fnName)
	}

	diags := &bamlerr.Diagnostics{}
	nodes := template.Parse(cfg.PromptTSName, ts.Body, diags)

	format, err := rt.outputFormatRenderer().Render(fn.Output)
	if err != nil {
		return nil, nil, bamlerr.Wrap(bamlerr.TemplateError, err, "rendering output format for function %q", fnName)
	}

	renderer := template.NewRenderer(template.Ctx{
		ClientName:   client.Name,
		Provider:     client.Provider,
		OutputFormat: format,
		Env:          rt.env,
		DefaultRole:  "user",
	}, diags)

	rendered, err := renderer.Render(nodes, args)
	if err != nil {
		return nil, nil, bamlerr.Wrap(bamlerr.TemplateError, err, "rendering prompt for function %q", fnName)
	}
	return rendered, client, nil
}

// CallFunction renders fn's prompt, dispatches it through its client
// (with retry), coerces the response into the function's declared output
// type, and runs checks/asserts over the result.
func (rt *Runtime) CallFunction(ctx context.Context, fnName string, args map[string]*value.Value, opts ...CallOpts) (*value.Value, checks.Outcome, error) {
	fn, err := rt.function(fnName)
	if err != nil {
		return nil, checks.Outcome{}, err
	}
	rendered, clientDecl, err := rt.RenderPrompt(fnName, args, opts...)
	if err != nil {
		return nil, checks.Outcome{}, err
	}

	var policy *ir.RetryPolicy
	if clientDecl.RetryPolicy != "" {
		policy = rt.IR.RetryPolicies[clientDecl.RetryPolicy]
	}
	client, err := rt.registry.Get(clientDecl, policy, rt.env)
	if err != nil {
		return nil, checks.Outcome{}, err
	}

	resp, err := client.Call(ctx, rendered, llmclient.CallOptions{})
	if err != nil {
		return nil, checks.Outcome{}, err
	}
	if resp.Failed() {
		return nil, checks.Outcome{}, bamlerr.New(bamlerr.ClientError, "%s: %s", fnName, resp.Message)
	}

	val, err := coerce.CoerceText(resp.Text, fn.Output, rt.IR, coerce.Options{})
	if err != nil {
		return nil, checks.Outcome{}, bamlerr.Wrap(bamlerr.CoercionError, err, "coercing response for function %q", fnName)
	}

	outcome, err := checks.New(rt.IR).Run(val, fn.Output)
	if err != nil {
		return val, checks.Outcome{}, err
	}
	return val, outcome, nil
}

// StreamFunction mirrors CallFunction but delivers tokens to onToken as
// they arrive, coercing and checking only the final accumulated text.
// Buffering discipline for the underlying event channel lives in
// llmclient, not here.
func (rt *Runtime) StreamFunction(ctx context.Context, fnName string, args map[string]*value.Value, onToken func(string), opts ...CallOpts) (*value.Value, checks.Outcome, error) {
	fn, err := rt.function(fnName)
	if err != nil {
		return nil, checks.Outcome{}, err
	}
	rendered, clientDecl, err := rt.RenderPrompt(fnName, args, opts...)
	if err != nil {
		return nil, checks.Outcome{}, err
	}

	var policy *ir.RetryPolicy
	if clientDecl.RetryPolicy != "" {
		policy = rt.IR.RetryPolicies[clientDecl.RetryPolicy]
	}
	client, err := rt.registry.Get(clientDecl, policy, rt.env)
	if err != nil {
		return nil, checks.Outcome{}, err
	}

	events, err := client.Stream(ctx, rendered, llmclient.CallOptions{})
	if err != nil {
		return nil, checks.Outcome{}, err
	}

	var final llmclient.Response
	for evt := range events {
		switch evt.Kind {
		case llmclient.StreamEventToken:
			if onToken != nil {
				onToken(evt.Token)
			}
		case llmclient.StreamEventDone:
			final = evt.Final
		case llmclient.StreamEventError:
			return nil, checks.Outcome{}, bamlerr.Wrap(bamlerr.ClientError, evt.Err, "streaming function %q", fnName)
		}
	}
	if final.Failed() {
		return nil, checks.Outcome{}, bamlerr.New(bamlerr.ClientError, "%s: %s", fnName, final.Message)
	}

	val, err := coerce.CoerceText(final.Text, fn.Output, rt.IR, coerce.Options{AllowPartials: true})
	if err != nil {
		return nil, checks.Outcome{}, bamlerr.Wrap(bamlerr.CoercionError, err, "coercing streamed response for function %q", fnName)
	}
	outcome, err := checks.New(rt.IR).Run(val, fn.Output)
	if err != nil {
		return val, checks.Outcome{}, err
	}
	return val, outcome, nil
}

// GetTestParams returns a test case's declared argument values, evaluated
// as constant expressions against the runtime's environment snapshot.
func (rt *Runtime) GetTestParams(testName string) (fnName string, args map[string]*value.Value, err error) {
	var tc *ir.TestCase
	for _, t := range rt.IR.Tests {
		if t.Name == testName {
			tc = t
			break
		}
	}
	if tc == nil {
		return "", nil, bamlerr.New(bamlerr.UserFailure, "unknown test %q", testName)
	}
	out := make(map[string]*value.Value, len(tc.ArgOrder))
	for _, name := range tc.ArgOrder {
		v, err := evalConstExpr(tc.Args[name], rt.env)
		if err != nil {
			return "", nil, err
		}
		out[name] = v
	}
	return tc.FunctionName, out, nil
}

func evalConstExpr(e *ast.Expression, env map[string]string) (*value.Value, error) {
	if e == nil {
		return value.Null(), nil
	}
	switch e.Kind {
	case ast.ExprInt:
		return value.Int(e.Int), nil
	case ast.ExprFloat:
		return value.Float(e.Float), nil
	case ast.ExprBool:
		return value.Bool(e.Bool), nil
	case ast.ExprNull:
		return value.Null(), nil
	case ast.ExprString, ast.ExprRawString:
		return value.String(e.Str), nil
	case ast.ExprEnvVar:
		name := ""
		if len(e.Path) > 0 {
			name = e.Path[len(e.Path)-1]
		}
		v, ok := env[name]
		if !ok {
			return nil, bamlerr.At(bamlerr.ValidationError, e.Span, "environment variable %q is not set", name)
		}
		return value.String(v), nil
	case ast.ExprArray:
		items := make([]*value.Value, 0, len(e.Items))
		for _, it := range e.Items {
			v, err := evalConstExpr(it, env)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return value.List(items), nil
	case ast.ExprMap:
		m := value.NewOrderedMap()
		for _, entry := range e.MapEntries {
			v, err := evalConstExpr(entry.Value, env)
			if err != nil {
				return nil, err
			}
			m.Set(entry.Key, v)
		}
		return value.Map(m), nil
	default:
		return nil, bamlerr.At(bamlerr.ValidationError, e.Span, "unsupported test argument expression")
	}
}
