package template

import (
	"fmt"
	"strings"

	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/value"
)

// PartKind tags a chat-message part as text or media.
type PartKind int

const (
	PartText PartKind = iota
	PartMedia
)

// Part is one piece of a rendered chat message.
type Part struct {
	Kind  PartKind
	Text  string
	Media *value.Media
}

// Message is one role-tagged chat message, a sequence of parts preserving
// emission order.
type Message struct {
	Role  string
	Parts []Part
}

// RenderedPrompt is the renderer's output: either a single completion
// string, or an ordered chat-message sequence (spec glossary "Rendered
// prompt").
type RenderedPrompt struct {
	IsChat     bool
	Completion string
	Messages   []Message
}

// Ctx carries the values seeded into `ctx.*` during rendering.
type Ctx struct {
	ClientName   string
	Provider     string
	OutputFormat string
	Env          map[string]string
	DefaultRole  string
}

func (c Ctx) toNative() map[string]any {
	envMap := make(map[string]any, len(c.Env))
	for k, v := range c.Env {
		envMap[k] = v
	}
	return map[string]any{
		"client":        map[string]any{"name": c.ClientName, "provider": c.Provider},
		"output_format": c.OutputFormat,
		"env":           envMap,
	}
}

// valEnv is a runtime value scope, chained like Scope but carrying
// concrete *value.Value bindings instead of static types.
type valEnv struct {
	parent *valEnv
	vars   map[string]*value.Value
}

func newValEnv(parent *valEnv) *valEnv { return &valEnv{parent: parent, vars: map[string]*value.Value{}} }

func (e *valEnv) lookup(name string) (*value.Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *valEnv) set(name string, v *value.Value) { e.vars[name] = v }

func (e *valEnv) fork() *valEnv { return newValEnv(e) }

// flatten collapses the scope chain into a single native map for
// expr-lang, child bindings shadowing ancestors.
func (e *valEnv) flatten(ctx Ctx, builtin any) map[string]any {
	var chain []*valEnv
	for cur := e; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	out := ctx.toNative()
	out["_"] = builtin
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].vars {
			out[k] = value.ToNative(v)
		}
	}
	return out
}

// roleCall, when expr is a bare `_.role("x")` or `_.chat("x")` call,
// returns the role argument and true.
func roleCall(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	for _, prefix := range []string{"_.role(", "_.chat("} {
		if strings.HasPrefix(expr, prefix) && strings.HasSuffix(expr, ")") {
			arg := strings.TrimSpace(expr[len(prefix) : len(expr)-1])
			arg = strings.Trim(arg, `"`)
			return arg, true
		}
	}
	return "", false
}

// Renderer executes a parsed template Node sequence against concrete
// input values.
type Renderer struct {
	ctx   Ctx
	diags *bamlerr.Diagnostics

	messages   []Message
	cur        *Message
	sawRole    bool
	plainParts []Part
}

func NewRenderer(ctx Ctx, diags *bamlerr.Diagnostics) *Renderer {
	return &Renderer{ctx: ctx, diags: diags}
}

// Render executes nodes against inputs, producing a RenderedPrompt.
func (r *Renderer) Render(nodes []Node, inputs map[string]*value.Value) (*RenderedPrompt, error) {
	root := newValEnv(nil)
	for k, v := range inputs {
		root.set(k, v)
	}
	if err := r.renderNodes(nodes, root); err != nil {
		return nil, err
	}
	r.flushMessage()
	if !r.sawRole {
		var sb strings.Builder
		for _, p := range r.plainParts {
			if p.Kind == PartText {
				sb.WriteString(p.Text)
			}
		}
		return &RenderedPrompt{IsChat: false, Completion: sb.String()}, nil
	}
	return &RenderedPrompt{IsChat: true, Messages: r.messages}, nil
}

func (r *Renderer) flushMessage() {
	if r.cur != nil {
		r.messages = append(r.messages, *r.cur)
		r.cur = nil
	}
}

func (r *Renderer) appendPart(p Part) {
	if !r.sawRole {
		r.plainParts = append(r.plainParts, p)
	}
	if r.cur == nil {
		r.cur = &Message{Role: r.ctx.DefaultRole}
	}
	r.cur.Parts = append(r.cur.Parts, p)
}

func (r *Renderer) startRole(role string) {
	r.flushMessage()
	r.sawRole = true
	r.cur = &Message{Role: role}
}

func (r *Renderer) renderNodes(nodes []Node, env *valEnv) error {
	for _, n := range nodes {
		if err := r.renderNode(n, env); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderNode(n Node, env *valEnv) error {
	switch n.Kind {
	case NodeText:
		if n.Text != "" {
			r.appendPart(Part{Kind: PartText, Text: n.Text})
		}
		return nil
	case NodeExpr:
		if role, ok := roleCall(n.Expr); ok {
			r.startRole(role)
			return nil
		}
		// A bare variable reference that resolves to Media renders as a
		// media part rather than stringified text.
		if path := leadingDottedPath(rewriteForExprLang(n.Expr)); len(path) == 1 && path[0] == strings.TrimSpace(n.Expr) {
			if v, ok := env.lookup(path[0]); ok && v.Kind == value.KindMedia {
				r.appendPart(Part{Kind: PartMedia, Media: v.Media})
				return nil
			}
		}
		out, err := Evaluate(n.Expr, env.flatten(r.ctx, builtinNative()))
		if err != nil {
			return bamlerr.At(bamlerr.TemplateError, n.Span, "%s", err.Error())
		}
		r.appendPart(Part{Kind: PartText, Text: fmt.Sprintf("%v", out)})
		return nil
	case NodeSet:
		out, err := Evaluate(n.Expr, env.flatten(r.ctx, builtinNative()))
		if err != nil {
			return bamlerr.At(bamlerr.TemplateError, n.Span, "%s", err.Error())
		}
		env.set(n.VarName, nativeToValue(out))
		return nil
	case NodeFor:
		iterOut, err := Evaluate(n.Expr, env.flatten(r.ctx, builtinNative()))
		if err != nil {
			return bamlerr.At(bamlerr.TemplateError, n.Span, "%s", err.Error())
		}
		items, _ := iterOut.([]any)
		length := len(items)
		depth := outerLoopDepth(env) + 1
		for i, it := range items {
			body := env.fork()
			body.set(n.VarName, nativeToValue(it))
			body.set("loop", loopVars(i, length, depth))
			if err := r.renderNodes(n.Then, body); err != nil {
				return err
			}
		}
		return nil
	case NodeIf:
		out, err := Evaluate(n.Expr, env.flatten(r.ctx, builtinNative()))
		if err != nil {
			return bamlerr.At(bamlerr.TemplateError, n.Span, "%s", err.Error())
		}
		if Truthy(out) {
			return r.renderNodes(n.Then, env.fork())
		}
		for _, el := range n.Elifs {
			out, err := Evaluate(el.Cond, env.flatten(r.ctx, builtinNative()))
			if err != nil {
				return bamlerr.At(bamlerr.TemplateError, el.Span, "%s", err.Error())
			}
			if Truthy(out) {
				return r.renderNodes(el.Body, env.fork())
			}
		}
		if n.Else != nil {
			return r.renderNodes(n.Else, env.fork())
		}
		return nil
	}
	return nil
}

func builtinNative() any {
	return map[string]any{}
}

// loopVars builds the `loop` binding's fields (index/index0/etc) as a
// synthetic Class value, matching Jinja's loop variable shape. depth is
// the 1-based nesting level of this for-loop among its enclosing loops.
func loopVars(i, length, depth int) *value.Value {
	om := value.NewOrderedMap()
	om.Set("index", value.Int(int64(i+1)))
	om.Set("index0", value.Int(int64(i)))
	om.Set("revindex", value.Int(int64(length-i)))
	om.Set("revindex0", value.Int(int64(length-i-1)))
	om.Set("first", value.Bool(i == 0))
	om.Set("last", value.Bool(i == length-1))
	om.Set("length", value.Int(int64(length)))
	om.Set("depth", value.Int(int64(depth)))
	om.Set("depth0", value.Int(int64(depth-1)))
	return value.Class("baml::LoopVars", om)
}

// outerLoopDepth walks env's lookup chain for an already-bound `loop`
// value from an enclosing for-loop and returns its depth, so a nested
// for-loop's own loop.depth/loop.depth0 count nesting level correctly.
// Returns 0 when there is no enclosing loop, so the new loop's depth is 1.
func outerLoopDepth(env *valEnv) int {
	outer, ok := env.lookup("loop")
	if !ok || outer == nil || outer.Fields == nil {
		return 0
	}
	d, ok := outer.Fields.Get("depth")
	if !ok || d == nil {
		return 0
	}
	return int(d.Int)
}

// nativeToValue lifts an expr-lang dynamic result back into a *value.Value
// so it can be re-bound by {% set %} or used as a for-loop variable.
func nativeToValue(v any) *value.Value {
	switch x := v.(type) {
	case nil:
		return value.Null()
	case string:
		return value.String(x)
	case bool:
		return value.Bool(x)
	case int:
		return value.Int(int64(x))
	case int64:
		return value.Int(x)
	case float64:
		return value.Float(x)
	case []any:
		items := make([]*value.Value, len(x))
		for i, it := range x {
			items[i] = nativeToValue(it)
		}
		return value.List(items)
	case map[string]any:
		om := value.NewOrderedMap()
		for k, val := range x {
			om.Set(k, nativeToValue(val))
		}
		return value.Map(om)
	default:
		return value.String(fmt.Sprintf("%v", x))
	}
}
