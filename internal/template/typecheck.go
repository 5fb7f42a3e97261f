package template

import (
	"strings"

	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/types"
)

// FromFieldType converts an internal/types.Type (the field-type sum) into
// the template language's own type-environment sum (TType), per spec
// §4.G: class/enum references become ClassRef, everything else maps
// structurally.
func FromFieldType(t *types.Type) *TType {
	if t == nil {
		return Unknown()
	}
	switch t.Shape {
	case types.ShapePrimitive:
		switch t.Primitive {
		case types.PrimString:
			return StringT()
		case types.PrimInt:
			return IntT()
		case types.PrimFloat:
			return FloatT()
		case types.PrimBool:
			return BoolT()
		case types.PrimNull:
			return NoneT()
		default:
			return Unknown()
		}
	case types.ShapeLiteralString:
		return StringT()
	case types.ShapeLiteralInt:
		return IntT()
	case types.ShapeLiteralBool:
		return BoolT()
	case types.ShapeNamedClass, types.ShapeNamedEnum:
		return ClassRefT(t.Name)
	case types.ShapeList:
		return ListT(FromFieldType(t.Elem))
	case types.ShapeMap:
		return MapT(FromFieldType(t.MapKey), FromFieldType(t.MapVal))
	case types.ShapeTuple:
		items := make([]*TType, len(t.Items))
		for i, it := range t.Items {
			items[i] = FromFieldType(it)
		}
		return TupleT(items...)
	case types.ShapeUnion:
		items := make([]*TType, len(t.Items))
		for i, it := range t.Items {
			items[i] = FromFieldType(it)
		}
		return UnionT(items...)
	case types.ShapeOptional:
		return WithUndefined(FromFieldType(t.Elem))
	case types.ShapeConstrained:
		return FromFieldType(t.Elem)
	default:
		return Unknown()
	}
}

// Checker type-checks a function's prompt template against its seeded
// input environment.
type Checker struct {
	ir    *ir.IntermediateRepr
	diags *bamlerr.Diagnostics
}

func NewChecker(irepr *ir.IntermediateRepr, diags *bamlerr.Diagnostics) *Checker {
	return &Checker{ir: irepr, diags: diags}
}

// BaseScope builds the root scope seeded with ctx/_, plus the given
// function inputs.
func (c *Checker) BaseScope(inputs []ir.Param) *Scope {
	root := NewScope(nil)
	root.Set("ctx", ClassRefT("baml::Ctx"))
	root.Set("_", ClassRefT("baml::BuiltIn"))
	for _, p := range inputs {
		root.Set(p.Name, FromFieldType(p.Type))
	}
	return root
}

// Check type-checks nodes in scope, collecting TemplateErrors. Rendering
// proceeds in a permissive mode regardless of type errors found here.
func (c *Checker) Check(nodes []Node, scope *Scope) {
	for _, n := range nodes {
		c.checkNode(n, scope)
	}
}

func (c *Checker) checkNode(n Node, scope *Scope) {
	switch n.Kind {
	case NodeText:
		return
	case NodeExpr:
		c.checkExpr(n.Expr, scope, n.Span)
	case NodeSet:
		t := c.checkExpr(n.Expr, scope, n.Span)
		scope.Set(n.VarName, t)
	case NodeFor:
		iterT := c.checkExpr(n.Expr, scope, n.Span)
		body := scope.Fork()
		elemT := Unknown()
		if iterT.Kind == TList {
			elemT = iterT.Elem
		}
		body.Set(n.VarName, elemT)
		body.Set("loop", ClassRefT("baml::LoopVars"))
		c.Check(n.Then, body)
	case NodeIf:
		c.checkExpr(n.Expr, scope, n.Span)
		thenScope := scope.Fork()
		c.Check(n.Then, thenScope)
		branches := []*Scope{thenScope}
		for _, el := range n.Elifs {
			c.checkExpr(el.Cond, scope, el.Span)
			s := scope.Fork()
			c.Check(el.Body, s)
			branches = append(branches, s)
		}
		elseScope := scope.Fork()
		if n.Else != nil {
			c.Check(n.Else, elseScope)
		}
		branches = append(branches, elseScope)
		JoinBranches(scope, branches...)
	}
}

// checkExpr resolves the type of a template expression against scope,
// reporting a TemplateError naming the offending variable when the root
// identifier of a dotted path is undeclared, or when a path segment
// doesn't name a field of the ClassRef it's applied to.
func (c *Checker) checkExpr(exprSrc string, scope *Scope, span bamlerr.Span) *TType {
	root := rewriteForExprLang(exprSrc)
	path := leadingDottedPath(root)
	if len(path) == 0 {
		return Unknown()
	}
	t, ok := scope.Lookup(path[0])
	if !ok {
		c.diags.PushError(bamlerr.At(bamlerr.TemplateError, span, "undefined variable %q", path[0]))
		return Unknown()
	}
	cur := t
	for i := 1; i < len(path); i++ {
		seg := path[i]
		base := cur
		if base.Kind == TUnion {
			// Field must exist on every non-Undefined member to be safe;
			// approximate by checking the first ClassRef member.
			for _, it := range base.Items {
				if it.Kind == TClassRef {
					base = it
					break
				}
			}
		}
		if base.Kind != TClassRef {
			return Unknown()
		}
		cls, ok := c.ir.Classes[base.Name]
		if !ok {
			return Unknown() // baml::* synthetic refs (ctx, _, loop) aren't checked field-by-field
		}
		var fieldT *TType
		for _, f := range cls.StaticFields {
			if f.Name == seg {
				fieldT = FromFieldType(f.Type)
				break
			}
		}
		if fieldT == nil {
			c.diags.PushError(bamlerr.At(bamlerr.TemplateError, span,
				"undefined variable %q", strings.Join(path[:i+1], ".")))
			return Unknown()
		}
		cur = fieldT
	}
	return cur
}

// leadingDottedPath extracts the leading identifier.identifier... run
// from an expr-lang expression, stopping at the first non-path
// character (call, index, operator). Returns nil if the expression
// doesn't start with an identifier (e.g. a literal).
func leadingDottedPath(expr string) []string {
	expr = strings.TrimSpace(expr)
	i := 0
	var segs []string
	for i < len(expr) {
		start := i
		for i < len(expr) && isIdentByte(expr[i]) {
			i++
		}
		if i == start {
			break
		}
		segs = append(segs, expr[start:i])
		if i < len(expr) && expr[i] == '.' {
			i++
			continue
		}
		break
	}
	return segs
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
