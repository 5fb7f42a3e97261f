// Package template implements the Jinja-like prompt template language
// : a statement/expression grammar, a type-checked compile
// step over a schema-derived environment, and a renderer that executes a
// template against concrete values to produce either a completion string
// or an ordered chat-message sequence.
//
// Expression evaluation (arithmetic, comparison, indexing, pipe filters,
// function calls) is delegated to github.com/expr-lang/expr — the same
// dependency the pack's ormasoftchile-gert runtime engine uses for this
// purpose — so this package owns scoping, typing, and block control flow
// while expr-lang owns expression semantics.
package template

import "fmt"

// TKind tags which variant of the template type-environment sum a TType
// holds.
type TKind int

const (
	TUnknown TKind = iota // unifies with anything
	TUndefined
	TNone
	TInt
	TFloat
	TNumber // superclass of Int|Float for unification
	TString
	TBool
	TList
	TMap
	TTuple
	TUnion
	TClassRef
	TFunctionRef
)

// TType is one node of the template type environment.
type TType struct {
	Kind TKind
	Elem *TType   // List element
	Key  *TType   // Map key
	Val  *TType   // Map value
	Items []*TType // Tuple/Union members
	Name string    // ClassRef/FunctionRef name
}

func Unknown() *TType   { return &TType{Kind: TUnknown} }
func Undefined() *TType { return &TType{Kind: TUndefined} }
func NoneT() *TType     { return &TType{Kind: TNone} }
func IntT() *TType      { return &TType{Kind: TInt} }
func FloatT() *TType    { return &TType{Kind: TFloat} }
func NumberT() *TType   { return &TType{Kind: TNumber} }
func StringT() *TType   { return &TType{Kind: TString} }
func BoolT() *TType     { return &TType{Kind: TBool} }
func ListT(e *TType) *TType { return &TType{Kind: TList, Elem: e} }
func MapT(k, v *TType) *TType { return &TType{Kind: TMap, Key: k, Val: v} }
func TupleT(items ...*TType) *TType { return &TType{Kind: TTuple, Items: items} }
func ClassRefT(name string) *TType  { return &TType{Kind: TClassRef, Name: name} }
func FunctionRefT(name string) *TType { return &TType{Kind: TFunctionRef, Name: name} }

// UnionT builds a Union type, deduplicating structurally-equal members.
func UnionT(items ...*TType) *TType {
	out := make([]*TType, 0, len(items))
	for _, it := range items {
		dup := false
		for _, seen := range out {
			if Print(seen) == Print(it) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return &TType{Kind: TUnion, Items: out}
}

// WithUndefined widens t to `t | Undefined`, used when branch-join finds a
// variable assigned in only one arm.
func WithUndefined(t *TType) *TType {
	if t.Kind == TUnion {
		for _, it := range t.Items {
			if it.Kind == TUndefined {
				return t
			}
		}
	}
	return UnionT(t, Undefined())
}

// Unifies reports whether a and b can coexist in the same position:
// Unknown unifies with anything, Number equals Int or Float, and equal
// kinds/names unify with themselves.
func Unifies(a, b *TType) bool {
	if a.Kind == TUnknown || b.Kind == TUnknown {
		return true
	}
	if a.Kind == TNumber && (b.Kind == TInt || b.Kind == TFloat || b.Kind == TNumber) {
		return true
	}
	if b.Kind == TNumber && (a.Kind == TInt || a.Kind == TFloat || a.Kind == TNumber) {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TClassRef, TFunctionRef:
		return a.Name == b.Name
	case TList:
		return Unifies(a.Elem, b.Elem)
	case TMap:
		return Unifies(a.Key, b.Key) && Unifies(a.Val, b.Val)
	default:
		return true
	}
}

// Print renders t for diagnostics.
func Print(t *TType) string {
	if t == nil {
		return "unknown"
	}
	switch t.Kind {
	case TUnknown:
		return "unknown"
	case TUndefined:
		return "undefined"
	case TNone:
		return "none"
	case TInt:
		return "int"
	case TFloat:
		return "float"
	case TNumber:
		return "number"
	case TString:
		return "string"
	case TBool:
		return "bool"
	case TList:
		return fmt.Sprintf("list<%s>", Print(t.Elem))
	case TMap:
		return fmt.Sprintf("map<%s, %s>", Print(t.Key), Print(t.Val))
	case TTuple:
		return "tuple"
	case TUnion:
		s := ""
		for i, it := range t.Items {
			if i > 0 {
				s += " | "
			}
			s += Print(it)
		}
		return s
	case TClassRef:
		return t.Name
	case TFunctionRef:
		return "fn:" + t.Name
	default:
		return "?"
	}
}
