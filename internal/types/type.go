// Package types implements the field type model: primitives, literals,
// named class/enum references, list/map/tuple/union/optional, and
// constrained types carrying check/assert predicates.
package types

import (
	"fmt"
	"strings"

	"github.com/bamlgo/baml/internal/bamlerr"
)

// Primitive enumerates the scalar kinds a Type can name directly.
type Primitive int

const (
	PrimString Primitive = iota
	PrimInt
	PrimFloat
	PrimBool
	PrimNull
	PrimImage
	PrimAudio
)

func (p Primitive) String() string {
	switch p {
	case PrimString:
		return "string"
	case PrimInt:
		return "int"
	case PrimFloat:
		return "float"
	case PrimBool:
		return "bool"
	case PrimNull:
		return "null"
	case PrimImage:
		return "image"
	case PrimAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Shape tags which Type variant is populated.
type Shape int

const (
	ShapePrimitive Shape = iota
	ShapeLiteralString
	ShapeLiteralInt
	ShapeLiteralBool
	ShapeNamedClass
	ShapeNamedEnum
	ShapeList
	ShapeMap
	ShapeTuple
	ShapeUnion
	ShapeOptional
	ShapeConstrained
)

// CheckLevel distinguishes a recoverable @check from a fatal @assert.
type CheckLevel int

const (
	LevelCheck CheckLevel = iota
	LevelAssert
)

// Constraint is one @check/@assert attribute attached to a constrained
// type: a severity level, an optional label, and the Jinja predicate
// source (captured as a string with a span by the parser, evaluated
// later by the template package's expression evaluator).
type Constraint struct {
	Level      CheckLevel
	Label      string
	Predicate  string
	Span       bamlerr.Span
}

// Type is the closed field-type sum every declared value conforms to.
type Type struct {
	Shape Shape

	Primitive Primitive

	LitString string
	LitInt    int64
	LitBool   bool

	Name string // NamedClass / NamedEnum

	Elem *Type // List / Optional element, Constrained base

	MapKey *Type
	MapVal *Type

	Items []*Type // Tuple / Union members

	Constraints []Constraint
}

func Str() *Type       { return &Type{Shape: ShapePrimitive, Primitive: PrimString} }
func IntT() *Type      { return &Type{Shape: ShapePrimitive, Primitive: PrimInt} }
func FloatT() *Type    { return &Type{Shape: ShapePrimitive, Primitive: PrimFloat} }
func BoolT() *Type     { return &Type{Shape: ShapePrimitive, Primitive: PrimBool} }
func NullT() *Type     { return &Type{Shape: ShapePrimitive, Primitive: PrimNull} }
func ImageT() *Type    { return &Type{Shape: ShapePrimitive, Primitive: PrimImage} }
func AudioT() *Type    { return &Type{Shape: ShapePrimitive, Primitive: PrimAudio} }
func LitStr(s string) *Type { return &Type{Shape: ShapeLiteralString, LitString: s} }
func LitInt(i int64) *Type  { return &Type{Shape: ShapeLiteralInt, LitInt: i} }
func LitBool(b bool) *Type  { return &Type{Shape: ShapeLiteralBool, LitBool: b} }
func Class(name string) *Type { return &Type{Shape: ShapeNamedClass, Name: name} }
func Enum(name string) *Type  { return &Type{Shape: ShapeNamedEnum, Name: name} }
func ListOf(elem *Type) *Type { return &Type{Shape: ShapeList, Elem: elem} }
func MapOf(k, v *Type) *Type  { return &Type{Shape: ShapeMap, MapKey: k, MapVal: v} }
func TupleOf(items ...*Type) *Type { return &Type{Shape: ShapeTuple, Items: items} }
func UnionOf(items ...*Type) *Type { return &Type{Shape: ShapeUnion, Items: dedupUnion(items)} }
func OptionalOf(elem *Type) *Type  { return &Type{Shape: ShapeOptional, Elem: elem} }
func Constrained(base *Type, cs ...Constraint) *Type {
	return &Type{Shape: ShapeConstrained, Elem: base, Constraints: cs}
}

// dedupUnion removes structurally duplicate members, preserving first
// occurrence order (the template type checker relies on the same rule).
func dedupUnion(items []*Type) []*Type {
	out := make([]*Type, 0, len(items))
	for _, it := range items {
		dup := false
		for _, seen := range out {
			if Print(it) == Print(seen) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it)
		}
	}
	return out
}

// Base unwraps a Constrained type to its underlying base, otherwise
// returns t unchanged.
func Base(t *Type) *Type {
	if t.Shape == ShapeConstrained {
		return t.Elem
	}
	return t
}

// IsOptional treats Optional and any Union containing a null-ish member
// identically.
func IsOptional(t *Type) bool {
	t = Base(t)
	switch t.Shape {
	case ShapeOptional:
		return true
	case ShapeUnion:
		for _, it := range t.Items {
			if IsOptional(it) || (Base(it).Shape == ShapePrimitive && Base(it).Primitive == PrimNull) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// IsPrimitive reports whether t (after stripping Constrained) is a bare
// Primitive or Literal, used by the output-format inlining heuristics.
func IsPrimitive(t *Type) bool {
	t = Base(t)
	return t.Shape == ShapePrimitive || t.Shape == ShapeLiteralString ||
		t.Shape == ShapeLiteralInt || t.Shape == ShapeLiteralBool
}

// Dependencies returns the set of named class/enum references anywhere in
// t, including those inside optional, union, list and map types (used by
// parserdb's unknown-name check, as opposed to its *required*-only
// dependency walk used for cycle detection).
func Dependencies(t *Type) map[string]bool {
	out := map[string]bool{}
	var walk func(*Type)
	walk = func(t *Type) {
		if t == nil {
			return
		}
		switch t.Shape {
		case ShapeNamedClass, ShapeNamedEnum:
			out[t.Name] = true
		case ShapeList, ShapeOptional, ShapeConstrained:
			walk(t.Elem)
		case ShapeMap:
			walk(t.MapKey)
			walk(t.MapVal)
		case ShapeTuple, ShapeUnion:
			for _, it := range t.Items {
				walk(it)
			}
		}
	}
	walk(t)
	return out
}

// Print renders a Type back to BAML type-expression syntax: infix `|`
// union, postfix `?` optional, postfix `[]` list. Used for error messages
// and as a parse/print round-trip check.
func Print(t *Type) string {
	if t == nil {
		return "<nil>"
	}
	switch t.Shape {
	case ShapePrimitive:
		return t.Primitive.String()
	case ShapeLiteralString:
		return fmt.Sprintf("%q", t.LitString)
	case ShapeLiteralInt:
		return fmt.Sprintf("%d", t.LitInt)
	case ShapeLiteralBool:
		return fmt.Sprintf("%t", t.LitBool)
	case ShapeNamedClass, ShapeNamedEnum:
		return t.Name
	case ShapeList:
		return printAtomOrParen(t.Elem) + "[]"
	case ShapeMap:
		return fmt.Sprintf("map<%s, %s>", Print(t.MapKey), Print(t.MapVal))
	case ShapeTuple:
		parts := make([]string, len(t.Items))
		for i, it := range t.Items {
			parts[i] = Print(it)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case ShapeUnion:
		parts := make([]string, len(t.Items))
		for i, it := range t.Items {
			parts[i] = printAtomOrParen(it)
		}
		return strings.Join(parts, " | ")
	case ShapeOptional:
		return printAtomOrParen(t.Elem) + "?"
	case ShapeConstrained:
		return Print(t.Elem)
	default:
		return "<?>"
	}
}

// printAtomOrParen parenthesizes union members so postfix operators bind
// to the whole union rather than its last member.
func printAtomOrParen(t *Type) string {
	if t.Shape == ShapeUnion {
		return "(" + Print(t) + ")"
	}
	return Print(t)
}
