// Package ast implements the lossless syntactic tree for .baml source: a
// hand-rolled recursive-descent lexer and parser. No
// example repo in the retrieval pack ships a tree-sitter grammar for this
// language, so the lexer/parser here follows the *structure* of the
// teacher's own services/trace/ast parsers (one file per concern,
// Diagnostics accumulation instead of panics) rather than reusing any
// particular grammar.
package ast

import "github.com/bamlgo/baml/internal/bamlerr"

// ExprKind tags which variant of the Expression sum a node holds:
// primitives, identifiers (local,
// environment-ref, primitive keyword, dotted path), map/array literals,
// string literals (cooked and raw), and a Jinja expression literal.
type ExprKind int

const (
	ExprInt ExprKind = iota
	ExprFloat
	ExprBool
	ExprNull
	ExprString    // cooked "..." literal
	ExprRawString // dedented #"..."# literal
	ExprIdent     // local identifier or dotted path (a.b.c)
	ExprEnvVar    // env.FOO
	ExprArray
	ExprMap
	ExprJinja // captured Jinja predicate source, used by @check/@assert
)

// Expression is the closed AST expression sum.
type Expression struct {
	Kind ExprKind
	Span bamlerr.Span

	Int   int64
	Float float64
	Bool  bool
	Str   string // ExprString/ExprRawString/ExprJinja payload

	Path []string // ExprIdent/ExprEnvVar dotted path

	Items      []*Expression // ExprArray
	MapEntries []MapEntry    // ExprMap
}

// MapEntry is one key/value pair of a map-literal expression.
type MapEntry struct {
	Key   string
	Value *Expression
}

// Attribute is a `@name(args...)` node attached to a field, class, enum
// value, or function. Arguments are Expression values; `@check`/`@assert`
// attributes store their label as Args[0] (a string literal) and their
// Jinja predicate as Args[1] (an ExprJinja).
type Attribute struct {
	Name string
	Args []*Expression
	Span bamlerr.Span
}

// StringLabel returns the attribute's first argument as a string literal,
// used for @alias("x"), @check("label", ...), @assert("label", ...).
func (a *Attribute) StringLabel() (string, bool) {
	if len(a.Args) == 0 {
		return "", false
	}
	if a.Args[0].Kind == ExprString || a.Args[0].Kind == ExprRawString {
		return a.Args[0].Str, true
	}
	return "", false
}

// Param is a named, type-annotated parameter: a function input or a
// template-string input.
type Param struct {
	Name     string
	TypeExpr string
	Span     bamlerr.Span
}

// FieldDecl is one class field: name, type expression text (parsed lazily
// by internal/types.ParseType), and attached attributes.
type FieldDecl struct {
	Name     string
	TypeExpr string
	Attrs    []Attribute
	Span     bamlerr.Span
}

// EnumValue is one member of an enum declaration.
type EnumValue struct {
	Name  string
	Attrs []Attribute
	Span  bamlerr.Span
}

// Item is the interface implemented by every top-level declaration kind.
type Item interface {
	itemSpan() bamlerr.Span
	ItemName() string
}

// EnumDecl declares an enum and its values.
type EnumDecl struct {
	Name   string
	Values []EnumValue
	Attrs  []Attribute
	Span   bamlerr.Span
}

func (d *EnumDecl) itemSpan() bamlerr.Span { return d.Span }
func (d *EnumDecl) ItemName() string       { return d.Name }

// ClassDecl declares a class and its fields.
type ClassDecl struct {
	Name   string
	Fields []FieldDecl
	Attrs  []Attribute
	Span   bamlerr.Span
}

func (d *ClassDecl) itemSpan() bamlerr.Span { return d.Span }
func (d *ClassDecl) ItemName() string       { return d.Name }

// TemplateStringDecl declares a named, parameterized, reusable template
// fragment (`template_string Foo(x: string) #"..."#`).
type TemplateStringDecl struct {
	Name   string
	Params []Param
	Body   string // dedented raw-string body
	Span   bamlerr.Span
}

func (d *TemplateStringDecl) itemSpan() bamlerr.Span { return d.Span }
func (d *TemplateStringDecl) ItemName() string       { return d.Name }

// FunctionDecl declares a typed function: inputs, output type, client,
// and prompt body.
type FunctionDecl struct {
	Name     string
	Inputs   []Param
	Output   string // type expression text
	Client   string
	Prompt   string // dedented raw-string prompt body
	PromptSp bamlerr.Span
	Attrs    []Attribute
	Span     bamlerr.Span
}

func (d *FunctionDecl) itemSpan() bamlerr.Span { return d.Span }
func (d *FunctionDecl) ItemName() string       { return d.Name }

// ClientDecl declares a named LLM client: provider tag, options bag, and
// optional retry-policy reference.
type ClientDecl struct {
	Name        string
	Provider    string
	Options     map[string]*Expression
	OptionOrder []string
	RetryPolicy string
	Span        bamlerr.Span
}

func (d *ClientDecl) itemSpan() bamlerr.Span { return d.Span }
func (d *ClientDecl) ItemName() string       { return d.Name }

// StrategyDecl is a retry policy's backoff strategy.
type StrategyDecl struct {
	Type       string // "constant_delay" | "exponential_backoff"
	DelayMs    int64
	Multiplier float64
	MaxDelayMs int64
}

// RetryPolicyDecl declares a named {max_retries, strategy} bundle.
type RetryPolicyDecl struct {
	Name       string
	MaxRetries int64
	Strategy   StrategyDecl
	Span       bamlerr.Span
}

func (d *RetryPolicyDecl) itemSpan() bamlerr.Span { return d.Span }
func (d *RetryPolicyDecl) ItemName() string       { return d.Name }

// TestCaseDecl declares a test bound to a function with concrete argument
// expressions.
type TestCaseDecl struct {
	Name         string
	FunctionName string
	Args         map[string]*Expression
	ArgOrder     []string
	Span         bamlerr.Span
}

func (d *TestCaseDecl) itemSpan() bamlerr.Span { return d.Span }
func (d *TestCaseDecl) ItemName() string       { return d.Name }

// File is one parsed .baml source file.
type File struct {
	Path  string
	Items []Item
}
