// Package ir implements the intermediate representation:
// a language-neutral, walk-friendly graph built as a pure function of a
// validated parserdb.Database. Every downstream consumer (template
// renderer, output-format renderer, coercer, checks engine) walks the IR,
// never the AST or the Database directly.
package ir

import (
	"github.com/bamlgo/baml/internal/ast"
	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/types"
)

// NodeAttributes is the side-table every IR node carries: its source
// span plus optional alias/description strings surfaced by @alias/
// @description attributes.
type NodeAttributes struct {
	Span        bamlerr.Span
	Alias       string
	Description string
}

// Field is one class field: its declared type (already carrying any
// @check/@assert constraints from parserdb) plus attributes.
type Field struct {
	Name string
	Type *types.Type
	Attr NodeAttributes
}

// Class is an IR class node: an ordered list of static fields.
type Class struct {
	Name         string
	StaticFields []Field
	Attr         NodeAttributes
}

// EnumValue is one member of an IR enum node.
type EnumValue struct {
	Name    string
	Aliases []string // additional acceptable spellings for the coercer
	Skip    bool      // @skip: excluded from coercion matches
	Attr    NodeAttributes
}

// Enum is an IR enum node.
type Enum struct {
	Name   string
	Values []EnumValue
	Attr   NodeAttributes
}

// FunctionConfig is one {client, prompt} binding for a function. The spec
// notes the reference implementation's "v1 variant" system is effectively
// dead (§9 Open Questions); this implementation assumes exactly one
// FunctionConfig per function, bound to one client.
type FunctionConfig struct {
	Client       string
	PromptTSName string // the synthetic TemplateString ID holding the prompt body
}

// Function is an IR function node: typed inputs, output type, and its
// (single) client/prompt configuration.
type Function struct {
	Name    string
	Inputs  []Param
	Output  *types.Type
	Configs []FunctionConfig
	Attr    NodeAttributes
}

// Param is a named, typed function input.
type Param struct {
	Name string
	Type *types.Type
}

// Client is an IR client node.
type Client struct {
	Name        string
	Provider    string
	Options     map[string]*ast.Expression
	OptionOrder []string
	RetryPolicy string // "" if none
	Attr        NodeAttributes
}

// RetryPolicy is an IR retry-policy node.
type RetryPolicy struct {
	Name       string
	MaxRetries int64
	Strategy   ast.StrategyDecl
	Attr       NodeAttributes
}

// TemplateString is an IR template-string node: a named, parameterized
// Jinja-like body. Functions get a synthetic TemplateString per spec
// §4.F ("the prompt body becomes an additional template-string entry
// keyed by the function ID") so the template type checker can check it
// with the function's inputs in scope.
type TemplateString struct {
	Name   string
	Params []Param
	Body   string
	Attr   NodeAttributes
}

// TestCase is an IR test-case node.
type TestCase struct {
	Name         string
	FunctionName string
	Args         map[string]*ast.Expression
	ArgOrder     []string
	Attr         NodeAttributes
}

// IntermediateRepr owns every declaration, normalized and name-indexed.
// Immutable once constructed: built once per runtime build, never
// mutated afterward.
type IntermediateRepr struct {
	Enums           map[string]*Enum
	Classes         map[string]*Class
	Functions       map[string]*Function
	Clients         map[string]*Client
	RetryPolicies   map[string]*RetryPolicy
	TemplateStrings map[string]*TemplateString
	Tests           []*TestCase

	EnumOrder     []string
	ClassOrder    []string
	FunctionOrder []string
	ClientOrder   []string
	RetryOrder    []string
	TemplateOrder []string
}

// FunctionPromptName returns the synthetic template-string name used for
// fn's prompt body.
func FunctionPromptName(fnName string) string { return "$fn_prompt:" + fnName }
