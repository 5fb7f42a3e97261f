// Package parserdb implements the semantic pass over a parsed .baml AST
// : name resolution, attribute attachment, dependency
// extraction, strongly-connected-component cycle detection, and
// test/client/function validation. It is the single gate between raw
// syntax and the IR — a Database is only handed to internal/ir once its
// Diagnostics carry zero errors.
package parserdb

import (
	"fmt"
	"sort"

	"github.com/bamlgo/baml/internal/ast"
	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/types"
)

// Database is the resolved, name-indexed view over one or more parsed
// source files, built in two phases: Resolution, then Validation.
type Database struct {
	Enums           map[string]*ast.EnumDecl
	Classes         map[string]*ast.ClassDecl
	Functions       map[string]*ast.FunctionDecl
	Clients         map[string]*ast.ClientDecl
	RetryPolicies   map[string]*ast.RetryPolicyDecl
	TemplateStrings map[string]*ast.TemplateStringDecl
	Tests           []*ast.TestCaseDecl

	// *Order preserve first-seen declaration order, used by IR
	// construction so output is stable across rebuilds of the same
	// sources.
	EnumOrder     []string
	ClassOrder    []string
	FunctionOrder []string
	ClientOrder   []string
	RetryOrder    []string
	TemplateOrder []string

	// ClassFieldTypes caches each class field's parsed Type, keyed by
	// "ClassName.FieldName", computed once during resolution.
	ClassFieldTypes map[string]*types.Type
}

func newDatabase() *Database {
	return &Database{
		Enums:           map[string]*ast.EnumDecl{},
		Classes:         map[string]*ast.ClassDecl{},
		Functions:       map[string]*ast.FunctionDecl{},
		Clients:         map[string]*ast.ClientDecl{},
		RetryPolicies:   map[string]*ast.RetryPolicyDecl{},
		TemplateStrings: map[string]*ast.TemplateStringDecl{},
		ClassFieldTypes: map[string]*types.Type{},
	}
}

// Build runs Resolution then Validation over a set of parsed files,
// returning the Database and the accumulated diagnostics. The runtime
// must refuse to construct an IR (and hence a Runtime) if diags has any
// errors.
func Build(files []*ast.File) (*Database, *bamlerr.Diagnostics) {
	diags := &bamlerr.Diagnostics{}
	db := newDatabase()
	db.resolve(files, diags)
	db.validate(diags)
	return db, diags
}

// FieldType returns the cached parsed Type for className.fieldName, or nil
// if not found (resolution failed to parse it).
func (db *Database) FieldType(className, fieldName string) *types.Type {
	return db.ClassFieldTypes[className+"."+fieldName]
}

// TypeRefExists reports whether name resolves to a declared class or enum.
func (db *Database) TypeRefExists(name string) bool {
	_, isClass := db.Classes[name]
	_, isEnum := db.Enums[name]
	return isClass || isEnum
}

// sortedKeys returns m's keys in ascending order, used wherever a stable
// deterministic iteration order is needed independent of map iteration.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dupErr(diags *bamlerr.Diagnostics, kind, name string, span bamlerr.Span) {
	diags.PushError(bamlerr.At(bamlerr.ValidationError, span, "duplicate %s declaration %q", kind, name))
}

func unknownTypeErr(diags *bamlerr.Diagnostics, context, name string, span bamlerr.Span) {
	diags.PushError(bamlerr.At(bamlerr.ValidationError, span, "%s references unknown type %q", context, name))
}

func fmtNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += " -> "
		}
		out += n
	}
	if len(names) > 0 {
		out += fmt.Sprintf(" -> %s", names[0])
	}
	return out
}
