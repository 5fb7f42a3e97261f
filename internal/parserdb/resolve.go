package parserdb

import (
	"github.com/bamlgo/baml/internal/ast"
	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/types"
)

// resolve builds the name table for every top-level item across all
// files, rejecting duplicates, and parses every field/parameter type
// expression into internal/types.Type, caching the result.
func (db *Database) resolve(files []*ast.File, diags *bamlerr.Diagnostics) {
	for _, f := range files {
		for _, item := range f.Items {
			switch d := item.(type) {
			case *ast.EnumDecl:
				if _, dup := db.Enums[d.Name]; dup {
					dupErr(diags, "enum", d.Name, d.Span)
					continue
				}
				db.Enums[d.Name] = d
				db.EnumOrder = append(db.EnumOrder, d.Name)
			case *ast.ClassDecl:
				if _, dup := db.Classes[d.Name]; dup {
					dupErr(diags, "class", d.Name, d.Span)
					continue
				}
				db.Classes[d.Name] = d
				db.ClassOrder = append(db.ClassOrder, d.Name)
			case *ast.FunctionDecl:
				if _, dup := db.Functions[d.Name]; dup {
					dupErr(diags, "function", d.Name, d.Span)
					continue
				}
				db.Functions[d.Name] = d
				db.FunctionOrder = append(db.FunctionOrder, d.Name)
			case *ast.ClientDecl:
				if _, dup := db.Clients[d.Name]; dup {
					dupErr(diags, "client", d.Name, d.Span)
					continue
				}
				db.Clients[d.Name] = d
				db.ClientOrder = append(db.ClientOrder, d.Name)
			case *ast.RetryPolicyDecl:
				if _, dup := db.RetryPolicies[d.Name]; dup {
					dupErr(diags, "retry_policy", d.Name, d.Span)
					continue
				}
				db.RetryPolicies[d.Name] = d
				db.RetryOrder = append(db.RetryOrder, d.Name)
			case *ast.TemplateStringDecl:
				if _, dup := db.TemplateStrings[d.Name]; dup {
					dupErr(diags, "template_string", d.Name, d.Span)
					continue
				}
				db.TemplateStrings[d.Name] = d
				db.TemplateOrder = append(db.TemplateOrder, d.Name)
			case *ast.TestCaseDecl:
				db.Tests = append(db.Tests, d)
			}
		}
	}

	// Parse field/parameter type expressions now that every name is known
	// to exist in at least one namespace (actual resolution of the named
	// references happens in validate, which can report "unknown type").
	for _, cname := range db.ClassOrder {
		cls := db.Classes[cname]
		for _, f := range cls.Fields {
			t, err := types.ParseType(f.TypeExpr)
			if err != nil {
				diags.PushError(bamlerr.At(bamlerr.ParseError, f.Span, "field %s.%s: %s", cname, f.Name, err))
				continue
			}
			applyFieldAttrs(t, f.Attrs)
			db.ClassFieldTypes[cname+"."+f.Name] = t
		}
	}
	for _, fname := range db.FunctionOrder {
		fn := db.Functions[fname]
		for _, in := range fn.Inputs {
			t, err := types.ParseType(in.TypeExpr)
			if err != nil {
				diags.PushError(bamlerr.At(bamlerr.ParseError, in.Span, "function %s param %s: %s", fname, in.Name, err))
				continue
			}
			db.ClassFieldTypes[fname+".in."+in.Name] = t
		}
		t, err := types.ParseType(fn.Output)
		if err != nil {
			diags.PushError(bamlerr.At(bamlerr.ParseError, fn.Span, "function %s output: %s", fname, err))
			continue
		}
		db.ClassFieldTypes[fname+".out"] = t
	}
	for _, tname := range db.TemplateOrder {
		ts := db.TemplateStrings[tname]
		for _, in := range ts.Params {
			t, err := types.ParseType(in.TypeExpr)
			if err != nil {
				diags.PushError(bamlerr.At(bamlerr.ParseError, in.Span, "template_string %s param %s: %s", tname, in.Name, err))
				continue
			}
			db.ClassFieldTypes[tname+".in."+in.Name] = t
		}
	}

	// Clients: provider and options shape.
	for _, cname := range db.ClientOrder {
		cl := db.Clients[cname]
		if cl.Provider == "" {
			diags.PushError(bamlerr.At(bamlerr.ValidationError, cl.Span, "client %q is missing a required 'provider'", cname))
		}
		if cl.RetryPolicy != "" {
			if _, ok := db.RetryPolicies[cl.RetryPolicy]; !ok {
				diags.PushError(bamlerr.At(bamlerr.ValidationError, cl.Span,
					"client %q references unknown retry_policy %q", cname, cl.RetryPolicy))
			}
		}
	}
}

// applyFieldAttrs attaches @check/@assert constraints found in attrs onto
// t, wrapping it in a Constrained node if any are present.
func applyFieldAttrs(t *types.Type, attrs []ast.Attribute) *types.Type {
	var constraints []types.Constraint
	for _, a := range attrs {
		var level types.CheckLevel
		switch a.Name {
		case "check":
			level = types.LevelCheck
		case "assert":
			level = types.LevelAssert
		default:
			continue
		}
		label := ""
		if len(a.Args) > 0 {
			label, _ = a.StringLabel()
		}
		predicate := ""
		if len(a.Args) > 1 {
			predicate = a.Args[1].Str
		}
		constraints = append(constraints, types.Constraint{
			Level: level, Label: label, Predicate: predicate,
			Span: a.Span,
		})
	}
	if len(constraints) == 0 {
		return t
	}
	*t = *types.Constrained(cloneType(t), constraints...)
	return t
}

func cloneType(t *types.Type) *types.Type {
	cp := *t
	return &cp
}
