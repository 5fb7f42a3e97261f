package ir

import (
	"strings"

	"github.com/bamlgo/baml/internal/ast"
	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/parserdb"
)

// Build is the pure function from a validated parserdb.Database to an
// IntermediateRepr. The caller must have already checked db's
// diagnostics are error-free.
func Build(db *parserdb.Database) *IntermediateRepr {
	ir := &IntermediateRepr{
		Enums:           map[string]*Enum{},
		Classes:         map[string]*Class{},
		Functions:       map[string]*Function{},
		Clients:         map[string]*Client{},
		RetryPolicies:   map[string]*RetryPolicy{},
		TemplateStrings: map[string]*TemplateString{},
	}

	for _, name := range db.EnumOrder {
		ir.Enums[name] = buildEnum(db.Enums[name])
		ir.EnumOrder = append(ir.EnumOrder, name)
	}
	for _, name := range db.ClassOrder {
		ir.Classes[name] = buildClass(db, db.Classes[name])
		ir.ClassOrder = append(ir.ClassOrder, name)
	}
	for _, name := range db.ClientOrder {
		ir.Clients[name] = buildClient(db.Clients[name])
		ir.ClientOrder = append(ir.ClientOrder, name)
	}
	for _, name := range db.RetryOrder {
		ir.RetryPolicies[name] = buildRetryPolicy(db.RetryPolicies[name])
		ir.RetryOrder = append(ir.RetryOrder, name)
	}
	for _, name := range db.TemplateOrder {
		ir.TemplateStrings[name] = buildTemplateString(db, db.TemplateStrings[name])
		ir.TemplateOrder = append(ir.TemplateOrder, name)
	}
	for _, name := range db.FunctionOrder {
		fn, promptTS := buildFunction(db, db.Functions[name])
		ir.Functions[name] = fn
		ir.FunctionOrder = append(ir.FunctionOrder, name)
		ir.TemplateStrings[promptTS.Name] = promptTS
		ir.TemplateOrder = append(ir.TemplateOrder, promptTS.Name)
	}
	for _, t := range db.Tests {
		ir.Tests = append(ir.Tests, &TestCase{
			Name: t.Name, FunctionName: t.FunctionName,
			Args: t.Args, ArgOrder: t.ArgOrder,
			Attr: NodeAttributes{Span: t.Span},
		})
	}
	return ir
}

func attrsOf(attrs []ast.Attribute, span bamlerr.Span) NodeAttributes {
	na := NodeAttributes{Span: span}
	for _, a := range attrs {
		switch a.Name {
		case "alias":
			if s, ok := a.StringLabel(); ok {
				na.Alias = s
			}
		case "description":
			if s, ok := a.StringLabel(); ok {
				na.Description = s
			}
		}
	}
	return na
}

func buildEnum(d *ast.EnumDecl) *Enum {
	e := &Enum{Name: d.Name, Attr: attrsOf(d.Attrs, d.Span)}
	for _, v := range d.Values {
		ev := EnumValue{Name: v.Name, Attr: attrsOf(v.Attrs, v.Span)}
		for _, a := range v.Attrs {
			switch a.Name {
			case "alias":
				if s, ok := a.StringLabel(); ok {
					ev.Aliases = append(ev.Aliases, s)
				}
			case "skip":
				ev.Skip = true
			}
		}
		e.Values = append(e.Values, ev)
	}
	return e
}

func buildClass(db *parserdb.Database, d *ast.ClassDecl) *Class {
	c := &Class{Name: d.Name, Attr: attrsOf(d.Attrs, d.Span)}
	for _, f := range d.Fields {
		t := db.ClassFieldTypes[d.Name+"."+f.Name]
		c.StaticFields = append(c.StaticFields, Field{
			Name: f.Name, Type: t, Attr: attrsOf(f.Attrs, f.Span),
		})
	}
	return c
}

func buildClient(d *ast.ClientDecl) *Client {
	return &Client{
		Name: d.Name, Provider: d.Provider, Options: d.Options,
		OptionOrder: d.OptionOrder, RetryPolicy: d.RetryPolicy,
		Attr: NodeAttributes{Span: d.Span},
	}
}

func buildRetryPolicy(d *ast.RetryPolicyDecl) *RetryPolicy {
	return &RetryPolicy{
		Name: d.Name, MaxRetries: d.MaxRetries, Strategy: d.Strategy,
		Attr: NodeAttributes{Span: d.Span},
	}
}

func buildTemplateString(db *parserdb.Database, d *ast.TemplateStringDecl) *TemplateString {
	ts := &TemplateString{Name: d.Name, Body: d.Body, Attr: NodeAttributes{Span: d.Span}}
	for _, p := range d.Params {
		ts.Params = append(ts.Params, Param{Name: p.Name, Type: db.ClassFieldTypes[d.Name+".in."+p.Name]})
	}
	return ts
}

func buildFunction(db *parserdb.Database, d *ast.FunctionDecl) (*Function, *TemplateString) {
	fn := &Function{Name: d.Name, Attr: attrsOf(d.Attrs, d.Span)}
	for _, p := range d.Inputs {
		fn.Inputs = append(fn.Inputs, Param{Name: p.Name, Type: db.ClassFieldTypes[d.Name+".in."+p.Name]})
	}
	fn.Output = db.ClassFieldTypes[d.Name+".out"]

	promptName := FunctionPromptName(d.Name)
	fn.Configs = []FunctionConfig{{Client: d.Client, PromptTSName: promptName}}

	promptTS := &TemplateString{
		Name: promptName,
		Body: d.Prompt,
		Attr: NodeAttributes{Span: d.PromptSp},
	}
	for _, p := range fn.Inputs {
		promptTS.Params = append(promptTS.Params, p)
	}
	return fn, promptTS
}

// IsSyntheticPromptName reports whether name is the synthetic template
// string ID for a function's prompt body, as produced by
// FunctionPromptName.
func IsSyntheticPromptName(name string) bool { return strings.HasPrefix(name, "$fn_prompt:") }
