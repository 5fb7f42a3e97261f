package parserdb

import (
	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/types"
)

// validate runs the second parserdb phase: type-reference resolution,
// the required-dependency cycle check (Tarjan SCC), and function/test
// validation.
func (db *Database) validate(diags *bamlerr.Diagnostics) {
	db.validateTypeReferences(diags)
	db.validateCycles(diags)
	db.validateFunctions(diags)
	db.validateTests(diags)
}

// validateTypeReferences walks every resolved field/param/output type and
// reports a ValidationError for any NamedClass/NamedEnum that isn't
// declared.
func (db *Database) validateTypeReferences(diags *bamlerr.Diagnostics) {
	check := func(context string, t *types.Type, span bamlerr.Span) {
		for name := range types.Dependencies(t) {
			if !db.TypeRefExists(name) {
				unknownTypeErr(diags, context, name, span)
			}
		}
	}
	for _, cname := range db.ClassOrder {
		cls := db.Classes[cname]
		for _, f := range cls.Fields {
			if t, ok := db.ClassFieldTypes[cname+"."+f.Name]; ok {
				check("class "+cname+"."+f.Name, t, f.Span)
			}
		}
	}
	for _, fname := range db.FunctionOrder {
		fn := db.Functions[fname]
		for _, in := range fn.Inputs {
			if t, ok := db.ClassFieldTypes[fname+".in."+in.Name]; ok {
				check("function "+fname+" input "+in.Name, t, in.Span)
			}
		}
		if t, ok := db.ClassFieldTypes[fname+".out"]; ok {
			check("function "+fname+" output", t, fn.Span)
		}
		if fn.Client != "" {
			if _, ok := db.Clients[fn.Client]; !ok {
				diags.PushError(bamlerr.At(bamlerr.ValidationError, fn.Span,
					"function %q references unknown client %q", fname, fn.Client))
			}
		}
	}
}

// validateCycles builds the required-dependency graph over classes
// (edges only for required, non-union, non-optional fields; union edges
// only when every variant has a dependency, with self-references removed
// when other variants exist) and rejects any strongly connected
// component that constitutes a cycle.
func (db *Database) validateCycles(diags *bamlerr.Diagnostics) {
	// Sort for determinism independent of file-discovery order, matching
	// the "rotate so the smallest node ID leads" rule over a stable base
	// ordering.
	sortedNames := sortedKeys(db.Classes)
	idx := make(map[string]int, len(sortedNames))
	for i, n := range sortedNames {
		idx[n] = i
	}

	adj := make([][]int, len(sortedNames))
	for _, cname := range sortedNames {
		cls := db.Classes[cname]
		var depNames []string
		for _, f := range cls.Fields {
			t, ok := db.ClassFieldTypes[cname+"."+f.Name]
			if !ok {
				continue
			}
			depNames = append(depNames, requiredClassDeps(t, cname)...)
		}
		for _, d := range depNames {
			if j, ok := idx[d]; ok {
				adj[idx[cname]] = append(adj[idx[cname]], j)
			}
		}
	}

	comps := TarjanSCC(adj)
	for _, comp := range comps {
		if !IsCycle(adj, comp) {
			continue
		}
		names := make([]string, len(comp))
		for i, v := range comp {
			names[i] = sortedNames[v]
		}
		diags.PushError(bamlerr.New(bamlerr.ValidationError,
			"dependency cycle detected: %s", fmtNames(names)))
	}
}

// requiredClassDeps extracts the class names that t requires to exist.
// Optional fields, and union variants that include a dependency-free
// member, do not contribute edges.
func requiredClassDeps(t *types.Type, selfName string) []string {
	if t == nil {
		return nil
	}
	if types.IsOptional(t) {
		return nil
	}
	switch t.Shape {
	case types.ShapeNamedClass:
		return []string{t.Name}
	case types.ShapeNamedEnum:
		return nil
	case types.ShapeList:
		return requiredClassDeps(t.Elem, selfName)
	case types.ShapeMap:
		return requiredClassDeps(t.MapVal, selfName)
	case types.ShapeTuple:
		var out []string
		for _, it := range t.Items {
			out = append(out, requiredClassDeps(it, selfName)...)
		}
		return out
	case types.ShapeConstrained:
		return requiredClassDeps(t.Elem, selfName)
	case types.ShapeUnion:
		var all []string
		for _, it := range t.Items {
			d := requiredClassDeps(it, selfName)
			if len(d) == 0 {
				// A variant with no class dependency (e.g. a primitive)
				// lets the union break any cycle through it.
				return nil
			}
			all = append(all, d...)
		}
		if len(t.Items) > 1 {
			filtered := all[:0]
			for _, name := range all {
				if name != selfName {
					filtered = append(filtered, name)
				}
			}
			return filtered
		}
		return all
	default:
		return nil
	}
}

// validateFunctions checks that the output type shape is renderable
// (outputformat rejects bare image/audio/tuple/map at the top level;
// parserdb performs only the cheap structural pre-check here, rejecting a
// map, and the renderer enforces the rest at render time). Each
// function's client reference is checked in validateTypeReferences.
func (db *Database) validateFunctions(diags *bamlerr.Diagnostics) {
	for _, fname := range db.FunctionOrder {
		fn := db.Functions[fname]
		t, ok := db.ClassFieldTypes[fname+".out"]
		if !ok {
			continue
		}
		base := types.Base(t)
		if base.Shape == types.ShapeMap {
			diags.PushError(bamlerr.At(bamlerr.ValidationError, fn.Span,
				"function %q: map is not a valid output type", fname))
		}
	}
}

// validateTests checks each test case names a declared function and
// supplies an argument for every non-optional input of that function.
// Argument values are not checked against the declared input types.
func (db *Database) validateTests(diags *bamlerr.Diagnostics) {
	for _, t := range db.Tests {
		fn, ok := db.Functions[t.FunctionName]
		if !ok {
			diags.PushError(bamlerr.At(bamlerr.ValidationError, t.Span,
				"test %q references unknown function %q", t.Name, t.FunctionName))
			continue
		}
		for _, in := range fn.Inputs {
			if _, ok := t.Args[in.Name]; !ok && !types.IsOptional(db.ClassFieldTypes[fn.Name+".in."+in.Name]) {
				diags.PushError(bamlerr.At(bamlerr.ValidationError, t.Span,
					"test %q is missing required argument %q for function %q", t.Name, in.Name, fn.Name))
			}
		}
	}
}
