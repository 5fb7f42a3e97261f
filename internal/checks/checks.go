// Package checks implements the checks & asserts engine:
// it walks a parsed Value in lock-step with its static Type
// (`distribute_type`) and evaluates every @check/@assert predicate found
// along the way as a template expression.
package checks

import (
	"fmt"
	"strings"

	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/template"
	"github.com/bamlgo/baml/internal/types"
	"github.com/bamlgo/baml/internal/value"
)

// UserFailure names one failed constraint: the dotted path to the field
// that failed, the field's own name, and the check/assert label.
type UserFailure struct {
	Path      string
	FieldName string
	Label     string
}

func (f UserFailure) String() string {
	return fmt.Sprintf("%s (field %q, check %q)", f.Path, f.FieldName, f.Label)
}

// OutcomeKind tags which variant of the engine's result is populated.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeAssertFailure
	OutcomeCheckFailures
)

// Outcome is the engine's result sum: Success, AssertFailure(UserFailure),
// or CheckFailures([]UserFailure).
type Outcome struct {
	Kind   OutcomeKind
	Assert *UserFailure
	Checks []UserFailure
}

func Success() Outcome { return Outcome{Kind: OutcomeSuccess} }

func (o Outcome) IsSuccess() bool { return o.Kind == OutcomeSuccess }

// combine merges two outcomes: any assert failure short-circuits (assert
// wins over everything), checks accumulate, and success is the identity
// element.
func combine(a, b Outcome) Outcome {
	if a.Kind == OutcomeAssertFailure {
		return a
	}
	if b.Kind == OutcomeAssertFailure {
		return b
	}
	checks := append(append([]UserFailure{}, a.Checks...), b.Checks...)
	if len(checks) == 0 {
		return Success()
	}
	return Outcome{Kind: OutcomeCheckFailures, Checks: checks}
}

// Engine evaluates constraints against an IR's class definitions.
type Engine struct {
	ir *ir.IntermediateRepr
}

func New(irepr *ir.IntermediateRepr) *Engine { return &Engine{ir: irepr} }

// Run walks v against t, evaluating every constraint reached along the
// way, and combines the results into a single Outcome.
func (e *Engine) Run(v *value.Value, t *types.Type) (Outcome, error) {
	return e.walk(v, t, "$", "")
}

// walk implements distribute_type: it recurses structurally through v and
// t together, evaluating constraints on Constrained nodes as they're
// encountered, and combining results bottom-up.
func (e *Engine) walk(v *value.Value, t *types.Type, path, fieldName string) (Outcome, error) {
	if t == nil || v == nil {
		return Success(), nil
	}

	switch t.Shape {
	case types.ShapeConstrained:
		inner, err := e.walk(v, t.Elem, path, fieldName)
		if err != nil {
			return Outcome{}, err
		}
		own, err := e.evalConstraints(v, t.Constraints, path, fieldName)
		if err != nil {
			return Outcome{}, err
		}
		return combine(inner, own), nil

	case types.ShapeOptional:
		if v.IsNull() {
			return Success(), nil
		}
		return e.walk(v, t.Elem, path, fieldName)

	case types.ShapeUnion:
		for _, variant := range t.Items {
			if unionVariantMatches(v, variant) {
				return e.walk(v, variant, path, fieldName)
			}
		}
		return Success(), nil

	case types.ShapeList:
		if v.Kind != value.KindList {
			return Success(), nil
		}
		out := Success()
		for i, item := range v.List {
			sub, err := e.walk(item, t.Elem, fmt.Sprintf("%s[%d]", path, i), fieldName)
			if err != nil {
				return Outcome{}, err
			}
			out = combine(out, sub)
		}
		return out, nil

	case types.ShapeMap:
		if v.Kind != value.KindMap {
			return Success(), nil
		}
		out := Success()
		var walkErr error
		v.Map.Range(func(k string, mv *value.Value) bool {
			sub, err := e.walk(mv, t.MapVal, fmt.Sprintf("%s.%s", path, k), k)
			if err != nil {
				walkErr = err
				return false
			}
			out = combine(out, sub)
			return true
		})
		if walkErr != nil {
			return Outcome{}, walkErr
		}
		return out, nil

	case types.ShapeNamedClass:
		if v.Kind != value.KindClass {
			return Success(), nil
		}
		cls, ok := e.ir.Classes[t.Name]
		if !ok {
			return Success(), nil
		}
		out := Success()
		for _, f := range cls.StaticFields {
			fv, ok := v.Fields.Get(f.Name)
			if !ok {
				continue
			}
			sub, err := e.walk(fv, f.Type, fmt.Sprintf("%s.%s", path, f.Name), f.Name)
			if err != nil {
				return Outcome{}, err
			}
			out = combine(out, sub)
		}
		return out, nil

	default:
		return Success(), nil
	}
}

// unionVariantMatches reports whether v's runtime Kind is compatible with
// variant's shape, used to pick which union member to descend into.
func unionVariantMatches(v *value.Value, variant *types.Type) bool {
	base := types.Base(variant)
	switch base.Shape {
	case types.ShapeNamedClass:
		return v.Kind == value.KindClass && v.ClassName == base.Name
	case types.ShapeNamedEnum:
		return v.Kind == value.KindEnum && v.EnumTag == base.Name
	case types.ShapeList:
		return v.Kind == value.KindList
	case types.ShapeMap:
		return v.Kind == value.KindMap
	case types.ShapeOptional:
		return v.IsNull() || unionVariantMatches(v, base.Elem)
	case types.ShapePrimitive:
		switch base.Primitive {
		case types.PrimString:
			return v.Kind == value.KindString
		case types.PrimInt:
			return v.Kind == value.KindInt
		case types.PrimFloat:
			return v.Kind == value.KindFloat || v.Kind == value.KindInt
		case types.PrimBool:
			return v.Kind == value.KindBool
		case types.PrimNull:
			return v.IsNull()
		}
	}
	return false
}

// evalConstraints evaluates every @check/@assert predicate attached to a
// constrained type, over a minimal {this: ...} environment, and combines
// them into one Outcome.
func (e *Engine) evalConstraints(v *value.Value, constraints []types.Constraint, path, fieldName string) (Outcome, error) {
	out := Success()
	for _, c := range constraints {
		env := map[string]any{"this": value.ToNative(v)}
		result, err := template.Evaluate(c.Predicate, env)
		if err != nil {
			return Outcome{}, bamlerr.Wrap(bamlerr.TemplateError, err, "evaluating %s %q at %s", levelName(c.Level), c.Label, path)
		}
		if template.Truthy(result) {
			continue
		}
		failure := UserFailure{Path: path, FieldName: fieldName, Label: labelOrDefault(c)}
		if c.Level == types.LevelAssert {
			return Outcome{Kind: OutcomeAssertFailure, Assert: &failure}, nil
		}
		out = combine(out, Outcome{Kind: OutcomeCheckFailures, Checks: []UserFailure{failure}})
	}
	return out, nil
}

func labelOrDefault(c types.Constraint) string {
	if c.Label != "" {
		return c.Label
	}
	return strings.TrimSpace(c.Predicate)
}

func levelName(l types.CheckLevel) string {
	if l == types.LevelAssert {
		return "assert"
	}
	return "check"
}
