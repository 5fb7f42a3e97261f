// Package outputformat renders a function's return Type into the schema
// blurb injected as `ctx.output_format`, a direct,
// idiomatic-Go port of the reference renderer's prefix/hoist/inline rules.
package outputformat

import (
	"fmt"
	"strings"

	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/types"
)

// PrefixMode is Auto/Always/Never for a RenderOptions string field.
type PrefixMode int

const (
	PrefixAuto PrefixMode = iota
	PrefixAlways
	PrefixNever
)

// TriState is Auto/Always/Never for a RenderOptions bool field.
type TriState int

const (
	TriAuto TriState = iota
	TriAlwaysTrue
	TriAlwaysFalse
)

// RenderOptions tunes the schema renderer's output.
type RenderOptions struct {
	Prefix           PrefixMode
	PrefixText       string // used when Prefix == PrefixAlways
	OrSplitter       string // default " or "
	EnumValuePrefix  PrefixMode
	EnumPrefixText   string
	AlwaysHoistEnums TriState
}

// DefaultOptions returns the renderer's documented defaults.
func DefaultOptions() RenderOptions {
	return RenderOptions{OrSplitter: " or "}
}

const enumInlineThreshold = 6

// Renderer renders types against an IR's class/enum definitions, so named
// references can resolve fields/values and their descriptions.
type Renderer struct {
	ir   *ir.IntermediateRepr
	opts RenderOptions

	hoisted   []string // rendered hoisted enum/class blocks, in first-seen order
	hoistedAt map[string]bool
}

func New(irepr *ir.IntermediateRepr, opts RenderOptions) *Renderer {
	return &Renderer{ir: irepr, opts: opts, hoistedAt: map[string]bool{}}
}

// Render returns the schema blurb for t, rejecting Image/Tuple/Map
// output shapes.
func (r *Renderer) Render(t *types.Type) (string, error) {
	if err := r.rejectInvalidOutputShape(t); err != nil {
		return "", err
	}
	body := r.renderType(t, 0)
	prefix := r.selectPrefix(t)
	var sb strings.Builder
	if prefix != "" {
		sb.WriteString(prefix)
	}
	sb.WriteString(body)
	for _, block := range r.hoisted {
		sb.WriteString("\n\n")
		sb.WriteString(block)
	}
	return sb.String(), nil
}

func (r *Renderer) rejectInvalidOutputShape(t *types.Type) error {
	base := types.Base(t)
	switch base.Shape {
	case types.ShapePrimitive:
		if base.Primitive == types.PrimImage || base.Primitive == types.PrimAudio {
			return bamlerr.New(bamlerr.ValidationError, "type %q is not a valid function output type", types.Print(t))
		}
	case types.ShapeTuple:
		return bamlerr.New(bamlerr.ValidationError, "tuple types are not valid function output types")
	case types.ShapeMap:
		return bamlerr.New(bamlerr.ValidationError, "map types are not valid function output types")
	case types.ShapeList:
		return r.rejectInvalidOutputShape(base.Elem)
	case types.ShapeOptional:
		return r.rejectInvalidOutputShape(base.Elem)
	case types.ShapeUnion:
		for _, it := range base.Items {
			if err := r.rejectInvalidOutputShape(it); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) selectPrefix(t *types.Type) string {
	switch r.opts.Prefix {
	case PrefixAlways:
		return r.opts.PrefixText
	case PrefixNever:
		return ""
	}
	base := types.Base(t)
	switch base.Shape {
	case types.ShapeNamedEnum:
		return "Answer with any of the categories:\n"
	case types.ShapePrimitive, types.ShapeLiteralString, types.ShapeLiteralInt, types.ShapeLiteralBool:
		return ""
	default:
		return "Answer in JSON using this schema:\n"
	}
}

func (r *Renderer) renderType(t *types.Type, indent int) string {
	base := types.Base(t)
	switch base.Shape {
	case types.ShapePrimitive:
		return base.Primitive.String()
	case types.ShapeLiteralString:
		return fmt.Sprintf("%q", base.LitString)
	case types.ShapeLiteralInt:
		return fmt.Sprintf("%d", base.LitInt)
	case types.ShapeLiteralBool:
		return fmt.Sprintf("%t", base.LitBool)
	case types.ShapeNamedClass:
		return r.renderClassRef(base.Name)
	case types.ShapeNamedEnum:
		return r.renderEnumRef(base.Name)
	case types.ShapeList:
		return r.renderList(base.Elem, indent)
	case types.ShapeTuple:
		parts := make([]string, len(base.Items))
		for i, it := range base.Items {
			parts[i] = r.renderType(it, indent)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case types.ShapeUnion:
		parts := make([]string, len(base.Items))
		for i, it := range base.Items {
			parts[i] = r.renderType(it, indent)
		}
		splitter := r.opts.OrSplitter
		if splitter == "" {
			splitter = " or "
		}
		return strings.Join(parts, splitter)
	case types.ShapeOptional:
		inner := r.renderType(base.Elem, indent)
		if types.IsOptional(base.Elem) {
			return inner
		}
		return inner + " or null"
	case types.ShapeMap:
		return fmt.Sprintf("map<%s, %s>", r.renderType(base.MapKey, indent), r.renderType(base.MapVal, indent))
	default:
		return "<?>"
	}
}

// renderList applies the inline-vs-multiline rule and the `(T or null)[]`
// optional special case.
func (r *Renderer) renderList(elem *types.Type, indent int) string {
	base := types.Base(elem)
	if base.Shape == types.ShapeOptional {
		inner := r.renderType(base.Elem, indent)
		return fmt.Sprintf("(%s or null)[]", inner)
	}
	if r.isSimpleInline(elem) {
		return r.renderType(elem, indent) + "[]"
	}
	inner := r.renderType(elem, indent+1)
	pad := strings.Repeat("  ", indent+1)
	closePad := strings.Repeat("  ", indent)
	return "[\n" + pad + inner + "\n" + closePad + "]"
}

func (r *Renderer) isSimpleInline(t *types.Type) bool {
	base := types.Base(t)
	if types.IsPrimitive(base) {
		return true
	}
	if base.Shape == types.ShapeNamedEnum {
		e, ok := r.ir.Enums[base.Name]
		return ok && !hasDescriptions(e) && len(e.Values) <= enumInlineThreshold
	}
	return false
}

func hasDescriptions(e *ir.Enum) bool {
	if e.Attr.Description != "" {
		return true
	}
	for _, v := range e.Values {
		if v.Attr.Description != "" {
			return true
		}
	}
	return false
}

// renderEnumRef inlines short, description-free enums as `'A' or 'B'`,
// otherwise hoists the enum body once and returns its name.
func (r *Renderer) renderEnumRef(name string) string {
	e, ok := r.ir.Enums[name]
	if !ok {
		return name
	}
	forceHoist := r.opts.AlwaysHoistEnums == TriAlwaysTrue
	forceInline := r.opts.AlwaysHoistEnums == TriAlwaysFalse
	inline := !forceHoist && (forceInline || (!hasDescriptions(e) && len(e.Values) <= enumInlineThreshold))
	if inline {
		return r.renderEnumInline(e)
	}
	r.hoistEnum(e)
	return name
}

func (r *Renderer) renderEnumInline(e *ir.Enum) string {
	parts := make([]string, 0, len(e.Values))
	for _, v := range e.Values {
		if v.Skip {
			continue
		}
		parts = append(parts, r.enumValueLabel(v))
	}
	splitter := r.opts.OrSplitter
	if splitter == "" {
		splitter = " or "
	}
	return strings.Join(parts, splitter)
}

func (r *Renderer) enumValueLabel(v ir.EnumValue) string {
	switch r.opts.EnumValuePrefix {
	case PrefixAlways:
		return fmt.Sprintf("%s'%s'", r.opts.EnumPrefixText, v.Name)
	case PrefixNever:
		return v.Name
	default:
		return fmt.Sprintf("'%s'", v.Name)
	}
}

func (r *Renderer) hoistEnum(e *ir.Enum) {
	if r.hoistedAt[e.Name] {
		return
	}
	r.hoistedAt[e.Name] = true
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", e.Name)
	for _, v := range e.Values {
		if v.Skip {
			continue
		}
		if v.Attr.Description != "" {
			fmt.Fprintf(&sb, "  '%s' // %s\n", v.Name, v.Attr.Description)
		} else {
			fmt.Fprintf(&sb, "  '%s'\n", v.Name)
		}
	}
	r.hoisted = append(r.hoisted, strings.TrimRight(sb.String(), "\n"))
}

// renderClassRef renders a class inline as `{ name: type, ... }`, one
// field per line with optional description comments.
func (r *Renderer) renderClassRef(name string) string {
	c, ok := r.ir.Classes[name]
	if !ok {
		return name
	}
	var sb strings.Builder
	sb.WriteString("{\n")
	for _, f := range c.StaticFields {
		fieldType := r.renderType(f.Type, 1)
		if f.Attr.Description != "" {
			fmt.Fprintf(&sb, "  %s: %s, // %s\n", f.Name, fieldType, f.Attr.Description)
		} else {
			fmt.Fprintf(&sb, "  %s: %s,\n", f.Name, fieldType)
		}
	}
	sb.WriteString("}")
	return sb.String()
}
