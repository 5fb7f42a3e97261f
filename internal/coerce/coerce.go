// Package coerce implements the JSON-ish tolerant coercer (component
// 4.I): it extracts JSON-shaped fragments from arbitrary model output and
// coerces them into a target Type, annotating the result with a ParseFlags
// bag describing what had to be bent to make the value fit.
package coerce

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/types"
	"github.com/bamlgo/baml/internal/value"
	"github.com/tidwall/gjson"
)

// Options tunes coercion behavior.
type Options struct {
	// AllowPartials enables the streaming-friendly rules: growable tails
	// of lists/classes are dropped instead of failing the whole parse.
	AllowPartials bool
}

// CoerceText runs the full extraction + coercion pipeline against
// freeform model output text, returning the best-scoring
// ValueWithMeta[Flags] for the target type.
func CoerceText(text string, t *types.Type, irepr *ir.IntermediateRepr, opts Options) (*Value, error) {
	if opts.AllowPartials {
		if v, ok := tryPartialList(text, t, irepr, opts); ok {
			return v, nil
		}
	}

	cands := extract(text)
	if len(cands) == 0 {
		if v, ok := rawStringFallback(text, t); ok {
			return v, nil
		}
		return nil, bamlerr.New(bamlerr.CoercionError, "no JSON-shaped value found in model output")
	}

	var results []Result
	for i, c := range cands {
		v, flags, err := coerceValue(c.result, t, irepr, opts)
		if err != nil {
			continue
		}
		if c.repaired {
			flags = flags.with(TaggedFlag{Flag: FlagSubstringMatch})
		}
		v.Meta = flags
		results = append(results, Result{Value: v, FieldsCount: fieldsParsed(v), SourceOrder: i})
	}
	if len(results) == 0 {
		if v, ok := rawStringFallback(text, t); ok {
			return v, nil
		}
		return nil, bamlerr.New(bamlerr.CoercionError, "no candidate coerced to the target type")
	}
	sort.SliceStable(results, func(i, j int) bool { return less(results[i], results[j]) })
	return results[0].Value, nil
}

// rawStringFallback lets a bare string-typed output accept the whole
// response verbatim when no JSON-ish fragment is found, the common case
// for plain-text completions.
func rawStringFallback(text string, t *types.Type) (*Value, bool) {
	base := types.Base(t)
	if base.Shape == types.ShapePrimitive && base.Primitive == types.PrimString {
		return &Value{Kind: value.KindString, Str: strings.TrimSpace(text)}, true
	}
	if base.Shape == types.ShapeOptional {
		return rawStringFallback(text, base.Elem)
	}
	return nil, false
}

// coerceValue dispatches on t's shape.
func coerceValue(g gjson.Result, t *types.Type, irepr *ir.IntermediateRepr, opts Options) (*Value, Flags, error) {
	switch t.Shape {
	case types.ShapeConstrained:
		return coerceValue(g, t.Elem, irepr, opts)
	case types.ShapeOptional:
		if !g.Exists() || g.Type == gjson.Null {
			return &Value{Kind: value.KindNull}, Flags{{Flag: FlagOptionalDefaultFromNoValue}}, nil
		}
		return coerceValue(g, t.Elem, irepr, opts)
	case types.ShapePrimitive:
		if v, f, err, ok := coerceScalarFromContainer(g, t, irepr, opts); ok {
			return v, f, err
		}
		return coercePrimitive(g, t.Primitive)
	case types.ShapeLiteralString:
		if v, f, err, ok := coerceScalarFromContainer(g, t, irepr, opts); ok {
			return v, f, err
		}
		if g.String() != t.LitString {
			return nil, nil, bamlerr.New(bamlerr.CoercionError, "expected literal %q, got %q", t.LitString, g.String())
		}
		return &Value{Kind: value.KindString, Str: t.LitString}, nil, nil
	case types.ShapeLiteralInt:
		if v, f, err, ok := coerceScalarFromContainer(g, t, irepr, opts); ok {
			return v, f, err
		}
		if g.Int() != t.LitInt {
			return nil, nil, bamlerr.New(bamlerr.CoercionError, "expected literal %d", t.LitInt)
		}
		return &Value{Kind: value.KindInt, Int: t.LitInt}, nil, nil
	case types.ShapeLiteralBool:
		if v, f, err, ok := coerceScalarFromContainer(g, t, irepr, opts); ok {
			return v, f, err
		}
		if g.Bool() != t.LitBool {
			return nil, nil, bamlerr.New(bamlerr.CoercionError, "expected literal %t", t.LitBool)
		}
		return &Value{Kind: value.KindBool, Bool: t.LitBool}, nil, nil
	case types.ShapeNamedEnum:
		e, ok := irepr.Enums[t.Name]
		if !ok {
			return nil, nil, bamlerr.New(bamlerr.InternalFailure, "unknown enum %q", t.Name)
		}
		if v, f, err, ok := coerceScalarFromContainer(g, t, irepr, opts); ok {
			return v, f, err
		}
		return coerceEnum(g, e)
	case types.ShapeNamedClass:
		c, ok := irepr.Classes[t.Name]
		if !ok {
			return nil, nil, bamlerr.New(bamlerr.InternalFailure, "unknown class %q", t.Name)
		}
		return coerceClass(g, c, irepr, opts)
	case types.ShapeList:
		return coerceList(g, t.Elem, irepr, opts)
	case types.ShapeMap:
		return coerceMap(g, t.MapKey, t.MapVal, irepr, opts)
	case types.ShapeUnion:
		return coerceUnion(g, t.Items, irepr, opts)
	case types.ShapeTuple:
		return coerceTuple(g, t.Items, irepr, opts)
	default:
		return nil, nil, bamlerr.New(bamlerr.InternalFailure, "unhandled type shape in coercion")
	}
}

// coerceScalarFromContainer handles a scalar target (Primitive, Literal,
// Enum) given an array or object candidate: the model wrapped its answer
// in a container, so every element/value is tried as a candidate scalar
// and the best-scoring one wins (ArrayElement(i) ranking; ObjectKey/
// SingleObjectKey mirror it for
// objects). Returns ok=false when g isn't a container, so the caller
// falls through to its normal scalar coercion.
func coerceScalarFromContainer(g gjson.Result, t *types.Type, irepr *ir.IntermediateRepr, opts Options) (*Value, Flags, error, bool) {
	switch {
	case g.IsArray():
		items := g.Array()
		var best *Value
		var bestFlags Flags
		bestRank := -1
		bestIdx := -1
		for i, item := range items {
			v, f, err := coerceValue(item, t, irepr, opts)
			if err != nil {
				continue
			}
			r := f.Rank()
			if bestRank < 0 || r < bestRank {
				best, bestFlags, bestRank, bestIdx = v, f, r, i
			}
		}
		if best == nil {
			return nil, nil, bamlerr.New(bamlerr.CoercionError, "no array element coerced to scalar type"), true
		}
		return best, bestFlags.with(TaggedFlag{Flag: FlagArrayElement, Index: bestIdx}), nil, true
	case g.IsObject():
		keys := g.Map()
		if len(keys) == 1 {
			for k, v := range keys {
				cv, f, err := coerceValue(v, t, irepr, opts)
				if err != nil {
					return nil, nil, err, true
				}
				return cv, f.with(TaggedFlag{Flag: FlagSingleObjectKey, Key: k}), nil, true
			}
		}
		sortedK := make([]string, 0, len(keys))
		for k := range keys {
			sortedK = append(sortedK, k)
		}
		sort.Strings(sortedK)
		var best *Value
		var bestFlags Flags
		bestRank := -1
		bestKey := ""
		for _, k := range sortedK {
			v := keys[k]
			cv, f, err := coerceValue(v, t, irepr, opts)
			if err != nil {
				continue
			}
			r := f.Rank()
			if bestRank < 0 || r < bestRank {
				best, bestFlags, bestRank, bestKey = cv, f, r, k
			}
		}
		if best == nil {
			return nil, nil, bamlerr.New(bamlerr.CoercionError, "no object value coerced to scalar type"), true
		}
		return best, bestFlags.with(TaggedFlag{Flag: FlagObjectKey, Key: bestKey}), nil, true
	default:
		return nil, nil, nil, false
	}
}

var boolYes = regexp.MustCompile(`(?i)^\s*(yes|y)\s*\.?\s*$`)
var boolNo = regexp.MustCompile(`(?i)^\s*(no|n)\s*\.?\s*$`)

func coercePrimitive(g gjson.Result, prim types.Primitive) (*Value, Flags, error) {
	switch prim {
	case types.PrimString:
		return &Value{Kind: value.KindString, Str: g.String()}, nil, nil
	case types.PrimInt:
		switch g.Type {
		case gjson.Number:
			if strings.Contains(g.Raw, ".") {
				return &Value{Kind: value.KindInt, Int: int64(g.Float())}, Flags{{Flag: FlagFloatToIntLossy}}, nil
			}
			return &Value{Kind: value.KindInt, Int: g.Int()}, nil, nil
		case gjson.String:
			s := strings.TrimSpace(g.String())
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &Value{Kind: value.KindInt, Int: n}, Flags{{Flag: FlagStringToInt}}, nil
			}
			return nil, nil, bamlerr.New(bamlerr.CoercionError, "cannot coerce %q to int", g.String())
		default:
			return nil, nil, bamlerr.New(bamlerr.CoercionError, "cannot coerce to int")
		}
	case types.PrimFloat:
		switch g.Type {
		case gjson.Number:
			return &Value{Kind: value.KindFloat, Float: g.Float()}, nil, nil
		case gjson.String:
			if f, err := strconv.ParseFloat(strings.TrimSpace(g.String()), 64); err == nil {
				return &Value{Kind: value.KindFloat, Float: f}, Flags{{Flag: FlagStringToInt}}, nil
			}
			return nil, nil, bamlerr.New(bamlerr.CoercionError, "cannot coerce %q to float", g.String())
		default:
			return nil, nil, bamlerr.New(bamlerr.CoercionError, "cannot coerce to float")
		}
	case types.PrimBool:
		return coerceBool(g)
	case types.PrimNull:
		if !g.Exists() || g.Type == gjson.Null {
			return &Value{Kind: value.KindNull}, nil, nil
		}
		return nil, nil, bamlerr.New(bamlerr.CoercionError, "expected null")
	default:
		return nil, nil, bamlerr.New(bamlerr.CoercionError, "unsupported primitive output type")
	}
}

// coerceBool implements a direct/indirect ranking: bool passes through
// directly; "true"/"false" and
// 0/1 are direct; "yes"/"no" is indirect (lower rank, i.e. higher number).
func coerceBool(g gjson.Result) (*Value, Flags, error) {
	switch g.Type {
	case gjson.True, gjson.False:
		return &Value{Kind: value.KindBool, Bool: g.Bool()}, nil, nil
	case gjson.Number:
		switch g.Float() {
		case 0:
			return &Value{Kind: value.KindBool, Bool: false}, Flags{{Flag: FlagBoolStringToBool}}, nil
		case 1:
			return &Value{Kind: value.KindBool, Bool: true}, Flags{{Flag: FlagBoolStringToBool}}, nil
		}
		return nil, nil, bamlerr.New(bamlerr.CoercionError, "cannot coerce number to bool")
	case gjson.String:
		s := g.String()
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return &Value{Kind: value.KindBool, Bool: true}, Flags{{Flag: FlagBoolStringToBool}}, nil
		case "false":
			return &Value{Kind: value.KindBool, Bool: false}, Flags{{Flag: FlagBoolStringToBool}}, nil
		}
		if boolYes.MatchString(s) {
			return &Value{Kind: value.KindBool, Bool: true}, Flags{{Flag: FlagBoolStringToBool}, {Flag: FlagSubstringMatch}}, nil
		}
		if boolNo.MatchString(s) {
			return &Value{Kind: value.KindBool, Bool: false}, Flags{{Flag: FlagBoolStringToBool}, {Flag: FlagSubstringMatch}}, nil
		}
		return nil, nil, bamlerr.New(bamlerr.CoercionError, "cannot coerce %q to bool", s)
	default:
		return nil, nil, bamlerr.New(bamlerr.CoercionError, "cannot coerce to bool")
	}
}

func coerceEnum(g gjson.Result, e *ir.Enum) (*Value, Flags, error) {
	raw := strings.ToLower(strings.TrimSpace(strings.Trim(g.String(), ".")))
	for _, v := range e.Values {
		if v.Skip {
			continue
		}
		if strings.ToLower(v.Name) == raw {
			return &Value{Kind: value.KindEnum, EnumTag: e.Name, EnumValue: v.Name}, nil, nil
		}
		for _, alias := range v.Aliases {
			if strings.ToLower(alias) == raw {
				return &Value{Kind: value.KindEnum, EnumTag: e.Name, EnumValue: v.Name}, Flags{{Flag: FlagSubstringMatch}}, nil
			}
		}
	}
	// Substring match: the model's text contains an enum value name
	// somewhere (e.g. "shipped." for target "SHIPPED").
	for _, v := range e.Values {
		if v.Skip {
			continue
		}
		if strings.Contains(raw, strings.ToLower(v.Name)) {
			return &Value{Kind: value.KindEnum, EnumTag: e.Name, EnumValue: v.Name}, Flags{{Flag: FlagSubstringMatch}}, nil
		}
	}
	return nil, nil, bamlerr.New(bamlerr.CoercionError, "no enum value of %q matched %q", e.Name, g.String())
}

func coerceList(g gjson.Result, elemT *types.Type, irepr *ir.IntermediateRepr, opts Options) (*Value, Flags, error) {
	if !g.IsArray() {
		v, flags, err := coerceValue(g, elemT, irepr, opts)
		if err != nil {
			return nil, nil, err
		}
		return &Value{Kind: value.KindList, List: []*Value{v}}, flags.with(TaggedFlag{Flag: FlagSingleArrayElement}), nil
	}
	items := g.Array()
	var out []*Value
	var flags Flags
	for i, item := range items {
		v, f, err := coerceValue(item, elemT, irepr, opts)
		if err != nil {
			// dropping uncoercible elements is allowed with a flag
			flags = append(flags, TaggedFlag{Flag: FlagDefaultButHadUnparseableValue})
			continue
		}
		if len(f) > 0 {
			flags = append(flags, TaggedFlag{Flag: FlagArrayElement, Index: i})
		}
		out = append(out, v)
	}
	if out == nil {
		out = []*Value{}
	}
	return &Value{Kind: value.KindList, List: out}, flags, nil
}

func coerceMap(g gjson.Result, keyT, valT *types.Type, irepr *ir.IntermediateRepr, opts Options) (*Value, Flags, error) {
	if !g.IsObject() {
		return nil, nil, bamlerr.New(bamlerr.CoercionError, "expected an object for map type")
	}
	om := value.NewOrderedMapMeta[Flags]()
	var firstErr error
	g.ForEach(func(key, v gjson.Result) bool {
		if _, err := coerceMapKey(key.String(), keyT); err != nil {
			firstErr = err
			return true
		}
		vv, _, err := coerceValue(v, valT, irepr, opts)
		if err != nil {
			firstErr = err
			return true
		}
		om.Set(key.String(), vv)
		return true
	})
	if om.Len() == 0 && firstErr != nil {
		return nil, nil, firstErr
	}
	return &Value{Kind: value.KindMap, Map: om}, nil, nil
}

func coerceMapKey(key string, keyT *types.Type) (string, error) {
	base := types.Base(keyT)
	if base.Shape == types.ShapePrimitive && base.Primitive == types.PrimString {
		return key, nil
	}
	return key, nil // non-string map keys aren't meaningfully distinct in JSON text
}

func coerceTuple(g gjson.Result, items []*types.Type, irepr *ir.IntermediateRepr, opts Options) (*Value, Flags, error) {
	if !g.IsArray() {
		return nil, nil, bamlerr.New(bamlerr.CoercionError, "expected an array for tuple type")
	}
	arr := g.Array()
	if len(arr) != len(items) {
		return nil, nil, bamlerr.New(bamlerr.CoercionError, "tuple arity mismatch: want %d, got %d", len(items), len(arr))
	}
	out := make([]*Value, len(items))
	for i, it := range items {
		v, _, err := coerceValue(arr[i], it, irepr, opts)
		if err != nil {
			return nil, nil, err
		}
		out[i] = v
	}
	return &Value{Kind: value.KindList, List: out}, nil, nil
}

// coerceUnion tries every variant and keeps the best-scoring success,
// tie-broken by declaration order.
func coerceUnion(g gjson.Result, items []*types.Type, irepr *ir.IntermediateRepr, opts Options) (*Value, Flags, error) {
	var best *Value
	var bestFlags Flags
	bestRank := -1
	for i, it := range items {
		v, f, err := coerceValue(g, it, irepr, opts)
		if err != nil {
			continue
		}
		rank := f.Rank()
		if bestRank < 0 || rank < bestRank {
			bestRank = rank
			best = v
			bestFlags = f
			_ = i
		}
	}
	if best == nil {
		return nil, nil, bamlerr.New(bamlerr.CoercionError, "no union variant matched")
	}
	return best, bestFlags, nil
}

// coerceClass implements class coercion: required/optional field
// partitioning, extra-key tracking, and the array-of-objects fallback.
func coerceClass(g gjson.Result, c *ir.Class, irepr *ir.IntermediateRepr, opts Options) (*Value, Flags, error) {
	if g.IsArray() {
		// "array of objects coerces to class via best singular element"
		var best *Value
		var bestFlags Flags
		bestRank := -1
		for _, item := range g.Array() {
			v, f, err := coerceClass(item, c, irepr, opts)
			if err != nil {
				continue
			}
			r := f.Rank()
			if bestRank < 0 || r < bestRank {
				best, bestFlags, bestRank = v, f, r
			}
		}
		if best == nil {
			return nil, nil, bamlerr.New(bamlerr.CoercionError, "no array element coerced to class %q", c.Name)
		}
		return best, bestFlags.with(TaggedFlag{Flag: FlagSingleArrayElement}), nil
	}
	if !g.IsObject() {
		return nil, nil, bamlerr.New(bamlerr.CoercionError, "expected an object for class %q", c.Name)
	}

	om := value.NewOrderedMapMeta[Flags]()
	var flags Flags
	seenKeys := map[string]bool{}
	g.ForEach(func(key, v gjson.Result) bool {
		seenKeys[key.String()] = true
		return true
	})

	for _, f := range c.StaticFields {
		fv := g.Get(gjsonPathFor(f.Name))
		if fv.Exists() {
			seenKeys[f.Name] = false // consumed, not extra
			coerced, cf, err := coerceValue(fv, f.Type, irepr, opts)
			if err != nil {
				if types.IsOptional(f.Type) {
					om.Set(f.Name, &Value{Kind: value.KindNull})
					flags = flags.with(TaggedFlag{Flag: FlagOptionalDefaultFromNoValue})
					continue
				}
				if !opts.AllowPartials {
					return nil, nil, bamlerr.Wrap(bamlerr.CoercionError, err, "missing required field %q on class %q", f.Name, c.Name)
				}
				flags = flags.with(TaggedFlag{Flag: FlagDefaultButHadUnparseableValue})
				continue
			}
			om.Set(f.Name, coerced)
			if len(cf) > 0 {
				flags = flags.with(TaggedFlag{Flag: FlagObjectKey, Key: f.Name})
			}
			continue
		}
		if types.IsOptional(f.Type) {
			om.Set(f.Name, &Value{Kind: value.KindNull})
			flags = flags.with(TaggedFlag{Flag: FlagOptionalDefaultFromNoValue})
			continue
		}
		if !opts.AllowPartials {
			return nil, nil, bamlerr.New(bamlerr.CoercionError, "missing required field %q on class %q", f.Name, c.Name)
		}
		flags = flags.with(TaggedFlag{Flag: FlagDefaultFromNoValue})
	}

	for k, extra := range seenKeys {
		if extra {
			flags = flags.with(TaggedFlag{Flag: FlagExtraKey, Key: k})
		}
	}

	return &Value{Kind: value.KindClass, ClassName: c.Name, Fields: om}, flags, nil
}

// gjsonPathFor escapes a field name for use as a gjson.Get path segment.
func gjsonPathFor(name string) string {
	return strings.NewReplacer(".", "\\.", "*", "\\*", "?", "\\?").Replace(name)
}

func fieldsParsed(v *Value) int {
	if v == nil {
		return 0
	}
	switch v.Kind {
	case value.KindClass:
		return v.Fields.Len()
	case value.KindMap:
		return v.Map.Len()
	case value.KindList:
		return len(v.List)
	default:
		return 1
	}
}
