// Package value implements the universal dynamic value the runtime passes
// around: the result of coercion, the input to checks/asserts, and the
// shape callers construct arguments from.
//
// Description:
//
//	Value is a closed sum type (String, Int, Float, Bool, Null, List, Map,
//	Media, Enum, Class). Computation over it is exhaustive case analysis
//	via the Kind tag rather than duck typing, matching the "explicit
//	pattern matching replaces object introspection" design note.
package value

import "fmt"

// Kind tags which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
	KindMedia
	KindEnum
	KindClass
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindMedia:
		return "media"
	case KindEnum:
		return "enum"
	case KindClass:
		return "class"
	default:
		return "unknown"
	}
}

// MediaSource distinguishes how a Media value's bytes are reachable.
type MediaSource int

const (
	MediaSourceInline MediaSource = iota
	MediaSourceFile
	MediaSourceURL
)

// MediaKind is image or audio, per the Primitive type's Image|Audio split.
type MediaKind int

const (
	MediaImage MediaKind = iota
	MediaAudio
)

// Media is an image or audio value, one of inline bytes, a file path, or a
// URL. MimeType may be empty for the URL/file sources until resolved by
// the llmclient media pipeline.
type Media struct {
	Kind     MediaKind
	Source   MediaSource
	MimeType string
	Bytes    []byte
	Path     string
	URL      string
}

// entry is one insertion-ordered key/value pair of a Map or Class value.
type entry struct {
	key string
	val *Value
}

// OrderedMap is a string-keyed map that preserves insertion order, used by
// both Map and Class variants.
type OrderedMap struct {
	entries []entry
	index   map[string]int
}

// NewOrderedMap returns an empty, ready-to-use OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{index: make(map[string]int)}
}

// Set inserts or overwrites a key, preserving the original position on
// overwrite (so repeated Set calls don't reorder fields).
func (m *OrderedMap) Set(key string, v *Value) {
	if i, ok := m.index[key]; ok {
		m.entries[i].val = v
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, entry{key: key, val: v})
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (*Value, bool) {
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[i].val, true
}

// Keys returns keys in insertion order.
func (m *OrderedMap) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int { return len(m.entries) }

// Range calls fn for each entry in insertion order; stops early if fn
// returns false.
func (m *OrderedMap) Range(fn func(key string, v *Value) bool) {
	for _, e := range m.entries {
		if !fn(e.key, e.val) {
			return
		}
	}
}

// Value is the dynamic value sum every coerced or constructed result is
// represented as. Exactly one of the typed fields is meaningful, selected
// by Kind.
type Value struct {
	Kind Kind

	Str   string
	Int   int64
	Float float64
	Bool  bool

	List  []*Value
	Map   *OrderedMap
	Media *Media

	// Enum holds (tag name, value name): e.g. ("OrderStatus", "SHIPPED").
	EnumTag   string
	EnumValue string

	// Class holds the class name plus its ordered field map.
	ClassName string
	Fields    *OrderedMap
}

func Null() *Value                 { return &Value{Kind: KindNull} }
func String(s string) *Value       { return &Value{Kind: KindString, Str: s} }
func Int(i int64) *Value           { return &Value{Kind: KindInt, Int: i} }
func Float(f float64) *Value       { return &Value{Kind: KindFloat, Float: f} }
func Bool(b bool) *Value           { return &Value{Kind: KindBool, Bool: b} }
func List(items []*Value) *Value   { return &Value{Kind: KindList, List: items} }
func Map(m *OrderedMap) *Value     { return &Value{Kind: KindMap, Map: m} }
func MediaVal(m *Media) *Value     { return &Value{Kind: KindMedia, Media: m} }
func Enum(tag, name string) *Value { return &Value{Kind: KindEnum, EnumTag: tag, EnumValue: name} }
func Class(name string, fields *OrderedMap) *Value {
	return &Value{Kind: KindClass, ClassName: name, Fields: fields}
}

func (v *Value) IsNull() bool { return v == nil || v.Kind == KindNull }

// Equal performs a deep structural comparison, used by tests and by the
// streaming property that successive partial values only grow.
func Equal(a, b *Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() == b.IsNull()
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindString:
		return a.Str == b.Str
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindBool:
		return a.Bool == b.Bool
	case KindEnum:
		return a.EnumTag == b.EnumTag && a.EnumValue == b.EnumValue
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if a.Map.Len() != b.Map.Len() {
			return false
		}
		eq := true
		a.Map.Range(func(k string, av *Value) bool {
			bv, ok := b.Map.Get(k)
			if !ok || !Equal(av, bv) {
				eq = false
				return false
			}
			return true
		})
		return eq
	case KindClass:
		if a.ClassName != b.ClassName || a.Fields.Len() != b.Fields.Len() {
			return false
		}
		eq := true
		a.Fields.Range(func(k string, av *Value) bool {
			bv, ok := b.Fields.Get(k)
			if !ok || !Equal(av, bv) {
				eq = false
				return false
			}
			return true
		})
		return eq
	case KindMedia:
		return a.Media.Kind == b.Media.Kind && a.Media.Source == b.Media.Source &&
			a.Media.MimeType == b.Media.MimeType && a.Media.Path == b.Media.Path && a.Media.URL == b.Media.URL
	default:
		return false
	}
}

func (v *Value) String() string {
	if v.IsNull() {
		return "null"
	}
	switch v.Kind {
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindEnum:
		return fmt.Sprintf("%s::%s", v.EnumTag, v.EnumValue)
	case KindList:
		return fmt.Sprintf("List(%d items)", len(v.List))
	case KindMap:
		return fmt.Sprintf("Map(%d entries)", v.Map.Len())
	case KindClass:
		return fmt.Sprintf("%s{...}", v.ClassName)
	case KindMedia:
		return fmt.Sprintf("Media(%v)", v.Media.Kind)
	default:
		return "<unknown>"
	}
}

// ToNative converts a Value into a plain Go value (string, int64, float64,
// bool, nil, []any, map[string]any) suitable for JSON marshaling or for
// handing to a general-purpose expression evaluator's environment.
func ToNative(v *Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindBool:
		return v.Bool
	case KindEnum:
		return v.EnumValue
	case KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = ToNative(item)
		}
		return out
	case KindMap:
		out := make(map[string]any, v.Map.Len())
		v.Map.Range(func(k string, mv *Value) bool {
			out[k] = ToNative(mv)
			return true
		})
		return out
	case KindClass:
		out := make(map[string]any, v.Fields.Len())
		v.Fields.Range(func(k string, fv *Value) bool {
			out[k] = ToNative(fv)
			return true
		})
		return out
	case KindMedia:
		return map[string]any{"kind": v.Media.Kind, "url": v.Media.URL, "path": v.Media.Path}
	default:
		return nil
	}
}
