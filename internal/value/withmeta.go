package value

// WithMeta mirrors Value's shape but attaches a generic metadata payload M
// to every node — used by the coercer to carry its per-node parse flags.
type WithMeta[M any] struct {
	Kind Kind
	Meta M

	Str   string
	Int   int64
	Float float64
	Bool  bool

	List  []*WithMeta[M]
	Map   *OrderedMapMeta[M]
	Media *Media

	EnumTag   string
	EnumValue string

	ClassName string
	Fields    *OrderedMapMeta[M]
}

// OrderedMapMeta is OrderedMap's counterpart for WithMeta-valued entries.
type OrderedMapMeta[M any] struct {
	keys []string
	vals map[string]*WithMeta[M]
}

func NewOrderedMapMeta[M any]() *OrderedMapMeta[M] {
	return &OrderedMapMeta[M]{vals: make(map[string]*WithMeta[M])}
}

func (m *OrderedMapMeta[M]) Set(key string, v *WithMeta[M]) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

func (m *OrderedMapMeta[M]) Get(key string) (*WithMeta[M], bool) {
	v, ok := m.vals[key]
	return v, ok
}

func (m *OrderedMapMeta[M]) Keys() []string { return m.keys }
func (m *OrderedMapMeta[M]) Len() int       { return len(m.keys) }

func (m *OrderedMapMeta[M]) Range(fn func(key string, v *WithMeta[M]) bool) {
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

// Strip discards metadata, producing the plain Value the rest of the
// system (checks aside) consumes.
func Strip[M any](v *WithMeta[M]) *Value {
	if v == nil {
		return Null()
	}
	switch v.Kind {
	case KindNull:
		return Null()
	case KindString:
		return String(v.Str)
	case KindInt:
		return Int(v.Int)
	case KindFloat:
		return Float(v.Float)
	case KindBool:
		return Bool(v.Bool)
	case KindEnum:
		return Enum(v.EnumTag, v.EnumValue)
	case KindMedia:
		return MediaVal(v.Media)
	case KindList:
		items := make([]*Value, len(v.List))
		for i, item := range v.List {
			items[i] = Strip(item)
		}
		return List(items)
	case KindMap:
		om := NewOrderedMap()
		v.Map.Range(func(k string, mv *WithMeta[M]) bool {
			om.Set(k, Strip(mv))
			return true
		})
		return Map(om)
	case KindClass:
		om := NewOrderedMap()
		v.Fields.Range(func(k string, fv *WithMeta[M]) bool {
			om.Set(k, Strip(fv))
			return true
		})
		return Class(v.ClassName, om)
	default:
		return Null()
	}
}
