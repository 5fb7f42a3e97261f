package ir

// Walker is a read-only cursor over one named IR node, borrowing the IR
// plus a node ID and exposing typed navigation to neighbors (spec
// glossary: "Walker"). The IR itself is never mutated through a Walker.
type Walker[T any] struct {
	ir   *IntermediateRepr
	id   string
	node T
}

// WalkClass returns a Walker positioned on the named class, or ok=false
// if it doesn't exist.
func WalkClass(ir *IntermediateRepr, name string) (Walker[*Class], bool) {
	c, ok := ir.Classes[name]
	return Walker[*Class]{ir: ir, id: name, node: c}, ok
}

// WalkEnum returns a Walker positioned on the named enum.
func WalkEnum(ir *IntermediateRepr, name string) (Walker[*Enum], bool) {
	e, ok := ir.Enums[name]
	return Walker[*Enum]{ir: ir, id: name, node: e}, ok
}

// WalkFunction returns a Walker positioned on the named function.
func WalkFunction(ir *IntermediateRepr, name string) (Walker[*Function], bool) {
	f, ok := ir.Functions[name]
	return Walker[*Function]{ir: ir, id: name, node: f}, ok
}

func (w Walker[T]) ID() string { return w.id }
func (w Walker[T]) Node() T    { return w.node }
func (w Walker[T]) IR() *IntermediateRepr { return w.ir }

// FieldNames returns the names of the class's static fields in
// declaration order, given a Walker[*Class]; for a Walker on any other
// node kind it returns nil.
func (w Walker[T]) FieldNames() []string {
	c, ok := any(w.node).(*Class)
	if !ok || c == nil {
		return nil
	}
	names := make([]string, len(c.StaticFields))
	for i, f := range c.StaticFields {
		names[i] = f.Name
	}
	return names
}
