package template

// Scope is one block's variable-to-type bindings. Scopes are chained via
// parent so lookups fall through to enclosing blocks, modeling scope as
// a stack of maps.
type Scope struct {
	parent *Scope
	vars   map[string]*TType
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, vars: map[string]*TType{}}
}

// Lookup resolves name in this scope or any ancestor, returning ok=false
// if undeclared anywhere in the chain.
func (s *Scope) Lookup(name string) (*TType, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// Set binds name to t in this scope (not an ancestor) — used by {% set %}.
func (s *Scope) Set(name string, t *TType) { s.vars[name] = t }

// Fork returns a fresh child scope with s as parent, used to enter an
// if-branch or for-body block.
func (s *Scope) Fork() *Scope { return NewScope(s) }

// JoinBranches merges the local bindings introduced by two sibling
// branch scopes (e.g. then/else) back into parent: a variable assigned in
// only one branch becomes `T | Undefined`; a variable assigned in both
// takes the union of both branches' types.
func JoinBranches(parent *Scope, branches ...*Scope) {
	seen := map[string]int{}
	types := map[string]*TType{}
	for _, b := range branches {
		for name, t := range b.vars {
			seen[name]++
			if existing, ok := types[name]; ok {
				types[name] = UnionT(existing, t)
			} else {
				types[name] = t
			}
		}
	}
	for name, t := range types {
		if seen[name] < len(branches) {
			t = WithUndefined(t)
		}
		parent.Set(name, t)
	}
}
