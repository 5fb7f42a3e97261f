package template

import "github.com/bamlgo/baml/internal/bamlerr"

// NodeKind tags a parsed template node.
type NodeKind int

const (
	NodeText NodeKind = iota
	NodeExpr          // {{ expr }}
	NodeIf
	NodeFor
	NodeSet
)

// ElifClause is one `{% elif cond %}` arm of an If node.
type ElifClause struct {
	Cond string
	Body []Node
	Span bamlerr.Span
}

// Node is one parsed template AST node.
type Node struct {
	Kind NodeKind
	Span bamlerr.Span

	Text string // NodeText

	Expr string // NodeExpr/NodeSet value/NodeFor iterable/NodeIf cond

	VarName string // NodeSet/NodeFor loop variable

	Then  []Node       // NodeIf then-branch; NodeFor body
	Elifs []ElifClause // NodeIf
	Else  []Node       // NodeIf else-branch
}
