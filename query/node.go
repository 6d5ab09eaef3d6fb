package query

import (
	"fmt"
	"strings"
)

// ColumnRef names a column inside a bound table.
type ColumnRef struct {
	Table string
	Name  string
}

func (r ColumnRef) String() string {
	if r.Table == "" {
		return fmt.Sprintf("%q", r.Name)
	}
	return fmt.Sprintf("%q.%q", r.Table, r.Name)
}

// Node is one operator application. Args holds nested *Node values,
// ColumnRef references, or Go literals.
type Node struct {
	Op   Op
	Args []any
}

// NewNode builds an operator node.
func NewNode(op Op, args ...any) *Node {
	return &Node{Op: op, Args: args}
}

func (n *Node) String() string {
	parts := make([]string, 0, len(n.Args)+1)
	parts = append(parts, n.Op.String())
	for _, a := range n.Args {
		switch x := a.(type) {
		case *Node:
			parts = append(parts, x.String())
		case ColumnRef:
			parts = append(parts, x.String())
		default:
			parts = append(parts, fmt.Sprintf("%v", a))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Columns returns every column reference in the tree, in evaluation
// order. Drivers use it to validate filters against the schema.
func (n *Node) Columns() []ColumnRef {
	if n == nil {
		return nil
	}
	var refs []ColumnRef
	var walk func(arg any)
	walk = func(arg any) {
		switch x := arg.(type) {
		case *Node:
			for _, a := range x.Args {
				walk(a)
			}
		case ColumnRef:
			refs = append(refs, x)
		}
	}
	walk(n)
	return refs
}

// Query describes one select against a single table.
//
// Columns holds projection expressions (ColumnRef or *Node). An empty
// slice means every declared column. Where of nil selects all rows.
type Query struct {
	Table    string
	Columns  []any
	Where    *Node
	Distinct bool
	OrderBy  []any
}
