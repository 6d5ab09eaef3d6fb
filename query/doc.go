// Package query defines the operator tree that webdb drivers consume.
//
// The db package builds Node trees from typed column expressions; SQL
// drivers compile them into dialect-specific SQL, and the in-memory
// drivers evaluate them directly with Eval.
//
// # Nodes
//
// A Node is an operator applied to arguments. Arguments are nested
// *Node values, ColumnRef references, or Go literals:
//
//	// test_table.key <= 3
//	n := query.NewNode(query.LessEqual,
//	    query.ColumnRef{Table: "test_table", Name: "key"},
//	    3,
//	)
//
// # Queries
//
// Query describes one select against one table: the expressions to
// project, an optional filter tree, ordering, and distinct.
package query
