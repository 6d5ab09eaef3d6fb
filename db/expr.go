package db

import (
	"fmt"

	"github.com/silkdb/webdb/query"
)

// Expr is a value expression rooted in one table's columns.
type Expr struct {
	table *Table
	node  any // query.ColumnRef, *query.Node, or a literal
}

// Col is a column reference; it carries the full expression surface
// plus the ordering helpers.
type Col struct {
	Expr
}

// unwrap converts the caller-facing expression types into the query
// tree values drivers consume.
func unwrap(v any) any {
	switch x := v.(type) {
	case Col:
		return x.node
	case Expr:
		return x.node
	case *Where:
		return x.node
	default:
		return v
	}
}

func unwrapAll(vs []any) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = unwrap(v)
	}
	return out
}

func (e Expr) derive(op query.Op, args ...any) Expr {
	all := append([]any{e.node}, unwrapAll(args)...)
	return Expr{table: e.table, node: query.NewNode(op, all...)}
}

func (e Expr) predicate(op query.Op, args ...any) *Where {
	all := append([]any{e.node}, e.coerce(unwrapAll(args))...)
	return &Where{table: e.table, node: query.NewNode(op, all...)}
}

// coerce passes comparison literals through the column's storage
// coercion when the expression is a plain column reference, so a
// time.Time filter on a DateTime column compares in the stored wire
// format rather than against it. Values the column cannot coerce (a
// LIKE pattern on a DateTime column, say) stay as given.
func (e Expr) coerce(args []any) []any {
	ref, ok := e.node.(query.ColumnRef)
	if !ok || e.table == nil {
		return args
	}
	col, ok := e.table.def.Column(ref.Name)
	if !ok {
		return args
	}
	out := make([]any, len(args))
	for i, a := range args {
		switch a.(type) {
		case query.ColumnRef, *query.Node, nil:
			out[i] = a
			continue
		}
		if v, err := col.ToDB(a); err == nil {
			out[i] = v
		} else {
			out[i] = a
		}
	}
	return out
}

// Comparisons. Eq and Ne follow IS semantics: Eq(nil) matches NULL.

func (e Expr) Eq(v any) *Where { return e.predicate(query.Equal, v) }
func (e Expr) Ne(v any) *Where { return e.predicate(query.NotEqual, v) }
func (e Expr) Lt(v any) *Where { return e.predicate(query.LessThan, v) }
func (e Expr) Le(v any) *Where { return e.predicate(query.LessEqual, v) }
func (e Expr) Gt(v any) *Where { return e.predicate(query.GreaterThan, v) }
func (e Expr) Ge(v any) *Where { return e.predicate(query.GreaterEqual, v) }

// Between matches values in the closed interval [lo, hi].
func (e Expr) Between(lo, hi any) *Where { return e.predicate(query.Between, lo, hi) }

// Like matches a SQL LIKE pattern, case-insensitive. An optional escape
// character guards literal % and _.
func (e Expr) Like(pattern string, escape ...string) *Where {
	if len(escape) > 0 {
		return e.predicate(query.Like, pattern, escape[0])
	}
	return e.predicate(query.Like, pattern)
}

// Glob matches a case-sensitive shell pattern with * and ?.
func (e Expr) Glob(pattern string) *Where { return e.predicate(query.Glob, pattern) }

// Arithmetic and value operators.

func (e Expr) Add(v any) Expr      { return e.derive(query.Add, v) }
func (e Expr) Sub(v any) Expr      { return e.derive(query.Subtract, v) }
func (e Expr) Mul(v any) Expr      { return e.derive(query.Multiply, v) }
func (e Expr) Div(v any) Expr      { return e.derive(query.Divide, v) }
func (e Expr) FloorDiv(v any) Expr { return e.derive(query.FloorDivide, v) }
func (e Expr) Mod(v any) Expr      { return e.derive(query.Modulo, v) }
func (e Expr) Concat(v any) Expr   { return e.derive(query.Concatenate, v) }
func (e Expr) Neg() Expr           { return e.derive(query.Negative) }
func (e Expr) Abs() Expr           { return e.derive(query.Abs) }
func (e Expr) Length() Expr        { return e.derive(query.Length) }

// String functions.

func (e Expr) Upper() Expr  { return e.derive(query.Upper) }
func (e Expr) Lower() Expr  { return e.derive(query.Lower) }
func (e Expr) Strip() Expr  { return e.derive(query.Strip) }
func (e Expr) LStrip() Expr { return e.derive(query.LStrip) }
func (e Expr) RStrip() Expr { return e.derive(query.RStrip) }

func (e Expr) Replace(old, new any) Expr { return e.derive(query.Replace, old, new) }

// Substring extracts from the 1-based position, optionally limited to
// length characters.
func (e Expr) Substring(start any, length ...any) Expr {
	args := append([]any{start}, length...)
	return e.derive(query.Substring, args...)
}

// Round rounds to the given number of decimal places (default 0).
func (e Expr) Round(precision ...any) Expr {
	return e.derive(query.Round, precision...)
}

// Coalesce returns the first non-NULL of the expression and the
// fallbacks.
func (e Expr) Coalesce(fallbacks ...any) Expr {
	return e.derive(query.Coalesce, fallbacks...)
}

// Aggregates, usable as selection columns.

func (e Expr) Sum() Expr     { return e.derive(query.Sum) }
func (e Expr) Average() Expr { return e.derive(query.Average) }
func (e Expr) Min() Expr     { return e.derive(query.Min) }
func (e Expr) Max() Expr     { return e.derive(query.Max) }

// Ordering markers for Selection.OrderBy.

func (e Expr) Asc() Expr  { return e.derive(query.Ascend) }
func (e Expr) Desc() Expr { return e.derive(query.Descend) }

// Where is a filter over one table, built from column predicates.
type Where struct {
	table *Table
	node  *query.Node
}

func (w *Where) And(other *Where) *Where {
	return &Where{table: w.table, node: query.NewNode(query.And, w.node, other.node)}
}

func (w *Where) Or(other *Where) *Where {
	return &Where{table: w.table, node: query.NewNode(query.Or, w.node, other.node)}
}

func (w *Where) Not() *Where {
	return &Where{table: w.table, node: query.NewNode(query.Not, w.node)}
}

func (w *Where) String() string { return w.node.String() }

// Select starts a selection restricted to the matching rows.
func (w *Where) Select(columns ...any) *Selection {
	return newSelection(w.table, w.node, columns)
}

// SelectOne returns the first matching row, with found reporting
// whether there was one.
func (w *Where) SelectOne(columns ...any) (Row, bool, error) {
	return w.Select(columns...).One()
}

// Count returns the number of matching rows.
func (w *Where) Count() (int64, error) {
	return w.Select().Count()
}

// Update assigns the given values on every matching row and returns the
// number of rows touched.
func (w *Where) Update(values Values) (int64, error) {
	t := w.table
	if err := t.db.check(); err != nil {
		return 0, err
	}

	columns := make([]string, 0, len(values))
	coerced := make([]any, 0, len(values))
	for _, c := range t.def.AllColumns() {
		v, ok := values[c.Name]
		if !ok {
			continue
		}
		dv, err := c.ToDB(v)
		if err != nil {
			return 0, fmt.Errorf("update %s: %w", t.def.Name, err)
		}
		columns = append(columns, c.Name)
		coerced = append(coerced, dv)
	}
	if len(columns) != len(values) {
		for name := range values {
			if _, err := t.column(name); err != nil {
				return 0, err
			}
		}
	}

	n, err := t.db.drv.Update(t.def.Name, w.node, columns, coerced)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", t.def.Name, err)
	}
	return n, nil
}

// Delete removes every matching row and returns how many went.
func (w *Where) Delete() (int64, error) {
	t := w.table
	if err := t.db.check(); err != nil {
		return 0, err
	}
	n, err := t.db.drv.Delete(t.def.Name, w.node)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.def.Name, err)
	}
	return n, nil
}
