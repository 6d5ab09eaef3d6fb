package query

import (
	"fmt"
	"sort"
)

// Helpers for drivers that evaluate queries in process over row maps.
// The SQL-backed drivers compile to statements instead and do not use
// these.

// ColumnLabels names the result columns of a projection: plain
// references by column name, computed expressions by their rendering.
func ColumnLabels(columns []any) []string {
	labels := make([]string, len(columns))
	for i, c := range columns {
		switch x := c.(type) {
		case ColumnRef:
			labels[i] = x.Name
		case *Node:
			labels[i] = x.String()
		default:
			labels[i] = fmt.Sprintf("%v", c)
		}
	}
	return labels
}

// HasAggregate reports whether any projected expression aggregates.
func HasAggregate(columns []any) bool {
	for _, c := range columns {
		if n, ok := c.(*Node); ok && n.Op.IsAggregate() {
			return true
		}
	}
	return false
}

// AggregateRow folds the matched rows into a single result row. Mixing
// aggregate and plain columns takes the plain value from the first row,
// matching sqlite's bare-column behavior.
func AggregateRow(columns []any, rows []map[string]any) ([]any, error) {
	values := make([]any, len(columns))
	for i, c := range columns {
		if n, ok := c.(*Node); ok && n.Op.IsAggregate() {
			v, err := EvalAggregate(n, rows)
			if err != nil {
				return nil, err
			}
			values[i] = v
			continue
		}
		if len(rows) > 0 {
			v, err := Eval(c, rows[0])
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
	}
	return values, nil
}

// OrderRows sorts rows in place by the ordering expressions, unwrapping
// the Ascend and Descend markers. The sort is stable, so unordered rows
// keep their insertion order.
func OrderRows(rows []map[string]any, orderBy []any) error {
	if len(orderBy) == 0 {
		return nil
	}
	var evalErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range orderBy {
			expr := o
			descending := false
			if n, ok := o.(*Node); ok && (n.Op == Ascend || n.Op == Descend) {
				descending = n.Op == Descend
				expr = n.Args[0]
			}
			a, err := Eval(expr, rows[i])
			if err != nil {
				evalErr = err
				return false
			}
			b, err := Eval(expr, rows[j])
			if err != nil {
				evalErr = err
				return false
			}
			cmp, ok := Compare(a, b)
			if !ok || cmp == 0 {
				continue
			}
			if descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return evalErr
}

// ContainsRow reports whether an equal value row is already present,
// for DISTINCT projections.
func ContainsRow(rows [][]any, row []any) bool {
	for _, existing := range rows {
		if len(existing) != len(row) {
			continue
		}
		same := true
		for i := range row {
			if existing[i] == nil && row[i] == nil {
				continue
			}
			cmp, ok := Compare(existing[i], row[i])
			if !ok || cmp != 0 {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}
