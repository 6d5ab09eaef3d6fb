package db

import (
	"fmt"
	"iter"
	"time"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/query"
)

// Selection is a lazily executed select. It is finite and restartable;
// every call to Iter, All, One, or Count runs a fresh query against the
// driver, so a selection can be kept and re-read after writes.
type Selection struct {
	table    *Table
	where    *query.Node
	columns  []any
	orderBy  []any
	distinct bool
}

func newSelection(t *Table, where *query.Node, columns []any) *Selection {
	return &Selection{table: t, where: where, columns: unwrapAll(columns)}
}

// OrderBy returns a copy sorted by the given expressions. Use Desc on a
// column to invert a key.
func (s *Selection) OrderBy(exprs ...any) *Selection {
	c := *s
	c.orderBy = unwrapAll(exprs)
	return &c
}

// Distinct returns a copy that drops duplicate result rows.
func (s *Selection) Distinct() *Selection {
	c := *s
	c.distinct = true
	return &c
}

func (s *Selection) run() ([]string, [][]any, error) {
	t := s.table
	if err := t.db.check(); err != nil {
		return nil, nil, err
	}

	columns := s.columns
	if len(columns) == 0 {
		all := t.def.AllColumns()
		columns = make([]any, len(all))
		for i, c := range all {
			columns[i] = query.ColumnRef{Name: c.Name}
		}
	}

	rows, err := t.db.drv.Select(query.Query{
		Table:    t.def.Name,
		Columns:  columns,
		Where:    s.where,
		Distinct: s.distinct,
		OrderBy:  s.orderBy,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("select from %s: %w", t.def.Name, err)
	}
	return rows.Columns, rows.Values, nil
}

// Iter yields the result rows in order. A query error is yielded once
// as the second value, with a zero Row.
func (s *Selection) Iter() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		names, values, err := s.run()
		if err != nil {
			yield(Row{}, err)
			return
		}
		for _, v := range values {
			if !yield(Row{table: s.table, columns: names, values: v}, nil) {
				return
			}
		}
	}
}

// All collects the result rows.
func (s *Selection) All() ([]Row, error) {
	names, values, err := s.run()
	if err != nil {
		return nil, err
	}
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = Row{table: s.table, columns: names, values: v}
	}
	return rows, nil
}

// One returns the first result row, if any.
func (s *Selection) One() (Row, bool, error) {
	names, values, err := s.run()
	if err != nil {
		return Row{}, false, err
	}
	if len(values) == 0 {
		return Row{}, false, nil
	}
	return Row{table: s.table, columns: names, values: values[0]}, true, nil
}

// Count returns the number of result rows.
func (s *Selection) Count() (int64, error) {
	_, values, err := s.run()
	if err != nil {
		return 0, err
	}
	return int64(len(values)), nil
}

// Row is one result row. Values read through the table definition, so
// drivers' raw representations come back as the column's kind.
type Row struct {
	table   *Table
	columns []string
	values  []any
}

// Columns returns the projected column labels in order.
func (r Row) Columns() []string { return r.columns }

// Get returns the coerced value of the named column.
func (r Row) Get(name string) (any, error) {
	for i, c := range r.columns {
		if c != name {
			continue
		}
		v := r.values[i]
		if r.table != nil {
			if col, ok := r.table.def.Column(name); ok {
				return col.FromDB(v)
			}
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchColumn, name)
}

// Index returns the raw driver value at position i.
func (r Row) Index(i int) any { return r.values[i] }

func (r Row) String(name string) (string, error) {
	v, err := r.Get(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("column %s: %T is not a string", name, v)
	}
	return s, nil
}

func (r Row) Int(name string) (int64, error) {
	v, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("column %s: %T is not an integer", name, v)
	}
	return n, nil
}

func (r Row) Bool(name string) (bool, error) {
	v, err := r.Get(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("column %s: %T is not a boolean", name, v)
	}
	return b, nil
}

func (r Row) Float(name string) (float64, error) {
	v, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("column %s: %T is not a float", name, v)
	}
	return f, nil
}

func (r Row) Time(name string) (time.Time, error) {
	v, err := r.Get(name)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("column %s: %T is not a time", name, v)
	}
	return t, nil
}

func (r Row) Bytes(name string) ([]byte, error) {
	v, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("column %s: %T is not bytes", name, v)
	}
	return b, nil
}

// Rowid returns the value of the reserved rowid column.
func (r Row) Rowid() (int64, error) {
	return r.Int(core.RowidName)
}

// AsMap returns the row as a column name to coerced value map.
func (r Row) AsMap() (map[string]any, error) {
	m := make(map[string]any, len(r.columns))
	for _, name := range r.columns {
		v, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		m[name] = v
	}
	return m, nil
}
