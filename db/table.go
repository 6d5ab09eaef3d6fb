package db

import (
	"fmt"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/query"
)

// Values holds the column values for one insert or update.
type Values map[string]any

// Table is a binding of a table definition to a database handle.
type Table struct {
	db  *DB
	def *core.Table
}

func (t *Table) Name() string { return t.def.Name }

// Columns returns the declared column sequence.
func (t *Table) Columns() []core.Column { return t.def.Columns }

// Definition returns the validated table definition behind the binding.
func (t *Table) Definition() *core.Table { return t.def }

// Equal reports structural equality of the column sequence. The other
// side may be a *Table binding, a *core.Table, a core.Table, or a bare
// []core.Column; the assigned table names are ignored.
func (t *Table) Equal(other any) bool {
	if b, ok := other.(*Table); ok {
		return t.def.Equal(b.def)
	}
	return t.def.Equal(other)
}

func (t *Table) String() string { return t.def.String() }

// C returns an expression naming one of the table's columns.
func (t *Table) C(name string) Col {
	return Col{Expr{table: t, node: query.ColumnRef{Name: name}}}
}

// column resolves a name against the definition, including the implicit
// rowid.
func (t *Table) column(name string) (core.Column, error) {
	c, ok := t.def.Column(name)
	if !ok {
		return core.Column{}, fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, t.def.Name, name)
	}
	return c, nil
}

// Insert stores one row and returns its assigned rowid. Rowids are
// sequential per table, starting at 1. Omitted columns take their
// default; values are coerced to the column's kind first.
func (t *Table) Insert(values Values) (int64, error) {
	if err := t.db.check(); err != nil {
		return 0, err
	}

	columns := make([]string, 0, len(values))
	coerced := make([]any, 0, len(values))
	// Walk the definition so the column order is deterministic.
	for _, c := range t.def.AllColumns() {
		v, ok := values[c.Name]
		if !ok {
			continue
		}
		dv, err := c.ToDB(v)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", t.def.Name, err)
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

	rowid, err := t.db.drv.Insert(t.def.Name, columns, coerced)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", t.def.Name, err)
	}
	return rowid, nil
}

// InsertMany stores the rows in order inside one transaction and
// returns their rowids.
func (t *Table) InsertMany(rows []Values) ([]int64, error) {
	rowids := make([]int64, 0, len(rows))
	err := t.db.Atomic(func(*DB) error {
		for _, values := range rows {
			rowid, err := t.Insert(values)
			if err != nil {
				return err
			}
			rowids = append(rowids, rowid)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rowids, nil
}

// Select starts a selection over the whole table. Without arguments
// every declared column plus the rowid is projected; otherwise the
// given column expressions are. The selection is finite and restartable;
// each iteration runs a fresh query.
func (t *Table) Select(columns ...any) *Selection {
	return newSelection(t, nil, columns)
}

// Get fetches the row with the given rowid.
func (t *Table) Get(rowid int64) (Row, error) {
	row, found, err := t.rowidWhere(rowid).SelectOne()
	if err != nil {
		return Row{}, err
	}
	if !found {
		return Row{}, fmt.Errorf("table %s: no row %d", t.def.Name, rowid)
	}
	return row, nil
}

// DeleteRow removes the row with the given rowid.
func (t *Table) DeleteRow(rowid int64) error {
	n, err := t.rowidWhere(rowid).Delete()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("table %s: no row %d", t.def.Name, rowid)
	}
	return nil
}

func (t *Table) rowidWhere(rowid int64) *Where {
	return t.C(core.RowidName).Eq(rowid)
}

// Count returns the number of rows in the table.
func (t *Table) Count() (int64, error) {
	return t.Select().Count()
}

// Drop removes the backing table and the binding.
func (t *Table) Drop() error {
	return t.db.Drop(t.def.Name)
}
