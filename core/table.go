package core

import (
	"errors"
	"fmt"
)

var (
	ErrNoColumns       = errors.New("webdb: table definition requires at least one column")
	ErrDuplicateColumn = errors.New("webdb: duplicate column name in table definition")
)

// RowidName is the reserved name of the implicit primary key column.
const RowidName = "rowid"

// Table is a named, ordered collection of column declarations.
//
// Columns holds the columns the user declared. PrimaryKey holds the
// columns that together identify a row; when no declared column is
// marked as primary key it contains the implicit rowid column.
type Table struct {
	Name       string   `json:"name"`
	Columns    []Column `json:"columns"`
	PrimaryKey []Column `json:"primaryKey"`
}

// NewTable validates a table definition. Zero columns fails with
// ErrNoColumns, duplicate column names with ErrDuplicateColumn.
func NewTable(name string, columns ...Column) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: %w", name, ErrNoColumns)
	}

	seen := make(map[string]bool, len(columns))
	var primary []Column
	for _, c := range columns {
		if seen[c.Name] {
			return nil, fmt.Errorf("table %s, column %s: %w", name, c.Name, ErrDuplicateColumn)
		}
		seen[c.Name] = true
		if c.PrimaryKey {
			primary = append(primary, c)
		}
	}

	if len(primary) == 0 {
		primary = []Column{RowidColumn(RowidName)}
	}

	return &Table{
		Name:       name,
		Columns:    columns,
		PrimaryKey: primary,
	}, nil
}

// Column returns the declared or primary key column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	for _, c := range t.PrimaryKey {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the declared column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// AllColumns returns the declared columns followed by any primary key
// columns that were not declared explicitly (the implicit rowid).
func (t *Table) AllColumns() []Column {
	all := make([]Column, len(t.Columns), len(t.Columns)+len(t.PrimaryKey))
	copy(all, t.Columns)
	for _, pk := range t.PrimaryKey {
		found := false
		for _, c := range t.Columns {
			if c.Name == pk.Name {
				found = true
				break
			}
		}
		if !found {
			all = append(all, pk)
		}
	}
	return all
}

// Equal reports structural equality over the declared column sequence.
// The other side may be a *Table, a Table, or a bare []Column; assigned
// names and identities are ignored.
func (t *Table) Equal(other any) bool {
	var columns []Column
	switch o := other.(type) {
	case *Table:
		if o == nil {
			return false
		}
		columns = o.Columns
	case Table:
		columns = o.Columns
	case []Column:
		columns = o
	default:
		return false
	}

	if len(t.Columns) != len(columns) {
		return false
	}
	for i, c := range t.Columns {
		if !c.Equal(columns[i]) {
			return false
		}
	}
	return true
}

func (t *Table) String() string {
	return fmt.Sprintf("<table %q>", t.Name)
}
