package driver

import (
	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/query"
)

// Features describes optional backend capabilities.
type Features struct {
	// Transactions reports whether Begin/Commit/Rollback are honored.
	// Backends without it treat every write as its own commit.
	Transactions bool
}

// Rows is a materialized result set. Values are driver-native; the db
// layer coerces them per column kind.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Driver is a pluggable storage backend. One Driver instance serves one
// connected database; implementations are not required to be safe for
// concurrent use.
type Driver interface {
	// ListTables names every table in the database.
	ListTables() ([]string, error)

	// ListColumns reads a table's schema back from storage.
	ListColumns(table string) ([]core.Column, error)

	// CreateTableIfNotExists creates the table unless it already exists.
	CreateTableIfNotExists(name string, columns []core.Column, primaryKey []string) error

	// RenameTable changes a table's name.
	RenameTable(oldName, newName string) error

	// AddColumn appends a column to an existing table.
	AddColumn(table string, column core.Column) error

	// DropTable removes a table and its rows.
	DropTable(table string) error

	// Insert persists one row and returns its assigned rowid (>= 1,
	// sequential per table).
	Insert(table string, columns []string, values []any) (int64, error)

	// Select runs one query and returns the matching rows.
	Select(q query.Query) (*Rows, error)

	// Update assigns values to every row matching the filter and
	// returns the affected row count.
	Update(table string, where *query.Node, columns []string, values []any) (int64, error)

	// Delete removes every row matching the filter and returns the
	// affected row count.
	Delete(table string, where *query.Node) (int64, error)

	// Begin, Commit, and Rollback delimit a transaction. Calls may
	// nest; only the outermost pair takes effect.
	Begin() error
	Commit() error
	Rollback() error

	Features() Features
	Close() error
}
