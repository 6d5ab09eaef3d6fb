package db

import (
	"errors"
	"fmt"
	"sort"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/driver"
)

var (
	ErrClosed       = errors.New("webdb: database is closed")
	ErrNoSuchTable  = errors.New("webdb: no such table")
	ErrNoSuchColumn = errors.New("webdb: no such column")
)

// DB is one open database handle.
type DB struct {
	drv        driver.Driver
	driverName string
	target     string
	tables     map[string]*Table
	closed     bool
}

// Connect resolves driverName in the registry and opens target with the
// resulting driver. An unregistered or malformed name fails with
// driver.ErrUnknownDriver before target is touched; a resolved driver
// that cannot reach its resource reports an I/O error instead.
func Connect(driverName, target string) (*DB, error) {
	drv, err := driver.Open(driverName, target)
	if err != nil {
		return nil, err
	}
	return &DB{
		drv:        drv,
		driverName: driverName,
		target:     target,
		tables:     make(map[string]*Table),
	}, nil
}

// Driver returns the registered name of the underlying driver.
func (db *DB) Driver() string { return db.driverName }

func (db *DB) Close() error {
	if db.closed {
		return ErrClosed
	}
	db.closed = true
	return db.drv.Close()
}

func (db *DB) check() error {
	if db.closed {
		return ErrClosed
	}
	return nil
}

// Define registers a table under the given name and creates the backing
// table when absent. The same column set defined twice under different
// names yields two structurally equal bindings with independent rows.
func (db *DB) Define(name string, columns ...core.Column) (*Table, error) {
	if err := db.check(); err != nil {
		return nil, err
	}

	def, err := core.NewTable(name, columns...)
	if err != nil {
		return nil, err
	}

	pk := make([]string, len(def.PrimaryKey))
	for i, c := range def.PrimaryKey {
		pk[i] = c.Name
	}
	if err := db.drv.CreateTableIfNotExists(name, def.AllColumns(), pk); err != nil {
		return nil, fmt.Errorf("define %s: %w", name, err)
	}

	t := &Table{db: db, def: def}
	db.tables[name] = t
	return t, nil
}

// Table returns the binding registered under name.
func (db *DB) Table(name string) (*Table, error) {
	if err := db.check(); err != nil {
		return nil, err
	}
	t, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchTable, name)
	}
	return t, nil
}

// Tables returns the registered binding names, sorted.
func (db *DB) Tables() []string {
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drop removes the backing table and forgets its binding.
func (db *DB) Drop(name string) error {
	if err := db.check(); err != nil {
		return err
	}
	if err := db.drv.DropTable(name); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	delete(db.tables, name)
	return nil
}

// Conform replaces the registered bindings with what the driver
// actually stores, reading every table's schema back.
func (db *DB) Conform() error {
	if err := db.check(); err != nil {
		return err
	}

	names, err := db.drv.ListTables()
	if err != nil {
		return fmt.Errorf("conform: %w", err)
	}

	tables := make(map[string]*Table, len(names))
	for _, name := range names {
		columns, err := db.drv.ListColumns(name)
		if err != nil {
			return fmt.Errorf("conform %s: %w", name, err)
		}
		def, err := core.NewTable(name, columns...)
		if err != nil {
			return fmt.Errorf("conform %s: %w", name, err)
		}
		tables[name] = &Table{db: db, def: def}
	}
	db.tables = tables
	return nil
}

// Migrate reconciles the stored schema with the registered bindings:
// missing tables are created and missing columns added. Nothing is
// dropped or retyped.
func (db *DB) Migrate() error {
	if err := db.check(); err != nil {
		return err
	}

	stored, err := db.drv.ListTables()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	existing := make(map[string]bool, len(stored))
	for _, name := range stored {
		existing[name] = true
	}

	for _, name := range db.Tables() {
		t := db.tables[name]

		if !existing[name] {
			pk := make([]string, len(t.def.PrimaryKey))
			for i, c := range t.def.PrimaryKey {
				pk[i] = c.Name
			}
			if err := db.drv.CreateTableIfNotExists(name, t.def.AllColumns(), pk); err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
			continue
		}

		columns, err := db.drv.ListColumns(name)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
		present := make(map[string]bool, len(columns))
		for _, c := range columns {
			present[c.Name] = true
		}
		for _, c := range t.def.AllColumns() {
			if present[c.Name] {
				continue
			}
			if err := db.drv.AddColumn(name, c); err != nil {
				return fmt.Errorf("migrate %s, column %s: %w", name, c.Name, err)
			}
		}
	}
	return nil
}

// Atomic runs fn inside a transaction. Contexts nest; only the
// outermost commits, and an error from fn rolls everything back.
// Writes outside Atomic autocommit.
func (db *DB) Atomic(fn func(*DB) error) error {
	if err := db.check(); err != nil {
		return err
	}
	if !db.drv.Features().Transactions {
		return fn(db)
	}

	if err := db.drv.Begin(); err != nil {
		return err
	}
	if err := fn(db); err != nil {
		db.drv.Rollback()
		return err
	}
	return db.drv.Commit()
}
