// Package webdb is a thin facade over the layered packages: core table
// definitions, the driver registry, and the db data abstraction layer.
//
// Most programs only need this package plus a blank import of the
// drivers they use:
//
//	import (
//		"github.com/silkdb/webdb"
//		_ "github.com/silkdb/webdb/driver/sqlite"
//	)
//
//	conn, err := webdb.Connect("sqlite", "app.db")
//	users, err := conn.Define("users",
//		webdb.Str("name", webdb.Required()),
//		webdb.Int("age"),
//	)
//	rowid, err := users.Insert(webdb.Values{"name": "alice", "age": 30})
package webdb

import (
	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/db"
	"github.com/silkdb/webdb/driver"
)

// Connect opens a database via the named registered driver.
func Connect(driverName, target string) (*db.DB, error) {
	return db.Connect(driverName, target)
}

// Drivers lists the registered driver names.
func Drivers() []string {
	return driver.Drivers()
}

type (
	DB        = db.DB
	Table     = db.Table
	Selection = db.Selection
	Row       = db.Row
	Values    = db.Values
	Column    = core.Column
)

// Column constructors and options.
var (
	Rowid     = core.RowidColumn
	Int       = core.IntColumn
	Bool      = core.BoolColumn
	Str       = core.StrColumn
	Float     = core.FloatColumn
	Data      = core.DataColumn
	DateTime  = core.DateTimeColumn
	Reference = core.ReferenceColumn

	Required   = core.Required
	Unique     = core.Unique
	PrimaryKey = core.PrimaryKey
	Default    = core.Default
	Length     = core.Length
)

// Sentinel errors of the layers underneath.
var (
	ErrUnknownDriver = driver.ErrUnknownDriver
	ErrNoColumns     = core.ErrNoColumns
	ErrNoSuchTable   = db.ErrNoSuchTable
	ErrNoSuchColumn  = db.ErrNoSuchColumn
	ErrClosed        = db.ErrClosed
)
