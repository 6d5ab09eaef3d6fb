// Package sqldriver implements the shared machinery for webdb backends
// built on database/sql.
//
// A concrete backend supplies a Dialect (identifier quoting, type
// mapping, schema introspection, and statement templates) and wraps a
// *sql.DB:
//
//	conn, _ := sql.Open("sqlite", path)
//	drv := sqldriver.New(conn, sqliteDialect{})
//
// The package compiles query.Node trees into SQL the way each dialect
// spells it, keeps literal escaping in one place, and implements the
// nested transaction discipline (only the outermost Begin/Commit pair
// talks to the database).
package sqldriver
