// Package core provides the schema types shared by every webdb driver.
//
// The package defines typed column declarations, table definitions, and
// the value coercion rules that map user values to driver-native values
// and back.
//
// # Columns
//
// Columns are declared with one constructor per value kind:
//
//	core.StrColumn("name")
//	core.IntColumn("age", core.Required())
//	core.BoolColumn("active", core.Default(true))
//	core.DateTimeColumn("created")
//
// Two columns are equal iff their name, type, and modifiers match.
//
// # Tables
//
// A table definition is an ordered, uniquely-named sequence of columns:
//
//	users, err := core.NewTable("users",
//	    core.StrColumn("name"),
//	    core.IntColumn("age"),
//	)
//
// A definition with zero columns is invalid and fails with ErrNoColumns.
// When no column is marked as primary key, an implicit auto-increment
// "rowid" column becomes the primary key.
//
// Table equality is structural: two definitions are equal iff their
// declared column sequences match, regardless of identity or name.
// Equal also accepts a bare []Column for the same comparison.
package core
