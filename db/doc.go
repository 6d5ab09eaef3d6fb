// Package db is the data abstraction layer over the driver registry.
//
// A DB wraps one driver connection. Tables are registered explicitly
// with Define, which creates the backing table when it does not exist
// and returns a binding used for inserts, selects, and filters. Two
// bindings of the same column set under different names are structurally
// equal but store rows independently.
package db
