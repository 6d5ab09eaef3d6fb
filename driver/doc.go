// Package driver defines the backend interface for webdb and the
// registry that maps driver names to installed backends.
//
// Backends register themselves from an init function, usually pulled in
// with a blank import:
//
//	import (
//	    "github.com/silkdb/webdb/driver"
//
//	    _ "github.com/silkdb/webdb/driver/memory"
//	    _ "github.com/silkdb/webdb/driver/sqlite"
//	)
//
//	d, err := driver.Open("sqlite", "app.db")
//
// Open resolves the name by exact match. Every resolution failure
// (an unregistered name, a name that could never be an identifier, a
// registered name with no usable factory) reports ErrUnknownDriver.
// Errors from the backend itself (an unreachable file, a refused
// connection) surface only after resolution succeeds and keep their own
// error chains, so callers can tell the two conditions apart:
//
//	_, err := driver.Open("sqlite", "no/such/dir/app.db")
//	errors.Is(err, driver.ErrUnknownDriver) // false
//	errors.Is(err, fs.ErrNotExist)          // true
package driver
