// Package sqlite registers the "sqlite" webdb driver, backed by the
// CGo-free modernc.org/sqlite port.
//
// The connection target is a database file path. An empty target or
// ":memory:" opens a transient in-memory database. A target whose
// directory does not exist fails with an I/O error naming the path;
// the file itself is created on first use.
package sqlite

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/driver"
	"github.com/silkdb/webdb/driver/sqldriver"
	"github.com/silkdb/webdb/query"
)

func init() {
	driver.Register("sqlite", open)
}

func open(target string) (driver.Driver, error) {
	if target == "" {
		target = ":memory:"
	}
	if target != ":memory:" {
		if _, err := os.Stat(filepath.Dir(target)); err != nil {
			return nil, &fs.PathError{Op: "open", Path: target, Err: fs.ErrNotExist}
		}
	}

	conn, err := sql.Open("sqlite", target)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", target, err)
	}
	return sqldriver.New(conn, dialect{}), nil
}

type dialect struct{}

func (dialect) Name() string { return "sqlite" }

func (dialect) Quote(identifier string) (string, error) {
	return sqldriver.QuoteANSI(identifier)
}

func (d dialect) TypeSQL(c core.Column) (string, error) {
	switch c.Type {
	case core.RowidType:
		return "INTEGER PRIMARY KEY", nil
	case core.StrType:
		return "TEXT", nil
	case core.IntType:
		return "INT", nil
	case core.FloatType:
		return "REAL", nil
	case core.DataType:
		return "BLOB", nil
	case core.BoolType:
		return "INT", nil
	case core.DateTimeType:
		return "TIMESTAMP", nil
	case core.ReferenceType:
		qt, err := d.Quote(c.References)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("INT REFERENCES %s(%q)", qt, core.RowidName), nil
	}
	return "", fmt.Errorf("sqlite: unknown column type %s", c.Type)
}

func (dialect) ListTablesSQL() string {
	return `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`
}

var typesByName = map[string]core.ColumnType{
	"TEXT":      core.StrType,
	"INT":       core.IntType,
	"INTEGER":   core.RowidType,
	"REAL":      core.FloatType,
	"BLOB":      core.DataType,
	"TIMESTAMP": core.DateTimeType,
}

func (dialect) ListColumns(q sqldriver.Queryer, table string) ([]core.Column, error) {
	rows, err := q.Query(fmt.Sprintf(`PRAGMA table_info(%q);`, table))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []core.Column
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}

		t, ok := typesByName[strings.ToUpper(ctype)]
		if !ok {
			t = core.StrType
		}
		c := core.Column{
			Name:       name,
			Type:       t,
			Required:   notNull != 0,
			PrimaryKey: pk != 0,
		}
		if t == core.RowidType {
			c.AutoIncrement = true
			c.PrimaryKey = true
		}
		if dflt.Valid {
			c.Default = dflt.String
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func (dialect) CreateTableIfNotExistsSQL(name string, colDefs []string, primaryKey []string) []string {
	defs := strings.Join(colDefs, ", ")
	if len(primaryKey) > 0 {
		defs += ", PRIMARY KEY (" + strings.Join(primaryKey, ", ") + ")"
	}
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s(%s);", name, defs)}
}

func (dialect) InsertReturningRowid() bool { return false }

func (dialect) OpSQL(op query.Op, args []string) (string, error) {
	return sqldriver.DefaultOpSQL(op, args)
}
