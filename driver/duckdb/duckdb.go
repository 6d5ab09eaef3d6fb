// Package duckdb registers the "duckdb" webdb driver.
//
// The connection target is a database file path; an empty target opens
// a transient in-memory database. DuckDB has no implicit rowid, so the
// driver backs rowid columns with a per-table sequence and reads the
// assigned value back with INSERT .. RETURNING.
package duckdb

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/driver"
	"github.com/silkdb/webdb/driver/sqldriver"
	"github.com/silkdb/webdb/query"
)

func init() {
	driver.Register("duckdb", open)
}

func open(target string) (driver.Driver, error) {
	if target != "" {
		if _, err := os.Stat(filepath.Dir(target)); err != nil {
			return nil, &fs.PathError{Op: "open", Path: target, Err: fs.ErrNotExist}
		}
	}

	conn, err := sql.Open("duckdb", target)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", target, err)
	}
	return sqldriver.New(conn, dialect{}), nil
}

// seqPlaceholder stands in for the per-table rowid sequence name until
// CreateTableIfNotExistsSQL knows the table.
const seqPlaceholder = "__rowid_seq__"

type dialect struct{}

func (dialect) Name() string { return "duckdb" }

func (dialect) Quote(identifier string) (string, error) {
	return sqldriver.QuoteANSI(identifier)
}

func (d dialect) TypeSQL(c core.Column) (string, error) {
	switch c.Type {
	case core.RowidType:
		return fmt.Sprintf("BIGINT PRIMARY KEY DEFAULT nextval('%s')", seqPlaceholder), nil
	case core.StrType:
		return "VARCHAR", nil
	case core.IntType:
		return "BIGINT", nil
	case core.FloatType:
		return "DOUBLE", nil
	case core.DataType:
		return "BLOB", nil
	case core.BoolType:
		return "BOOLEAN", nil
	case core.DateTimeType:
		return "TIMESTAMP", nil
	case core.ReferenceType:
		qt, err := d.Quote(c.References)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("BIGINT REFERENCES %s(%q)", qt, core.RowidName), nil
	}
	return "", fmt.Errorf("duckdb: unknown column type %s", c.Type)
}

func (dialect) ListTablesSQL() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = 'main'`
}

var typesByName = map[string]core.ColumnType{
	"VARCHAR":   core.StrType,
	"BIGINT":    core.IntType,
	"INTEGER":   core.IntType,
	"DOUBLE":    core.FloatType,
	"BLOB":      core.DataType,
	"BOOLEAN":   core.BoolType,
	"TIMESTAMP": core.DateTimeType,
}

func (dialect) ListColumns(q sqldriver.Queryer, table string) ([]core.Column, error) {
	rows, err := q.Query(fmt.Sprintf(`PRAGMA table_info(%q);`, table))
	if err != nil {
		return nil, fmt.Errorf("duckdb: list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []core.Column
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull bool
			dflt    sql.NullString
			pk      bool
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
			Required:   notNull,
			PrimaryKey: pk,
		}
		// A sequence-backed key is the rowid column coming home.
		if pk && dflt.Valid && strings.Contains(dflt.String, "nextval") {
			c.Type = core.RowidType
			c.AutoIncrement = true
		} else if dflt.Valid {
			c.Default = dflt.String
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func (dialect) CreateTableIfNotExistsSQL(name string, colDefs []string, primaryKey []string) []string {
	// name arrives quoted; derive an unquoted base for the sequence.
	base := strings.Trim(name, `"`)
	seq := fmt.Sprintf("%q", base+"_rowid_seq")

	var stmts []string
	defs := make([]string, len(colDefs))
	needSeq := false
	for i, def := range colDefs {
		if strings.Contains(def, seqPlaceholder) {
			needSeq = true
			def = strings.ReplaceAll(def, seqPlaceholder, base+"_rowid_seq")
		}
		defs[i] = def
	}
	if needSeq {
		stmts = append(stmts, fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s;", seq))
	}

	joined := strings.Join(defs, ", ")
	if len(primaryKey) > 0 {
		joined += ", PRIMARY KEY (" + strings.Join(primaryKey, ", ") + ")"
	}
	return append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s(%s);", name, joined))
}

func (dialect) InsertReturningRowid() bool { return true }

func (dialect) OpSQL(op query.Op, args []string) (string, error) {
	switch op {
	case query.Sum:
		// DuckDB has no total(); sum() with a zero fallback matches.
		if len(args) != 1 {
			return "", fmt.Errorf("SUM takes 1 argument, got %d", len(args))
		}
		return fmt.Sprintf("coalesce(sum(%s),0)", args[0]), nil
	case query.Glob:
		if len(args) != 2 {
			return "", fmt.Errorf("GLOB takes 2 arguments, got %d", len(args))
		}
		return fmt.Sprintf("%s GLOB %s", args[0], args[1]), nil
	}
	return sqldriver.DefaultOpSQL(op, args)
}
