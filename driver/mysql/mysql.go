// Package mysql registers the "mysql" webdb driver, backed by
// go-sql-driver/mysql.
//
// The connection target is a go-sql-driver DSN, e.g.
// "user:password@tcp(localhost:3306)/dbname". MySQL has no transient
// mode, so an empty target is rejected.
package mysql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/driver"
	"github.com/silkdb/webdb/driver/sqldriver"
	"github.com/silkdb/webdb/query"
)

func init() {
	driver.Register("mysql", open)
}

func open(target string) (driver.Driver, error) {
	if target == "" {
		return nil, errors.New("mysql: connection target required")
	}

	conn, err := sql.Open("mysql", target)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect %s: %w", redactDSN(target), err)
	}
	return sqldriver.New(conn, dialect{}), nil
}

// redactDSN strips credentials ahead of the '@' for error messages.
func redactDSN(dsn string) string {
	if i := strings.LastIndex(dsn, "@"); i >= 0 {
		return "***" + dsn[i:]
	}
	return dsn
}

type dialect struct{}

func (dialect) Name() string { return "mysql" }

func (dialect) Quote(identifier string) (string, error) {
	if _, err := sqldriver.QuoteANSI(identifier); err != nil {
		return "", err
	}
	return "`" + identifier + "`", nil
}

func (d dialect) TypeSQL(c core.Column) (string, error) {
	switch c.Type {
	case core.RowidType:
		return "INTEGER AUTO_INCREMENT PRIMARY KEY", nil
	case core.StrType:
		length := c.Length
		if length == 0 {
			length = 512
		}
		return fmt.Sprintf("VARCHAR(%d)", length), nil
	case core.IntType:
		return "INT", nil
	case core.FloatType:
		return "REAL", nil
	case core.DataType:
		return "BLOB", nil
	case core.BoolType:
		return "TINYINT(1)", nil
	case core.DateTimeType:
		return "TIMESTAMP", nil
	case core.ReferenceType:
		qt, err := d.Quote(c.References)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("INT REFERENCES %s(`%s`)", qt, core.RowidName), nil
	}
	return "", fmt.Errorf("mysql: unknown column type %s", c.Type)
}

func (dialect) ListTablesSQL() string {
	return "SHOW TABLES;"
}

func (dialect) ListColumns(q sqldriver.Queryer, table string) ([]core.Column, error) {
	rows, err := q.Query(fmt.Sprintf("DESCRIBE `%s`;", table))
	if err != nil {
		return nil, fmt.Errorf("mysql: list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []core.Column
	for rows.Next() {
		var (
			field, ctype, null, key string
			dflt, extra             sql.NullString
		)
		if err := rows.Scan(&field, &ctype, &null, &key, &dflt, &extra); err != nil {
			return nil, err
		}

		c := core.Column{
			Name:          field,
			Type:          unmapType(ctype),
			Required:      null != "YES",
			PrimaryKey:    key == "PRI",
			Unique:        key == "UNI",
			AutoIncrement: strings.Contains(extra.String, "auto_increment"),
		}
		if c.PrimaryKey && c.AutoIncrement {
			c.Type = core.RowidType
		}
		if dflt.Valid {
			c.Default = dflt.String
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// unmapType converts a MySQL type like "varchar(512)" or "tinyint(1)"
// back to a column kind.
func unmapType(t string) core.ColumnType {
	name, _, sized := strings.Cut(strings.ToLower(t), "(")
	size := 0
	if sized {
		fmt.Sscanf(t[len(name)+1:], "%d", &size)
	}

	switch name {
	case "int", "integer", "bigint", "smallint":
		return core.IntType
	case "tinyint":
		if size == 1 {
			return core.BoolType
		}
		return core.IntType
	case "text", "varchar", "char":
		return core.StrType
	case "timestamp", "datetime":
		return core.DateTimeType
	case "double", "real", "float", "decimal":
		return core.FloatType
	case "blob", "varbinary", "binary":
		return core.DataType
	default:
		return core.StrType
	}
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
	switch op {
	case query.Equal:
		if len(args) != 2 {
			return "", fmt.Errorf("EQUAL takes 2 arguments, got %d", len(args))
		}
		return fmt.Sprintf("%s <=> %s", args[0], args[1]), nil
	case query.NotEqual:
		if len(args) != 2 {
			return "", fmt.Errorf("NOTEQUAL takes 2 arguments, got %d", len(args))
		}
		return fmt.Sprintf("NOT (%s <=> %s)", args[0], args[1]), nil
	case query.Concatenate:
		if len(args) != 2 {
			return "", fmt.Errorf("CONCATENATE takes 2 arguments, got %d", len(args))
		}
		return fmt.Sprintf("concat(%s,%s)", args[0], args[1]), nil
	case query.FloorDivide:
		if len(args) != 2 {
			return "", fmt.Errorf("FLOORDIVIDE takes 2 arguments, got %d", len(args))
		}
		return fmt.Sprintf("%s DIV %s", args[0], args[1]), nil
	case query.Sum:
		if len(args) != 1 {
			return "", fmt.Errorf("SUM takes 1 argument, got %d", len(args))
		}
		return fmt.Sprintf("coalesce(sum(%s),0)", args[0]), nil
	case query.Glob:
		return "", errors.New("mysql: GLOB is not supported")
	}
	return sqldriver.DefaultOpSQL(op, args)
}
