package sqldriver

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/query"
)

// Queryer is the subset of *sql.DB / *sql.Tx that schema introspection
// needs.
type Queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

// Dialect captures what differs between SQL backends: identifier
// quoting, the type vocabulary, schema introspection, and the handful
// of statements whose spelling is not portable.
type Dialect interface {
	// Name is the registered driver name, used in error messages.
	Name() string

	// Quote validates and quotes an identifier.
	Quote(identifier string) (string, error)

	// TypeSQL renders the column type clause for a definition,
	// including inline constraints the dialect bundles with the type
	// (e.g. sqlite's "INTEGER PRIMARY KEY" for rowids).
	TypeSQL(c core.Column) (string, error)

	// ListTablesSQL returns a statement producing one table name per
	// row.
	ListTablesSQL() string

	// ListColumns reads a table's schema.
	ListColumns(q Queryer, table string) ([]core.Column, error)

	// CreateTableIfNotExistsSQL returns the statements creating the
	// table unless present. Several statements allow dialects that
	// need sequences or other companions.
	CreateTableIfNotExistsSQL(name string, colDefs []string, primaryKey []string) []string

	// InsertReturningRowid reports whether inserts must use a
	// RETURNING clause instead of LastInsertId.
	InsertReturningRowid() bool

	// OpSQL renders one operator application. Most dialects delegate
	// to DefaultOpSQL.
	OpSQL(op query.Op, args []string) (string, error)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteANSI validates an identifier and wraps it in double quotes.
func QuoteANSI(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q: only letters, numbers, and underscores", name)
	}
	return `"` + name + `"`, nil
}

// Literal renders a Go value as an inline SQL literal.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case []byte:
		return "'" + strings.ReplaceAll(string(x), "'", "''") + "'", nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case time.Time:
		return "'" + x.Format(core.TimeLayout) + "'", nil
	default:
		return "", fmt.Errorf("cannot render %T as a SQL literal", v)
	}
}

// DefaultOpSQL renders operators in the spelling sqlite and duckdb
// share. Dialects override individual operators and fall back here.
func DefaultOpSQL(op query.Op, args []string) (string, error) {
	binary := func(format string) (string, error) {
		if len(args) != 2 {
			return "", fmt.Errorf("%s takes 2 arguments, got %d", op, len(args))
		}
		return fmt.Sprintf(format, args[0], args[1]), nil
	}
	unary := func(format string) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s takes 1 argument, got %d", op, len(args))
		}
		return fmt.Sprintf(format, args[0]), nil
	}

	switch op {
	case query.Equal:
		return binary("%s IS %s")
	case query.NotEqual:
		return binary("%s IS NOT %s")
	case query.LessThan:
		return binary("%s<%s")
	case query.LessEqual:
		return binary("%s<=%s")
	case query.GreaterThan:
		return binary("%s>%s")
	case query.GreaterEqual:
		return binary("%s>=%s")
	case query.Add:
		return binary("%s+%s")
	case query.Concatenate:
		return binary("%s||%s")
	case query.Subtract:
		return binary("%s-%s")
	case query.Multiply:
		return binary("%s*%s")
	case query.Divide, query.FloorDivide:
		return binary("%s/%s")
	case query.Modulo:
		return binary("%s%%%s")
	case query.And:
		return binary("%s AND %s")
	case query.Or:
		return binary("%s OR %s")
	case query.Not:
		return unary("NOT %s")
	case query.Negative:
		return unary("-%s")
	case query.Abs:
		return unary("abs(%s)")
	case query.Length:
		return unary("length(%s)")
	case query.Ascend:
		return unary("%s ASC")
	case query.Descend:
		return unary("%s DESC")
	case query.Sum:
		return unary("total(%s)")
	case query.Average:
		return unary("avg(%s)")
	case query.Min:
		return unary("min(%s)")
	case query.Max:
		return unary("max(%s)")
	case query.Upper:
		return unary("upper(%s)")
	case query.Lower:
		return unary("lower(%s)")
	case query.Between:
		if len(args) != 3 {
			return "", fmt.Errorf("BETWEEN takes 3 arguments, got %d", len(args))
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", args[0], args[1], args[2]), nil
	case query.Like:
		switch len(args) {
		case 2:
			return fmt.Sprintf("%s LIKE %s", args[0], args[1]), nil
		case 3:
			return fmt.Sprintf("%s LIKE %s ESCAPE %s", args[0], args[1], args[2]), nil
		default:
			return "", fmt.Errorf("LIKE takes 2 or 3 arguments, got %d", len(args))
		}
	case query.Glob:
		return binary("%s GLOB %s")
	case query.Strip:
		return unary("trim(%s)")
	case query.LStrip:
		return unary("ltrim(%s)")
	case query.RStrip:
		return unary("rtrim(%s)")
	case query.Replace:
		if len(args) != 3 {
			return "", fmt.Errorf("REPLACE takes 3 arguments, got %d", len(args))
		}
		return fmt.Sprintf("replace(%s,%s,%s)", args[0], args[1], args[2]), nil
	case query.Round:
		switch len(args) {
		case 1:
			return fmt.Sprintf("round(%s)", args[0]), nil
		case 2:
			return fmt.Sprintf("round(%s,%s)", args[0], args[1]), nil
		default:
			return "", fmt.Errorf("ROUND takes 1 or 2 arguments, got %d", len(args))
		}
	case query.Substring:
		switch len(args) {
		case 2:
			return fmt.Sprintf("substr(%s,%s)", args[0], args[1]), nil
		case 3:
			return fmt.Sprintf("substr(%s,%s,%s)", args[0], args[1], args[2]), nil
		default:
			return "", fmt.Errorf("SUBSTRING takes 2 or 3 arguments, got %d", len(args))
		}
	case query.Coalesce:
		if len(args) < 2 {
			return "", fmt.Errorf("COALESCE takes at least 2 arguments, got %d", len(args))
		}
		return "coalesce(" + strings.Join(args, ",") + ")", nil
	}
	return "", fmt.Errorf("unsupported operator %s", op)
}

// ExprSQL compiles an expression (a *query.Node, a query.ColumnRef, or
// a literal) into SQL for the given dialect.
func ExprSQL(d Dialect, expr any) (string, error) {
	switch x := expr.(type) {
	case *query.Node:
		args := make([]string, len(x.Args))
		for i, a := range x.Args {
			s, err := ExprSQL(d, a)
			if err != nil {
				return "", err
			}
			args[i] = s
		}
		s, err := d.OpSQL(x.Op, args)
		if err != nil {
			return "", err
		}
		return "(" + s + ")", nil
	case query.ColumnRef:
		qn, err := d.Quote(x.Name)
		if err != nil {
			return "", err
		}
		if x.Table == "" {
			return qn, nil
		}
		qt, err := d.Quote(x.Table)
		if err != nil {
			return "", err
		}
		return qt + "." + qn, nil
	default:
		return Literal(expr)
	}
}

// WhereSQL renders a filter tree as a WHERE clause, or "" for nil.
func WhereSQL(d Dialect, where *query.Node) (string, error) {
	if where == nil {
		return "", nil
	}
	clause, err := ExprSQL(d, where)
	if err != nil {
		return "", err
	}
	return " WHERE " + clause, nil
}

// OrderBySQL renders ordering expressions, unwrapping the Ascend and
// Descend markers so the direction lands outside any parentheses.
func OrderBySQL(d Dialect, orderBy []any) (string, error) {
	if len(orderBy) == 0 {
		return "", nil
	}
	parts := make([]string, len(orderBy))
	for i, o := range orderBy {
		direction := ""
		if n, ok := o.(*query.Node); ok && (n.Op == query.Ascend || n.Op == query.Descend) {
			if n.Op == query.Descend {
				direction = " DESC"
			}
			o = n.Args[0]
		}
		s, err := ExprSQL(d, o)
		if err != nil {
			return "", err
		}
		parts[i] = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")") + direction
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// FormatColumn renders one column definition clause.
func FormatColumn(d Dialect, c core.Column) (string, error) {
	name, err := d.Quote(c.Name)
	if err != nil {
		return "", err
	}
	typeSQL, err := d.TypeSQL(c)
	if err != nil {
		return "", err
	}

	def := name + " " + typeSQL
	if c.Required {
		def += " NOT NULL"
	}
	if c.Unique {
		def += " UNIQUE"
	}
	if c.Default != nil {
		dv, err := c.ToDB(c.Default)
		if err != nil {
			return "", fmt.Errorf("column %s default: %w", c.Name, err)
		}
		lit, err := Literal(dv)
		if err != nil {
			return "", fmt.Errorf("column %s default: %w", c.Name, err)
		}
		def += " DEFAULT " + lit
	}
	return def, nil
}
