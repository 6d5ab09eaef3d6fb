package sqldriver

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/driver"
	"github.com/silkdb/webdb/query"
)

var errNoTransaction = errors.New("no transaction in progress")

// DB adapts a database/sql connection plus a Dialect into a webdb
// driver.
type DB struct {
	conn    *sql.DB
	dialect Dialect

	// Transaction state. Begin/Commit may nest; only the outermost
	// pair touches the connection, and any Rollback in between turns
	// the outermost Commit into a rollback.
	tx     *sql.Tx
	depth  int
	failed bool
}

var _ driver.Driver = (*DB)(nil)

// New wraps an open connection. The caller keeps ownership of conn
// until Close.
func New(conn *sql.DB, dialect Dialect) *DB {
	return &DB{conn: conn, dialect: dialect}
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (d *DB) execer() execer {
	if d.tx != nil {
		return d.tx
	}
	return d.conn
}

func (d *DB) Features() driver.Features {
	return driver.Features{Transactions: true}
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Begin() error {
	d.depth++
	if d.depth > 1 {
		return nil
	}
	tx, err := d.conn.Begin()
	if err != nil {
		d.depth--
		return fmt.Errorf("%s: begin: %w", d.dialect.Name(), err)
	}
	d.tx = tx
	d.failed = false
	return nil
}

func (d *DB) Commit() error {
	if d.depth == 0 {
		return errNoTransaction
	}
	d.depth--
	if d.depth > 0 {
		return nil
	}

	tx := d.tx
	d.tx = nil
	if d.failed {
		tx.Rollback()
		return fmt.Errorf("%s: transaction aborted by inner rollback", d.dialect.Name())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", d.dialect.Name(), err)
	}
	return nil
}

func (d *DB) Rollback() error {
	if d.depth == 0 {
		return errNoTransaction
	}
	d.depth--
	d.failed = true
	if d.depth > 0 {
		return nil
	}

	tx := d.tx
	d.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("%s: rollback: %w", d.dialect.Name(), err)
	}
	return nil
}

func (d *DB) ListTables() ([]string, error) {
	rows, err := d.execer().Query(d.dialect.ListTablesSQL())
	if err != nil {
		return nil, fmt.Errorf("%s: list tables: %w", d.dialect.Name(), err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (d *DB) ListColumns(table string) ([]core.Column, error) {
	if _, err := d.dialect.Quote(table); err != nil {
		return nil, err
	}
	return d.dialect.ListColumns(d.execer(), table)
}

func (d *DB) CreateTableIfNotExists(name string, columns []core.Column, primaryKey []string) error {
	quoted, err := d.dialect.Quote(name)
	if err != nil {
		return err
	}

	colDefs := make([]string, len(columns))
	for i, c := range columns {
		def, err := FormatColumn(d.dialect, c)
		if err != nil {
			return err
		}
		colDefs[i] = def
	}

	// A lone rowid-typed key carries PRIMARY KEY in its type clause,
	// so no separate constraint is emitted for it.
	pk := primaryKey
	if len(primaryKey) == 1 {
		for _, c := range columns {
			if c.Name == primaryKey[0] && c.Type == core.RowidType {
				pk = nil
				break
			}
		}
	}
	quotedPK := make([]string, len(pk))
	for i, n := range pk {
		qn, err := d.dialect.Quote(n)
		if err != nil {
			return err
		}
		quotedPK[i] = qn
	}

	for _, stmt := range d.dialect.CreateTableIfNotExistsSQL(quoted, colDefs, quotedPK) {
		if _, err := d.execer().Exec(stmt); err != nil {
			return fmt.Errorf("%s: create table %s: %w", d.dialect.Name(), name, err)
		}
	}
	return nil
}

func (d *DB) RenameTable(oldName, newName string) error {
	qo, err := d.dialect.Quote(oldName)
	if err != nil {
		return err
	}
	qn, err := d.dialect.Quote(newName)
	if err != nil {
		return err
	}
	_, err = d.execer().Exec(fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", qo, qn))
	return err
}

func (d *DB) AddColumn(table string, column core.Column) error {
	qt, err := d.dialect.Quote(table)
	if err != nil {
		return err
	}
	def, err := FormatColumn(d.dialect, column)
	if err != nil {
		return err
	}
	_, err = d.execer().Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", qt, def))
	return err
}

func (d *DB) DropTable(table string) error {
	qt, err := d.dialect.Quote(table)
	if err != nil {
		return err
	}
	_, err = d.execer().Exec(fmt.Sprintf("DROP TABLE %s;", qt))
	return err
}

func (d *DB) Insert(table string, columns []string, values []any) (int64, error) {
	qt, err := d.dialect.Quote(table)
	if err != nil {
		return 0, err
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		qc, err := d.dialect.Quote(c)
		if err != nil {
			return 0, err
		}
		quoted[i] = qc
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
	stmt := fmt.Sprintf("INSERT INTO %s(%s) VALUES (%s)", qt, strings.Join(quoted, ","), placeholders)

	if d.dialect.InsertReturningRowid() {
		var rowid int64
		err := d.execer().QueryRow(stmt+` RETURNING "rowid"`, values...).Scan(&rowid)
		if err == nil {
			return rowid, nil
		}
		// Tables with an explicit primary key have no rowid column.
		if _, execErr := d.execer().Exec(stmt, values...); execErr != nil {
			return 0, fmt.Errorf("%s: insert into %s: %w", d.dialect.Name(), table, execErr)
		}
		return 0, nil
	}

	res, err := d.execer().Exec(stmt, values...)
	if err != nil {
		return 0, fmt.Errorf("%s: insert into %s: %w", d.dialect.Name(), table, err)
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return 0, nil
	}
	return rowid, nil
}

func (d *DB) Select(q query.Query) (*driver.Rows, error) {
	stmt, err := d.selectSQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := d.execer().Query(stmt)
	if err != nil {
		return nil, fmt.Errorf("%s: select from %s: %w", d.dialect.Name(), q.Table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &driver.Rows{Columns: columnLabels(q, names)}
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		result.Values = append(result.Values, values)
	}
	return result, rows.Err()
}

func (d *DB) selectSQL(q query.Query) (string, error) {
	exprs := []string{"*"}
	if len(q.Columns) > 0 {
		exprs = make([]string, len(q.Columns))
		for i, c := range q.Columns {
			s, err := ExprSQL(d.dialect, c)
			if err != nil {
				return "", err
			}
			exprs[i] = s
		}
	}

	qt, err := d.dialect.Quote(q.Table)
	if err != nil {
		return "", err
	}
	where, err := WhereSQL(d.dialect, q.Where)
	if err != nil {
		return "", err
	}
	orderBy, err := OrderBySQL(d.dialect, q.OrderBy)
	if err != nil {
		return "", err
	}

	distinct := ""
	if q.Distinct {
		distinct = " DISTINCT"
	}
	return fmt.Sprintf("SELECT%s %s FROM %s%s%s;",
		distinct, strings.Join(exprs, ", "), qt, where, orderBy), nil
}

// columnLabels prefers the caller's column names over whatever the
// backend reports for computed expressions.
func columnLabels(q query.Query, reported []string) []string {
	labels := make([]string, len(reported))
	copy(labels, reported)
	for i, c := range q.Columns {
		if i >= len(labels) {
			break
		}
		if ref, ok := c.(query.ColumnRef); ok {
			labels[i] = ref.Name
		}
	}
	return labels
}

func (d *DB) Update(table string, where *query.Node, columns []string, values []any) (int64, error) {
	qt, err := d.dialect.Quote(table)
	if err != nil {
		return 0, err
	}
	sets := make([]string, len(columns))
	for i, c := range columns {
		qc, err := d.dialect.Quote(c)
		if err != nil {
			return 0, err
		}
		sets[i] = qc + "=?"
	}
	clause, err := WhereSQL(d.dialect, where)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s%s;", qt, strings.Join(sets, ", "), clause)
	res, err := d.execer().Exec(stmt, values...)
	if err != nil {
		return 0, fmt.Errorf("%s: update %s: %w", d.dialect.Name(), table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (d *DB) Delete(table string, where *query.Node) (int64, error) {
	qt, err := d.dialect.Quote(table)
	if err != nil {
		return 0, err
	}
	clause, err := WhereSQL(d.dialect, where)
	if err != nil {
		return 0, err
	}

	res, err := d.execer().Exec(fmt.Sprintf("DELETE FROM %s%s;", qt, clause))
	if err != nil {
		return 0, fmt.Errorf("%s: delete from %s: %w", d.dialect.Name(), table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
