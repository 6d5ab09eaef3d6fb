// Package memory registers the "memory" webdb driver, a transient
// map-backed store with no persistence. Every connection starts empty,
// so two connections never share data.
//
// Filters and projections run through the query evaluator rather than
// SQL, which makes the driver useful both as a scratch store and as the
// reference for operator semantics in tests.
package memory

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/driver"
	"github.com/silkdb/webdb/query"
)

func init() {
	driver.Register("memory", func(target string) (driver.Driver, error) {
		if target != "" {
			return nil, fmt.Errorf("memory: transient driver takes no target, got %q", target)
		}
		return New(), nil
	})
}

// Store is an in-memory driver instance. A mutex serializes access, so
// one store may be shared across goroutines.
type Store struct {
	mu     sync.Mutex
	tables map[string]*table

	// Snapshots taken by Begin, outermost first. Rollback restores the
	// innermost one.
	snapshots []map[string]*table
	failed    bool
}

var _ driver.Driver = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

type table struct {
	columns    []core.Column
	primaryKey []string
	nextRowid  int64
	rows       []map[string]any
}

func (t *table) clone() *table {
	c := &table{
		columns:    slices.Clone(t.columns),
		primaryKey: slices.Clone(t.primaryKey),
		nextRowid:  t.nextRowid,
		rows:       make([]map[string]any, len(t.rows)),
	}
	for i, row := range t.rows {
		dup := make(map[string]any, len(row))
		for k, v := range row {
			dup[k] = v
		}
		c.rows[i] = dup
	}
	return c
}

// rowidColumn returns the name of the rowid-typed column, or "".
func (t *table) rowidColumn() string {
	for _, c := range t.columns {
		if c.Type == core.RowidType {
			return c.Name
		}
	}
	return ""
}

func (s *Store) Features() driver.Features {
	return driver.Features{Transactions: true}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables = nil
	s.snapshots = nil
	return nil
}

func (s *Store) table(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("memory: no table %q", name)
	}
	return t, nil
}

func (s *Store) ListTables() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) ListColumns(name string) ([]core.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.columns), nil
}

func (s *Store) CreateTableIfNotExists(name string, columns []core.Column, primaryKey []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; ok {
		return nil
	}
	s.tables[name] = &table{
		columns:    slices.Clone(columns),
		primaryKey: slices.Clone(primaryKey),
		nextRowid:  1,
	}
	return nil
}

func (s *Store) RenameTable(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(oldName)
	if err != nil {
		return err
	}
	if _, ok := s.tables[newName]; ok {
		return fmt.Errorf("memory: table %q already exists", newName)
	}
	delete(s.tables, oldName)
	s.tables[newName] = t
	return nil
}

func (s *Store) AddColumn(name string, column core.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(name)
	if err != nil {
		return err
	}
	for _, c := range t.columns {
		if c.Name == column.Name {
			return fmt.Errorf("memory: table %q already has column %q", name, column.Name)
		}
	}
	t.columns = append(t.columns, column)
	for _, row := range t.rows {
		row[column.Name] = column.Default
	}
	return nil
}

func (s *Store) DropTable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.table(name); err != nil {
		return err
	}
	delete(s.tables, name)
	return nil
}

func (s *Store) Insert(name string, columns []string, values []any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(name)
	if err != nil {
		return 0, err
	}
	if len(columns) != len(values) {
		return 0, fmt.Errorf("memory: %d columns but %d values", len(columns), len(values))
	}

	row := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		row[c.Name] = c.Default
	}
	for i, c := range columns {
		if _, ok := row[c]; !ok {
			return 0, fmt.Errorf("memory: table %q has no column %q", name, c)
		}
		row[c] = values[i]
	}

	var rowid int64
	if rc := t.rowidColumn(); rc != "" {
		if v, ok := row[rc].(int64); ok && v != 0 {
			rowid = v
			if v >= t.nextRowid {
				t.nextRowid = v + 1
			}
		} else {
			rowid = t.nextRowid
			t.nextRowid++
			row[rc] = rowid
		}
	}
	t.rows = append(t.rows, row)
	return rowid, nil
}

func (s *Store) Select(q query.Query) (*driver.Rows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(q.Table)
	if err != nil {
		return nil, err
	}

	var matched []map[string]any
	for _, row := range t.rows {
		ok, err := query.Matches(q.Where, row)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}

	columns := q.Columns
	if len(columns) == 0 {
		columns = make([]any, len(t.columns))
		for i, c := range t.columns {
			columns[i] = query.ColumnRef{Name: c.Name}
		}
	}

	result := &driver.Rows{Columns: query.ColumnLabels(columns)}
	if query.HasAggregate(columns) {
		values, err := query.AggregateRow(columns, matched)
		if err != nil {
			return nil, err
		}
		result.Values = [][]any{values}
		return result, nil
	}

	if err := query.OrderRows(matched, q.OrderBy); err != nil {
		return nil, err
	}
	for _, row := range matched {
		values := make([]any, len(columns))
		for i, c := range columns {
			v, err := query.Eval(c, row)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		if q.Distinct && query.ContainsRow(result.Values, values) {
			continue
		}
		result.Values = append(result.Values, values)
	}
	return result, nil
}

func (s *Store) Update(name string, where *query.Node, columns []string, values []any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(name)
	if err != nil {
		return 0, err
	}
	if len(columns) != len(values) {
		return 0, fmt.Errorf("memory: %d columns but %d values", len(columns), len(values))
	}

	var n int64
	for _, row := range t.rows {
		ok, err := query.Matches(where, row)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		for i, c := range columns {
			if _, ok := row[c]; !ok {
				return 0, fmt.Errorf("memory: table %q has no column %q", name, c)
			}
			row[c] = values[i]
		}
		n++
	}
	return n, nil
}

func (s *Store) Delete(name string, where *query.Node) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(name)
	if err != nil {
		return 0, err
	}

	var n int64
	kept := t.rows[:0]
	for _, row := range t.rows {
		ok, err := query.Matches(where, row)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
			continue
		}
		kept = append(kept, row)
	}
	t.rows = kept
	return n, nil
}

func (s *Store) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]*table, len(s.tables))
	for name, t := range s.tables {
		snapshot[name] = t.clone()
	}
	s.snapshots = append(s.snapshots, snapshot)
	if len(s.snapshots) == 1 {
		s.failed = false
	}
	return nil
}

func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return errors.New("memory: no transaction in progress")
	}
	last := len(s.snapshots) - 1
	snapshot := s.snapshots[last]
	s.snapshots = s.snapshots[:last]
	if s.failed && last == 0 {
		s.tables = snapshot
		return errors.New("memory: transaction aborted by inner rollback")
	}
	return nil
}

func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return errors.New("memory: no transaction in progress")
	}
	last := len(s.snapshots) - 1
	s.tables = s.snapshots[last]
	s.snapshots = s.snapshots[:last]
	s.failed = true
	return nil
}
