// Package commit registers the "commit" webdb driver, a git-backed
// store where every write is a commit. Tables keep their full history
// in the repository, rollbacks move the branch ref back, and the data
// directory can be inspected with ordinary git tooling.
//
// The connection target is a repository directory. An empty target
// opens a transient in-memory repository.
//
// Layout inside the repository tree:
//
//	<table>.table       table schema plus the rowid counter, as JSON
//	<table>/<key>       one JSON document per row
package commit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/storage/filesystem"
	gitmemory "github.com/go-git/go-git/v6/storage/memory"
	"github.com/google/uuid"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/driver"
	"github.com/silkdb/webdb/query"
)

// Identity names the author of the commits a connection produces.
type Identity struct {
	Name  string
	Email string
}

// DefaultIdentity signs commits when the caller does not provide one.
var DefaultIdentity = Identity{Name: "webdb", Email: "webdb@localhost"}

const schemaSuffix = ".table"

func init() {
	driver.Register("commit", func(target string) (driver.Driver, error) {
		return Open(target, DefaultIdentity)
	})
}

// Store is a git-backed driver instance.
type Store struct {
	repo     *git.Repository
	identity Identity
	mu       sync.Mutex

	// Transaction marks, outermost first. Each holds the HEAD hash at
	// Begin time; Rollback resets the branch to the popped mark.
	marks  []plumbing.Hash
	failed bool
}

var _ driver.Driver = (*Store)(nil)

// Open opens or initializes a repository at target. An empty target
// builds a transient in-memory repository.
func Open(target string, identity Identity) (*Store, error) {
	if target == "" {
		repo, err := git.Init(gitmemory.NewStorage(), git.WithWorkTree(memfs.New()))
		if err != nil {
			return nil, fmt.Errorf("commit: init memory repository: %w", err)
		}
		return &Store{repo: repo, identity: identity}, nil
	}

	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		return nil, &fs.PathError{Op: "open", Path: target, Err: fs.ErrNotExist}
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return nil, err
	}

	wt := osfs.New(target)
	dotgit, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}
	storer := filesystem.NewStorageWithOptions(
		dotgit,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	var repo *git.Repository
	if _, statErr := os.Stat(dotgit.Root()); statErr != nil {
		repo, err = git.Init(storer, git.WithWorkTree(wt))
	} else {
		repo, err = git.Open(storer, wt)
	}
	if err != nil {
		return nil, fmt.Errorf("commit: open %s: %w", target, err)
	}
	return &Store{repo: repo, identity: identity}, nil
}

func (s *Store) Features() driver.Features {
	return driver.Features{Transactions: true}
}

func (s *Store) Close() error {
	s.repo = nil
	return nil
}

// schema is the persisted table definition. NextRowid travels with the
// schema so rowids survive reopening the repository.
type schema struct {
	Columns    []core.Column `json:"columns"`
	PrimaryKey []string      `json:"primary_key"`
	NextRowid  int64         `json:"next_rowid"`
}

func schemaPath(table string) string { return table + schemaSuffix }

func (s *Store) readSchema(table string) (*schema, error) {
	data, ok := s.readFile(schemaPath(table))
	if !ok {
		return nil, fmt.Errorf("commit: no table %q", table)
	}
	var sc schema
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("commit: schema of %q: %w", table, err)
	}
	return &sc, nil
}

func (s *Store) schemaChange(table string, sc *schema) (change, error) {
	data, err := json.Marshal(sc)
	if err != nil {
		return change{}, fmt.Errorf("commit: schema of %q: %w", table, err)
	}
	blob, err := s.createBlob(data)
	if err != nil {
		return change{}, err
	}
	return change{path: schemaPath(table), blob: blob}, nil
}

func (s *Store) rowChange(table, key string, row map[string]any) (change, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return change{}, fmt.Errorf("commit: row %s/%s: %w", table, key, err)
	}
	blob, err := s.createBlob(data)
	if err != nil {
		return change{}, err
	}
	return change{path: table + "/" + key, blob: blob}, nil
}

// rowKey names the blob a row lives in. Rows with a rowid use it; rows
// of tables with an explicit primary key get an opaque id.
func rowKey(sc *schema, row map[string]any) string {
	for _, c := range sc.Columns {
		if c.Type == core.RowidType {
			if id, ok := row[c.Name].(int64); ok {
				return strconv.FormatInt(id, 10)
			}
		}
	}
	return uuid.NewString()
}

// decodeRow converts a JSON document back into driver-native values
// using the schema. Columns added after the row was written read as
// their default.
func decodeRow(sc *schema, data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	row := make(map[string]any, len(sc.Columns))
	for _, c := range sc.Columns {
		v, ok := raw[c.Name]
		if !ok {
			row[c.Name] = c.Default
			continue
		}
		decoded, err := c.FromDB(v)
		if err != nil {
			return nil, err
		}
		// Keep datetimes in wire format so filters compare strings.
		decoded, err = c.ToDB(decoded)
		if err != nil {
			return nil, err
		}
		row[c.Name] = decoded
	}
	return row, nil
}

func (s *Store) ListTables() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.listDir("")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Mode != filemode.Dir && strings.HasSuffix(e.Name, schemaSuffix) {
			names = append(names, strings.TrimSuffix(e.Name, schemaSuffix))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) ListColumns(table string) ([]core.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.readSchema(table)
	if err != nil {
		return nil, err
	}
	return sc.Columns, nil
}

func (s *Store) CreateTableIfNotExists(name string, columns []core.Column, primaryKey []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.readFile(schemaPath(name)); ok {
		return nil
	}
	c, err := s.schemaChange(name, &schema{
		Columns:    columns,
		PrimaryKey: primaryKey,
		NextRowid:  1,
	})
	if err != nil {
		return err
	}
	return s.applyAndCommit([]change{c}, fmt.Sprintf("Create table %s", name))
}

func (s *Store) RenameTable(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.readSchema(oldName)
	if err != nil {
		return err
	}
	if _, ok := s.readFile(schemaPath(newName)); ok {
		return fmt.Errorf("commit: table %q already exists", newName)
	}

	changes := []change{{path: schemaPath(oldName), remove: true}}
	c, err := s.schemaChange(newName, sc)
	if err != nil {
		return err
	}
	changes = append(changes, c)

	rows, err := s.listDir(oldName)
	if err != nil {
		return err
	}
	for _, e := range rows {
		changes = append(changes,
			change{path: oldName + "/" + e.Name, remove: true},
			change{path: newName + "/" + e.Name, blob: e.Hash})
	}
	return s.applyAndCommit(changes, fmt.Sprintf("Rename table %s to %s", oldName, newName))
}

func (s *Store) AddColumn(table string, column core.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.readSchema(table)
	if err != nil {
		return err
	}
	for _, c := range sc.Columns {
		if c.Name == column.Name {
			return fmt.Errorf("commit: table %q already has column %q", table, column.Name)
		}
	}
	sc.Columns = append(sc.Columns, column)

	c, err := s.schemaChange(table, sc)
	if err != nil {
		return err
	}
	return s.applyAndCommit([]change{c}, fmt.Sprintf("Add column %s to %s", column.Name, table))
}

func (s *Store) DropTable(table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readSchema(table); err != nil {
		return err
	}
	changes := []change{{path: schemaPath(table), remove: true}}
	rows, err := s.listDir(table)
	if err != nil {
		return err
	}
	for _, e := range rows {
		changes = append(changes, change{path: table + "/" + e.Name, remove: true})
	}
	return s.applyAndCommit(changes, fmt.Sprintf("Drop table %s", table))
}

func (s *Store) Insert(table string, columns []string, values []any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(columns) != len(values) {
		return 0, fmt.Errorf("commit: %d columns but %d values", len(columns), len(values))
	}
	sc, err := s.readSchema(table)
	if err != nil {
		return 0, err
	}

	row := make(map[string]any, len(sc.Columns))
	for _, c := range sc.Columns {
		row[c.Name] = c.Default
	}
	for i, name := range columns {
		if _, ok := row[name]; !ok {
			return 0, fmt.Errorf("commit: table %q has no column %q", table, name)
		}
		row[name] = values[i]
	}

	var rowid int64
	for _, c := range sc.Columns {
		if c.Type != core.RowidType {
			continue
		}
		if v, ok := row[c.Name].(int64); ok && v != 0 {
			rowid = v
			if v >= sc.NextRowid {
				sc.NextRowid = v + 1
			}
		} else {
			rowid = sc.NextRowid
			sc.NextRowid++
			row[c.Name] = rowid
		}
		break
	}

	rc, err := s.rowChange(table, rowKey(sc, row), row)
	if err != nil {
		return 0, err
	}
	scc, err := s.schemaChange(table, sc)
	if err != nil {
		return 0, err
	}
	if err := s.applyAndCommit([]change{rc, scc}, fmt.Sprintf("Insert into %s", table)); err != nil {
		return 0, err
	}
	return rowid, nil
}

// loadRows reads every row of a table in rowid order. Opaque keys sort
// after numeric ones, in key order.
func (s *Store) loadRows(table string, sc *schema) ([]map[string]any, []string, error) {
	entries, err := s.listDir(table)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		a, aErr := strconv.ParseInt(entries[i].Name, 10, 64)
		b, bErr := strconv.ParseInt(entries[j].Name, 10, 64)
		if aErr == nil && bErr == nil {
			return a < b
		}
		if aErr == nil {
			return true
		}
		if bErr == nil {
			return false
		}
		return entries[i].Name < entries[j].Name
	})

	rows := make([]map[string]any, 0, len(entries))
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		data, ok := s.readFile(table + "/" + e.Name)
		if !ok {
			continue
		}
		row, err := decodeRow(sc, data)
		if err != nil {
			return nil, nil, fmt.Errorf("commit: row %s/%s: %w", table, e.Name, err)
		}
		rows = append(rows, row)
		keys = append(keys, e.Name)
	}
	return rows, keys, nil
}

func (s *Store) Select(q query.Query) (*driver.Rows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.readSchema(q.Table)
	if err != nil {
		return nil, err
	}
	all, _, err := s.loadRows(q.Table, sc)
	if err != nil {
		return nil, err
	}

	var matched []map[string]any
	for _, row := range all {
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
		columns = make([]any, len(sc.Columns))
		for i, c := range sc.Columns {
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

func (s *Store) Update(table string, where *query.Node, columns []string, values []any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(columns) != len(values) {
		return 0, fmt.Errorf("commit: %d columns but %d values", len(columns), len(values))
	}
	sc, err := s.readSchema(table)
	if err != nil {
		return 0, err
	}
	rows, keys, err := s.loadRows(table, sc)
	if err != nil {
		return 0, err
	}

	var n int64
	var changes []change
	for i, row := range rows {
		ok, err := query.Matches(where, row)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		for j, name := range columns {
			if _, ok := row[name]; !ok {
				return 0, fmt.Errorf("commit: table %q has no column %q", table, name)
			}
			row[name] = values[j]
		}
		c, err := s.rowChange(table, keys[i], row)
		if err != nil {
			return 0, err
		}
		changes = append(changes, c)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if err := s.applyAndCommit(changes, fmt.Sprintf("Update %s", table)); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Delete(table string, where *query.Node) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.readSchema(table)
	if err != nil {
		return 0, err
	}
	rows, keys, err := s.loadRows(table, sc)
	if err != nil {
		return 0, err
	}

	var n int64
	var changes []change
	for i, row := range rows {
		ok, err := query.Matches(where, row)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		changes = append(changes, change{path: table + "/" + keys[i], remove: true})
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if err := s.applyAndCommit(changes, fmt.Sprintf("Delete from %s", table)); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marks = append(s.marks, s.headHash())
	if len(s.marks) == 1 {
		s.failed = false
	}
	return nil
}

func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.marks) == 0 {
		return errors.New("commit: no transaction in progress")
	}
	last := len(s.marks) - 1
	mark := s.marks[last]
	s.marks = s.marks[:last]
	if s.failed && last == 0 {
		if err := s.resetTo(mark); err != nil {
			return err
		}
		return errors.New("commit: transaction aborted by inner rollback")
	}
	return nil
}

func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.marks) == 0 {
		return errors.New("commit: no transaction in progress")
	}
	last := len(s.marks) - 1
	mark := s.marks[last]
	s.marks = s.marks[:last]
	s.failed = true
	return s.resetTo(mark)
}
