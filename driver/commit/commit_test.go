package commit

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/driver"
	"github.com/silkdb/webdb/query"
)

func newUserStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open("", DefaultIdentity)
	require.NoError(t, err)
	columns := []core.Column{
		core.RowidColumn(core.RowidName),
		core.StrColumn("name"),
		core.IntColumn("age"),
	}
	require.NoError(t, s.CreateTableIfNotExists("users", columns, []string{core.RowidName}))
	return s
}

func TestInsertAssignsSequentialRowids(t *testing.T) {
	s := newUserStore(t)

	for i, name := range []string{"alice", "bob", "carol"} {
		rowid, err := s.Insert("users", []string{"name"}, []any{name})
		require.NoError(t, err)
		require.Equal(t, int64(i+1), rowid)
	}

	rows, err := s.Select(query.Query{Table: "users"})
	require.NoError(t, err)
	require.Len(t, rows.Values, 3)
	require.Equal(t, "alice", rows.Values[0][1])
}

func TestMissingDirectoryIsIOError(t *testing.T) {
	_, err := driver.Open("commit", filepath.Join(t.TempDir(), "no", "such", "dir"))
	require.Error(t, err)
	require.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRowidsSurviveReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	s, err := Open(dir, DefaultIdentity)
	require.NoError(t, err)
	columns := []core.Column{core.RowidColumn(core.RowidName), core.StrColumn("name")}
	require.NoError(t, s.CreateTableIfNotExists("users", columns, []string{core.RowidName}))

	rowid, err := s.Insert("users", []string{"name"}, []any{"alice"})
	require.NoError(t, err)
	require.Equal(t, int64(1), rowid)
	require.NoError(t, s.Close())

	s, err = Open(dir, DefaultIdentity)
	require.NoError(t, err)
	rowid, err = s.Insert("users", []string{"name"}, []any{"bob"})
	require.NoError(t, err)
	require.Equal(t, int64(2), rowid)

	rows, err := s.Select(query.Query{Table: "users"})
	require.NoError(t, err)
	require.Len(t, rows.Values, 2)
}

func TestSelectWhere(t *testing.T) {
	s := newUserStore(t)
	for _, u := range []struct {
		name string
		age  int64
	}{{"alice", 30}, {"bob", 25}} {
		_, err := s.Insert("users", []string{"name", "age"}, []any{u.name, u.age})
		require.NoError(t, err)
	}

	rows, err := s.Select(query.Query{
		Table:   "users",
		Columns: []any{query.ColumnRef{Name: "name"}},
		Where:   query.NewNode(query.GreaterThan, query.ColumnRef{Name: "age"}, int64(27)),
	})
	require.NoError(t, err)
	require.Equal(t, [][]any{{"alice"}}, rows.Values)
}

func TestUpdateAndDelete(t *testing.T) {
	s := newUserStore(t)
	for _, name := range []string{"alice", "bob"} {
		_, err := s.Insert("users", []string{"name", "age"}, []any{name, int64(20)})
		require.NoError(t, err)
	}

	isAlice := query.NewNode(query.Equal, query.ColumnRef{Name: "name"}, "alice")
	n, err := s.Update("users", isAlice, []string{"age"}, []any{int64(21)})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = s.Delete("users", query.NewNode(query.Equal, query.ColumnRef{Name: "name"}, "bob"))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rows, err := s.Select(query.Query{Table: "users"})
	require.NoError(t, err)
	require.Len(t, rows.Values, 1)
	require.Equal(t, int64(21), rows.Values[0][2])
}

func TestRollbackMovesBranchBack(t *testing.T) {
	s := newUserStore(t)
	_, err := s.Insert("users", []string{"name"}, []any{"alice"})
	require.NoError(t, err)

	require.NoError(t, s.Begin())
	_, err = s.Insert("users", []string{"name"}, []any{"bob"})
	require.NoError(t, err)
	require.NoError(t, s.Rollback())

	rows, err := s.Select(query.Query{Table: "users"})
	require.NoError(t, err)
	require.Len(t, rows.Values, 1)
	require.Equal(t, "alice", rows.Values[0][1])
}

func TestInnerRollbackAbortsOuterCommit(t *testing.T) {
	s := newUserStore(t)

	require.NoError(t, s.Begin())
	_, err := s.Insert("users", []string{"name"}, []any{"alice"})
	require.NoError(t, err)

	require.NoError(t, s.Begin())
	require.NoError(t, s.Rollback())
	require.Error(t, s.Commit())

	rows, err := s.Select(query.Query{Table: "users"})
	require.NoError(t, err)
	require.Empty(t, rows.Values)
}

func TestRenameAndDropTable(t *testing.T) {
	s := newUserStore(t)
	_, err := s.Insert("users", []string{"name"}, []any{"alice"})
	require.NoError(t, err)

	require.NoError(t, s.RenameTable("users", "people"))
	names, err := s.ListTables()
	require.NoError(t, err)
	require.Equal(t, []string{"people"}, names)

	rows, err := s.Select(query.Query{Table: "people"})
	require.NoError(t, err)
	require.Len(t, rows.Values, 1)

	require.NoError(t, s.DropTable("people"))
	names, err = s.ListTables()
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestHistoryListsWrites(t *testing.T) {
	s := newUserStore(t)
	for _, name := range []string{"alice", "bob"} {
		_, err := s.Insert("users", []string{"name"}, []any{name})
		require.NoError(t, err)
	}

	revisions, err := s.History(0)
	require.NoError(t, err)
	// One create plus two inserts.
	require.Len(t, revisions, 3)
	require.Contains(t, revisions[0].Message, "Insert into users")
	require.Contains(t, revisions[0].Author, DefaultIdentity.Name)

	head := s.Head()
	require.Equal(t, revisions[0].Id, head.Id)

	limited, err := s.History(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, head.Id, limited[0].Id)
}
