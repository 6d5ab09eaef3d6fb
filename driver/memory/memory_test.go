package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/driver"
	"github.com/silkdb/webdb/query"
)

func newUserTable(t *testing.T) *Store {
	t.Helper()

	s := New()
	columns := []core.Column{
		core.RowidColumn(core.RowidName),
		core.StrColumn("name"),
		core.IntColumn("age"),
	}
	require.NoError(t, s.CreateTableIfNotExists("users", columns, []string{core.RowidName}))
	return s
}

func TestInsertAssignsSequentialRowids(t *testing.T) {
	s := newUserTable(t)

	for i, name := range []string{"alice", "bob", "carol"} {
		rowid, err := s.Insert("users", []string{"name"}, []any{name})
		require.NoError(t, err)
		require.Equal(t, int64(i+1), rowid)
	}

	rows, err := s.Select(query.Query{Table: "users"})
	require.NoError(t, err)
	require.Len(t, rows.Values, 3)
	require.Equal(t, "alice", rows.Values[0][1])
	require.Equal(t, "carol", rows.Values[2][1])
}

func TestConnectionsAreIndependent(t *testing.T) {
	first, err := driver.Open("memory", "")
	require.NoError(t, err)
	second, err := driver.Open("memory", "")
	require.NoError(t, err)

	columns := []core.Column{core.RowidColumn(core.RowidName), core.StrColumn("name")}
	require.NoError(t, first.CreateTableIfNotExists("users", columns, []string{core.RowidName}))

	_, err = first.Insert("users", []string{"name"}, []any{"alice"})
	require.NoError(t, err)

	names, err := second.ListTables()
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestSelectWhereAndOrder(t *testing.T) {
	s := newUserTable(t)
	for _, u := range []struct {
		name string
		age  int64
	}{{"alice", 30}, {"bob", 25}, {"carol", 35}} {
		_, err := s.Insert("users", []string{"name", "age"}, []any{u.name, u.age})
		require.NoError(t, err)
	}

	age := query.ColumnRef{Name: "age"}
	rows, err := s.Select(query.Query{
		Table:   "users",
		Columns: []any{query.ColumnRef{Name: "name"}},
		Where:   query.NewNode(query.GreaterEqual, age, int64(30)),
		OrderBy: []any{query.NewNode(query.Descend, age)},
	})
	require.NoError(t, err)
	require.Equal(t, [][]any{{"carol"}, {"alice"}}, rows.Values)
}

func TestSelectAggregates(t *testing.T) {
	s := newUserTable(t)
	for _, age := range []int64{30, 25, 35} {
		_, err := s.Insert("users", []string{"name", "age"}, []any{"x", age})
		require.NoError(t, err)
	}

	age := query.ColumnRef{Name: "age"}
	rows, err := s.Select(query.Query{
		Table: "users",
		Columns: []any{
			query.NewNode(query.Sum, age),
			query.NewNode(query.Max, age),
		},
	})
	require.NoError(t, err)
	require.Len(t, rows.Values, 1)
	require.Equal(t, int64(90), rows.Values[0][0])
	require.Equal(t, int64(35), rows.Values[0][1])
}

func TestUpdateAndDelete(t *testing.T) {
	s := newUserTable(t)
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

func TestRollbackRestoresSnapshot(t *testing.T) {
	s := newUserTable(t)
	_, err := s.Insert("users", []string{"name"}, []any{"alice"})
	require.NoError(t, err)

	require.NoError(t, s.Begin())
	_, err = s.Insert("users", []string{"name"}, []any{"bob"})
	require.NoError(t, err)
	require.NoError(t, s.Rollback())

	rows, err := s.Select(query.Query{Table: "users"})
	require.NoError(t, err)
	require.Len(t, rows.Values, 1)
}

func TestInnerRollbackAbortsOuterCommit(t *testing.T) {
	s := newUserTable(t)

	require.NoError(t, s.Begin())
	_, err := s.Insert("users", []string{"name"}, []any{"alice"})
	require.NoError(t, err)

	require.NoError(t, s.Begin())
	_, err = s.Insert("users", []string{"name"}, []any{"bob"})
	require.NoError(t, err)
	require.NoError(t, s.Rollback())

	require.Error(t, s.Commit())

	rows, err := s.Select(query.Query{Table: "users"})
	require.NoError(t, err)
	require.Empty(t, rows.Values)
}

func TestAddColumnBackfillsDefault(t *testing.T) {
	s := newUserTable(t)
	_, err := s.Insert("users", []string{"name"}, []any{"alice"})
	require.NoError(t, err)

	require.NoError(t, s.AddColumn("users", core.StrColumn("city", core.Default("unknown"))))

	rows, err := s.Select(query.Query{
		Table:   "users",
		Columns: []any{query.ColumnRef{Name: "city"}},
	})
	require.NoError(t, err)
	require.Equal(t, "unknown", rows.Values[0][0])
}

func TestConcurrentInsertsKeepRowidsUnique(t *testing.T) {
	s := newUserTable(t)

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	rowids := make(chan int64, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				rowid, err := s.Insert("users", []string{"name"}, []any{"w"})
				if err != nil {
					t.Error(err)
					return
				}
				rowids <- rowid
			}
		}()
	}
	wg.Wait()
	close(rowids)

	seen := make(map[int64]bool)
	for rowid := range rowids {
		require.False(t, seen[rowid], "rowid %d assigned twice", rowid)
		seen[rowid] = true
	}
	require.Len(t, seen, workers*perWorker)
	for i := int64(1); i <= workers*perWorker; i++ {
		require.True(t, seen[i], "rowid %d missing", i)
	}
}
