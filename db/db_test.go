package db_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/db"
	"github.com/silkdb/webdb/driver"
	_ "github.com/silkdb/webdb/driver/memory"
)

func connect(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Connect("memory", "")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func defineUsers(t *testing.T, d *db.DB, name string) *db.Table {
	t.Helper()
	users, err := d.Define(name,
		core.StrColumn("name", core.Required()),
		core.IntColumn("age"),
	)
	require.NoError(t, err)
	return users
}

func TestConnectUnknownDriver(t *testing.T) {
	_, err := db.Connect("no_such_driver", "")
	require.ErrorIs(t, err, driver.ErrUnknownDriver)

	_, err = db.Connect("bad name; drop tables", "whatever")
	require.ErrorIs(t, err, driver.ErrUnknownDriver)
}

func TestDefineRejectsZeroColumns(t *testing.T) {
	d := connect(t)
	_, err := d.Define("empty")
	require.ErrorIs(t, err, core.ErrNoColumns)
}

func TestSequentialRowidsAndInsertionOrder(t *testing.T) {
	d := connect(t)
	users := defineUsers(t, d, "users")

	for i, name := range []string{"alice", "bob", "carol"} {
		rowid, err := users.Insert(db.Values{"name": name, "age": 20 + i})
		require.NoError(t, err)
		require.Equal(t, int64(i+1), rowid)
	}

	rows, err := users.Select().All()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, want := range []string{"alice", "bob", "carol"} {
		name, err := rows[i].String("name")
		require.NoError(t, err)
		require.Equal(t, want, name)
		rowid, err := rows[i].Rowid()
		require.NoError(t, err)
		require.Equal(t, int64(i+1), rowid)
	}
}

func TestTwoBindingsIndependentStorage(t *testing.T) {
	d := connect(t)
	first := defineUsers(t, d, "first")
	second := defineUsers(t, d, "second")

	require.True(t, first.Equal(second))
	require.True(t, first.Equal([]core.Column{
		core.StrColumn("name", core.Required()),
		core.IntColumn("age"),
	}))

	_, err := first.Insert(db.Values{"name": "alice"})
	require.NoError(t, err)

	n, err := first.Count()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = second.Count()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestInsertUnknownColumn(t *testing.T) {
	d := connect(t)
	users := defineUsers(t, d, "users")

	_, err := users.Insert(db.Values{"name": "alice", "shoe_size": 43})
	require.ErrorIs(t, err, db.ErrNoSuchColumn)
}

func TestWhereQueries(t *testing.T) {
	d := connect(t)
	users := defineUsers(t, d, "users")
	_, err := users.InsertMany([]db.Values{
		{"name": "alice", "age": 30},
		{"name": "bob", "age": 25},
		{"name": "carol", "age": 35},
	})
	require.NoError(t, err)

	n, err := users.C("age").Ge(30).Count()
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	row, found, err := users.C("name").Eq("bob").SelectOne()
	require.NoError(t, err)
	require.True(t, found)
	age, err := row.Int("age")
	require.NoError(t, err)
	require.Equal(t, int64(25), age)

	w := users.C("age").Gt(20).And(users.C("name").Like("a%"))
	n, err = w.Count()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rows, err := users.C("age").Lt(100).Select(users.C("name")).
		OrderBy(users.C("age").Desc()).All()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	name, err := rows[0].String("name")
	require.NoError(t, err)
	require.Equal(t, "carol", name)
}

func TestUpdateAndDelete(t *testing.T) {
	d := connect(t)
	users := defineUsers(t, d, "users")
	_, err := users.InsertMany([]db.Values{
		{"name": "alice", "age": 30},
		{"name": "bob", "age": 25},
	})
	require.NoError(t, err)

	n, err := users.C("name").Eq("alice").Update(db.Values{"age": 31})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	row, err := users.Get(1)
	require.NoError(t, err)
	age, err := row.Int("age")
	require.NoError(t, err)
	require.Equal(t, int64(31), age)

	require.NoError(t, users.DeleteRow(2))
	require.ErrorContains(t, users.DeleteRow(2), "no row 2")

	n, err = users.Count()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestSelectionIsRestartable(t *testing.T) {
	d := connect(t)
	users := defineUsers(t, d, "users")

	sel := users.Select(users.C("name"))
	rows, err := sel.All()
	require.NoError(t, err)
	require.Empty(t, rows)

	_, err = users.Insert(db.Values{"name": "alice"})
	require.NoError(t, err)

	var names []string
	for row, err := range sel.Iter() {
		require.NoError(t, err)
		name, err := row.String("name")
		require.NoError(t, err)
		names = append(names, name)
	}
	require.Equal(t, []string{"alice"}, names)
}

func TestAtomicRollsBackOnError(t *testing.T) {
	d := connect(t)
	users := defineUsers(t, d, "users")

	sentinel := errors.New("boom")
	err := d.Atomic(func(d *db.DB) error {
		if _, err := users.Insert(db.Values{"name": "alice"}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	n, err := users.Count()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAtomicNests(t *testing.T) {
	d := connect(t)
	users := defineUsers(t, d, "users")

	err := d.Atomic(func(d *db.DB) error {
		if _, err := users.Insert(db.Values{"name": "alice"}); err != nil {
			return err
		}
		return d.Atomic(func(*db.DB) error {
			_, err := users.Insert(db.Values{"name": "bob"})
			return err
		})
	})
	require.NoError(t, err)

	n, err := users.Count()
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestMigrateAddsMissingColumn(t *testing.T) {
	d := connect(t)
	defineUsers(t, d, "users")

	// Redefine with an extra column; the stored table lags behind.
	users, err := d.Define("users",
		core.StrColumn("name", core.Required()),
		core.IntColumn("age"),
		core.StrColumn("city"),
	)
	require.NoError(t, err)
	require.NoError(t, d.Migrate())

	_, err = users.Insert(db.Values{"name": "alice", "city": "berlin"})
	require.NoError(t, err)

	row, err := users.Get(1)
	require.NoError(t, err)
	city, err := row.String("city")
	require.NoError(t, err)
	require.Equal(t, "berlin", city)
}

func TestConformReadsSchemaBack(t *testing.T) {
	d := connect(t)
	defineUsers(t, d, "users")

	require.NoError(t, d.Conform())
	require.Equal(t, []string{"users"}, d.Tables())

	users, err := d.Table("users")
	require.NoError(t, err)
	_, err = users.Insert(db.Values{"name": "alice"})
	require.NoError(t, err)
}

func TestDumpLoadRoundTrip(t *testing.T) {
	src := connect(t)
	users := defineUsers(t, src, "users")
	_, err := users.InsertMany([]db.Values{
		{"name": "alice", "age": 30},
		{"name": "bob", "age": 25},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Dump(&buf))

	dst := connect(t)
	require.NoError(t, dst.Load(&buf))

	loaded, err := dst.Table("users")
	require.NoError(t, err)
	require.True(t, loaded.Equal(users))

	rows, err := loaded.Select().All()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	name, err := rows[0].String("name")
	require.NoError(t, err)
	require.Equal(t, "alice", name)
}

func TestClosedHandleRefusesWork(t *testing.T) {
	d := connect(t)
	users := defineUsers(t, d, "users")
	require.NoError(t, d.Close())

	_, err := users.Insert(db.Values{"name": "alice"})
	require.ErrorIs(t, err, db.ErrClosed)
	_, err = d.Define("more", core.StrColumn("x"))
	require.ErrorIs(t, err, db.ErrClosed)
	require.ErrorIs(t, d.Close(), db.ErrClosed)
}

func TestDateTimeFilters(t *testing.T) {
	d := connect(t)
	events, err := d.Define("events",
		core.StrColumn("kind"),
		core.DateTimeColumn("at"),
	)
	require.NoError(t, err)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, kind := range []string{"boot", "login", "logout"} {
		_, err := events.Insert(db.Values{"kind": kind, "at": base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	// A time.Time literal must match the row it was inserted with.
	row, found, err := events.C("at").Eq(base).SelectOne()
	require.NoError(t, err)
	require.True(t, found)
	kind, err := row.String("kind")
	require.NoError(t, err)
	require.Equal(t, "boot", kind)

	n, err := events.C("at").Ge(base.Add(time.Hour)).Count()
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	n, err = events.C("at").Between(base, base.Add(time.Hour)).Count()
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	// The wire string form selects the same row.
	n, err = events.C("at").Eq(base.Format(core.TimeLayout)).Count()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	at, err := row.Time("at")
	require.NoError(t, err)
	require.True(t, at.Equal(base))
}

func TestDataFilters(t *testing.T) {
	d := connect(t)
	blobs, err := d.Define("blobs",
		core.StrColumn("name"),
		core.DataColumn("payload"),
	)
	require.NoError(t, err)

	_, err = blobs.Insert(db.Values{"name": "a", "payload": []byte{0x01, 0x02}})
	require.NoError(t, err)
	_, err = blobs.Insert(db.Values{"name": "b", "payload": "plain"})
	require.NoError(t, err)

	row, found, err := blobs.C("payload").Eq([]byte{0x01, 0x02}).SelectOne()
	require.NoError(t, err)
	require.True(t, found)
	name, err := row.String("name")
	require.NoError(t, err)
	require.Equal(t, "a", name)

	// String literals coerce to the stored byte form.
	n, err := blobs.C("payload").Eq("plain").Count()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
