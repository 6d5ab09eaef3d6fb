package webdb_test

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/silkdb/webdb"
	_ "github.com/silkdb/webdb/driver/memory"
	_ "github.com/silkdb/webdb/driver/sqlite"
)

func TestUnknownDriverAlwaysFails(t *testing.T) {
	for _, name := range []string{
		"no_such_driver",
		"sqlite3; drop table users",
		"",
		"sqlite ",
	} {
		_, err := webdb.Connect(name, "")
		if !errors.Is(err, webdb.ErrUnknownDriver) {
			t.Errorf("Connect(%q): got %v, want ErrUnknownDriver", name, err)
		}
	}
}

func TestMissingSqlitePathIsIOError(t *testing.T) {
	target := filepath.Join(t.TempDir(), "missing", "deep", "app.db")
	_, err := webdb.Connect("sqlite", target)
	if err == nil {
		t.Fatal("expected an error for a nonexistent directory")
	}
	if errors.Is(err, webdb.ErrUnknownDriver) {
		t.Fatal("resource errors must stay distinct from ErrUnknownDriver")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("got %v, want an fs.ErrNotExist chain", err)
	}
	if !strings.Contains(err.Error(), target) {
		t.Fatalf("error %q does not name the path", err)
	}
}

func TestEndToEnd(t *testing.T) {
	conn, err := webdb.Connect("memory", "")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	users, err := conn.Define("users",
		webdb.Str("name", webdb.Required()),
		webdb.Int("age"),
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := conn.Define("nothing"); !errors.Is(err, webdb.ErrNoColumns) {
		t.Fatalf("Define with zero columns: got %v, want ErrNoColumns", err)
	}

	for i, name := range []string{"alice", "bob", "carol"} {
		rowid, err := users.Insert(webdb.Values{"name": name, "age": 20 + i})
		if err != nil {
			t.Fatal(err)
		}
		if rowid != int64(i+1) {
			t.Fatalf("insert %d: got rowid %d", i, rowid)
		}
	}

	rows, err := users.Select().All()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	name, err := rows[0].String("name")
	if err != nil || name != "alice" {
		t.Fatalf("first row name = %q, %v", name, err)
	}
	if rowid, err := rows[2].Rowid(); err != nil || rowid != 3 {
		t.Fatalf("third row rowid = %d, %v", rowid, err)
	}

	adults, err := users.C("age").Ge(21).Count()
	if err != nil || adults != 2 {
		t.Fatalf("adults = %d, %v", adults, err)
	}

	// Same definition under a different name: equal, independent.
	people, err := conn.Define("people",
		webdb.Str("name", webdb.Required()),
		webdb.Int("age"),
	)
	if err != nil {
		t.Fatal(err)
	}
	if !users.Equal(people) {
		t.Fatal("bindings with identical columns must be equal")
	}
	if !users.Equal([]webdb.Column{
		webdb.Str("name", webdb.Required()),
		webdb.Int("age"),
	}) {
		t.Fatal("bindings must equal their bare column list")
	}
	if n, err := people.Count(); err != nil || n != 0 {
		t.Fatalf("people.Count() = %d, %v; bindings must not share rows", n, err)
	}
}
