package main

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/silkdb/webdb/db"
	_ "github.com/silkdb/webdb/driver/memory"
)

func setupTestServer(t *testing.T) (*Server, func()) {
	database, err := db.Connect("memory", "")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	server := NewServer(&Config{}, database)
	if err := server.Start(":0"); err != nil { // :0 picks a free port
		t.Fatalf("Failed to start server: %v", err)
	}

	return server, func() {
		server.Stop()
		database.Close()
	}
}

// session keeps one connection open across requests so per-connection
// state (auth) persists.
type session struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, addr string) *session {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &session{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (s *session) sendLine(line string) Response {
	s.t.Helper()
	if _, err := s.conn.Write([]byte(line + "\n")); err != nil {
		s.t.Fatalf("Failed to send request: %v", err)
	}
	raw, err := s.reader.ReadString('\n')
	if err != nil {
		s.t.Fatalf("Failed to read response: %v", err)
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		s.t.Fatalf("Failed to parse response: %v", err)
	}
	return resp
}

func (s *session) send(req Request) Response {
	s.t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		s.t.Fatalf("Failed to marshal request: %v", err)
	}
	return s.sendLine(string(data))
}

func TestServerStartStop(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	if server.Addr() == "" {
		t.Error("Expected non-empty address")
	}
}

func TestServerDefineInsertSelect(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	s := dial(t, server.Addr())

	resp := s.sendLine(`{"op":"define","table":"people","columns":[` +
		`{"name":"name","type":"string"},{"name":"age","type":"integer"}]}`)
	if !resp.OK {
		t.Fatalf("define failed: %s", resp.Error)
	}

	for _, line := range []string{
		`{"op":"insert","table":"people","values":{"name":"alice","age":30}}`,
		`{"op":"insert","table":"people","values":{"name":"bob","age":25}}`,
	} {
		resp = s.sendLine(line)
		if !resp.OK {
			t.Fatalf("insert failed: %s", resp.Error)
		}
	}
	if resp.Rowid != 2 {
		t.Errorf("Expected rowid 2 for second insert, got %d", resp.Rowid)
	}

	resp = s.send(Request{
		Op:    "select",
		Table: "people",
		Where: []Condition{{Column: "age", Op: "ge", Value: 28}},
	})
	if !resp.OK {
		t.Fatalf("select failed: %s", resp.Error)
	}
	if resp.Count != 1 {
		t.Fatalf("Expected 1 matching row, got %d", resp.Count)
	}

	nameIndex := -1
	for i, c := range resp.Columns {
		if c == "name" {
			nameIndex = i
		}
	}
	if nameIndex < 0 {
		t.Fatalf("Expected a name column, got %v", resp.Columns)
	}
	if got := resp.Rows[0][nameIndex]; got != "alice" {
		t.Errorf("Expected alice, got %v", got)
	}
}

func TestServerBatchInsertAndCount(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	s := dial(t, server.Addr())

	resp := s.sendLine(`{"op":"define","table":"events","columns":[{"name":"kind","type":"string"}]}`)
	if !resp.OK {
		t.Fatalf("define failed: %s", resp.Error)
	}

	resp = s.sendLine(`{"op":"insert","table":"events","rows":[` +
		`{"kind":"a"},{"kind":"b"},{"kind":"a"}]}`)
	if !resp.OK {
		t.Fatalf("batch insert failed: %s", resp.Error)
	}
	if len(resp.Rowids) != 3 {
		t.Fatalf("Expected 3 rowids, got %v", resp.Rowids)
	}

	resp = s.send(Request{
		Op:    "count",
		Table: "events",
		Where: []Condition{{Column: "kind", Op: "eq", Value: "a"}},
	})
	if !resp.OK || resp.Count != 2 {
		t.Errorf("Expected count 2, got %d (error %q)", resp.Count, resp.Error)
	}
}

func TestServerUpdateDelete(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	s := dial(t, server.Addr())

	s.sendLine(`{"op":"define","table":"items","columns":[` +
		`{"name":"label","type":"string"},{"name":"done","type":"boolean"}]}`)
	s.sendLine(`{"op":"insert","table":"items","values":{"label":"one","done":false}}`)
	s.sendLine(`{"op":"insert","table":"items","values":{"label":"two","done":false}}`)

	// Update and delete refuse to run unscoped.
	resp := s.sendLine(`{"op":"update","table":"items","values":{"done":true}}`)
	if resp.OK {
		t.Error("Expected unscoped update to fail")
	}

	resp = s.send(Request{
		Op:     "update",
		Table:  "items",
		Values: map[string]any{"done": true},
		Where:  []Condition{{Column: "label", Op: "eq", Value: "one"}},
	})
	if !resp.OK || resp.Count != 1 {
		t.Fatalf("Expected 1 row updated, got %d (error %q)", resp.Count, resp.Error)
	}

	resp = s.send(Request{
		Op:    "delete",
		Table: "items",
		Where: []Condition{{Column: "done", Op: "eq", Value: true}},
	})
	if !resp.OK || resp.Count != 1 {
		t.Fatalf("Expected 1 row deleted, got %d (error %q)", resp.Count, resp.Error)
	}
}

func TestServerUnknownTable(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	s := dial(t, server.Addr())
	resp := s.sendLine(`{"op":"select","table":"missing"}`)
	if resp.OK {
		t.Error("Expected select on unknown table to fail")
	}
}

func setupAuthTestServer(t *testing.T, secret string) (*Server, func()) {
	database, err := db.Connect("memory", "")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	cfg := &Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.JWTSecret = secret

	server := NewServer(cfg, database)
	if err := server.Start(":0"); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	return server, func() {
		server.Stop()
		database.Close()
	}
}

func createTestJWT(t *testing.T, secret, subject string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func TestAuthRequired(t *testing.T) {
	server, cleanup := setupAuthTestServer(t, "test-secret")
	defer cleanup()

	s := dial(t, server.Addr())
	resp := s.sendLine(`{"op":"tables"}`)
	if resp.OK {
		t.Error("Expected request without auth to fail")
	}
}

func TestAuthWithValidJWT(t *testing.T) {
	secret := "test-secret"
	server, cleanup := setupAuthTestServer(t, secret)
	defer cleanup()

	s := dial(t, server.Addr())
	token := createTestJWT(t, secret, "tester")

	resp := s.sendLine("AUTH JWT " + token)
	if !resp.OK {
		t.Fatalf("Auth failed: %s", resp.Error)
	}
	if resp.Auth == nil || !resp.Auth.Authenticated || resp.Auth.Subject != "tester" {
		t.Fatalf("Unexpected auth payload: %+v", resp.Auth)
	}

	resp = s.sendLine(`{"op":"tables"}`)
	if !resp.OK {
		t.Errorf("Expected authenticated request to succeed, got: %s", resp.Error)
	}
}

func TestAuthWithInvalidJWT(t *testing.T) {
	server, cleanup := setupAuthTestServer(t, "test-secret")
	defer cleanup()

	s := dial(t, server.Addr())
	token := createTestJWT(t, "wrong-secret", "tester")

	resp := s.sendLine("AUTH JWT " + token)
	if resp.OK {
		t.Error("Expected auth with wrong secret to fail")
	}
}
