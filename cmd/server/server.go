package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/silkdb/webdb/db"
)

// Server serves the line protocol over TCP. All requests share one
// database handle; a coarse lock serializes them.
type Server struct {
	cfg      *Config
	database *db.DB

	listener net.Listener
	mu       sync.Mutex
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewServer(cfg *Config, database *db.DB) *Server {
	return &Server{
		cfg:      cfg,
		database: database,
		done:     make(chan struct{}),
	}
}

func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = listener
	log.Printf("listening on %s", listener.Addr())

	go s.acceptLoop()
	return nil
}

func (s *Server) Stop() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Printf("accept: %v", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	id := uuid.NewString()[:8]
	log.Printf("[%s] connected: %s", id, conn.RemoteAddr())

	state := &ConnectionState{}
	reader := bufio.NewReader(conn)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("[%s] read: %v", id, err)
			}
			log.Printf("[%s] disconnected", id)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if lower := strings.ToLower(line); lower == "quit" || lower == "exit" {
			log.Printf("[%s] disconnected", id)
			return
		}

		resp := s.dispatch(id, line, state)
		data, err := EncodeResponse(resp)
		if err != nil {
			log.Printf("[%s] encode: %v", id, err)
			continue
		}
		if _, err := conn.Write(data); err != nil {
			log.Printf("[%s] write: %v", id, err)
			return
		}
	}
}

func (s *Server) dispatch(id, line string, state *ConnectionState) Response {
	if strings.HasPrefix(strings.ToUpper(line), "AUTH ") {
		return s.handleAuth(id, line, state)
	}
	if s.cfg.Auth.Enabled && !state.Authenticated() {
		return Response{Error: "authentication required"}
	}

	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return Response{Error: fmt.Sprintf("malformed request: %v", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execute(req)
}

func (s *Server) execute(req Request) Response {
	switch req.Op {
	case "tables":
		return Response{OK: true, Tables: s.database.Tables()}

	case "define":
		if _, err := s.database.Define(req.Table, req.Columns...); err != nil {
			return errorResponse(err)
		}
		return Response{OK: true}

	case "drop":
		if err := s.database.Drop(req.Table); err != nil {
			return errorResponse(err)
		}
		return Response{OK: true}
	}

	t, err := s.database.Table(req.Table)
	if err != nil {
		return errorResponse(err)
	}

	switch req.Op {
	case "insert":
		if len(req.Rows) > 0 {
			rowids, err := t.InsertMany(toValues(req.Rows))
			if err != nil {
				return errorResponse(err)
			}
			return Response{OK: true, Rowids: rowids, Count: int64(len(rowids))}
		}
		rowid, err := t.Insert(db.Values(req.Values))
		if err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, Rowid: rowid}

	case "select":
		sel, err := s.buildSelection(t, req)
		if err != nil {
			return errorResponse(err)
		}
		rows, err := sel.All()
		if err != nil {
			return errorResponse(err)
		}

		resp := Response{OK: true, Count: int64(len(rows))}
		for i, row := range rows {
			if i == 0 {
				resp.Columns = row.Columns()
			}
			m, err := row.AsMap()
			if err != nil {
				return errorResponse(err)
			}
			values := make([]any, len(resp.Columns))
			for j, c := range resp.Columns {
				values[j] = m[c]
			}
			resp.Rows = append(resp.Rows, values)
		}
		return resp

	case "count":
		where, err := buildWhere(t, req.Where)
		if err != nil {
			return errorResponse(err)
		}
		var n int64
		if where == nil {
			n, err = t.Count()
		} else {
			n, err = where.Count()
		}
		if err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, Count: n}

	case "update":
		where, err := buildWhere(t, req.Where)
		if err != nil {
			return errorResponse(err)
		}
		if where == nil {
			return Response{Error: "update requires a where clause"}
		}
		n, err := where.Update(db.Values(req.Values))
		if err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, Count: n}

	case "delete":
		where, err := buildWhere(t, req.Where)
		if err != nil {
			return errorResponse(err)
		}
		if where == nil {
			return Response{Error: "delete requires a where clause"}
		}
		n, err := where.Delete()
		if err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, Count: n}
	}

	return Response{Error: fmt.Sprintf("unknown op %q", req.Op)}
}

func (s *Server) buildSelection(t *db.Table, req Request) (*db.Selection, error) {
	where, err := buildWhere(t, req.Where)
	if err != nil {
		return nil, err
	}

	var columns []any
	for _, name := range req.Select {
		columns = append(columns, t.C(name))
	}

	var sel *db.Selection
	if where != nil {
		sel = where.Select(columns...)
	} else {
		sel = t.Select(columns...)
	}

	if len(req.OrderBy) > 0 {
		keys := make([]any, len(req.OrderBy))
		for i, o := range req.OrderBy {
			if o.Descending {
				keys[i] = t.C(o.Column).Desc()
			} else {
				keys[i] = t.C(o.Column)
			}
		}
		sel = sel.OrderBy(keys...)
	}
	if req.Distinct {
		sel = sel.Distinct()
	}
	return sel, nil
}

func toValues(rows []map[string]any) []db.Values {
	out := make([]db.Values, len(rows))
	for i, r := range rows {
		out[i] = db.Values(r)
	}
	return out
}
