package db

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/silkdb/webdb/core"
)

// dumpLine is one record of the JSON-lines export stream. Table lines
// carry the definition, row lines carry one row's values.
type dumpLine struct {
	Kind       string         `json:"kind"` // "table" or "row"
	Name       string         `json:"name,omitempty"`
	Columns    []core.Column  `json:"columns,omitempty"`
	PrimaryKey []core.Column  `json:"primaryKey,omitempty"`
	Table      string         `json:"table,omitempty"`
	Values     map[string]any `json:"values,omitempty"`
}

// Dump writes every registered table and its rows as JSON lines. Each
// table line precedes its row lines, so Load can define as it reads.
func (db *DB) Dump(w io.Writer) error {
	if err := db.check(); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for _, name := range db.Tables() {
		t := db.tables[name]
		err := enc.Encode(dumpLine{
			Kind:       "table",
			Name:       name,
			Columns:    t.def.Columns,
			PrimaryKey: t.def.PrimaryKey,
		})
		if err != nil {
			return fmt.Errorf("dump %s: %w", name, err)
		}

		rows, err := t.Select().All()
		if err != nil {
			return err
		}
		for _, row := range rows {
			values := make(map[string]any, len(row.columns))
			for i, c := range row.columns {
				values[c] = row.values[i]
			}
			if err := enc.Encode(dumpLine{Kind: "row", Table: name, Values: values}); err != nil {
				return fmt.Errorf("dump %s: %w", name, err)
			}
		}
	}
	return nil
}

// Load replays a dump stream into the database, defining tables as
// their lines arrive and inserting the rows that follow.
func (db *DB) Load(r io.Reader) error {
	if err := db.check(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var line dumpLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			return fmt.Errorf("load line %d: %w", lineNo, err)
		}

		switch line.Kind {
		case "table":
			if _, err := db.Define(line.Name, line.Columns...); err != nil {
				return fmt.Errorf("load line %d: %w", lineNo, err)
			}
		case "row":
			t, err := db.Table(line.Table)
			if err != nil {
				return fmt.Errorf("load line %d: %w", lineNo, err)
			}
			if _, err := t.Insert(Values(line.Values)); err != nil {
				return fmt.Errorf("load line %d: %w", lineNo, err)
			}
		default:
			return fmt.Errorf("load line %d: unknown kind %q", lineNo, line.Kind)
		}
	}
	return scanner.Err()
}

// DumpTo exports to a path, s3:// or file:// target. Targets ending in
// .lz4 are compressed.
func (db *DB) DumpTo(target string, opts *S3Options) error {
	w, err := openTargetWriter(target, opts)
	if err != nil {
		return err
	}

	var out io.Writer = w
	var zw *lz4.Writer
	if strings.HasSuffix(target, ".lz4") {
		zw = lz4.NewWriter(w)
		out = zw
	}
	if err := db.Dump(out); err != nil {
		w.Close()
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// LoadFrom imports from a path, s3://, http(s):// or file:// target,
// decompressing .lz4 dumps.
func (db *DB) LoadFrom(target string, opts *S3Options) error {
	r, err := openTargetReader(target, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	if strings.HasSuffix(target, ".lz4") {
		return db.Load(lz4.NewReader(r))
	}
	return db.Load(r)
}
