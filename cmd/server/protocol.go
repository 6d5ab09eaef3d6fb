// Package main runs the webdb TCP server: one JSON request per line,
// one JSON response per line.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/db"
)

// Request is one client command.
//
// Op selects the operation: define, drop, tables, insert, select,
// update, delete, count. Where holds a flat condition list combined
// with AND.
type Request struct {
	Op       string           `json:"op"`
	Table    string           `json:"table,omitempty"`
	Columns  []core.Column    `json:"columns,omitempty"`
	Values   map[string]any   `json:"values,omitempty"`
	Rows     []map[string]any `json:"rows,omitempty"`
	Where    []Condition      `json:"where,omitempty"`
	Select   []string         `json:"select,omitempty"`
	OrderBy  []Order          `json:"order_by,omitempty"`
	Distinct bool             `json:"distinct,omitempty"`
}

// Condition is one column predicate.
type Condition struct {
	Column string `json:"column"`
	Op     string `json:"op"` // eq, ne, lt, le, gt, ge, like, glob
	Value  any    `json:"value"`
}

// Order is one sort key.
type Order struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending,omitempty"`
}

// Response is the server's answer to one request.
type Response struct {
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	Rowid   int64         `json:"rowid,omitempty"`
	Rowids  []int64       `json:"rowids,omitempty"`
	Count   int64         `json:"count,omitempty"`
	Columns []string      `json:"columns,omitempty"`
	Rows    [][]any       `json:"rows,omitempty"`
	Tables  []string      `json:"tables,omitempty"`
	Auth    *AuthResponse `json:"auth,omitempty"`
}

func errorResponse(err error) Response {
	return Response{Error: err.Error()}
}

// EncodeResponse serializes a response with its line terminator.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// buildWhere combines the request's conditions into one filter.
func buildWhere(t *db.Table, conditions []Condition) (*db.Where, error) {
	var where *db.Where
	for _, cond := range conditions {
		col := t.C(cond.Column)

		var next *db.Where
		switch cond.Op {
		case "eq":
			next = col.Eq(cond.Value)
		case "ne":
			next = col.Ne(cond.Value)
		case "lt":
			next = col.Lt(cond.Value)
		case "le":
			next = col.Le(cond.Value)
		case "gt":
			next = col.Gt(cond.Value)
		case "ge":
			next = col.Ge(cond.Value)
		case "like":
			pattern, ok := cond.Value.(string)
			if !ok {
				return nil, fmt.Errorf("like needs a string pattern, got %T", cond.Value)
			}
			next = col.Like(pattern)
		case "glob":
			pattern, ok := cond.Value.(string)
			if !ok {
				return nil, fmt.Errorf("glob needs a string pattern, got %T", cond.Value)
			}
			next = col.Glob(pattern)
		default:
			return nil, fmt.Errorf("unknown condition op %q", cond.Op)
		}

		if where == nil {
			where = next
		} else {
			where = where.And(next)
		}
	}
	return where, nil
}
