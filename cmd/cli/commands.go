package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/silkdb/webdb/core"
	"github.com/silkdb/webdb/db"
)

// execute parses and runs one command line.
func (cli *CLI) execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "define":
		return cli.cmdDefine(args)
	case "describe":
		return cli.cmdDescribe(args)
	case "insert":
		return cli.cmdInsert(args)
	case "select":
		return cli.cmdSelect(args)
	case "get":
		return cli.cmdGet(args)
	case "count":
		return cli.cmdCount(args)
	case "update":
		return cli.cmdUpdate(args)
	case "delete":
		return cli.cmdDelete(args)
	case "drop":
		return cli.cmdDrop(args)
	case "dump":
		return cli.cmdDump(args)
	case "load":
		return cli.cmdLoad(args)
	}
	return fmt.Errorf("unknown command %q", verb)
}

func (cli *CLI) cmdDefine(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: define <table> <name:type> ...")
	}

	var columns []core.Column
	for _, spec := range args[1:] {
		col, err := parseColumnSpec(spec)
		if err != nil {
			return err
		}
		columns = append(columns, col)
	}

	t, err := cli.database.Define(args[0], columns...)
	if err != nil {
		return err
	}
	successColor.Printf("✓ Defined table %s (%d columns)\n", t.Name(), len(t.Columns()))
	return nil
}

// parseColumnSpec parses "name:type" with optional ":required",
// ":unique" and ":length=N" modifiers.
func parseColumnSpec(spec string) (core.Column, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 {
		return core.Column{}, fmt.Errorf("column spec %q needs name:type", spec)
	}

	colType, ok := core.ColumnTypeByName(parts[1])
	if !ok {
		return core.Column{}, fmt.Errorf("unknown column type %q", parts[1])
	}

	col := core.Column{Name: parts[0], Type: colType}
	if colType == core.RowidType {
		col.PrimaryKey = true
		col.AutoIncrement = true
	}

	for _, mod := range parts[2:] {
		switch {
		case mod == "required":
			col.Required = true
		case mod == "unique":
			col.Unique = true
		case mod == "pk":
			col.PrimaryKey = true
		case strings.HasPrefix(mod, "length="):
			n, err := strconv.Atoi(strings.TrimPrefix(mod, "length="))
			if err != nil {
				return core.Column{}, fmt.Errorf("bad length in %q", spec)
			}
			col.Length = n
		default:
			return core.Column{}, fmt.Errorf("unknown column modifier %q", mod)
		}
	}
	return col, nil
}

func (cli *CLI) cmdDescribe(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: describe <table>")
	}
	t, err := cli.database.Table(args[0])
	if err != nil {
		return err
	}

	headerColor.Printf("%-20s %-10s %s\n", "COLUMN", "TYPE", "MODIFIERS")
	for _, col := range t.Definition().AllColumns() {
		var mods []string
		if col.PrimaryKey {
			mods = append(mods, "primary key")
		}
		if col.Required {
			mods = append(mods, "required")
		}
		if col.Unique {
			mods = append(mods, "unique")
		}
		if col.Length > 0 {
			mods = append(mods, fmt.Sprintf("length %d", col.Length))
		}
		fmt.Printf("%-20s %-10s %s\n", col.Name, col.Type, strings.Join(mods, ", "))
	}
	return nil
}

func (cli *CLI) cmdInsert(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: insert <table> <col>=<value> ...")
	}
	t, err := cli.database.Table(args[0])
	if err != nil {
		return err
	}

	values, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	rowid, err := t.Insert(values)
	if err != nil {
		return err
	}
	successColor.Printf("✓ Inserted row %d\n", rowid)
	return nil
}

func parseAssignments(args []string) (db.Values, error) {
	values := db.Values{}
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected <col>=<value>, got %q", arg)
		}
		values[name] = parseValue(raw)
	}
	return values, nil
}

// parseValue guesses the Go type of a literal: bool, int, float, or
// string. Quotes force a string.
func parseValue(raw string) any {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func (cli *CLI) cmdSelect(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: select <table> [cols <a,b>] [where ...] [order <col> [desc]]")
	}
	t, err := cli.database.Table(args[0])
	if err != nil {
		return err
	}

	rest := args[1:]
	var columns []any
	if len(rest) >= 2 && strings.EqualFold(rest[0], "cols") {
		for _, name := range strings.Split(rest[1], ",") {
			columns = append(columns, t.C(name))
		}
		rest = rest[2:]
	}

	where, rest, err := parseWhere(t, rest)
	if err != nil {
		return err
	}

	var sel *db.Selection
	if where != nil {
		sel = where.Select(columns...)
	} else {
		sel = t.Select(columns...)
	}

	if len(rest) >= 2 && strings.EqualFold(rest[0], "order") {
		key := any(t.C(rest[1]))
		if len(rest) >= 3 && strings.EqualFold(rest[2], "desc") {
			key = t.C(rest[1]).Desc()
			rest = rest[3:]
		} else {
			rest = rest[2:]
		}
		sel = sel.OrderBy(key)
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected trailing arguments: %s", strings.Join(rest, " "))
	}

	rows, err := sel.All()
	if err != nil {
		return err
	}
	renderRows(rows)
	return nil
}

// parseWhere consumes "where <col> <op> <value> [and ...]" from the
// front of args and returns what remains.
func parseWhere(t *db.Table, args []string) (*db.Where, []string, error) {
	if len(args) == 0 || !strings.EqualFold(args[0], "where") {
		return nil, args, nil
	}
	args = args[1:]

	var where *db.Where
	for {
		if len(args) < 3 {
			return nil, nil, fmt.Errorf("where clause needs <col> <op> <value>")
		}
		next, err := buildCondition(t, args[0], args[1], args[2])
		if err != nil {
			return nil, nil, err
		}
		if where == nil {
			where = next
		} else {
			where = where.And(next)
		}
		args = args[3:]

		if len(args) == 0 || !strings.EqualFold(args[0], "and") {
			return where, args, nil
		}
		args = args[1:]
	}
}

func buildCondition(t *db.Table, column, op, raw string) (*db.Where, error) {
	col := t.C(column)
	value := parseValue(raw)

	switch strings.ToLower(op) {
	case "eq", "=", "==":
		return col.Eq(value), nil
	case "ne", "!=":
		return col.Ne(value), nil
	case "lt", "<":
		return col.Lt(value), nil
	case "le", "<=":
		return col.Le(value), nil
	case "gt", ">":
		return col.Gt(value), nil
	case "ge", ">=":
		return col.Ge(value), nil
	case "like":
		pattern, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("like needs a string pattern")
		}
		return col.Like(pattern), nil
	case "glob":
		pattern, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("glob needs a string pattern")
		}
		return col.Glob(pattern), nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

func (cli *CLI) cmdGet(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: get <table> <rowid>")
	}
	t, err := cli.database.Table(args[0])
	if err != nil {
		return err
	}
	rowid, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("bad rowid %q", args[1])
	}
	row, err := t.Get(rowid)
	if err != nil {
		return err
	}
	renderRows([]db.Row{row})
	return nil
}

func (cli *CLI) cmdCount(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: count <table> [where ...]")
	}
	t, err := cli.database.Table(args[0])
	if err != nil {
		return err
	}

	where, rest, err := parseWhere(t, args[1:])
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected trailing arguments: %s", strings.Join(rest, " "))
	}

	var n int64
	if where != nil {
		n, err = where.Count()
	} else {
		n, err = t.Count()
	}
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func (cli *CLI) cmdUpdate(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: update <table> <col>=<value> ... where ...")
	}
	t, err := cli.database.Table(args[0])
	if err != nil {
		return err
	}

	var assignments []string
	rest := args[1:]
	for len(rest) > 0 && !strings.EqualFold(rest[0], "where") {
		assignments = append(assignments, rest[0])
		rest = rest[1:]
	}
	if len(assignments) == 0 {
		return fmt.Errorf("update needs at least one <col>=<value>")
	}
	values, err := parseAssignments(assignments)
	if err != nil {
		return err
	}

	where, rest, err := parseWhere(t, rest)
	if err != nil {
		return err
	}
	if where == nil {
		return fmt.Errorf("update requires a where clause")
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected trailing arguments: %s", strings.Join(rest, " "))
	}

	n, err := where.Update(values)
	if err != nil {
		return err
	}
	successColor.Printf("✓ Updated %d rows\n", n)
	return nil
}

func (cli *CLI) cmdDelete(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: delete <table> where ...")
	}
	t, err := cli.database.Table(args[0])
	if err != nil {
		return err
	}

	where, rest, err := parseWhere(t, args[1:])
	if err != nil {
		return err
	}
	if where == nil {
		return fmt.Errorf("delete requires a where clause")
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected trailing arguments: %s", strings.Join(rest, " "))
	}

	n, err := where.Delete()
	if err != nil {
		return err
	}
	successColor.Printf("✓ Deleted %d rows\n", n)
	return nil
}

func (cli *CLI) cmdDrop(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: drop <table>")
	}
	if err := cli.database.Drop(args[0]); err != nil {
		return err
	}
	successColor.Printf("✓ Dropped table %s\n", args[0])
	return nil
}

func (cli *CLI) cmdDump(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dump <target>")
	}
	if err := cli.database.DumpTo(args[0], nil); err != nil {
		return err
	}
	successColor.Printf("✓ Dumped to %s\n", args[0])
	return nil
}

func (cli *CLI) cmdLoad(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: load <target>")
	}
	if err := cli.database.LoadFrom(args[0], nil); err != nil {
		return err
	}
	successColor.Printf("✓ Loaded from %s\n", args[0])
	return nil
}

// renderRows prints rows as an aligned text table.
func renderRows(rows []db.Row) {
	if len(rows) == 0 {
		fmt.Println("(no rows)")
		return
	}

	columns := rows[0].Columns()
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}

	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(columns))
		for j, c := range columns {
			v, err := row.Get(c)
			if err != nil {
				cells[i][j] = "?"
				continue
			}
			cells[i][j] = formatCell(v)
			if len(cells[i][j]) > widths[j] {
				widths[j] = len(cells[i][j])
			}
		}
	}

	for i, c := range columns {
		headerColor.Printf("%-*s  ", widths[i], strings.ToUpper(c))
	}
	fmt.Println()
	for _, rowCells := range cells {
		for j, cell := range rowCells {
			fmt.Printf("%-*s  ", widths[j], cell)
		}
		fmt.Println()
	}
	fmt.Printf("(%d rows)\n", len(rows))
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(x))
	default:
		return fmt.Sprint(v)
	}
}
