package query

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Eval evaluates an expression against one row. Column references
// resolve through the row map; unknown columns evaluate to nil.
func Eval(expr any, row map[string]any) (any, error) {
	switch x := expr.(type) {
	case nil:
		return nil, nil
	case *Node:
		return evalNode(x, row)
	case ColumnRef:
		return row[x.Name], nil
	default:
		return x, nil
	}
}

// Truthy reports whether a value counts as true in a filter position.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	default:
		if f, ok := toNumber(v); ok {
			return f != 0
		}
		return true
	}
}

// Matches reports whether a row satisfies a filter tree. A nil tree
// matches everything.
func Matches(where *Node, row map[string]any) (bool, error) {
	if where == nil {
		return true, nil
	}
	v, err := evalNode(where, row)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

func evalNode(n *Node, row map[string]any) (any, error) {
	if n.Op.IsAggregate() {
		return nil, fmt.Errorf("aggregate %s cannot be evaluated per row", n.Op)
	}

	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a, row)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch n.Op {
	case Equal:
		return equal(args[0], args[1]), nil
	case NotEqual:
		return !equal(args[0], args[1]), nil
	case LessThan, LessEqual, GreaterThan, GreaterEqual:
		c, ok := Compare(args[0], args[1])
		if !ok {
			return false, nil
		}
		switch n.Op {
		case LessThan:
			return c < 0, nil
		case LessEqual:
			return c <= 0, nil
		case GreaterThan:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case Add, Subtract, Multiply, Divide, FloorDivide, Modulo:
		return arith(n.Op, args[0], args[1])
	case Concatenate:
		return asString(args[0]) + asString(args[1]), nil
	case And:
		return Truthy(args[0]) && Truthy(args[1]), nil
	case Or:
		return Truthy(args[0]) || Truthy(args[1]), nil
	case Not:
		return !Truthy(args[0]), nil
	case Negative:
		f, ok := toNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("NEGATIVE: not a number: %v", args[0])
		}
		return normalize(-f, isInt(args[0])), nil
	case Abs:
		f, ok := toNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("ABS: not a number: %v", args[0])
		}
		return normalize(math.Abs(f), isInt(args[0])), nil
	case Length:
		return int64(len(asString(args[0]))), nil
	case Between:
		lo, ok1 := Compare(args[0], args[1])
		hi, ok2 := Compare(args[0], args[2])
		return ok1 && ok2 && lo >= 0 && hi <= 0, nil
	case Upper:
		return strings.ToUpper(asString(args[0])), nil
	case Lower:
		return strings.ToLower(asString(args[0])), nil
	case Like:
		escape := ""
		if len(args) > 2 {
			escape = asString(args[2])
		}
		return likeMatch(asString(args[0]), asString(args[1]), escape)
	case Glob:
		return globMatch(asString(args[0]), asString(args[1]))
	case Strip:
		return strings.TrimSpace(asString(args[0])), nil
	case LStrip:
		return strings.TrimLeft(asString(args[0]), " \t\n\r"), nil
	case RStrip:
		return strings.TrimRight(asString(args[0]), " \t\n\r"), nil
	case Replace:
		return strings.ReplaceAll(asString(args[0]), asString(args[1]), asString(args[2])), nil
	case Round:
		f, ok := toNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("ROUND: not a number: %v", args[0])
		}
		if len(args) > 1 {
			p, _ := toNumber(args[1])
			scale := math.Pow(10, p)
			return math.Round(f*scale) / scale, nil
		}
		return math.Round(f), nil
	case Substring:
		s := asString(args[0])
		start, _ := toNumber(args[1])
		// SQL substr is 1-based.
		i := int(start) - 1
		if i < 0 {
			i = 0
		}
		if i >= len(s) {
			return "", nil
		}
		if len(args) > 2 {
			length, _ := toNumber(args[2])
			end := i + int(length)
			if end > len(s) {
				end = len(s)
			}
			return s[i:end], nil
		}
		return s[i:], nil
	case Coalesce:
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	case Ascend, Descend:
		// Ordering wrappers pass their argument through.
		return args[0], nil
	}
	return nil, fmt.Errorf("unsupported operator %s", n.Op)
}

// EvalAggregate folds an aggregate node over a result set.
func EvalAggregate(n *Node, rows []map[string]any) (any, error) {
	if !n.Op.IsAggregate() {
		return nil, fmt.Errorf("%s is not an aggregate", n.Op)
	}
	if len(n.Args) != 1 {
		return nil, fmt.Errorf("%s takes one argument", n.Op)
	}

	var sum float64
	var count int
	var best any
	for _, row := range rows {
		v, err := Eval(n.Args[0], row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		switch n.Op {
		case Sum, Average:
			f, ok := toNumber(v)
			if !ok {
				return nil, fmt.Errorf("%s: not a number: %v", n.Op, v)
			}
			sum += f
			count++
		case Min:
			if best == nil {
				best = v
			} else if c, ok := Compare(v, best); ok && c < 0 {
				best = v
			}
		case Max:
			if best == nil {
				best = v
			} else if c, ok := Compare(v, best); ok && c > 0 {
				best = v
			}
		}
	}

	switch n.Op {
	case Sum:
		return sum, nil
	case Average:
		if count == 0 {
			return nil, nil
		}
		return sum / float64(count), nil
	default:
		return best, nil
	}
}

func arith(op Op, a, b any) (any, error) {
	fa, ok1 := toNumber(a)
	fb, ok2 := toNumber(b)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%s: not numbers: %v, %v", op, a, b)
	}
	ints := isInt(a) && isInt(b)

	switch op {
	case Add:
		return normalize(fa+fb, ints), nil
	case Subtract:
		return normalize(fa-fb, ints), nil
	case Multiply:
		return normalize(fa*fb, ints), nil
	case Divide:
		if fb == 0 {
			return nil, fmt.Errorf("DIVIDE: division by zero")
		}
		return fa / fb, nil
	case FloorDivide:
		if fb == 0 {
			return nil, fmt.Errorf("FLOORDIVIDE: division by zero")
		}
		return int64(math.Floor(fa / fb)), nil
	case Modulo:
		if fb == 0 {
			return nil, fmt.Errorf("MODULO: division by zero")
		}
		return normalize(math.Mod(fa, fb), ints), nil
	}
	return nil, fmt.Errorf("unsupported arithmetic operator %s", op)
}

// equal implements IS semantics: nil equals nil and nothing else.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	return false
}

// Compare orders two values. Numbers compare numerically, strings and
// byte slices lexically, booleans false-before-true. The second return
// is false when the values are incomparable or either side is nil.
func Compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}

	if fa, ok := toNumber(a); ok {
		if fb, ok := toNumber(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	sa, aok := stringValue(a)
	sb, bok := stringValue(b)
	if aok && bok {
		return strings.Compare(sa, sb), true
	}

	return 0, false
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func isInt(v any) bool {
	switch v.(type) {
	case int, int32, int64, uint, uint32, uint64:
		return true
	}
	return false
}

func normalize(f float64, wantInt bool) any {
	if wantInt {
		return int64(f)
	}
	return f
}

func stringValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	default:
		return "", false
	}
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := stringValue(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

// likeMatch implements SQL LIKE: % matches any run, _ one character,
// case-insensitive.
func likeMatch(s, pattern, escape string) (bool, error) {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	escaped := false
	for _, r := range pattern {
		if escaped {
			sb.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
			continue
		}
		switch {
		case escape != "" && string(r) == escape:
			escaped = true
		case r == '%':
			sb.WriteString(".*")
		case r == '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return false, fmt.Errorf("bad LIKE pattern %q: %w", pattern, err)
	}
	return re.MatchString(s), nil
}

// globMatch implements SQLite GLOB: * and ? wildcards, case-sensitive.
func globMatch(s, pattern string) (bool, error) {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return false, fmt.Errorf("bad GLOB pattern %q: %w", pattern, err)
	}
	return re.MatchString(s), nil
}
