package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func col(name string) ColumnRef {
	return ColumnRef{Table: "t", Name: name}
}

func TestComparisonOps(t *testing.T) {
	row := map[string]any{"key": int64(3), "value": "c"}

	match, err := Matches(NewNode(LessEqual, col("key"), 3), row)
	require.NoError(t, err)
	require.True(t, match)

	match, err = Matches(NewNode(GreaterThan, col("key"), 3), row)
	require.NoError(t, err)
	require.False(t, match)

	match, err = Matches(NewNode(Equal, col("value"), "c"), row)
	require.NoError(t, err)
	require.True(t, match)

	// Mixed numeric widths compare numerically.
	match, err = Matches(NewNode(Equal, col("key"), float64(3)), row)
	require.NoError(t, err)
	require.True(t, match)
}

func TestNullNeverMatchesComparisons(t *testing.T) {
	row := map[string]any{"key": nil}

	for _, op := range []Op{LessThan, LessEqual, GreaterThan, GreaterEqual} {
		match, err := Matches(NewNode(op, col("key"), 0), row)
		require.NoError(t, err)
		require.False(t, match, op.String())
	}

	// IS semantics: nil equals nil.
	match, err := Matches(NewNode(Equal, col("key"), nil), row)
	require.NoError(t, err)
	require.True(t, match)
}

func TestLogicalCombinators(t *testing.T) {
	row := map[string]any{"key": int64(4), "rowid": int64(1)}

	lt := NewNode(LessThan, col("rowid"), 0)
	eq := NewNode(Equal, col("key"), 4)

	match, err := Matches(NewNode(Or, lt, eq), row)
	require.NoError(t, err)
	require.True(t, match)

	match, err = Matches(NewNode(And, lt, eq), row)
	require.NoError(t, err)
	require.False(t, match)

	match, err = Matches(NewNode(Not, lt), row)
	require.NoError(t, err)
	require.True(t, match)
}

func TestArithmeticAndStrings(t *testing.T) {
	row := map[string]any{"n": int64(7), "s": "  hi  "}

	v, err := Eval(NewNode(Add, col("n"), 3), row)
	require.NoError(t, err)
	require.Equal(t, int64(10), v)

	v, err = Eval(NewNode(Divide, col("n"), 2), row)
	require.NoError(t, err)
	require.Equal(t, 3.5, v)

	v, err = Eval(NewNode(FloorDivide, col("n"), 2), row)
	require.NoError(t, err)
	require.Equal(t, int64(3), v)

	v, err = Eval(NewNode(Modulo, col("n"), 4), row)
	require.NoError(t, err)
	require.Equal(t, int64(3), v)

	v, err = Eval(NewNode(Concatenate, "a", "b"), row)
	require.NoError(t, err)
	require.Equal(t, "ab", v)

	v, err = Eval(NewNode(Strip, col("s")), row)
	require.NoError(t, err)
	require.Equal(t, "hi", v)

	v, err = Eval(NewNode(Length, col("s")), row)
	require.NoError(t, err)
	require.Equal(t, int64(6), v)

	v, err = Eval(NewNode(Substring, "hello", 2, 3), row)
	require.NoError(t, err)
	require.Equal(t, "ell", v)

	v, err = Eval(NewNode(Coalesce, nil, nil, "x"), row)
	require.NoError(t, err)
	require.Equal(t, "x", v)
}

func TestLikeAndGlob(t *testing.T) {
	row := map[string]any{}

	match, err := Eval(NewNode(Like, "Hello", "h%o"), row)
	require.NoError(t, err)
	require.Equal(t, true, match)

	match, err = Eval(NewNode(Like, "Hello", "h_llo"), row)
	require.NoError(t, err)
	require.Equal(t, true, match)

	match, err = Eval(NewNode(Like, "100%", "100!%", "!"), row)
	require.NoError(t, err)
	require.Equal(t, true, match)

	match, err = Eval(NewNode(Glob, "Hello", "H*o"), row)
	require.NoError(t, err)
	require.Equal(t, true, match)

	match, err = Eval(NewNode(Glob, "Hello", "h*o"), row)
	require.NoError(t, err)
	require.Equal(t, false, match) // GLOB is case-sensitive
}

func TestBetween(t *testing.T) {
	row := map[string]any{"n": int64(5)}

	match, err := Matches(NewNode(Between, col("n"), 1, 10), row)
	require.NoError(t, err)
	require.True(t, match)

	match, err = Matches(NewNode(Between, col("n"), 6, 10), row)
	require.NoError(t, err)
	require.False(t, match)
}

func TestAggregates(t *testing.T) {
	rows := []map[string]any{
		{"n": int64(1)},
		{"n": int64(2)},
		{"n": nil},
		{"n": int64(3)},
	}

	v, err := EvalAggregate(NewNode(Sum, col("n")), rows)
	require.NoError(t, err)
	require.Equal(t, 6.0, v)

	v, err = EvalAggregate(NewNode(Average, col("n")), rows)
	require.NoError(t, err)
	require.Equal(t, 2.0, v)

	v, err = EvalAggregate(NewNode(Min, col("n")), rows)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	v, err = EvalAggregate(NewNode(Max, col("n")), rows)
	require.NoError(t, err)
	require.Equal(t, int64(3), v)

	_, err = EvalAggregate(NewNode(Equal, col("n"), 1), rows)
	require.Error(t, err)
}

func TestNodeColumns(t *testing.T) {
	n := NewNode(And,
		NewNode(Equal, col("a"), 1),
		NewNode(Or, NewNode(LessThan, col("b"), col("c")), true),
	)
	refs := n.Columns()
	require.Len(t, refs, 3)
	require.Equal(t, "a", refs[0].Name)
	require.Equal(t, "b", refs[1].Name)
	require.Equal(t, "c", refs[2].Name)
}
