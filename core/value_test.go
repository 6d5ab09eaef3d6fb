package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIntCoercion(t *testing.T) {
	c := IntColumn("n")

	v, err := c.ToDB("100")
	require.NoError(t, err)
	require.Equal(t, int64(100), v)

	v, err = c.ToDB(7)
	require.NoError(t, err)
	require.Equal(t, int64(7), v)

	// JSON round-trips numbers as float64.
	v, err = c.FromDB(float64(3))
	require.NoError(t, err)
	require.Equal(t, int64(3), v)

	_, err = c.ToDB("not a number")
	require.Error(t, err)
}

func TestBoolCoercion(t *testing.T) {
	c := BoolColumn("b")

	v, err := c.ToDB(2)
	require.NoError(t, err)
	require.Equal(t, true, v)

	v, err = c.ToDB(0)
	require.NoError(t, err)
	require.Equal(t, false, v)

	v, err = c.FromDB(int64(1))
	require.NoError(t, err)
	require.Equal(t, true, v)
}

func TestStrCoercion(t *testing.T) {
	c := StrColumn("s")

	v, err := c.ToDB(3)
	require.NoError(t, err)
	require.Equal(t, "3", v)

	v, err = c.FromDB([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, "abc", v)
}

func TestDateTimeCoercion(t *testing.T) {
	c := DateTimeColumn("e")
	when := time.Date(1969, 10, 5, 0, 0, 0, 0, time.UTC)

	v, err := c.ToDB(when)
	require.NoError(t, err)
	require.Equal(t, "1969-10-05 00:00:00", v)

	back, err := c.FromDB(v)
	require.NoError(t, err)
	require.Equal(t, when, back)

	// RFC 3339 values from JSON round-trips parse too.
	back, err = c.FromDB("1969-10-05T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, when, back)
}

func TestDataCoercion(t *testing.T) {
	c := DataColumn("g")

	v, err := c.ToDB(7)
	require.NoError(t, err)
	require.Equal(t, []byte("7"), v)

	// JSON marshals []byte as base64; FromDB undoes it.
	back, err := c.FromDB("Nw==")
	require.NoError(t, err)
	require.Equal(t, []byte("7"), back)
}

func TestNilPassesThrough(t *testing.T) {
	for _, c := range []Column{IntColumn("a"), StrColumn("b"), DateTimeColumn("c")} {
		v, err := c.ToDB(nil)
		require.NoError(t, err)
		require.Nil(t, v)

		v, err = c.FromDB(nil)
		require.NoError(t, err)
		require.Nil(t, v)
	}
}
