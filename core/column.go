package core

import (
	"encoding/json"
	"fmt"
	"reflect"
)

type ColumnType int

const (
	RowidType ColumnType = iota
	IntType
	BoolType
	StrType
	FloatType
	DataType
	DateTimeType
	ReferenceType
)

var columnTypeNames = map[ColumnType]string{
	RowidType:     "rowid",
	IntType:       "integer",
	BoolType:      "boolean",
	StrType:       "string",
	FloatType:     "float",
	DataType:      "data",
	DateTimeType:  "datetime",
	ReferenceType: "reference",
}

func (t ColumnType) String() string {
	if name, ok := columnTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// ColumnTypeByName resolves a type name as reported by drivers back to
// a ColumnType. Used when conforming a database.
func ColumnTypeByName(name string) (ColumnType, bool) {
	for t, n := range columnTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// MarshalJSON writes the type by name, keeping stored schemas and the
// wire protocol readable.
func (t ColumnType) MarshalJSON() ([]byte, error) {
	name, ok := columnTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown column type %d", int(t))
	}
	return json.Marshal(name)
}

func (t *ColumnType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, ok := ColumnTypeByName(name)
	if !ok {
		return fmt.Errorf("unknown column type %q", name)
	}
	*t = parsed
	return nil
}

// Column is a typed field declaration inside a table definition.
type Column struct {
	Name          string     `json:"name"`
	Type          ColumnType `json:"type"`
	Required      bool       `json:"required,omitempty"`
	Unique        bool       `json:"unique,omitempty"`
	PrimaryKey    bool       `json:"primaryKey,omitempty"`
	AutoIncrement bool       `json:"autoIncrement,omitempty"`
	Default       any        `json:"default,omitempty"`
	References    string     `json:"references,omitempty"`
	Length        int        `json:"length,omitempty"`
}

// ColumnOption modifies a column declaration.
type ColumnOption func(*Column)

// Required marks the column NOT NULL.
func Required() ColumnOption {
	return func(c *Column) { c.Required = true }
}

// Unique adds a uniqueness constraint to the column.
func Unique() ColumnOption {
	return func(c *Column) { c.Unique = true }
}

// PrimaryKey marks the column as part of the table's primary key.
func PrimaryKey() ColumnOption {
	return func(c *Column) { c.PrimaryKey = true }
}

// Default sets the value used when an insert omits the column.
func Default(v any) ColumnOption {
	return func(c *Column) { c.Default = v }
}

// Length caps the stored length for string columns.
func Length(n int) ColumnOption {
	return func(c *Column) { c.Length = n }
}

func newColumn(name string, t ColumnType, opts []ColumnOption) Column {
	c := Column{Name: name, Type: t}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// RowidColumn declares an auto-increment integer primary key.
func RowidColumn(name string, opts ...ColumnOption) Column {
	c := newColumn(name, RowidType, opts)
	c.PrimaryKey = true
	c.AutoIncrement = true
	return c
}

// IntColumn declares an integer column.
func IntColumn(name string, opts ...ColumnOption) Column {
	return newColumn(name, IntType, opts)
}

// BoolColumn declares a boolean column.
func BoolColumn(name string, opts ...ColumnOption) Column {
	return newColumn(name, BoolType, opts)
}

// StrColumn declares a text column.
func StrColumn(name string, opts ...ColumnOption) Column {
	return newColumn(name, StrType, opts)
}

// FloatColumn declares a floating point column.
func FloatColumn(name string, opts ...ColumnOption) Column {
	return newColumn(name, FloatType, opts)
}

// DataColumn declares an opaque bytes column.
func DataColumn(name string, opts ...ColumnOption) Column {
	return newColumn(name, DataType, opts)
}

// DateTimeColumn declares a timestamp column.
func DateTimeColumn(name string, opts ...ColumnOption) Column {
	return newColumn(name, DateTimeType, opts)
}

// ReferenceColumn declares an integer column referencing another table's
// primary key.
func ReferenceColumn(name string, references string, opts ...ColumnOption) Column {
	c := newColumn(name, ReferenceType, opts)
	c.References = references
	return c
}

// Equal reports whether two columns declare the same field: same name,
// type, and modifiers.
func (c Column) Equal(other Column) bool {
	return c.Name == other.Name &&
		c.Type == other.Type &&
		c.Required == other.Required &&
		c.Unique == other.Unique &&
		c.PrimaryKey == other.PrimaryKey &&
		c.AutoIncrement == other.AutoIncrement &&
		c.References == other.References &&
		c.Length == other.Length &&
		reflect.DeepEqual(c.Default, other.Default)
}

func (c Column) String() string {
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}
