package core

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// TimeLayout is the wire format for datetime values.
const TimeLayout = "2006-01-02 15:04:05"

// ParseTime parses a datetime value in the wire format, falling back to
// RFC 3339 for values that round-tripped through JSON.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ToDB coerces a user-supplied value into the driver-native value for
// the column's kind: int64, bool, string, float64, []byte, or a
// formatted timestamp string.
func (c Column) ToDB(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch c.Type {
	case IntType, RowidType, ReferenceType:
		return toInt64(v)
	case BoolType:
		return toBool(v)
	case StrType:
		return toString(v), nil
	case FloatType:
		return toFloat64(v)
	case DataType:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		default:
			return []byte(toString(v)), nil
		}
	case DateTimeType:
		switch x := v.(type) {
		case time.Time:
			return x.Format(TimeLayout), nil
		case string:
			t, err := ParseTime(x)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			return t.Format(TimeLayout), nil
		default:
			return nil, fmt.Errorf("column %s: cannot convert %T to datetime", c.Name, v)
		}
	}
	return v, nil
}

// FromDB coerces a driver-stored value back into the value kind the
// caller expects for this column.
func (c Column) FromDB(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch c.Type {
	case IntType, RowidType, ReferenceType:
		return toInt64(v)
	case BoolType:
		return toBool(v)
	case StrType:
		return toString(v), nil
	case FloatType:
		return toFloat64(v)
	case DataType:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			// JSON marshals []byte as base64.
			if decoded, err := base64.StdEncoding.DecodeString(x); err == nil {
				return decoded, nil
			}
			return []byte(x), nil
		default:
			return nil, fmt.Errorf("column %s: cannot convert %T to data", c.Name, v)
		}
	case DateTimeType:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			t, err := ParseTime(x)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			return t, nil
		case []byte:
			t, err := ParseTime(string(x))
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			return t, nil
		default:
			return nil, fmt.Errorf("column %s: cannot convert %T to datetime", c.Name, v)
		}
	}
	return v, nil
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to integer", x)
		}
		return n, nil
	case []byte:
		return toInt64(string(x))
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to boolean", x)
		}
		return b, nil
	default:
		n, err := toInt64(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert %T to boolean", v)
		}
		return n != 0, nil
	}
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float", x)
		}
		return f, nil
	case []byte:
		return toFloat64(string(x))
	default:
		n, err := toInt64(v)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %T to float", v)
		}
		return float64(n), nil
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(TimeLayout)
	default:
		return fmt.Sprint(v)
	}
}
