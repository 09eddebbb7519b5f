// Package types implements the closed set of column types and the coercion
// of untyped input (decoded JSON values, request header strings) into typed,
// SQL-bindable scalars.
package types

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Type identifies one of the supported column types.
type Type string

const (
	Bool      Type = "bool"
	I32       Type = "i32"
	I64       Type = "i64"
	F32       Type = "f32"
	F64       Type = "f64"
	String    Type = "string"
	Timestamp Type = "timestamp"
)

// Default is the type assumed when a column declares none.
const Default = String

// Parse resolves a type name from the schema document.
func Parse(name string) (Type, error) {
	switch t := Type(name); t {
	case Bool, I32, I64, F32, F64, String, Timestamp:
		return t, nil
	default:
		return "", fmt.Errorf("unknown column type %q", name)
	}
}

// SQLType returns the physical Postgres type the column is created with.
func (t Type) SQLType() string {
	switch t {
	case Bool:
		return "BOOL"
	case I32:
		return "INT4"
	case I64:
		return "INT8"
	case F32:
		return "FLOAT4"
	case F64:
		return "FLOAT8"
	case String:
		return "VARCHAR"
	case Timestamp:
		return "TIMESTAMPTZ"
	}
	return ""
}

// Value is a typed, SQL-bindable scalar. Exactly one payload field is
// meaningful, selected by Type; Null marks a typed SQL NULL.
type Value struct {
	Type Type
	Null bool

	Bool  bool
	Int   int64 // I32 and I64
	Float float64
	Str   string
	Time  time.Time
}

// Bind returns the value in a form the database driver binds as the column's
// physical type. Nulls are returned as the matching sql.Null* zero value so
// the driver still knows the type.
func (v Value) Bind() any {
	if v.Null {
		switch v.Type {
		case Bool:
			return sql.NullBool{}
		case I32:
			return sql.NullInt32{}
		case I64:
			return sql.NullInt64{}
		case F32, F64:
			return sql.NullFloat64{}
		case String:
			return sql.NullString{}
		case Timestamp:
			return sql.NullTime{}
		}
	}
	switch v.Type {
	case Bool:
		return v.Bool
	case I32:
		return int32(v.Int)
	case I64:
		return v.Int
	case F32:
		return float32(v.Float)
	case F64:
		return v.Float
	case String:
		return v.Str
	case Timestamp:
		return v.Time
	}
	return nil
}

// Postgres timestamptz range; instants outside it cannot be stored.
const (
	minEpochSeconds = -210866803200 // 4714-11-24 00:00:00 BC
	maxEpochSeconds = 9224318015999 // 294276-12-31 23:59:59
)

// Coerce converts a raw JSON value into a Value of type t. A raw value of the
// wrong JSON shape counts as absent, not as an error; an absent value yields a
// typed null, or a MissingValue error when the column is required. Numbers are
// expected as json.Number (request bodies are decoded with UseNumber) so that
// integral and fractional literals stay distinguishable.
func Coerce(t Type, key string, raw any, required bool) (Value, error) {
	switch t {
	case Bool:
		if b, ok := raw.(bool); ok {
			return Value{Type: t, Bool: b}, nil
		}
	case I32:
		if n, ok := asInt(raw); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return Value{Type: t, Int: n}, nil
		}
	case I64:
		if n, ok := asInt(raw); ok {
			return Value{Type: t, Int: n}, nil
		}
	case F32, F64:
		if f, ok := asFloat(raw); ok {
			return Value{Type: t, Float: f}, nil
		}
	case String:
		if s, ok := raw.(string); ok {
			return Value{Type: t, Str: s}, nil
		}
	case Timestamp:
		tm, ok, err := asTime(key, raw)
		if err != nil {
			return Value{}, err
		}
		if ok {
			return Value{Type: t, Time: tm}, nil
		}
	}
	return absent(t, key, required)
}

// CoerceHeader converts a request header value. Header values are strings, so
// they follow the string coercion rules of t: String binds the value as-is,
// Timestamp parses it as RFC 3339, and every other type treats it as absent.
func CoerceHeader(t Type, key, value string, present, required bool) (Value, error) {
	if !present {
		return absent(t, key, required)
	}
	return Coerce(t, key, value, required)
}

func absent(t Type, key string, required bool) (Value, error) {
	if required {
		return Value{}, &ConversionError{Kind: MissingValue, Key: key}
	}
	return Value{Type: t, Null: true}, nil
}

func asInt(raw any) (int64, bool) {
	switch n := raw.(type) {
	case json.Number:
		// ParseInt rejects fractional and exponent forms, so only integral
		// JSON literals are accepted.
		i, err := strconv.ParseInt(n.String(), 10, 64)
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func asFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// asTime accepts two encodings: a number of Unix epoch seconds (fractional
// part truncated to nanoseconds, instant taken at UTC offset zero) or a
// strict RFC 3339 string. Any other shape is absent.
func asTime(key string, raw any) (time.Time, bool, error) {
	if f, ok := asFloat(raw); ok {
		sec := math.Floor(f)
		if sec < minEpochSeconds || sec > maxEpochSeconds {
			return time.Time{}, false, &ConversionError{Kind: TimestampTooLarge, Key: key}
		}
		nsec := int64((f - sec) * 1e9)
		return time.Unix(int64(sec), nsec).UTC(), true, nil
	}
	if s, ok := raw.(string); ok {
		tm, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, false, &ConversionError{Kind: TimestampFormat, Key: key, Err: err}
		}
		return tm, true, nil
	}
	return time.Time{}, false, nil
}
