package types_test

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/attolytics/attolytics/internal/types"
)

func num(s string) json.Number { return json.Number(s) }

func TestParse(t *testing.T) {
	for _, name := range []string{"bool", "i32", "i64", "f32", "f64", "string", "timestamp"} {
		if _, err := types.Parse(name); err != nil {
			t.Errorf("Parse(%q) returned error: %v", name, err)
		}
	}
	if _, err := types.Parse("uuid"); err == nil {
		t.Error("Parse(\"uuid\") should fail")
	}
	if _, err := types.Parse(""); err == nil {
		t.Error("Parse(\"\") should fail")
	}
}

func TestSQLType(t *testing.T) {
	tests := []struct {
		typ  types.Type
		want string
	}{
		{types.Bool, "BOOL"},
		{types.I32, "INT4"},
		{types.I64, "INT8"},
		{types.F32, "FLOAT4"},
		{types.F64, "FLOAT8"},
		{types.String, "VARCHAR"},
		{types.Timestamp, "TIMESTAMPTZ"},
	}
	for _, tt := range tests {
		if got := tt.typ.SQLType(); got != tt.want {
			t.Errorf("%s.SQLType() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name     string
		typ      types.Type
		raw      any
		required bool
		want     any // expected Bind() result; nil means expect an error
	}{
		{"bool true", types.Bool, true, true, true},
		{"bool false", types.Bool, false, true, false},
		{"bool from string is absent", types.Bool, "true", false, sql.NullBool{}},
		{"bool from number is absent", types.Bool, num("1"), false, sql.NullBool{}},

		{"i32 in range", types.I32, num("123"), true, int32(123)},
		{"i32 negative", types.I32, num("-7"), true, int32(-7)},
		{"i32 overflow is absent", types.I32, num("5000000000"), false, sql.NullInt32{}},
		{"i32 fractional is absent", types.I32, num("1.5"), false, sql.NullInt32{}},

		{"i64", types.I64, num("5000000000"), true, int64(5000000000)},
		{"i64 fractional is absent", types.I64, num("3.14"), false, sql.NullInt64{}},
		{"i64 exponent is absent", types.I64, num("1e3"), false, sql.NullInt64{}},

		{"f32", types.F32, num("1.5"), true, float32(1.5)},
		{"f64", types.F64, num("1.5"), true, 1.5},
		{"f64 from integral literal", types.F64, num("42"), true, 42.0},
		{"f64 from string is absent", types.F64, "1.5", false, sql.NullFloat64{}},

		{"string", types.String, "hello", true, "hello"},
		{"string from number is absent", types.String, num("1"), false, sql.NullString{}},

		{"timestamp from object is absent", types.Timestamp, map[string]any{}, false, sql.NullTime{}},
		{"timestamp from array is absent", types.Timestamp, []any{num("1")}, false, sql.NullTime{}},
		{"timestamp from bool is absent", types.Timestamp, true, false, sql.NullTime{}},

		{"optional null", types.String, nil, false, sql.NullString{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := types.Coerce(tt.typ, "col", tt.raw, tt.required)
			if err != nil {
				t.Fatalf("Coerce() error: %v", err)
			}
			if got := v.Bind(); got != tt.want {
				t.Errorf("Coerce().Bind() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCoerceRequiredMissing(t *testing.T) {
	for _, typ := range []types.Type{types.Bool, types.I32, types.I64, types.F32, types.F64, types.String, types.Timestamp} {
		_, err := types.Coerce(typ, "some_column", nil, true)
		var convErr *types.ConversionError
		if !errors.As(err, &convErr) {
			t.Fatalf("Coerce(%s, nil, required) error = %v, want ConversionError", typ, err)
		}
		if convErr.Kind != types.MissingValue {
			t.Errorf("Coerce(%s) kind = %v, want MissingValue", typ, convErr.Kind)
		}
		if convErr.Key != "some_column" {
			t.Errorf("Coerce(%s) key = %q, want %q", typ, convErr.Key, "some_column")
		}
	}
}

func TestCoerceRequiredWrongShape(t *testing.T) {
	// A wrong JSON shape counts as absent, so a required column still reports
	// MissingValue rather than a distinct error.
	_, err := types.Coerce(types.I32, "n", num("5000000000"), true)
	var convErr *types.ConversionError
	if !errors.As(err, &convErr) || convErr.Kind != types.MissingValue {
		t.Errorf("required i32 overflow: error = %v, want MissingValue", err)
	}
}

func TestCoerceTimestampNumeric(t *testing.T) {
	v, err := types.Coerce(types.Timestamp, "time", num("1700000000.5"), true)
	if err != nil {
		t.Fatalf("Coerce() error: %v", err)
	}
	tm := v.Bind().(time.Time)
	if tm.Unix() != 1700000000 {
		t.Errorf("seconds = %d, want 1700000000", tm.Unix())
	}
	if tm.Nanosecond() != 500000000 {
		t.Errorf("nanoseconds = %d, want 500000000", tm.Nanosecond())
	}
	if zone, offset := tm.Zone(); offset != 0 {
		t.Errorf("zone = %s offset = %d, want offset 0", zone, offset)
	}
}

func TestCoerceTimestampString(t *testing.T) {
	v, err := types.Coerce(types.Timestamp, "time", "2023-01-01T00:00:00Z", true)
	if err != nil {
		t.Fatalf("Coerce() error: %v", err)
	}
	tm := v.Bind().(time.Time)
	want := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	if !tm.Equal(want) {
		t.Errorf("time = %v, want %v", tm, want)
	}
}

func TestCoerceTimestampTooLarge(t *testing.T) {
	_, err := types.Coerce(types.Timestamp, "time", num("1000000000000000000"), false)
	var convErr *types.ConversionError
	if !errors.As(err, &convErr) || convErr.Kind != types.TimestampTooLarge {
		t.Errorf("error = %v, want TimestampTooLarge", err)
	}
}

func TestCoerceTimestampFormat(t *testing.T) {
	_, err := types.Coerce(types.Timestamp, "time", "yesterday at noon", false)
	var convErr *types.ConversionError
	if !errors.As(err, &convErr) || convErr.Kind != types.TimestampFormat {
		t.Fatalf("error = %v, want TimestampFormat", err)
	}
	if convErr.Unwrap() == nil {
		t.Error("TimestampFormat error should carry the parse detail")
	}
}

func TestCoerceHeader(t *testing.T) {
	v, err := types.CoerceHeader(types.String, "user_agent", "curl/8.0", true, true)
	if err != nil {
		t.Fatalf("CoerceHeader() error: %v", err)
	}
	if got := v.Bind(); got != "curl/8.0" {
		t.Errorf("Bind() = %#v, want %q", got, "curl/8.0")
	}

	// Missing optional header binds a typed null.
	v, err = types.CoerceHeader(types.String, "user_agent", "", false, false)
	if err != nil {
		t.Fatalf("CoerceHeader() error: %v", err)
	}
	if got := v.Bind(); got != (sql.NullString{}) {
		t.Errorf("Bind() = %#v, want NullString{}", got)
	}

	// Missing required header is a MissingValue.
	_, err = types.CoerceHeader(types.String, "user_agent", "", false, true)
	var convErr *types.ConversionError
	if !errors.As(err, &convErr) || convErr.Kind != types.MissingValue {
		t.Errorf("error = %v, want MissingValue", err)
	}

	// Timestamp headers follow the RFC 3339 string rule.
	v, err = types.CoerceHeader(types.Timestamp, "sent_at", "2023-01-01T00:00:00Z", true, true)
	if err != nil {
		t.Fatalf("CoerceHeader() error: %v", err)
	}
	if tm := v.Bind().(time.Time); tm.Unix() != 1672531200 {
		t.Errorf("time = %v, want 2023-01-01T00:00:00Z", tm)
	}
}
