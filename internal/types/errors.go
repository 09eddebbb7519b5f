package types

import "fmt"

// ErrorKind classifies a coercion failure.
type ErrorKind int

const (
	// MissingValue: a required column had no usable value.
	MissingValue ErrorKind = iota
	// TimestampFormat: a timestamp string was not valid RFC 3339.
	TimestampFormat
	// TimestampTooLarge: a numeric timestamp fell outside the storable range.
	TimestampTooLarge
)

// ConversionError reports a value that could not be coerced to its column
// type. Key is the column name.
type ConversionError struct {
	Kind ErrorKind
	Key  string
	Err  error // parse detail for TimestampFormat
}

func (e *ConversionError) Error() string {
	switch e.Kind {
	case MissingValue:
		return fmt.Sprintf("required value %q was omitted", e.Key)
	case TimestampFormat:
		return fmt.Sprintf("could not parse timestamp %q: %v", e.Key, e.Err)
	case TimestampTooLarge:
		return fmt.Sprintf("could not parse timestamp %q: value out of range", e.Key)
	}
	return fmt.Sprintf("could not convert value %q", e.Key)
}

func (e *ConversionError) Unwrap() error { return e.Err }
