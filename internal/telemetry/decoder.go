// Package telemetry holds the ingestion state of the irrigation node: datagram
// decoding, the sliding sample window, gauge derivation and idle tracking.
//
// Nothing in this package is safe for concurrent use. The ingestion loop owns
// every value built here.
package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field keys sent by the sensor node.
const (
	FieldSoil1       = "SOIL1"
	FieldSoil2       = "SOIL2"
	FieldAmbient     = "AMB"
	FieldRain        = "RAIN"
	FieldTank        = "TANK"
	FieldTemperature = "TEMP"
)

// Reading is one decoded datagram. Unknown keys are kept; absent keys read as 0.
type Reading map[string]int

// Int returns the value of key, or 0 if the datagram did not carry it.
func (r Reading) Int(key string) int {
	return r[key]
}

func (r Reading) Has(key string) bool {
	_, ok := r[key]
	return ok
}

func (r Reading) Soil1() int           { return r.Int(FieldSoil1) }
func (r Reading) Soil2() int           { return r.Int(FieldSoil2) }
func (r Reading) AmbientHumidity() int { return r.Int(FieldAmbient) }
func (r Reading) Tank() int            { return r.Int(FieldTank) }
func (r Reading) Temperature() int     { return r.Int(FieldTemperature) }

// Raining reports the rain flag. Any non-zero value means rain.
func (r Reading) Raining() bool { return r.Int(FieldRain) != 0 }

// DecodeReason classifies a DecodeError.
type DecodeReason int

const (
	InvalidInteger DecodeReason = iota + 1
)

func (r DecodeReason) String() string {
	switch r {
	case InvalidInteger:
		return "invalid integer"
	default:
		return fmt.Sprintf("DecodeReason(%d)", int(r))
	}
}

// ErrInvalidInteger matches any DecodeError with Reason InvalidInteger.
var ErrInvalidInteger = errors.New("invalid integer")

// DecodeError rejects a whole datagram because one field could not be parsed.
type DecodeError struct {
	Reason DecodeReason
	Field  string
	Value  string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode field %s=%q: %s", e.Field, e.Value, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	return target == ErrInvalidInteger && e.Reason == InvalidInteger
}

// Decode parses a line of the form "KEY1=VAL1;KEY2=VAL2;...".
//
// Segments without '=' and segments with an empty key are skipped. A segment
// is split on its first '='. Values are base-10 integers with an optional
// sign; the first value that does not parse fails the whole line.
func Decode(raw string) (Reading, error) {
	reading := make(Reading)
	for _, segment := range strings.Split(strings.TrimSpace(raw), ";") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, &DecodeError{Reason: InvalidInteger, Field: key, Value: value, Err: err}
		}
		reading[key] = n
	}
	return reading, nil
}
