// Package tuner decodes pitch results sent by the service and turns them
// into display values for a renderer.
package tuner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned by [Decode] for payloads that are not a JSON
// object of the expected shape.
var ErrMalformed = errors.New("tuner: malformed result")

// ErrAck is returned by [Decode] for the service's acknowledgement of a
// control message. Acks carry no pitch data and are not rendered.
var ErrAck = errors.New("tuner: acknowledgement")

// Result is one decoded pitch estimate. Absent fields are nil.
type Result struct {
	Note   *string
	Freq   *float64
	Cents  *float64
	Target *float64
	State  string
}

// HasPitch reports whether r carries a detected frequency. A frequency of
// zero or below means no pitch was found.
func (r Result) HasPitch() bool {
	return r.Freq != nil && *r.Freq > 0
}

// Decode parses one inbound message. Only a payload that is not a JSON
// object is malformed. A field of the wrong type is treated as absent, so the
// rest of the reading is still shown.
func Decode(data []byte) (Result, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Result{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	r := Result{
		Note:   field[string](fields, "note"),
		Freq:   field[float64](fields, "freq"),
		Cents:  field[float64](fields, "cents"),
		Target: field[float64](fields, "target"),
	}
	if r.Freq == nil && r.Note == nil && field[bool](fields, "ok") != nil {
		return Result{}, ErrAck
	}
	if st := field[string](fields, "state"); st != nil {
		r.State = *st
	}
	return r, nil
}

// field decodes fields[key] as T. Missing, null and mistyped values are nil.
func field[T any](fields map[string]json.RawMessage, key string) *T {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var v *T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
