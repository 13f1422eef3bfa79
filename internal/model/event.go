package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies which producer category emitted an event. It is carried for
// routing and debugging; it is not enforced against the topic.
type Kind uint8

const (
	KindSocket        Kind = 0
	KindProcess       Kind = 1
	KindHardwareUsage Kind = 2
	KindTimestamp     Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindProcess:
		return "process"
	case KindHardwareUsage:
		return "hw_usage"
	case KindTimestamp:
		return "timestamp"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k <= KindTimestamp
}

// ParseKind parses the integer wire form of a Kind.
func ParseKind(s string) (Kind, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid kind %q", s)
	}
	k := Kind(n)
	if !k.Valid() {
		return 0, fmt.Errorf("unknown kind %d", n)
	}
	return k, nil
}

// Event is the unit published on the bus.
type Event struct {
	Title  string
	Kind   Kind
	Fields map[FieldKey]Value

	// Timestamp is wall-clock seconds at construction (or decode) time and is
	// used only for local TTL bookkeeping.
	Timestamp int64

	// ReceivedAt is the full-precision time behind Timestamp. It is not
	// carried on the wire or in JSON.
	ReceivedAt time.Time
}

// NewEvent builds an event stamped with the current time. A later value for
// the same key replaces an earlier one.
func NewEvent(title string, kind Kind, values ...Value) *Event {
	return NewEventAt(time.Now(), title, kind, values...)
}

// NewEventAt is NewEvent with an explicit construction time.
func NewEventAt(now time.Time, title string, kind Kind, values ...Value) *Event {
	e := &Event{
		Title:      title,
		Kind:       kind,
		Fields:     make(map[FieldKey]Value, len(values)),
		Timestamp:  now.Unix(),
		ReceivedAt: now,
	}
	for _, v := range values {
		e.Fields[v.Key()] = v
	}
	return e
}

// Description returns the Description field, if present.
func (e *Event) Description() (string, bool) {
	v, ok := e.Fields[FieldDescription].(Description)
	return string(v), ok
}

// CPU returns the Cpu field, if present.
func (e *Event) CPU() (float64, bool) {
	v, ok := e.Fields[FieldCPU].(CPU)
	return float64(v), ok
}

// Memory returns the Memory field, if present.
func (e *Event) Memory() (float64, bool) {
	v, ok := e.Fields[FieldMemory].(Memory)
	return float64(v), ok
}

// TimestampField returns the Timestamp field, if present. It is unrelated to
// e.Timestamp.
func (e *Event) TimestampField() (int64, bool) {
	v, ok := e.Fields[FieldTimestamp].(Timestamp)
	return int64(v), ok
}

// Age returns how long ago the event was stamped. Events without ReceivedAt
// (decoded from JSON) fall back to whole seconds of Timestamp.
func (e *Event) Age(now time.Time) time.Duration {
	if e.ReceivedAt.IsZero() {
		return time.Duration(now.Unix()-e.Timestamp) * time.Second
	}
	return now.Sub(e.ReceivedAt)
}

// MarshalText renders the kind by name so JSON snapshots stay readable.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for c := KindSocket; c <= KindTimestamp; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalJSON renders the event with typed field values keyed by field name.
func (e *Event) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		switch v := v.(type) {
		case Description:
			fields[k.String()] = string(v)
		case CPU:
			fields[k.String()] = float64(v)
		case Memory:
			fields[k.String()] = float64(v)
		case Timestamp:
			fields[k.String()] = int64(v)
		}
	}
	return json.Marshal(struct {
		Title     string         `json:"title"`
		Kind      Kind           `json:"kind"`
		Timestamp int64          `json:"timestamp"`
		Fields    map[string]any `json:"fields"`
	}{e.Title, e.Kind, e.Timestamp, fields})
}

// UnmarshalJSON is the inverse of MarshalJSON. Unknown field names are an
// error.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title     string                     `json:"title"`
		Kind      Kind                       `json:"kind"`
		Timestamp int64                      `json:"timestamp"`
		Fields    map[string]json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := make(map[FieldKey]Value, len(raw.Fields))
	for name, msg := range raw.Fields {
		key, err := ParseFieldKey(name)
		if err != nil {
			return err
		}
		v, err := unmarshalValue(key, msg)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		fields[key] = v
	}
	*e = Event{Title: raw.Title, Kind: raw.Kind, Fields: fields, Timestamp: raw.Timestamp}
	return nil
}

func unmarshalValue(key FieldKey, msg json.RawMessage) (Value, error) {
	switch key {
	case FieldDescription:
		var s string
		err := json.Unmarshal(msg, &s)
		return Description(s), err
	case FieldTimestamp:
		var n int64
		err := json.Unmarshal(msg, &n)
		return Timestamp(n), err
	}
	var f float64
	if err := json.Unmarshal(msg, &f); err != nil {
		return nil, err
	}
	if key == FieldCPU {
		return CPU(f), nil
	}
	return Memory(f), nil
}
