package model

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// FieldKey names a typed payload slot within an Event.
type FieldKey uint8

const (
	FieldDescription FieldKey = iota
	FieldMemory
	FieldCPU
	FieldTimestamp
)

// FieldKeys lists every key in wire order.
var FieldKeys = []FieldKey{FieldDescription, FieldMemory, FieldCPU, FieldTimestamp}

var fieldKeyNames = map[FieldKey]string{
	FieldDescription: "description",
	FieldMemory:      "memory",
	FieldCPU:         "cpu",
	FieldTimestamp:   "timestamp",
}

func (k FieldKey) String() string {
	if name, ok := fieldKeyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", uint8(k))
}

// ParseFieldKey matches name case-insensitively against the known keys.
func ParseFieldKey(name string) (FieldKey, error) {
	lower := strings.ToLower(name)
	for k, n := range fieldKeyNames {
		if n == lower {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown field key %q", name)
}

// Value is a typed field value. The concrete type is fixed by the key:
// Description is text, Memory and CPU are float64, Timestamp is int64.
type Value interface {
	Key() FieldKey
	// Bytes returns the raw encoding: UTF-8 text for Description, 8
	// little-endian bytes for the numeric kinds.
	Bytes() []byte
}

type (
	Description string
	Memory      float64
	CPU         float64
	Timestamp   int64
)

func (Description) Key() FieldKey { return FieldDescription }
func (Memory) Key() FieldKey      { return FieldMemory }
func (CPU) Key() FieldKey         { return FieldCPU }
func (Timestamp) Key() FieldKey   { return FieldTimestamp }

func (v Description) Bytes() []byte { return []byte(v) }
func (v Memory) Bytes() []byte      { return float64Bytes(float64(v)) }
func (v CPU) Bytes() []byte         { return float64Bytes(float64(v)) }
func (v Timestamp) Bytes() []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(v))
}

func float64Bytes(f float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(f))
}

// ValueFromBytes rebuilds a typed value from its raw encoding.
func ValueFromBytes(key FieldKey, b []byte) (Value, error) {
	if key == FieldDescription {
		return Description(b), nil
	}
	if len(b) != 8 {
		return nil, fmt.Errorf("%s: want 8 bytes, got %d", key, len(b))
	}
	bits := binary.LittleEndian.Uint64(b)
	switch key {
	case FieldMemory:
		return Memory(math.Float64frombits(bits)), nil
	case FieldCPU:
		return CPU(math.Float64frombits(bits)), nil
	case FieldTimestamp:
		return Timestamp(int64(bits)), nil
	}
	return nil, fmt.Errorf("unknown field key %d", uint8(key))
}
