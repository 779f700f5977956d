// Package serializer converts typed values to and from the opaque byte
// payloads stored by the engine.
package serializer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

var (
	_ Serializer[[]byte] = Bytes{}
	_ Serializer[int64]  = Int64{}
	_ Serializer[string] = String{}
	_ Serializer[any]    = JSON[any]{}
)

// Serializer turns values of T into bytes and back.
type Serializer[T any] interface {
	Serialize(v T) ([]byte, error)
	Deserialize(data []byte) (T, error)
	// FixedSize reports the serialized length when every value of T encodes
	// to the same number of bytes.
	FixedSize() (int, bool)
}

// Bytes stores byte slices verbatim, without a length prefix.
type Bytes struct{}

func (Bytes) Serialize(v []byte) ([]byte, error) {
	return v, nil
}

func (Bytes) Deserialize(data []byte) ([]byte, error) {
	if data == nil {
		return []byte{}, nil
	}
	return data, nil
}

func (Bytes) FixedSize() (int, bool) {
	return 0, false
}

// Int64 stores an int64 as 8 big-endian bytes.
type Int64 struct{}

func (Int64) Serialize(v int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, uint64(v)), nil
}

func (Int64) Deserialize(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("int64 payload must be 8 bytes, got %d", len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

func (Int64) FixedSize() (int, bool) {
	return 8, true
}

// String stores the UTF-8 bytes of a string.
type String struct{}

func (String) Serialize(v string) ([]byte, error) {
	return []byte(v), nil
}

func (String) Deserialize(data []byte) (string, error) {
	return string(data), nil
}

func (String) FixedSize() (int, bool) {
	return 0, false
}

// JSON encodes values with encoding/json.
type JSON[T any] struct{}

func (JSON[T]) Serialize(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON[T]) Deserialize(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

func (JSON[T]) FixedSize() (int, bool) {
	return 0, false
}
