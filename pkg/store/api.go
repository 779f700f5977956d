package store

import (
	"fmt"

	"github.com/ssargent/pagestore/pkg/serializer"
)

// Put serializes v and stores it as a new record.
func Put[T any](e *Engine, v T, s serializer.Serializer[T]) (RecordID, error) {
	data, err := encode(v, s)
	if err != nil {
		return 0, err
	}
	return e.PutBytes(data)
}

// Get loads and deserializes the record id.
func Get[T any](e *Engine, id RecordID, s serializer.Serializer[T]) (T, error) {
	var zero T
	data, err := e.GetBytes(id)
	if err != nil {
		return zero, err
	}
	v, err := s.Deserialize(data)
	if err != nil {
		return zero, fmt.Errorf("deserialize record %d: %w", id, err)
	}
	return v, nil
}

// Update replaces the value of record id.
func Update[T any](e *Engine, id RecordID, v T, s serializer.Serializer[T]) error {
	data, err := encode(v, s)
	if err != nil {
		return err
	}
	return e.UpdateBytes(id, data)
}

// CompareAndSwap replaces the value of id with replacement when its current
// value serializes to the same bytes as expected. A nil pointer stands for the
// null record on either side.
func CompareAndSwap[T any](e *Engine, id RecordID, expected, replacement *T, s serializer.Serializer[T]) (bool, error) {
	var exp, rep []byte
	var err error
	if expected != nil {
		if exp, err = encode(*expected, s); err != nil {
			return false, err
		}
	}
	if replacement != nil {
		if rep, err = encode(*replacement, s); err != nil {
			return false, err
		}
	}
	return e.CompareAndSwapBytes(id, exp, rep)
}

func encode[T any](v T, s serializer.Serializer[T]) ([]byte, error) {
	data, err := s.Serialize(v)
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	if size, fixed := s.FixedSize(); fixed && len(data) != size {
		return nil, fmt.Errorf("serializer produced %d bytes, declared fixed size %d", len(data), size)
	}
	if data == nil {
		// nil is reserved for the null record
		data = []byte{}
	}
	return data, nil
}
