// Package storage is a pebble-backed record store keyed by KSUIDs. It is the
// baseline the page store is benchmarked against.
package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/segmentio/ksuid"
)

// ErrNotFound is returned for ids that were never written or were deleted.
var ErrNotFound = errors.New("storage: record not found")

// Options configures a DefaultStorage.
type Options struct {
	// InMemory keeps all files in a memory filesystem; Path is then a name
	// inside it.
	InMemory bool
	// Sync makes every write wait for the WAL.
	Sync bool
}

type DefaultStorage struct {
	db    *pebble.DB
	write *pebble.WriteOptions
}

func NewDefaultStorage(path string, opts Options) (*DefaultStorage, error) {
	po := &pebble.Options{}
	if opts.InMemory {
		po.FS = vfs.NewMem()
	}
	db, err := pebble.Open(path, po)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}

	write := pebble.NoSync
	if opts.Sync {
		write = pebble.Sync
	}
	return &DefaultStorage{db: db, write: write}, nil
}

func (s *DefaultStorage) Create(data []byte) (ksuid.KSUID, error) {
	id := ksuid.New()
	if err := s.db.Set(id.Bytes(), data, s.write); err != nil {
		return ksuid.Nil, err
	}
	return id, nil
}

// Read returns a copy of the value stored under id.
func (s *DefaultStorage) Read(id ksuid.KSUID) ([]byte, error) {
	data, closer, err := s.db.Get(id.Bytes())
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return append([]byte(nil), data...), nil
}

func (s *DefaultStorage) Update(id ksuid.KSUID, data []byte) error {
	if _, err := s.Read(id); err != nil {
		return err
	}
	return s.db.Set(id.Bytes(), data, s.write)
}

func (s *DefaultStorage) Delete(id ksuid.KSUID) error {
	if _, err := s.Read(id); err != nil {
		return err
	}
	return s.db.Delete(id.Bytes(), s.write)
}

// Commit syncs the WAL so every earlier write is durable.
func (s *DefaultStorage) Commit() error {
	return s.db.LogData(nil, pebble.Sync)
}

func (s *DefaultStorage) Close() error {
	return s.db.Close()
}
