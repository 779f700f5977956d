package bench

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ssargent/pagestore/pkg/serializer"
	"github.com/ssargent/pagestore/pkg/storage"
	"github.com/ssargent/pagestore/pkg/store"
)

// Target is a store under test. Put must be safe for concurrent use.
type Target interface {
	Put(data []byte) error
	Commit() error
	Close() error
}

// Factory opens fresh targets of one kind.
type Factory struct {
	Name string
	Open func() (Target, error)
}

type engineTarget struct {
	e *store.Engine
}

func (t engineTarget) Put(data []byte) error {
	_, err := store.Put(t.e, data, serializer.Bytes{})
	return err
}

func (t engineTarget) Commit() error { return t.e.Commit() }
func (t engineTarget) Close() error  { return t.e.Close() }

// EngineFactory opens engines from cfg. File-backed targets get a new file in
// dir per iteration, removed on close.
func EngineFactory(cfg store.Config, dir string) Factory {
	var seq atomic.Int64
	name := "memory"
	if !cfg.InMemory {
		name = "file"
		if cfg.UseMmap {
			name = "mmap"
		}
	}
	return Factory{
		Name: name,
		Open: func() (Target, error) {
			c := cfg
			if !c.InMemory {
				c.Path = filepath.Join(dir, fmt.Sprintf("bench-%d.db", seq.Add(1)))
				c.DeleteFilesAfterClose = true
			}
			e, err := store.Open(c)
			if err != nil {
				return nil, err
			}
			return engineTarget{e: e}, nil
		},
	}
}

type pebbleTarget struct {
	s   *storage.DefaultStorage
	dir string
}

func (t pebbleTarget) Put(data []byte) error {
	_, err := t.s.Create(data)
	return err
}

func (t pebbleTarget) Commit() error { return t.s.Commit() }

func (t pebbleTarget) Close() error {
	err := t.s.Close()
	if t.dir != "" {
		if rmErr := os.RemoveAll(t.dir); err == nil {
			err = rmErr
		}
	}
	return err
}

// PebbleFactory opens pebble baselines, in memory or under dir.
func PebbleFactory(dir string, inMemory bool) Factory {
	var seq atomic.Int64
	return Factory{
		Name: "pebble",
		Open: func() (Target, error) {
			path := filepath.Join(dir, fmt.Sprintf("pebble-%d", seq.Add(1)))
			s, err := storage.NewDefaultStorage(path, storage.Options{InMemory: inMemory})
			if err != nil {
				return nil, err
			}
			t := pebbleTarget{s: s}
			if !inMemory {
				t.dir = path
			}
			return t, nil
		},
	}
}
