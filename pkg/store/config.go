package store

import (
	"fmt"
	"io"
	"log/slog"
	"math/bits"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssargent/pagestore/internal/sys"
	"github.com/ssargent/pagestore/pkg/volume"
)

const (
	// DefaultPageSize is used when Config.PageSize is zero.
	DefaultPageSize = 1 << 20
	// DefaultConcurrencyShift gives 8 shards.
	DefaultConcurrencyShift = 3

	MinPageSize         = 4 << 10
	MaxPageSize         = 256 << 20
	MaxConcurrencyShift = 10
)

// Config holds the construction-time settings of an Engine. It is copied on
// Open and never changes afterwards.
type Config struct {
	// Path of the backing file. Ignored when InMemory or Volume is set.
	Path string
	// InMemory keeps the whole store in a heap buffer.
	InMemory bool
	// Volume is used as-is when set. The engine does not close it.
	Volume volume.Volume
	// UseMmap memory-maps Path instead of using positional file I/O.
	UseMmap bool

	// Checksum stores an xxhash64 of every payload and verifies it on read.
	Checksum bool
	// StartSize preallocates the volume on format.
	StartSize int64
	// ReadOnly rejects every mutation and skips the final commit on Close.
	ReadOnly bool

	// ConcurrencyShift sets the shard count to 1<<ConcurrencyShift.
	ConcurrencyShift uint
	// PageSize is the allocation unit, a power of two.
	PageSize int
	// StartOffset reserves bytes at the start of the volume for the caller.
	StartOffset int64

	// DeleteFilesAfterClose removes Path after Close.
	DeleteFilesAfterClose bool
	// CompactOnClose truncates trailing free pages after the final commit.
	CompactOnClose bool

	// Logger receives engine events. Nil discards them.
	Logger *slog.Logger
	// Registerer receives the engine collectors. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// DefaultConfig returns an in-memory configuration with checksums enabled.
func DefaultConfig() Config {
	return Config{
		InMemory:         true,
		Checksum:         true,
		ConcurrencyShift: DefaultConcurrencyShift,
		PageSize:         DefaultPageSize,
	}
}

// FileConfig returns the default configuration backed by the file at path.
func FileConfig(path string) Config {
	cfg := DefaultConfig()
	cfg.InMemory = false
	cfg.Path = path
	return cfg
}

// Validate checks the configuration and fills zero values with defaults.
func (c *Config) Validate() error {
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if c.Volume == nil && !c.InMemory && c.Path == "" {
		return fmt.Errorf("%w: one of Path, InMemory or Volume is required", ErrInvalidConfig)
	}
	if c.PageSize < MinPageSize || c.PageSize > MaxPageSize || bits.OnesCount(uint(c.PageSize)) != 1 {
		return fmt.Errorf("%w: page size %d must be a power of two between %d and %d",
			ErrInvalidConfig, c.PageSize, MinPageSize, MaxPageSize)
	}
	if c.UseMmap && !c.InMemory && c.Volume == nil {
		if err := checkMmapPageSize(c.PageSize, sys.GetSysPageSize()); err != nil {
			return err
		}
	}
	if c.ConcurrencyShift > MaxConcurrencyShift {
		return fmt.Errorf("%w: concurrency shift %d exceeds %d", ErrInvalidConfig, c.ConcurrencyShift, MaxConcurrencyShift)
	}
	if c.StartOffset < 0 || c.StartSize < 0 {
		return fmt.Errorf("%w: negative start offset or size", ErrInvalidConfig)
	}
	if c.DeleteFilesAfterClose && (c.Path == "" || c.InMemory || c.Volume != nil) {
		return fmt.Errorf("%w: DeleteFilesAfterClose needs a file path", ErrInvalidConfig)
	}
	if c.ReadOnly && c.InMemory && c.Volume == nil {
		return fmt.Errorf("%w: a new in-memory store cannot be read-only", ErrInvalidConfig)
	}
	return nil
}

// checkMmapPageSize requires store pages to cover whole OS pages.
func checkMmapPageSize(pageSize, osPageSize int) error {
	if osPageSize > 0 && pageSize%osPageSize != 0 {
		return fmt.Errorf("%w: page size %d is not a multiple of the OS page size %d",
			ErrInvalidConfig, pageSize, osPageSize)
	}
	return nil
}

func (c *Config) shards() int {
	return 1 << c.ConcurrencyShift
}

func (c *Config) openVolume() (v volume.Volume, owned bool, err error) {
	switch {
	case c.Volume != nil:
		return c.Volume, false, nil
	case c.InMemory:
		return volume.NewMemoryVolume(c.StartSize), true, nil
	case c.UseMmap:
		v, err = volume.OpenMmap(c.Path, c.ReadOnly)
	default:
		v, err = volume.OpenFile(c.Path, c.ReadOnly)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrVolumeIO, err)
	}
	return v, true, nil
}
