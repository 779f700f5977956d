package volume

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/pagestore/internal/sys"
)

type opener func(t *testing.T) Volume

func volumeImplementations() map[string]opener {
	return map[string]opener{
		"memory": func(t *testing.T) Volume {
			return NewMemoryVolume(0)
		},
		"file": func(t *testing.T) Volume {
			v, err := OpenFile(filepath.Join(t.TempDir(), "vol.db"), false)
			require.NoError(t, err)
			return v
		},
		"mmap": func(t *testing.T) Volume {
			if !sys.Supported() {
				t.Skip("mmap not supported")
			}
			v, err := OpenMmap(filepath.Join(t.TempDir(), "vol.db"), false)
			require.NoError(t, err)
			return v
		},
	}
}

func TestVolume_ReadWriteGrow(t *testing.T) {
	for name, open := range volumeImplementations() {
		t.Run(name, func(t *testing.T) {
			v := open(t)
			defer v.Close()

			assert.Equal(t, int64(0), v.Size())

			// writes past the end are rejected until capacity is requested
			err := v.WriteAt([]byte("abc"), 0)
			assert.ErrorIs(t, err, ErrOutOfBounds)

			require.NoError(t, v.EnsureCapacity(4096))
			assert.GreaterOrEqual(t, v.Size(), int64(4096))

			require.NoError(t, v.WriteAt([]byte("hello"), 100))
			buf := make([]byte, 5)
			require.NoError(t, v.ReadAt(buf, 100))
			assert.Equal(t, []byte("hello"), buf)

			// growth keeps existing content
			require.NoError(t, v.EnsureCapacity(1<<20))
			require.NoError(t, v.ReadAt(buf, 100))
			assert.Equal(t, []byte("hello"), buf)

			require.NoError(t, v.Sync())
		})
	}
}

func TestVolume_Truncate(t *testing.T) {
	for name, open := range volumeImplementations() {
		t.Run(name, func(t *testing.T) {
			v := open(t)
			defer v.Close()

			require.NoError(t, v.EnsureCapacity(8192))
			require.NoError(t, v.WriteAt(bytes.Repeat([]byte{0xAB}, 16), 8000))

			require.NoError(t, v.Truncate(4096))
			assert.Equal(t, int64(4096), v.Size())
			assert.ErrorIs(t, v.ReadAt(make([]byte, 1), 5000), ErrOutOfBounds)

			// regrown space reads as zeros
			require.NoError(t, v.Truncate(8192))
			buf := make([]byte, 16)
			require.NoError(t, v.ReadAt(buf, 8000))
			assert.Equal(t, make([]byte, 16), buf)
		})
	}
}

func TestVolume_Closed(t *testing.T) {
	for name, open := range volumeImplementations() {
		t.Run(name, func(t *testing.T) {
			v := open(t)
			require.NoError(t, v.EnsureCapacity(64))
			require.NoError(t, v.Close())

			assert.Error(t, v.ReadAt(make([]byte, 1), 0))
			assert.Error(t, v.WriteAt([]byte{1}, 0))
		})
	}
}

func TestFileVolume_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vol.db")

	v, err := OpenFile(path, false)
	require.NoError(t, err)
	require.NoError(t, v.EnsureCapacity(1024))
	require.NoError(t, v.WriteAt([]byte("persisted"), 10))
	require.NoError(t, v.Sync())
	require.NoError(t, v.Close())

	ro, err := OpenFile(path, true)
	require.NoError(t, err)
	defer ro.Close()

	buf := make([]byte, 9)
	require.NoError(t, ro.ReadAt(buf, 10))
	assert.Equal(t, "persisted", string(buf))
	assert.ErrorIs(t, ro.WriteAt([]byte("x"), 0), ErrReadOnly)
	assert.ErrorIs(t, ro.EnsureCapacity(1<<20), ErrReadOnly)
}

func TestMmapVolume_Reopen(t *testing.T) {
	if !sys.Supported() {
		t.Skip("mmap not supported")
	}
	path := filepath.Join(t.TempDir(), "vol.db")

	v, err := OpenMmap(path, false)
	require.NoError(t, err)
	require.NoError(t, v.EnsureCapacity(4096))
	require.NoError(t, v.WriteAt([]byte("mapped"), 4000))
	require.NoError(t, v.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mapped", string(data[4000:4006]))
}

func TestChaosVolume(t *testing.T) {
	c := NewChaosVolume(NewMemoryVolume(1024))

	require.NoError(t, c.WriteAt([]byte{1}, 0))
	assert.Equal(t, int64(1), c.Writes())

	c.FailWrites(true)
	err := c.WriteAt([]byte{1}, 0)
	assert.True(t, errors.Is(err, ErrInjected))

	c.Reset()
	c.FailWritesAfter(2)
	require.NoError(t, c.WriteAt([]byte{1}, 0))
	require.NoError(t, c.WriteAt([]byte{1}, 1))
	assert.ErrorIs(t, c.WriteAt([]byte{1}, 2), ErrInjected)

	c.FailSync(true)
	assert.ErrorIs(t, c.Sync(), ErrInjected)
	c.FailSync(false)
	require.NoError(t, c.Sync())
	assert.Equal(t, int64(1), c.Syncs())

	c.FailSyncAfter(1)
	require.NoError(t, c.Sync())
	assert.ErrorIs(t, c.Sync(), ErrInjected)
	assert.ErrorIs(t, c.Sync(), ErrInjected)
	c.Reset()
	require.NoError(t, c.Sync())
	assert.Equal(t, int64(3), c.Syncs())

	c.FailGrow(true)
	assert.ErrorIs(t, c.EnsureCapacity(1<<20), ErrInjected)
	// requests within the current size never fail
	require.NoError(t, c.EnsureCapacity(512))

	c.FailReads(true)
	assert.ErrorIs(t, c.ReadAt(make([]byte, 1), 0), ErrInjected)
}

func TestGrowSize(t *testing.T) {
	assert.Equal(t, int64(4096), growSize(0, 4096))
	assert.Equal(t, int64(8192), growSize(4096, 5000))
	assert.Equal(t, int64(2*gib+gib), growSize(2*gib, 2*gib+1))
}
