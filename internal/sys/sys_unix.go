//go:build unix

package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// MMap maps length bytes of file into memory.
func MMap(file *os.File, length int64, writable bool) ([]byte, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	return unix.Mmap(int(file.Fd()), 0, int(length), prot, unix.MAP_SHARED)
}

// MUnmap releases a mapping created by MMap.
func MUnmap(dat []byte) error {
	if len(dat) == 0 {
		return nil
	}
	return unix.Munmap(dat)
}

// MSync flushes dirty pages of the mapping to the file.
func MSync(dat []byte) error {
	if len(dat) == 0 {
		return nil
	}
	return unix.Msync(dat, unix.MS_SYNC)
}

// Supported reports whether memory mapping is available.
func Supported() bool {
	return true
}

// GetSysPageSize returns the OS page size.
func GetSysPageSize() int {
	return unix.Getpagesize()
}
