//go:build !unix

package sys

import (
	"errors"
	"os"
)

var errNoMmap = errors.New("mmap not supported on this platform")

func MMap(file *os.File, length int64, writable bool) ([]byte, error) {
	return nil, errNoMmap
}

func MUnmap(dat []byte) error {
	return nil
}

func MSync(dat []byte) error {
	return nil
}

func Supported() bool {
	return false
}

func GetSysPageSize() int {
	return os.Getpagesize()
}
