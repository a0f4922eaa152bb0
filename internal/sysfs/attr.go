// Package sysfs reads single-value attribute nodes such as the files under
// /sys/class/power_supply/BAT0.
package sysfs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// maxAttrSize bounds a single attribute read. Every scalar sysfs attribute
// fits comfortably.
const maxAttrSize = 128

var (
	// ErrIO reports an attribute node that could not be opened or read.
	ErrIO = errors.New("attribute read failed")
	// ErrParse reports attribute content that is not a base-10 unsigned integer.
	ErrParse = errors.New("attribute is not an unsigned integer")
)

// AttrReader reads attribute nodes. Modules receive one at construction so
// tests can substitute the filesystem.
type AttrReader interface {
	ReadValue(path string) (string, error)
	ReadInt(path string) (uint64, error)
}

// FS reads attributes straight from the filesystem on every call.
type FS struct{}

func (FS) ReadValue(path string) (string, error) { return ReadValue(path) }

func (FS) ReadInt(path string) (uint64, error) { return ReadInt(path) }

// ReadValue returns the content of the node at path with one trailing
// newline removed.
func ReadValue(path string) (string, error) {
	b, err := readAttr(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	return strings.TrimSuffix(string(b), "\n"), nil
}

// ReadInt reads the node at path and parses it as a base-10 unsigned integer.
func ReadInt(path string) (uint64, error) {
	s, err := ReadValue(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}
	return v, nil
}

// readAttr does a single raw read. Some drivers answer EAGAIN indefinitely,
// which would make os.ReadFile poll forever.
func readAttr(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b := make([]byte, maxAttrSize)
	n, err := unix.Read(int(f.Fd()), b)
	if err != nil {
		return nil, &os.PathError{Op: "read", Path: path, Err: err}
	}
	if n < 0 {
		return nil, &os.PathError{Op: "read", Path: path, Err: fmt.Errorf("negative byte count %d", n)}
	}
	return b[:n], nil
}
