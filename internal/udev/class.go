package udev

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/cptspacemanspiff/power-status/internal/sysfs"
)

// Class enumerates devices by listing <root>/class/<subsystem>.
type Class struct {
	root   string
	reader sysfs.AttrReader
}

// NewClass returns a Class rooted at a sysfs mount (normally "/sys").
func NewClass(root string, reader sysfs.AttrReader) (*Class, error) {
	classDir := filepath.Join(root, "class")
	info, err := os.Stat(classDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnavailable, classDir)
	}
	if reader == nil {
		reader = sysfs.FS{}
	}
	return &Class{root: root, reader: reader}, nil
}

func (c *Class) Enumerate(subsystem string) iter.Seq2[Device, error] {
	return func(yield func(Device, error) bool) {
		dir := filepath.Join(c.root, "class", subsystem)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			yield(nil, fmt.Errorf("list %s: %w", dir, err))
			return
		}
		for _, entry := range entries {
			dev := classDevice{
				name:   entry.Name(),
				path:   filepath.Join(dir, entry.Name()),
				reader: c.reader,
			}
			if !yield(dev, nil) {
				return
			}
		}
	}
}

func (c *Class) Close() error { return nil }

type classDevice struct {
	name   string
	path   string
	reader sysfs.AttrReader
}

func (d classDevice) Sysname() string { return d.name }

func (d classDevice) Attribute(name string) (string, error) {
	return d.reader.ReadValue(filepath.Join(d.path, name))
}
