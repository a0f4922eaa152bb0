//go:build !linux || !cgo

package udev

import (
	"fmt"
	"iter"
)

// Udev is unavailable in builds without cgo; use Class instead.
type Udev struct{}

func NewUdev() (*Udev, error) {
	return nil, fmt.Errorf("%w: built without cgo", ErrUnavailable)
}

func (*Udev) Enumerate(string) iter.Seq2[Device, error] {
	return func(yield func(Device, error) bool) {
		yield(nil, ErrUnavailable)
	}
}

func (*Udev) Close() error { return nil }
