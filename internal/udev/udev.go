// Package udev enumerates devices by subsystem and exposes their attributes.
// Udev talks to libudev; Class walks /sys/class directly.
package udev

import (
	"errors"
	"iter"
)

// ErrUnavailable reports that the enumeration backend cannot be used.
var ErrUnavailable = errors.New("device enumeration unavailable")

// Device is a handle to one enumerated device.
type Device interface {
	// Sysname is the stable short name, e.g. "intel_backlight".
	Sysname() string
	// Attribute returns the named sysfs attribute with the trailing newline
	// removed.
	Attribute(name string) (string, error)
}

// Enumerator lists the devices of a subsystem. Every call to Enumerate starts
// a fresh scan; the returned sequence is not restartable.
type Enumerator interface {
	Enumerate(subsystem string) iter.Seq2[Device, error]
	Close() error
}
