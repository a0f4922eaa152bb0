//go:build linux && cgo

package udev

import (
	"fmt"
	"iter"

	gudev "github.com/jochenvg/go-udev"

	"github.com/cptspacemanspiff/power-status/internal/sysfs"
)

// Udev enumerates through libudev.
type Udev struct {
	u *gudev.Udev
}

// NewUdev acquires a libudev context and checks that it can build an
// enumeration.
func NewUdev() (*Udev, error) {
	u := &gudev.Udev{}
	e := u.NewEnumerate()
	if e == nil {
		return nil, fmt.Errorf("%w: udev_enumerate_new failed", ErrUnavailable)
	}
	if err := e.AddMatchSubsystem("backlight"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &Udev{u: u}, nil
}

func (d *Udev) Enumerate(subsystem string) iter.Seq2[Device, error] {
	return func(yield func(Device, error) bool) {
		if d.u == nil {
			yield(nil, fmt.Errorf("%w: context closed", ErrUnavailable))
			return
		}
		e := d.u.NewEnumerate()
		if err := e.AddMatchSubsystem(subsystem); err != nil {
			yield(nil, fmt.Errorf("match subsystem %s: %w", subsystem, err))
			return
		}
		devices, err := e.Devices()
		if err != nil {
			yield(nil, fmt.Errorf("enumerate %s: %w", subsystem, err))
			return
		}
		for _, dev := range devices {
			if !yield(libudevDevice{dev: dev}, nil) {
				return
			}
		}
	}
}

// Close drops the context; libudev frees it once the last device handle is
// collected.
func (d *Udev) Close() error {
	d.u = nil
	return nil
}

type libudevDevice struct {
	dev *gudev.Device
}

func (d libudevDevice) Sysname() string {
	return d.dev.Sysname()
}

func (d libudevDevice) Attribute(name string) (string, error) {
	// libudev strips the trailing newline and reports a missing attribute as
	// an empty value.
	v := d.dev.SysattrValue(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s/%s: attribute not present", sysfs.ErrIO, d.dev.Syspath(), name)
	}
	return v, nil
}
