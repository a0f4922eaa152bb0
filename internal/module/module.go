// Package module implements status-line modules. A module owns the handles it
// was built with and renders one text fragment per Print.
package module

import (
	"errors"
	"io"
	"math"

	"github.com/cptspacemanspiff/power-status/internal/sysfs"
)

// Module is what the bar holds. Print appends the module's fragment to w in a
// single write and writes nothing when it fails. Modules are not safe for
// concurrent use.
type Module interface {
	Name() string
	Print(w io.Writer) error
	Close() error
}

var (
	ErrConfig          = errors.New("invalid module configuration")
	ErrIO              = sysfs.ErrIO
	ErrParse           = sysfs.ErrParse
	ErrWatch           = errors.New("change notification registration failed")
	ErrEnumerationInit = errors.New("device enumeration unavailable")
	ErrNoDevicesFound  = errors.New("no devices found")
	ErrInvalidReading  = errors.New("reading cannot produce a percentage")
)

// Watcher registers change-notification watches; *watch.Inotify is the
// production implementation.
type Watcher interface {
	Add(path string) (io.Closer, error)
}

// percent returns round(100*num/den) clamped to [0, 255].
func percent(num, den float64) uint8 {
	p := math.Round(100 * num / den)
	switch {
	case p < 0:
		return 0
	case p > math.MaxUint8:
		return math.MaxUint8
	}
	return uint8(p)
}
