package module

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cptspacemanspiff/power-status/internal/udev"
)

const backlightSubsystem = "backlight"

// BacklightOptions configures NewBacklight.
type BacklightOptions struct {
	// Open acquires the enumeration context. The module owns what it returns.
	Open func() (udev.Enumerator, error)
	Now  func() time.Time
}

// Backlight renders the brightness of the first backlight device it saw.
type Backlight struct {
	enum    udev.Enumerator
	devices DeviceCache
	now     func() time.Time
	last    *BacklightSample
}

// NewBacklight acquires an enumeration context and runs the first scan. It
// fails with ErrNoDevicesFound when the machine has no backlight.
func NewBacklight(opts BacklightOptions) (*Backlight, error) {
	if opts.Open == nil {
		return nil, fmt.Errorf("%w: no enumerator", ErrEnumerationInit)
	}
	enum, err := opts.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumerationInit, err)
	}

	b := &Backlight{enum: enum, now: opts.Now}
	if b.now == nil {
		b.now = time.Now
	}
	if err := b.scan(); err != nil {
		_ = enum.Close()
		return nil, err
	}
	if b.devices.Len() == 0 {
		_ = enum.Close()
		return nil, fmt.Errorf("%w: subsystem %s", ErrNoDevicesFound, backlightSubsystem)
	}
	return b, nil
}

func (b *Backlight) Name() string { return "backlight" }

// Print rescans and appends "💡   <percent>%" for the first-seen device.
func (b *Backlight) Print(w io.Writer) error {
	if err := b.scan(); err != nil {
		return err
	}
	dev, ok := b.devices.First()
	if !ok {
		return fmt.Errorf("%w: subsystem %s", ErrNoDevicesFound, backlightSubsystem)
	}
	if dev.Max == 0 {
		return fmt.Errorf("backlight %s: %w: max_brightness is 0", dev.Name, ErrInvalidReading)
	}

	pct := percent(float64(dev.Value), float64(dev.Max))
	if _, err := fmt.Fprintf(w, "💡   %d%%", pct); err != nil {
		return err
	}
	b.last = &BacklightSample{
		Timestamp:     b.now().Unix(),
		Device:        dev.Name,
		Brightness:    int64(dev.Value),
		MaxBrightness: int64(dev.Max),
		Percent:       int(pct),
	}
	return nil
}

// Devices returns the cached devices in first-seen order.
func (b *Backlight) Devices() []Device {
	return b.devices.Devices()
}

// LastSample returns the reading of the last successful Print, or nil.
func (b *Backlight) LastSample() *BacklightSample {
	return b.last
}

// Close releases the enumeration context. Later calls do nothing.
func (b *Backlight) Close() error {
	if b.enum == nil {
		return nil
	}
	enum := b.enum
	b.enum = nil
	return enum.Close()
}

type backlightReading struct {
	name       string
	value, max uint64
}

// scan reads every device before touching the cache: one bad device aborts
// the whole refresh. Devices missing from this scan keep their old entries.
func (b *Backlight) scan() error {
	if b.enum == nil {
		return fmt.Errorf("%w: module closed", ErrEnumerationInit)
	}

	var readings []backlightReading
	for dev, err := range b.enum.Enumerate(backlightSubsystem) {
		if err != nil {
			return fmt.Errorf("scan %s: %w", backlightSubsystem, err)
		}
		value, err := brightnessAttr(dev, "actual_brightness")
		if err != nil {
			return err
		}
		maxValue, err := brightnessAttr(dev, "max_brightness")
		if err != nil {
			return err
		}
		readings = append(readings, backlightReading{name: dev.Sysname(), value: value, max: maxValue})
	}

	for _, r := range readings {
		b.devices.Update(r.name, r.value, r.max)
	}
	return nil
}

func brightnessAttr(dev udev.Device, attr string) (uint64, error) {
	s, err := dev.Attribute(attr)
	if err != nil {
		return 0, fmt.Errorf("backlight %s: %w", dev.Sysname(), err)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: backlight %s %s: %w", ErrParse, dev.Sysname(), attr, err)
	}
	return v, nil
}
