package module

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cptspacemanspiff/power-status/internal/sysfs"
)

const (
	powerSupplyClass = "class/power_supply"
	// batteryEventFile is read by upower and friends whenever the kernel
	// reports a power-supply change, so access to it is the refresh trigger.
	batteryEventFile = "uevent"
)

// BatteryOptions configures NewBattery.
type BatteryOptions struct {
	// Device is the name under /sys/class/power_supply, e.g. "BAT0".
	Device string
	// SysfsRoot defaults to "/sys".
	SysfsRoot string
	Reader    sysfs.AttrReader
	Watcher   Watcher
	Now       func() time.Time
}

// Battery renders the charge of one power supply.
type Battery struct {
	name   string
	path   string
	reader sysfs.AttrReader
	watch  io.Closer
	now    func() time.Time
	last   *BatterySample
}

// NewBattery resolves the device and registers a watch on its event file.
func NewBattery(opts BatteryOptions) (*Battery, error) {
	name := strings.TrimSpace(opts.Device)
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return nil, fmt.Errorf("%w: battery device %q", ErrConfig, opts.Device)
	}
	root := opts.SysfsRoot
	if root == "" {
		root = "/sys"
	}

	path := filepath.Join(root, powerSupplyClass, name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: battery %s: %w", ErrConfig, name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: battery %s: %s is not a device directory", ErrConfig, name, path)
	}

	if opts.Watcher == nil {
		return nil, fmt.Errorf("%w: battery %s: no watcher", ErrWatch, name)
	}
	w, err := opts.Watcher.Add(filepath.Join(path, batteryEventFile))
	if err != nil {
		return nil, fmt.Errorf("%w: battery %s: %w", ErrWatch, name, err)
	}

	b := &Battery{
		name:   name,
		path:   path,
		reader: opts.Reader,
		watch:  w,
		now:    opts.Now,
	}
	if b.reader == nil {
		b.reader = sysfs.FS{}
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b, nil
}

func (b *Battery) Name() string { return "battery" }

// Path returns the power-supply directory.
func (b *Battery) Path() string { return b.path }

// Print appends "<icon>   <capacity>%".
func (b *Battery) Print(w io.Writer) error {
	s, err := b.read()
	if err != nil {
		return fmt.Errorf("battery %s: %w", b.name, err)
	}
	if _, err := fmt.Fprintf(w, "%s   %d%%", statusIcon(s.Status), s.CapacityPct); err != nil {
		return err
	}
	b.last = &s
	return nil
}

// LastSample returns the reading of the last successful Print, or nil.
func (b *Battery) LastSample() *BatterySample {
	return b.last
}

// Close releases the watch. Later calls do nothing.
func (b *Battery) Close() error {
	if b.watch == nil {
		return nil
	}
	w := b.watch
	b.watch = nil
	return w.Close()
}

func (b *Battery) read() (BatterySample, error) {
	voltage, err := b.reader.ReadInt(b.attr("voltage_now"))
	if err != nil {
		return BatterySample{}, err
	}
	charge, err := b.reader.ReadInt(b.attr("charge_now"))
	if err != nil {
		return BatterySample{}, err
	}
	chargeFull, err := b.reader.ReadInt(b.attr("charge_full"))
	if err != nil {
		return BatterySample{}, err
	}
	capacity, err := batteryCapacity(voltage, charge, chargeFull)
	if err != nil {
		return BatterySample{}, err
	}
	status, err := b.reader.ReadValue(b.attr("status"))
	if err != nil {
		return BatterySample{}, err
	}

	return BatterySample{
		Timestamp:     b.now().Unix(),
		VoltageUV:     int64(voltage),
		ChargeUAH:     int64(charge),
		ChargeFullUAH: int64(chargeFull),
		CapacityPct:   int(capacity),
		Status:        status,
	}, nil
}

func (b *Battery) attr(name string) string {
	return filepath.Join(b.path, name)
}

// batteryCapacity converts µAh·µV to a µWh-scale energy in integer arithmetic
// before dividing, so the widened product never reaches float64.
func batteryCapacity(voltageUV, chargeUAH, chargeFullUAH uint64) (uint8, error) {
	energy := chargeUAH * voltageUV / 1_000_000
	energyFull := chargeFullUAH * voltageUV / 1_000_000
	if energyFull == 0 {
		return 0, fmt.Errorf("%w: zero full-charge energy (voltage %d µV, charge_full %d µAh)", ErrInvalidReading, voltageUV, chargeFullUAH)
	}
	return percent(float64(energy), float64(energyFull)), nil
}

func statusIcon(status string) string {
	switch status {
	case "Discharging":
		return "🔋"
	case "Charging":
		return "🔌"
	case "Full":
		return "⚡"
	default:
		return "❓"
	}
}
