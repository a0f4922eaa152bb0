package module

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cptspacemanspiff/power-status/internal/sysfs"
	"github.com/cptspacemanspiff/power-status/internal/udev"
)

type fakeDevice struct {
	name  string
	attrs map[string]string
}

func (d fakeDevice) Sysname() string { return d.name }

func (d fakeDevice) Attribute(name string) (string, error) {
	v, ok := d.attrs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s: attribute not present", sysfs.ErrIO, d.name, name)
	}
	return v, nil
}

func backlightDevice(name, value, maxValue string) fakeDevice {
	return fakeDevice{name: name, attrs: map[string]string{
		"actual_brightness": value,
		"max_brightness":    maxValue,
	}}
}

type fakeEnumerator struct {
	devices []fakeDevice
	err     error
	scans   int
	closed  int
}

func (f *fakeEnumerator) Enumerate(subsystem string) iter.Seq2[udev.Device, error] {
	f.scans++
	devices := append([]fakeDevice(nil), f.devices...)
	err := f.err
	return func(yield func(udev.Device, error) bool) {
		if subsystem != "backlight" {
			return
		}
		if err != nil {
			yield(nil, err)
			return
		}
		for _, d := range devices {
			if !yield(d, nil) {
				return
			}
		}
	}
}

func (f *fakeEnumerator) Close() error {
	f.closed++
	return nil
}

func openFake(f *fakeEnumerator) func() (udev.Enumerator, error) {
	return func() (udev.Enumerator, error) { return f, nil }
}

func newTestBacklight(t *testing.T, f *fakeEnumerator) *Backlight {
	t.Helper()

	b, err := NewBacklight(BacklightOptions{Open: openFake(f), Now: testNow})
	if err != nil {
		t.Fatalf("NewBacklight() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func printString(t *testing.T, m Module) string {
	t.Helper()

	var buf bytes.Buffer
	if err := m.Print(&buf); err != nil {
		t.Fatalf("%s Print() error = %v", m.Name(), err)
	}
	return buf.String()
}

func deviceNames(devices []Device) []string {
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	return names
}

func TestBacklightPrint_SysfsClass(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "class/backlight/intel_backlight")
	writeTestFile(t, filepath.Join(dir, "actual_brightness"), "300\n")
	writeTestFile(t, filepath.Join(dir, "max_brightness"), "400\n")

	b, err := NewBacklight(BacklightOptions{
		Open: func() (udev.Enumerator, error) { return udev.NewClass(root, nil) },
		Now:  testNow,
	})
	if err != nil {
		t.Fatalf("NewBacklight() error = %v", err)
	}
	defer b.Close()

	if got := printString(t, b); got != "💡   75%" {
		t.Fatalf("Print() wrote %q, want %q", got, "💡   75%")
	}
	want := BacklightSample{Timestamp: 1700000000, Device: "intel_backlight", Brightness: 300, MaxBrightness: 400, Percent: 75}
	if s := b.LastSample(); s == nil || *s != want {
		t.Fatalf("LastSample() = %+v, want %+v", s, want)
	}
}

func TestNewBacklight_NoDevices(t *testing.T) {
	f := &fakeEnumerator{}

	b, err := NewBacklight(BacklightOptions{Open: openFake(f)})
	if !errors.Is(err, ErrNoDevicesFound) {
		t.Fatalf("NewBacklight() error = %v, want ErrNoDevicesFound", err)
	}
	if b != nil {
		t.Fatal("NewBacklight() returned a module with no devices")
	}
	if f.closed != 1 {
		t.Fatalf("enumerator closed %d times, want 1", f.closed)
	}
}

func TestNewBacklight_EnumerationInitError(t *testing.T) {
	tests := []struct {
		name string
		open func() (udev.Enumerator, error)
	}{
		{name: "open fails", open: func() (udev.Enumerator, error) { return nil, udev.ErrUnavailable }},
		{name: "no opener", open: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBacklight(BacklightOptions{Open: tt.open})
			if !errors.Is(err, ErrEnumerationInit) {
				t.Fatalf("NewBacklight() error = %v, want ErrEnumerationInit", err)
			}
			if b != nil {
				t.Fatal("NewBacklight() returned a module on error")
			}
		})
	}
}

func TestNewBacklight_FirstScanFailure(t *testing.T) {
	f := &fakeEnumerator{devices: []fakeDevice{backlightDevice("intel_backlight", "abc", "400")}}

	_, err := NewBacklight(BacklightOptions{Open: openFake(f)})
	if !errors.Is(err, ErrParse) {
		t.Fatalf("NewBacklight() error = %v, want ErrParse", err)
	}
	if f.closed != 1 {
		t.Fatalf("enumerator closed %d times, want 1", f.closed)
	}
}

func TestBacklightPrint_Percentages(t *testing.T) {
	tests := []struct {
		value, max string
		want       string
	}{
		{"400", "400", "💡   100%"},
		{"0", "400", "💡   0%"},
		{"1", "3", "💡   33%"},
		{"2", "3", "💡   67%"},
		{"937", "937", "💡   100%"},
		{"500", "400", "💡   125%"},
	}
	for _, tt := range tests {
		t.Run(tt.value+"/"+tt.max, func(t *testing.T) {
			b := newTestBacklight(t, &fakeEnumerator{devices: []fakeDevice{backlightDevice("bl", tt.value, tt.max)}})
			if got := printString(t, b); got != tt.want {
				t.Fatalf("Print() wrote %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBacklightPrint_ZeroMax(t *testing.T) {
	b := newTestBacklight(t, &fakeEnumerator{devices: []fakeDevice{backlightDevice("bl", "0", "0")}})

	var buf bytes.Buffer
	if err := b.Print(&buf); !errors.Is(err, ErrInvalidReading) {
		t.Fatalf("Print() error = %v, want ErrInvalidReading", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("buffer = %q after failed Print, want empty", buf.String())
	}
}

func TestBacklightScan_Idempotent(t *testing.T) {
	f := &fakeEnumerator{devices: []fakeDevice{
		backlightDevice("intel_backlight", "300", "400"),
		backlightDevice("acpi_video0", "5", "10"),
	}}
	b := newTestBacklight(t, f)
	first := b.Devices()

	printString(t, b)
	printString(t, b)

	if got := b.Devices(); !reflect.DeepEqual(got, first) {
		t.Fatalf("Devices() after rescans = %+v, want %+v", got, first)
	}
	if f.scans != 3 {
		t.Fatalf("scans = %d, want 3 (init + two prints)", f.scans)
	}
}

func TestBacklightScan_KeepsVanishedDevices(t *testing.T) {
	f := &fakeEnumerator{devices: []fakeDevice{
		backlightDevice("intel_backlight", "300", "400"),
		backlightDevice("acpi_video0", "5", "10"),
	}}
	b := newTestBacklight(t, f)

	f.devices = []fakeDevice{backlightDevice("acpi_video0", "10", "10")}
	if got := printString(t, b); got != "💡   75%" {
		t.Fatalf("Print() wrote %q, want stale first device %q", got, "💡   75%")
	}

	got := b.Devices()
	want := []Device{
		{Name: "intel_backlight", Value: 300, Max: 400},
		{Name: "acpi_video0", Value: 10, Max: 10},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Devices() = %+v, want %+v", got, want)
	}
}

func TestBacklightScan_AppendsNewDevices(t *testing.T) {
	f := &fakeEnumerator{devices: []fakeDevice{backlightDevice("intel_backlight", "300", "400")}}
	b := newTestBacklight(t, f)

	f.devices = []fakeDevice{
		backlightDevice("acpi_video0", "5", "10"),
		backlightDevice("intel_backlight", "100", "400"),
	}
	if got := printString(t, b); got != "💡   25%" {
		t.Fatalf("Print() wrote %q, want %q", got, "💡   25%")
	}

	if got := deviceNames(b.Devices()); !reflect.DeepEqual(got, []string{"intel_backlight", "acpi_video0"}) {
		t.Fatalf("device order = %v, want [intel_backlight acpi_video0]", got)
	}
}

func TestBacklightScan_AllOrNothing(t *testing.T) {
	f := &fakeEnumerator{devices: []fakeDevice{
		backlightDevice("intel_backlight", "300", "400"),
		backlightDevice("acpi_video0", "5", "10"),
	}}
	b := newTestBacklight(t, f)
	before := b.Devices()

	tests := []struct {
		name    string
		devices []fakeDevice
		err     error
		want    error
	}{
		{
			name: "parse failure on second device",
			devices: []fakeDevice{
				backlightDevice("intel_backlight", "100", "400"),
				backlightDevice("acpi_video0", "five", "10"),
			},
			want: ErrParse,
		},
		{
			name: "missing attribute",
			devices: []fakeDevice{
				backlightDevice("intel_backlight", "100", "400"),
				{name: "acpi_video0", attrs: map[string]string{"actual_brightness": "5"}},
			},
			want: ErrIO,
		},
		{
			name: "enumeration failure",
			err:  fmt.Errorf("%w: netlink gone", udev.ErrUnavailable),
			want: udev.ErrUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.devices = tt.devices
			f.err = tt.err

			var buf bytes.Buffer
			if err := b.Print(&buf); !errors.Is(err, tt.want) {
				t.Fatalf("Print() error = %v, want %v", err, tt.want)
			}
			if buf.Len() != 0 {
				t.Fatalf("buffer = %q after failed Print, want empty", buf.String())
			}
			if got := b.Devices(); !reflect.DeepEqual(got, before) {
				t.Fatalf("Devices() = %+v after failed scan, want unchanged %+v", got, before)
			}
		})
	}
}

func TestBacklightClose_ReleasesContextOnce(t *testing.T) {
	f := &fakeEnumerator{devices: []fakeDevice{backlightDevice("bl", "1", "2")}}
	b, err := NewBacklight(BacklightOptions{Open: openFake(f)})
	if err != nil {
		t.Fatalf("NewBacklight() error = %v", err)
	}

	_ = b.Close()
	_ = b.Close()
	if f.closed != 1 {
		t.Fatalf("enumerator closed %d times, want 1", f.closed)
	}

	var buf bytes.Buffer
	if err := b.Print(&buf); err == nil {
		t.Fatal("Print() after Close() error = nil, want error")
	}
}
