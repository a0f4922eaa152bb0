package sleep

import (
	"io"
	"log/slog"
	"testing"

	"github.com/godbus/dbus/v5"
)

func newTestMonitor() *Monitor {
	return newMonitor(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pending(m *Monitor) int {
	n := 0
	for {
		select {
		case <-m.Wake():
			n++
		default:
			return n
		}
	}
}

func TestHandle_WakeOnResume(t *testing.T) {
	m := newTestMonitor()

	m.handle(&dbus.Signal{Name: prepareForSleep, Body: []any{true}})
	if n := pending(m); n != 0 {
		t.Fatalf("wakes after sleep start = %d, want 0", n)
	}

	m.handle(&dbus.Signal{Name: prepareForSleep, Body: []any{false}})
	if n := pending(m); n != 1 {
		t.Fatalf("wakes after resume = %d, want 1", n)
	}
}

func TestHandle_MergesPendingWakes(t *testing.T) {
	m := newTestMonitor()

	for i := 0; i < 3; i++ {
		m.handle(&dbus.Signal{Name: prepareForSleep, Body: []any{false}})
	}
	if n := pending(m); n != 1 {
		t.Fatalf("pending wakes = %d, want 1", n)
	}
}

func TestHandle_IgnoresOtherSignals(t *testing.T) {
	m := newTestMonitor()

	for _, sig := range []*dbus.Signal{
		nil,
		{Name: prepareForSleep},
		{Name: prepareForSleep, Body: []any{"false"}},
		{Name: prepareForShutdown, Body: []any{false}},
		{Name: "org.example.Other", Body: []any{false}},
	} {
		m.handle(sig)
	}
	if n := pending(m); n != 0 {
		t.Fatalf("pending wakes = %d, want 0", n)
	}
}
