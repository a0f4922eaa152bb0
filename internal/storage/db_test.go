package storage

import (
	"path/filepath"
	"testing"

	"github.com/cptspacemanspiff/power-status/internal/module"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	})

	return db
}

func TestBatteryRoundTrip(t *testing.T) {
	db := openTestDB(t)

	s1 := module.BatterySample{Timestamp: 10, VoltageUV: 12000000, ChargeUAH: 2500000, ChargeFullUAH: 3000000, CapacityPct: 83, Status: "Discharging"}
	s2 := module.BatterySample{Timestamp: 20, VoltageUV: 12100000, ChargeUAH: 2600000, ChargeFullUAH: 3000000, CapacityPct: 87, Status: "Charging"}
	if err := db.InsertBatterySample(s1); err != nil {
		t.Fatalf("InsertBatterySample(s1) error = %v", err)
	}
	if err := db.InsertBatterySample(s2); err != nil {
		t.Fatalf("InsertBatterySample(s2) error = %v", err)
	}

	latest, err := db.LatestBatterySample()
	if err != nil {
		t.Fatalf("LatestBatterySample() error = %v", err)
	}
	if latest == nil || *latest != s2 {
		t.Fatalf("LatestBatterySample() = %#v, want %#v", latest, s2)
	}

	ranged, err := db.BatterySamplesInRange(10, 15)
	if err != nil {
		t.Fatalf("BatterySamplesInRange() error = %v", err)
	}
	if len(ranged) != 1 || ranged[0] != s1 {
		t.Fatalf("BatterySamplesInRange() = %#v, want [%#v]", ranged, s1)
	}
}

func TestBacklightRoundTrip(t *testing.T) {
	db := openTestDB(t)

	s1 := module.BacklightSample{Timestamp: 11, Device: "intel_backlight", Brightness: 300, MaxBrightness: 400, Percent: 75}
	s2 := module.BacklightSample{Timestamp: 21, Device: "intel_backlight", Brightness: 400, MaxBrightness: 400, Percent: 100}
	if err := db.InsertBacklightSample(s1); err != nil {
		t.Fatalf("InsertBacklightSample(s1) error = %v", err)
	}
	if err := db.InsertBacklightSample(s2); err != nil {
		t.Fatalf("InsertBacklightSample(s2) error = %v", err)
	}

	latest, err := db.LatestBacklightSample()
	if err != nil {
		t.Fatalf("LatestBacklightSample() error = %v", err)
	}
	if latest == nil || *latest != s2 {
		t.Fatalf("LatestBacklightSample() = %#v, want %#v", latest, s2)
	}

	ranged, err := db.BacklightSamplesInRange(0, 100)
	if err != nil {
		t.Fatalf("BacklightSamplesInRange() error = %v", err)
	}
	if len(ranged) != 2 || ranged[0] != s1 || ranged[1] != s2 {
		t.Fatalf("BacklightSamplesInRange() = %#v, want [s1 s2]", ranged)
	}
}

func TestLatest_EmptyTables(t *testing.T) {
	db := openTestDB(t)

	bat, err := db.LatestBatterySample()
	if err != nil || bat != nil {
		t.Fatalf("LatestBatterySample() = %#v, %v; want nil, nil", bat, err)
	}
	bl, err := db.LatestBacklightSample()
	if err != nil || bl != nil {
		t.Fatalf("LatestBacklightSample() = %#v, %v; want nil, nil", bl, err)
	}
}
