package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cptspacemanspiff/power-status/internal/module"
)

const schema = `
CREATE TABLE IF NOT EXISTS battery_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	voltage_uv INTEGER NOT NULL,
	charge_uah INTEGER NOT NULL,
	charge_full_uah INTEGER NOT NULL,
	capacity_pct INTEGER NOT NULL,
	status TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_battery_ts ON battery_samples(timestamp);

CREATE TABLE IF NOT EXISTS backlight_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	device TEXT NOT NULL,
	brightness INTEGER NOT NULL,
	max_brightness INTEGER NOT NULL,
	percent INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_backlight_ts ON backlight_samples(timestamp);
`

// DB wraps a SQLite database of module readings.
type DB struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertBatterySample inserts a battery sample.
func (d *DB) InsertBatterySample(s module.BatterySample) error {
	_, err := d.db.Exec(
		"INSERT INTO battery_samples (timestamp, voltage_uv, charge_uah, charge_full_uah, capacity_pct, status) VALUES (?, ?, ?, ?, ?, ?)",
		s.Timestamp, s.VoltageUV, s.ChargeUAH, s.ChargeFullUAH, s.CapacityPct, s.Status,
	)
	return err
}

// InsertBacklightSample inserts a backlight sample.
func (d *DB) InsertBacklightSample(s module.BacklightSample) error {
	_, err := d.db.Exec(
		"INSERT INTO backlight_samples (timestamp, device, brightness, max_brightness, percent) VALUES (?, ?, ?, ?, ?)",
		s.Timestamp, s.Device, s.Brightness, s.MaxBrightness, s.Percent,
	)
	return err
}

// LatestBatterySample returns the most recent battery sample, or nil.
func (d *DB) LatestBatterySample() (*module.BatterySample, error) {
	row := d.db.QueryRow("SELECT timestamp, voltage_uv, charge_uah, charge_full_uah, capacity_pct, status FROM battery_samples ORDER BY timestamp DESC, id DESC LIMIT 1")
	var s module.BatterySample
	err := row.Scan(&s.Timestamp, &s.VoltageUV, &s.ChargeUAH, &s.ChargeFullUAH, &s.CapacityPct, &s.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LatestBacklightSample returns the most recent backlight sample, or nil.
func (d *DB) LatestBacklightSample() (*module.BacklightSample, error) {
	row := d.db.QueryRow("SELECT timestamp, device, brightness, max_brightness, percent FROM backlight_samples ORDER BY timestamp DESC, id DESC LIMIT 1")
	var s module.BacklightSample
	err := row.Scan(&s.Timestamp, &s.Device, &s.Brightness, &s.MaxBrightness, &s.Percent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// BatterySamplesInRange returns battery samples within the given time range.
func (d *DB) BatterySamplesInRange(from, to int64) ([]module.BatterySample, error) {
	rows, err := d.db.Query(
		"SELECT timestamp, voltage_uv, charge_uah, charge_full_uah, capacity_pct, status FROM battery_samples WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp",
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var samples []module.BatterySample
	for rows.Next() {
		var s module.BatterySample
		if err := rows.Scan(&s.Timestamp, &s.VoltageUV, &s.ChargeUAH, &s.ChargeFullUAH, &s.CapacityPct, &s.Status); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// BacklightSamplesInRange returns backlight samples within the given time range.
func (d *DB) BacklightSamplesInRange(from, to int64) ([]module.BacklightSample, error) {
	rows, err := d.db.Query(
		"SELECT timestamp, device, brightness, max_brightness, percent FROM backlight_samples WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp",
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var samples []module.BacklightSample
	for rows.Next() {
		var s module.BacklightSample
		if err := rows.Scan(&s.Timestamp, &s.Device, &s.Brightness, &s.MaxBrightness, &s.Percent); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
