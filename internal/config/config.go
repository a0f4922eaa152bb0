package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	minIntervalSeconds      = 1
	maxIntervalSeconds      = 3600
	minRetentionDays        = 1
	maxRetentionDays        = 3650
	minCleanupIntervalHours = 1
	maxCleanupIntervalHours = 720
	maxMQTTQOS              = 2
)

const (
	EnumeratorUdev  = "udev"
	EnumeratorSysfs = "sysfs"
)

type Config struct {
	Bar       BarConfig       `toml:"bar"`
	Battery   BatteryConfig   `toml:"battery"`
	Backlight BacklightConfig `toml:"backlight"`
	Sysfs     SysfsConfig     `toml:"sysfs"`
	Storage   StorageConfig   `toml:"storage"`
	DBus      DBusConfig      `toml:"dbus"`
	MQTT      MQTTConfig      `toml:"mqtt"`
}

type BarConfig struct {
	IntervalSeconds int    `toml:"interval_seconds"`
	Separator       string `toml:"separator"`
}

type BatteryConfig struct {
	Enabled bool   `toml:"enabled"`
	Device  string `toml:"device"`
}

type BacklightConfig struct {
	Enabled    bool   `toml:"enabled"`
	Enumerator string `toml:"enumerator"`
}

type SysfsConfig struct {
	Root string `toml:"root"`
}

type StorageConfig struct {
	Enabled              bool   `toml:"enabled"`
	DBPath               string `toml:"db_path"`
	RetentionDays        int    `toml:"retention_days"`
	CleanupIntervalHours int    `toml:"cleanup_interval_hours"`
}

type DBusConfig struct {
	Enabled bool `toml:"enabled"`
}

type MQTTConfig struct {
	Enabled     bool   `toml:"enabled"`
	Broker      string `toml:"broker"`
	ClientID    string `toml:"client_id"`
	TopicPrefix string `toml:"topic_prefix"`
	QOS         byte   `toml:"qos"`
	Retained    bool   `toml:"retained"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
}

func DefaultConfig() *Config {
	return &Config{
		Bar: BarConfig{
			IntervalSeconds: 5,
			Separator:       " | ",
		},
		Battery: BatteryConfig{
			Enabled: true,
			Device:  "BAT0",
		},
		Backlight: BacklightConfig{
			Enabled:    true,
			Enumerator: EnumeratorUdev,
		},
		Sysfs: SysfsConfig{
			Root: "/sys",
		},
		Storage: StorageConfig{
			Enabled:              false,
			DBPath:               "/var/lib/power-status/data.db",
			RetentionDays:        30,
			CleanupIntervalHours: 24,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "power-status",
			TopicPrefix: "power-status",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return NormalizeAndValidate(cfg)
}

func NormalizeAndValidate(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	sanitized := *cfg

	var err error
	sanitized.Sysfs.Root, err = sanitizePath("sysfs.root", sanitized.Sysfs.Root)
	if err != nil {
		return nil, err
	}
	if err := validateRange("bar.interval_seconds", sanitized.Bar.IntervalSeconds, minIntervalSeconds, maxIntervalSeconds); err != nil {
		return nil, err
	}

	if sanitized.Battery.Enabled {
		sanitized.Battery.Device = strings.TrimSpace(sanitized.Battery.Device)
		if sanitized.Battery.Device == "" {
			return nil, fmt.Errorf("battery.device must not be empty")
		}
		if strings.ContainsRune(sanitized.Battery.Device, '/') {
			return nil, fmt.Errorf("battery.device must be a device name, got %q", sanitized.Battery.Device)
		}
	}

	switch strings.TrimSpace(sanitized.Backlight.Enumerator) {
	case "", EnumeratorUdev:
		sanitized.Backlight.Enumerator = EnumeratorUdev
	case EnumeratorSysfs:
		sanitized.Backlight.Enumerator = EnumeratorSysfs
	default:
		return nil, fmt.Errorf("backlight.enumerator must be %q or %q, got %q", EnumeratorUdev, EnumeratorSysfs, sanitized.Backlight.Enumerator)
	}

	if sanitized.Storage.Enabled {
		sanitized.Storage.DBPath, err = sanitizePath("storage.db_path", sanitized.Storage.DBPath)
		if err != nil {
			return nil, err
		}
		if err := validateRange("storage.retention_days", sanitized.Storage.RetentionDays, minRetentionDays, maxRetentionDays); err != nil {
			return nil, err
		}
		if err := validateRange("storage.cleanup_interval_hours", sanitized.Storage.CleanupIntervalHours, minCleanupIntervalHours, maxCleanupIntervalHours); err != nil {
			return nil, err
		}
	}

	if sanitized.MQTT.Enabled {
		if strings.TrimSpace(sanitized.MQTT.Broker) == "" {
			return nil, fmt.Errorf("mqtt.broker must not be empty")
		}
		if strings.TrimSpace(sanitized.MQTT.ClientID) == "" {
			return nil, fmt.Errorf("mqtt.client_id must not be empty")
		}
		sanitized.MQTT.TopicPrefix = strings.Trim(strings.TrimSpace(sanitized.MQTT.TopicPrefix), "/")
		if sanitized.MQTT.TopicPrefix == "" {
			return nil, fmt.Errorf("mqtt.topic_prefix must not be empty")
		}
		if sanitized.MQTT.QOS > maxMQTTQOS {
			return nil, fmt.Errorf("mqtt.qos must be between 0 and %d, got %d", maxMQTTQOS, sanitized.MQTT.QOS)
		}
	}

	return &sanitized, nil
}

func Save(path string, cfg *Config) error {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return fmt.Errorf("config path must not be empty")
	}

	sanitized, err := NormalizeAndValidate(cfg)
	if err != nil {
		return err
	}

	var data bytes.Buffer
	if err := toml.NewEncoder(&data).Encode(sanitized); err != nil {
		return fmt.Errorf("encode config TOML: %w", err)
	}

	dir := filepath.Dir(trimmedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data.Bytes()); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	// May hold MQTT credentials.
	if err := tmpFile.Chmod(0o600); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, trimmedPath); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	tmpPath = ""

	return nil
}

func sanitizePath(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	cleaned := filepath.Clean(trimmed)
	if !filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%s must be an absolute path, got %q", name, value)
	}
	return cleaned, nil
}

func validateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, min, max, value)
	}

	return nil
}
