package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cptspacemanspiff/power-status/internal/bar"
	"github.com/cptspacemanspiff/power-status/internal/config"
	dbussvc "github.com/cptspacemanspiff/power-status/internal/dbus"
	"github.com/cptspacemanspiff/power-status/internal/module"
	"github.com/cptspacemanspiff/power-status/internal/publisher"
	"github.com/cptspacemanspiff/power-status/internal/sleep"
	"github.com/cptspacemanspiff/power-status/internal/storage"
	"github.com/cptspacemanspiff/power-status/internal/udev"
	"github.com/cptspacemanspiff/power-status/internal/watch"
)

// buildModules creates the enabled modules. A module that cannot start is
// left out with a warning so the others still run.
func buildModules(cfg *config.Config, w module.Watcher, logger *slog.Logger) []module.Module {
	var mods []module.Module

	if cfg.Battery.Enabled {
		b, err := module.NewBattery(module.BatteryOptions{
			Device:    cfg.Battery.Device,
			SysfsRoot: cfg.Sysfs.Root,
			Watcher:   w,
		})
		if err != nil {
			logger.Warn("battery module disabled", "err", err)
		} else {
			logger.Info("battery module ready", "path", b.Path())
			mods = append(mods, b)
		}
	}

	if cfg.Backlight.Enabled {
		b, err := module.NewBacklight(module.BacklightOptions{
			Open: enumeratorOpener(cfg, logger),
		})
		if err != nil {
			logger.Warn("backlight module disabled", "err", err)
		} else {
			logger.Info("backlight module ready", "devices", len(b.Devices()))
			mods = append(mods, b)
		}
	}

	return mods
}

// enumeratorOpener picks the device enumeration backend. libudev falls back
// to reading the sysfs class directory when it is not compiled in.
func enumeratorOpener(cfg *config.Config, logger *slog.Logger) func() (udev.Enumerator, error) {
	root := cfg.Sysfs.Root
	if cfg.Backlight.Enumerator == config.EnumeratorSysfs {
		return func() (udev.Enumerator, error) { return udev.NewClass(root, nil) }
	}
	return func() (udev.Enumerator, error) {
		u, err := udev.NewUdev()
		if errors.Is(err, udev.ErrUnavailable) {
			logger.Debug("libudev unavailable, using sysfs class directory", "topic", "backlight", "err", err)
			return udev.NewClass(root, nil)
		}
		if err != nil {
			return nil, err
		}
		return u, nil
	}
}

func runOnce(cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	w, err := watch.New()
	if err != nil {
		return fmt.Errorf("create watch registry: %w", err)
	}
	defer w.Close()

	b := bar.New(buildModules(cfg, w, logger), bar.Options{Separator: cfg.Bar.Separator, Logger: logger})
	defer b.Close()

	_, err = fmt.Fprintln(out, b.Refresh().Line)
	return err
}

// storeRecorder writes the readings of every render to the database.
func storeRecorder(store *storage.DB) bar.Recorder {
	return bar.RecorderFunc(func(r bar.Render) error {
		var errs []error
		if r.Battery != nil {
			if err := store.InsertBatterySample(*r.Battery); err != nil {
				errs = append(errs, fmt.Errorf("store battery: %w", err))
			}
		}
		if r.Backlight != nil {
			if err := store.InsertBacklightSample(*r.Backlight); err != nil {
				errs = append(errs, fmt.Errorf("store backlight: %w", err))
			}
		}
		return errors.Join(errs...)
	})
}

func mqttRecorder(pub publisher.Publisher, cfg config.MQTTConfig) bar.Recorder {
	pcfg := publisher.PublishConfig{Prefix: cfg.TopicPrefix, Retained: cfg.Retained}
	return bar.RecorderFunc(func(r bar.Render) error {
		return publisher.PublishState(publisher.State{
			Timestamp: r.Time,
			Status:    r.Line,
			Battery:   r.Battery,
			Backlight: r.Backlight,
		}, pcfg, pub)
	})
}

func announceOnline(pub publisher.Publisher, prefix string, online bool) error {
	return pub.Publish(publisher.Message{
		Topic:    publisher.OnlineTopic(prefix),
		Payload:  publisher.FormatOnline(online),
		Retained: true,
	})
}

// cleanup deletes samples older than the retention period, now and then every
// interval, until ctx is done.
func cleanup(ctx context.Context, store *storage.DB, cfg config.StorageConfig, logger *slog.Logger) {
	interval := time.Duration(cfg.CleanupIntervalHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays).Unix()
		if n, err := store.DeleteOlderThan(cutoff); err != nil {
			logger.Error("delete old samples", "err", err)
		} else {
			logger.Debug("deleted old samples", "rows", n, "before", cutoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// currentBar forwards Status to whichever bar is running; reloads swap it.
type currentBar struct {
	p atomic.Pointer[bar.Bar]
}

func (c *currentBar) Status() string {
	if b := c.p.Load(); b != nil {
		return b.Status()
	}
	return ""
}

// run starts the services enabled in cfg and renders until ctx is done.
// Reloading the config file rebuilds the modules and the bar settings;
// storage, D-Bus and MQTT keep the settings they started with.
func run(ctx context.Context, cfg *config.Config, path string, out io.Writer, logger *slog.Logger) error {
	storageLog := logger.With("topic", "storage")
	mqttLog := logger.With("topic", "mqtt")
	sleepLog := logger.With("topic", "sleep")

	w, err := watch.New()
	if err != nil {
		return fmt.Errorf("create watch registry: %w", err)
	}
	defer w.Close()

	var recorders []bar.Recorder
	current := &currentBar{}

	var store *storage.DB
	if cfg.Storage.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		store, err = storage.Open(cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		recorders = append(recorders, storeRecorder(store))
		go cleanup(ctx, store, cfg.Storage, storageLog)
		logger.Info("storing samples", "path", cfg.Storage.DBPath)
	}

	if cfg.DBus.Enabled {
		conn, err := dbussvc.NewService(current, store).Export()
		if err != nil {
			logger.Warn("D-Bus service unavailable", "err", err)
		} else {
			defer conn.Close()
			logger.Info("D-Bus service registered", "name", "org.gnome.PowerStatus")
		}
	}

	if cfg.MQTT.Enabled {
		pub, err := publisher.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			logger.Warn("MQTT publishing unavailable", "err", err)
		} else {
			defer pub.Close()
			if err := announceOnline(pub, cfg.MQTT.TopicPrefix, true); err != nil {
				mqttLog.Warn("announce online", "err", err)
			}
			defer func() {
				if err := announceOnline(pub, cfg.MQTT.TopicPrefix, false); err != nil {
					mqttLog.Warn("announce offline", "err", err)
				}
			}()
			recorders = append(recorders, mqttRecorder(pub, cfg.MQTT))
			logger.Info("publishing to MQTT", "broker", cfg.MQTT.Broker, "prefix", cfg.MQTT.TopicPrefix)
		}
	}

	var wake <-chan struct{}
	if mon, err := sleep.NewMonitor(sleepLog); err != nil {
		logger.Warn("sleep monitor unavailable", "err", err)
	} else {
		defer mon.Close()
		wake = mon.Wake()
	}

	reloads := make(chan *config.Config, 1)
	if path != "" {
		go func() {
			err := config.Watch(ctx, path, logger, func(c *config.Config) {
				select {
				case <-reloads:
				default:
				}
				reloads <- c
			})
			if err != nil {
				logger.Warn("config reload disabled", "err", err)
			}
		}()
	}

	for {
		b := bar.New(buildModules(cfg, w, logger), bar.Options{
			Separator: cfg.Bar.Separator,
			Recorders: recorders,
			Logger:    logger,
		})
		current.p.Store(b)

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- b.Run(runCtx, out, bar.RunOptions{
				Interval: time.Duration(cfg.Bar.IntervalSeconds) * time.Second,
				Events:   w.Events(),
				Wake:     wake,
			})
		}()

		select {
		case next := <-reloads:
			cancel()
			err := <-done
			b.Close()
			if err != nil {
				return err
			}
			cfg.Bar, cfg.Battery, cfg.Backlight, cfg.Sysfs = next.Bar, next.Battery, next.Backlight, next.Sysfs
		case err := <-done:
			cancel()
			b.Close()
			if err == nil {
				logger.Info("shutting down")
			}
			return err
		}
	}
}
