package dbus

import (
	"encoding/json"
	"fmt"

	godbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/cptspacemanspiff/power-status/internal/storage"
)

const (
	busName   = "org.gnome.PowerStatus"
	objPath   = "/org/gnome/PowerStatus"
	ifaceName = "org.gnome.PowerStatus"

	maxHistorySeconds = 365 * 86400
)

const introspectXML = `
<node>
  <interface name="` + ifaceName + `">
    <method name="GetStatus">
      <arg direction="out" type="s" name="line"/>
    </method>
    <method name="GetCurrentStats">
      <arg direction="out" type="s" name="json"/>
    </method>
    <method name="GetHistory">
      <arg direction="in" type="x" name="from_epoch"/>
      <arg direction="in" type="x" name="to_epoch"/>
      <arg direction="out" type="s" name="json"/>
    </method>
  </interface>
` + introspect.IntrospectDataString + `
</node>`

// StatusSource supplies the most recently rendered status line.
type StatusSource interface {
	Status() string
}

// Service exposes the status line and stored readings over D-Bus. store may
// be nil when history is disabled.
type Service struct {
	status StatusSource
	store  *storage.DB
}

// NewService creates a new D-Bus service.
func NewService(status StatusSource, store *storage.DB) *Service {
	return &Service{status: status, store: store}
}

// Export registers the service on the session bus.
func (s *Service) Export() (*godbus.Conn, error) {
	conn, err := godbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	if err := conn.Export(s, objPath, ifaceName); err != nil {
		return nil, fmt.Errorf("export service: %w", err)
	}
	if err := conn.Export(introspect.Introspectable(introspectXML), objPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("export introspection: %w", err)
	}

	reply, err := conn.RequestName(busName, godbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("request name: %w", err)
	}
	if reply != godbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("name %s already taken", busName)
	}

	return conn, nil
}

// GetStatus returns the last rendered status line.
func (s *Service) GetStatus() (string, *godbus.Error) {
	return s.status.Status(), nil
}

// GetCurrentStats returns the latest stored battery and backlight samples as JSON.
func (s *Service) GetCurrentStats() (string, *godbus.Error) {
	result := map[string]any{"battery": nil, "backlight": nil}
	if s.store != nil {
		bat, err := s.store.LatestBatterySample()
		if err != nil {
			return "", godbus.MakeFailedError(err)
		}
		bl, err := s.store.LatestBacklightSample()
		if err != nil {
			return "", godbus.MakeFailedError(err)
		}
		result["battery"] = bat
		result["backlight"] = bl
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return string(data), nil
}

// GetHistory returns battery and backlight samples in a time range as JSON.
func (s *Service) GetHistory(fromEpoch, toEpoch int64) (string, *godbus.Error) {
	if err := validateRange(fromEpoch, toEpoch); err != nil {
		return "", godbus.MakeFailedError(err)
	}
	result := map[string]any{"battery": []any{}, "backlight": []any{}}
	if s.store != nil {
		bat, err := s.store.BatterySamplesInRange(fromEpoch, toEpoch)
		if err != nil {
			return "", godbus.MakeFailedError(err)
		}
		bl, err := s.store.BacklightSamplesInRange(fromEpoch, toEpoch)
		if err != nil {
			return "", godbus.MakeFailedError(err)
		}
		if bat != nil {
			result["battery"] = bat
		}
		if bl != nil {
			result["backlight"] = bl
		}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return string(data), nil
}

func validateRange(from, to int64) error {
	switch {
	case from < 0:
		return fmt.Errorf("from_epoch must not be negative, got %d", from)
	case to < from:
		return fmt.Errorf("to_epoch %d is before from_epoch %d", to, from)
	case to-from > maxHistorySeconds:
		return fmt.Errorf("range of %d seconds exceeds %d", to-from, maxHistorySeconds)
	}
	return nil
}
