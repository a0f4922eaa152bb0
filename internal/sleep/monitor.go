// Package sleep watches systemd-logind for suspend and resume so the bar can
// refresh as soon as the machine wakes: battery charge and backlight level
// both change while asleep, and the refresh timer may be far from firing.
package sleep

import (
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	loginManager       = "org.freedesktop.login1.Manager"
	prepareForSleep    = loginManager + ".PrepareForSleep"
	prepareForShutdown = loginManager + ".PrepareForShutdown"
)

// Monitor listens for PrepareForSleep/PrepareForShutdown signals.
type Monitor struct {
	conn *dbus.Conn
	done chan struct{}
	wake chan struct{}
	log  *slog.Logger
}

// NewMonitor connects to the system bus and starts listening.
func NewMonitor(logger *slog.Logger) (*Monitor, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}

	for _, member := range []string{"PrepareForSleep", "PrepareForShutdown"} {
		err = conn.AddMatchSignal(
			dbus.WithMatchInterface(loginManager),
			dbus.WithMatchMember(member),
		)
		if err != nil {
			return nil, err
		}
	}

	m := newMonitor(conn, logger)
	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)
	go func() {
		defer conn.RemoveSignal(ch)
		m.listen(ch)
	}()
	return m, nil
}

func newMonitor(conn *dbus.Conn, logger *slog.Logger) *Monitor {
	return &Monitor{
		conn: conn,
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
		log:  logger,
	}
}

// Wake receives a value each time the system resumes. Wakes that arrive
// while one is pending are merged.
func (m *Monitor) Wake() <-chan struct{} {
	return m.wake
}

// Close stops the monitor.
func (m *Monitor) Close() {
	close(m.done)
}

func (m *Monitor) listen(ch <-chan *dbus.Signal) {
	for {
		select {
		case sig := <-ch:
			m.handle(sig)
		case <-m.done:
			return
		}
	}
}

func (m *Monitor) handle(sig *dbus.Signal) {
	if sig == nil || len(sig.Body) < 1 {
		return
	}
	active, ok := sig.Body[0].(bool)
	if !ok {
		return
	}

	switch sig.Name {
	case prepareForShutdown:
		if active {
			m.log.Info("system preparing for shutdown")
		}
	case prepareForSleep:
		if active {
			m.log.Info("system going to sleep")
			return
		}
		m.log.Info("system woke up")
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
}
