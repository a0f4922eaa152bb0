// Package bar is the host for status modules: it renders them into one line,
// keeps a failing module from affecting the others, and decides when to
// render again.
package bar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cptspacemanspiff/power-status/internal/module"
	"github.com/cptspacemanspiff/power-status/internal/watch"
)

const DefaultSeparator = " | "

// Render is the outcome of one pass over the modules. Samples are nil for
// modules that failed or are not configured.
type Render struct {
	Time      time.Time
	Line      string
	Battery   *module.BatterySample
	Backlight *module.BacklightSample
	Failed    []string
}

// Recorder receives every render, e.g. to store or publish it.
type Recorder interface {
	Record(Render) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Render) error

func (f RecorderFunc) Record(r Render) error { return f(r) }

type batterySource interface {
	LastSample() *module.BatterySample
}

type backlightSource interface {
	LastSample() *module.BacklightSample
}

// Options configures New.
type Options struct {
	Separator string
	Recorders []Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

// Bar owns a set of modules for its lifetime.
type Bar struct {
	modules   []module.Module
	separator string
	recorders []Recorder
	log       *slog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	status string

	closeOnce sync.Once
	closeErr  error
}

func New(modules []module.Module, opts Options) *Bar {
	b := &Bar{
		modules:   modules,
		separator: opts.Separator,
		recorders: opts.Recorders,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if b.separator == "" {
		b.separator = DefaultSeparator
	}
	if b.log == nil {
		b.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Modules returns the modules in render order.
func (b *Bar) Modules() []module.Module {
	return append([]module.Module(nil), b.modules...)
}

// Render prints every module into out, separated by the configured
// separator. A module that fails leaves no bytes behind, separator included.
func (b *Bar) Render(out *bytes.Buffer) Render {
	r := Render{Time: b.now()}
	start := out.Len()
	wrote := false

	for _, m := range b.modules {
		mark := out.Len()
		if wrote {
			out.WriteString(b.separator)
		}
		if err := m.Print(out); err != nil {
			out.Truncate(mark)
			r.Failed = append(r.Failed, m.Name())
			b.log.Debug("refresh failed", "topic", m.Name(), "err", err)
			continue
		}
		wrote = true

		switch s := m.(type) {
		case batterySource:
			r.Battery = s.LastSample()
		case backlightSource:
			r.Backlight = s.LastSample()
		}
	}

	r.Line = out.String()[start:]
	return r
}

// Refresh renders a fresh line, remembers it for Status and hands it to the
// recorders. Recorder failures are logged and do not affect the line.
func (b *Bar) Refresh() Render {
	var out bytes.Buffer
	r := b.Render(&out)

	b.mu.Lock()
	b.status = r.Line
	b.mu.Unlock()

	for _, rec := range b.recorders {
		if err := rec.Record(r); err != nil {
			b.log.Warn("record render failed", "topic", "bar", "err", err)
		}
	}
	return r
}

// Status returns the last line produced by Refresh. Safe for concurrent use.
func (b *Bar) Status() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// RunOptions says when Run renders again.
type RunOptions struct {
	Interval time.Duration
	Events   <-chan watch.Event
	Wake     <-chan struct{}
}

// Run writes one line to w immediately and then once per tick, change
// notification or wake, until ctx is done.
func (b *Bar) Run(ctx context.Context, w io.Writer, opts RunOptions) error {
	if opts.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", opts.Interval)
	}
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	emit := func() error {
		r := b.Refresh()
		if _, err := io.WriteString(w, r.Line+"\n"); err != nil {
			return fmt.Errorf("write status line: %w", err)
		}
		return nil
	}

	if err := emit(); err != nil {
		return err
	}

	events, wake := opts.Events, opts.Wake
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			b.log.Debug("change notification", "topic", "watch", "path", ev.Path)
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			b.log.Info("refreshing after wake", "topic", "sleep")
		}
		if err := emit(); err != nil {
			return err
		}
	}
}

// Close closes every module once and returns their combined errors.
func (b *Bar) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		for _, m := range b.modules {
			if err := m.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", m.Name(), err))
			}
		}
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}
