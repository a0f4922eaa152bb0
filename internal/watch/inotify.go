// Package watch owns the inotify instance that modules register
// change-notification watches against. The host reads Events and decides
// when to re-render.
package watch

import (
	"fmt"
	"io"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Event reports activity on a watched path.
type Event struct {
	Path string
	Mask uint32
}

// Inotify is a registry of access watches backed by one inotify descriptor.
type Inotify struct {
	fd   int
	file *os.File

	mu     sync.Mutex
	paths  map[int32]string
	closed bool

	events    chan Event
	closeOnce sync.Once
}

// New creates the inotify instance and starts delivering events.
func New() (*Inotify, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}

	in := &Inotify{
		fd:     fd,
		file:   os.NewFile(uintptr(fd), "inotify"),
		paths:  make(map[int32]string),
		events: make(chan Event, 16),
	}
	go in.readEvents()
	return in, nil
}

// Events delivers one Event per notification. Events are dropped, not queued,
// while the consumer is behind: a pending event already means "re-render".
// The channel is closed after Close.
func (in *Inotify) Events() <-chan Event {
	return in.events
}

// Add watches path for read access and returns the handle that releases the
// watch.
func (in *Inotify) Add(path string) (io.Closer, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return nil, fmt.Errorf("add watch %s: registry closed", path)
	}
	wd, err := unix.InotifyAddWatch(in.fd, path, unix.IN_ACCESS)
	if err != nil {
		return nil, fmt.Errorf("add watch %s: %w", path, err)
	}
	in.paths[int32(wd)] = path
	return &Watch{in: in, wd: wd, path: path}, nil
}

// Close tears down the instance. Watches not yet closed are released by the
// kernel together with the descriptor.
func (in *Inotify) Close() error {
	var err error
	in.closeOnce.Do(func() {
		in.mu.Lock()
		in.closed = true
		in.paths = map[int32]string{}
		in.mu.Unlock()
		err = in.file.Close()
	})
	return err
}

func (in *Inotify) remove(wd int) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return nil
	}
	delete(in.paths, int32(wd))
	if _, err := unix.InotifyRmWatch(in.fd, uint32(wd)); err != nil {
		return fmt.Errorf("remove watch: %w", err)
	}
	return nil
}

func (in *Inotify) readEvents() {
	defer close(in.events)

	var buf [unix.SizeofInotifyEvent * 64]byte
	for {
		n, err := in.file.Read(buf[:])
		if err != nil {
			// os.ErrClosed after Close; anything else means a dead descriptor.
			return
		}

		var offset uint32
		for offset+unix.SizeofInotifyEvent <= uint32(n) {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			offset += unix.SizeofInotifyEvent + raw.Len

			if raw.Mask&unix.IN_Q_OVERFLOW != 0 {
				continue
			}

			in.mu.Lock()
			path, ok := in.paths[raw.Wd]
			if raw.Mask&unix.IN_IGNORED != 0 {
				delete(in.paths, raw.Wd)
				ok = false
			}
			in.mu.Unlock()
			if !ok {
				continue
			}

			select {
			case in.events <- Event{Path: path, Mask: raw.Mask}:
			default:
			}
		}
	}
}

// Watch is a single registered watch.
type Watch struct {
	in   *Inotify
	wd   int
	path string
	once sync.Once
}

// Path returns the watched path.
func (w *Watch) Path() string {
	return w.path
}

// Close releases the watch. Only the first call has an effect.
func (w *Watch) Close() error {
	var err error
	w.once.Do(func() {
		err = w.in.remove(w.wd)
	})
	return err
}
