package soul

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileEvent is one debounced filesystem change delivered to the
// engine's heartbeat for dispatch to matching FileChange triggers.
type FileEvent struct {
	Path string
	Kind FileChangeKind
	At   time.Time
}

// FileWatcher wraps one fsnotify.Watcher with a debounce map so a burst
// of writes to the same path collapses into a single event, and a
// bounded channel so the underlying notifier goroutine is never blocked
// by a slow consumer (§5).
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	events   chan FileEvent

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewFileWatcher builds a watcher with the given debounce window and a
// bounded event channel of the given capacity.
func NewFileWatcher(debounce time.Duration, bufferSize int) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	fw := &FileWatcher{
		watcher:  w,
		debounce: debounce,
		events:   make(chan FileEvent, bufferSize),
		pending:  map[string]*time.Timer{},
	}
	go fw.loop()
	return fw, nil
}

// Watch adds path to the underlying fsnotify watch set.
func (fw *FileWatcher) Watch(path string) error {
	return fw.watcher.Add(path)
}

// Unwatch removes path from the watch set.
func (fw *FileWatcher) Unwatch(path string) error {
	return fw.watcher.Remove(path)
}

// Events returns the channel the engine's heartbeat drains.
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

func (fw *FileWatcher) loop() {
	for {
		select {
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.debounced(ev)
		case _, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (fw *FileWatcher) debounced(ev fsnotify.Event) {
	kind := classify(ev.Op)

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if t, ok := fw.pending[ev.Name]; ok {
		t.Stop()
	}
	fw.pending[ev.Name] = time.AfterFunc(fw.debounce, func() {
		fw.mu.Lock()
		delete(fw.pending, ev.Name)
		fw.mu.Unlock()

		select {
		case fw.events <- FileEvent{Path: ev.Name, Kind: kind, At: time.Now()}:
		default:
			// Bounded channel is full: drop rather than block the
			// notifier goroutine (§5's "never blocked" discipline).
		}
	})
}

func classify(op fsnotify.Op) FileChangeKind {
	switch {
	case op&fsnotify.Create != 0:
		return FileCreated
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return FileRemoved
	case op&fsnotify.Write != 0, op&fsnotify.Chmod != 0:
		return FileModified
	default:
		return FileAny
	}
}

// Close stops the underlying fsnotify watcher and all pending debounce
// timers.
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	for _, t := range fw.pending {
		t.Stop()
	}
	fw.pending = map[string]*time.Timer{}
	fw.mu.Unlock()
	return fw.watcher.Close()
}
