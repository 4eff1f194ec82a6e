// Package watcher monitors visited documents for on-disk changes.
package watcher

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/codesurf-ai/codesurf/internal/event"
	"github.com/codesurf-ai/codesurf/internal/logging"
)

// Watcher tracks the files a session has opened and announces when
// any of them changes on disk. Directories are watched rather than
// files so editors that replace-on-save (write temp, rename) are
// still caught.
type Watcher struct {
	fs  *fsnotify.Watcher
	bus *event.Bus

	mu      sync.Mutex
	files   map[string]string // absolute path -> last seen content
	dirs    map[string]int    // watched directory -> file refcount
	started bool

	onChange func(path, content string)

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a watcher publishing FileDiskChanged on bus. onChange,
// when non-nil, runs for every detected change before the event is
// published.
func New(bus *event.Bus, onChange func(path, content string)) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fs:       fs,
		bus:      bus,
		files:    make(map[string]string),
		dirs:     make(map[string]int),
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch registers a document path. The current on-disk content is
// recorded as the baseline; only later divergence is reported.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[abs]; ok {
		w.files[abs] = string(content)
		return nil
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = string(content)
	return nil
}

// Unwatch drops a document path.
func (w *Watcher) Unwatch(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[abs]; !ok {
		return
	}
	delete(w.files, abs)

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		w.fs.Remove(dir)
	}
}

// Start begins delivering change notifications.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	log := logging.Component("watcher")

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.check(ev.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("watch error")
		}
	}
}

// check re-reads a candidate path and reports it when its content
// moved past the recorded baseline.
func (w *Watcher) check(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}

	w.mu.Lock()
	last, tracked := w.files[abs]
	w.mu.Unlock()
	if !tracked {
		return
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return
	}
	if bytes.IndexByte(content, 0) >= 0 {
		// The file turned into something binary-looking; not a text
		// refresh.
		return
	}
	next := string(content)
	if next == last {
		return
	}

	w.mu.Lock()
	w.files[abs] = next
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(abs, next)
	}
	if w.bus != nil {
		w.bus.Publish(event.Event{
			Type: event.FileDiskChanged,
			Data: event.ChangeData{Path: abs, Content: next},
		})
	}
}

// Stop shuts the watcher down and waits for delivery to stop.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	if started {
		<-w.doneCh
	}
	return w.fs.Close()
}
