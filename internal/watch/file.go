// Package watch provides external watchers for properties backed by
// something outside the process, and instrumentation for any watcher.
package watch

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of writes (editors often write a file
// in several steps) into one notification.
const DefaultDebounce = 100 * time.Millisecond

// File watches a single file and calls notify after it changes.
//
// File implements props.Watcher. Watch starts an fsnotify watcher on the
// file's directory, so replacing the file by rename is seen as well, and
// Cancel stops it. notify runs on the watcher goroutine: callers that
// signal properties must hand the notification over to the goroutine
// owning the instances.
type File struct {
	path     string
	notify   func()
	logger   *slog.Logger
	debounce time.Duration
	onError  func(error)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// FileOption customizes a File.
type FileOption func(*File)

// WithDebounce overrides DefaultDebounce. Zero disables debouncing.
func WithDebounce(d time.Duration) FileOption {
	return func(f *File) { f.debounce = d }
}

// WithErrorHandler receives watcher errors in addition to logging them.
func WithErrorHandler(fn func(error)) FileOption {
	return func(f *File) { f.onError = fn }
}

// NewFile creates a watcher for path. A nil logger uses slog.Default().
func NewFile(path string, notify func(), logger *slog.Logger, opts ...FileOption) *File {
	if logger == nil {
		logger = slog.Default()
	}
	f := &File{
		path:     filepath.Clean(path),
		notify:   notify,
		logger:   logger,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the watched file.
func (f *File) Path() string { return f.path }

// Watch starts watching. Failures are logged; the property then simply
// never receives external notifications.
func (f *File) Watch() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.watcher != nil {
		return
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.fail("create watcher", err)
		return
	}
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		f.fail("add watch", err)
		return
	}

	f.watcher = w
	f.done = make(chan struct{})
	f.wg.Add(1)
	go f.loop(w, f.done)

	f.logger.Debug("file watch started", "path", f.path)
}

// Cancel stops watching and waits for the event loop to exit.
func (f *File) Cancel() {
	f.mu.Lock()
	w, done := f.watcher, f.done
	f.watcher, f.done = nil, nil
	f.mu.Unlock()

	if w == nil {
		return
	}
	close(done)
	if err := w.Close(); err != nil {
		f.fail("close watcher", err)
	}
	f.wg.Wait()

	f.logger.Debug("file watch stopped", "path", f.path)
}

// Active reports whether the event loop is running.
func (f *File) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watcher != nil
}

func (f *File) loop(w *fsnotify.Watcher, done <-chan struct{}) {
	defer f.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path || !relevant(ev.Op) {
				continue
			}
			if f.debounce <= 0 {
				f.notify()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(f.debounce)
			} else {
				timer.Reset(f.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			f.notify()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			f.fail("watch", err)
		}
	}
}

func (f *File) fail(op string, err error) {
	f.logger.Error("file watch failed", "op", op, "path", f.path, "error", err)
	if f.onError != nil {
		f.onError(err)
	}
}

// relevant reports whether op changes the file's content.
func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename) || op.Has(fsnotify.Remove)
}
