// Package watch delivers debounced, freshly loaded snapshots of a watched file or directory.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before handlers run.
const DefaultDebounce = 1500 * time.Millisecond

// Watcher watches a path and calls its handlers with the result of loader
// after every burst of matching filesystem events.
type Watcher[T any] struct {
	path     string
	debounce time.Duration
	ops      fsnotify.Op
	loader   func(path string) (T, error)
	onError  func(error)
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers map[int]func(T)
	nextID   int

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Watcher.
type Option[T any] func(*Watcher[T])

// WithDebounce sets the debounce duration.
func WithDebounce[T any](d time.Duration) Option[T] {
	return func(w *Watcher[T]) {
		w.debounce = d
	}
}

// WithOps selects which event kinds trigger a reload. The default is Write|Create.
func WithOps[T any](ops fsnotify.Op) Option[T] {
	return func(w *Watcher[T]) {
		w.ops = ops
	}
}

// WithErrorHandler is called when loader fails; errors are always logged.
func WithErrorHandler[T any](fn func(error)) Option[T] {
	return func(w *Watcher[T]) {
		w.onError = fn
	}
}

// New creates a watcher. Call Start to begin watching.
func New[T any](path string, loader func(path string) (T, error), logger *slog.Logger, opts ...Option[T]) *Watcher[T] {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher[T]{
		path:     path,
		debounce: DefaultDebounce,
		ops:      fsnotify.Write | fsnotify.Create,
		loader:   loader,
		logger:   logger,
		handlers: make(map[int]func(T)),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// OnReload registers a handler and returns a func that removes it.
func (w *Watcher[T]) OnReload(fn func(T)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.handlers, id)
		w.mu.Unlock()
	}
}

// Start begins watching.
func (w *Watcher[T]) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := fw.Add(w.path); err != nil {
		_ = fw.Close()

		return err
	}

	w.watcher = fw
	w.logger.Info("Watcher started", "path", w.path, "debounce", w.debounce)

	go w.loop()

	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher[T]) Stop() error {
	w.cancel()

	if w.watcher == nil {
		return nil
	}

	err := w.watcher.Close()
	<-w.done

	return err
}

func (w *Watcher[T]) loop() {
	defer close(w.done)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if ev.Op&w.ops == 0 {
				continue
			}

			w.logger.Debug("Change detected", "name", ev.Name, "op", ev.Op.String())

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

func (w *Watcher[T]) reload() {
	v, err := w.loader(w.path)
	if err != nil {
		w.logger.Warn("Reload failed", "path", w.path, "error", err)

		if w.onError != nil {
			w.onError(err)
		}

		return
	}

	w.mu.RLock()
	handlers := make([]func(T), 0, len(w.handlers))
	for _, h := range w.handlers {
		handlers = append(handlers, h)
	}
	w.mu.RUnlock()

	for _, h := range handlers {
		h(v)
	}
}
