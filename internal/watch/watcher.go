// Package watch converts documents as they change on disk. A newer change to
// a file supersedes a conversion of it that is still running.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Config holds the watcher configuration.
type Config struct {
	Directories []string      `json:"directories"`
	Extensions  []string      `json:"extensions"` // defaults to .docx
	Recursive   bool          `json:"recursive"`
	Debounce    time.Duration `json:"debounce"`
}

// Event records the outcome of one triggered conversion.
type Event struct {
	Time      time.Time `json:"time"`
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"` // "converted", "superseded", "error"
	Error     string    `json:"error,omitempty"`
}

// Status represents the current watcher status.
type Status struct {
	Directories []string `json:"directories"`
	EventCount  int      `json:"eventCount"`
	Pending     int      `json:"pending"`
}

// Handler converts the file at path. It returns the function that writes the
// result; that function is skipped when a newer change superseded the job.
type Handler func(ctx context.Context, path string) (commit func() error, err error)

// Watcher monitors directories and runs a Handler for changed files.
type Watcher struct {
	cfg     Config
	handler Handler
	log     *zap.Logger
	fsw     *fsnotify.Watcher
	jobs    Supersede
	wg      sync.WaitGroup

	mu       sync.Mutex
	events   []Event
	debounce map[string]*time.Timer

	// OnEvent, when set, is called after each conversion outcome is
	// recorded. It may be called from several goroutines at once.
	OnEvent func(Event)
}

// New creates a Watcher. A nil logger discards output.
func New(cfg Config, handler Handler, log *zap.Logger) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch: nil handler")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 300 * time.Millisecond
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".docx"}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		cfg:      cfg,
		handler:  handler,
		log:      log,
		fsw:      fsw,
		debounce: make(map[string]*time.Timer),
	}, nil
}

// Start watches the configured directories until ctx is canceled. In-flight
// conversions are canceled and waited for before it returns.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.fsw.Close()

	for _, dir := range w.cfg.Directories {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("could not resolve %s: %w", dir, err)
		}
		if w.cfg.Recursive {
			err = w.addRecursive(absDir)
		} else {
			err = w.fsw.Add(absDir)
		}
		if err != nil {
			return fmt.Errorf("could not watch %s: %w", absDir, err)
		}
	}
	w.log.Info("watching", zap.Strings("directories", w.cfg.Directories), zap.Strings("extensions", w.cfg.Extensions))

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.wg.Wait()
			w.log.Info("stopped watching")
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			// Skip hidden directories
			if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	path := event.Name
	if !w.Matches(path) {
		return
	}

	// Debounce: bursts of writes to one file trigger a single conversion.
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	op := event.Op.String()
	w.debounce[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		delete(w.debounce, path)
		if ctx.Err() != nil {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()

		go func() {
			defer w.wg.Done()
			w.process(ctx, path, op)
		}()
	})
}

// Matches reports whether path has a watched extension and is not an editor
// lock or temp file.
func (w *Watcher) Matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".~") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.cfg.Extensions {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) process(ctx context.Context, path, op string) {
	if ctx.Err() != nil {
		return
	}
	err := w.jobs.Do(ctx, path, func(ctx context.Context) (func() error, error) {
		return w.handler(ctx, path)
	})

	evt := Event{Time: time.Now(), Path: path, Operation: op, Status: "converted"}
	switch {
	case errors.Is(err, ErrSuperseded):
		evt.Status = "superseded"
		w.log.Debug("conversion superseded", zap.String("path", path))
	case err != nil:
		evt.Status = "error"
		evt.Error = err.Error()
		w.log.Warn("conversion failed", zap.String("path", path), zap.Error(err))
	default:
		w.log.Info("converted", zap.String("path", path))
	}

	w.mu.Lock()
	w.events = append(w.events, evt)
	w.mu.Unlock()

	if w.OnEvent != nil {
		w.OnEvent(evt)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.debounce {
		timer.Stop()
		delete(w.debounce, path)
	}
}

// GetStatus returns the current watcher status.
func (w *Watcher) GetStatus() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		Directories: w.cfg.Directories,
		EventCount:  len(w.events),
		Pending:     w.jobs.Pending(),
	}
}

// GetEvents returns all recorded events.
func (w *Watcher) GetEvents() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, len(w.events))
	copy(events, w.events)
	return events
}
