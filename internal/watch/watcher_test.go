package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSupersedeCancelsOlderJob(t *testing.T) {
	var s Supersede
	ctx := context.Background()

	started := make(chan struct{})
	var oldCommitted, newCommitted atomic.Bool
	oldErr := make(chan error, 1)
	go func() {
		oldErr <- s.Do(ctx, "a.docx", func(ctx context.Context) (func() error, error) {
			close(started)
			<-ctx.Done()
			return func() error { oldCommitted.Store(true); return nil }, nil
		})
	}()
	<-started

	err := s.Do(ctx, "a.docx", func(context.Context) (func() error, error) {
		return func() error { newCommitted.Store(true); return nil }, nil
	})
	if err != nil {
		t.Fatalf("newer job failed: %v", err)
	}
	if err := <-oldErr; !errors.Is(err, ErrSuperseded) {
		t.Errorf("older job error = %v, want ErrSuperseded", err)
	}
	if oldCommitted.Load() {
		t.Error("stale result was committed")
	}
	if !newCommitted.Load() {
		t.Error("newest result was not committed")
	}
	if n := s.Pending(); n != 0 {
		t.Errorf("pending = %d after all jobs finished", n)
	}
}

func TestSupersedeDropsStaleResultThatIgnoresCancel(t *testing.T) {
	var s Supersede
	ctx := context.Background()

	started, release := make(chan struct{}), make(chan struct{})
	var staleCommitted atomic.Bool
	staleErr := make(chan error, 1)
	go func() {
		staleErr <- s.Do(ctx, "k", func(context.Context) (func() error, error) {
			close(started)
			<-release
			return func() error { staleCommitted.Store(true); return nil }, nil
		})
	}()
	<-started

	newerStarted := make(chan struct{})
	newerErr := make(chan error, 1)
	go func() {
		newerErr <- s.Do(ctx, "k", func(context.Context) (func() error, error) {
			close(newerStarted)
			return nil, nil
		})
	}()
	<-newerStarted
	close(release)

	if err := <-staleErr; !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale job error = %v", err)
	}
	if err := <-newerErr; err != nil {
		t.Errorf("newer job error = %v", err)
	}
	if staleCommitted.Load() {
		t.Error("stale result was committed after a newer job started")
	}
}

func TestSupersedeKeysAreIndependent(t *testing.T) {
	var s Supersede
	ctx := context.Background()

	blocked := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Do(ctx, "a", func(ctx context.Context) (func() error, error) {
			close(blocked)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(100 * time.Millisecond):
				return nil, nil
			}
		})
	}()
	<-blocked

	if err := s.Do(ctx, "b", func(context.Context) (func() error, error) { return nil, nil }); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Errorf("job for another key was disturbed: %v", err)
	}
}

func TestSupersedeErrors(t *testing.T) {
	var s Supersede
	boom := errors.New("boom")
	if err := s.Do(context.Background(), "k", func(context.Context) (func() error, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("work error = %v", err)
	}
	if err := s.Do(context.Background(), "k", func(context.Context) (func() error, error) {
		return func() error { return boom }, nil
	}); !errors.Is(err, boom) {
		t.Errorf("commit error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var committed bool
	err := s.Do(ctx, "k", func(context.Context) (func() error, error) {
		return func() error { committed = true; return nil }, nil
	})
	if !errors.Is(err, context.Canceled) || committed {
		t.Errorf("canceled job: err = %v, committed = %v", err, committed)
	}
}

func TestMatches(t *testing.T) {
	w, err := New(Config{Extensions: []string{"docx", ".HTML"}}, func(context.Context, string) (func() error, error) { return nil, nil }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.fsw.Close()

	tests := map[string]bool{
		"/tmp/report.docx":   true,
		"/tmp/REPORT.DOCX":   true,
		"/tmp/page.html":     true,
		"/tmp/image.png":     false,
		"/tmp/~$report.docx": false,
		"/tmp/.~lock.docx":   false,
	}
	for path, want := range tests {
		if got := w.Matches(path); got != want {
			t.Errorf("Matches(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	if _, err := New(Config{}, nil, nil); err == nil {
		t.Error("nil handler accepted")
	}
	w, err := New(Config{}, func(context.Context, string) (func() error, error) { return nil, nil }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.fsw.Close()
	if w.cfg.Debounce != 300*time.Millisecond || len(w.cfg.Extensions) != 1 {
		t.Errorf("defaults = %+v", w.cfg)
	}
}

func TestWatcherConvertsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	converted := make(chan string, 4)
	handler := func(ctx context.Context, path string) (func() error, error) {
		return func() error {
			converted <- path
			return os.WriteFile(path+".html", []byte("<p>ok</p>"), 0644)
		}, nil
	}

	w, err := New(Config{Directories: []string{dir}, Debounce: 50 * time.Millisecond}, handler, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- w.Start(ctx) }()

	// Give the watcher time to start
	time.Sleep(100 * time.Millisecond)

	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644)
	target := filepath.Join(dir, "report.docx")
	os.WriteFile(target, []byte("v1"), 0644)

	select {
	case path := <-converted:
		if path != target {
			t.Errorf("converted %q, want %q", path, target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for conversion")
	}
	if _, err := os.Stat(target + ".html"); err != nil {
		t.Errorf("output not written: %v", err)
	}

	cancel()
	if err := <-stopped; err != nil {
		t.Errorf("Start returned %v", err)
	}

	events := w.GetEvents()
	if len(events) == 0 || events[0].Path != target || events[0].Status != "converted" {
		t.Errorf("events = %+v", events)
	}
	if st := w.GetStatus(); st.Pending != 0 || st.EventCount != len(events) {
		t.Errorf("status = %+v", st)
	}
}
