package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bouncer/internal/event"
)

type eventSink struct {
	mu     sync.Mutex
	events []event.ChangeEvent
}

func (s *eventSink) observe(ev event.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) find(path string, kind event.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.Path == path && ev.Kind == kind {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, dir string, recursive bool, ignores []string) *eventSink {
	t.Helper()
	sink := &eventSink{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	w, err := NewWatcher(dir, recursive, ignores, sink.observe, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return sink
}

func TestWatcherReportsCreateAndWrite(t *testing.T) {
	dir := t.TempDir()
	sink := startWatcher(t, dir, false, nil)

	path := filepath.Join(dir, "file.go")
	require.NoError(t, os.WriteFile(path, []byte("package x\n"), 0o644))

	assert.True(t, waitFor(t, 3*time.Second, func() bool {
		return sink.find(path, event.KindCreated) || sink.find(path, event.KindModified)
	}), "expected an event for the new file")
}

func TestWatcherReportsRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	sink := startWatcher(t, dir, false, nil)
	require.NoError(t, os.Remove(path))

	assert.True(t, waitFor(t, 3*time.Second, func() bool {
		return sink.find(path, event.KindDeleted)
	}), "expected a deleted event")
}

func TestWatcherFollowsNewDirectoriesWhenRecursive(t *testing.T) {
	dir := t.TempDir()
	sink := startWatcher(t, dir, true, nil)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Give the watcher a moment to register the new directory before
	// writing into it.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "inner.go")
	require.NoError(t, os.WriteFile(path, []byte("package sub\n"), 0o644))

	assert.True(t, waitFor(t, 3*time.Second, func() bool {
		return sink.find(path, event.KindCreated) || sink.find(path, event.KindModified)
	}), "expected an event from the new subdirectory")
}

func TestWatcherFingerprintsReadableContent(t *testing.T) {
	dir := t.TempDir()
	sink := startWatcher(t, dir, false, nil)

	content := []byte("fingerprint me\n")
	path := filepath.Join(dir, "fp.txt")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	require.True(t, waitFor(t, 3*time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		for _, ev := range sink.events {
			if ev.Path == path && !ev.Fingerprint.IsZero() {
				return true
			}
		}
		return false
	}), "expected a fingerprinted event")
}

func TestIgnored(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	w, err := NewWatcher(dir, false, []string{"*.tmp", "build"}, func(event.ChangeEvent) {}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { w.fsw.Close() })

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, ".git", "HEAD"), true},
		{filepath.Join(dir, "node_modules", "pkg", "index.js"), true},
		{filepath.Join(dir, ".bouncer", "bouncer.db"), true},
		{filepath.Join(dir, "scratch.tmp"), true},
		{filepath.Join(dir, "build", "out.bin"), true},
		{filepath.Join(dir, "src", "main.go"), false},
		{filepath.Join(dir, "gitlog.txt"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.ignored(tt.path), "path %s", tt.path)
	}
}
