package watcher_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heywhy/bucket/internal/watcher"
)

func newWatcher(t *testing.T, root string) *watcher.Watcher {
	t.Helper()
	cfg := watcher.DefaultConfig(root)
	cfg.DebounceDur = 50 * time.Millisecond
	w, err := watcher.New(cfg)
	require.NoError(t, err)
	return w
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "App.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	w := newWatcher(t, dir)
	defer func() { _ = w.Stop() }()

	changes, err := w.Start()
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("v%d", i)), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case batch := <-changes:
		assert.Equal(t, []string{path}, batch)
	case <-time.After(time.Second):
		t.Fatal("expected a batch")
	}

	select {
	case batch := <-changes:
		t.Fatalf("unexpected second batch %v", batch)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, dir)
	defer func() { _ = w.Stop() }()

	changes, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case batch := <-changes:
		t.Fatalf("unexpected batch %v", batch)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_Subdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "App")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	w := newWatcher(t, dir)
	defer func() { _ = w.Stop() }()

	changes, err := w.Start()
	require.NoError(t, err)

	path := filepath.Join(sub, "Welcome.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`component "A" {}`), 0o644))

	select {
	case batch := <-changes:
		assert.Contains(t, batch, path)
	case <-time.After(time.Second):
		t.Fatal("expected a batch")
	}
}

type recordingInvalidator struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingInvalidator) Invalidate(location string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, location)
	return nil
}

func (r *recordingInvalidator) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestWatcher_RunInvalidates(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	inv := &recordingInvalidator{}
	batches := make(chan []string, 4)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, inv, func(b []string) { batches <- b }) }()

	path := filepath.Join(dir, "App.yaml")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("x"), 0o644)
		select {
		case <-batches:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	require.Contains(t, inv.seen(), path)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w := newWatcher(t, filepath.Join(t.TempDir(), "missing"))
	_, err := w.Start()
	require.Error(t, err)

	require.Empty(t, w.Watched())
	require.NoError(t, w.Stop())
}

func TestWatcher_RunReleasesWatchesWhenStartFails(t *testing.T) {
	w := newWatcher(t, filepath.Join(t.TempDir(), "missing"))

	err := w.Run(context.Background(), nopInvalidator{}, nil)
	require.Error(t, err)
	require.Empty(t, w.Watched())
	require.NoError(t, w.Stop())
}

func TestWatcher_StopTwice(t *testing.T) {
	root := t.TempDir()
	w := newWatcher(t, root)
	_, err := w.Start()
	require.NoError(t, err)
	require.Equal(t, []string{root}, w.Watched())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	require.Empty(t, w.Watched())
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(string) error { return nil }

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("app")
	assert.Equal(t, "app", cfg.Root)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceDur)
	assert.Contains(t, cfg.Extensions, ".hcl")
}
