package devserver

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeLog struct {
	mu      sync.Mutex
	batches [][]string
}

func (c *changeLog) record(_ context.Context, paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, paths)
}

func (c *changeLog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func startWatcher(t *testing.T, root string, log *changeLog) context.CancelFunc {
	t.Helper()
	w, err := NewWatcher(root, 50*time.Millisecond, log.record)
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
	// Give the recursive watch time to register before mutating files.
	time.Sleep(100 * time.Millisecond)
	return cancel
}

func TestWatcherReportsContentChange(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "main.rs")
	require.NoError(t, os.WriteFile(src, []byte("fn main() {}\n"), 0o644))

	log := &changeLog{}
	startWatcher(t, root, log)

	require.NoError(t, os.WriteFile(src, []byte("fn main() { run(); }\n"), 0o644))

	require.Eventually(t, func() bool { return log.count() >= 1 },
		2*time.Second, 20*time.Millisecond, "change batch not reported")
}

func TestWatcherSkipsNoopRewrite(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "lib.rs")
	content := []byte("pub fn f() {}\n")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	log := &changeLog{}
	startWatcher(t, root, log)

	// First write establishes the memo entry.
	require.NoError(t, os.WriteFile(src, content, 0o644))
	require.Eventually(t, func() bool { return log.count() >= 1 },
		2*time.Second, 20*time.Millisecond)

	// Identical rewrite must not produce a second batch.
	require.NoError(t, os.WriteFile(src, content, 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, log.count())
}

func TestWatcherIgnoresBuildOutputDirs(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target")
	require.NoError(t, os.MkdirAll(target, 0o755))

	log := &changeLog{}
	startWatcher(t, root, log)

	require.NoError(t, os.WriteFile(filepath.Join(target, "artifact.bin"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, log.count())
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()

	log := &changeLog{}
	startWatcher(t, root, log)

	sub := filepath.Join(root, "components")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nav.rs"), []byte("pub struct Nav;\n"), 0o644))

	require.Eventually(t, func() bool { return log.count() >= 1 },
		2*time.Second, 20*time.Millisecond, "change in new directory not reported")
}

func TestWatcherMissingRoot(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "nope"), 50*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background()))
}
