package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/config"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) MarkStale(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) seen(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.paths {
		if p == path {
			return true
		}
	}
	return false
}

func TestWatcherReportsSourceChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "core"), 0o755))
	cfg := config.DefaultConfig

	rec := &recorder{}
	w, err := NewWatcher(root, rec, &cfg, nil)
	require.NoError(t, err)
	w.Start()
	t.Cleanup(func() { w.Close() })

	notes := filepath.Join(root, "core", "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("x"), 0o644))
	ignored := filepath.Join(root, "core", "core_test.go")
	require.NoError(t, os.WriteFile(ignored, []byte("package core"), 0o644))

	src := filepath.Join(root, "core", "core.go")
	require.NoError(t, os.WriteFile(src, []byte("package core"), 0o644))
	assert.Eventually(t, func() bool { return rec.seen(src) }, 2*time.Second, 10*time.Millisecond)

	// Directories created after start are picked up.
	web := filepath.Join(root, "web")
	require.NoError(t, os.Mkdir(web, 0o755))
	handler := filepath.Join(web, "handler.go")
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(handler, []byte("package web"), 0o644)
		return rec.seen(handler)
	}, 2*time.Second, 20*time.Millisecond)

	assert.False(t, rec.seen(notes))
	assert.False(t, rec.seen(ignored))
}

func TestShouldIgnore(t *testing.T) {
	cfg := config.DefaultConfig
	w := &Watcher{config: &cfg}
	assert.True(t, w.shouldIgnore("/src/.dsmviewer"))
	assert.True(t, w.shouldIgnore("/src/node_modules"))
	assert.True(t, w.shouldIgnore("/src/vendor/lib/lib.go"))
	assert.False(t, w.shouldIgnore("/src/internal/core/core.go"))
}
