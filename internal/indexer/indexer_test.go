package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragctx/internal/embedder"
	"github.com/dshills/ragctx/internal/observe"
	"github.com/dshills/ragctx/internal/storage"
)

// countingEmbedder wraps the local provider, counting calls and optionally
// failing for texts containing a marker
type countingEmbedder struct {
	*embedder.LocalProvider
	calls  atomic.Int32
	failOn string
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	for _, t := range texts {
		if c.failOn != "" && strings.Contains(t, c.failOn) {
			return nil, errors.New("embedding service unavailable")
		}
	}
	return c.LocalProvider.Embed(ctx, texts)
}

func newEmbedder() *countingEmbedder {
	return &countingEmbedder{LocalProvider: embedder.NewLocalProvider(32)}
}

func setupStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func sampleTree() map[string]string {
	return map[string]string{
		"apps/docs/app/adr/0001-migrations.md": "# Migrations\n\nWe apply schema migrations with goose.\n\n## Rollback\n\nUse goose down.\n",
		"internal/db/store.go":                 "package db\n\n// Open opens the database\nfunc Open() error { return nil }\n",
		"README.txt":                           "Project readme.\n",
		"node_modules/lib/index.js":            "module.exports = 1\n",
		".git/config":                          "[core]\n",
		"assets/logo.png":                      "\x89PNG\x00\x01",
	}
}

func TestIndex_Tree(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleTree())
	store := setupStore(t)
	rec := &observe.Recorder{}

	idx := New(store, newEmbedder(), rec)
	stats, err := idx.Index(context.Background(), root, Config{Collection: "repo", Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped, "binary file")
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 4, stats.ChunksUpserted)
	assert.Empty(t, stats.ErrorMessages)

	sources, err := store.ListSources(context.Background(), "repo")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.txt", "apps/docs/app/adr/0001-migrations.md", "internal/db/store.go"}, sources)

	assert.Len(t, rec.Named("index.file"), 3)
	require.Len(t, rec.Named("index.complete"), 1)
}

func TestIndex_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleTree())
	store := setupStore(t)
	idx := New(store, newEmbedder(), nil)
	ctx := context.Background()

	_, err := idx.Index(ctx, root, Config{Collection: "repo"})
	require.NoError(t, err)
	first, err := store.Status(ctx, "repo")
	require.NoError(t, err)

	stats, err := idx.Index(ctx, root, Config{Collection: "repo"})
	require.NoError(t, err)
	second, err := store.Status(ctx, "repo")
	require.NoError(t, err)

	assert.Equal(t, first.Chunks, second.Chunks)
	assert.Equal(t, 0, stats.ChunksPruned)
}

func TestIndex_PrunesChangedAndRemoved(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleTree())
	store := setupStore(t)
	idx := New(store, newEmbedder(), nil)
	ctx := context.Background()

	_, err := idx.Index(ctx, root, Config{Collection: "repo"})
	require.NoError(t, err)

	// Drop the Rollback section and delete the readme
	writeFiles(t, root, map[string]string{
		"apps/docs/app/adr/0001-migrations.md": "# Migrations\n\nWe apply schema migrations with goose.\n",
	})
	require.NoError(t, os.Remove(filepath.Join(root, "README.txt")))

	stats, err := idx.Index(ctx, root, Config{Collection: "repo"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SourcesRemoved)
	assert.Equal(t, 2, stats.ChunksPruned, "one stale section and the removed readme")

	status, err := store.Status(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, 2, status.Chunks)
	assert.Equal(t, 2, status.Sources)
}

func TestIndex_KeepRemoved(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleTree())
	store := setupStore(t)
	idx := New(store, newEmbedder(), nil)
	ctx := context.Background()

	_, err := idx.Index(ctx, root, Config{Collection: "repo"})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "README.txt")))

	stats, err := idx.Index(ctx, root, Config{Collection: "repo", KeepRemoved: true})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SourcesRemoved)

	sources, err := store.ListSources(ctx, "repo")
	require.NoError(t, err)
	assert.Contains(t, sources, "README.txt")
}

func TestIndex_IncludeExclude(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleTree())
	store := setupStore(t)
	idx := New(store, newEmbedder(), nil)

	stats, err := idx.Index(context.Background(), root, Config{
		Collection: "docs",
		Include:    []string{"**/*.md", "**/*.txt"},
		Exclude:    []string{"README.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)

	sources, err := store.ListSources(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"apps/docs/app/adr/0001-migrations.md"}, sources)
}

func TestIndex_FileFailureIsIsolated(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleTree())
	store := setupStore(t)
	emb := newEmbedder()
	emb.failOn = "goose"

	stats, err := New(store, emb, nil).Index(context.Background(), root, Config{Collection: "repo"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 2, stats.FilesIndexed)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "apps/docs/app/adr/0001-migrations.md")
}

func TestIndex_Batches(t *testing.T) {
	root := t.TempDir()
	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteString("# Section " + string(rune('A'+i)) + "\n\nBody text.\n\n")
	}
	writeFiles(t, root, map[string]string{"doc.md": b.String()})
	emb := newEmbedder()

	stats, err := New(setupStore(t), emb, nil).Index(context.Background(), root, Config{Collection: "c", BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.ChunksUpserted)
	assert.Equal(t, int32(3), emb.calls.Load())
}

func TestIndex_Validation(t *testing.T) {
	idx := New(setupStore(t), newEmbedder(), nil)

	_, err := idx.Index(context.Background(), t.TempDir(), Config{})
	assert.Error(t, err)

	_, err = idx.Index(context.Background(), t.TempDir(), Config{Collection: "c", Include: []string{"[unclosed"}})
	assert.Error(t, err)

	_, err = idx.Index(context.Background(), filepath.Join(t.TempDir(), "missing"), Config{Collection: "c"})
	assert.Error(t, err)
}

func TestIndex_Canceled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleTree())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(setupStore(t), newEmbedder(), nil).Index(ctx, root, Config{Collection: "repo"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndex_OneRunAtATime(t *testing.T) {
	idx := New(setupStore(t), newEmbedder(), nil)
	require.True(t, idx.lock.acquire("other"))

	running, ok := idx.Running()
	assert.True(t, ok)
	assert.Equal(t, "other", running)

	_, err := idx.Index(context.Background(), t.TempDir(), Config{Collection: "c"})
	assert.ErrorIs(t, err, ErrIndexInProgress)

	idx.lock.release()
	_, err = idx.Index(context.Background(), t.TempDir(), Config{Collection: "c"})
	assert.NoError(t, err)

	_, ok = idx.Running()
	assert.False(t, ok, "lock is released when the run returns")
}

func TestRunLock_SingleHolder(t *testing.T) {
	var lock runLock
	var wg sync.WaitGroup
	var acquired atomic.Int32

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lock.acquire("c") {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), acquired.Load())

	lock.release()
	assert.True(t, lock.acquire("d"))
	name, ok := lock.current()
	assert.True(t, ok)
	assert.Equal(t, "d", name)
}
