package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ragctx/internal/chunker"
	"github.com/dshills/ragctx/internal/embedder"
	"github.com/dshills/ragctx/internal/observe"
	"github.com/dshills/ragctx/internal/storage"
	"github.com/dshills/ragctx/pkg/types"
)

const (
	// DefaultBatchSize is the number of chunk texts sent per embedding call
	DefaultBatchSize = 64
	// DefaultMaxFileSize skips files larger than this many bytes
	DefaultMaxFileSize = 1 << 20
)

// DefaultExclude lists globs skipped unless the caller overrides Exclude
var DefaultExclude = []string{
	"**/node_modules/**",
	"**/vendor/**",
	"**/dist/**",
	"**/*.min.js",
	"**/*.lock",
	"**/go.sum",
}

// ErrIndexInProgress is returned when another indexing run holds the indexer
var ErrIndexInProgress = errors.New("indexing already in progress")

// Config contains configuration for one indexing run
type Config struct {
	Collection  string   // Required
	Include     []string // doublestar globs relative to the root; empty includes everything
	Exclude     []string // nil uses DefaultExclude
	Workers     int      // Concurrent files; default runtime.NumCPU()
	BatchSize   int      // Texts per embedding call; default DefaultBatchSize
	MaxFileSize int64    // Bytes; default DefaultMaxFileSize
	MaxChars    int      // Chunk size limit; default chunker.DefaultMaxChars
	KeepRemoved bool     // Keep chunks of sources no longer on disk
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	FilesIndexed   int
	FilesSkipped   int
	FilesFailed    int
	ChunksUpserted int
	ChunksPruned   int
	SourcesRemoved int
	Duration       time.Duration
	ErrorMessages  []string
}

// Indexer coordinates the ingest pipeline: walk -> chunk -> embed -> upsert.
// One run at a time; concurrent calls fail with ErrIndexInProgress.
type Indexer struct {
	store    storage.Storage
	embedder embedder.Embedder
	sink     observe.Sink
	lock     runLock
}

// New creates a new Indexer instance
func New(store storage.Storage, emb embedder.Embedder, sink observe.Sink) *Indexer {
	return &Indexer{
		store:    store,
		embedder: emb,
		sink:     observe.OrNop(sink),
	}
}

// fileJob is one discovered source file
type fileJob struct {
	abs string
	rel string // slash-separated, relative to the root
}

// Index ingests every matching file under root into cfg.Collection. Source
// paths are stored relative to root. Per-file failures are recorded in the
// statistics and do not stop the run; cancellation does.
func (idx *Indexer) Index(ctx context.Context, root string, cfg Config) (*Statistics, error) {
	if !idx.lock.acquire(cfg.Collection) {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.release()

	cfg = withDefaults(cfg)
	if cfg.Collection == "" {
		return nil, errors.New("collection is required")
	}
	if err := ValidatePatterns(cfg.Include, cfg.Exclude); err != nil {
		return nil, err
	}

	startTime := time.Now()
	files, err := discoverFiles(root, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	stats := &Statistics{ErrorMessages: make([]string, 0)}
	if err := idx.indexFiles(ctx, files, cfg, stats); err != nil {
		return nil, err
	}

	if !cfg.KeepRemoved {
		if err := idx.pruneRemoved(ctx, cfg.Collection, files, stats); err != nil {
			return nil, err
		}
	}

	stats.Duration = time.Since(startTime)
	idx.sink.Emit(ctx, observe.Event{Name: "index.complete", Attrs: map[string]any{
		"collection":      cfg.Collection,
		"files_indexed":   stats.FilesIndexed,
		"files_skipped":   stats.FilesSkipped,
		"files_failed":    stats.FilesFailed,
		"chunks_upserted": stats.ChunksUpserted,
		"chunks_pruned":   stats.ChunksPruned,
		"duration_ms":     stats.Duration.Milliseconds(),
	}})
	return stats, nil
}

func withDefaults(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Exclude == nil {
		cfg.Exclude = DefaultExclude
	}
	return cfg
}

// ValidatePatterns reports the first malformed glob
func ValidatePatterns(patterns ...[]string) error {
	for _, list := range patterns {
		for _, p := range list {
			if !doublestar.ValidatePattern(p) {
				return fmt.Errorf("invalid glob pattern %q", p)
			}
		}
	}
	return nil
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// discoverFiles walks root in lexical order, skipping hidden and excluded
// directories and files that do not match the include globs
func discoverFiles(root string, cfg Config) ([]fileJob, error) {
	var files []fileJob

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || matchAny(cfg.Exclude, rel) || matchAny(cfg.Exclude, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if matchAny(cfg.Exclude, rel) {
			return nil
		}
		if len(cfg.Include) > 0 && !matchAny(cfg.Include, rel) {
			return nil
		}

		files = append(files, fileJob{abs: path, rel: rel})
		return nil
	})

	return files, err
}

// indexFiles processes files on a bounded worker pool
func (idx *Indexer) indexFiles(ctx context.Context, files []fileJob, cfg Config, stats *Statistics) error {
	var (
		indexed, skipped, failed int32
		upserted, pruned         int32
		mu                       sync.Mutex // Protect stats.ErrorMessages
	)

	c := chunker.NewWithOptions(chunker.Options{MaxChars: cfg.MaxChars})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, f := range files {
		g.Go(func() error {
			n, p, err := idx.indexFile(gctx, c, f, cfg)
			switch {
			case errors.Is(err, errSkipped):
				atomic.AddInt32(&skipped, 1)
			case err != nil:
				// Cancellation aborts the run; anything else is per-file
				if gctx.Err() != nil {
					return gctx.Err()
				}
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", f.rel, err))
				mu.Unlock()
			default:
				atomic.AddInt32(&indexed, 1)
				atomic.AddInt32(&upserted, int32(n))
				atomic.AddInt32(&pruned, int32(p))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	sort.Strings(stats.ErrorMessages)
	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped = int(skipped)
	stats.FilesFailed = int(failed)
	stats.ChunksUpserted = int(upserted)
	stats.ChunksPruned = int(pruned)
	return nil
}

// errSkipped marks files that are intentionally not indexed
var errSkipped = errors.New("skipped")

// indexFile chunks, embeds and upserts one file, then deletes the file's
// chunks that the new content no longer produces. It returns the number of
// upserted and pruned chunks.
func (idx *Indexer) indexFile(ctx context.Context, c *chunker.Chunker, f fileJob, cfg Config) (int, int, error) {
	info, err := os.Stat(f.abs)
	if err != nil {
		return 0, 0, err
	}
	if info.Size() > cfg.MaxFileSize {
		return 0, 0, errSkipped
	}

	content, err := os.ReadFile(f.abs)
	if err != nil {
		return 0, 0, err
	}

	chunks, err := c.ChunkFile(f.rel, cfg.Collection, content)
	if errors.Is(err, chunker.ErrNotText) {
		return 0, 0, errSkipped
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to chunk file: %w", err)
	}

	items := make([]storage.UpsertItem, 0, len(chunks))
	for start := 0; start < len(chunks); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}
		vectors, err := idx.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to embed chunks: %w", err)
		}
		for i := range batch {
			items = append(items, storage.UpsertItem{Chunk: batch[i], Vector: vectors[i]})
		}
	}

	if err := idx.store.Upsert(ctx, cfg.Collection, items); err != nil {
		return 0, 0, err
	}

	keep := make([]string, len(chunks))
	for i := range chunks {
		keep[i] = chunks[i].ID
	}
	pruned, err := idx.store.DeleteSource(ctx, cfg.Collection, f.rel, keep)
	if err != nil {
		return 0, 0, err
	}

	idx.sink.Emit(ctx, observe.Event{Name: "index.file", Attrs: map[string]any{
		"path":   f.rel,
		"chunks": len(items),
		"pruned": pruned,
	}})
	return len(items), pruned, nil
}

// pruneRemoved deletes every stored source of the collection that was not
// discovered in this run
func (idx *Indexer) pruneRemoved(ctx context.Context, collection string, files []fileJob, stats *Statistics) error {
	sources, err := idx.store.ListSources(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[types.NormalizePath(f.rel)] = true
	}

	for _, src := range sources {
		if present[src] {
			continue
		}
		n, err := idx.store.DeleteSource(ctx, collection, src, nil)
		if err != nil {
			return err
		}
		stats.SourcesRemoved++
		stats.ChunksPruned += n
	}
	return nil
}
