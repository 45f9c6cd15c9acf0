package searcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragctx/internal/embedder"
	"github.com/dshills/ragctx/internal/observe"
	"github.com/dshills/ragctx/internal/selector"
	"github.com/dshills/ragctx/internal/storage"
	"github.com/dshills/ragctx/pkg/types"
)

// mockEmbedder implements the Embedder interface for testing
type mockEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), m.vector...)
	}
	return out, nil
}

func (m *mockEmbedder) Dimension() int   { return len(m.vector) }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

var body = strings.Repeat("Relevant prose about the system. ", 5)

func setupTestSearcher(t *testing.T, emb embedder.Embedder, opts Options) (*Searcher, *storage.SQLiteStorage, *observe.Recorder) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rec := &observe.Recorder{}
	s, err := NewSearcher(Config{Store: store, Embedder: emb, Sink: rec, Options: opts})
	require.NoError(t, err)
	return s, store, rec
}

func upsert(t *testing.T, store storage.Storage, path, section, text string, vec ...float32) types.Chunk {
	t.Helper()
	c := types.NewChunk("docs", path, types.SourceMarkdown, section, 0, text)
	require.NoError(t, store.Upsert(context.Background(), "docs", []storage.UpsertItem{{Chunk: c, Vector: vec}}))
	return c
}

func TestNewSearcher_RequiresDeps(t *testing.T) {
	_, err := NewSearcher(Config{Embedder: &mockEmbedder{}})
	assert.Error(t, err)
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()
	_, err = NewSearcher(Config{Store: store})
	assert.Error(t, err)
}

func TestSearch_MigrationsScenario(t *testing.T) {
	emb := &mockEmbedder{vector: []float32{1, 0}}
	s, store, rec := setupTestSearcher(t, emb, DefaultOptions())

	// Unrelated chunks score higher than the ADR
	for i, p := range []string{"apps/web/a.md", "apps/web/b.md", "apps/api/c.md", "apps/api/d.md", "apps/web/e.md"} {
		upsert(t, store, p, "", body, 1, float32(i)*0.01)
	}
	adr := upsert(t, store, "apps/docs/app/adr/0001-migrations.md", "Decision", body, 0.3, 1)

	resp, err := s.Search(context.Background(), Request{Query: "How are database migrations handled?", Collection: "docs"})
	require.NoError(t, err)

	assert.Equal(t, types.IntentMigrations, resp.Plan.Intent)
	require.NotEmpty(t, resp.Items)
	assert.Equal(t, adr.ID, resp.Items[0].Chunk.ID)
	assert.Less(t, resp.Items[0].Similarity, resp.Items[1].Similarity)

	top3 := resp.Sources()
	if len(top3) > 3 {
		top3 = top3[:3]
	}
	assert.Contains(t, top3, "apps/docs/app/adr/0001-migrations.md#Decision")
	assert.True(t, strings.HasPrefix(resp.Context, "[1] apps/docs/app/adr/0001-migrations.md#Decision (similarity "))
	assert.Equal(t, selector.StagePrimary, resp.Stage)
	assert.Len(t, rec.Named("search.complete"), 1)
	for _, it := range resp.Items {
		assert.Nil(t, it.Vector)
	}
}

func TestSearch_EmptyCollection(t *testing.T) {
	s, _, _ := setupTestSearcher(t, &mockEmbedder{vector: []float32{1, 0}}, DefaultOptions())

	resp, err := s.Search(context.Background(), Request{Query: "anything at all", Collection: "missing"})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, "", resp.Context)
	assert.Equal(t, selector.StageEmpty, resp.Stage)
}

func TestSearch_EmptyQuery(t *testing.T) {
	emb := &mockEmbedder{vector: []float32{1, 0}}
	s, _, _ := setupTestSearcher(t, emb, DefaultOptions())

	resp, err := s.Search(context.Background(), Request{Query: "   ", Collection: "docs"})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, "", resp.Context)
	assert.Equal(t, types.IntentGeneral, resp.Plan.Intent)
	assert.Zero(t, emb.calls, "empty queries are not embedded")
}

func TestSearch_EmbedderError(t *testing.T) {
	boom := errors.New("unreachable")
	s, _, _ := setupTestSearcher(t, &mockEmbedder{err: boom}, DefaultOptions())

	_, err := s.Search(context.Background(), Request{Query: "hello", Collection: "docs"})
	assert.ErrorIs(t, err, boom)
}

func TestSearch_FallbackOnShortPool(t *testing.T) {
	s, store, _ := setupTestSearcher(t, &mockEmbedder{vector: []float32{1, 0}}, DefaultOptions())
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		upsert(t, store, p, "", "tiny", 1, 0)
	}

	resp, err := s.Search(context.Background(), Request{Query: "what is this", Collection: "docs"})
	require.NoError(t, err)
	assert.Equal(t, selector.StageRaw, resp.Stage)
	assert.Len(t, resp.Items, 3)
	assert.NotEmpty(t, resp.Context)
}

func TestSearch_MMR(t *testing.T) {
	opts := DefaultOptions()
	opts.MMR = true
	opts.MMRLambda = 0.3
	opts.MinSimilarity = 0
	opts.Selection.MaxChunks = 2
	opts.Selection.MaxPerSource = 0
	s, store, rec := setupTestSearcher(t, &mockEmbedder{vector: []float32{1, 0}}, opts)

	upsert(t, store, "a.md", "One", body, 1, 0)
	upsert(t, store, "b.md", "Dup", body+" again", 1, 0.01)
	upsert(t, store, "c.md", "Other", body+" elsewhere", 0.6, 0.8)

	resp, err := s.Search(context.Background(), Request{Query: "explain things", Collection: "docs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md#One", "c.md#Other"}, resp.Sources())
	assert.Len(t, rec.Named("search.mmr"), 1)
	for _, it := range resp.Items {
		assert.Nil(t, it.Vector, "vectors are dropped after diversification")
	}
}

func TestSearch_MMRFloorFallsBack(t *testing.T) {
	opts := DefaultOptions()
	opts.MMR = true
	opts.MinSimilarity = 0.99
	s, store, _ := setupTestSearcher(t, &mockEmbedder{vector: []float32{1, 0}}, opts)
	upsert(t, store, "a.md", "", body, 0.5, 0.5)

	resp, err := s.Search(context.Background(), Request{Query: "explain", Collection: "docs"})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
}

func TestSearch_RequestOptionsOverride(t *testing.T) {
	s, store, _ := setupTestSearcher(t, &mockEmbedder{vector: []float32{1, 0}}, DefaultOptions())
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		upsert(t, store, p, "", body, 1, 0)
	}

	opts := s.Options()
	opts.Selection.MaxChunks = 1
	resp, err := s.Search(context.Background(), Request{Query: "q", Collection: "docs", Options: &opts})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
}

func TestMergePrefixes(t *testing.T) {
	assert.Equal(t, []string{"a/", "b/", "c/"}, mergePrefixes([]string{"a/", "b/"}, []string{"b/", "c/"}))
	assert.Empty(t, mergePrefixes(nil, nil))
}
