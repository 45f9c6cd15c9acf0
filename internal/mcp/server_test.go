package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragctx/internal/embedder"
	"github.com/dshills/ragctx/internal/indexer"
	"github.com/dshills/ragctx/internal/searcher"
	"github.com/dshills/ragctx/internal/storage"
)

func newTestServer(t *testing.T, defaultCollection string) *Server {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	// One embedder shared by indexer and searcher
	emb := embedder.NewCached(embedder.NewLocalProvider(64), embedder.NewCache(100))
	srch, err := searcher.NewSearcher(searcher.Config{Store: store, Embedder: emb, Options: searcher.DefaultOptions()})
	require.NoError(t, err)

	s, err := NewServer(Config{
		Storage:           store,
		Searcher:          srch,
		Indexer:           indexer.New(store, emb, nil),
		DefaultCollection: defaultCollection,
	})
	require.NoError(t, err)
	return s
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func decode(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected *MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func writeRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"apps/docs/app/adr/0001-migrations.md": "# Migrations\n\nDatabase schema migrations are applied with goose before each deploy. The history table is versioned.\n",
		"apps/web/button.md":                   "# Button\n\nThe button component renders a styled clickable element using design tokens for color and spacing.\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestNewServer_RequiresComponents(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}

func TestIndexThenRetrieve(t *testing.T) {
	s := newTestServer(t, "")
	ctx := context.Background()
	root := writeRepo(t)

	result, err := s.handleIndexCollection(ctx, call(map[string]interface{}{
		"path":       root,
		"collection": "docs",
	}))
	require.NoError(t, err)
	indexed := decode(t, result)
	assert.Equal(t, true, indexed["indexed"])
	assert.Equal(t, float64(2), indexed["files_indexed"])

	result, err = s.handleRetrieveContext(ctx, call(map[string]interface{}{
		"query":      "How are database migrations handled?",
		"collection": "docs",
	}))
	require.NoError(t, err)
	out := decode(t, result)

	assert.Equal(t, "migrations", out["intent"])
	items, ok := out["items"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, items)
	first := items[0].(map[string]interface{})
	assert.Equal(t, "apps/docs/app/adr/0001-migrations.md", first["source"])
	assert.Equal(t, float64(1), first["rank"])
	assert.Contains(t, out["context"], "[1] apps/docs/app/adr/0001-migrations.md")

	result, err = s.handleGetStatus(ctx, call(map[string]interface{}{"collection": "docs"}))
	require.NoError(t, err)
	status := decode(t, result)
	assert.Equal(t, true, status["indexed"])
	assert.Equal(t, float64(2), status["sources"])
}

func TestRetrieve_UnknownCollectionIsEmpty(t *testing.T) {
	s := newTestServer(t, "")
	result, err := s.handleRetrieveContext(context.Background(), call(map[string]interface{}{
		"query":      "anything",
		"collection": "missing",
	}))
	require.NoError(t, err)
	out := decode(t, result)
	assert.Empty(t, out["items"])
	assert.Equal(t, "", out["context"])
}

func TestRetrieve_Validation(t *testing.T) {
	s := newTestServer(t, "")
	ctx := context.Background()

	var req mcp.CallToolRequest
	req.Params.Arguments = "not a map"
	_, err := s.handleRetrieveContext(ctx, req)
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleRetrieveContext(ctx, call(map[string]interface{}{"query": "", "collection": "docs"}))
	requireMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleRetrieveContext(ctx, call(map[string]interface{}{"query": "q"}))
	requireMCPError(t, err, ErrorCodeCollectionRequired)

	_, err = s.handleRetrieveContext(ctx, call(map[string]interface{}{"query": "q", "collection": "docs", "max_chunks": float64(0)}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleRetrieveContext(ctx, call(map[string]interface{}{"query": "q", "collection": "docs", "mmr_lambda": float64(2)}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestRetrieve_DefaultCollection(t *testing.T) {
	s := newTestServer(t, "docs")
	result, err := s.handleRetrieveContext(context.Background(), call(map[string]interface{}{"query": "q"}))
	require.NoError(t, err)
	assert.Equal(t, "docs", decode(t, result)["collection"])
}

func TestIndex_Validation(t *testing.T) {
	s := newTestServer(t, "docs")
	ctx := context.Background()

	_, err := s.handleIndexCollection(ctx, call(map[string]interface{}{}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleIndexCollection(ctx, call(map[string]interface{}{"path": "relative/dir"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = s.handleIndexCollection(ctx, call(map[string]interface{}{"path": file}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleIndexCollection(ctx, call(map[string]interface{}{
		"path":    t.TempDir(),
		"include": []interface{}{"[bad"},
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestGetStatus_AllCollections(t *testing.T) {
	s := newTestServer(t, "")
	ctx := context.Background()

	result, err := s.handleGetStatus(ctx, call(map[string]interface{}{"collection": "none"}))
	require.NoError(t, err)
	assert.Equal(t, false, decode(t, result)["indexed"])

	root := writeRepo(t)
	for _, c := range []string{"b", "a"} {
		_, err := s.handleIndexCollection(ctx, call(map[string]interface{}{"path": root, "collection": c}))
		require.NoError(t, err)
	}

	result, err = s.handleGetStatus(ctx, call(nil))
	require.NoError(t, err)
	body := decode(t, result)
	collections, ok := body["collections"].([]interface{})
	require.True(t, ok)
	require.Len(t, collections, 2)
	assert.NotContains(t, body, "indexing")
	assert.Equal(t, "a", collections[0].(map[string]interface{})["collection"])
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, validatePath(dir))
	assert.ErrorIs(t, validatePath("rel"), ErrPathNotAbsolute)
	assert.ErrorIs(t, validatePath(filepath.Join(dir, "missing")), ErrPathNotFound)
}
