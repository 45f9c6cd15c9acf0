package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragctx/internal/searcher"
	"github.com/dshills/ragctx/pkg/types"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_MatchesSearcherDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, searcher.DefaultOptions(), cfg.SearchOptions())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[storage]
path = "/tmp/test.db"
default_collection = "docs"

[embedder]
provider = "local"
dimension = 128

[retrieval]
target_size = 40
mmr = true
mmr_lambda = 0.5

[selection]
max_chunks = 5
drop_status_sections = false

[router.prefixes]
migrations = ["db/migrations/", "docs/adr/"]

[indexer]
include = ["**/*.md"]
workers = 3
`)

	cfg, err := load(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.Storage.Path)
	assert.Equal(t, "docs", cfg.Storage.DefaultCollection)
	assert.Equal(t, "local", cfg.Embedder.Provider)
	assert.Equal(t, 128, cfg.Embedder.Dimension)

	opts := cfg.SearchOptions()
	assert.Equal(t, 40, opts.TargetSize)
	assert.True(t, opts.MMR)
	assert.Equal(t, 0.5, opts.MMRLambda)
	assert.Equal(t, 0.2, opts.MinSimilarity, "unset keys keep defaults")
	assert.Equal(t, 5, opts.Selection.MaxChunks)
	assert.Equal(t, 2, opts.Selection.MaxPerSource)
	assert.False(t, opts.Selection.DropStatusSections)

	assert.Equal(t, map[types.Intent][]string{
		types.IntentMigrations: {"db/migrations/", "docs/adr/"},
	}, cfg.RouterPrefixes())

	ic := cfg.IndexerConfig("docs")
	assert.Equal(t, "docs", ic.Collection)
	assert.Equal(t, []string{"**/*.md"}, ic.Include)
	assert.Equal(t, 3, ic.Workers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "[storage]\npath = \"/from/file.db\"\n")

	cfg, err := load(path, env(map[string]string{
		EnvDBPath:            "/from/env.db",
		EnvEmbeddingProvider: "openai",
		EnvOpenAIKey:         "sk-test",
		EnvJinaKey:           "jina-test",
		EnvChatModel:         "gpt-test",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/from/env.db", cfg.Storage.Path)

	ec := cfg.EmbedderConfig()
	assert.Equal(t, "openai", ec.Provider)
	assert.Equal(t, "sk-test", ec.OpenAIKey)
	assert.Equal(t, "jina-test", ec.JinaKey)
	assert.Equal(t, 30*time.Second, ec.Timeout)

	gc := cfg.GeneratorConfig()
	assert.Equal(t, "gpt-test", gc.Model)
	assert.Equal(t, "sk-test", gc.APIKey)
}

func TestLoad_MissingFiles(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.toml"), env(nil))
	assert.Error(t, err, "explicit path must exist")

	t.Setenv("HOME", t.TempDir())
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultDBPath, cfg.Storage.Path)
}

func TestLoad_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ragctx"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ragctx", "config.toml"), []byte("[retrieval]\ntarget_size = 12\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Retrieval.TargetSize)
}

func TestLoad_ParseError(t *testing.T) {
	_, err := load(writeConfig(t, "[storage\npath = "), env(nil))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"provider", func(c *Config) { c.Embedder.Provider = "cohere" }, "embedder.provider"},
		{"target size", func(c *Config) { c.Retrieval.TargetSize = 0 }, "target_size"},
		{"lambda", func(c *Config) { c.Retrieval.MMRLambda = 1.5 }, "mmr_lambda"},
		{"min similarity", func(c *Config) { c.Retrieval.MinSimilarity = -2 }, "min_similarity"},
		{"intent", func(c *Config) { c.Router.Prefixes = map[string][]string{"general": {"x/"}} }, "unknown intent"},
		{"glob", func(c *Config) { c.Indexer.Exclude = []string{"[bad"} }, "invalid glob"},
		{"path", func(c *Config) { c.Storage.Path = " " }, "storage.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandHome("~/.ragctx/ragctx.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ragctx", "ragctx.db"), got)

	got, err = ExpandHome("/abs/path.db")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path.db", got)

	got, err = ExpandHome(":memory:")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", got)
}
