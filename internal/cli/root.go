// Package cli implements the ragctx command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/ragctx/internal/config"
	"github.com/dshills/ragctx/internal/embedder"
	"github.com/dshills/ragctx/internal/indexer"
	"github.com/dshills/ragctx/internal/observe"
	"github.com/dshills/ragctx/internal/router"
	"github.com/dshills/ragctx/internal/searcher"
	"github.com/dshills/ragctx/internal/storage"
)

// Set at build time with -ldflags "-X github.com/dshills/ragctx/internal/cli.version=..."
var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragctx",
	Short: "Routed retrieval and context selection for codebase questions",
	Long: `ragctx indexes a codebase into collections and answers natural-language
questions by retrieving, routing and selecting the most relevant passages into a
bounded, citation-ready context.

Configuration is read from --config or ~/.ragctx/config.toml, then overridden
by RAGCTX_DB_PATH, RAGCTX_EMBEDDING_PROVIDER, OPENAI_API_KEY, JINA_API_KEY
and RAGCTX_CHAT_MODEL.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.ragctx/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger = newLogger(cmd.ErrOrStderr(), verbose)

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		loaded.Storage.Path = dbPath
	}
	cfg = loaded
	return nil
}

// newLogger logs text to w; stdout stays free for command output and MCP
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// app bundles the components a command needs. All of them share one store
// and one embedder.
type app struct {
	store    *storage.SQLiteStorage
	embedder embedder.Embedder
	searcher *searcher.Searcher
	indexer  *indexer.Indexer
	sink     observe.Sink
}

func openApp() (*app, error) {
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}

	path, err := cfg.DBPath()
	if err != nil {
		return nil, err
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	sink := observe.NewSlogSink(logger)
	srch, err := searcher.NewSearcher(searcher.Config{
		Store:    store,
		Embedder: emb,
		Router:   router.New(cfg.RouterPrefixes()),
		Sink:     sink,
		Options:  cfg.SearchOptions(),
	})
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		return nil, err
	}

	logger.Debug("components ready",
		"db", path,
		"driver", storage.DriverName,
		"provider", emb.Provider(),
		"model", emb.Model())

	return &app{
		store:    store,
		embedder: emb,
		searcher: srch,
		indexer:  indexer.New(store, emb, sink),
		sink:     sink,
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.embedder.Close(), a.store.Close())
}

// collectionOrDefault returns the flag value or the configured default
func collectionOrDefault(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg.Storage.DefaultCollection != "" {
		return cfg.Storage.DefaultCollection, nil
	}
	return "", errors.New("no collection: pass --collection or set storage.default_collection")
}
