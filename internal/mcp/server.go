package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/ragctx/internal/indexer"
	"github.com/dshills/ragctx/internal/searcher"
	"github.com/dshills/ragctx/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "ragctx"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Config holds the server's collaborators. The indexer and searcher should
// share one embedder so that chunk embeddings cached during indexing serve
// later queries.
type Config struct {
	Storage  storage.Storage
	Searcher *searcher.Searcher
	Indexer  *indexer.Indexer

	// DefaultCollection is used when a tool call names none
	DefaultCollection string
	// IndexConfig builds the indexer settings for a collection; nil uses defaults
	IndexConfig func(collection string) indexer.Config
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp               *server.MCPServer
	storage           storage.Storage
	indexer           *indexer.Indexer
	searcher          *searcher.Searcher
	defaultCollection string
	indexConfig       func(collection string) indexer.Config
}

// NewServer creates a new MCP server instance
func NewServer(cfg Config) (*Server, error) {
	if cfg.Storage == nil || cfg.Searcher == nil || cfg.Indexer == nil {
		return nil, errors.New("storage, searcher and indexer are required")
	}

	indexConfig := cfg.IndexConfig
	if indexConfig == nil {
		indexConfig = func(collection string) indexer.Config {
			return indexer.Config{Collection: collection}
		}
	}

	s := &Server{
		mcp:               server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage:           cfg.Storage,
		indexer:           cfg.Indexer,
		searcher:          cfg.Searcher,
		defaultCollection: cfg.DefaultCollection,
		indexConfig:       indexConfig,
	}

	s.registerTools()
	return s, nil
}

// Serve runs the MCP protocol on stdio until the client disconnects or ctx
// is canceled. It does not close the storage; the caller owns it.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeStdio(s.mcp)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(retrieveContextTool(), s.handleRetrieveContext)
	s.mcp.AddTool(indexCollectionTool(), s.handleIndexCollection)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
