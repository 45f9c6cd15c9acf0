package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/ragctx/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Serves the retrieve_context, index_collection and get_status tools over
the Model Context Protocol on stdin/stdout. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := mcp.NewServer(mcp.Config{
		Storage:           a.store,
		Searcher:          a.searcher,
		Indexer:           a.indexer,
		DefaultCollection: cfg.Storage.DefaultCollection,
		IndexConfig:       cfg.IndexerConfig,
	})
	if err != nil {
		return err
	}

	logger.Info("mcp server starting", "name", mcp.ServerName, "version", mcp.ServerVersion)
	return srv.Serve(cmd.Context())
}
