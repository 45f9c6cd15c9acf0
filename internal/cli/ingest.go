package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	ingestCollection  string
	ingestInclude     []string
	ingestExclude     []string
	ingestKeepRemoved bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <root>",
	Short: "Index a directory tree into a collection",
	Long: `Walks root, splits files into chunks (markdown sections, Go declarations,
text paragraphs), embeds them and upserts them into the collection. Chunks of
files that changed or disappeared since the last run are pruned.

Examples:
  ragctx ingest ./docs --collection docs
  ragctx ingest . -c repo --include '**/*.md' --include '**/*.go'`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestCollection, "collection", "c", "", "collection name")
	ingestCmd.Flags().StringSliceVar(&ingestInclude, "include", nil, "glob of files to index (repeatable)")
	ingestCmd.Flags().StringSliceVar(&ingestExclude, "exclude", nil, "glob of files to skip (repeatable)")
	ingestCmd.Flags().BoolVar(&ingestKeepRemoved, "keep-removed", false, "keep chunks of files no longer on disk")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	collection, err := collectionOrDefault(ingestCollection)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	icfg := cfg.IndexerConfig(collection)
	if len(ingestInclude) > 0 {
		icfg.Include = ingestInclude
	}
	if len(ingestExclude) > 0 {
		icfg.Exclude = ingestExclude
	}
	icfg.KeepRemoved = ingestKeepRemoved

	stats, err := a.indexer.Index(cmd.Context(), args[0], icfg)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %d files into %q (%d skipped, %d failed)\n",
		stats.FilesIndexed, collection, stats.FilesSkipped, stats.FilesFailed)
	fmt.Fprintf(out, "Chunks: %d upserted, %d pruned; sources removed: %d\n",
		stats.ChunksUpserted, stats.ChunksPruned, stats.SourcesRemoved)
	fmt.Fprintf(out, "Duration: %s\n", stats.Duration.Round(time.Millisecond))
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(cmd.ErrOrStderr(), "  error: %s\n", msg)
	}
	return nil
}
