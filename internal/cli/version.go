package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/ragctx/internal/storage"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	// Overrides the root hook: no config needed
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ragctx version %s\n", version)
		fmt.Fprintf(out, "Build Time: %s\n", buildTime)
		fmt.Fprintf(out, "Build Mode: %s, SQLite Driver: %s\n", storage.BuildMode, storage.DriverName)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
