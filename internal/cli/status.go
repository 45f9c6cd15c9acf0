package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/ragctx/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status [collection...]",
	Short: "Show stored collections",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	names := args
	if len(names) == 0 {
		names, err = a.store.ListCollections(cmd.Context())
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No collections indexed.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tSOURCES\tCHUNKS\tDIMENSION")
	for _, name := range names {
		st, err := a.store.Status(cmd.Context(), name)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(w, "%s\t-\t0\t-\n", name)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", st.Collection, st.Sources, st.Chunks, st.Dimension)
	}
	return w.Flush()
}
