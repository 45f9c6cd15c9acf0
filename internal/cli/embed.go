package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed <text...>",
	Short: "Embed text with the configured provider and print the vector",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	vectors, err := a.embedder.Embed(cmd.Context(), []string{strings.Join(args, " ")})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "provider: %s, model: %s, dimension: %d\n",
		a.embedder.Provider(), a.embedder.Model(), len(vectors[0]))
	return json.NewEncoder(out).Encode(vectors[0])
}
