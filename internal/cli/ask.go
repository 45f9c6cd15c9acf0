package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/ragctx/internal/generator"
	"github.com/dshills/ragctx/internal/searcher"
)

var (
	askCollection string
	askNoGenerate bool
	askJSON       bool
	askMMR        bool
	askMaxChunks  int
)

var askCmd = &cobra.Command{
	Use:   "ask <query...>",
	Short: "Retrieve context for a question and optionally answer it",
	Long: `Routes the question to an intent, retrieves and selects passages from the
collection and prints the rendered context with its sources. When an OpenAI
key is configured the context is also sent to the chat model for an answer.

Examples:
  ragctx ask -c repo "how are migrations applied"
  ragctx ask -c repo --no-generate --json "where is auth middleware"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askCollection, "collection", "c", "", "collection to search")
	askCmd.Flags().BoolVar(&askNoGenerate, "no-generate", false, "print the context only, skip the chat model")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the result as JSON")
	askCmd.Flags().BoolVar(&askMMR, "mmr", false, "diversify candidates with MMR")
	askCmd.Flags().IntVar(&askMaxChunks, "max-chunks", 0, "maximum passages in the context (0 uses config)")
	rootCmd.AddCommand(askCmd)
}

type askResult struct {
	Query      string   `json:"query"`
	Collection string   `json:"collection"`
	Intent     string   `json:"intent"`
	Prefixes   []string `json:"prefixes"`
	Stage      string   `json:"stage"`
	Context    string   `json:"context"`
	Sources    []string `json:"sources"`
	Answer     string   `json:"answer,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	collection, err := collectionOrDefault(askCollection)
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	opts := a.searcher.Options()
	if askMMR {
		opts.MMR = true
	}
	if askMaxChunks > 0 {
		opts.Selection.MaxChunks = askMaxChunks
	}

	resp, err := a.searcher.Search(cmd.Context(), searcher.Request{
		Query:      query,
		Collection: collection,
		Options:    &opts,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	result := askResult{
		Query:      query,
		Collection: collection,
		Intent:     string(resp.Plan.Intent),
		Prefixes:   resp.Plan.Prefixes,
		Stage:      string(resp.Stage),
		Context:    resp.Context,
		Sources:    resp.Sources(),
	}

	if !askNoGenerate && cfg.OpenAIKey != "" {
		gen, err := generator.New(cfg.GeneratorConfig())
		if err != nil {
			return err
		}
		answer, err := gen.Generate(cmd.Context(), query, resp.Context)
		if err != nil {
			return fmt.Errorf("generation failed: %w", err)
		}
		result.Answer = answer
	} else if !askNoGenerate {
		logger.Debug("no OpenAI key configured, skipping generation")
	}

	out := cmd.OutOrStdout()
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "Intent: %s\n", result.Intent)
	if len(result.Prefixes) > 0 {
		fmt.Fprintf(out, "Prefixes: %s\n", strings.Join(result.Prefixes, ", "))
	}
	fmt.Fprintf(out, "Selection: %s (%d of %d candidates)\n\n", result.Stage, len(resp.Items), resp.Candidates)
	if result.Answer != "" {
		fmt.Fprintf(out, "%s\n\n", result.Answer)
	} else if result.Context != "" {
		fmt.Fprintf(out, "%s\n\n", result.Context)
	} else {
		fmt.Fprintln(out, "No relevant passages found.")
	}
	if len(result.Sources) > 0 {
		fmt.Fprintln(out, "Sources:")
		for i, src := range result.Sources {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, src)
		}
	}
	return nil
}
