package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/ragctx/internal/evaluator"
)

var (
	evalKs         []int
	evalJSON       bool
	evalParallel   int
	evalCollection string
	evalShowCases  bool
)

var evalCmd = &cobra.Command{
	Use:   "eval <cases.jsonl>",
	Short: "Measure hit@k over a labeled query set",
	Long: `Each line of the file is a JSON object:

  {"id": "m1", "q": "how are migrations applied", "collection": "repo", "mustContain": ["db/migrations/"]}

A case hits at k when any of its first k sources contains one of the
mustContain labels.`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().IntSliceVar(&evalKs, "k", evaluator.DefaultKs, "cutoffs to report")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "print the report as JSON")
	evalCmd.Flags().IntVar(&evalParallel, "parallel", 1, "cases evaluated concurrently")
	evalCmd.Flags().StringVarP(&evalCollection, "collection", "c", "", "collection for cases that do not name one")
	evalCmd.Flags().BoolVar(&evalShowCases, "cases", false, "list per-case results")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	cases, err := evaluator.LoadCases(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ev := evaluator.New(a.searcher, a.sink)
	ev.Parallelism = evalParallel
	ev.DefaultCollection = evalCollection
	if ev.DefaultCollection == "" {
		ev.DefaultCollection = cfg.Storage.DefaultCollection
	}

	report, err := ev.Evaluate(cmd.Context(), cases, evalKs)
	if err != nil {
		return err
	}

	if evalJSON {
		return report.WriteJSON(cmd.OutOrStdout())
	}
	return report.Format(cmd.OutOrStdout(), evalShowCases)
}
