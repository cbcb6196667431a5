package handlers

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"swotlens/internal/analysis"
	"swotlens/internal/batch"
	"swotlens/internal/config"
	"swotlens/internal/cost"
	"swotlens/internal/llm"
	"swotlens/internal/logger"
)

// NewPlanCmd creates the plan command
func NewPlanCmd() *cobra.Command {
	var (
		batchSize   int
		scope       string
		source      string
		competitors []string
	)

	planCmd := &cobra.Command{
		Use:   "plan [files...]",
		Short: "Show how reviews would be batched without calling the model",
		Long: `Load review files and print the batch plan and prompt statistics that analyze
would use, followed by a token and cost estimate. No model is called.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runPlan(config.Get(), args, competitors, batchSize, scope, source, cmd.OutOrStdout()); err != nil {
				logger.Error("Failed to plan batches", err)
				os.Exit(1)
			}
		},
	}

	planCmd.Flags().IntVar(&batchSize, "batch-size", 0, "reviews per model call (default from config)")
	planCmd.Flags().StringVar(&scope, "scope", "", "category scope: split or full")
	planCmd.Flags().StringSliceVar(&competitors, "competitor", nil, "review file of competitor reviews (repeatable)")
	planCmd.Flags().StringVar(&source, "source", "", "source for rows without one: MY_SHOP or COMPETITOR")

	return planCmd
}

func runPlan(cfg *config.Config, files, competitors []string, batchSize int, scope, source string, w io.Writer) error {
	reviews, err := loadReviews(files, competitors, source)
	if err != nil {
		return err
	}
	if batchSize == 0 {
		batchSize = cfg.Analysis.BatchSize
	}
	policy, err := batch.ParseScopePolicy(firstNonEmpty(scope, cfg.Analysis.Scope))
	if err != nil {
		return err
	}

	batches, err := batch.Plan(reviews, batchSize, policy)
	if err != nil {
		return err
	}

	gemini := cfg.AI.Gemini
	gen := llm.GenerationConfig{MaxOutputTokens: gemini.MaxTokens, Temperature: gemini.Temperature, JSONMode: gemini.JSONMode}
	calls := make([]cost.Call, len(batches))

	fmt.Fprintln(w, batch.StatsHeader(reviews))
	fmt.Fprintf(w, "%d batches of up to %d reviews\n\n", len(batches), batchSize)
	for i, b := range batches {
		fmt.Fprintf(w, "%2d. %-24s %4d reviews  scope: %v\n", b.Index+1, b.Label(), len(b.Records), b.Scope)
		calls[i] = cost.Call{Label: b.Label(), Request: analysis.BatchRequest(b, gen)}
	}

	model := cost.DefaultModel
	policy := llm.ModelPolicy{Candidates: gemini.Models, Fallback: gemini.FallbackModel}
	if models := policy.Models(); len(models) > 0 {
		model = models[0]
	}
	estimate := cost.EstimateRun(calls, model, cfg.Analysis.Resummarize, gemini.RequestsPerMinute)
	fmt.Fprintf(w, "\n%s", estimate.FormatEstimate())
	return nil
}
