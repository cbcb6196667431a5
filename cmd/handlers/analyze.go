package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"swotlens/internal/analysis"
	"swotlens/internal/batch"
	"swotlens/internal/config"
	"swotlens/internal/core"
	"swotlens/internal/ingest"
	"swotlens/internal/llm"
	"swotlens/internal/logger"
	"swotlens/internal/render"
	"swotlens/internal/store"
)

// analyzeOptions holds analyze flags. Zero values fall back to config.
type analyzeOptions struct {
	files       []string
	competitors []string
	batchSize   int
	mode        string
	scope       string
	timeout     time.Duration
	output      string
	outFile     string
	save        bool
	source      string
	resummarize bool
}

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Run a SWOT analysis over review files",
		Long: `Load reviews from CSV or JSON files, analyze them in batches with Gemini, and
print the merged SWOT report.

Rows without a source column are MY_SHOP reviews unless --source says
otherwise. Files passed with --competitor are COMPETITOR reviews.

Examples:
  swotlens analyze reviews.csv
  swotlens analyze my_shop.csv --competitor rivals.csv --mode strict --output text
  swotlens analyze data.json --batch-size 200 --timeout 5m --save`,
		Run: func(cmd *cobra.Command, args []string) {
			opts.files = args
			cfg := config.Get()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			apiKey, err := cfg.RequireGeminiAPIKey()
			if err != nil {
				logger.Error("Missing API key", err)
				os.Exit(1)
			}
			client, err := llm.NewClient(ctx, apiKey)
			if err != nil {
				logger.Error("Failed to create Gemini client", err)
				os.Exit(1)
			}

			if err := runAnalyze(ctx, cfg, opts, client, cmd.OutOrStdout()); err != nil {
				logger.Error("Analysis failed", err)
				os.Exit(1)
			}
		},
	}

	analyzeCmd.Flags().StringSliceVar(&opts.competitors, "competitor", nil, "review file of competitor reviews (repeatable)")
	analyzeCmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "reviews per model call (default from config, 500)")
	analyzeCmd.Flags().StringVar(&opts.mode, "mode", "", "failure mode: resilient skips failed batches, strict aborts")
	analyzeCmd.Flags().StringVar(&opts.scope, "scope", "", "category scope: split limits each source to its categories, full asks for all four")
	analyzeCmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "overall run timeout (default from config, 15m)")
	analyzeCmd.Flags().StringVarP(&opts.output, "output", "o", "json", "output format: json, text or markdown")
	analyzeCmd.Flags().StringVar(&opts.outFile, "out", "", "write the report to this file instead of stdout")
	analyzeCmd.Flags().BoolVar(&opts.save, "save", false, "persist the report in the report store")
	analyzeCmd.Flags().StringVar(&opts.source, "source", "", "source for rows without one: MY_SHOP or COMPETITOR")
	analyzeCmd.Flags().BoolVar(&opts.resummarize, "resummarize", false, "condense batch summaries with an extra model call")

	return analyzeCmd
}

// runAnalyze loads reviews, runs the analysis through gen and writes the report
func runAnalyze(ctx context.Context, cfg *config.Config, opts analyzeOptions, gen llm.Generator, w io.Writer) error {
	reviews, err := loadReviews(opts.files, opts.competitors, opts.source)
	if err != nil {
		return err
	}

	mode, err := analysis.ParseMode(firstNonEmpty(opts.mode, cfg.Analysis.Mode))
	if err != nil {
		return err
	}
	orchestrator, err := newOrchestrator(cfg, opts, gen)
	if err != nil {
		return err
	}

	batchSize := opts.batchSize
	if batchSize == 0 {
		batchSize = cfg.Analysis.BatchSize
	}
	timeout := opts.timeout
	if timeout == 0 {
		timeout = config.Duration(cfg.Analysis.RunTimeout)
	}

	run := orchestrator.Start(ctx, reviews, batchSize, mode, timeout)
	report, err := run.Wait()
	if err != nil {
		return err
	}
	if report.Run.Skipped > 0 {
		logger.Warn("Report is incomplete", "skipped", report.Run.Skipped, "batches", report.Run.Batches)
	}

	if opts.save && cfg.Store.Enabled {
		if err := saveReport(ctx, cfg, report); err != nil {
			return err
		}
		logger.Info("Report saved", "id", report.Run.ID)
	}

	return writeReport(report, opts.output, opts.outFile, w)
}

// newOrchestrator wires the invoker and orchestrator from config
func newOrchestrator(cfg *config.Config, opts analyzeOptions, gen llm.Generator) (*analysis.Orchestrator, error) {
	scope, err := batch.ParseScopePolicy(firstNonEmpty(opts.scope, cfg.Analysis.Scope))
	if err != nil {
		return nil, err
	}

	gemini := cfg.AI.Gemini
	policy := llm.ModelPolicy{Candidates: gemini.Models, Fallback: gemini.FallbackModel}
	if len(policy.Models()) == 0 {
		policy = llm.DefaultPolicy()
	}

	log := logger.Get()
	invoker := llm.NewInvoker(llm.NewTracedGenerator(gen, log), policy,
		llm.WithMaxAttempts(cfg.Analysis.MaxAttempts),
		llm.WithBaseDelay(config.Duration(cfg.Analysis.BaseDelay)),
		llm.WithAttemptTimeout(config.Duration(gemini.Timeout)),
		llm.WithRequestsPerMinute(gemini.RequestsPerMinute),
		llm.WithLogger(log),
	)

	ac := analysis.DefaultConfig()
	ac.Scope = scope
	ac.Generation = llm.GenerationConfig{
		MaxOutputTokens: gemini.MaxTokens,
		Temperature:     gemini.Temperature,
		JSONMode:        gemini.JSONMode,
	}
	ac.SummaryBudget = cfg.Analysis.SummaryBudget
	ac.MaxSummaries = cfg.Analysis.MaxSummaries
	ac.Resummarize = cfg.Analysis.Resummarize || opts.resummarize

	return analysis.NewOrchestrator(invoker, ac, analysis.WithLogger(log)), nil
}

func loadReviews(files, competitors []string, source string) ([]core.ReviewRecord, error) {
	if len(files)+len(competitors) == 0 {
		return nil, errors.New("at least one review file is required")
	}

	var loaderOpts []ingest.Option
	if source != "" {
		s, err := core.ParseSource(source)
		if err != nil {
			return nil, err
		}
		loaderOpts = append(loaderOpts, ingest.WithDefaultSource(s))
	}
	loader := ingest.NewLoader(loaderOpts...)

	reviews, _, err := loader.LoadFiles(files...)
	if err != nil {
		return nil, err
	}
	for _, path := range competitors {
		records, _, err := loader.LoadFileAs(path, core.SourceCompetitor)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, records...)
	}

	if len(reviews) == 0 {
		return nil, errors.New("no usable reviews found in the input files")
	}
	return reviews, nil
}

func saveReport(ctx context.Context, cfg *config.Config, report *core.AggregatedReport) error {
	reportStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := reportStore.Close(); err != nil {
			logger.Error("Failed to close report store", err)
		}
	}()
	return reportStore.SaveReport(ctx, report)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	s, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report store: %w", err)
	}
	return s, nil
}

// writeReport renders to outFile when set, otherwise to w
func writeReport(report *core.AggregatedReport, format, outFile string, w io.Writer) error {
	if outFile == "" {
		return render.Write(w, report, format)
	}

	var sb strings.Builder
	if err := render.Write(&sb, report, format); err != nil {
		return err
	}
	path, err := render.WriteToFile(sb.String(), filepath.Dir(outFile), filepath.Base(outFile))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", path)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
