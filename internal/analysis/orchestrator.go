package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"swotlens/internal/batch"
	"swotlens/internal/core"
	"swotlens/internal/llm"
	"swotlens/internal/logger"
	"swotlens/internal/merge"
	"swotlens/internal/recovery"
)

// Mode decides what a failed batch does to the run.
type Mode string

const (
	// ModeResilient skips failed batches and reports how many were skipped.
	ModeResilient Mode = "resilient"
	// ModeStrict aborts on the first failed batch.
	ModeStrict Mode = "strict"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeResilient:
		return ModeResilient, nil
	case ModeStrict:
		return ModeStrict, nil
	}
	return "", fmt.Errorf("unknown analysis mode %q (use resilient or strict)", s)
}

// Invoker sends one request to the model.
type Invoker interface {
	Invoke(ctx context.Context, req llm.Request) (llm.Response, error)
	Model() string
}

// Config holds orchestrator settings.
type Config struct {
	Scope         batch.ScopePolicy
	Generation    llm.GenerationConfig
	SummaryBudget int
	MaxSummaries  int
	Resummarize   bool // Condense batch summaries with an extra model call
}

// DefaultConfig returns the stock settings.
func DefaultConfig() *Config {
	return &Config{
		Scope: batch.ScopeSplit,
		Generation: llm.GenerationConfig{
			MaxOutputTokens: 8192,
			Temperature:     0.4,
			JSONMode:        true,
		},
		SummaryBudget: merge.DefaultSummaryBudget,
		MaxSummaries:  merge.DefaultMaxSummaries,
	}
}

// Orchestrator drives planning, model calls, recovery and merging for one
// review set. Batches run one after another.
type Orchestrator struct {
	invoker  Invoker
	decoder  *recovery.Decoder
	config   *Config
	observer Observer
	log      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers a callback for state changes.
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) { o.observer = observer }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithDecoder replaces the response decoder.
func WithDecoder(d *recovery.Decoder) Option {
	return func(o *Orchestrator) { o.decoder = d }
}

// NewOrchestrator creates an orchestrator. A nil config uses DefaultConfig.
func NewOrchestrator(invoker Invoker, config *Config, opts ...Option) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	o := &Orchestrator{
		invoker: invoker,
		decoder: recovery.NewDecoder(nil),
		config:  config,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.Get()
	}
	return o
}

// Analyze runs the full pipeline over reviews and returns the merged report.
//
// In resilient mode a batch whose model call or recovery fails is skipped and
// counted in the report's run info. In strict mode the first such failure
// returns a *BatchError. Authentication, quota and missing-model errors end
// the run in both modes. If ctx's deadline passes, or the rate limiter cannot
// fit the next call before it, the error wraps ErrRunTimeout.
func (o *Orchestrator) Analyze(ctx context.Context, reviews []core.ReviewRecord, batchSize int, mode Mode) (*core.AggregatedReport, error) {
	started := time.Now()
	m := newMachine(o.observer)

	batches, err := batch.Plan(reviews, batchSize, o.config.Scope)
	if err != nil {
		m.fail()
		return nil, fmt.Errorf("failed to plan batches: %w", err)
	}

	info := core.RunInfo{
		ID:        uuid.NewString(),
		Mode:      string(mode),
		Reviews:   len(reviews),
		Batches:   len(batches),
		StartedAt: started,
	}
	o.log.Info("Starting analysis", "run_id", info.ID, "reviews", len(reviews), "batches", len(batches), "mode", mode)

	merger := merge.New(o.mergeOptions()...)

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			m.fail()
			return nil, runError(err, started, b)
		}
		if err := m.to(StateInvoking, b.Index); err != nil {
			return nil, err
		}

		o.log.Info("Analyzing batch", "batch", b.Label(), "index", b.Index, "reviews", len(b.Records))
		resp, err := o.invoker.Invoke(ctx, o.request(b))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				m.fail()
				return nil, runError(ctxErr, started, b)
			}
			if errors.Is(err, llm.ErrDeadlineTooClose) {
				m.fail()
				return nil, runError(err, started, b)
			}
			if stop := o.handleFailure(m, &info, b, err, mode); stop != nil {
				return nil, stop
			}
			continue
		}

		if err := m.to(StateRecovering, b.Index); err != nil {
			return nil, err
		}
		result, step, err := o.decoder.Decode(resp.Text)
		if err != nil {
			if stop := o.handleFailure(m, &info, b, err, mode); stop != nil {
				return nil, stop
			}
			continue
		}
		if step != recovery.StepDirect {
			o.log.Info("Recovered malformed response", "batch", b.Label(), "step", step.String())
		}

		merger.Add(merge.Scoped{Result: result, Scope: b.Scope})
		info.Succeeded++
	}

	if err := m.to(StateMerging, -1); err != nil {
		return nil, err
	}
	report := merger.Report(ctx)
	if err := m.to(StateDone, -1); err != nil {
		return nil, err
	}

	info.Model = o.invoker.Model()
	info.Duration = time.Since(started)
	report.Run = info
	o.log.Info("Analysis complete",
		"run_id", info.ID,
		"succeeded", info.Succeeded,
		"skipped", info.Skipped,
		"findings", report.SWOT.Count(),
		"duration", info.Duration)
	return report, nil
}

// handleFailure applies the mode policy to a failed batch. It returns the
// error that ends the run, or nil when the batch was skipped.
func (o *Orchestrator) handleFailure(m *machine, info *core.RunInfo, b batch.Batch, err error, mode Mode) error {
	batchErr := newBatchError(b, err, mode)
	if mode == ModeStrict || isFatal(err) {
		m.fail()
		o.log.Error("Batch failed, aborting run", "batch", b.Label(), "index", b.Index, "error", err.Error())
		return batchErr
	}

	o.log.Warn("Skipping failed batch", "batch", b.Label(), "index", b.Index, "error", err.Error())
	info.Skipped++
	info.SkippedBatches = append(info.SkippedBatches, core.SkippedBatch{
		Index:   b.Index,
		Source:  b.Source,
		Ordinal: b.Ordinal,
		Reason:  err.Error(),
	})
	return nil
}

func (o *Orchestrator) request(b batch.Batch) llm.Request {
	return BatchRequest(b, o.config.Generation)
}

// BatchRequest builds the model request for one batch.
func BatchRequest(b batch.Batch, gen llm.GenerationConfig) llm.Request {
	return llm.Request{
		SystemPrompt: SystemPrompt,
		StatsHeader:  batch.StatsHeader(b.Records),
		BatchText:    BatchText(b),
		Config:       gen,
	}
}

func (o *Orchestrator) mergeOptions() []merge.Option {
	opts := []merge.Option{
		merge.WithSummaryBudget(o.config.SummaryBudget),
		merge.WithMaxSummaries(o.config.MaxSummaries),
		merge.WithLogger(o.log),
	}
	if o.config.Resummarize {
		opts = append(opts, merge.WithResummarizer(&modelResummarizer{invoker: o.invoker, config: o.config.Generation}))
	}
	return opts
}

func isFatal(err error) bool {
	return errors.Is(err, llm.ErrModelAuth) ||
		errors.Is(err, llm.ErrModelQuota) ||
		errors.Is(err, llm.ErrModelNotFound)
}

// runError converts the run context's error. A deadline becomes
// ErrRunTimeout; cancellation is returned as is.
func runError(ctxErr error, started time.Time, b batch.Batch) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s, at %s: %w", ErrRunTimeout, time.Since(started).Round(time.Millisecond), b.Label(), ctxErr)
	}
	return fmt.Errorf("analysis canceled at %s: %w", b.Label(), ctxErr)
}

// modelResummarizer condenses batch summaries through the same invoker.
type modelResummarizer struct {
	invoker Invoker
	config  llm.GenerationConfig
}

func (r *modelResummarizer) Resummarize(ctx context.Context, summaries []string) (string, error) {
	config := r.config
	config.JSONMode = false
	resp, err := r.invoker.Invoke(ctx, llm.Request{
		BatchText: ResummarizePrompt + strings.Join(summaries, merge.SummarySeparator),
		Config:    config,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
