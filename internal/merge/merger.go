package merge

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"swotlens/internal/core"
	"swotlens/internal/logger"
)

const (
	// DefaultSummaryBudget caps a concatenated executive summary, in characters.
	DefaultSummaryBudget = 1200
	// DefaultMaxSummaries is how many batch summaries are combined.
	DefaultMaxSummaries = 5
	// SummarySeparator joins batch summaries.
	SummarySeparator = "\n---\n"
)

// Scoped is one batch result with the categories it was allowed to populate.
type Scoped struct {
	Result core.StructuredResult
	Scope  core.Scope
}

// Resummarizer condenses several batch summaries into one.
type Resummarizer interface {
	Resummarize(ctx context.Context, summaries []string) (string, error)
}

// Option configures a Merger.
type Option func(*Merger)

// WithSummaryBudget sets the character cap for concatenated summaries.
func WithSummaryBudget(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.budget = n
		}
	}
}

// WithMaxSummaries sets how many summaries are combined.
func WithMaxSummaries(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.maxSummaries = n
		}
	}
}

// WithResummarizer enables a best-effort model call that condenses summaries.
func WithResummarizer(r Resummarizer) Option {
	return func(m *Merger) { m.resummarizer = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Merger) { m.log = l }
}

// Merger accumulates batch results in order and folds them into one report.
// It is not safe for concurrent use.
type Merger struct {
	categories   map[core.Category][]core.Finding
	summaries    []string
	budget       int
	maxSummaries int
	resummarizer Resummarizer
	log          *slog.Logger
}

// New creates an empty Merger.
func New(opts ...Option) *Merger {
	m := &Merger{
		categories:   make(map[core.Category][]core.Finding, len(core.AllCategories)),
		budget:       DefaultSummaryBudget,
		maxSummaries: DefaultMaxSummaries,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Get()
	}
	return m
}

// Add appends one batch result. Categories outside the batch's scope are ignored.
func (m *Merger) Add(s Scoped) {
	for _, c := range core.AllCategories {
		if !s.Scope.Includes(c) {
			continue
		}
		m.categories[c] = append(m.categories[c], s.Result.SWOT.Get(c)...)
	}
	if summary := strings.TrimSpace(s.Result.ExecutiveSummary); summary != "" {
		m.summaries = append(m.summaries, summary)
	}
}

// Report returns the merged report with duplicates removed. All four
// categories are present even when empty.
func (m *Merger) Report(ctx context.Context) *core.AggregatedReport {
	report := core.NewAggregatedReport()
	for _, c := range core.AllCategories {
		report.SWOT.Set(c, Dedupe(c, m.categories[c]))
	}
	report.ExecutiveSummary = m.summary(ctx)
	return report
}

// Dedupe collapses findings whose topics match after trimming and
// lower-casing. The finding with the higher severity replaces the earlier one
// in place; ties keep the earlier one. Findings without a topic are all kept.
func Dedupe(c core.Category, findings []core.Finding) []core.Finding {
	field := c.SeverityField()
	out := make([]core.Finding, 0, len(findings))
	seen := make(map[string]int, len(findings))

	for _, f := range findings {
		key := strings.ToLower(strings.TrimSpace(f.Topic()))
		if key == "" {
			out = append(out, f)
			continue
		}
		i, dup := seen[key]
		if !dup {
			seen[key] = len(out)
			out = append(out, f)
			continue
		}
		if SeverityRank(f.String(field)) > SeverityRank(out[i].String(field)) {
			out[i] = f
		}
	}
	return out
}

// SeverityRank orders severity labels: High 3, Medium 2, anything else 1.
func SeverityRank(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "high", "cao":
		return 3
	case "medium", "trung bình":
		return 2
	}
	return 1
}

func (m *Merger) summary(ctx context.Context) string {
	switch len(m.summaries) {
	case 0:
		return ""
	case 1:
		return m.summaries[0]
	}

	summaries := m.summaries
	if len(summaries) > m.maxSummaries {
		summaries = summaries[:m.maxSummaries]
	}

	if m.resummarizer != nil {
		condensed, err := m.resummarizer.Resummarize(ctx, summaries)
		condensed = strings.TrimSpace(condensed)
		switch {
		case err != nil:
			m.log.Warn("Summary condensation failed, using concatenation", "error", err.Error())
		case condensed == "":
			m.log.Warn("Summary condensation returned nothing, using concatenation")
		default:
			return condensed
		}
	}

	return Truncate(strings.Join(summaries, SummarySeparator), m.budget)
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
