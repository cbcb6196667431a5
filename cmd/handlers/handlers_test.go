package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swotlens/internal/analysis"
	"swotlens/internal/config"
	"swotlens/internal/llm/llmtest"
	"swotlens/internal/logger"
	"swotlens/internal/store"
)

const goodReply = `{
  "SWOT_Analysis": {
    "Strengths": [{"topic": "Friendly staff", "description": "Baristas are welcoming", "impact": "High"}],
    "Weaknesses": [],
    "Opportunities": [],
    "Threats": []
  },
  "Executive_Summary": "Service is the main draw."
}`

func TestMain(m *testing.M) {
	_ = logger.Configure("error", "text", io.Discard)
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AI: config.AI{Gemini: config.GeminiConfig{
			Models:    []string{"test-model"},
			Timeout:   "0s",
			MaxTokens: 1024,
			JSONMode:  true,
		}},
		Analysis: config.Analysis{
			BatchSize:     2,
			Mode:          "resilient",
			Scope:         "split",
			MaxAttempts:   1,
			BaseDelay:     "0s",
			RunTimeout:    "1m",
			SummaryBudget: 1200,
			MaxSummaries:  5,
		},
		Store: config.Store{
			Enabled: true,
			Driver:  store.DriverSQLite,
			DSN:     filepath.Join(t.TempDir(), "reports.db"),
		},
	}
}

func writeReviews(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "my_shop.csv")
	body := "review,rating\nGreat latte art,5\nStaff remembered my name,5\nWifi keeps dropping,2\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunAnalyze_SavesAndPrints(t *testing.T) {
	cfg := testConfig(t)
	gen := llmtest.New(llmtest.Text(goodReply))
	var out bytes.Buffer

	opts := analyzeOptions{files: []string{writeReviews(t)}, output: "json", save: true}
	require.NoError(t, runAnalyze(context.Background(), cfg, opts, gen, &out))

	assert.Equal(t, 2, gen.Calls(), "3 reviews at batch size 2 make two batches")
	assert.Contains(t, out.String(), `"SWOT_Analysis"`)
	assert.Equal(t, 1, strings.Count(out.String(), "Friendly staff"), "duplicate findings are merged")
	for _, model := range gen.Models() {
		assert.Equal(t, "test-model", model)
	}

	s, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	require.NoError(t, err)
	defer s.Close()

	var list bytes.Buffer
	require.NoError(t, runReportsList(context.Background(), s, 0, &list))
	assert.Contains(t, list.String(), "test-model")
	assert.Contains(t, list.String(), "2/2")

	reports, err := s.ListReports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	var shown bytes.Buffer
	require.NoError(t, runReportsShow(context.Background(), s, reports[0].ID[:8], "markdown", &shown))
	assert.Contains(t, shown.String(), "**Friendly staff**")

	var stats bytes.Buffer
	require.NoError(t, runReportsStats(context.Background(), s, &stats))
	assert.Contains(t, stats.String(), "Reports:         1")
}

func TestRunAnalyze_ResilientSkipsBadBatch(t *testing.T) {
	cfg := testConfig(t)
	gen := llmtest.New(llmtest.Text("I could not produce JSON, sorry."), llmtest.Text(goodReply))
	var out bytes.Buffer

	opts := analyzeOptions{files: []string{writeReviews(t)}, output: "text"}
	require.NoError(t, runAnalyze(context.Background(), cfg, opts, gen, &out))
	assert.Contains(t, out.String(), "1 of 2 batches skipped")
	assert.Contains(t, out.String(), "Friendly staff")
}

func TestRunAnalyze_StrictFlagOverridesConfig(t *testing.T) {
	cfg := testConfig(t)
	gen := llmtest.New(llmtest.Text("not json"), llmtest.Text(goodReply))

	opts := analyzeOptions{files: []string{writeReviews(t)}, mode: "strict", output: "json"}
	err := runAnalyze(context.Background(), cfg, opts, gen, io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, analysis.ErrBatchProcessingFailed), "got %v", err)
	assert.Contains(t, err.Error(), "MY_SHOP batch 1/2")
	assert.Equal(t, 1, gen.Calls())
}

func TestRunAnalyze_WritesFile(t *testing.T) {
	cfg := testConfig(t)
	outFile := filepath.Join(t.TempDir(), "out", "report.md")

	opts := analyzeOptions{files: []string{writeReviews(t)}, output: "markdown", outFile: outFile}
	require.NoError(t, runAnalyze(context.Background(), cfg, opts, llmtest.New(llmtest.Text(goodReply)), io.Discard))

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# SWOT Analysis"))
}

func TestRunAnalyze_InputErrors(t *testing.T) {
	cfg := testConfig(t)
	gen := llmtest.New(llmtest.Text(goodReply))

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("review\nok\n"), 0o644))

	tests := []struct {
		name string
		opts analyzeOptions
		want string
	}{
		{"missing file", analyzeOptions{files: []string{"/nonexistent/reviews.csv"}}, "failed to read file"},
		{"no usable rows", analyzeOptions{files: []string{empty}}, "no usable reviews"},
		{"bad mode", analyzeOptions{files: []string{writeReviews(t)}, mode: "careless"}, "unknown analysis mode"},
		{"bad source", analyzeOptions{files: []string{writeReviews(t)}, source: "partner"}, "unknown review source"},
		{"no files", analyzeOptions{}, "at least one review file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runAnalyze(context.Background(), cfg, tt.opts, gen, io.Discard)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.Equal(t, 0, gen.Calls(), "no model call is made for invalid input")
}

func TestRunPlan(t *testing.T) {
	dir := t.TempDir()
	mine := filepath.Join(dir, "my_shop.csv")
	rival := filepath.Join(dir, "rivals.csv")
	require.NoError(t, os.WriteFile(mine, []byte("review\nGood coffee\nNice music\nSlow service\n"), 0o644))
	require.NoError(t, os.WriteFile(rival, []byte("review\nCheaper cakes\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, runPlan(testConfig(t), []string{mine}, []string{rival}, 2, "", "", &out))

	text := out.String()
	assert.Contains(t, text, "- Total reviews: 4")
	assert.Contains(t, text, "3 batches of up to 2 reviews")
	assert.Contains(t, text, "MY_SHOP batch 1/2")
	assert.Contains(t, text, "COMPETITOR batch 1/1")
	assert.Contains(t, text, "Cost estimate for test-model")
	assert.Contains(t, text, "Model calls: 3")
}

func TestRootCommand(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"analyze", "plan", "reports", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "swotlens dev")
}
