package render

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swotlens/internal/core"
)

func sampleReport() *core.AggregatedReport {
	report := core.NewAggregatedReport()
	report.SWOT.Strengths = []core.Finding{
		{"topic": "Cà phê ngon", "description": "Khách khen hương vị", "impact": "High"},
		{"description": "No topic here"},
	}
	report.SWOT.Threats = []core.Finding{
		{"topic": "Đối thủ giảm giá", "description": "Giá rẻ hơn 20%", "risk_level": "Medium"},
	}
	report.ExecutiveSummary = "Chất lượng tốt, áp lực giá."
	report.Run = core.RunInfo{
		ID:        "0123456789abcdef",
		Model:     "gemini-2.5-flash",
		Reviews:   700,
		Batches:   3,
		Succeeded: 2,
		Skipped:   1,
		SkippedBatches: []core.SkippedBatch{
			{Index: 1, Source: core.SourceMyShop, Ordinal: 2, Reason: "model unavailable"},
		},
		StartedAt: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
		Duration:  75 * time.Second,
	}
	return report
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "\n  \"SWOT_Analysis\": {")
	assert.Contains(t, out, "Cà phê ngon", "non-ASCII text is not escaped")
	assert.Contains(t, out, "20%")
	assert.NotContains(t, out, "gemini-2.5-flash", "run info is not part of the mapping")

	var decoded struct {
		SWOT map[string][]map[string]any `json:"SWOT_Analysis"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	for _, c := range core.AllCategories {
		_, ok := decoded.SWOT[string(c)]
		assert.True(t, ok, "category %s must be present", c)
	}
	assert.Len(t, decoded.SWOT["Weaknesses"], 0)
}

func TestText(t *testing.T) {
	out := Text(sampleReport())

	for _, want := range []string{
		"SWOT Analysis",
		"run 01234567",
		"700 reviews",
		"2/3 batches",
		"1 of 3 batches skipped",
		"Strengths (2)",
		"Cà phê ngon",
		"[High]",
		"(untitled)",
		"Weaknesses (0)",
		"none",
		"[Medium]",
		"Executive Summary",
	} {
		assert.Contains(t, out, want)
	}
}

func TestMarkdown(t *testing.T) {
	out := Markdown(sampleReport())

	assert.True(t, strings.HasPrefix(out, "# SWOT Analysis\n\n"))
	assert.Contains(t, out, "> Skipped MY_SHOP batch 2: model unavailable")
	assert.Contains(t, out, "## Executive Summary\n\nChất lượng tốt, áp lực giá.")
	assert.Contains(t, out, "1. **Cà phê ngon** (High): Khách khen hương vị")
	assert.Contains(t, out, "## Weaknesses\n\n_None identified._")
	assert.Contains(t, out, "1. **Đối thủ giảm giá** (Medium): Giá rẻ hơn 20%")

	strengths := strings.Index(out, "## Strengths")
	threats := strings.Index(out, "## Threats")
	assert.Less(t, strengths, threats, "categories keep their fixed order")
}

func TestWrite(t *testing.T) {
	report := sampleReport()
	for _, format := range []string{"json", "text", "markdown", "md", ""} {
		var buf bytes.Buffer
		assert.NoError(t, Write(&buf, report, format), format)
		assert.NotEmpty(t, buf.String(), format)
	}

	var buf bytes.Buffer
	assert.Error(t, Write(&buf, report, "xml"))
}

func TestWriteToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	path, err := WriteToFile("content", dir, "report.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestFilename(t *testing.T) {
	report := sampleReport()
	assert.Equal(t, "swot_2025-02-03_040506.json", Filename(report, FormatJSON))
	assert.Equal(t, "swot_2025-02-03_040506.md", Filename(report, FormatMarkdown))
	assert.Equal(t, "swot_2025-02-03_040506.txt", Filename(report, FormatText))
}
