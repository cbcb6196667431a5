package merge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swotlens/internal/core"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func finding(topic, severityField, level string) core.Finding {
	f := core.Finding{"topic": topic, "description": topic + " details"}
	if level != "" {
		f[severityField] = level
	}
	return f
}

func result(strengths []core.Finding, summary string) core.StructuredResult {
	var r core.StructuredResult
	r.SWOT.Strengths = strengths
	r.ExecutiveSummary = summary
	return r
}

func TestDedupe_HigherSeverityWins(t *testing.T) {
	low := core.Finding{"topic": "giá cao", "description": "hơi đắt", "impact": "Low"}
	high := core.Finding{"topic": "Giá Cao ", "description": "đắt hơn đối thủ", "impact": "High", "root_cause": "nguyên liệu"}

	got := Dedupe(core.Weaknesses, []core.Finding{low, high})
	if diff := cmp.Diff([]core.Finding{high}, got); diff != "" {
		t.Errorf("Dedupe mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupe_KeepsPositionAndFirstOnTie(t *testing.T) {
	a1 := finding("A", "impact", "Medium")
	b := finding("B", "impact", "Low")
	a2 := core.Finding{"topic": "a", "description": "second", "impact": "medium"}
	a3 := core.Finding{"topic": "A", "description": "third", "impact": "HIGH"}

	got := Dedupe(core.Strengths, []core.Finding{a1, b, a2, a3})
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Description(), "higher severity replaces in place")
	assert.Equal(t, "B", got[1].Topic())

	got = Dedupe(core.Strengths, []core.Finding{a1, a2})
	require.Len(t, got, 1)
	assert.Equal(t, "A details", got[0].Description(), "tie keeps first")
}

func TestDedupe_ThreatsUseRiskLevel(t *testing.T) {
	first := core.Finding{"topic": "X", "impact": "High", "risk_level": "Low"}
	second := core.Finding{"topic": "x", "impact": "Low", "risk_level": "Medium"}

	got := Dedupe(core.Threats, []core.Finding{first, second})
	require.Len(t, got, 1)
	assert.Equal(t, "Medium", got[0].String("risk_level"))
}

func TestDedupe_EmptyTopicsKept(t *testing.T) {
	got := Dedupe(core.Opportunities, []core.Finding{
		{"description": "one"},
		{"topic": "  ", "description": "two"},
		{"description": "three"},
	})
	assert.Len(t, got, 3)
}

func TestSeverityRank(t *testing.T) {
	tests := map[string]int{
		"High":       3,
		" high ":     3,
		"Cao":        3,
		"Medium":     2,
		"Trung bình": 2,
		"Low":        1,
		"":           1,
		"critical":   1,
	}
	for level, want := range tests {
		assert.Equal(t, want, SeverityRank(level), "level %q", level)
	}
}

func TestMerger_ScopeAndCompleteness(t *testing.T) {
	m := New(WithLogger(quiet))

	var shop core.StructuredResult
	shop.SWOT.Strengths = []core.Finding{finding("S1", "impact", "High")}
	shop.SWOT.Threats = []core.Finding{finding("T-out-of-scope", "risk_level", "High")}
	m.Add(Scoped{Result: shop, Scope: core.Scope{core.Strengths, core.Weaknesses}})

	var rival core.StructuredResult
	rival.SWOT.Opportunities = []core.Finding{finding("O1", "impact", "")}
	rival.SWOT.Strengths = []core.Finding{finding("S-out-of-scope", "impact", "")}
	m.Add(Scoped{Result: rival, Scope: core.Scope{core.Opportunities, core.Threats}})

	report := m.Report(context.Background())
	assert.Len(t, report.SWOT.Strengths, 1)
	assert.Equal(t, "S1", report.SWOT.Strengths[0].Topic())
	assert.Len(t, report.SWOT.Opportunities, 1)
	assert.NotNil(t, report.SWOT.Weaknesses)
	assert.Empty(t, report.SWOT.Weaknesses)
	assert.NotNil(t, report.SWOT.Threats)
	assert.Empty(t, report.SWOT.Threats)
}

func TestMerger_EndToEndStrengths(t *testing.T) {
	m := New(WithLogger(quiet))
	scope := core.Scope{core.Strengths, core.Weaknesses}

	m.Add(Scoped{Scope: scope, Result: result([]core.Finding{
		finding("Phở ngon", "impact", "High"),
		finding("Giá hợp lý", "impact", "Medium"),
		finding("Không gian đẹp", "impact", "Low"),
	}, "first")})
	m.Add(Scoped{Scope: scope, Result: result([]core.Finding{
		finding("phở ngon", "impact", "Medium"),
		finding("Phục vụ nhanh", "impact", "High"),
	}, "")})

	report := m.Report(context.Background())
	assert.Len(t, report.SWOT.Strengths, 4)
	assert.Equal(t, "first", report.ExecutiveSummary)
}

func TestMerger_SummaryConcatenation(t *testing.T) {
	m := New(WithLogger(quiet))
	for _, s := range []string{"one", "", "two", "three", "four", "five", "six"} {
		m.Add(Scoped{Result: result(nil, s), Scope: core.FullScope()})
	}

	got := m.Report(context.Background()).ExecutiveSummary
	assert.Equal(t, "one\n---\ntwo\n---\nthree\n---\nfour\n---\nfive", got)
}

func TestMerger_SummaryBudget(t *testing.T) {
	m := New(WithLogger(quiet), WithSummaryBudget(10))
	m.Add(Scoped{Result: result(nil, "ẩm thực tuyệt vời")})
	m.Add(Scoped{Result: result(nil, "phục vụ")})

	got := m.Report(context.Background()).ExecutiveSummary
	assert.Equal(t, 10, len([]rune(got)))
	assert.True(t, strings.HasPrefix(got, "ẩm thực"))
}

type stubResummarizer struct {
	calls int
	text  string
	err   error
	got   []string
}

func (s *stubResummarizer) Resummarize(ctx context.Context, summaries []string) (string, error) {
	s.calls++
	s.got = summaries
	return s.text, s.err
}

func TestMerger_Resummarizer(t *testing.T) {
	tests := []struct {
		name string
		stub *stubResummarizer
		want string
	}{
		{"success", &stubResummarizer{text: " condensed "}, "condensed"},
		{"error falls back", &stubResummarizer{err: errors.New("quota")}, "a\n---\nb"},
		{"empty falls back", &stubResummarizer{text: "  "}, "a\n---\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(WithLogger(quiet), WithResummarizer(tt.stub))
			m.Add(Scoped{Result: result(nil, "a")})
			m.Add(Scoped{Result: result(nil, "b")})

			assert.Equal(t, tt.want, m.Report(context.Background()).ExecutiveSummary)
			assert.Equal(t, 1, tt.stub.calls)
			assert.Equal(t, []string{"a", "b"}, tt.stub.got)
		})
	}
}

func TestMerger_SingleSummaryNotResummarized(t *testing.T) {
	stub := &stubResummarizer{text: "should not be used"}
	m := New(WithLogger(quiet), WithResummarizer(stub))
	m.Add(Scoped{Result: result(nil, "only one")})

	assert.Equal(t, "only one", m.Report(context.Background()).ExecutiveSummary)
	assert.Equal(t, 0, stub.calls)
}
