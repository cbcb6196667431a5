package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Source identifies whose business a review talks about.
type Source string

const (
	SourceMyShop     Source = "MY_SHOP"
	SourceCompetitor Source = "COMPETITOR"
	// SourceMixed labels a single batch that carries both tags.
	SourceMixed Source = "MIXED"
)

// ParseSource normalizes the source spellings found in review exports.
func ParseSource(s string) (Source, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MY_SHOP", "MY SHOP", "MYSHOP", "CỦA MÌNH", "CUA MINH", "QUÁN MÌNH", "SHOP", "STORE", "BRAND":
		return SourceMyShop, nil
	case "COMPETITOR", "COMPETITORS", "ĐỐI THỦ", "DOI THU", "COMPETITION", "RIVAL":
		return SourceCompetitor, nil
	}
	return "", fmt.Errorf("unknown review source %q", s)
}

// ReviewRecord is one customer review. Optional attributes are empty when absent.
type ReviewRecord struct {
	Content  string `json:"review"`           // Free-text review content
	Source   Source `json:"source"`           // MY_SHOP or COMPETITOR
	Price    string `json:"price,omitempty"`  // Price mentioned alongside the review
	Rating   string `json:"rating,omitempty"` // Star rating or score
	MenuItem string `json:"menu,omitempty"`   // Menu item or product reviewed
	Date     string `json:"date,omitempty"`   // Review date as exported
	Author   string `json:"user,omitempty"`   // Reviewer name
}

// Category is one of the four SWOT lists.
type Category string

const (
	Strengths     Category = "Strengths"
	Weaknesses    Category = "Weaknesses"
	Opportunities Category = "Opportunities"
	Threats       Category = "Threats"
)

// AllCategories lists the SWOT categories in report order.
var AllCategories = []Category{Strengths, Weaknesses, Opportunities, Threats}

// Scope lists the categories a batch may populate.
type Scope []Category

// FullScope allows every category.
func FullScope() Scope { return append(Scope(nil), AllCategories...) }

// Includes reports whether c is in scope.
func (s Scope) Includes(c Category) bool {
	for _, sc := range s {
		if sc == c {
			return true
		}
	}
	return false
}

// SeverityField names the finding field ranked when two findings collide.
func (c Category) SeverityField() string {
	if c == Threats {
		return "risk_level"
	}
	return "impact"
}

// Finding is one SWOT item. Only topic and description are structural; every
// other field is carried verbatim.
type Finding map[string]any

// Topic returns the finding's short label, or "" when missing or not a string.
func (f Finding) Topic() string { return f.String("topic") }

// Description returns the finding's description.
func (f Finding) Description() string { return f.String("description") }

// String returns a field rendered as text. Numbers keep their JSON spelling.
func (f Finding) String(field string) string {
	switch v := f[field].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// SWOT holds the four finding lists.
type SWOT struct {
	Strengths     []Finding `json:"Strengths"`
	Weaknesses    []Finding `json:"Weaknesses"`
	Opportunities []Finding `json:"Opportunities"`
	Threats       []Finding `json:"Threats"`
}

// Get returns the list for a category.
func (s *SWOT) Get(c Category) []Finding {
	switch c {
	case Strengths:
		return s.Strengths
	case Weaknesses:
		return s.Weaknesses
	case Opportunities:
		return s.Opportunities
	case Threats:
		return s.Threats
	}
	return nil
}

// Set replaces the list for a category.
func (s *SWOT) Set(c Category, findings []Finding) {
	switch c {
	case Strengths:
		s.Strengths = findings
	case Weaknesses:
		s.Weaknesses = findings
	case Opportunities:
		s.Opportunities = findings
	case Threats:
		s.Threats = findings
	}
}

// Count returns the total number of findings across categories.
func (s *SWOT) Count() int {
	return len(s.Strengths) + len(s.Weaknesses) + len(s.Opportunities) + len(s.Threats)
}

// MarshalJSON always emits all four keys with array values.
func (s SWOT) MarshalJSON() ([]byte, error) {
	out := make(map[string][]Finding, len(AllCategories))
	for _, c := range AllCategories {
		list := s.Get(c)
		if list == nil {
			list = []Finding{}
		}
		out[string(c)] = list
	}
	return json.Marshal(out)
}

// StructuredResult is the validated SWOT document produced for one batch.
type StructuredResult struct {
	SWOT             SWOT   `json:"SWOT_Analysis"`
	ExecutiveSummary string `json:"Executive_Summary"`
}

// SkippedBatch records a batch dropped in resilient mode.
type SkippedBatch struct {
	Index   int    `json:"index"`   // Position in the batch plan
	Source  Source `json:"source"`  // Source tag of the batch
	Ordinal int    `json:"ordinal"` // 1-based position within its source tag
	Reason  string `json:"reason"`  // Error that caused the skip
}

// RunInfo describes how a report was produced.
type RunInfo struct {
	ID             string         `json:"id"`
	Model          string         `json:"model"`
	Mode           string         `json:"mode"`
	Reviews        int            `json:"reviews"`
	Batches        int            `json:"batches"`
	Succeeded      int            `json:"succeeded"`
	Skipped        int            `json:"skipped"`
	SkippedBatches []SkippedBatch `json:"skipped_batches,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	Duration       time.Duration  `json:"duration"`
}

// AggregatedReport is the merged result of one analysis run. It serializes as
// the plain StructuredResult mapping; Run travels beside it.
type AggregatedReport struct {
	StructuredResult
	Run RunInfo `json:"-"`
}

// NewAggregatedReport returns a report with all four categories present and empty.
func NewAggregatedReport() *AggregatedReport {
	return &AggregatedReport{
		StructuredResult: StructuredResult{
			SWOT: SWOT{
				Strengths:     []Finding{},
				Weaknesses:    []Finding{},
				Opportunities: []Finding{},
				Threats:       []Finding{},
			},
		},
	}
}
