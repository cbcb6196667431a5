package batch

import (
	"errors"
	"fmt"
	"strings"

	"swotlens/internal/core"
)

// DefaultSize is the maximum number of reviews sent in one model call.
const DefaultSize = 500

// ErrInvalidBatchSize is returned for batch sizes below one.
var ErrInvalidBatchSize = errors.New("batch size must be at least 1")

// ScopePolicy decides which categories a source-specific batch may populate.
type ScopePolicy string

const (
	// ScopeSplit limits MY_SHOP batches to Strengths/Weaknesses and
	// COMPETITOR batches to Opportunities/Threats.
	ScopeSplit ScopePolicy = "split"
	// ScopeFull lets every batch populate all four categories.
	ScopeFull ScopePolicy = "full"
)

// ParseScopePolicy validates a policy name.
func ParseScopePolicy(s string) (ScopePolicy, error) {
	switch ScopePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeSplit:
		return ScopeSplit, nil
	case ScopeFull:
		return ScopeFull, nil
	}
	return "", fmt.Errorf("unknown scope policy %q (use split or full)", s)
}

// ScopeFor returns the categories a batch of the given source may populate.
func (p ScopePolicy) ScopeFor(source core.Source) core.Scope {
	if p == ScopeFull {
		return core.FullScope()
	}
	switch source {
	case core.SourceMyShop:
		return core.Scope{core.Strengths, core.Weaknesses}
	case core.SourceCompetitor:
		return core.Scope{core.Opportunities, core.Threats}
	}
	return core.FullScope()
}

// Batch is a bounded subset of reviews sent in one model call.
type Batch struct {
	Index   int         // Position in the plan, 0-based
	Source  core.Source // Source tag, or SourceMixed for a single combined batch
	Ordinal int         // 1-based position among batches of the same source
	Total   int         // Number of batches with the same source
	Records []core.ReviewRecord
	Scope   core.Scope
}

// Label names the batch for logs and errors, e.g. "MY_SHOP batch 2/3".
func (b Batch) Label() string {
	return fmt.Sprintf("%s batch %d/%d", b.Source, b.Ordinal, b.Total)
}

// Plan splits records into batches of at most batchSize. When everything
// fits in one batch the records go together regardless of source. Otherwise
// records are grouped by source (MY_SHOP, COMPETITOR, then other tags in order
// of first appearance) and each group is chunked in its original order.
func Plan(records []core.ReviewRecord, batchSize int, policy ScopePolicy) ([]Batch, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}
	if len(records) == 0 {
		return nil, nil
	}

	if len(records) <= batchSize {
		return []Batch{{
			Index:   0,
			Source:  commonSource(records),
			Ordinal: 1,
			Total:   1,
			Records: records,
			Scope:   core.FullScope(),
		}}, nil
	}

	var batches []Batch
	for _, group := range groupBySource(records) {
		total := (len(group.records) + batchSize - 1) / batchSize
		for i := 0; i < len(group.records); i += batchSize {
			end := i + batchSize
			if end > len(group.records) {
				end = len(group.records)
			}
			batches = append(batches, Batch{
				Index:   len(batches),
				Source:  group.source,
				Ordinal: i/batchSize + 1,
				Total:   total,
				Records: group.records[i:end:end],
				Scope:   policy.ScopeFor(group.source),
			})
		}
	}
	return batches, nil
}

type sourceGroup struct {
	source  core.Source
	records []core.ReviewRecord
}

func groupBySource(records []core.ReviewRecord) []sourceGroup {
	groups := []sourceGroup{{source: core.SourceMyShop}, {source: core.SourceCompetitor}}
	index := map[core.Source]int{core.SourceMyShop: 0, core.SourceCompetitor: 1}

	for _, r := range records {
		i, ok := index[r.Source]
		if !ok {
			i = len(groups)
			index[r.Source] = i
			groups = append(groups, sourceGroup{source: r.Source})
		}
		groups[i].records = append(groups[i].records, r)
	}

	nonEmpty := groups[:0]
	for _, g := range groups {
		if len(g.records) > 0 {
			nonEmpty = append(nonEmpty, g)
		}
	}
	return nonEmpty
}

func commonSource(records []core.ReviewRecord) core.Source {
	source := records[0].Source
	for _, r := range records[1:] {
		if r.Source != source {
			return core.SourceMixed
		}
	}
	return source
}
