package llm

const (
	// DefaultModel is the first model tried.
	DefaultModel = "gemini-2.5-flash"
	// DefaultFallbackModel is used once every candidate has been reported missing.
	DefaultFallbackModel = "gemini-flash-lite-latest"
)

// ModelPolicy is the ordered list of models to try when one does not exist.
type ModelPolicy struct {
	Candidates []string
	Fallback   string
}

// DefaultPolicy returns the stock candidate list.
func DefaultPolicy() ModelPolicy {
	return ModelPolicy{
		Candidates: []string{DefaultModel, "gemini-2.0-flash"},
		Fallback:   DefaultFallbackModel,
	}
}

// Models returns candidates followed by the fallback, without blanks or repeats.
func (p ModelPolicy) Models() []string {
	seen := make(map[string]bool, len(p.Candidates)+1)
	var models []string
	for _, m := range append(append([]string{}, p.Candidates...), p.Fallback) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	return models
}
