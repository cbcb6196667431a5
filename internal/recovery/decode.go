package recovery

import (
	"fmt"

	"swotlens/internal/core"
)

const (
	keySWOT    = "SWOT_Analysis"
	keySummary = "Executive_Summary"
)

// Decoder runs sanitization, the recovery ladder and structural validation.
type Decoder struct {
	ladder *Ladder
}

// NewDecoder creates a decoder using the given ladder, or the default one when nil.
func NewDecoder(ladder *Ladder) *Decoder {
	if ladder == nil {
		ladder = NewLadder()
	}
	return &Decoder{ladder: ladder}
}

// Decode turns raw model text into a validated StructuredResult. It reports
// which recovery step succeeded.
func (d *Decoder) Decode(raw string) (core.StructuredResult, Step, error) {
	text := Sanitize(raw)
	recovered, err := d.ladder.Recover(text)
	if err != nil {
		return core.StructuredResult{}, StepNone, err
	}

	result, err := Validate(recovered.Value)
	if err != nil {
		if invalid, ok := err.(*InvalidStructuredResultError); ok {
			invalid.Head, _ = excerpt(recovered.Text)
		}
		return core.StructuredResult{}, recovered.Step, err
	}
	return result, recovered.Step, nil
}

// Validate checks a parsed document for the SWOT shape: an object with a
// SWOT_Analysis object holding all four category arrays. Null categories are
// treated as empty. Executive_Summary is optional.
func Validate(doc any) (core.StructuredResult, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		return core.StructuredResult{}, &InvalidStructuredResultError{Reason: fmt.Sprintf("top-level value is %s, not an object", kind(doc))}
	}

	rawSWOT, ok := root[keySWOT]
	if !ok {
		return core.StructuredResult{}, &InvalidStructuredResultError{Missing: []string{keySWOT}}
	}
	swotObj, ok := rawSWOT.(map[string]any)
	if !ok {
		return core.StructuredResult{}, &InvalidStructuredResultError{Reason: fmt.Sprintf("%s is %s, not an object", keySWOT, kind(rawSWOT))}
	}

	var missing []string
	for _, c := range core.AllCategories {
		if _, ok := swotObj[string(c)]; !ok {
			missing = append(missing, keySWOT+"."+string(c))
		}
	}
	if len(missing) > 0 {
		return core.StructuredResult{}, &InvalidStructuredResultError{Missing: missing}
	}

	var result core.StructuredResult
	for _, c := range core.AllCategories {
		findings, err := toFindings(c, swotObj[string(c)])
		if err != nil {
			return core.StructuredResult{}, err
		}
		result.SWOT.Set(c, findings)
	}

	switch summary := root[keySummary].(type) {
	case nil:
	case string:
		result.ExecutiveSummary = summary
	default:
		return core.StructuredResult{}, &InvalidStructuredResultError{Reason: fmt.Sprintf("%s is %s, not a string", keySummary, kind(summary))}
	}

	return result, nil
}

func toFindings(c core.Category, value any) ([]core.Finding, error) {
	if value == nil {
		return []core.Finding{}, nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil, &InvalidStructuredResultError{Reason: fmt.Sprintf("%s is %s, not an array", c, kind(value))}
	}
	findings := make([]core.Finding, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &InvalidStructuredResultError{Reason: fmt.Sprintf("%s[%d] is %s, not an object", c, i, kind(item))}
		}
		findings = append(findings, core.Finding(obj))
	}
	return findings, nil
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	default:
		return "a number"
	}
}
