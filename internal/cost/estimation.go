package cost

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"swotlens/internal/llm"
)

// GeminiPricing represents the pricing for a Gemini model
type GeminiPricing struct {
	Model                 string
	InputCostPer1MTokens  float64 // USD
	OutputCostPer1MTokens float64 // USD
	EstimatedOutputTokens int     // Typical SWOT reply length
}

// DefaultModel prices models missing from PricingTable.
const DefaultModel = "gemini-2.5-flash"

// SecondsPerCall is the assumed latency of one batch call.
const SecondsPerCall = 20

// PricingTable contains list prices for the models the analyzer uses
var PricingTable = map[string]GeminiPricing{
	"gemini-2.5-flash": {
		Model:                 "gemini-2.5-flash",
		InputCostPer1MTokens:  0.30,
		OutputCostPer1MTokens: 2.50,
		EstimatedOutputTokens: 1500,
	},
	"gemini-2.5-pro": {
		Model:                 "gemini-2.5-pro",
		InputCostPer1MTokens:  1.25,
		OutputCostPer1MTokens: 10.00,
		EstimatedOutputTokens: 1800,
	},
	"gemini-2.0-flash": {
		Model:                 "gemini-2.0-flash",
		InputCostPer1MTokens:  0.10,
		OutputCostPer1MTokens: 0.40,
		EstimatedOutputTokens: 1500,
	},
	"gemini-flash-lite-latest": {
		Model:                 "gemini-flash-lite-latest",
		InputCostPer1MTokens:  0.10,
		OutputCostPer1MTokens: 0.40,
		EstimatedOutputTokens: 1200,
	},
}

// EstimateTokenCount approximates the token count of text at 3.5 runes per token
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / 3.5))
}

// BatchEstimate is the estimated usage of one batch call
type BatchEstimate struct {
	Label        string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// RunEstimate is the estimated usage of a whole analysis run
type RunEstimate struct {
	Model             string
	Batches           []BatchEstimate
	ResummarizeTokens int // Input tokens of the optional resummarize call, 0 when off
	TotalInputTokens  int
	TotalOutputTokens int
	TotalCost         float64
	ProcessingMinutes float64
	RateLimitWarning  string
}

// Call pairs a request with the label shown in the estimate
type Call struct {
	Label   string
	Request llm.Request
}

// PricingFor returns the pricing for model, falling back to DefaultModel
func PricingFor(model string) GeminiPricing {
	if p, ok := PricingTable[model]; ok {
		return p
	}
	p := PricingTable[DefaultModel]
	p.Model = model
	return p
}

// EstimateRun estimates tokens, cost and duration for the given batch calls.
// requestsPerMinute of 0 means unthrottled.
func EstimateRun(calls []Call, model string, resummarize bool, requestsPerMinute int) *RunEstimate {
	pricing := PricingFor(model)
	estimate := &RunEstimate{
		Model:   model,
		Batches: make([]BatchEstimate, 0, len(calls)),
	}

	for _, c := range calls {
		input := EstimateTokenCount(c.Request.SystemPrompt) +
			EstimateTokenCount(c.Request.StatsHeader) +
			EstimateTokenCount(c.Request.BatchText)
		output := pricing.EstimatedOutputTokens
		if limit := int(c.Request.Config.MaxOutputTokens); limit > 0 && limit < output {
			output = limit
		}
		be := BatchEstimate{
			Label:        c.Label,
			InputTokens:  input,
			OutputTokens: output,
			Cost:         pricing.cost(input, output),
		}
		estimate.Batches = append(estimate.Batches, be)
		estimate.TotalInputTokens += input
		estimate.TotalOutputTokens += output
		estimate.TotalCost += be.Cost
	}

	requests := len(calls)
	if resummarize && len(calls) > 1 {
		// Roughly one executive summary (about 50 words) per batch, plus the prompt.
		estimate.ResummarizeTokens = len(calls)*90 + 40
		estimate.TotalInputTokens += estimate.ResummarizeTokens
		estimate.TotalOutputTokens += 100
		estimate.TotalCost += pricing.cost(estimate.ResummarizeTokens, 100)
		requests++
	}

	estimate.ProcessingMinutes = float64(requests*SecondsPerCall) / 60
	if requestsPerMinute > 0 && requests > requestsPerMinute {
		throttled := math.Ceil(float64(requests) / float64(requestsPerMinute))
		estimate.ProcessingMinutes = math.Max(estimate.ProcessingMinutes, throttled)
		estimate.RateLimitWarning = fmt.Sprintf(
			"%d requests exceed the limit of %d/min; the run takes at least %.0f minutes",
			requests, requestsPerMinute, throttled,
		)
	}

	return estimate
}

func (p GeminiPricing) cost(input, output int) float64 {
	return float64(input)*p.InputCostPer1MTokens/1000000 +
		float64(output)*p.OutputCostPer1MTokens/1000000
}

// FormatEstimate formats the estimate for display
func (e *RunEstimate) FormatEstimate() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Cost estimate for %s\n", e.Model)
	sb.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&sb, "   Model calls: %d\n", len(e.Batches))
	fmt.Fprintf(&sb, "   Input tokens: %d\n", e.TotalInputTokens)
	fmt.Fprintf(&sb, "   Output tokens: %d\n", e.TotalOutputTokens)
	fmt.Fprintf(&sb, "   Total estimated cost: $%.4f\n", e.TotalCost)
	fmt.Fprintf(&sb, "   Estimated processing time: %.1f minutes\n", e.ProcessingMinutes)
	if e.ResummarizeTokens > 0 {
		sb.WriteString("   Includes one resummarize call\n")
	}
	if e.RateLimitWarning != "" {
		fmt.Fprintf(&sb, "   Warning: %s\n", e.RateLimitWarning)
	}

	if len(e.Batches) > 0 {
		sb.WriteString("\nPer batch (showing first 5):\n")
		for i, b := range e.Batches {
			if i >= 5 {
				fmt.Fprintf(&sb, "   ... and %d more batches\n", len(e.Batches)-5)
				break
			}
			fmt.Fprintf(&sb, "   %d. %-24s %6d in %6d out  $%.4f\n", i+1, b.Label, b.InputTokens, b.OutputTokens, b.Cost)
		}
	}

	return sb.String()
}
