package cost

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"swotlens/internal/llm"
)

func TestEstimateTokenCount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "empty string", input: "", expected: 0},
		{name: "simple text", input: "Hello world", expected: 4},
		{name: "text with newlines", input: "Line 1\nLine 2\nLine 3", expected: 6},
		{name: "text with extra whitespace", input: "  Text with   extra    spaces  ", expected: 8},
		{name: "vietnamese counts runes", input: "Nhân viên dễ thương", expected: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokenCount(tt.input); got != tt.expected {
				t.Errorf("EstimateTokenCount(%q) = %d, expected %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPricingTableValues(t *testing.T) {
	for model, pricing := range PricingTable {
		if pricing.Model != model {
			t.Errorf("Pricing for %s carries model name %s", model, pricing.Model)
		}
		if pricing.InputCostPer1MTokens <= 0 || pricing.OutputCostPer1MTokens <= 0 {
			t.Errorf("Pricing for %s should have positive costs", model)
		}
		if pricing.EstimatedOutputTokens <= 0 {
			t.Errorf("Pricing for %s should have a positive output estimate", model)
		}
	}
	if _, ok := PricingTable[DefaultModel]; !ok {
		t.Fatalf("Default model %s missing from pricing table", DefaultModel)
	}
}

func TestPricingForUnknownModel(t *testing.T) {
	p := PricingFor("gemini-9-ultra")
	if p.Model != "gemini-9-ultra" {
		t.Errorf("Expected model name to be kept, got %s", p.Model)
	}
	if p.InputCostPer1MTokens != PricingTable[DefaultModel].InputCostPer1MTokens {
		t.Error("Unknown models should use default pricing")
	}
}

func testCalls(n int) []Call {
	calls := make([]Call, n)
	for i := range calls {
		calls[i] = Call{
			Label: fmt.Sprintf("MY_SHOP batch %d/%d", i+1, n),
			Request: llm.Request{
				SystemPrompt: "abcdefg",        // 2 tokens
				BatchText:    "abcdefghijklmn", // 4 tokens
			},
		}
	}
	return calls
}

func TestEstimateRun(t *testing.T) {
	estimate := EstimateRun(testCalls(2), "gemini-2.0-flash", false, 0)

	if len(estimate.Batches) != 2 {
		t.Fatalf("Expected 2 batch estimates, got %d", len(estimate.Batches))
	}
	if estimate.Batches[0].InputTokens != 6 {
		t.Errorf("Expected 6 input tokens, got %d", estimate.Batches[0].InputTokens)
	}
	if estimate.TotalInputTokens != 12 || estimate.TotalOutputTokens != 3000 {
		t.Errorf("Unexpected totals: %d in, %d out", estimate.TotalInputTokens, estimate.TotalOutputTokens)
	}

	want := 2 * (6*0.10 + 1500*0.40) / 1000000
	if math.Abs(estimate.TotalCost-want) > 1e-12 {
		t.Errorf("Expected cost %.10f, got %.10f", want, estimate.TotalCost)
	}
	if estimate.ResummarizeTokens != 0 {
		t.Error("No resummarize call should be counted")
	}
	if estimate.RateLimitWarning != "" {
		t.Errorf("Unexpected rate limit warning: %s", estimate.RateLimitWarning)
	}
}

func TestEstimateRun_OutputCappedByMaxTokens(t *testing.T) {
	calls := testCalls(1)
	calls[0].Request.Config = llm.GenerationConfig{MaxOutputTokens: 1000}

	estimate := EstimateRun(calls, "gemini-2.5-flash", false, 0)
	if estimate.Batches[0].OutputTokens != 1000 {
		t.Errorf("Expected output capped at 1000, got %d", estimate.Batches[0].OutputTokens)
	}
}

func TestEstimateRun_Resummarize(t *testing.T) {
	estimate := EstimateRun(testCalls(2), "gemini-2.0-flash", true, 0)
	if estimate.ResummarizeTokens != 220 {
		t.Errorf("Expected 220 resummarize tokens, got %d", estimate.ResummarizeTokens)
	}
	if estimate.TotalInputTokens != 232 || estimate.TotalOutputTokens != 3100 {
		t.Errorf("Unexpected totals: %d in, %d out", estimate.TotalInputTokens, estimate.TotalOutputTokens)
	}

	single := EstimateRun(testCalls(1), "gemini-2.0-flash", true, 0)
	if single.ResummarizeTokens != 0 {
		t.Error("A single batch never needs a resummarize call")
	}
}

func TestRateLimitWarning(t *testing.T) {
	estimate := EstimateRun(testCalls(3), "gemini-2.5-flash", false, 1)
	if estimate.RateLimitWarning == "" {
		t.Fatal("Expected a rate limit warning")
	}
	if !strings.Contains(estimate.RateLimitWarning, "3 requests") {
		t.Errorf("Warning should name the request count: %s", estimate.RateLimitWarning)
	}
	if estimate.ProcessingMinutes != 3 {
		t.Errorf("Expected 3 minutes under throttling, got %.1f", estimate.ProcessingMinutes)
	}
}

func TestFormatEstimate(t *testing.T) {
	output := EstimateRun(testCalls(6), "gemini-2.0-flash", false, 0).FormatEstimate()

	expected := []string{
		"Cost estimate for gemini-2.0-flash",
		"Model calls: 6",
		"Total estimated cost: $",
		"MY_SHOP batch 1/6",
		"... and 1 more batches",
	}
	for _, s := range expected {
		if !strings.Contains(output, s) {
			t.Errorf("Expected output to contain %q", s)
		}
	}
	if strings.Contains(output, "MY_SHOP batch 6/6") {
		t.Error("Only the first 5 batches should be listed")
	}
}
