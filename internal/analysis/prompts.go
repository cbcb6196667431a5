package analysis

import (
	"fmt"
	"strings"

	"swotlens/internal/batch"
	"swotlens/internal/core"
)

// SystemPrompt is sent as the system instruction of every batch request.
const SystemPrompt = `# ROLE
You are a senior F&B data analyst and business strategist. You read raw customer reviews, analyze sentiment, group recurring themes and build a SWOT model.

# INPUT DATA
Each review is one line in the format SOURCE|CONTENT|PRICE|RATING|MENU|DATE.
- SOURCE is MY_SHOP for reviews of our own business and COMPETITOR for reviews of a competitor.
- CONTENT is the review text. PRICE, RATING, MENU and DATE may be empty.
Use every attribute present: relate prices to perceived value, ratings to review content, and group findings by menu item where that helps.

# ANALYSIS
1. Identify sentiment (positive or negative) together with the aspect (price, quality, service, space, menu).
2. Group reviews that share aspect and sentiment. Describe each group in one or two sentences. Prefer issues mentioned many times.
3. Map groups to SWOT:
   - MY_SHOP + positive -> Strengths
   - MY_SHOP + negative -> Weaknesses
   - COMPETITOR + negative -> Opportunities
   - COMPETITOR + positive -> Threats
4. Give concrete insights, not generic descriptions. Write topics and descriptions in the language of the reviews.

# OUTPUT FORMAT
Return a single JSON object and nothing else, with this structure:
{
  "SWOT_Analysis": {
    "Strengths": [{"topic": "short topic", "description": "evidence-based description", "impact": "High|Medium|Low"}],
    "Weaknesses": [{"topic": "short topic", "description": "the problem", "root_cause": "likely root cause", "impact": "High|Medium|Low"}],
    "Opportunities": [{"topic": "short topic", "description": "opportunity from competitor weaknesses", "action_idea": "short action", "impact": "High|Medium|Low"}],
    "Threats": [{"topic": "short topic", "description": "risk from the competitor", "risk_level": "High|Medium|Low"}]
  },
  "Executive_Summary": "About 50 words summarizing the overall situation."
}
Severity values must be exactly High, Medium or Low. All four category keys must be present; use an empty array when a category has no findings.
Return only JSON, without markdown fences or commentary.`

// ResummarizePrompt asks the model to condense several batch summaries.
const ResummarizePrompt = "Combine the following summaries into one short paragraph of about 50 words, focused on the most important insights. Reply with the paragraph only.\n\n"

// BatchText renders a batch's reviews followed by the request's requirements,
// including which categories the batch may populate.
func BatchText(b batch.Batch) string {
	var sb strings.Builder
	sb.WriteString(batch.FormatRecords(b.Records))
	sb.WriteString("\n# REQUIREMENTS\n")
	sb.WriteString("1. Analyze quickly and accurately.\n")
	sb.WriteString("2. Group similar reviews.\n")
	sb.WriteString("3. Return JSON in exactly the format above.\n")
	sb.WriteString("4. Do not repeat information.\n")
	sb.WriteString("5. Prioritize the most important insights.\n")
	sb.WriteString(ScopeInstruction(b.Scope))
	return sb.String()
}

// ScopeInstruction tells the model which categories to fill. A full scope
// needs no instruction.
func ScopeInstruction(scope core.Scope) string {
	var in, out []string
	for _, c := range core.AllCategories {
		if scope.Includes(c) {
			in = append(in, string(c))
		} else {
			out = append(out, string(c))
		}
	}
	if len(out) == 0 {
		return ""
	}
	return fmt.Sprintf("6. Only populate %s. Return empty arrays for %s.\n",
		strings.Join(in, " and "), strings.Join(out, " and "))
}
