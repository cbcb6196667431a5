package batch

import (
	"fmt"
	"strings"

	"swotlens/internal/core"
)

// RecordFormat describes the column order of FormatRecords output.
const RecordFormat = "SOURCE|CONTENT|PRICE|RATING|MENU|DATE"

// FormatRecords renders reviews as one pipe-delimited line each, preceded by
// a header naming the columns. Absent attributes are empty fields; reviews
// with no content are left out.
func FormatRecords(records []core.ReviewRecord) string {
	var b strings.Builder
	b.WriteString("# REVIEWS DATA (Format: " + RecordFormat + ")\n\n")

	for _, r := range records {
		content := oneLine(r.Content)
		if content == "" {
			continue
		}
		fields := []string{
			string(r.Source),
			content,
			oneLine(r.Price),
			oneLine(r.Rating),
			oneLine(r.MenuItem),
			oneLine(r.Date),
		}
		b.WriteString(strings.Join(fields, "|"))
		b.WriteByte('\n')
	}
	return b.String()
}

// StatsHeader summarizes a batch for the model: review totals per source and
// which optional attributes appear.
func StatsHeader(records []core.ReviewRecord) string {
	counts := make(map[core.Source]int)
	var order []core.Source
	var hasPrice, hasRating, hasMenu, hasDate bool

	for _, r := range records {
		if counts[r.Source] == 0 {
			order = append(order, r.Source)
		}
		counts[r.Source]++
		hasPrice = hasPrice || strings.TrimSpace(r.Price) != ""
		hasRating = hasRating || strings.TrimSpace(r.Rating) != ""
		hasMenu = hasMenu || strings.TrimSpace(r.MenuItem) != ""
		hasDate = hasDate || strings.TrimSpace(r.Date) != ""
	}

	var b strings.Builder
	b.WriteString("# QUICK STATISTICS\n")
	fmt.Fprintf(&b, "- Total reviews: %d\n", len(records))
	fmt.Fprintf(&b, "- %s: %d reviews\n", core.SourceMyShop, counts[core.SourceMyShop])
	fmt.Fprintf(&b, "- %s: %d reviews\n", core.SourceCompetitor, counts[core.SourceCompetitor])
	for _, s := range order {
		if s != core.SourceMyShop && s != core.SourceCompetitor {
			fmt.Fprintf(&b, "- %s: %d reviews\n", s, counts[s])
		}
	}

	var extras []string
	if hasPrice {
		extras = append(extras, "price")
	}
	if hasRating {
		extras = append(extras, "rating")
	}
	if hasMenu {
		extras = append(extras, "menu item")
	}
	if hasDate {
		extras = append(extras, "date")
	}
	if len(extras) > 0 {
		fmt.Fprintf(&b, "- Extra attributes: %s\n", strings.Join(extras, ", "))
	}
	return b.String()
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func oneLine(s string) string {
	return strings.TrimSpace(lineBreaks.Replace(s))
}
