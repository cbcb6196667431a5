package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"swotlens/internal/core"
)

// Supported output formats
const (
	FormatJSON     = "json"
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	topicStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true).Padding(0, 1)

	categoryColors = map[core.Category]lipgloss.Color{
		core.Strengths:     lipgloss.Color("10"),
		core.Weaknesses:    lipgloss.Color("9"),
		core.Opportunities: lipgloss.Color("14"),
		core.Threats:       lipgloss.Color("13"),
	}
)

// Write renders the report in the named format.
func Write(w io.Writer, report *core.AggregatedReport, format string) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return JSON(w, report)
	case FormatText:
		_, err := io.WriteString(w, Text(report))
		return err
	case FormatMarkdown, "md":
		_, err := io.WriteString(w, Markdown(report))
		return err
	}
	return fmt.Errorf("unknown output format %q (use json, text or markdown)", format)
}

// JSON writes the report mapping with two-space indentation. Non-ASCII text
// is written as is.
func JSON(w io.Writer, report *core.AggregatedReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report.StructuredResult); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// Text renders the report for a terminal.
func Text(report *core.AggregatedReport) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SWOT Analysis"))
	b.WriteString("\n")
	if run := runLine(report.Run); run != "" {
		b.WriteString(mutedStyle.Render(run))
		b.WriteString("\n")
	}
	if report.Run.Skipped > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d of %d batches skipped", report.Run.Skipped, report.Run.Batches)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, c := range core.AllCategories {
		findings := report.SWOT.Get(c)
		heading := headingStyle.Foreground(categoryColors[c]).Render(fmt.Sprintf("%s (%d)", c, len(findings)))
		b.WriteString(heading)
		b.WriteString("\n")
		if len(findings) == 0 {
			b.WriteString(mutedStyle.Render("  none"))
			b.WriteString("\n\n")
			continue
		}
		for _, f := range findings {
			b.WriteString("  • ")
			b.WriteString(topicStyle.Render(displayTopic(f)))
			if sev := f.String(c.SeverityField()); sev != "" {
				b.WriteString(mutedStyle.Render(" [" + sev + "]"))
			}
			b.WriteString("\n")
			if d := f.Description(); d != "" {
				b.WriteString("    ")
				b.WriteString(d)
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	if report.ExecutiveSummary != "" {
		b.WriteString(headingStyle.Render("Executive Summary"))
		b.WriteString("\n")
		b.WriteString(boxStyle.Width(78).Render(report.ExecutiveSummary))
		b.WriteString("\n")
	}
	return b.String()
}

// Markdown renders the report as a markdown document.
func Markdown(report *core.AggregatedReport) string {
	var md strings.Builder

	md.WriteString("# SWOT Analysis\n\n")
	if run := runLine(report.Run); run != "" {
		md.WriteString("*" + run + "*\n\n")
	}
	for _, sb := range report.Run.SkippedBatches {
		md.WriteString(fmt.Sprintf("> Skipped %s batch %d: %s\n", sb.Source, sb.Ordinal, sb.Reason))
	}
	if len(report.Run.SkippedBatches) > 0 {
		md.WriteString("\n")
	}

	if report.ExecutiveSummary != "" {
		md.WriteString("## Executive Summary\n\n")
		md.WriteString(report.ExecutiveSummary + "\n\n")
	}

	for _, c := range core.AllCategories {
		findings := report.SWOT.Get(c)
		md.WriteString(fmt.Sprintf("## %s\n\n", c))
		if len(findings) == 0 {
			md.WriteString("_None identified._\n\n")
			continue
		}
		for i, f := range findings {
			md.WriteString(fmt.Sprintf("%d. **%s**", i+1, displayTopic(f)))
			if sev := f.String(c.SeverityField()); sev != "" {
				md.WriteString(fmt.Sprintf(" (%s)", sev))
			}
			if d := f.Description(); d != "" {
				md.WriteString(": " + d)
			}
			md.WriteString("\n")
		}
		md.WriteString("\n")
	}
	return md.String()
}

// WriteToFile writes content to a file in outputDir, creating the directory.
func WriteToFile(content, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = "reports" // Default output directory
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report file %s: %w", filePath, err)
	}
	return filePath, nil
}

// Filename returns the default file name for a report in format.
func Filename(report *core.AggregatedReport, format string) string {
	started := report.Run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	ext := map[string]string{FormatJSON: "json", FormatText: "txt", FormatMarkdown: "md"}[format]
	if ext == "" {
		ext = "json"
	}
	return fmt.Sprintf("swot_%s.%s", started.UTC().Format("2006-01-02_150405"), ext)
}

func runLine(run core.RunInfo) string {
	if run.ID == "" {
		return ""
	}
	parts := []string{"run " + shortID(run.ID)}
	if run.Model != "" {
		parts = append(parts, run.Model)
	}
	parts = append(parts, fmt.Sprintf("%d reviews", run.Reviews), fmt.Sprintf("%d/%d batches", run.Succeeded, run.Batches))
	if run.Duration > 0 {
		parts = append(parts, run.Duration.Round(time.Second).String())
	}
	return strings.Join(parts, " · ")
}

func displayTopic(f core.Finding) string {
	if t := f.Topic(); t != "" {
		return t
	}
	return "(untitled)"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
