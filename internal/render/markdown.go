// Package render turns a report into markdown, HTML, and optionally
// PDF for distribution. Rendering is read-only over the report.
package render

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"fintel/internal/core"
)

// Markdown renders the report as a GFM document.
func Markdown(rep core.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Uganda Fintech Market Intelligence\n\n")
	fmt.Fprintf(&sb, "*Report %s, generated %s*\n\n", rep.ID, rep.GeneratedAt.Format("January 2, 2006 15:04 MST"))
	if rep.Degraded {
		sb.WriteString("> **Degraded run.** One or more analysis stages failed; see Errors below.\n\n")
	}

	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(rep.ExecutiveSummary + "\n\n")

	fmt.Fprintf(&sb, "## Market Health: %.1f / 10", rep.HealthScore)
	if rep.HealthLabel != "" {
		fmt.Fprintf(&sb, " (%s)", rep.HealthLabel)
	}
	fmt.Fprintf(&sb, "\n\nConfidence: %.0f%%\n\n", rep.Confidence*100)

	if len(rep.KeyTrends) > 0 {
		sb.WriteString("## Key Trends\n\n")
		for _, t := range rep.KeyTrends {
			fmt.Fprintf(&sb, "- %s\n", t)
		}
		sb.WriteString("\n")
	}

	if len(rep.GrowthSegments) > 0 {
		fmt.Fprintf(&sb, "**Growth segments:** %s\n\n", strings.Join(rep.GrowthSegments, ", "))
	}

	if len(rep.Opportunities) > 0 {
		sb.WriteString("## Investment Opportunities\n\n")
		sb.WriteString("| Segment | Opportunity | Evidence |\n|---|---|---|\n")
		for _, o := range rep.Opportunities {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", tableCell(o.Segment), tableCell(o.Summary), tableCell(o.Evidence))
		}
		sb.WriteString("\n")
	}

	if len(rep.Risks) > 0 {
		sb.WriteString("## Risks\n\n")
		sb.WriteString("| Factor | Severity | Mitigation |\n|---|---|---|\n")
		for _, r := range rep.Risks {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", tableCell(r.Factor), tableCell(r.Severity), tableCell(r.Mitigation))
		}
		sb.WriteString("\n")
	}

	if len(rep.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for i, r := range rep.Recommendations {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
		}
		sb.WriteString("\n")
	}

	if rep.ConflictsFound > 0 {
		sb.WriteString("## Conflicting Signals\n\n")
		fmt.Fprintf(&sb, "%d conflict(s) between analysis stages. %s\n\n", rep.ConflictsFound, rep.ConflictsNote)
	}

	if len(rep.Errors) > 0 {
		sb.WriteString("## Errors\n\n")
		for _, e := range rep.Errors {
			fmt.Fprintf(&sb, "- `%s`\n", e)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

const reportCSS = `body{font-family:Georgia,serif;max-width:840px;margin:0 auto;padding:1.5rem;color:#1c1917;}
h1{border-bottom:2px solid #92400e;padding-bottom:0.3rem;}
h2{color:#78350f;margin-top:1.6rem;}
blockquote{background:#fef3c7;border-left:4px solid #d97706;margin:0;padding:0.5rem 1rem;}
table{width:100%;border-collapse:collapse;font-size:0.9rem;}
th,td{border:1px solid #a8a29e;padding:0.35rem 0.5rem;text-align:left;vertical-align:top;}
thead th{background:#f5f5f4;}
code{background:#f5f5f4;padding:0 0.25rem;font-size:0.85em;}`

// HTML renders the report markdown into a standalone HTML document.
func HTML(rep core.Report) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(Markdown(rep)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>Market Intelligence Report</title>" +
		"<style>" + reportCSS + "</style></head><body>" +
		content.String() +
		"</body></html>", nil
}

func tableCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}
