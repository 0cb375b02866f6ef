package render

import (
	"strings"
	"testing"
	"time"

	"fintel/internal/core"
)

func sampleReport() core.Report {
	return core.Report{
		ID:               "run-1",
		GeneratedAt:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		ExecutiveSummary: "Mobile money fee pressure dominates the week.",
		KeyTrends:        []string{"fee complaints rising", "agent banking expanding"},
		HealthScore:      6.2,
		HealthLabel:      "stable",
		Opportunities:    []core.Opportunity{{Segment: "mobile_money", Summary: "agent | tooling", Evidence: "multiple posts"}},
		Risks:            []core.Risk{{Factor: "regulation", Severity: "medium", Mitigation: "track BOU guidance"}},
		Recommendations:  []string{"watch BOU guidance"},
		Confidence:       0.62,
		ConflictsFound:   1,
		ConflictsNote:    "Market data outweighs anecdotes.",
		Errors:           []string{},
	}
}

func TestMarkdownSections(t *testing.T) {
	md := Markdown(sampleReport())
	for _, want := range []string{
		"# Uganda Fintech Market Intelligence",
		"## Executive Summary",
		"## Market Health: 6.2 / 10 (stable)",
		"- fee complaints rising",
		"## Investment Opportunities",
		"## Risks",
		"1. watch BOU guidance",
		"## Conflicting Signals",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "Degraded run") {
		t.Error("clean run should not carry the degraded banner")
	}
}

func TestMarkdownEscapesTableCells(t *testing.T) {
	md := Markdown(sampleReport())
	if !strings.Contains(md, `agent \| tooling`) {
		t.Fatalf("pipe not escaped in table cell:\n%s", md)
	}
}

func TestMarkdownDegradedBanner(t *testing.T) {
	rep := sampleReport()
	rep.Degraded = true
	rep.Errors = []string{"fetch: feed unreachable"}
	md := Markdown(rep)
	if !strings.Contains(md, "Degraded run") || !strings.Contains(md, "fetch: feed unreachable") {
		t.Fatalf("degraded sections missing:\n%s", md)
	}
}

func TestHTMLWrapsDocument(t *testing.T) {
	html, err := HTML(sampleReport())
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(html, "<!doctype html>") || !strings.Contains(html, "<h1") {
		t.Fatalf("html = %.120s...", html)
	}
	if !strings.Contains(html, "<table>") {
		t.Fatal("tables not rendered, GFM extension missing")
	}
}
