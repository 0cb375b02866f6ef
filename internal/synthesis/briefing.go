package synthesis

import (
	"context"
	"fmt"
	"strings"

	"fintel/internal/core"
	"fintel/internal/llm"
)

// Briefing condenses a report into a short daily note. Failure falls
// back to a template over the report fields, so callers always get
// something postable.
func (s *Synthesizer) Briefing(ctx context.Context, rep core.Report) (string, error) {
	prompt := fmt.Sprintf(
		"Write a daily briefing (under 150 words) for fintech investors from this report. Lead with the single most important development.\n\n%s\n\nRespond with JSON: {\"briefing\": \"<text>\"}",
		mustJSON(rep))
	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return fallbackBriefing(rep), fmt.Errorf("briefing completion: %w", err)
	}
	var out struct {
		Briefing string `json:"briefing"`
	}
	if err := llm.DecodeJSON(raw, &out); err != nil || strings.TrimSpace(out.Briefing) == "" {
		return fallbackBriefing(rep), fmt.Errorf("briefing parse failed")
	}
	return strings.TrimSpace(out.Briefing), nil
}

func fallbackBriefing(rep core.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Daily briefing (%s): market health %.1f/10", rep.GeneratedAt.Format("2006-01-02"), rep.HealthScore)
	if rep.HealthLabel != "" {
		fmt.Fprintf(&sb, " (%s)", rep.HealthLabel)
	}
	sb.WriteString(".")
	if len(rep.KeyTrends) > 0 {
		fmt.Fprintf(&sb, " Leading trend: %s.", rep.KeyTrends[0])
	}
	if len(rep.Risks) > 0 {
		fmt.Fprintf(&sb, " Top risk: %s.", rep.Risks[0].Factor)
	}
	fmt.Fprintf(&sb, " Confidence %.0f%%.", rep.Confidence*100)
	return sb.String()
}
