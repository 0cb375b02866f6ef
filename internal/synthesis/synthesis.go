// Package synthesis turns the stage insight lists into the final
// investor report. The model writes the report; when it cannot, a
// deterministic template built from the counts and aggregates already
// on hand takes its place, so a run always ends with a valid report.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintel/internal/core"
	"fintel/internal/llm"
)

// Inputs is everything the synthesizer needs from a run.
type Inputs struct {
	RunID         string
	DocumentCount int
	Social        []core.Insight
	Competitor    []core.Insight
	Market        []core.Insight
	Health        *core.HealthIndicators
	Opportunities []core.Opportunity
	Risks         []core.Risk
	Errors        []string
}

func (in Inputs) allInsights() []core.Insight {
	out := make([]core.Insight, 0, len(in.Social)+len(in.Competitor)+len(in.Market))
	out = append(out, in.Social...)
	out = append(out, in.Competitor...)
	out = append(out, in.Market...)
	return out
}

type Synthesizer struct {
	completer llm.Completer
	now       func() time.Time
	newID     func() string
}

func NewSynthesizer(completer llm.Completer) *Synthesizer {
	return &Synthesizer{
		completer: completer,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// reportPayload is the schema the model is asked to fill.
type reportPayload struct {
	ExecutiveSummary string             `json:"executive_summary"`
	KeyTrends        []string           `json:"key_trends"`
	HealthScore      float64            `json:"market_health_score"`
	Opportunities    []core.Opportunity `json:"investment_opportunities"`
	Risks            []core.Risk        `json:"risks"`
	Recommendations  []string           `json:"recommendations"`
	Confidence       float64            `json:"confidence"`
}

// Synthesize produces the run report. The returned error reports that
// the model path failed and the deterministic fallback was used; the
// report itself is always usable.
func (s *Synthesizer) Synthesize(ctx context.Context, in Inputs, res Resolution) (core.Report, error) {
	raw, err := s.completer.Complete(ctx, synthesisPrompt(in, res))
	if err != nil {
		return s.Fallback(in, res), fmt.Errorf("synthesis completion: %w", err)
	}
	var payload reportPayload
	if err := llm.DecodeJSON(raw, &payload); err != nil {
		return s.Fallback(in, res), fmt.Errorf("synthesis parse: %w", err)
	}

	rep := core.Report{
		ID:               s.newID(),
		GeneratedAt:      s.now(),
		ExecutiveSummary: strings.TrimSpace(payload.ExecutiveSummary),
		KeyTrends:        payload.KeyTrends,
		HealthScore:      clampHealth(payload.HealthScore),
		Opportunities:    payload.Opportunities,
		Risks:            payload.Risks,
		Recommendations:  payload.Recommendations,
		Confidence:       core.Clamp01(payload.Confidence),
	}
	if rep.ExecutiveSummary == "" {
		rep.ExecutiveSummary = fallbackSummary(in)
	}
	// The model's self-reported confidence is tempered by how much
	// evidence actually backed the run.
	rep.Confidence = core.Clamp01((rep.Confidence + evidenceConfidence(in)) / 2)
	s.applyAggregates(&rep, in, res)
	return rep, nil
}

// Fallback builds the deterministic report from counts and aggregates
// alone.
func (s *Synthesizer) Fallback(in Inputs, res Resolution) core.Report {
	rep := core.Report{
		ID:               s.newID(),
		GeneratedAt:      s.now(),
		ExecutiveSummary: fallbackSummary(in),
		KeyTrends:        fallbackTrends(in),
		HealthScore:      5.0,
		Opportunities:    in.Opportunities,
		Risks:            in.Risks,
		Recommendations:  fallbackRecommendations(in),
		Confidence:       minFloat(evidenceConfidence(in), 0.5),
	}
	s.applyAggregates(&rep, in, res)
	return rep
}

// applyAggregates overrides model output with the deterministic health
// indicators and normalizes every list to non-nil.
func (s *Synthesizer) applyAggregates(rep *core.Report, in Inputs, res Resolution) {
	if in.Health != nil {
		rep.HealthScore = clampHealth(in.Health.Score * 10)
		rep.HealthLabel = in.Health.Label
		rep.GrowthSegments = in.Health.GrowthSegments
	}
	rep.ConflictsFound = len(res.Conflicts)
	rep.ConflictsResolved = res.Resolved
	rep.ConflictsNote = res.Note
	if !res.Resolved && rep.Confidence > 0.5 {
		rep.Confidence = 0.5
	}
	if rep.KeyTrends == nil {
		rep.KeyTrends = []string{}
	}
	if rep.Opportunities == nil {
		rep.Opportunities = []core.Opportunity{}
	}
	if rep.Risks == nil {
		rep.Risks = []core.Risk{}
	}
	if rep.Recommendations == nil {
		rep.Recommendations = []string{}
	}
	if rep.Errors == nil {
		rep.Errors = []string{}
	}
}

// evidenceConfidence blends insight volume with average insight
// quality, half each. Ten insights saturate the volume half.
func evidenceConfidence(in Inputs) float64 {
	insights := in.allInsights()
	if len(insights) == 0 {
		return 0.1
	}
	volume := float64(len(insights)) / 10
	if volume > 1 {
		volume = 1
	}
	var quality float64
	for _, i := range insights {
		quality += core.Clamp01(i.Confidence)
	}
	quality /= float64(len(insights))
	return core.Clamp01(0.5*volume + 0.5*quality)
}

func synthesisPrompt(in Inputs, res Resolution) string {
	var sb strings.Builder
	sb.WriteString("Synthesize a daily market intelligence report on Uganda's fintech sector from the stage findings below.\n\n")
	sb.WriteString("Social intelligence insights:\n")
	sb.WriteString(mustJSON(in.Social))
	sb.WriteString("\n\nCompetitor insights:\n")
	sb.WriteString(mustJSON(in.Competitor))
	sb.WriteString("\n\nMarket sentiment insights:\n")
	sb.WriteString(mustJSON(in.Market))
	if in.Health != nil {
		sb.WriteString("\n\nComputed health indicators (authoritative, do not contradict):\n")
		sb.WriteString(mustJSON(in.Health))
	}
	if len(res.Conflicts) > 0 {
		sb.WriteString("\n\nConflicts between stages and their arbitration:\n")
		sb.WriteString(mustJSON(res))
	}
	fmt.Fprintf(&sb, "\n\nThe run analyzed %d documents.", in.DocumentCount)
	if len(in.Errors) > 0 {
		fmt.Fprintf(&sb, " %d stage errors occurred; temper your confidence accordingly.", len(in.Errors))
	}
	sb.WriteString("\n\nRespond with only JSON matching this schema:\n")
	sb.WriteString(`{
  "executive_summary": "3-4 sentences for an investor",
  "key_trends": ["trend with evidence", ...],
  "market_health_score": 0.0,
  "investment_opportunities": [{"segment": "", "opportunity": "", "evidence": "", "confidence": 0.0}],
  "risks": [{"factor": "", "description": "", "severity": "low|medium|high", "mitigation": ""}],
  "recommendations": ["actionable recommendation", ...],
  "confidence": 0.0
}`)
	sb.WriteString("\nmarket_health_score is 0-10, confidence is 0-1.")
	return sb.String()
}

func fallbackSummary(in Inputs) string {
	total := len(in.allInsights())
	if total == 0 {
		return fmt.Sprintf("Automated synthesis was unavailable and no insights were produced from %d documents. Treat this report as a placeholder.", in.DocumentCount)
	}
	label := "unrated"
	if in.Health != nil && in.Health.Label != "" {
		label = in.Health.Label
	}
	return fmt.Sprintf(
		"Automated synthesis was unavailable; this report was assembled from computed aggregates. %d insights were collected across social, competitor, and market analysis of %d documents. Computed market health is %s.",
		total, in.DocumentCount, label)
}

func fallbackTrends(in Inputs) []string {
	var trends []string
	for _, i := range in.Social {
		if i.Type == "trending_topic" && i.Text != "" {
			trends = append(trends, i.Text)
		}
		if len(trends) == 5 {
			break
		}
	}
	if trends == nil {
		trends = []string{}
	}
	return trends
}

func fallbackRecommendations(in Inputs) []string {
	recs := []string{"Re-run synthesis once the completion service recovers before acting on this report."}
	if in.Health == nil {
		return recs
	}
	switch in.Health.Label {
	case "strong", "stable":
		recs = append(recs, "Computed indicators are favorable; prioritize review of the listed growth segments.")
	case "caution", "weak":
		recs = append(recs, "Computed indicators show stress; review the risk list before new commitments.")
	}
	return recs
}

func clampHealth(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}
