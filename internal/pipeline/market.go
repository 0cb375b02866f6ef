package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fintel/internal/cache"
	"fintel/internal/core"
	"fintel/internal/llm"
	"fintel/internal/scoring"
	"fintel/internal/vectorstore"
)

// MarketStage computes the market-wide picture: sentiment distribution,
// segment momentum, model-extracted opportunities and risks (cached,
// parse-or-empty), and the health indicators that later override the
// synthesis model's numbers. The vector index, when present, supplies
// historical context for rising segments.
type MarketStage struct {
	Completer llm.Completer
	Cache     cache.Store
	Vector    vectorstore.VectorStore
	Segments  map[string][]string
	TTL       time.Duration
	Logger    *zap.Logger
}

func (m *MarketStage) Name() string { return "market" }

func (m *MarketStage) Run(ctx context.Context, st State) (State, error) {
	st.MarketInsights = []core.Insight{}
	if len(st.Documents) == 0 {
		return st, fmt.Errorf("no documents to analyze")
	}

	docs := st.Documents
	dist := distribution(docs)
	sentimentScore := 0.5 + (dist.Positive-dist.Negative)/2
	overall := core.SentimentNeutral
	if dist.Positive > dist.Negative {
		overall = core.SentimentPositive
	} else if dist.Negative > dist.Positive {
		overall = core.SentimentNegative
	}

	segTrends := scoring.SegmentMomentum(docs, m.Segments)
	avgMomentum := scoring.AverageMomentum(segTrends)
	opportunities, risks := m.extractOpportunitiesAndRisks(ctx, docs)
	riskLevel := scoring.RiskLevel(risks)
	healthScore := scoring.HealthScore(sentimentScore, avgMomentum, riskLevel)

	analysis := &MarketAnalysis{
		SentimentScore:   sentimentScore,
		OverallSentiment: overall,
		Distribution:     dist,
		SegmentTrends:    segTrends,
		Opportunities:    opportunities,
		Risks:            risks,
		Health: core.HealthIndicators{
			Score:            healthScore,
			Label:            scoring.HealthLabel(healthScore),
			OpportunityScore: scoring.OpportunityScore(sentimentScore, avgMomentum, riskLevel),
			RiskLevel:        riskLevel,
			SentimentScore:   sentimentScore,
			OverallSentiment: overall,
			GrowthSegments:   scoring.GrowthSegments(segTrends, 3),
		},
	}
	st.Analysis = analysis
	st.MarketInsights = m.buildInsights(ctx, analysis)
	return st, nil
}

func distribution(docs []core.Document) SentimentDistribution {
	var pos, neg int
	for _, d := range docs {
		switch d.SentimentLabel {
		case core.SentimentPositive:
			pos++
		case core.SentimentNegative:
			neg++
		}
	}
	n := float64(len(docs))
	return SentimentDistribution{
		Positive: float64(pos) / n,
		Negative: float64(neg) / n,
		Neutral:  float64(len(docs)-pos-neg) / n,
	}
}

type marketExtraction struct {
	Opportunities []core.Opportunity `json:"opportunities"`
	Risks         []core.Risk        `json:"risks"`
}

func (m *MarketStage) extractOpportunitiesAndRisks(ctx context.Context, docs []core.Document) ([]core.Opportunity, []core.Risk) {
	log := m.log()
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, docContent(d))
	}
	key := cache.Key("market_health", texts)

	var extraction marketExtraction
	if cached, _ := m.Cache.Get(ctx, key); cached != nil {
		if json.Unmarshal(cached, &extraction) == nil {
			return extraction.Opportunities, extraction.Risks
		}
	}

	raw, err := m.Completer.Complete(ctx, marketPrompt(texts))
	if err != nil {
		log.Warn("market extraction call failed, proceeding without model output", zap.Error(err))
		return nil, nil
	}
	if err := llm.DecodeJSON(raw, &extraction); err != nil {
		log.Warn("market extraction response unparseable", zap.Error(err))
		return nil, nil
	}
	if blob, err := json.Marshal(extraction); err == nil {
		_ = m.Cache.Set(ctx, key, blob, m.TTL)
	}
	return extraction.Opportunities, extraction.Risks
}

func marketPrompt(texts []string) string {
	var sb strings.Builder
	sb.WriteString("Recent social posts about Uganda's fintech market:\n\n")
	for i, t := range texts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
	}
	sb.WriteString("\nIdentify investment opportunities and market risks grounded in these posts.\n")
	sb.WriteString(`Respond with only JSON: {"opportunities": [{"segment": "", "opportunity": "", "evidence": "", "confidence": 0.0}], "risks": [{"factor": "", "description": "", "severity": "low|medium|high", "mitigation": ""}]}`)
	return sb.String()
}

func (m *MarketStage) buildInsights(ctx context.Context, analysis *MarketAnalysis) []core.Insight {
	now := time.Now()
	h := analysis.Health
	insights := []core.Insight{{
		Type:  "market_health",
		Stage: "market",
		Text: fmt.Sprintf("Market health %s (%.2f): sentiment %.2f, opportunity %.2f, risk %.2f",
			h.Label, h.Score, h.SentimentScore, h.OpportunityScore, h.RiskLevel),
		Sentiment:  healthSentiment(h.Label),
		Confidence: 0.75,
		CreatedAt:  now,
	}}

	for _, trend := range analysis.SegmentTrends {
		if trend.Direction != scoring.DirectionRising {
			continue
		}
		insights = append(insights, core.Insight{
			Type:       "segment_momentum",
			Stage:      "market",
			Topic:      trend.Segment,
			Sentiment:  core.SentimentPositive,
			Text:       fmt.Sprintf("Segment %s is rising: momentum %.2f over %d mentions", trend.Segment, trend.Momentum, trend.Mentions),
			Evidence:   m.segmentContext(ctx, trend.Segment),
			Confidence: capFloat(0.5+trend.Momentum, 0.85),
			CreatedAt:  now,
		})
	}

	for _, risk := range analysis.Risks {
		insights = append(insights, core.Insight{
			Type:       "risk",
			Stage:      "market",
			Topic:      riskTopic(risk),
			Sentiment:  core.SentimentNegative,
			Text:       fmt.Sprintf("Risk (%s): %s", risk.Severity, risk.Factor),
			Evidence:   risk.Evidence,
			Confidence: 0.6,
			CreatedAt:  now,
		})
	}
	return insights
}

// segmentContext pulls the closest indexed posts for a segment so the
// momentum insight carries historical evidence. Best-effort.
func (m *MarketStage) segmentContext(ctx context.Context, segment string) string {
	if m.Vector == nil {
		return ""
	}
	terms := m.Segments[segment]
	if len(terms) == 0 {
		terms = []string{segment}
	}
	results, err := m.Vector.Search(ctx, strings.Join(terms, " "), 2)
	if err != nil {
		m.log().Warn("vector search failed", zap.String("segment", segment), zap.Error(err))
		return ""
	}
	var texts []string
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	return strings.Join(texts, " | ")
}

func healthSentiment(label string) core.Sentiment {
	switch label {
	case scoring.HealthStrong, scoring.HealthStable:
		return core.SentimentPositive
	case scoring.HealthWeak:
		return core.SentimentNegative
	default:
		return core.SentimentNeutral
	}
}

func riskTopic(risk core.Risk) string {
	lower := strings.ToLower(risk.Factor + " " + risk.Description)
	for _, topic := range []string{"fees", "regulation", "coverage", "reliability", "lending"} {
		if strings.Contains(lower, topic) || strings.Contains(lower, strings.TrimSuffix(topic, "s")) {
			return topic
		}
	}
	return "general"
}

func (m *MarketStage) log() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}
