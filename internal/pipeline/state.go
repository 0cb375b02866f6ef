package pipeline

import (
	"time"

	"fintel/internal/core"
	"fintel/internal/scoring"
)

// MarketAnalysis aggregates what the market stage computed for a run.
type MarketAnalysis struct {
	SentimentScore   float64                `json:"sentiment_score"`
	OverallSentiment core.Sentiment         `json:"overall_sentiment"`
	Distribution     SentimentDistribution  `json:"distribution"`
	SegmentTrends    []scoring.SegmentTrend `json:"segment_trends"`
	Opportunities    []core.Opportunity     `json:"opportunities"`
	Risks            []core.Risk            `json:"risks"`
	Health           core.HealthIndicators  `json:"health"`
}

type SentimentDistribution struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// State is the shared run state handed from stage to stage. Each stage
// receives its own copy, fills its output slot, and hands the copy
// back; failures land in Errors instead of stopping the run.
type State struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`

	RawDocuments []core.Document `json:"raw_documents"`
	Documents    []core.Document `json:"documents"`

	SocialInsights     []core.Insight `json:"social_insights"`
	CompetitorInsights []core.Insight `json:"competitor_insights"`
	MarketInsights     []core.Insight `json:"market_insights"`

	Analysis *MarketAnalysis `json:"analysis,omitempty"`
	Report   *core.Report    `json:"report,omitempty"`

	Errors []string `json:"errors"`
}

// Clone copies the state deeply enough that a stage mutating its copy
// cannot disturb what previous stages produced.
func (s State) Clone() State {
	out := s
	out.RawDocuments = cloneDocs(s.RawDocuments)
	out.Documents = cloneDocs(s.Documents)
	out.SocialInsights = cloneInsights(s.SocialInsights)
	out.CompetitorInsights = cloneInsights(s.CompetitorInsights)
	out.MarketInsights = cloneInsights(s.MarketInsights)
	out.Errors = append([]string(nil), s.Errors...)
	if s.Analysis != nil {
		a := *s.Analysis
		a.SegmentTrends = append([]scoring.SegmentTrend(nil), s.Analysis.SegmentTrends...)
		a.Opportunities = append([]core.Opportunity(nil), s.Analysis.Opportunities...)
		a.Risks = append([]core.Risk(nil), s.Analysis.Risks...)
		out.Analysis = &a
	}
	if s.Report != nil {
		r := *s.Report
		r.KeyTrends = append([]string(nil), s.Report.KeyTrends...)
		r.Opportunities = append([]core.Opportunity(nil), s.Report.Opportunities...)
		r.Risks = append([]core.Risk(nil), s.Report.Risks...)
		r.Recommendations = append([]string(nil), s.Report.Recommendations...)
		r.Errors = append([]string(nil), s.Report.Errors...)
		out.Report = &r
	}
	return out
}

// AllInsights returns every stage's insights in stage order.
func (s State) AllInsights() []core.Insight {
	out := make([]core.Insight, 0, len(s.SocialInsights)+len(s.CompetitorInsights)+len(s.MarketInsights))
	out = append(out, s.SocialInsights...)
	out = append(out, s.CompetitorInsights...)
	out = append(out, s.MarketInsights...)
	return out
}

func cloneDocs(docs []core.Document) []core.Document {
	if docs == nil {
		return nil
	}
	out := make([]core.Document, len(docs))
	copy(out, docs)
	for i := range out {
		out[i].Topics = append([]string(nil), out[i].Topics...)
	}
	return out
}

func cloneInsights(ins []core.Insight) []core.Insight {
	if ins == nil {
		return nil
	}
	out := make([]core.Insight, len(ins))
	copy(out, ins)
	return out
}
