// Package core holds the data model shared across the pipeline, the
// relational store, and the rendering layer.
package core

import "time"

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Document is a single social post moving through the pipeline. Raw
// documents carry only source fields; preprocessing fills the derived
// ones (CleanText, Topics, Relevance, Sentiment).
type Document struct {
	ID             int64     `db:"id" json:"id"`
	Source         string    `db:"source" json:"source"`
	Author         string    `db:"author" json:"author"`
	URL            string    `db:"url" json:"url"`
	Text           string    `db:"content" json:"text"`
	CleanText      string    `db:"clean_content" json:"clean_text"`
	Language       string    `db:"language" json:"language"`
	PostedAt       time.Time `db:"posted_at" json:"posted_at"`
	SentimentLabel Sentiment `db:"sentiment_label" json:"sentiment_label,omitempty"`
	SentimentScore float64   `db:"sentiment_score" json:"sentiment_score"`
	Relevance      float64   `db:"relevance_score" json:"relevance_score"`
	Topics         []string  `db:"-" json:"topics,omitempty"`
	Processed      bool      `db:"processed" json:"processed"`
}

// Insight is one analytical finding produced by a stage. Stage records
// which stage produced it; conflict detection groups insights by Topic
// and compares Sentiment across stages.
type Insight struct {
	Type       string    `json:"type"`
	Text       string    `json:"insight"`
	Confidence float64   `json:"confidence"`
	Evidence   string    `json:"evidence,omitempty"`
	Topic      string    `json:"topic,omitempty"`
	Sentiment  Sentiment `json:"sentiment,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Opportunity is an investment opportunity surfaced by market analysis
// or synthesis.
type Opportunity struct {
	Segment    string  `json:"segment"`
	Summary    string  `json:"opportunity"`
	Evidence   string  `json:"evidence,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Potential  string  `json:"potential,omitempty"`
}

// Risk is a market risk with a coarse severity (low, medium, high).
type Risk struct {
	Factor      string `json:"factor"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity"`
	Evidence    string `json:"evidence,omitempty"`
	Mitigation  string `json:"mitigation,omitempty"`
}

// Report is the synthesized output of a pipeline run. A run always
// produces a structurally valid Report, even when every stage failed;
// Errors carries the accumulated "stage: message" entries from the run.
type Report struct {
	ID                string        `json:"id"`
	GeneratedAt       time.Time     `json:"generated_at"`
	ExecutiveSummary  string        `json:"executive_summary"`
	KeyTrends         []string      `json:"key_trends"`
	HealthScore       float64       `json:"market_health_score"`
	HealthLabel       string        `json:"market_health,omitempty"`
	Opportunities     []Opportunity `json:"investment_opportunities"`
	Risks             []Risk        `json:"risks"`
	Recommendations   []string      `json:"recommendations"`
	Confidence        float64       `json:"confidence"`
	ConflictsFound    int           `json:"conflicts_found"`
	ConflictsResolved bool          `json:"conflicts_resolved"`
	ConflictsNote     string        `json:"conflict_resolution,omitempty"`
	GrowthSegments    []string      `json:"growth_segments,omitempty"`
	Degraded          bool          `json:"degraded"`
	Errors            []string      `json:"errors"`
}

// HealthIndicators are the numeric market health aggregates computed
// deterministically by the market stage. When present they override
// whatever health figures the synthesis model produced.
type HealthIndicators struct {
	Score            float64   `json:"health_score"`
	Label            string    `json:"label"`
	OpportunityScore float64   `json:"opportunity_score"`
	RiskLevel        float64   `json:"risk_level"`
	SentimentScore   float64   `json:"sentiment_score"`
	OverallSentiment Sentiment `json:"overall_sentiment"`
	GrowthSegments   []string  `json:"growth_segments"`
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
