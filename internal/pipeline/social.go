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
)

// SocialStage turns the processed batch into social intelligence:
// trending topics and a sentiment overview computed deterministically,
// plus model-generated insights. The model call is cached by content
// hash; a model failure degrades to the deterministic insights alone.
type SocialStage struct {
	Completer llm.Completer
	Cache     cache.Store
	Trends    *scoring.TrendDetector
	TTL       time.Duration
	Logger    *zap.Logger
}

func (s *SocialStage) Name() string { return "social" }

func (s *SocialStage) Run(ctx context.Context, st State) (State, error) {
	st.SocialInsights = []core.Insight{}
	if len(st.Documents) == 0 {
		return st, fmt.Errorf("no documents to analyze")
	}

	insights := s.deterministicInsights(st.Documents)
	insights = append(insights, s.modelInsights(ctx, st)...)
	for i := range insights {
		insights[i].Stage = "social"
		if insights[i].CreatedAt.IsZero() {
			insights[i].CreatedAt = time.Now()
		}
	}
	st.SocialInsights = insights
	return st, nil
}

func (s *SocialStage) deterministicInsights(docs []core.Document) []core.Insight {
	var insights []core.Insight
	for _, trend := range s.Trends.TrendingTags(docs) {
		sentiment := dominantSentimentForTopic(docs, trend.Topic)
		insights = append(insights, core.Insight{
			Type:       "trending_topic",
			Topic:      trend.Topic,
			Sentiment:  sentiment,
			Text:       fmt.Sprintf("%q is trending: mentioned in %d of %d recent posts", trend.Topic, trend.Mentions, len(docs)),
			Evidence:   topicEvidence(docs, trend.Topic),
			Confidence: capFloat(0.5+trend.Score/2, 0.9),
		})
	}

	var pos, neg int
	for _, doc := range docs {
		switch doc.SentimentLabel {
		case core.SentimentPositive:
			pos++
		case core.SentimentNegative:
			neg++
		}
	}
	overall := core.SentimentNeutral
	if pos > neg {
		overall = core.SentimentPositive
	} else if neg > pos {
		overall = core.SentimentNegative
	}
	insights = append(insights, core.Insight{
		Type:       "sentiment_overview",
		Sentiment:  overall,
		Text:       fmt.Sprintf("Batch sentiment: %d positive, %d negative, %d neutral of %d posts", pos, neg, len(docs)-pos-neg, len(docs)),
		Confidence: 0.7,
	})
	return insights
}

type insightPayload struct {
	Type       string  `json:"type"`
	Insight    string  `json:"insight"`
	Confidence float64 `json:"confidence"`
	Topic      string  `json:"topic"`
	Sentiment  string  `json:"sentiment"`
}

func (s *SocialStage) modelInsights(ctx context.Context, st State) []core.Insight {
	log := s.log()
	texts := make([]string, 0, len(st.Documents))
	for _, doc := range st.Documents {
		texts = append(texts, doc.CleanText)
	}
	key := cache.Key("social_intel", texts)

	var payloads []insightPayload
	if cached, _ := s.Cache.Get(ctx, key); cached != nil {
		if err := json.Unmarshal(cached, &payloads); err == nil {
			log.Debug("social insights served from cache", zap.String("key", key))
			return mapInsightPayloads(payloads)
		}
	}

	raw, err := s.Completer.Complete(ctx, socialPrompt(texts))
	if err != nil {
		log.Warn("social model call failed, using deterministic insights only", zap.Error(err))
		return nil
	}
	if err := llm.DecodeJSON(raw, &payloads); err != nil {
		log.Warn("social model response unparseable", zap.Error(err))
		return nil
	}
	if blob, err := json.Marshal(payloads); err == nil {
		_ = s.Cache.Set(ctx, key, blob, s.TTL)
	}
	return mapInsightPayloads(payloads)
}

func socialPrompt(texts []string) string {
	var sb strings.Builder
	sb.WriteString("These are recent social posts about Uganda's fintech market:\n\n")
	for i, t := range texts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
	}
	sb.WriteString("\nExtract up to 3 non-obvious insights an investor should know.\n")
	sb.WriteString(`Respond with only a JSON array: [{"type": "user_behavior|pain_point|opportunity", "insight": "...", "confidence": 0.0, "topic": "...", "sentiment": "positive|negative|neutral"}]`)
	return sb.String()
}

func mapInsightPayloads(payloads []insightPayload) []core.Insight {
	var out []core.Insight
	for _, p := range payloads {
		if strings.TrimSpace(p.Insight) == "" {
			continue
		}
		out = append(out, core.Insight{
			Type:       defaultString(p.Type, "observation"),
			Text:       p.Insight,
			Confidence: core.Clamp01(p.Confidence),
			Topic:      p.Topic,
			Sentiment:  core.Sentiment(p.Sentiment),
		})
	}
	return out
}

func dominantSentimentForTopic(docs []core.Document, topic string) core.Sentiment {
	var pos, neg int
	for _, doc := range docs {
		if !hasTopic(doc, topic) {
			continue
		}
		switch doc.SentimentLabel {
		case core.SentimentPositive:
			pos++
		case core.SentimentNegative:
			neg++
		}
	}
	if pos > neg {
		return core.SentimentPositive
	}
	if neg > pos {
		return core.SentimentNegative
	}
	return core.SentimentNeutral
}

func topicEvidence(docs []core.Document, topic string) string {
	for _, doc := range docs {
		if hasTopic(doc, topic) {
			return doc.CleanText
		}
	}
	return ""
}

func hasTopic(doc core.Document, topic string) bool {
	for _, t := range doc.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

func capFloat(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func (s *SocialStage) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
