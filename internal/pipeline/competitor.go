package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"fintel/internal/cache"
	"fintel/internal/core"
	"fintel/internal/llm"
	"fintel/internal/scoring"
	"fintel/internal/store"
)

// CompetitorStage extracts mentions of tracked competitors, summarizes
// sentiment per competitor (model-assisted, cached, degrading to the
// lexicon labels), and adds a landscape insight ranking competitors by
// mention share. Mentions are persisted best-effort.
type CompetitorStage struct {
	Completer   llm.Completer
	Cache       cache.Store
	Store       *store.Store
	Competitors []string
	TTL         time.Duration
	Logger      *zap.Logger
}

func (c *CompetitorStage) Name() string { return "competitor" }

type competitorMention struct {
	competitor string
	doc        core.Document
}

func (c *CompetitorStage) Run(ctx context.Context, st State) (State, error) {
	st.CompetitorInsights = []core.Insight{}
	if len(st.Documents) == 0 {
		return st, fmt.Errorf("no documents to analyze")
	}

	log := c.log()
	mentions := c.findMentions(st.Documents)
	if len(mentions) == 0 {
		log.Info("no competitor mentions in batch", zap.String("run_id", st.RunID))
		return st, nil
	}

	byCompetitor := map[string][]core.Document{}
	for _, m := range mentions {
		byCompetitor[m.competitor] = append(byCompetitor[m.competitor], m.doc)
		if c.Store != nil {
			err := c.Store.AddMention(ctx, store.Mention{
				Competitor: m.competitor,
				PostID:     m.doc.ID,
				Sentiment:  m.doc.SentimentLabel,
				Context:    m.doc.CleanText,
			})
			if err != nil {
				log.Warn("persist mention failed", zap.String("competitor", m.competitor), zap.Error(err))
			}
		}
	}

	names := make([]string, 0, len(byCompetitor))
	for name := range byCompetitor {
		names = append(names, name)
	}
	sort.Strings(names)

	var insights []core.Insight
	for _, name := range names {
		insights = append(insights, c.summarize(ctx, name, byCompetitor[name]))
	}
	if landscape := c.landscape(st.Documents, byCompetitor); landscape != nil {
		insights = append(insights, *landscape)
	}
	for i := range insights {
		insights[i].Stage = "competitor"
		if insights[i].CreatedAt.IsZero() {
			insights[i].CreatedAt = time.Now()
		}
	}
	st.CompetitorInsights = insights
	return st, nil
}

func (c *CompetitorStage) findMentions(docs []core.Document) []competitorMention {
	var out []competitorMention
	for _, doc := range docs {
		text := strings.ToLower(docContent(doc))
		for _, competitor := range c.Competitors {
			if strings.Contains(text, strings.ToLower(competitor)) {
				out = append(out, competitorMention{competitor: competitor, doc: doc})
			}
		}
	}
	return out
}

type competitorSummary struct {
	Sentiment string `json:"sentiment"`
	Summary   string `json:"summary"`
}

func (c *CompetitorStage) summarize(ctx context.Context, name string, docs []core.Document) core.Insight {
	log := c.log()
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, docContent(d))
	}
	key := cache.KeyParams("competitor", append([]string{name}, texts...)...)

	var summary competitorSummary
	decoded := false
	if cached, _ := c.Cache.Get(ctx, key); cached != nil {
		decoded = json.Unmarshal(cached, &summary) == nil && summary.Summary != ""
	}
	if !decoded {
		raw, err := c.Completer.Complete(ctx, competitorPrompt(name, texts))
		if err != nil {
			log.Warn("competitor model call failed, using lexicon sentiment", zap.String("competitor", name), zap.Error(err))
		} else if err := llm.DecodeJSON(raw, &summary); err != nil {
			log.Warn("competitor model response unparseable", zap.String("competitor", name), zap.Error(err))
		} else if summary.Summary != "" {
			decoded = true
			if blob, err := json.Marshal(summary); err == nil {
				_ = c.Cache.Set(ctx, key, blob, c.TTL)
			}
		}
	}

	sentiment := docMajoritySentiment(docs)
	if decoded && summary.Sentiment != "" {
		sentiment = core.Sentiment(summary.Sentiment)
	}
	text := summary.Summary
	if text == "" {
		text = fmt.Sprintf("%s mentioned in %d posts, overall %s sentiment", name, len(docs), sentiment)
	}
	return core.Insight{
		Type:       "competitor_summary",
		Text:       text,
		Topic:      dominantDocTopic(docs),
		Sentiment:  sentiment,
		Evidence:   texts[0],
		Confidence: capFloat(0.4+0.1*float64(len(docs)), 0.85),
	}
}

func competitorPrompt(name string, texts []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Posts mentioning the fintech competitor %q:\n\n", name)
	for i, t := range texts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
	}
	sb.WriteString("\nSummarize how the market perceives this competitor in one sentence and give the overall sentiment.\n")
	sb.WriteString(`Respond with only JSON: {"sentiment": "positive|negative|neutral", "summary": "..."}`)
	return sb.String()
}

// landscape ranks competitors by mention share using the windowed
// trend scorer with competitor names as topics.
func (c *CompetitorStage) landscape(docs []core.Document, byCompetitor map[string][]core.Document) *core.Insight {
	detector := scoring.NewTrendDetector(c.Competitors, 7)
	trends := detector.Trending(docs)
	if len(trends) == 0 {
		return nil
	}
	leader := trends[0]
	var favorite string
	best := -1.0
	for name, mentioned := range byCompetitor {
		var pos int
		for _, d := range mentioned {
			if d.SentimentLabel == core.SentimentPositive {
				pos++
			}
		}
		ratio := float64(pos) / float64(len(mentioned))
		if ratio > best {
			best, favorite = ratio, name
		}
	}
	text := fmt.Sprintf("%s leads mention volume (%d mentions)", leader.Topic, leader.Mentions)
	if favorite != "" && favorite != leader.Topic {
		text += fmt.Sprintf("; %s draws the most positive sentiment", favorite)
	}
	return &core.Insight{
		Type:       "competitive_landscape",
		Text:       text,
		Confidence: 0.6,
	}
}

func docMajoritySentiment(docs []core.Document) core.Sentiment {
	var pos, neg int
	for _, d := range docs {
		switch d.SentimentLabel {
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

func dominantDocTopic(docs []core.Document) string {
	counts := map[string]int{}
	for _, d := range docs {
		for _, t := range d.Topics {
			counts[t]++
		}
	}
	topic, best := "general", 0
	keys := make([]string, 0, len(counts))
	for t := range counts {
		keys = append(keys, t)
	}
	sort.Strings(keys)
	for _, t := range keys {
		if counts[t] > best {
			topic, best = t, counts[t]
		}
	}
	return topic
}

func docContent(doc core.Document) string {
	if doc.CleanText != "" {
		return doc.CleanText
	}
	return doc.Text
}

func (c *CompetitorStage) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
