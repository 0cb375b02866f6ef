package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"fintel/internal/core"
	"fintel/internal/scoring"
)

type staticSource struct{ docs []core.Document }

func (s staticSource) Fetch(_ context.Context, limit int) ([]core.Document, error) {
	if limit > 0 && len(s.docs) > limit {
		return s.docs[:limit], nil
	}
	return s.docs, nil
}

type scriptedCompleter struct {
	calls int
	out   string
}

func (s *scriptedCompleter) Complete(context.Context, string) (string, error) {
	s.calls++
	return s.out, nil
}

func TestFetchSubstitutesSampleWhenEmpty(t *testing.T) {
	sample := staticSource{docs: []core.Document{{Text: "sample post"}}}
	f := &FetchStage{Source: staticSource{}, Fallback: sample, Limit: 10}
	st, err := f.Run(context.Background(), State{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.RawDocuments) != 1 || st.RawDocuments[0].Text != "sample post" {
		t.Fatalf("raw = %+v", st.RawDocuments)
	}
}

func TestFetchPrefersPrimarySource(t *testing.T) {
	primary := staticSource{docs: []core.Document{{Text: "real post"}}}
	sample := staticSource{docs: []core.Document{{Text: "sample post"}}}
	f := &FetchStage{Source: primary, Fallback: sample, Limit: 10}
	st, _ := f.Run(context.Background(), State{})
	if st.RawDocuments[0].Text != "real post" {
		t.Fatalf("raw = %+v", st.RawDocuments)
	}
}

func TestPreprocessAnnotatesAndFilters(t *testing.T) {
	p := &PreprocessStage{Relevance: scoring.NewRelevance(nil, 0)}
	st := State{RawDocuments: []core.Document{
		{Text: "MTN MoMo mobile money fees are too high for agent banking https://t.co/x @someone"},
		{Text: "the weather in Kampala is lovely today for a walk"},
	}}
	out, err := p.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Documents) != 1 {
		t.Fatalf("documents = %+v", out.Documents)
	}
	doc := out.Documents[0]
	if strings.Contains(doc.CleanText, "https://") || strings.Contains(doc.CleanText, "@someone") {
		t.Fatalf("clean text not cleaned: %q", doc.CleanText)
	}
	if doc.Relevance < 0.45 {
		t.Fatalf("relevance = %v", doc.Relevance)
	}
	if !hasTopic(doc, "fees") {
		t.Fatalf("topics = %v", doc.Topics)
	}
	if doc.SentimentLabel != core.SentimentNegative {
		t.Fatalf("sentiment = %s", doc.SentimentLabel)
	}
}

func TestPreprocessEmptyBatchErrors(t *testing.T) {
	p := &PreprocessStage{Relevance: scoring.NewRelevance(nil, 0)}
	out, err := p.Run(context.Background(), State{})
	if err == nil {
		t.Fatal("expected error")
	}
	if out.Documents == nil {
		t.Fatal("documents slot must still be set")
	}
}

func relevantDocs() []core.Document {
	now := time.Now()
	return []core.Document{
		{CleanText: "MTN MoMo mobile money fees are too high", Text: "MTN MoMo mobile money fees are too high", Topics: []string{"fees"}, SentimentLabel: core.SentimentNegative, PostedAt: now},
		{CleanText: "Airtel Money network coverage is better upcountry", Text: "Airtel Money network coverage is better upcountry", Topics: []string{"coverage"}, SentimentLabel: core.SentimentPositive, PostedAt: now},
		{CleanText: "Bank of Uganda released new agent banking regulation", Text: "Bank of Uganda released new agent banking regulation", Topics: []string{"regulation"}, SentimentLabel: core.SentimentNeutral, PostedAt: now},
	}
}

func TestSocialStageCachesModelInsights(t *testing.T) {
	completer := &scriptedCompleter{out: `[{"type": "pain_point", "insight": "fee sensitivity is rising", "confidence": 0.8, "topic": "fees", "sentiment": "negative"}]`}
	mem := newMemStore()
	s := &SocialStage{Completer: completer, Cache: mem, Trends: scoring.NewTrendDetector(nil, 7), TTL: 30 * time.Minute}

	st := State{Documents: relevantDocs()}
	first, err := s.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("calls = %d", completer.calls)
	}

	second, err := s.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("identical batch should hit the cache, calls = %d", completer.calls)
	}
	if len(first.SocialInsights) != len(second.SocialInsights) {
		t.Fatalf("insight counts differ: %d vs %d", len(first.SocialInsights), len(second.SocialInsights))
	}
}

func TestSocialStageDeterministicInsights(t *testing.T) {
	completer := &scriptedCompleter{out: `[]`}
	s := &SocialStage{Completer: completer, Cache: newMemStore(), Trends: scoring.NewTrendDetector(nil, 7), TTL: time.Minute}
	st, err := s.Run(context.Background(), State{Documents: relevantDocs()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var trending, overview int
	for _, in := range st.SocialInsights {
		if in.Stage != "social" {
			t.Fatalf("insight missing stage: %+v", in)
		}
		switch in.Type {
		case "trending_topic":
			trending++
		case "sentiment_overview":
			overview++
		}
	}
	// Each topic appears in 1/3 of docs, above the 0.1 floor.
	if trending != 3 || overview != 1 {
		t.Fatalf("trending=%d overview=%d insights=%+v", trending, overview, st.SocialInsights)
	}
}

func TestSocialStageSurvivesModelFailure(t *testing.T) {
	completer := &failingCompleter{}
	s := &SocialStage{Completer: completer, Cache: newMemStore(), Trends: scoring.NewTrendDetector(nil, 7), TTL: time.Minute}
	st, err := s.Run(context.Background(), State{Documents: relevantDocs()})
	if err != nil {
		t.Fatalf("model failure must not fail the stage: %v", err)
	}
	if len(st.SocialInsights) == 0 {
		t.Fatal("deterministic insights missing")
	}
}

func TestCompetitorStageFindsMentions(t *testing.T) {
	completer := &scriptedCompleter{out: `{"sentiment": "negative", "summary": "Users complain about MTN MoMo pricing."}`}
	c := &CompetitorStage{Completer: completer, Cache: newMemStore(), Competitors: []string{"MTN MoMo", "Airtel Money", "Chipper Cash"}, TTL: time.Hour}
	st, err := c.Run(context.Background(), State{Documents: relevantDocs()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var summaries, landscapes int
	for _, in := range st.CompetitorInsights {
		switch in.Type {
		case "competitor_summary":
			summaries++
		case "competitive_landscape":
			landscapes++
		}
		if in.Stage != "competitor" {
			t.Fatalf("insight missing stage: %+v", in)
		}
	}
	if summaries != 2 || landscapes != 1 {
		t.Fatalf("summaries=%d landscapes=%d insights=%+v", summaries, landscapes, st.CompetitorInsights)
	}
}

func TestCompetitorStageNoMentionsIsClean(t *testing.T) {
	completer := &scriptedCompleter{}
	c := &CompetitorStage{Completer: completer, Cache: newMemStore(), Competitors: []string{"Chipper Cash"}, TTL: time.Hour}
	docs := []core.Document{{CleanText: "sacco savings growing in Mbarara", PostedAt: time.Now()}}
	st, err := c.Run(context.Background(), State{Documents: docs})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.CompetitorInsights) != 0 || completer.calls != 0 {
		t.Fatalf("insights=%+v calls=%d", st.CompetitorInsights, completer.calls)
	}
}

func TestMarketStageComputesHealth(t *testing.T) {
	completer := &scriptedCompleter{out: `{"opportunities": [{"segment": "mobile_money", "opportunity": "agent tooling"}], "risks": [{"factor": "regulatory tightening", "severity": "medium"}]}`}
	m := &MarketStage{Completer: completer, Cache: newMemStore(), Segments: scoring.DefaultSegments, TTL: time.Hour}
	st, err := m.Run(context.Background(), State{Documents: relevantDocs()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Analysis == nil {
		t.Fatal("analysis missing")
	}
	h := st.Analysis.Health
	if h.Score < 0 || h.Score > 1 {
		t.Fatalf("health = %v", h.Score)
	}
	if h.Label == "" {
		t.Fatal("health label missing")
	}
	if len(st.Analysis.Risks) != 1 || st.Analysis.Risks[0].Severity != "medium" {
		t.Fatalf("risks = %+v", st.Analysis.Risks)
	}
	var healthInsights int
	for _, in := range st.MarketInsights {
		if in.Type == "market_health" {
			healthInsights++
		}
	}
	if healthInsights != 1 {
		t.Fatalf("insights = %+v", st.MarketInsights)
	}
}

func TestTextHelpers(t *testing.T) {
	if got := cleanText("Check https://t.co/abc @user #fintech  now!"); got != "Check fintech now!" {
		t.Fatalf("cleanText = %q", got)
	}
	if !likelyEnglish("short one") {
		t.Fatal("short text should pass")
	}
	if likelyEnglish("nnyo nnyo ssente zange zibuze leero wano kampala") {
		t.Fatal("non-English marker text should fail")
	}
	label, score := lexiconSentiment("fees are too high and support never responds")
	if label != core.SentimentNegative || score >= 0.5 {
		t.Fatalf("sentiment = %s %v", label, score)
	}
	label, _ = lexiconSentiment("coverage is better and cheaper now")
	if label != core.SentimentPositive {
		t.Fatalf("sentiment = %s", label)
	}
	topics := extractTopics("new regulation on loan fees from bank of uganda")
	want := map[string]bool{"regulation": true, "lending": true, "fees": true}
	for _, topic := range topics {
		delete(want, topic)
	}
	if len(want) != 0 {
		t.Fatalf("topics = %v, missing %v", topics, want)
	}
}
