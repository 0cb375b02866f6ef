package scoring

import (
	"math"
	"testing"
	"time"

	"fintel/internal/core"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRelevanceMonotonicity(t *testing.T) {
	r := NewRelevance(nil, 0)
	low := r.Score("the weather in kampala is nice")
	mid := r.Score("mobile money is convenient")
	high := r.Score("mobile money agent banking loan fintech in uganda")
	if !(low <= mid && mid <= high) {
		t.Fatalf("scores not monotone: %v %v %v", low, mid, high)
	}
	if low != 0 {
		t.Fatalf("irrelevant text scored %v", low)
	}
}

func TestRelevanceClampedToOne(t *testing.T) {
	r := NewRelevance(nil, 0)
	text := "mobile money mtn momo airtel money fintech mobile banking agent banking loan digital wallet bank payments savings remittance transaction ugx uganda"
	if got := r.Score(text); got != 1.0 {
		t.Fatalf("Score = %v, want clamped 1.0", got)
	}
}

func TestRelevanceEmptyText(t *testing.T) {
	r := NewRelevance(nil, 0)
	if got := r.Score("   "); got != 0 {
		t.Fatalf("Score = %v, want 0", got)
	}
}

func TestRelevanceThreshold(t *testing.T) {
	r := NewRelevance(map[string]float64{"mobile money": 0.5, "fees": 0.2}, 0.45)
	if !r.Relevant("mobile money fees are rising") {
		t.Fatal("0.7 should clear a 0.45 threshold")
	}
	if r.Relevant("fees again") {
		t.Fatal("0.2 should not clear a 0.45 threshold")
	}
}

func docAt(text string, age time.Duration) core.Document {
	return core.Document{Text: text, PostedAt: time.Now().Add(-age)}
}

func TestTrendingCountsOnlyWindowedDocs(t *testing.T) {
	d := NewTrendDetector([]string{"fees", "coverage"}, 7)
	docs := []core.Document{
		docAt("mtn fees are too high", 24*time.Hour),
		docAt("fees going up again", 48*time.Hour),
		docAt("coverage is better upcountry", 24*time.Hour),
		docAt("fees complaint from last month", 30*24*time.Hour),
	}
	trends := d.Trending(docs)
	if len(trends) != 2 {
		t.Fatalf("trends = %+v", trends)
	}
	if trends[0].Topic != "fees" || trends[0].Mentions != 2 {
		t.Fatalf("top trend = %+v", trends[0])
	}
	// 3 docs in window, fees mentioned twice.
	if !approx(trends[0].Score, 2.0/3.0) {
		t.Fatalf("score = %v", trends[0].Score)
	}
}

func TestTrendingDropsInsignificantTopics(t *testing.T) {
	d := NewTrendDetector([]string{"fees", "sacco"}, 7)
	docs := make([]core.Document, 0, 20)
	docs = append(docs, docAt("sacco meeting", time.Hour))
	for i := 0; i < 19; i++ {
		docs = append(docs, docAt("nothing topical here", time.Hour))
	}
	trends := d.Trending(docs)
	// 1/20 = 0.05, below the 0.1 significance floor.
	if len(trends) != 0 {
		t.Fatalf("trends = %+v", trends)
	}
}

func TestTrendingCapsAtTopFive(t *testing.T) {
	topics := []string{"a", "b", "c", "d", "e", "f", "g"}
	d := NewTrendDetector(topics, 7)
	docs := []core.Document{docAt("a b c d e f g", time.Hour), docAt("a b c d e f g", time.Hour)}
	if got := len(d.Trending(docs)); got != 5 {
		t.Fatalf("len = %d, want 5", got)
	}
}

func TestTrendingExcludesUndatedDocs(t *testing.T) {
	d := NewTrendDetector([]string{"fees"}, 7)
	docs := []core.Document{
		{Text: "fees complaint with no timestamp"},
		docAt("fees going up", 24*time.Hour),
	}
	trends := d.Trending(docs)
	// Only the dated document counts toward the window.
	if len(trends) != 1 || trends[0].Mentions != 1 {
		t.Fatalf("trends = %+v", trends)
	}
	if !approx(trends[0].Score, 1.0) {
		t.Fatalf("score = %v", trends[0].Score)
	}
}

func TestTrendingEmptyBatch(t *testing.T) {
	d := NewTrendDetector([]string{"fees"}, 7)
	if got := d.Trending(nil); got != nil {
		t.Fatalf("Trending(nil) = %+v", got)
	}
}

func sentimentDoc(text string, label core.Sentiment) core.Document {
	return core.Document{Text: text, SentimentLabel: label, PostedAt: time.Now()}
}

func TestSegmentMomentumDirections(t *testing.T) {
	segments := map[string][]string{
		"mobile_money": {"mobile money"},
		"banking":      {"bank"},
	}
	docs := []core.Document{
		sentimentDoc("mobile money is great", core.SentimentPositive),
		sentimentDoc("mobile money saved my business", core.SentimentPositive),
		sentimentDoc("bank queues are terrible", core.SentimentNegative),
		sentimentDoc("bank charges keep rising", core.SentimentNegative),
	}
	trends := SegmentMomentum(docs, segments)
	if len(trends) != 2 {
		t.Fatalf("trends = %+v", trends)
	}
	byName := map[string]SegmentTrend{}
	for _, tr := range trends {
		byName[tr.Segment] = tr
	}
	mm := byName["mobile_money"]
	if mm.Direction != DirectionRising {
		t.Fatalf("mobile_money direction = %s", mm.Direction)
	}
	if !approx(mm.SentimentScore, 1.0) || !approx(mm.Frequency, 0.5) || !approx(mm.Momentum, 0.5) {
		t.Fatalf("mobile_money = %+v", mm)
	}
	bank := byName["banking"]
	if bank.Direction != DirectionDeclining {
		t.Fatalf("banking direction = %s", bank.Direction)
	}
	if !approx(bank.SentimentScore, 0.0) {
		t.Fatalf("banking sentiment = %v", bank.SentimentScore)
	}
	// Sorted by momentum descending.
	if trends[0].Segment != "mobile_money" {
		t.Fatalf("order = %+v", trends)
	}
}

func TestSegmentMomentumNeutralIsStable(t *testing.T) {
	docs := []core.Document{
		sentimentDoc("payment delays reported", core.SentimentNeutral),
		sentimentDoc("unrelated chatter", core.SentimentNeutral),
		sentimentDoc("more unrelated chatter", core.SentimentNeutral),
		sentimentDoc("still unrelated", core.SentimentNeutral),
		sentimentDoc("nothing here", core.SentimentNeutral),
		sentimentDoc("nor here", core.SentimentNeutral),
		sentimentDoc("quiet day", core.SentimentNeutral),
		sentimentDoc("quiet evening", core.SentimentNeutral),
		sentimentDoc("quiet night", core.SentimentNeutral),
		sentimentDoc("closing time", core.SentimentNeutral),
	}
	trends := SegmentMomentum(docs, map[string][]string{"payments": {"payment"}})
	if len(trends) != 1 {
		t.Fatalf("trends = %+v", trends)
	}
	// Neutral sentiment 0.5 but frequency 0.1 not above threshold.
	if trends[0].Direction != DirectionStable {
		t.Fatalf("direction = %s", trends[0].Direction)
	}
}

func TestGrowthSegments(t *testing.T) {
	trends := []SegmentTrend{
		{Segment: "a", Direction: DirectionRising},
		{Segment: "b", Direction: DirectionStable},
		{Segment: "c", Direction: DirectionRising},
		{Segment: "d", Direction: DirectionRising},
		{Segment: "e", Direction: DirectionRising},
	}
	got := GrowthSegments(trends, 3)
	if len(got) != 3 || got[0] != "a" || got[1] != "c" || got[2] != "d" {
		t.Fatalf("GrowthSegments = %v", got)
	}
}

func TestHealthScoreClamps(t *testing.T) {
	if got := HealthScore(1, 1, 0); got != 0.8 {
		t.Fatalf("HealthScore = %v", got)
	}
	if got := HealthScore(0, 0, 1); got != 0 {
		t.Fatalf("HealthScore floor = %v", got)
	}
}

func TestHealthLabels(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.75, HealthStrong},
		{0.7, HealthStrong},
		{0.55, HealthStable},
		{0.35, HealthCaution},
		{0.1, HealthWeak},
	}
	for _, c := range cases {
		if got := HealthLabel(c.score); got != c.want {
			t.Errorf("HealthLabel(%v) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestRiskLevel(t *testing.T) {
	if got := RiskLevel(nil); got != 0.3 {
		t.Fatalf("empty risk = %v", got)
	}
	risks := []core.Risk{{Severity: "high"}, {Severity: "medium"}, {Severity: "low"}}
	if got := RiskLevel(risks); !approx(got, 1.75/3) {
		t.Fatalf("RiskLevel = %v", got)
	}
	saturated := []core.Risk{{Severity: "high"}, {Severity: "high"}, {Severity: "high"}, {Severity: "high"}}
	if got := RiskLevel(saturated); got != 1.0 {
		t.Fatalf("saturated = %v", got)
	}
}
