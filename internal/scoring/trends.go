package scoring

import (
	"sort"
	"strings"
	"time"

	"fintel/internal/core"
)

// Trend is one topic ranked by mention share within the window.
type Trend struct {
	Topic    string  `json:"topic"`
	Mentions int     `json:"mentions"`
	Score    float64 `json:"trend_score"`
}

// TrendDetector counts topic mentions over a sliding recency window.
// Score is mentions divided by the number of in-window documents, so a
// topic every document mentions scores 1.0.
type TrendDetector struct {
	Topics   []string
	Window   time.Duration
	Top      int
	MinScore float64
	now      func() time.Time
}

func NewTrendDetector(topics []string, windowDays int) *TrendDetector {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &TrendDetector{
		Topics:   topics,
		Window:   time.Duration(windowDays) * 24 * time.Hour,
		Top:      5,
		MinScore: 0.1,
		now:      time.Now,
	}
}

// Trending returns the top topics by score among documents inside the
// window. Documents with a zero timestamp fall outside any window and
// are excluded; every ingest path stamps PostedAt.
func (d *TrendDetector) Trending(docs []core.Document) []Trend {
	recent := d.inWindow(docs)
	if len(recent) == 0 {
		return nil
	}

	counts := make(map[string]int, len(d.Topics))
	for _, doc := range recent {
		text := strings.ToLower(docText(doc))
		for _, topic := range d.Topics {
			if strings.Contains(text, strings.ToLower(topic)) {
				counts[topic]++
			}
		}
	}

	trends := make([]Trend, 0, len(counts))
	for topic, n := range counts {
		score := float64(n) / float64(len(recent))
		if score > d.MinScore {
			trends = append(trends, Trend{Topic: topic, Mentions: n, Score: score})
		}
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Score != trends[j].Score {
			return trends[i].Score > trends[j].Score
		}
		return trends[i].Topic < trends[j].Topic
	})
	if d.Top > 0 && len(trends) > d.Top {
		trends = trends[:d.Top]
	}
	return trends
}

// TrendingTags ranks the topic tags already attached to documents,
// using the same window, significance floor, and top-N policy as
// Trending. Used when preprocessing has extracted topics and substring
// matching would miss them.
func (d *TrendDetector) TrendingTags(docs []core.Document) []Trend {
	recent := d.inWindow(docs)
	if len(recent) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, doc := range recent {
		for _, tag := range doc.Topics {
			counts[tag]++
		}
	}
	trends := make([]Trend, 0, len(counts))
	for tag, n := range counts {
		score := float64(n) / float64(len(recent))
		if score > d.MinScore {
			trends = append(trends, Trend{Topic: tag, Mentions: n, Score: score})
		}
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Score != trends[j].Score {
			return trends[i].Score > trends[j].Score
		}
		return trends[i].Topic < trends[j].Topic
	})
	if d.Top > 0 && len(trends) > d.Top {
		trends = trends[:d.Top]
	}
	return trends
}

func (d *TrendDetector) inWindow(docs []core.Document) []core.Document {
	cutoff := d.now().Add(-d.Window)
	var recent []core.Document
	for _, doc := range docs {
		if doc.PostedAt.After(cutoff) {
			recent = append(recent, doc)
		}
	}
	return recent
}

func docText(doc core.Document) string {
	if doc.CleanText != "" {
		return doc.CleanText
	}
	return doc.Text
}
