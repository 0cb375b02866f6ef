package scoring

import (
	"sort"
	"strings"

	"fintel/internal/core"
)

// DefaultSegments maps market segment names to the terms that count as
// a mention of that segment.
var DefaultSegments = map[string][]string{
	"mobile_money":    {"mobile money", "mtn momo", "airtel money", "momo"},
	"digital_lending": {"loan", "lending", "credit", "borrow"},
	"banking":         {"bank", "banking", "stanbic", "centenary", "absa"},
	"payments":        {"payment", "pay", "transaction", "pos"},
	"savings":         {"savings", "sacco", "deposit"},
	"remittances":     {"remittance", "diaspora", "transfer"},
}

const (
	DirectionRising    = "rising"
	DirectionDeclining = "declining"
	DirectionStable    = "stable"
)

// SegmentTrend describes one market segment's momentum inside a batch.
// Momentum is mention frequency weighted by sentiment, so a segment
// everyone talks about positively dominates.
type SegmentTrend struct {
	Segment        string  `json:"segment"`
	Mentions       int     `json:"mentions"`
	Frequency      float64 `json:"mention_frequency"`
	SentimentScore float64 `json:"sentiment_score"`
	Momentum       float64 `json:"momentum"`
	Direction      string  `json:"direction"`
}

// SegmentMomentum computes per-segment trends over the batch.
// sentiment_score = 0.5 + (positive_ratio - negative_ratio)/2, so an
// all-positive segment scores 1.0 and an all-negative one 0.0. The
// result is sorted by momentum descending.
func SegmentMomentum(docs []core.Document, segments map[string][]string) []SegmentTrend {
	if len(docs) == 0 {
		return nil
	}
	if len(segments) == 0 {
		segments = DefaultSegments
	}

	trends := make([]SegmentTrend, 0, len(segments))
	for segment, terms := range segments {
		var mentions, positive, negative int
		for _, doc := range docs {
			text := strings.ToLower(docText(doc))
			matched := false
			for _, term := range terms {
				if strings.Contains(text, term) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			mentions++
			switch doc.SentimentLabel {
			case core.SentimentPositive:
				positive++
			case core.SentimentNegative:
				negative++
			}
		}
		if mentions == 0 {
			continue
		}

		posRatio := float64(positive) / float64(mentions)
		negRatio := float64(negative) / float64(mentions)
		sentiment := 0.5 + (posRatio-negRatio)/2
		frequency := float64(mentions) / float64(len(docs))
		trends = append(trends, SegmentTrend{
			Segment:        segment,
			Mentions:       mentions,
			Frequency:      frequency,
			SentimentScore: sentiment,
			Momentum:       frequency * sentiment,
			Direction:      direction(sentiment, frequency),
		})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Momentum != trends[j].Momentum {
			return trends[i].Momentum > trends[j].Momentum
		}
		return trends[i].Segment < trends[j].Segment
	})
	return trends
}

func direction(sentiment, frequency float64) string {
	switch {
	case sentiment > 0.6 && frequency > 0.1:
		return DirectionRising
	case sentiment < 0.4 && frequency > 0.1:
		return DirectionDeclining
	default:
		return DirectionStable
	}
}

// GrowthSegments returns up to top rising segments in momentum order.
func GrowthSegments(trends []SegmentTrend, top int) []string {
	var out []string
	for _, t := range trends {
		if t.Direction == DirectionRising {
			out = append(out, t.Segment)
		}
		if top > 0 && len(out) == top {
			break
		}
	}
	return out
}
