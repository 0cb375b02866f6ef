// Package scoring holds the deterministic analytics: keyword relevance,
// trend detection over a recency window, segment momentum, and the
// market health arithmetic. Everything here is pure computation so the
// pipeline stages stay testable without a model in the loop.
package scoring

import "strings"

// DefaultKeywordWeights covers the Uganda fintech vocabulary. Weights
// are additive per matched keyword and the total is clamped to 1.0.
var DefaultKeywordWeights = map[string]float64{
	"mobile money":   0.30,
	"mtn momo":       0.25,
	"airtel money":   0.25,
	"fintech":        0.20,
	"mobile banking": 0.20,
	"agent banking":  0.15,
	"loan":           0.15,
	"digital wallet": 0.15,
	"bank":           0.10,
	"payments":       0.10,
	"savings":        0.10,
	"remittance":     0.10,
	"transaction":    0.05,
	"ugx":            0.05,
	"uganda":         0.05,
}

const DefaultRelevanceThreshold = 0.45

// Relevance scores free text against a weighted keyword table.
type Relevance struct {
	weights   map[string]float64
	threshold float64
}

func NewRelevance(weights map[string]float64, threshold float64) *Relevance {
	if len(weights) == 0 {
		weights = DefaultKeywordWeights
	}
	if threshold <= 0 {
		threshold = DefaultRelevanceThreshold
	}
	return &Relevance{weights: weights, threshold: threshold}
}

// Score sums the weights of every keyword present in the text, clamped
// to [0, 1]. Matching is case-insensitive substring containment.
func (r *Relevance) Score(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	lower := strings.ToLower(text)
	score := 0.0
	for kw, w := range r.weights {
		if strings.Contains(lower, kw) {
			score += w
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

func (r *Relevance) Relevant(text string) bool {
	return r.Score(text) >= r.threshold
}

func (r *Relevance) Threshold() float64 { return r.threshold }
