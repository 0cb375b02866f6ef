package scoring

import "fintel/internal/core"

const (
	HealthStrong  = "strong"
	HealthStable  = "stable"
	HealthCaution = "caution"
	HealthWeak    = "weak"
)

// HealthScore blends overall sentiment, average segment momentum, and
// normalized risk into a single [0, 1] indicator. Sentiment carries
// half the weight because it reacts fastest to market shocks.
func HealthScore(sentiment, avgMomentum, riskLevel float64) float64 {
	return core.Clamp01(0.5*sentiment + 0.3*avgMomentum - 0.2*riskLevel)
}

func HealthLabel(score float64) string {
	switch {
	case score >= 0.7:
		return HealthStrong
	case score >= 0.5:
		return HealthStable
	case score >= 0.3:
		return HealthCaution
	default:
		return HealthWeak
	}
}

// OpportunityScore favors markets that are both liked and moving, with
// a smaller reward for low risk.
func OpportunityScore(sentiment, avgMomentum, riskLevel float64) float64 {
	return core.Clamp01(0.4*sentiment + 0.4*avgMomentum + 0.2*(1-riskLevel))
}

// RiskLevel maps risk severities to weights (low 0.25, medium 0.5,
// high 1.0) and normalizes the sum so three high risks saturate the
// scale. An empty assessment reads as moderate background risk.
func RiskLevel(risks []core.Risk) float64 {
	if len(risks) == 0 {
		return 0.3
	}
	total := 0.0
	for _, r := range risks {
		switch r.Severity {
		case "high":
			total += 1.0
		case "medium":
			total += 0.5
		case "low":
			total += 0.25
		default:
			total += 0.5
		}
	}
	if total > 3 {
		total = 3
	}
	return total / 3
}

// AverageMomentum over segment trends, 0 when there are none.
func AverageMomentum(trends []SegmentTrend) float64 {
	if len(trends) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range trends {
		sum += t.Momentum
	}
	return sum / float64(len(trends))
}
