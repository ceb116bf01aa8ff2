package verification

import (
	"aip-platform/deal-portal-backend/internal/config"
)

// overallScore returns the arithmetic mean of the non-nil sub-scores,
// or nil when none are present.
func overallScore(scores ...*float64) *float64 {
	sum := 0.0
	n := 0
	for _, s := range scores {
		if s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// riskLevelFor maps an overall score onto a qualitative risk level.
func riskLevelFor(score float64, t config.RiskThresholds) string {
	switch {
	case score >= t.Low:
		return RiskLow
	case score >= t.Medium:
		return RiskMedium
	case score >= t.High:
		return RiskHigh
	default:
		return RiskCritical
	}
}
