package domain

// RiskLevel buckets a safety score into a coarse category.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "VERY_LOW"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

// SafetyAssessment is the scored safety verdict for a token address.
// Score is always within [0,100]; higher is safer.
type SafetyAssessment struct {
	Address     string
	Score       float64
	RiskLevel   RiskLevel
	RiskFactors []string
	// Heuristic is true when the score was derived locally because the
	// upstream scoring service was unavailable.
	Heuristic bool
}

// RiskLevelForScore maps a 0-100 score onto a RiskLevel bucket.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= 90:
		return RiskVeryLow
	case score >= 60:
		return RiskLow
	case score >= 40:
		return RiskMedium
	case score >= 20:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}
