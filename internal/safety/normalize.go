package safety

import (
	"strings"

	"solana-token-radar/internal/domain"
)

// Upstream expresses risk in one of four shapes: a direct numeric score, a
// categorical safetyRating string, a riskLevel enum, or a bare list of risk
// factors. Each maps onto a 0-100 score.

var safetyRatingScores = map[string]float64{
	"VERY_SAFE":     95,
	"SAFE":          85,
	"PROBABLY_SAFE": 75,
	"NEUTRAL":       50,
	"SUSPICIOUS":    30,
	"RISKY":         15,
	"HIGH_RISK":     5,
}

var riskLevelScores = map[string]float64{
	"VERY_LOW":  90,
	"LOW":       75,
	"MEDIUM":    50,
	"HIGH":      25,
	"VERY_HIGH": 10,
}

const unknownCategoryScore = 50

// normalizeAssessment converts a raw upstream payload into an assessment.
// Returns ok=false when none of the known shapes is present, in which case
// the caller falls back to the heuristic.
func normalizeAssessment(address string, payload map[string]interface{}) (domain.SafetyAssessment, bool) {
	factors := extractRiskFactors(payload)

	if score, ok := numericScore(payload["score"]); ok {
		return assessment(address, score, factors), true
	}

	if rating, ok := payload["safetyRating"]; ok {
		if score, ok := numericScore(rating); ok {
			return assessment(address, score, factors), true
		}
		if s, ok := rating.(string); ok {
			score, known := safetyRatingScores[strings.ToUpper(s)]
			if !known {
				score = unknownCategoryScore
			}
			return assessment(address, score, factors), true
		}
	}

	if level := levelString(payload); level != "" {
		score, known := riskLevelScores[strings.ToUpper(level)]
		if !known {
			score = unknownCategoryScore
		}
		return assessment(address, score, factors), true
	}

	if factors != nil {
		score := clampScore(100 - 10*float64(len(factors)))
		return assessment(address, score, factors), true
	}

	return domain.SafetyAssessment{}, false
}

func assessment(address string, score float64, factors []string) domain.SafetyAssessment {
	score = clampScore(score)
	return domain.SafetyAssessment{
		Address:     address,
		Score:       score,
		RiskLevel:   domain.RiskLevelForScore(score),
		RiskFactors: factors,
	}
}

func numericScore(v interface{}) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	return 0, false
}

func levelString(payload map[string]interface{}) string {
	for _, key := range []string{"riskLevel", "risk_level"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func extractRiskFactors(payload map[string]interface{}) []string {
	for _, key := range []string{"riskFactors", "risk_factors"} {
		raw, ok := payload[key].([]interface{})
		if !ok {
			continue
		}
		factors := make([]string, 0, len(raw))
		for _, f := range raw {
			if s, ok := f.(string); ok {
				factors = append(factors, s)
			}
		}
		return factors
	}
	return nil
}
