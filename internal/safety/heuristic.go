package safety

import "solana-token-radar/internal/domain"

// Base score assigned before heuristic deductions.
const heuristicBaseScore = 80

// trustedTokens are well-known mints that always score 100 regardless of
// upstream availability.
var trustedTokens = map[string]string{
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"So11111111111111111111111111111111111111112":  "Wrapped SOL",
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  "mSOL",
}

// Prefixes commonly seen on legitimate mints; a different first character is
// a weak negative signal, not a rejection.
var goodPrefixes = "EABSCD"

// heuristicAssessment derives a deterministic local assessment when the
// upstream scoring service cannot be reached.
func heuristicAssessment(address string) domain.SafetyAssessment {
	if name, ok := trustedTokens[address]; ok {
		return domain.SafetyAssessment{
			Address:     address,
			Score:       100,
			RiskLevel:   domain.RiskVeryLow,
			RiskFactors: []string{"known trusted token: " + name},
			Heuristic:   true,
		}
	}

	score := float64(heuristicBaseScore)
	var factors []string

	if len(address) != 43 && len(address) != 44 {
		score -= 10
		factors = append(factors, "unusual address length")
	}
	if len(address) > 0 && !containsByte(goodPrefixes, address[0]) {
		score -= 5
		factors = append(factors, "unusual address prefix")
	}

	return domain.SafetyAssessment{
		Address:     address,
		Score:       clampScore(score),
		RiskLevel:   domain.RiskLevelForScore(score),
		RiskFactors: factors,
		Heuristic:   true,
	}
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
