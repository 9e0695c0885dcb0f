package notify

import (
	"fmt"
	"math"
	"strings"

	"solana-token-radar/internal/domain"
)

// FormatAlert renders a token alert as a Telegram Markdown message.
func FormatAlert(a *domain.Alert) string {
	safe := a.Safety.RiskLevel == domain.RiskVeryLow || a.Safety.RiskLevel == domain.RiskLow

	safetyStatus := "⚠ CAUTION"
	safetyEmoji := "🟠"
	if safe {
		safetyStatus = "✓ SAFE"
		safetyEmoji = "🟢"
	}

	validEmoji := "❌"
	if a.Verification.Valid {
		validEmoji = "✅"
	}

	var b strings.Builder
	b.WriteString("🚀 *New Solana Token Signal*\n\n")
	fmt.Fprintf(&b, "🔹 *Token*: %s (%s)\n", a.Token.Name, a.Token.Symbol)
	fmt.Fprintf(&b, "🔹 *Contract*: `%s`\n", shortAddress(a.Token.Address))
	fmt.Fprintf(&b, "🔹 *Market Cap*: $%s\n", groupThousands(a.Token.MarketCapUSD, 2))
	fmt.Fprintf(&b, "🔹 *Volume (24h)*: $%s\n", groupThousands(a.Token.Volume24hUSD, 2))
	fmt.Fprintf(&b, "🔹 *Price Change*: %+.2f%%\n", a.Token.PriceChangePct24h)
	fmt.Fprintf(&b, "🔹 *Liquidity*: $%s\n", groupThousands(a.Token.LiquidityUSD, 2))
	fmt.Fprintf(&b, "🔹 *Buy/Sell Ratio*: %s\n", formatRatio(a.Token.BuySellRatio))
	fmt.Fprintf(&b, "🔹 *Price*: $%.8f\n", a.Token.PriceUSD)
	fmt.Fprintf(&b, "%s *Valid Contract*: %t\n", validEmoji, a.Verification.Valid)
	fmt.Fprintf(&b, "%s *Safety Score*: %.0f/100 (%s)\n", safetyEmoji, a.Safety.Score, safetyStatus)
	if a.Token.SourceURL != "" {
		fmt.Fprintf(&b, "\n[View Chart](%s)", a.Token.SourceURL)
	}
	return b.String()
}

// shortAddress abbreviates a long address to its first six and last four
// characters.
func shortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// formatRatio renders a buy/sell ratio, showing ∞ for a market with buys and
// no sells.
func formatRatio(r float64) string {
	if math.IsInf(r, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.2f", r)
}

// groupThousands formats a number with comma-grouped integer digits.
func groupThousands(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}

	s := fmt.Sprintf("%.*f", decimals, math.Abs(v))
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteString(fracPart)
	return b.String()
}
