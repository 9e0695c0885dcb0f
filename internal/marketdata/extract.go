package marketdata

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"solana-token-radar/internal/domain"
)

// minAddressLen is the shortest string accepted as a token address. Records
// that cannot resolve a plausible address are dropped, not errored.
const minAddressLen = 10

var numericPart = regexp.MustCompile(`-?\d+\.?\d*`)

// safeFloat converts an arbitrary JSON value to a float64, defaulting when
// the value is absent or unparsable. Strings are cleaned of percent signs;
// if full parsing fails the leading numeric run is used.
func safeFloat(v interface{}, def float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, "%", ""))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		if m := numericPart.FindString(s); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return f
			}
		}
	}
	return def
}

// nestedFloat reads a field that upstream serves either as a bare scalar or
// wrapped in an object under key (e.g. volume.h24, liquidity.usd).
func nestedFloat(pair map[string]interface{}, field, key string) float64 {
	v, ok := pair[field]
	if !ok {
		return 0
	}
	if obj, ok := v.(map[string]interface{}); ok {
		if inner, ok := obj[key]; ok {
			return safeFloat(inner, 0)
		}
		return 0
	}
	return safeFloat(v, 0)
}

func stringField(m map[string]interface{}, key, def string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func objectField(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key]; ok {
		if obj, ok := v.(map[string]interface{}); ok {
			return obj
		}
	}
	return nil
}

// extractAddress resolves the token address through the known field
// locations. Empty string means no plausible address was found.
func extractAddress(pair, baseToken map[string]interface{}) string {
	addr := stringField(baseToken, "address", "")
	if addr == "" {
		addr = stringField(baseToken, "id", "")
	}
	if addr == "" {
		addr = stringField(pair, "baseTokenAddress", "")
	}
	if addr == "" {
		// Pair address is not the mint, but better than dropping the record.
		addr = stringField(pair, "pairAddress", "")
	}
	if len(addr) < minAddressLen {
		return ""
	}
	return addr
}

// extractBaseToken finds the base-token object across the shapes upstream
// has been observed to serve.
func extractBaseToken(pair map[string]interface{}) map[string]interface{} {
	if bt := objectField(pair, "baseToken"); bt != nil {
		return bt
	}
	if tokens := objectField(pair, "tokens"); tokens != nil {
		if base := objectField(tokens, "base"); base != nil {
			return base
		}
	}
	if base := objectField(pair, "base"); base != nil {
		return base
	}
	return map[string]interface{}{}
}

// extractMarketCap derives market cap through cascading fallbacks:
// fdv, marketCap, market.cap, supply*priceUsd, then liquidity*5 (liquidity
// is assumed to be roughly 20% of market cap), finally zero.
func extractMarketCap(pair map[string]interface{}) float64 {
	mc := safeFloat(pair["fdv"], 0)
	if mc == 0 {
		mc = safeFloat(pair["marketCap"], 0)
	}
	if mc == 0 {
		if market := objectField(pair, "market"); market != nil {
			mc = safeFloat(market["cap"], 0)
		}
	}
	if mc == 0 {
		supply := safeFloat(pair["supply"], 0)
		price := safeFloat(pair["priceUsd"], 0)
		if supply > 0 && price > 0 {
			mc = supply * price
		}
	}
	if mc == 0 {
		if liq := nestedFloat(pair, "liquidity", "usd"); liq > 0 {
			mc = liq * 5
		}
	}
	return mc
}

// extractBuySellRatio computes buys/sells over the 24h window. With no
// transaction data the ratio defaults to 1.0; all buys and no sells is +Inf.
func extractBuySellRatio(pair map[string]interface{}) float64 {
	txns := objectField(pair, "txns")
	if txns == nil {
		return 1.0
	}
	h24 := objectField(txns, "h24")
	if h24 == nil {
		return 1.0
	}
	buys := safeFloat(h24["buys"], 0)
	sells := safeFloat(h24["sells"], 0)
	switch {
	case sells > 0:
		return buys / sells
	case buys > 0:
		return math.Inf(1)
	default:
		return 1.0
	}
}

// extractCandidate normalizes one raw pair object into a TokenCandidate.
// Returns ok=false when the record has no plausible address.
func extractCandidate(pair map[string]interface{}) (domain.TokenCandidate, bool) {
	baseToken := extractBaseToken(pair)

	addr := extractAddress(pair, baseToken)
	if addr == "" {
		return domain.TokenCandidate{}, false
	}

	return domain.TokenCandidate{
		Address:           addr,
		Name:              stringField(baseToken, "name", "Unknown"),
		Symbol:            stringField(baseToken, "symbol", "Unknown"),
		MarketCapUSD:      extractMarketCap(pair),
		Volume24hUSD:      nestedFloat(pair, "volume", "h24"),
		PriceChangePct24h: nestedFloat(pair, "priceChange", "h24"),
		LiquidityUSD:      nestedFloat(pair, "liquidity", "usd"),
		BuySellRatio:      extractBuySellRatio(pair),
		PriceUSD:          safeFloat(pair["priceUsd"], 0),
		SourceURL:         stringField(pair, "url", "https://dexscreener.com/solana/"+addr),
	}, true
}
