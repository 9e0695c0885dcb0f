package marketdata

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want float64
	}{
		{"number", 42.5, 42.5},
		{"string", "42.5", 42.5},
		{"percent string", "25%", 25},
		{"padded string", " -3.2 ", -3.2},
		{"string with suffix", "12.5x gain", 12.5},
		{"garbage", "abc", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, safeFloat(tt.in, 0))
		})
	}
}

func TestExtractCandidate_AllFieldsNested(t *testing.T) {
	pair := map[string]interface{}{
		"baseToken": map[string]interface{}{
			"name":    "Example",
			"symbol":  "EXM",
			"address": "ExampleMint1111111111111111111111111111111",
		},
		"fdv":         600000.0,
		"volume":      map[string]interface{}{"h24": 400000.0},
		"priceChange": map[string]interface{}{"h24": "25%"},
		"liquidity":   map[string]interface{}{"usd": 150000.0},
		"txns": map[string]interface{}{
			"h24": map[string]interface{}{"buys": 30.0, "sells": 10.0},
		},
		"priceUsd": "0.0042",
	}

	cand, ok := extractCandidate(pair)
	require.True(t, ok)
	assert.Equal(t, "Example", cand.Name)
	assert.Equal(t, 600000.0, cand.MarketCapUSD)
	assert.Equal(t, 400000.0, cand.Volume24hUSD)
	assert.Equal(t, 25.0, cand.PriceChangePct24h)
	assert.Equal(t, 150000.0, cand.LiquidityUSD)
	assert.Equal(t, 3.0, cand.BuySellRatio)
	assert.Equal(t, 0.0042, cand.PriceUSD)
}

func TestExtractCandidate_BareScalarShapes(t *testing.T) {
	pair := map[string]interface{}{
		"baseToken": map[string]interface{}{
			"address": "ExampleMint1111111111111111111111111111111",
		},
		"volume":      123.0,
		"priceChange": "7.5",
		"liquidity":   1000.0,
	}

	cand, ok := extractCandidate(pair)
	require.True(t, ok)
	assert.Equal(t, 123.0, cand.Volume24hUSD)
	assert.Equal(t, 7.5, cand.PriceChangePct24h)
	assert.Equal(t, 1000.0, cand.LiquidityUSD)
}

func TestExtractCandidate_NeverProducesNaN(t *testing.T) {
	pair := map[string]interface{}{
		"baseToken": map[string]interface{}{
			"address": "ExampleMint1111111111111111111111111111111",
		},
		"fdv":         "???",
		"volume":      map[string]interface{}{"h24": nil},
		"priceChange": map[string]interface{}{},
		"liquidity":   "not a number",
		"priceUsd":    nil,
	}

	cand, ok := extractCandidate(pair)
	require.True(t, ok)
	for name, v := range map[string]float64{
		"marketCap":   cand.MarketCapUSD,
		"volume":      cand.Volume24hUSD,
		"priceChange": cand.PriceChangePct24h,
		"liquidity":   cand.LiquidityUSD,
		"price":       cand.PriceUSD,
	} {
		assert.False(t, math.IsNaN(v), "%s is NaN", name)
		assert.Equal(t, 0.0, v, "%s should default to 0", name)
	}
	assert.Equal(t, 1.0, cand.BuySellRatio)
}

func TestExtractCandidate_DropsImplausibleAddress(t *testing.T) {
	_, ok := extractCandidate(map[string]interface{}{
		"baseToken": map[string]interface{}{"address": "short"},
	})
	assert.False(t, ok)

	_, ok = extractCandidate(map[string]interface{}{
		"name": "no address at all",
	})
	assert.False(t, ok)
}

func TestExtractCandidate_AddressFallbacks(t *testing.T) {
	cand, ok := extractCandidate(map[string]interface{}{
		"tokens": map[string]interface{}{
			"base": map[string]interface{}{"id": "AlternateIdField111111111111111111111111111"},
		},
	})
	require.True(t, ok)
	assert.Equal(t, "AlternateIdField111111111111111111111111111", cand.Address)

	cand, ok = extractCandidate(map[string]interface{}{
		"pairAddress": "PairAddressFallback111111111111111111111111",
	})
	require.True(t, ok)
	assert.Equal(t, "PairAddressFallback111111111111111111111111", cand.Address)
}

func TestExtractMarketCap_Cascade(t *testing.T) {
	addr := map[string]interface{}{"address": "ExampleMint1111111111111111111111111111111"}

	// supply * price
	cand, ok := extractCandidate(map[string]interface{}{
		"baseToken": addr,
		"supply":    1000000.0,
		"priceUsd":  2.0,
	})
	require.True(t, ok)
	assert.Equal(t, 2000000.0, cand.MarketCapUSD)

	// liquidity * 5 estimate
	cand, ok = extractCandidate(map[string]interface{}{
		"baseToken": addr,
		"liquidity": map[string]interface{}{"usd": 100000.0},
	})
	require.True(t, ok)
	assert.Equal(t, 500000.0, cand.MarketCapUSD)

	// marketCap field beats the estimates
	cand, ok = extractCandidate(map[string]interface{}{
		"baseToken": addr,
		"marketCap": 777.0,
		"liquidity": map[string]interface{}{"usd": 100000.0},
	})
	require.True(t, ok)
	assert.Equal(t, 777.0, cand.MarketCapUSD)
}

func TestExtractBuySellRatio_EdgeCases(t *testing.T) {
	addr := map[string]interface{}{"address": "ExampleMint1111111111111111111111111111111"}

	withTxns := func(buys, sells float64) map[string]interface{} {
		return map[string]interface{}{
			"baseToken": addr,
			"txns": map[string]interface{}{
				"h24": map[string]interface{}{"buys": buys, "sells": sells},
			},
		}
	}

	cand, _ := extractCandidate(withTxns(10, 0))
	assert.True(t, math.IsInf(cand.BuySellRatio, 1), "buys>0, sells=0 should be +Inf")

	cand, _ = extractCandidate(withTxns(0, 0))
	assert.Equal(t, 1.0, cand.BuySellRatio, "no transactions should default to exactly 1.0")

	cand, _ = extractCandidate(withTxns(6, 2))
	assert.Equal(t, 3.0, cand.BuySellRatio)
}
