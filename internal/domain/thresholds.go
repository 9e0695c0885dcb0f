package domain

// ThresholdConfig holds the numeric gates a candidate must clear before an
// alert is emitted. All six are independently overridable at runtime.
type ThresholdConfig struct {
	MinMarketCap    float64 `json:"min_market_cap"`
	MinVolume       float64 `json:"min_volume"`
	MinPriceChange  float64 `json:"min_price_change"`
	MinLiquidity    float64 `json:"min_liquidity"`
	MinBuySellRatio float64 `json:"min_buy_sell_ratio"`
	MinSafetyScore  float64 `json:"min_safety_score"`
}

// DefaultThresholds returns the stock filter configuration.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		MinMarketCap:    500000,
		MinVolume:       300000,
		MinPriceChange:  20,
		MinLiquidity:    100000,
		MinBuySellRatio: 2.0,
		MinSafetyScore:  80,
	}
}

// MeetsNumeric reports whether the candidate clears the five market-metric
// gates. The check is a strict conjunction; a field the upstream never
// supplied compares as its zero value rather than being skipped.
func (t ThresholdConfig) MeetsNumeric(c TokenCandidate) bool {
	return c.MarketCapUSD >= t.MinMarketCap &&
		c.Volume24hUSD >= t.MinVolume &&
		c.PriceChangePct24h >= t.MinPriceChange &&
		c.LiquidityUSD >= t.MinLiquidity &&
		c.BuySellRatio >= t.MinBuySellRatio
}
