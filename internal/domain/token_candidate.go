package domain

// TokenCandidate is a token surfaced by the market data source before
// verification and scoring. All numeric fields default to zero when the
// upstream payload omits them or they cannot be parsed; BuySellRatio
// defaults to 1.0 when no transaction data exists and is +Inf when the
// 24h window has buys but no sells.
type TokenCandidate struct {
	Address           string  // mint address on Solana
	Name              string
	Symbol            string
	MarketCapUSD      float64
	Volume24hUSD      float64
	PriceChangePct24h float64
	LiquidityUSD      float64
	BuySellRatio      float64
	PriceUSD          float64
	SourceURL         string // chart URL for the alert
}
