package solana

// SPL token program ID, used as the delegate filter program.
const TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// TokenSupply is the result of getTokenSupply for a mint.
type TokenSupply struct {
	Amount   string // raw amount as decimal string
	Decimals int
	UIAmount float64
}

// MintInfo is the mint account state parsed from getAccountInfo.
type MintInfo struct {
	Supply   string
	Decimals int
	// FromAccountInfo marks that the data came from the getAccountInfo
	// fallback rather than getTokenSupply.
	FromAccountInfo bool
}

// TokenAccountBalance is one entry from getTokenLargestAccounts or
// getTokenAccountsByDelegate.
type TokenAccountBalance struct {
	Address  string
	Amount   string
	Decimals int
	UIAmount float64
}
