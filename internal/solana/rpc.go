package solana

import (
	"context"
	"errors"
)

// ErrRateLimited is returned (wrapped) when an endpoint answered 429 on
// every attempt. Callers use it to escalate their own throttling.
var ErrRateLimited = errors.New("rate limited")

// RPCClient defines the Solana RPC HTTP interface used for token verification.
type RPCClient interface {
	// GetTokenSupply retrieves the supply for a mint address.
	// Returns nil when the address does not resolve to a mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error)

	// GetMintAccountInfo retrieves account info for an address and parses it
	// as an SPL mint account. Returns nil when the account does not exist or
	// is not a mint.
	GetMintAccountInfo(ctx context.Context, pubkey string) (*MintInfo, error)

	// GetTokenLargestAccounts retrieves the largest token accounts for a mint.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error)

	// GetTokenAccountsByDelegate retrieves token accounts delegated to an
	// address, bounded by limit.
	GetTokenAccountsByDelegate(ctx context.Context, delegate string, limit int) ([]TokenAccountBalance, error)
}
