// Package chain confirms that a token address is a real, resolvable asset
// on Solana. Verification is permissive by policy: an address that cannot be
// verified because of upstream failure is accepted rather than rejected, so
// sustained RPC trouble never starves the pipeline. Only an obviously
// malformed address yields a negative result.
package chain

import (
	"context"
	"errors"
	"sync"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/observability"
	"solana-token-radar/internal/solana"
)

// Throttle behavior. The inter-request interval starts at baseInterval and
// widens by intervalStep per observed rate-limit hit; past shortCircuitAt
// the verifier stops calling out entirely and answers permissively, treating
// sustained rate-limiting as a systemic signal rather than a per-token
// failure.
const (
	baseInterval    = 2 * time.Second
	intervalStep    = 200 * time.Millisecond
	shortCircuitAt  = 5 * time.Second
	DefaultCacheTTL = 4 * time.Hour
)

// Address length bounds accepted before base58 decoding is attempted.
const (
	minAddressChars = 30
	maxAddressChars = 50
)

// knownTokens short-circuit verification for well-known mints.
var knownTokens = map[string]string{
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"So11111111111111111111111111111111111111112":  "Wrapped SOL",
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  "mSOL",
	"7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj": "stSOL",
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": "BONK",
	"HZ1JovNiVvGrGNiiYvEozEVgZ58xaU3RKwX8eACQBCt3": "PYTH",
	"orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE":  "ORCA",
	"AFbX8oGjGpmVFywbVouvhQSRmiW2aR1mohfahi4Y2AdB": "GST",
	"MangoCzJ36AjZyKwVj3VnYU4GTonjfVEnJmvvWaxLac":  "MNGO",
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": "RAY",
}

// DefaultFallbackEndpoints are public RPC endpoints tried in order after the
// primary exhausts its retries.
var DefaultFallbackEndpoints = []string{
	"https://api.mainnet-beta.solana.com",
	"https://solana-api.projectserum.com",
	"https://rpc.ankr.com/solana",
	"https://solana.public-rpc.com",
}

type cachedVerification struct {
	result   domain.VerificationResult
	storedAt time.Time
}

// Verifier checks token addresses against the chain with throttling,
// endpoint fallback and a long verification cache.
type Verifier struct {
	clients  []solana.RPCClient // primary first
	cacheTTL time.Duration

	mu          sync.Mutex
	minInterval time.Duration
	lastRequest time.Time
	cache       map[string]cachedVerification
}

// VerifierOption configures Verifier.
type VerifierOption func(*Verifier)

// WithRPCClients injects pre-built RPC clients (primary first), bypassing
// endpoint construction.
func WithRPCClients(clients ...solana.RPCClient) VerifierOption {
	return func(v *Verifier) { v.clients = clients }
}

// WithCacheTTL overrides the verification cache TTL.
func WithCacheTTL(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.cacheTTL = d }
}

// WithMinInterval overrides the starting inter-request interval.
func WithMinInterval(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.minInterval = d }
}

// NewVerifier creates a verifier talking to the primary endpoint with the
// given fallbacks. Extra client options apply to every constructed client.
func NewVerifier(primary string, fallbacks []string, clientOpts []solana.ClientOption, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		cacheTTL:    DefaultCacheTTL,
		minInterval: baseInterval,
		cache:       make(map[string]cachedVerification),
	}

	hook := solana.WithRateLimitHook(v.noteRateLimit)
	for _, endpoint := range append([]string{primary}, fallbacks...) {
		v.clients = append(v.clients, solana.NewHTTPClient(endpoint, append([]solana.ClientOption{hook}, clientOpts...)...))
	}

	for _, opt := range opts {
		opt(v)
	}
	return v
}

// noteRateLimit widens the inter-request interval after a 429.
func (v *Verifier) noteRateLimit() {
	v.mu.Lock()
	v.minInterval += intervalStep
	interval := v.minInterval
	v.mu.Unlock()
	log.Warn().Dur("interval", interval).Msg("rate limit hit, widening RPC request interval")
}

// throttled reports whether the interval has grown past the short-circuit
// threshold.
func (v *Verifier) throttled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.minInterval > shortCircuitAt
}

// waitTurn blocks until the inter-request interval has elapsed since the
// previous outbound call.
func (v *Verifier) waitTurn(ctx context.Context) error {
	v.mu.Lock()
	wait := v.minInterval - time.Since(v.lastRequest)
	v.lastRequest = time.Now().Add(wait)
	v.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// IsValidToken verifies an address. It never returns an error: every failure
// path resolves to a permissive positive result.
func (v *Verifier) IsValidToken(ctx context.Context, address string) domain.VerificationResult {
	if _, ok := knownTokens[address]; ok {
		return domain.VerificationResult{Address: address, Valid: true, Source: domain.SourceKnownList}
	}

	v.mu.Lock()
	if entry, ok := v.cache[address]; ok && time.Since(entry.storedAt) < v.cacheTTL {
		v.mu.Unlock()
		observability.RecordCacheHit("verification")
		return entry.result
	}
	v.mu.Unlock()

	result := v.verify(ctx, address)

	v.mu.Lock()
	v.cache[address] = cachedVerification{result: result, storedAt: time.Now()}
	v.mu.Unlock()

	return result
}

func (v *Verifier) verify(ctx context.Context, address string) domain.VerificationResult {
	decoded, plausible := plausibleAddress(address)
	if !plausible {
		log.Warn().Str("address", address).Msg("address failed format check")
		return domain.VerificationResult{Address: address, Valid: false, Source: domain.SourcePermissiveFallback}
	}

	if _, err := new(edwards25519.Point).SetBytes(decoded); err != nil {
		// Off-curve is normal for program-derived mints; informational only.
		log.Debug().Str("address", address).Msg("address not on ed25519 curve")
	}

	if v.throttled() {
		log.Warn().Str("address", address).Msg("sustained rate limiting, skipping RPC verification")
		return domain.VerificationResult{Address: address, Valid: true, Source: domain.SourcePermissiveFallback}
	}

	for i, client := range v.clients {
		if err := v.waitTurn(ctx); err != nil {
			break
		}

		supply, err := client.GetTokenSupply(ctx, address)
		if err == nil && supply != nil {
			return domain.VerificationResult{Address: address, Valid: true, Source: domain.SourceRPCMetadata}
		}
		if err != nil {
			log.Warn().Err(err).Int("client", i).Str("address", address).Msg("getTokenSupply failed")
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
		}

		mint, err := client.GetMintAccountInfo(ctx, address)
		if err == nil && mint != nil {
			return domain.VerificationResult{Address: address, Valid: true, Source: domain.SourceRPCAccountInfo}
		}
		if err == nil && mint == nil && supply == nil {
			// Both lookups resolved and neither found a mint; the chain
			// answered, so stop walking fallbacks. Accepted by policy.
			break
		}
		if err != nil {
			log.Warn().Err(err).Int("client", i).Str("address", address).Msg("getAccountInfo failed")
		}
	}

	log.Warn().Str("address", address).Msg("verification inconclusive, accepting permissively")
	return domain.VerificationResult{Address: address, Valid: true, Source: domain.SourcePermissiveFallback}
}

// plausibleAddress checks length bounds and that the string decodes to a
// 32-byte base58 key.
func plausibleAddress(address string) ([]byte, bool) {
	if len(address) < minAddressChars || len(address) > maxAddressChars {
		return nil, false
	}
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != 32 {
		return nil, false
	}
	return decoded, true
}

// TokenInfo aggregates supply and largest-holder data for one mint, used by
// the control surface for on-demand inspection.
type TokenInfo struct {
	Address  string                       `json:"address"`
	Supply   string                       `json:"supply"`
	Decimals int                          `json:"decimals"`
	Holders  []solana.TokenAccountBalance `json:"holders"`
}

// TokenInfo fetches supply and holders for a mint. Unlike IsValidToken this
// surfaces errors: it exists for diagnostics, not for the pipeline.
func (v *Verifier) TokenInfo(ctx context.Context, address string) (*TokenInfo, error) {
	if _, ok := plausibleAddress(address); !ok {
		return nil, errors.New("implausible address")
	}
	if len(v.clients) == 0 {
		return nil, errors.New("no RPC clients configured")
	}
	client := v.clients[0]

	if err := v.waitTurn(ctx); err != nil {
		return nil, err
	}

	info := &TokenInfo{Address: address}

	supply, err := client.GetTokenSupply(ctx, address)
	if err != nil {
		return nil, err
	}
	if supply == nil {
		mint, err := client.GetMintAccountInfo(ctx, address)
		if err != nil {
			return nil, err
		}
		if mint == nil {
			return nil, errors.New("address is not a mint")
		}
		info.Supply = mint.Supply
		info.Decimals = mint.Decimals
	} else {
		info.Supply = supply.Amount
		info.Decimals = supply.Decimals
	}

	holders, err := client.GetTokenLargestAccounts(ctx, address)
	if err != nil || len(holders) == 0 {
		holders, err = client.GetTokenAccountsByDelegate(ctx, address, 5)
		if err != nil {
			log.Warn().Err(err).Str("address", address).Msg("holder lookup failed")
		}
	}
	if len(holders) > 5 {
		holders = holders[:5]
	}
	info.Holders = holders

	return info, nil
}
