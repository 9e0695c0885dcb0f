// Package marketdata fetches candidate tokens and per-token trade metrics
// from the DexScreener aggregator. Upstream has served at least three payload
// shapes over time; all are normalized into domain.TokenCandidate. The
// package fails soft: total upstream unavailability yields an empty candidate
// list, never an error.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/observability"
)

// DefaultBaseURL is the primary aggregator API root.
const DefaultBaseURL = "https://api.dexscreener.com/latest/dex"

// DefaultCacheTTL bounds call volume; the cache is invalidated strictly by
// TTL, never by content change.
const DefaultCacheTTL = 5 * time.Minute

const requestTimeout = 15 * time.Second

// Client queries the aggregator with endpoint fallback and a TTL cache.
type Client struct {
	baseURL  string
	httpc    *http.Client
	limiter  *rate.Limiter
	cacheTTL time.Duration

	mu             sync.Mutex
	cached         []domain.TokenCandidate
	cachedAt       time.Time
	lastSuccessful string
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the primary API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithCacheTTL overrides the candidate cache TTL.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.cacheTTL = d }
}

// WithRateLimit overrides client-side pacing of outbound calls.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// NewClient creates an aggregator client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		httpc:    &http.Client{Timeout: requestTimeout},
		limiter:  rate.NewLimiter(rate.Limit(2), 2),
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// candidateEndpoints returns the ranked endpoint list for a bulk fetch,
// with the remembered successful endpoint first.
func (c *Client) candidateEndpoints() []string {
	endpoints := []string{
		c.baseURL + "/search/trending?chain=solana",
		c.baseURL + "/tokens/solana",
		c.baseURL + "/search?q=solana",
	}
	// Alternate domains only make sense against the real API root.
	if c.baseURL == DefaultBaseURL {
		endpoints = append(endpoints,
			"https://api.dexscreener.com/latest/dex/search/trending?chain=solana",
			"https://api.dexscreener.io/latest/dex/tokens/solana",
			"https://api.dexscreener.com/latest/dex/tokens/solana",
		)
	}
	c.mu.Lock()
	last := c.lastSuccessful
	c.mu.Unlock()
	if last != "" {
		endpoints = append([]string{last}, endpoints...)
	}
	return dedupe(endpoints)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// FetchCandidates returns the current candidate list. Results are cached for
// the TTL window; on total upstream unavailability the result is empty.
func (c *Client) FetchCandidates(ctx context.Context) []domain.TokenCandidate {
	c.mu.Lock()
	if time.Since(c.cachedAt) < c.cacheTTL && c.cached != nil {
		cached := c.cached
		c.mu.Unlock()
		observability.RecordCacheHit("market_candidates")
		return cached
	}
	c.mu.Unlock()

	for _, endpoint := range c.candidateEndpoints() {
		pairs, err := c.fetchPairs(ctx, endpoint)
		if err != nil {
			log.Warn().Err(err).Str("endpoint", endpoint).Msg("market data endpoint failed")
			continue
		}

		candidates := make([]domain.TokenCandidate, 0, len(pairs))
		for _, pair := range pairs {
			if cand, ok := extractCandidate(pair); ok {
				candidates = append(candidates, cand)
			}
		}

		c.mu.Lock()
		c.cached = candidates
		c.cachedAt = time.Now()
		c.lastSuccessful = endpoint
		c.mu.Unlock()

		log.Info().Int("candidates", len(candidates)).Str("endpoint", endpoint).Msg("fetched candidate tokens")
		return candidates
	}

	log.Error().Msg("all market data endpoints failed")
	return nil
}

// FetchPairByAddress looks up one token. Among multiple returned pairs an
// exact address match wins; otherwise the solana pair with the highest
// liquidity; otherwise the first pair. Returns nil when nothing matched.
func (c *Client) FetchPairByAddress(ctx context.Context, address string) *domain.TokenCandidate {
	endpoints := []string{
		c.baseURL + "/tokens/" + address,
		c.baseURL + "/search?q=" + address,
	}
	if c.baseURL == DefaultBaseURL {
		endpoints = append(endpoints,
			"https://api.dexscreener.com/latest/dex/tokens/"+address,
			"https://api.dexscreener.com/latest/dex/search?q="+address,
			"https://api.dexscreener.io/latest/dex/tokens/"+address,
		)
	}
	endpoints = dedupe(endpoints)

	for _, endpoint := range endpoints {
		pairs, err := c.fetchPairs(ctx, endpoint)
		if err != nil {
			log.Warn().Err(err).Str("endpoint", endpoint).Msg("pair lookup endpoint failed")
			continue
		}
		if len(pairs) == 0 {
			continue
		}
		if cand := pickPair(pairs, address); cand != nil {
			return cand
		}
	}

	log.Warn().Str("address", address).Msg("no pair found for address")
	return nil
}

// pickPair applies the pair preference order to a raw pair list.
func pickPair(pairs []map[string]interface{}, address string) *domain.TokenCandidate {
	var solanaPairs []map[string]interface{}
	for _, pair := range pairs {
		chain, _ := pair["chainId"].(string)
		if chain != "" && chain != "solana" {
			continue
		}
		if cand, ok := extractCandidate(pair); ok && strings.EqualFold(cand.Address, address) {
			return &cand
		}
		solanaPairs = append(solanaPairs, pair)
	}

	if len(solanaPairs) > 0 {
		sort.SliceStable(solanaPairs, func(i, j int) bool {
			return nestedFloat(solanaPairs[i], "liquidity", "usd") > nestedFloat(solanaPairs[j], "liquidity", "usd")
		})
		if cand, ok := extractCandidate(solanaPairs[0]); ok {
			return &cand
		}
	}

	if cand, ok := extractCandidate(pairs[0]); ok {
		return &cand
	}
	return nil
}

// fetchPairs GETs one endpoint and normalizes the three known payload shapes
// ({"pairs":[...]}, bare array, {"data":[...]}) into a raw pair list.
func (c *Client) fetchPairs(ctx context.Context, endpoint string) ([]map[string]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	observability.RecordUpstreamRequest("dexscreener", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return decodePairs(body)
}

func decodePairs(body []byte) ([]map[string]interface{}, error) {
	// Bare array shape.
	var list []map[string]interface{}
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var envelope struct {
		Pairs []map[string]interface{} `json:"pairs"`
		Data  []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unrecognized payload: %w", err)
	}
	if envelope.Pairs != nil {
		return envelope.Pairs, nil
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return nil, fmt.Errorf("payload has neither pairs nor data")
}
