// Package safety queries an upstream risk-scoring service for per-token
// safety scores, falling back to a deterministic local heuristic when the
// service is unreachable. Scoring never fails: every call yields a usable
// score in [0,100].
package safety

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/observability"
)

// DefaultBaseURL is the primary scoring API root.
const DefaultBaseURL = "https://api.rugcheck.xyz/v1"

// DefaultCacheTTL is how long assessments are reused per address. Heuristic
// results are cached identically to real ones.
const DefaultCacheTTL = time.Hour

// Chain is the only chain this scorer is pointed at.
const Chain = "solana"

// maxConsecutiveNotFound aborts the endpoint walk early: several 404s in a
// row means the service is down, not that the token is unknown.
const maxConsecutiveNotFound = 3

const requestTimeout = 10 * time.Second

type cacheEntry struct {
	assessment domain.SafetyAssessment
	storedAt   time.Time
}

// Scorer queries the scoring service with endpoint fallback and a TTL cache.
type Scorer struct {
	baseURL  string
	apiKey   string
	httpc    *http.Client
	cacheTTL time.Duration

	mu             sync.Mutex
	cache          map[string]cacheEntry
	lastSuccessful string // endpoint template with {chain}/{address} slots
}

// Option configures Scorer.
type Option func(*Scorer)

// WithBaseURL overrides the primary API root.
func WithBaseURL(u string) Option {
	return func(s *Scorer) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithAPIKey sets the bearer token sent to the scoring service.
func WithAPIKey(key string) Option {
	return func(s *Scorer) { s.apiKey = key }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(s *Scorer) { s.httpc = h }
}

// WithCacheTTL overrides the assessment cache TTL.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Scorer) { s.cacheTTL = d }
}

// NewScorer creates a scorer.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		baseURL:  DefaultBaseURL,
		httpc:    &http.Client{Timeout: requestTimeout},
		cacheTTL: DefaultCacheTTL,
		cache:    make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// endpointTemplates returns the ranked endpoint list, remembered successful
// template first. Templates carry {chain} and {address} slots.
func (s *Scorer) endpointTemplates() []string {
	templates := []string{
		s.baseURL + "/tokens/scan/{chain}/{address}",
		s.baseURL + "/scan/{chain}/{address}",
		s.baseURL + "/tokens/{chain}/{address}",
		s.baseURL + "/tokens?chain={chain}&address={address}",
		s.baseURL + "/scan?chain={chain}&address={address}",
	}
	if s.baseURL == DefaultBaseURL {
		templates = append(templates,
			"https://api.staking.rugcheck.xyz/v1/tokens/scan/{chain}/{address}",
			"https://rugchecker.com/api/tokens/scan/{chain}/{address}",
			"https://api.rugcheck.xyz/tokens/scan/{chain}/{address}",
		)
	}

	s.mu.Lock()
	last := s.lastSuccessful
	s.mu.Unlock()
	if last != "" {
		templates = append([]string{last}, templates...)
	}

	seen := make(map[string]struct{}, len(templates))
	out := templates[:0]
	for _, t := range templates {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func expand(template, address string) string {
	u := strings.ReplaceAll(template, "{chain}", Chain)
	return strings.ReplaceAll(u, "{address}", address)
}

// Score returns the safety assessment for an address. It never fails: when
// every upstream endpoint is unusable the result is the local heuristic,
// flagged as such and cached like a real result.
func (s *Scorer) Score(ctx context.Context, address string) domain.SafetyAssessment {
	s.mu.Lock()
	if entry, ok := s.cache[address]; ok && time.Since(entry.storedAt) < s.cacheTTL {
		s.mu.Unlock()
		observability.RecordCacheHit("safety")
		return entry.assessment
	}
	s.mu.Unlock()

	assessment, template := s.query(ctx, address)
	if template != "" {
		s.mu.Lock()
		s.lastSuccessful = template
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.cache[address] = cacheEntry{assessment: assessment, storedAt: time.Now()}
	s.mu.Unlock()

	return assessment
}

// query walks the endpoint list. An auth rejection stops the walk outright
// (the key will not get better on another endpoint); three consecutive 404s
// are treated as the service being down.
func (s *Scorer) query(ctx context.Context, address string) (domain.SafetyAssessment, string) {
	consecutiveNotFound := 0

	for _, template := range s.endpointTemplates() {
		endpoint := expand(template, address)

		payload, status, err := s.get(ctx, endpoint)
		if err != nil {
			log.Warn().Err(err).Str("endpoint", endpoint).Msg("safety endpoint failed")
			continue
		}

		switch {
		case status == http.StatusOK:
			if assessment, ok := normalizeAssessment(address, payload); ok {
				return assessment, template
			}
			log.Warn().Str("endpoint", endpoint).Msg("unrecognized safety payload shape")

		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			log.Error().Int("status", status).Msg("safety API rejected credentials, skipping remaining endpoints")
			return heuristicAssessment(address), ""

		case status == http.StatusNotFound:
			consecutiveNotFound++
			if consecutiveNotFound >= maxConsecutiveNotFound {
				log.Warn().Msg("repeated safety API 404s, service looks down")
				return heuristicAssessment(address), ""
			}

		default:
			log.Warn().Int("status", status).Str("endpoint", endpoint).Msg("safety endpoint error")
		}
	}

	return heuristicAssessment(address), ""
}

func (s *Scorer) get(ctx context.Context, endpoint string) (map[string]interface{}, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	start := time.Now()
	resp, err := s.httpc.Do(req)
	observability.RecordUpstreamRequest("rugcheck", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, resp.StatusCode, err
	}
	return payload, resp.StatusCode, nil
}
