package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(url string) *Client {
	return NewClient(WithBaseURL(url), WithRateLimit(rate.Inf, 1))
}

const pairsPayload = `{"pairs":[{"baseToken":{"name":"Alpha","symbol":"ALP","address":"AlphaMint1111111111111111111111111111111111"},"fdv":600000,"volume":{"h24":400000},"priceChange":{"h24":25},"liquidity":{"usd":150000},"txns":{"h24":{"buys":30,"sells":10}},"priceUsd":"0.01"}]}`

func TestFetchCandidates_PairsShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pairsPayload))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	candidates := c.FetchCandidates(context.Background())
	require.Len(t, candidates, 1)
	assert.Equal(t, "ALP", candidates[0].Symbol)
	assert.Equal(t, 3.0, candidates[0].BuySellRatio)
}

func TestFetchCandidates_BareListShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"baseToken":{"address":"BareListMint111111111111111111111111111111"},"fdv":100}]`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	candidates := c.FetchCandidates(context.Background())
	require.Len(t, candidates, 1)
	assert.Equal(t, "BareListMint111111111111111111111111111111", candidates[0].Address)
}

func TestFetchCandidates_DataShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"baseToken":{"address":"DataShapeMint11111111111111111111111111111"}}]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	candidates := c.FetchCandidates(context.Background())
	require.Len(t, candidates, 1)
}

func TestFetchCandidates_EndpointFallback(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// First endpoint variant answers 500, later ones succeed.
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(pairsPayload))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	candidates := c.FetchCandidates(context.Background())
	require.Len(t, candidates, 1)
	assert.GreaterOrEqual(t, calls.Load(), int64(2))
}

func TestFetchCandidates_TotalFailureReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	server.Close() // connection refused for every endpoint under baseURL

	c := newTestClient(server.URL)
	candidates := c.FetchCandidates(context.Background())
	assert.Empty(t, candidates)
}

func TestFetchCandidates_CacheWithinTTL(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(pairsPayload))
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithRateLimit(rate.Inf, 1), WithCacheTTL(time.Hour))

	first := c.FetchCandidates(context.Background())
	after := calls.Load()
	second := c.FetchCandidates(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, after, calls.Load(), "second fetch within TTL must not hit upstream")
}

func TestFetchCandidates_RemembersSuccessfulEndpoint(t *testing.T) {
	var trendingCalls, tokensCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search/trending":
			trendingCalls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/tokens/solana":
			tokensCalls.Add(1)
			w.Write([]byte(pairsPayload))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithRateLimit(rate.Inf, 1), WithCacheTTL(0))

	c.FetchCandidates(context.Background())
	require.Equal(t, int64(1), trendingCalls.Load())

	// Second fetch starts from the remembered endpoint.
	c.FetchCandidates(context.Background())
	assert.Equal(t, int64(1), trendingCalls.Load(), "failed endpoint retried before remembered one")
	assert.Equal(t, int64(2), tokensCalls.Load())
}

func TestFetchPairByAddress_PrefersExactMatch(t *testing.T) {
	exact := "ExactMatchMint1111111111111111111111111111"
	payload := `{"pairs":[
		{"chainId":"solana","baseToken":{"address":"OtherMint11111111111111111111111111111111"},"liquidity":{"usd":999999}},
		{"chainId":"solana","baseToken":{"address":"` + exact + `"},"liquidity":{"usd":5}}
	]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	cand := c.FetchPairByAddress(context.Background(), exact)
	require.NotNil(t, cand)
	assert.Equal(t, exact, cand.Address)
}

func TestFetchPairByAddress_FallsBackToMostLiquid(t *testing.T) {
	payload := `{"pairs":[
		{"chainId":"solana","baseToken":{"address":"LowLiquidityMint1111111111111111111111111"},"liquidity":{"usd":10}},
		{"chainId":"solana","baseToken":{"address":"HighLiquidityMint111111111111111111111111"},"liquidity":{"usd":100000}},
		{"chainId":"ethereum","baseToken":{"address":"WrongChainMint111111111111111111111111111"},"liquidity":{"usd":9999999}}
	]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	cand := c.FetchPairByAddress(context.Background(), "NoSuchMint1111111111111111111111111111111111")
	require.NotNil(t, cand)
	assert.Equal(t, "HighLiquidityMint111111111111111111111111", cand.Address)
}

func TestFetchPairByAddress_NothingFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	assert.Nil(t, c.FetchPairByAddress(context.Background(), "Missing111111111111111111111111111111111111"))
}
