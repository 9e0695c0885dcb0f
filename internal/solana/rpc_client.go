package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"solana-token-radar/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 5 * time.Second
	DefaultMaxDelay    = 40 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint      string
	authToken     string
	client        *http.Client
	maxRetries    int
	retryDelay    time.Duration
	maxDelay      time.Duration
	backoffMult   float64
	rateLimitHook func()
	requestID     atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithAuthToken sets a bearer token for endpoints that require one.
func WithAuthToken(token string) ClientOption {
	return func(c *HTTPClient) {
		c.authToken = token
	}
}

// WithRateLimitHook registers a callback invoked once per 429 response.
// The verifier uses it to widen its inter-request interval.
func WithRateLimitHook(fn func()) ClientOption {
	return func(c *HTTPClient) {
		c.rateLimitHook = fn
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with bounded retries and exponential backoff.
// Rate-limit responses (429) invoke the rate-limit hook and retry; if every
// attempt is rate limited the returned error wraps ErrRateLimited.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.authToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.authToken)
		}

		start := time.Now()
		resp, err := c.client.Do(req)
		observability.RecordUpstreamRequest("solana_rpc", time.Since(start).Seconds(), err)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if c.rateLimitHook != nil {
				c.rateLimitHook()
			}
			lastErr = fmt.Errorf("%s: %w", c.endpoint, ErrRateLimited)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetTokenSupply retrieves the supply for a mint address.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error) {
	params := []interface{}{mint}

	var result tokenAmountEnvelope
	if err := c.call(ctx, "getTokenSupply", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	return &TokenSupply{
		Amount:   result.Value.Amount,
		Decimals: result.Value.Decimals,
		UIAmount: result.Value.UIAmount,
	}, nil
}

// tokenAmountEnvelope is the raw RPC response for getTokenSupply.
type tokenAmountEnvelope struct {
	Value *tokenAmountValue `json:"value"`
}

type tokenAmountValue struct {
	Amount   string  `json:"amount"`
	Decimals int     `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
}

// GetMintAccountInfo retrieves account info parsed as an SPL mint account.
func (c *HTTPClient) GetMintAccountInfo(ctx context.Context, pubkey string) (*MintInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding": "jsonParsed",
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil || result.Value.Data == nil || result.Value.Data.Parsed == nil {
		return nil, nil
	}

	parsed := result.Value.Data.Parsed
	if parsed.Type != "mint" {
		return nil, nil
	}

	return &MintInfo{
		Supply:          parsed.Info.Supply,
		Decimals:        parsed.Info.Decimals,
		FromAccountInfo: true,
	}, nil
}

// getAccountInfoResult is the raw RPC response for getAccountInfo with
// jsonParsed encoding.
type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64              `json:"lamports"`
	Owner      string              `json:"owner"`
	Data       *getAccountInfoData `json:"data"`
	Executable bool                `json:"executable"`
}

type getAccountInfoData struct {
	Program string                `json:"program"`
	Parsed  *getAccountInfoParsed `json:"parsed"`
}

type getAccountInfoParsed struct {
	Type string             `json:"type"`
	Info getAccountInfoMint `json:"info"`
}

type getAccountInfoMint struct {
	Supply   string `json:"supply"`
	Decimals int    `json:"decimals"`
}

// GetTokenLargestAccounts retrieves the largest token accounts for a mint.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	params := []interface{}{mint}

	var result largestAccountsResult
	if err := c.call(ctx, "getTokenLargestAccounts", params, &result); err != nil {
		return nil, err
	}

	balances := make([]TokenAccountBalance, len(result.Value))
	for i, v := range result.Value {
		balances[i] = TokenAccountBalance{
			Address:  v.Address,
			Amount:   v.Amount,
			Decimals: v.Decimals,
			UIAmount: v.UIAmount,
		}
	}
	return balances, nil
}

// largestAccountsResult is the raw RPC response for getTokenLargestAccounts.
type largestAccountsResult struct {
	Value []largestAccountValue `json:"value"`
}

type largestAccountValue struct {
	Address  string  `json:"address"`
	Amount   string  `json:"amount"`
	Decimals int     `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
}

// GetTokenAccountsByDelegate retrieves token accounts delegated to an address.
func (c *HTTPClient) GetTokenAccountsByDelegate(ctx context.Context, delegate string, limit int) ([]TokenAccountBalance, error) {
	params := []interface{}{
		delegate,
		map[string]interface{}{
			"programId": TokenProgramID,
		},
		map[string]interface{}{
			"encoding": "jsonParsed",
		},
	}

	var result delegateAccountsResult
	if err := c.call(ctx, "getTokenAccountsByDelegate", params, &result); err != nil {
		return nil, err
	}

	var balances []TokenAccountBalance
	for _, v := range result.Value {
		if limit > 0 && len(balances) >= limit {
			break
		}
		b := TokenAccountBalance{Address: v.Pubkey}
		if v.Account != nil && v.Account.Data != nil && v.Account.Data.Parsed != nil {
			amt := v.Account.Data.Parsed.Info.TokenAmount
			b.Amount = amt.Amount
			b.Decimals = amt.Decimals
			b.UIAmount = amt.UIAmount
		}
		balances = append(balances, b)
	}
	return balances, nil
}

// delegateAccountsResult is the raw RPC response for getTokenAccountsByDelegate.
type delegateAccountsResult struct {
	Value []delegateAccountEntry `json:"value"`
}

type delegateAccountEntry struct {
	Pubkey  string                  `json:"pubkey"`
	Account *delegateAccountDetails `json:"account"`
}

type delegateAccountDetails struct {
	Data *delegateAccountData `json:"data"`
}

type delegateAccountData struct {
	Parsed *delegateAccountParsed `json:"parsed"`
}

type delegateAccountParsed struct {
	Info delegateAccountInfo `json:"info"`
}

type delegateAccountInfo struct {
	TokenAmount tokenAmountValue `json:"tokenAmount"`
}
