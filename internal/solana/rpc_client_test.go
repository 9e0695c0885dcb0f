package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClient_GetTokenSupply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "getTokenSupply" {
			t.Errorf("expected method getTokenSupply, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": map[string]interface{}{
					"amount":   "1000000000",
					"decimals": 6,
					"uiAmount": 1000.0,
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	supply, err := client.GetTokenSupply(context.Background(), "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	if err != nil {
		t.Fatalf("GetTokenSupply: %v", err)
	}

	if supply == nil {
		t.Fatal("expected supply, got nil")
	}

	if supply.Amount != "1000000000" {
		t.Errorf("expected amount 1000000000, got %s", supply.Amount)
	}

	if supply.Decimals != 6 {
		t.Errorf("expected 6 decimals, got %d", supply.Decimals)
	}
}

func TestHTTPClient_GetTokenSupply_NullValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": nil},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	supply, err := client.GetTokenSupply(context.Background(), "notamint")
	if err != nil {
		t.Fatalf("GetTokenSupply: %v", err)
	}
	if supply != nil {
		t.Fatalf("expected nil supply, got %+v", supply)
	}
}

func TestHTTPClient_GetMintAccountInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getAccountInfo" {
			t.Errorf("expected method getAccountInfo, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": map[string]interface{}{
					"owner": TokenProgramID,
					"data": map[string]interface{}{
						"program": "spl-token",
						"parsed": map[string]interface{}{
							"type": "mint",
							"info": map[string]interface{}{
								"supply":   "420000000",
								"decimals": 9,
							},
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	mint, err := client.GetMintAccountInfo(context.Background(), "somemint")
	if err != nil {
		t.Fatalf("GetMintAccountInfo: %v", err)
	}
	if mint == nil {
		t.Fatal("expected mint info, got nil")
	}
	if mint.Supply != "420000000" {
		t.Errorf("expected supply 420000000, got %s", mint.Supply)
	}
	if !mint.FromAccountInfo {
		t.Error("expected FromAccountInfo to be set")
	}
}

func TestHTTPClient_GetMintAccountInfo_NotAMint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": map[string]interface{}{
					"owner": "11111111111111111111111111111111",
					"data": map[string]interface{}{
						"program": "system",
						"parsed": map[string]interface{}{
							"type": "account",
							"info": map[string]interface{}{},
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	mint, err := client.GetMintAccountInfo(context.Background(), "wallet")
	if err != nil {
		t.Fatalf("GetMintAccountInfo: %v", err)
	}
	if mint != nil {
		t.Fatalf("expected nil for non-mint account, got %+v", mint)
	}
}

func TestHTTPClient_GetTokenLargestAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getTokenLargestAccounts" {
			t.Errorf("expected method getTokenLargestAccounts, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []map[string]interface{}{
					{"address": "holder1", "amount": "500", "decimals": 6, "uiAmount": 0.0005},
					{"address": "holder2", "amount": "300", "decimals": 6, "uiAmount": 0.0003},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	holders, err := client.GetTokenLargestAccounts(context.Background(), "mint")
	if err != nil {
		t.Fatalf("GetTokenLargestAccounts: %v", err)
	}
	if len(holders) != 2 {
		t.Fatalf("expected 2 holders, got %d", len(holders))
	}
	if holders[0].Address != "holder1" {
		t.Errorf("expected holder1 first, got %s", holders[0].Address)
	}
}

func TestHTTPClient_RateLimitExhaustsRetries(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var hookCalls atomic.Int64
	client := NewHTTPClient(server.URL,
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
		WithRateLimitHook(func() { hookCalls.Add(1) }),
	)

	_, err := client.GetTokenSupply(context.Background(), "mint")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// initial attempt + 2 retries
	if got := hits.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if got := hookCalls.Load(); got != 3 {
		t.Errorf("expected rate-limit hook called 3 times, got %d", got)
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "Invalid param"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(time.Millisecond))

	_, err := client.GetTokenSupply(context.Background(), "garbage")
	if err == nil {
		t.Fatal("expected RPC error")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("RPC error should not be retried, got %d attempts", got)
	}
}

func TestHTTPClient_AuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("expected bearer header, got %q", got)
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": nil},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithAuthToken("secret"))
	if _, err := client.GetTokenSupply(context.Background(), "mint"); err != nil {
		t.Fatalf("GetTokenSupply: %v", err)
	}
}
