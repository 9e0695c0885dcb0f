package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSendText(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	tg := NewTelegram("token123", "chat456", WithTelegramBaseURL(srv.URL))
	require.NoError(t, tg.SendText(context.Background(), "hello"))

	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "chat456", gotPayload["chat_id"])
	assert.Equal(t, "hello", gotPayload["text"])
	assert.Equal(t, "Markdown", gotPayload["parse_mode"])
}

func TestTelegramSendAlert(t *testing.T) {
	var gotText string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotText = payload["text"]
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("t", "c", WithTelegramBaseURL(srv.URL))
	require.NoError(t, tg.SendAlert(context.Background(), sampleAlert()))

	assert.Contains(t, gotText, "New Solana Token Signal")
	assert.Contains(t, gotText, "Test Token (TEST)")
}

func TestTelegramAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegram("t", "c", WithTelegramBaseURL(srv.URL))
	err := tg.SendText(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramUnconfigured(t *testing.T) {
	tg := NewTelegram("", "")
	assert.Error(t, tg.SendText(context.Background(), "x"))
}
