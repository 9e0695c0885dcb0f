package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"solana-token-radar/internal/domain"
)

// DefaultTelegramBaseURL is the Telegram Bot API endpoint.
const DefaultTelegramBaseURL = "https://api.telegram.org"

// Telegram delivers alerts via the Telegram Bot API.
type Telegram struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
}

// TelegramOption configures Telegram.
type TelegramOption func(*Telegram)

// WithTelegramBaseURL overrides the API base URL, used in tests.
func WithTelegramBaseURL(u string) TelegramOption {
	return func(t *Telegram) { t.baseURL = u }
}

// WithTelegramHTTPClient injects a custom HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *Telegram) { t.httpClient = c }
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token, chatID string, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		baseURL:    DefaultTelegramBaseURL,
		token:      token,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Compile-time interface check.
var _ Notifier = (*Telegram)(nil)

// SendAlert formats and delivers a token alert.
func (t *Telegram) SendAlert(ctx context.Context, a *domain.Alert) error {
	return t.SendText(ctx, FormatAlert(a))
}

// SendText delivers a Markdown message to the configured chat.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram notifier not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil || !apiResp.OK {
		return fmt.Errorf("telegram api error: status=%d description=%q", resp.StatusCode, apiResp.Description)
	}
	return nil
}
