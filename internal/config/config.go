// Package config collects the environment-driven settings for the radar.
// Flags in cmd/radar use these values as defaults, so precedence is
// flag > environment > .env file > built-in default.
package config

import (
	"os"
	"strings"
)

// Built-in defaults.
const (
	DefaultRPCEndpoint = "https://api.mainnet-beta.solana.com"
	DefaultDataDir     = "data"
	DefaultListenAddr  = ":8080"
)

// Config holds every externally supplied setting.
type Config struct {
	RPCEndpoint   string
	WSEndpoint    string
	TelegramToken string
	TelegramChat  string
	RugcheckKey   string
	PostgresDSN   string
	ClickhouseDSN string
	DataDir       string
	ListenAddr    string
}

// FromEnv reads the configuration from the environment, applying built-in
// defaults where a variable is unset. Call LoadEnvFile first to pick up .env.
func FromEnv() Config {
	return Config{
		RPCEndpoint:   envOr("SOLANA_RPC_ENDPOINT", DefaultRPCEndpoint),
		WSEndpoint:    os.Getenv("SOLANA_WS_ENDPOINT"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChat:  os.Getenv("TELEGRAM_CHAT_ID"),
		RugcheckKey:   os.Getenv("RUGCHECK_API_KEY"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		ClickhouseDSN: os.Getenv("CLICKHOUSE_DSN"),
		DataDir:       envOr("DATA_DIR", DefaultDataDir),
		ListenAddr:    envOr("LISTEN_ADDR", DefaultListenAddr),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadEnvFile loads variables from .env in the working directory if it
// exists. Variables already set in the environment are not overridden.
func LoadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
