// Package main runs the token radar: a scheduled market scan that
// qualifies new Solana tokens against configurable thresholds, verifies
// them on chain, scores their safety and delivers Telegram alerts. An
// HTTP control surface exposes runtime tuning and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"solana-token-radar/internal/chain"
	"solana-token-radar/internal/config"
	"solana-token-radar/internal/control"
	"solana-token-radar/internal/marketdata"
	"solana-token-radar/internal/notify"
	"solana-token-radar/internal/pipeline"
	"solana-token-radar/internal/safety"
	"solana-token-radar/internal/state"
	"solana-token-radar/internal/storage"
	chstore "solana-token-radar/internal/storage/clickhouse"
	"solana-token-radar/internal/storage/memory"
	"solana-token-radar/internal/storage/migrations"
	pgstore "solana-token-radar/internal/storage/postgres"
)

func main() {
	config.LoadEnvFile()
	env := config.FromEnv()

	// Flags with env vars as defaults.
	rpcEndpoint := flag.String("rpc-endpoint", env.RPCEndpoint, "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", env.WSEndpoint, "Solana WebSocket endpoint (empty disables the on-chain watcher)")
	telegramToken := flag.String("telegram-token", env.TelegramToken, "Telegram bot token")
	telegramChat := flag.String("telegram-chat", env.TelegramChat, "Telegram chat ID")
	rugcheckKey := flag.String("rugcheck-key", env.RugcheckKey, "RugCheck API key (optional)")
	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string for alert history")
	clickhouseDSN := flag.String("clickhouse-dsn", env.ClickhouseDSN, "ClickHouse connection string for alert history")
	dataDir := flag.String("data-dir", env.DataDir, "Directory for persisted bot state")
	listenAddr := flag.String("listen-addr", env.ListenAddr, "Control HTTP listen address")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if *telegramToken == "" || *telegramChat == "" {
		log.Fatal().Msg("--telegram-token and --telegram-chat are required")
	}
	if *postgresDSN != "" && *clickhouseDSN != "" {
		log.Fatal().Msg("--postgres-dsn and --clickhouse-dsn are mutually exclusive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docs, err := state.NewFileStore(*dataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *dataDir).Msg("could not open state directory")
	}

	alerts, cleanup, err := createAlertStore(ctx, *postgresDSN, *clickhouseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create alert store")
	}
	defer cleanup()

	market := marketdata.NewClient()

	scorerOpts := []safety.Option{}
	if *rugcheckKey != "" {
		scorerOpts = append(scorerOpts, safety.WithAPIKey(*rugcheckKey))
	}
	scorer := safety.NewScorer(scorerOpts...)

	verifier := chain.NewVerifier(*rpcEndpoint, chain.DefaultFallbackEndpoints, nil)

	telegram := notify.NewTelegram(*telegramToken, *telegramChat)
	queue := notify.NewQueue(telegram)

	scanner := pipeline.NewScanner(market, verifier, scorer, queue, alerts, docs)

	srv := &http.Server{
		Addr:    *listenAddr,
		Handler: control.NewServer(scanner, alerts, telegram, queue, verifier).Handler(),
	}

	go queue.Run(ctx)
	go scanner.Run(ctx)

	if *wsEndpoint != "" {
		watcher := chain.NewWatcher(*wsEndpoint, scanner.TriggerScan)
		go watcher.Run(ctx)
	} else {
		log.Info().Msg("no websocket endpoint configured, running on timer only")
	}

	// Startup notice is best-effort; a dead chat API must not block startup.
	go func() {
		msg := fmt.Sprintf("🤖 Token radar started. Scanning every %d minutes.", scanner.IntervalMinutes())
		if err := telegram.SendText(ctx, msg); err != nil {
			log.Warn().Err(err).Msg("could not send startup notice")
		}
	}()

	go func() {
		log.Info().Str("addr", *listenAddr).Msg("control server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("control server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("control server shutdown incomplete")
	}

	log.Info().Msg("shutdown complete")
}

// createAlertStore picks the alert history backend: postgres or
// clickhouse when a DSN is given, in-memory otherwise.
func createAlertStore(ctx context.Context, postgresDSN, clickhouseDSN string) (storage.AlertStore, func(), error) {
	switch {
	case postgresDSN != "":
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Msg("alert history backed by postgres")
		return pgstore.NewAlertStore(pool), pool.Close, nil

	case clickhouseDSN != "":
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("alert history backed by clickhouse")
		return chstore.NewAlertStore(conn), func() {
			if err := conn.Close(); err != nil {
				log.Warn().Err(err).Msg("clickhouse close failed")
			}
		}, nil

	default:
		log.Info().Msg("alert history kept in memory")
		return memory.NewAlertStore(), func() {}, nil
	}
}

