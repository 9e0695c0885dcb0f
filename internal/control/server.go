// Package control exposes the HTTP surface for operating the radar:
// inspecting status, tuning thresholds, pausing scans and firing test alerts.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"solana-token-radar/internal/chain"
	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/notify"
	"solana-token-radar/internal/observability"
	"solana-token-radar/internal/pipeline"
	"solana-token-radar/internal/storage"
)

const defaultAlertLimit = 20

// TokenInspector fetches on-chain supply and holder details for a mint.
type TokenInspector interface {
	TokenInfo(ctx context.Context, address string) (*chain.TokenInfo, error)
}

// Server wires the control endpoints to the scanner and its stores.
type Server struct {
	scanner   *pipeline.Scanner
	alerts    storage.AlertStore
	notifier  notify.Notifier
	sink      pipeline.AlertSink
	inspector TokenInspector
	startedAt time.Time
}

// NewServer creates a control server.
func NewServer(scanner *pipeline.Scanner, alerts storage.AlertStore, notifier notify.Notifier, sink pipeline.AlertSink, inspector TokenInspector) *Server {
	return &Server{
		scanner:   scanner,
		alerts:    alerts,
		notifier:  notifier,
		sink:      sink,
		inspector: inspector,
		startedAt: time.Now(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	r.HandleFunc("/enable", s.handleEnable).Methods(http.MethodPost)
	r.HandleFunc("/disable", s.handleDisable).Methods(http.MethodPost)
	r.HandleFunc("/test-mode/{enabled}", s.handleTestMode).Methods(http.MethodPost)

	r.HandleFunc("/thresholds", s.handleGetThresholds).Methods(http.MethodGet)
	r.HandleFunc("/thresholds", s.handleSetThresholds).Methods(http.MethodPost)
	r.HandleFunc("/check-interval/{minutes}", s.handleInterval).Methods(http.MethodPost)

	r.HandleFunc("/processed", s.handleProcessed).Methods(http.MethodGet)
	r.HandleFunc("/reset-processed", s.handleResetProcessed).Methods(http.MethodPost)

	r.HandleFunc("/run-now", s.handleRunNow).Methods(http.MethodPost)
	r.HandleFunc("/token/{address}", s.handleToken).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/token-info/{address}", s.handleTokenInfo).Methods(http.MethodGet)
	r.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	r.HandleFunc("/test-alert", s.handleTestAlert).Methods(http.MethodPost)

	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("could not encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "solana-token-radar",
		"running": s.scanner.Enabled(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var lastScan interface{}
	if t := s.scanner.LastScan(); !t.IsZero() {
		lastScan = t.UTC()
	}

	alertsToday, err := s.alerts.CountSince(r.Context(), time.Now().UTC().Truncate(24*time.Hour))
	if err != nil {
		log.Warn().Err(err).Msg("could not count alerts")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":                s.scanner.Enabled(),
		"test_mode":              s.scanner.TestMode(),
		"thresholds":             s.scanner.Thresholds(),
		"check_interval_minutes": s.scanner.IntervalMinutes(),
		"processed_tokens":       len(s.scanner.ProcessedTokens()),
		"queue_depth":            s.sink.Depth(),
		"alerts_today":           alertsToday,
		"last_scan":              lastScan,
		"uptime":                 time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	if err := s.scanner.SetEnabled(true); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	if err := s.scanner.SetEnabled(false); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}

func (s *Server) handleTestMode(w http.ResponseWriter, r *http.Request) {
	on, err := strconv.ParseBool(mux.Vars(r)["enabled"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "enabled must be true or false")
		return
	}
	if err := s.scanner.SetTestMode(on); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"test_mode": on})
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scanner.Thresholds())
}

// thresholdPatch allows partial updates; absent fields keep their value.
type thresholdPatch struct {
	MinMarketCap    *float64 `json:"min_market_cap"`
	MinVolume       *float64 `json:"min_volume"`
	MinPriceChange  *float64 `json:"min_price_change"`
	MinLiquidity    *float64 `json:"min_liquidity"`
	MinBuySellRatio *float64 `json:"min_buy_sell_ratio"`
	MinSafetyScore  *float64 `json:"min_safety_score"`
}

func (s *Server) handleSetThresholds(w http.ResponseWriter, r *http.Request) {
	var patch thresholdPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t := s.scanner.Thresholds()
	if patch.MinMarketCap != nil {
		t.MinMarketCap = *patch.MinMarketCap
	}
	if patch.MinVolume != nil {
		t.MinVolume = *patch.MinVolume
	}
	if patch.MinPriceChange != nil {
		t.MinPriceChange = *patch.MinPriceChange
	}
	if patch.MinLiquidity != nil {
		t.MinLiquidity = *patch.MinLiquidity
	}
	if patch.MinBuySellRatio != nil {
		t.MinBuySellRatio = *patch.MinBuySellRatio
	}
	if patch.MinSafetyScore != nil {
		t.MinSafetyScore = *patch.MinSafetyScore
	}

	if err := s.scanner.SetThresholds(t); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrInvalidThresholds) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleInterval(w http.ResponseWriter, r *http.Request) {
	minutes, err := strconv.Atoi(mux.Vars(r)["minutes"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "minutes must be an integer")
		return
	}
	if err := s.scanner.SetIntervalMinutes(minutes); err != nil {
		status := http.StatusInternalServerError
		if minutes < pipeline.MinIntervalMinutes || minutes > pipeline.MaxIntervalMinutes {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	// Chat notice is best-effort and must not hold up the response.
	go func() {
		msg := fmt.Sprintf("⏱ Scan interval changed to %d minutes.", minutes)
		if err := s.notifier.SendText(context.Background(), msg); err != nil {
			log.Warn().Err(err).Msg("could not send interval notice")
		}
	}()

	writeJSON(w, http.StatusOK, map[string]int{"check_interval_minutes": minutes})
}

func (s *Server) handleProcessed(w http.ResponseWriter, r *http.Request) {
	addrs := s.scanner.ProcessedTokens()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(addrs),
		"addresses": addrs,
	})
}

func (s *Server) handleResetProcessed(w http.ResponseWriter, r *http.Request) {
	if err := s.scanner.ResetProcessed(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed tokens cleared"})
}

func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	summary, err := s.scanner.Scan(r.Context(), "manual")
	if err != nil {
		if errors.Is(err, pipeline.ErrScanInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	alert, err := s.scanner.ProcessToken(r.Context(), address, force)
	if err != nil {
		if errors.Is(err, pipeline.ErrScanInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"alert":   alert,
	})
}

func (s *Server) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.inspector.TokenInfo(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	alerts, err := s.alerts.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) handleTestAlert(w http.ResponseWriter, r *http.Request) {
	alert := &domain.Alert{
		Token: domain.TokenCandidate{
			Address:           "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			Name:              "Test Token",
			Symbol:            "TEST",
			MarketCapUSD:      1500000,
			Volume24hUSD:      450000,
			PriceChangePct24h: 25.5,
			LiquidityUSD:      250000,
			BuySellRatio:      3.2,
			PriceUSD:          0.00001234,
			SourceURL:         "https://dexscreener.com/solana/test",
		},
		Safety: domain.SafetyAssessment{
			Score:     85,
			RiskLevel: domain.RiskLevelForScore(85),
		},
		Verification: domain.VerificationResult{Valid: true, Source: domain.SourceKnownList},
		SentAt:       time.Now().UTC(),
	}

	if err := s.notifier.SendAlert(r.Context(), alert); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "test alert sent"})
}
