// Package pipeline runs the qualification loop: fetch market candidates,
// gate them on thresholds, verify on chain, score safety and hand qualified
// tokens to the notification queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/observability"
	"solana-token-radar/internal/state"
	"solana-token-radar/internal/storage"
)

// maxTokensPerScan caps how many tokens may qualify in one cycle; the rest
// wait for the next scan.
const maxTokensPerScan = 10

// Interval bounds accepted by SetIntervalMinutes.
const (
	MinIntervalMinutes     = 1
	MaxIntervalMinutes     = 60
	DefaultIntervalMinutes = 10
)

// MarketSource supplies token candidates from market data.
type MarketSource interface {
	FetchCandidates(ctx context.Context) []domain.TokenCandidate
	FetchPairByAddress(ctx context.Context, address string) *domain.TokenCandidate
}

// TokenVerifier confirms a token address resolves on chain.
type TokenVerifier interface {
	IsValidToken(ctx context.Context, address string) domain.VerificationResult
}

// SafetyScorer produces a safety assessment for a token address.
type SafetyScorer interface {
	Score(ctx context.Context, address string) domain.SafetyAssessment
}

// AlertSink accepts qualified alerts for delivery.
type AlertSink interface {
	Enqueue(a *domain.Alert) error
	Depth() int
}

// ScanSummary reports what one scan cycle did.
type ScanSummary struct {
	Fetched   int       `json:"fetched"`
	Evaluated int       `json:"evaluated"`
	Qualified int       `json:"qualified"`
	Skipped   int       `json:"skipped"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// Scanner owns the qualification loop and all runtime-adjustable state:
// thresholds, the processed-address set, the scan interval and the enabled
// and test-mode flags. Every state change is persisted through the document
// store and persistence failures are returned to the caller.
type Scanner struct {
	market   MarketSource
	verifier TokenVerifier
	scorer   SafetyScorer
	sink     AlertSink
	alerts   storage.AlertStore
	docs     state.DocumentStore

	mu         sync.Mutex
	thresholds domain.ThresholdConfig
	processed  map[string]struct{}
	interval   time.Duration
	enabled    bool
	testMode   bool
	lastScan   time.Time

	scanMu    sync.Mutex // single-flight guard for scan cycles
	triggerCh chan string
}

// NewScanner creates a scanner, restoring persisted state. Missing documents
// fall back to defaults; malformed ones are logged and ignored.
func NewScanner(market MarketSource, verifier TokenVerifier, scorer SafetyScorer, sink AlertSink, alerts storage.AlertStore, docs state.DocumentStore) *Scanner {
	s := &Scanner{
		market:     market,
		verifier:   verifier,
		scorer:     scorer,
		sink:       sink,
		alerts:     alerts,
		docs:       docs,
		thresholds: domain.DefaultThresholds(),
		processed:  make(map[string]struct{}),
		interval:   DefaultIntervalMinutes * time.Minute,
		enabled:    true,
		triggerCh:  make(chan string, 1),
	}
	s.restore()
	return s
}

func (s *Scanner) restore() {
	var t domain.ThresholdConfig
	if err := s.docs.Load(state.DocThresholds, &t); err == nil {
		s.thresholds = t
	} else if !errors.Is(err, state.ErrNotFound) {
		log.Warn().Err(err).Msg("could not restore thresholds")
	}

	var addrs []string
	if err := s.docs.Load(state.DocProcessedTokens, &addrs); err == nil {
		for _, a := range addrs {
			s.processed[a] = struct{}{}
		}
	} else if !errors.Is(err, state.ErrNotFound) {
		log.Warn().Err(err).Msg("could not restore processed tokens")
	}

	var iv state.IntervalDoc
	if err := s.docs.Load(state.DocInterval, &iv); err == nil &&
		iv.CheckIntervalMinutes >= MinIntervalMinutes && iv.CheckIntervalMinutes <= MaxIntervalMinutes {
		s.interval = time.Duration(iv.CheckIntervalMinutes) * time.Minute
	}

	var bs state.BotStateDoc
	if err := s.docs.Load(state.DocBotState, &bs); err == nil {
		s.enabled = bs.Enabled
		s.testMode = bs.TestMode
	}

	log.Info().
		Int("processed", len(s.processed)).
		Dur("interval", s.interval).
		Bool("enabled", s.enabled).
		Msg("scanner state restored")
	observability.UpdateProcessedSetSize(len(s.processed))
}

// Thresholds returns the current filter configuration.
func (s *Scanner) Thresholds() domain.ThresholdConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thresholds
}

// ErrInvalidThresholds is returned for out-of-range threshold values.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// SetThresholds replaces the filter configuration and persists it.
func (s *Scanner) SetThresholds(t domain.ThresholdConfig) error {
	if t.MinMarketCap < 0 || t.MinVolume < 0 || t.MinLiquidity < 0 ||
		t.MinBuySellRatio < 0 || t.MinSafetyScore < 0 || t.MinSafetyScore > 100 {
		return ErrInvalidThresholds
	}

	s.mu.Lock()
	prev := s.thresholds
	s.thresholds = t
	s.mu.Unlock()

	if err := s.docs.Save(state.DocThresholds, t); err != nil {
		s.mu.Lock()
		s.thresholds = prev
		s.mu.Unlock()
		observability.RecordPersistenceError("save_thresholds")
		return fmt.Errorf("persist thresholds: %w", err)
	}
	return nil
}

// IntervalMinutes returns the scan interval in minutes.
func (s *Scanner) IntervalMinutes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.interval / time.Minute)
}

// SetIntervalMinutes changes the scan interval. Values outside [1,60] are
// rejected.
func (s *Scanner) SetIntervalMinutes(minutes int) error {
	if minutes < MinIntervalMinutes || minutes > MaxIntervalMinutes {
		return fmt.Errorf("interval must be between %d and %d minutes", MinIntervalMinutes, MaxIntervalMinutes)
	}

	s.mu.Lock()
	prev := s.interval
	s.interval = time.Duration(minutes) * time.Minute
	s.mu.Unlock()

	if err := s.docs.Save(state.DocInterval, state.IntervalDoc{CheckIntervalMinutes: minutes}); err != nil {
		s.mu.Lock()
		s.interval = prev
		s.mu.Unlock()
		observability.RecordPersistenceError("save_interval")
		return fmt.Errorf("persist interval: %w", err)
	}
	return nil
}

// Enabled reports whether scheduled scans run.
func (s *Scanner) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled switches scheduled scanning on or off and persists the flag.
func (s *Scanner) SetEnabled(enabled bool) error {
	return s.setBotState(func(bs *state.BotStateDoc) { bs.Enabled = enabled })
}

// TestMode reports whether alerts are suppressed.
func (s *Scanner) TestMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testMode
}

// SetTestMode switches alert suppression and persists the flag. In test mode
// qualified tokens are evaluated and recorded but nothing is delivered.
func (s *Scanner) SetTestMode(on bool) error {
	return s.setBotState(func(bs *state.BotStateDoc) { bs.TestMode = on })
}

func (s *Scanner) setBotState(mutate func(*state.BotStateDoc)) error {
	s.mu.Lock()
	prev := state.BotStateDoc{Enabled: s.enabled, TestMode: s.testMode}
	next := prev
	mutate(&next)
	s.enabled = next.Enabled
	s.testMode = next.TestMode
	s.mu.Unlock()

	if err := s.docs.Save(state.DocBotState, next); err != nil {
		s.mu.Lock()
		s.enabled = prev.Enabled
		s.testMode = prev.TestMode
		s.mu.Unlock()
		observability.RecordPersistenceError("save_state")
		return fmt.Errorf("persist bot state: %w", err)
	}
	return nil
}

// ProcessedTokens returns the processed addresses, sorted.
func (s *Scanner) ProcessedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	addrs := make([]string, 0, len(s.processed))
	for a := range s.processed {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)
	return addrs
}

// ResetProcessed clears the processed set so every token is eligible again.
func (s *Scanner) ResetProcessed() error {
	s.mu.Lock()
	prev := s.processed
	s.processed = make(map[string]struct{})
	s.mu.Unlock()

	if err := s.docs.Save(state.DocProcessedTokens, []string{}); err != nil {
		s.mu.Lock()
		s.processed = prev
		s.mu.Unlock()
		observability.RecordPersistenceError("save_processed")
		return fmt.Errorf("persist processed tokens: %w", err)
	}
	observability.UpdateProcessedSetSize(0)
	return nil
}

// LastScan returns when the most recent scan started.
func (s *Scanner) LastScan() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan
}

// TriggerScan requests an out-of-schedule scan. The request is dropped when
// one is already pending.
func (s *Scanner) TriggerScan() {
	select {
	case s.triggerCh <- "trigger":
	default:
	}
}

// Run executes scheduled scans until ctx is cancelled. Interval changes take
// effect on the next tick.
func (s *Scanner) Run(ctx context.Context) {
	timer := time.NewTimer(s.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if s.Enabled() {
				if _, err := s.Scan(ctx, "interval"); err != nil {
					log.Warn().Err(err).Msg("scheduled scan failed")
				}
			}
			timer.Reset(s.currentInterval())
		case trig := <-s.triggerCh:
			if s.Enabled() {
				if _, err := s.Scan(ctx, trig); err != nil {
					log.Warn().Err(err).Msg("triggered scan failed")
				}
			}
		}
	}
}

func (s *Scanner) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// ErrScanInProgress is returned when a scan is requested while one runs.
var ErrScanInProgress = errors.New("scan already in progress")

// Scan runs one qualification cycle. Only one cycle runs at a time; a
// concurrent call returns ErrScanInProgress instead of queueing.
func (s *Scanner) Scan(ctx context.Context, trigger string) (*ScanSummary, error) {
	if !s.scanMu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.scanMu.Unlock()

	start := time.Now()
	s.mu.Lock()
	s.lastScan = start
	thresholds := s.thresholds
	testMode := s.testMode
	s.mu.Unlock()

	log.Info().Str("trigger", trigger).Msg("starting token scan")

	candidates := s.market.FetchCandidates(ctx)
	observability.RecordCandidatesFetched(len(candidates))

	summary := &ScanSummary{Fetched: len(candidates), StartedAt: start.UTC()}

	for i := range candidates {
		c := &candidates[i]

		if s.isProcessed(c.Address) {
			summary.Skipped++
			observability.RecordCandidateSkipped("already_processed")
			continue
		}
		if summary.Qualified >= maxTokensPerScan {
			log.Info().Int("limit", maxTokensPerScan).Msg("scan limit reached, remaining tokens wait for next cycle")
			break
		}
		if ctx.Err() != nil {
			break
		}

		summary.Evaluated++
		if s.evaluate(ctx, c, thresholds, testMode, false) {
			summary.Qualified++
		} else {
			summary.Skipped++
		}
	}

	if err := s.persistProcessed(); err != nil {
		log.Error().Err(err).Msg("could not persist processed tokens")
		observability.RecordPersistenceError("save_processed")
	}

	summary.Duration = time.Since(start).String()
	observability.RecordScan(trigger, "ok", time.Since(start).Seconds())
	log.Info().
		Int("fetched", summary.Fetched).
		Int("qualified", summary.Qualified).
		Str("duration", summary.Duration).
		Msg("scan complete")

	return summary, nil
}

// evaluate runs the full gate sequence for one candidate. Gate order is
// cheapest first: numeric thresholds cost nothing, verification and scoring
// cost network calls. Force mode treats the verification and safety outcomes
// as passing while still recording them; it exists for diagnostics.
func (s *Scanner) evaluate(ctx context.Context, c *domain.TokenCandidate, thresholds domain.ThresholdConfig, testMode, force bool) bool {
	logger := log.With().Str("address", c.Address).Str("symbol", c.Symbol).Logger()

	if !thresholds.MeetsNumeric(*c) {
		logger.Debug().Msg("candidate below market thresholds")
		observability.RecordCandidateSkipped("below_thresholds")
		return false
	}

	verification := s.verifier.IsValidToken(ctx, c.Address)
	if !verification.Valid && !force {
		logger.Warn().Msg("candidate failed contract verification")
		observability.RecordCandidateSkipped("invalid_contract")
		return false
	}
	if verification.Source == domain.SourcePermissiveFallback {
		observability.RecordPermissiveFallback()
	}

	assessment := s.scorer.Score(ctx, c.Address)
	if assessment.Heuristic {
		observability.RecordHeuristicScore()
	}
	if assessment.Score < thresholds.MinSafetyScore && !force {
		logger.Warn().Float64("score", assessment.Score).Msg("candidate safety score too low")
		observability.RecordCandidateSkipped("unsafe")
		return false
	}

	s.markProcessed(c.Address)

	alert := &domain.Alert{
		Token:        *c,
		Safety:       assessment,
		Verification: verification,
		SentAt:       time.Now().UTC(),
	}

	if err := s.alerts.Insert(ctx, alert); err != nil {
		logger.Error().Err(err).Msg("could not record alert")
		observability.RecordPersistenceError("insert_alert")
	}

	if testMode {
		logger.Info().Msg("test mode active, alert suppressed")
	} else if err := s.sink.Enqueue(alert); err != nil {
		logger.Error().Err(err).Msg("could not enqueue alert")
		observability.RecordAlertDropped()
	}

	observability.RecordTokenQualified()
	observability.UpdateAlertQueueDepth(s.sink.Depth())
	logger.Info().Float64("score", assessment.Score).Msg("new qualified token")
	return true
}

// ProcessToken evaluates a single address on demand, bypassing the
// processed-set check but recording the address afterwards like a scan does.
// With force set the verification and safety gates are treated as passing.
func (s *Scanner) ProcessToken(ctx context.Context, address string, force bool) (*domain.Alert, error) {
	if !s.scanMu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.scanMu.Unlock()

	c := s.market.FetchPairByAddress(ctx, address)
	if c == nil {
		return nil, fmt.Errorf("no market data for %s", address)
	}

	s.mu.Lock()
	thresholds := s.thresholds
	testMode := s.testMode
	s.mu.Unlock()

	if !s.evaluate(ctx, c, thresholds, testMode, force) {
		if err := s.persistProcessed(); err != nil {
			log.Error().Err(err).Msg("could not persist processed tokens")
		}
		return nil, fmt.Errorf("token %s did not qualify", address)
	}

	if err := s.persistProcessed(); err != nil {
		return nil, fmt.Errorf("persist processed tokens: %w", err)
	}

	alerts, err := s.alerts.ByAddress(ctx, address)
	if err != nil || len(alerts) == 0 {
		return nil, nil
	}
	return alerts[0], nil
}

func (s *Scanner) isProcessed(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[address]
	return ok
}

func (s *Scanner) markProcessed(address string) {
	s.mu.Lock()
	s.processed[address] = struct{}{}
	n := len(s.processed)
	s.mu.Unlock()
	observability.UpdateProcessedSetSize(n)
}

func (s *Scanner) persistProcessed() error {
	return s.docs.Save(state.DocProcessedTokens, s.ProcessedTokens())
}
