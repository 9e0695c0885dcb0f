package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/storage"
)

// AlertStore implements storage.AlertStore using ClickHouse.
//
// MergeTree does not enforce uniqueness, so duplicate detection uses an
// explicit existence check before insert. This is racy under concurrent
// writers; the pipeline has a single writer.
type AlertStore struct {
	conn *Conn
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(conn *Conn) *AlertStore {
	return &AlertStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

const alertColumns = `
	address, name, symbol, market_cap_usd, volume_24h_usd, price_change_pct_24h,
	liquidity_usd, buy_sell_ratio, price_usd, source_url,
	safety_score, risk_level, risk_factors, heuristic_score,
	verified, verification_source, sent_at
`

// Insert appends a sent alert. Returns ErrDuplicateKey if (address, sent_at) exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.Token.Address == "" || a.SentAt.IsZero() {
		return storage.ErrInvalidInput
	}

	var n uint64
	err := s.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE address = ? AND sent_at = ?`,
		a.Token.Address, a.SentAt.UTC(),
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("check alert existence: %w", err)
	}
	if n > 0 {
		return storage.ErrDuplicateKey
	}

	query := `INSERT INTO alerts (` + alertColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err = s.conn.Exec(ctx, query,
		a.Token.Address,
		a.Token.Name,
		a.Token.Symbol,
		a.Token.MarketCapUSD,
		a.Token.Volume24hUSD,
		a.Token.PriceChangePct24h,
		a.Token.LiquidityUSD,
		a.Token.BuySellRatio,
		a.Token.PriceUSD,
		a.Token.SourceURL,
		a.Safety.Score,
		string(a.Safety.RiskLevel),
		a.Safety.RiskFactors,
		a.Safety.Heuristic,
		a.Verification.Valid,
		string(a.Verification.Source),
		a.SentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Recent retrieves the most recent alerts, newest first, bounded by limit.
func (s *AlertStore) Recent(ctx context.Context, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		ORDER BY sent_at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ByAddress retrieves all alerts for a mint address, newest first.
func (s *AlertStore) ByAddress(ctx context.Context, address string) ([]*domain.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE address = ?
		ORDER BY sent_at DESC
	`

	rows, err := s.conn.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("query alerts by address: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// CountSince counts alerts sent at or after the given time.
func (s *AlertStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n uint64
	err := s.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE sent_at >= ?`, since.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return int64(n), nil
}

// scanAlerts scans multiple rows into a slice of Alert.
func scanAlerts(rows driver.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert

	for rows.Next() {
		var (
			a           domain.Alert
			riskLevel   string
			source      string
			riskFactors []string
		)

		err := rows.Scan(
			&a.Token.Address,
			&a.Token.Name,
			&a.Token.Symbol,
			&a.Token.MarketCapUSD,
			&a.Token.Volume24hUSD,
			&a.Token.PriceChangePct24h,
			&a.Token.LiquidityUSD,
			&a.Token.BuySellRatio,
			&a.Token.PriceUSD,
			&a.Token.SourceURL,
			&a.Safety.Score,
			&riskLevel,
			&riskFactors,
			&a.Safety.Heuristic,
			&a.Verification.Valid,
			&source,
			&a.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}

		a.Safety.Address = a.Token.Address
		a.Safety.RiskLevel = domain.RiskLevel(riskLevel)
		a.Safety.RiskFactors = riskFactors
		a.Verification.Address = a.Token.Address
		a.Verification.Source = domain.VerificationSource(source)
		a.SentAt = a.SentAt.UTC()

		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}
