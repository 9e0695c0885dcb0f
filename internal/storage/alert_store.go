package storage

import (
	"context"
	"time"

	"solana-token-radar/internal/domain"
)

// AlertStore provides access to the alert history.
type AlertStore interface {
	// Insert appends a sent alert. Returns ErrDuplicateKey if an alert for
	// the same (address, sent_at) already exists.
	Insert(ctx context.Context, a *domain.Alert) error

	// Recent retrieves the most recent alerts, newest first, bounded by limit.
	Recent(ctx context.Context, limit int) ([]*domain.Alert, error)

	// ByAddress retrieves all alerts for a mint address, newest first.
	ByAddress(ctx context.Context, address string) ([]*domain.Alert, error)

	// CountSince counts alerts sent at or after the given time.
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
