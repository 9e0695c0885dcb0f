// Package memory provides in-memory store implementations, used as the
// default backend when no database DSN is configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu     sync.RWMutex
	alerts []*domain.Alert
	keys   map[string]struct{} // address + sent_at nanos
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{keys: make(map[string]struct{})}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

func alertKey(a *domain.Alert) string {
	return a.Token.Address + "|" + a.SentAt.UTC().Format(time.RFC3339Nano)
}

// Insert appends a sent alert. Returns ErrDuplicateKey on repeated (address, sent_at).
func (s *AlertStore) Insert(_ context.Context, a *domain.Alert) error {
	if a == nil || a.Token.Address == "" || a.SentAt.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := alertKey(a)
	if _, exists := s.keys[key]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation.
	alertCopy := *a
	s.alerts = append(s.alerts, &alertCopy)
	s.keys[key] = struct{}{}
	return nil
}

// Recent retrieves the most recent alerts, newest first.
func (s *AlertStore) Recent(_ context.Context, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		alertCopy := *a
		result = append(result, &alertCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SentAt.After(result[j].SentAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ByAddress retrieves all alerts for a mint address, newest first.
func (s *AlertStore) ByAddress(_ context.Context, address string) ([]*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Alert
	for _, a := range s.alerts {
		if a.Token.Address == address {
			alertCopy := *a
			result = append(result, &alertCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SentAt.After(result[j].SentAt)
	})
	return result, nil
}

// CountSince counts alerts sent at or after the given time.
func (s *AlertStore) CountSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, a := range s.alerts {
		if !a.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}
