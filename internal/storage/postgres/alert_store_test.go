package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/storage"
	"solana-token-radar/internal/storage/postgres"
)

func makeAlert(address string, sentAt time.Time) *domain.Alert {
	return &domain.Alert{
		Token: domain.TokenCandidate{
			Address:           address,
			Name:              "Test Token",
			Symbol:            "TST",
			MarketCapUSD:      600000,
			Volume24hUSD:      400000,
			PriceChangePct24h: 25,
			LiquidityUSD:      150000,
			BuySellRatio:      3,
			PriceUSD:          0.0042,
			SourceURL:         "https://dexscreener.com/solana/" + address,
		},
		Safety: domain.SafetyAssessment{
			Address:     address,
			Score:       85,
			RiskLevel:   domain.RiskLow,
			RiskFactors: []string{"low liquidity"},
		},
		Verification: domain.VerificationResult{
			Address: address,
			Valid:   true,
			Source:  domain.SourceRPCMetadata,
		},
		SentAt: sentAt,
	}
}

func TestAlertStoreInsertAndRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAlertStore(pool)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.Insert(ctx, makeAlert("addr-1", base)))
	require.NoError(t, store.Insert(ctx, makeAlert("addr-2", base.Add(time.Minute))))
	require.NoError(t, store.Insert(ctx, makeAlert("addr-3", base.Add(2*time.Minute))))

	alerts, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "addr-3", alerts[0].Token.Address)
	assert.Equal(t, "addr-2", alerts[1].Token.Address)

	got := alerts[1]
	assert.Equal(t, "TST", got.Token.Symbol)
	assert.InDelta(t, 600000, got.Token.MarketCapUSD, 1e-9)
	assert.InDelta(t, 85, got.Safety.Score, 1e-9)
	assert.Equal(t, domain.RiskLow, got.Safety.RiskLevel)
	assert.Equal(t, []string{"low liquidity"}, got.Safety.RiskFactors)
	assert.True(t, got.Verification.Valid)
	assert.Equal(t, domain.SourceRPCMetadata, got.Verification.Source)
	assert.True(t, got.SentAt.Equal(base.Add(time.Minute)))
}

func TestAlertStoreDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAlertStore(pool)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.Insert(ctx, makeAlert("addr-1", at)))
	assert.ErrorIs(t, store.Insert(ctx, makeAlert("addr-1", at)), storage.ErrDuplicateKey)
	require.NoError(t, store.Insert(ctx, makeAlert("addr-1", at.Add(time.Second))))
}

func TestAlertStoreByAddress(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAlertStore(pool)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.Insert(ctx, makeAlert("addr-1", base)))
	require.NoError(t, store.Insert(ctx, makeAlert("addr-2", base.Add(time.Minute))))
	require.NoError(t, store.Insert(ctx, makeAlert("addr-1", base.Add(2*time.Minute))))

	alerts, err := store.ByAddress(ctx, "addr-1")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.True(t, alerts[0].SentAt.After(alerts[1].SentAt))

	none, err := store.ByAddress(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAlertStoreCountSince(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAlertStore(pool)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, makeAlert("addr", base.Add(time.Duration(i)*time.Minute))))
	}

	n, err := store.CountSince(ctx, base.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAlertStoreInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAlertStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.Alert{SentAt: time.Now()}), storage.ErrInvalidInput)

	_, err := store.Recent(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
