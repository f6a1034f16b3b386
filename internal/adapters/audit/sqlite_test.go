package audit_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/adapters/audit"
	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RecordAndWinRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := audit.Open(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	now := time.Date(2026, 7, 30, 15, 0, 0, 0, time.UTC)

	winner := domain.NewTrade(domain.Position{Symbol: "AAPL", EntryPrice: 100, Quantity: 10}, 110, now, domain.ReasonTrailingStop)
	loser := domain.NewTrade(domain.Position{Symbol: "AAPL", EntryPrice: 100, Quantity: 10}, 97, now, domain.ReasonStopLoss)

	require.NoError(t, store.Record(ctx, winner))
	require.NoError(t, store.Record(ctx, loser))

	rate, count, err := store.WinRate(ctx, "AAPL", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.InDelta(t, 0.5, rate, 0.001)
}

func TestStore_WinRateNoTrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := audit.Open(path)
	require.NoError(t, err)
	defer store.Close()

	rate, count, err := store.WinRate(context.Background(), "MSFT", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0.0, rate)
}
