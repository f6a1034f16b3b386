package premarket_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/premarket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	daily   map[string][]domain.Bar
	minute  map[string][]domain.Bar
	quotes  map[string]domain.Quote
}

func (f *fakeBroker) GetClock(ctx context.Context) (domain.Clock, error) { return domain.Clock{}, nil }
func (f *fakeBroker) GetAccount(ctx context.Context) (domain.Account, error) {
	return domain.Account{}, nil
}
func (f *fakeBroker) ListPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	return nil, nil
}
func (f *fakeBroker) GetLatestQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	return f.quotes[symbol], nil
}
func (f *fakeBroker) GetBars(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	if tf == domain.Timeframe1Day {
		return f.daily[symbol], nil
	}
	return f.minute[symbol], nil
}
func (f *fakeBroker) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	return "", nil
}
func (f *fakeBroker) GetOrder(ctx context.Context, orderID string) (domain.OrderState, error) {
	return domain.OrderState{}, nil
}
func (f *fakeBroker) CancelOrder(ctx context.Context, orderID string) error { return nil }

type fakeWatchlistStore struct {
	saved domain.Watchlist
}

func (s *fakeWatchlistStore) Save(ctx context.Context, w domain.Watchlist) error {
	s.saved = w
	return nil
}
func (s *fakeWatchlistStore) Load(ctx context.Context) (domain.Watchlist, bool, error) {
	return s.saved, true, nil
}

func TestNormalizedRelativeVolume(t *testing.T) {
	rv := premarket.NormalizedRelativeVolume(100_000, 500_000)
	assert.InDelta(t, 100_000*(6.5/5.5)/500_000, rv, 1e-9)
}

func TestNormalizedRelativeVolume_ZeroAvg(t *testing.T) {
	assert.Equal(t, 0.0, premarket.NormalizedRelativeVolume(100_000, 0))
}

func TestScanner_Run_SelectsAndRanksTopCandidates(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, domain.EasternLocation())
	pmBar := func(hour, min int, high, vol float64) domain.Bar {
		t := time.Date(2026, 7, 30, hour, min, 0, 0, domain.EasternLocation())
		return domain.Bar{Time: t, High: high, Low: high - 0.1, Close: high - 0.05, Volume: vol}
	}

	broker := &fakeBroker{
		daily: map[string][]domain.Bar{
			"WINNER": dailyHistory(10.0),
			"LOSER":  dailyHistory(10.0),
		},
		minute: map[string][]domain.Bar{
			"WINNER": {pmBar(8, 0, 11.5, 500_000), pmBar(8, 30, 12.0, 500_000)},
			"LOSER":  {pmBar(8, 0, 10.05, 1_000)},
		},
		quotes: map[string]domain.Quote{
			"WINNER": {Bid: 11.9, Ask: 12.1},
			"LOSER":  {Bid: 10.04, Ask: 10.06},
		},
	}
	store := &fakeWatchlistStore{}

	cfg := premarket.Config{
		UniverseSize:       500,
		WatchlistSize:      25,
		MinGapPct:          0.03,
		MinPremarketVolume: 50_000,
		MinRelativeVolume:  2.0,
		PriceMin:           2.0,
		PriceMax:           50.0,
	}
	s := premarket.New(cfg, broker, store)
	err := s.Run(context.Background(), []string{"WINNER", "LOSER"}, "2026-07-30", now)
	require.NoError(t, err)

	require.Len(t, store.saved.Entries, 1)
	assert.Equal(t, "WINNER", store.saved.Entries[0].Symbol)
	assert.Equal(t, 1, store.saved.Entries[0].Rank)
}

func TestScanner_Run_EmptyResultIsError(t *testing.T) {
	broker := &fakeBroker{
		daily:  map[string][]domain.Bar{"FLAT": dailyHistory(10.0)},
		minute: map[string][]domain.Bar{"FLAT": {}},
		quotes: map[string]domain.Quote{"FLAT": {Bid: 10.0, Ask: 10.02}},
	}
	store := &fakeWatchlistStore{}
	cfg := premarket.Config{WatchlistSize: 25, MinGapPct: 0.03, MinPremarketVolume: 50_000, MinRelativeVolume: 2.0, PriceMin: 2, PriceMax: 50}
	s := premarket.New(cfg, broker, store)

	err := s.Run(context.Background(), []string{"FLAT"}, "2026-07-30", time.Now())
	assert.Error(t, err)
}

func TestLoadBaseUniverse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base_universe.txt")
	require.NoError(t, os.WriteFile(path, []byte("AAPL\nMSFT\n\nGOOG\n"), 0o644))

	symbols, err := premarket.LoadBaseUniverse(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}

func dailyHistory(close float64) []domain.Bar {
	bars := make([]domain.Bar, 21)
	base := time.Date(2026, 7, 1, 16, 0, 0, 0, domain.EasternLocation())
	for i := range bars {
		bars[i] = domain.Bar{Time: base.AddDate(0, 0, i), Close: close, Volume: 500_000}
	}
	return bars
}
