package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	fiveMin map[string][]domain.Bar
	twoMin  map[string][]domain.Bar
	calls   []string
}

func (f *fakeBroker) GetClock(ctx context.Context) (domain.Clock, error) { return domain.Clock{}, nil }
func (f *fakeBroker) GetAccount(ctx context.Context) (domain.Account, error) {
	return domain.Account{}, nil
}
func (f *fakeBroker) ListPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	return nil, nil
}
func (f *fakeBroker) GetLatestQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	return domain.Quote{}, nil
}
func (f *fakeBroker) GetBars(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	f.calls = append(f.calls, symbol)
	if tf == domain.Timeframe2Min {
		return f.twoMin[symbol], nil
	}
	return f.fiveMin[symbol], nil
}
func (f *fakeBroker) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	return "", nil
}
func (f *fakeBroker) GetOrder(ctx context.Context, orderID string) (domain.OrderState, error) {
	return domain.OrderState{}, nil
}
func (f *fakeBroker) CancelOrder(ctx context.Context, orderID string) error { return nil }

type fakeWatchlistStore struct {
	w     domain.Watchlist
	empty bool
}

func (s *fakeWatchlistStore) Save(ctx context.Context, w domain.Watchlist) error { return nil }
func (s *fakeWatchlistStore) Load(ctx context.Context) (domain.Watchlist, bool, error) {
	if s.empty {
		return domain.Watchlist{}, false, nil
	}
	return s.w, true, nil
}

type fakeSignalStore struct{ saved []domain.Signal }

func (s *fakeSignalStore) Save(ctx context.Context, signals []domain.Signal) error {
	s.saved = signals
	return nil
}
func (s *fakeSignalStore) Load(ctx context.Context) ([]domain.Signal, error) { return s.saved, nil }

func defaultConfig() scanner.Config {
	return scanner.Config{
		ScanInterval:      45 * time.Second,
		MinEntryScore:     60,
		MinBreakoutPct:    0.01,
		MinRelativeVolume: 2.0,
		RSIMin:            40,
		RSIMax:            75,
		RequireAboveVWAP:  true,
	}
}

// breakoutBars builds a 5-minute series whose last close sits at
// breakoutPct above pmHigh. The earlier closes alternate 0.10 and 0.05
// below that final close, so RSI(14) lands mid-range (about 55) and VWAP
// stays below the final price; the final bar's volume is relVol times
// the earlier bars' volume.
func breakoutBars(pmHigh float64, breakoutPct, relVol float64) []domain.Bar {
	bars := make([]domain.Bar, 30)
	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	finalPrice := pmHigh * (1 + breakoutPct)
	for i := 0; i < len(bars)-1; i++ {
		price := finalPrice - 0.10
		if i%2 == 1 {
			price = finalPrice - 0.05
		}
		bars[i] = domain.Bar{Time: base.Add(time.Duration(i) * 5 * time.Minute), Open: price, High: price, Low: price, Close: price, Volume: 1000}
	}
	bars[len(bars)-1] = domain.Bar{
		Time:   base.Add(time.Duration(len(bars)-1) * 5 * time.Minute),
		Open:   finalPrice, High: finalPrice, Low: finalPrice, Close: finalPrice,
		Volume: 1000 * relVol,
	}
	return bars
}

func TestScanner_RunCycle_EmitsSignalAboveThreshold(t *testing.T) {
	watchlist := domain.Watchlist{
		Date: domain.TradingDate(time.Now()),
		Entries: []domain.WatchlistEntry{
			{Symbol: "ABCD", PremarketHigh: 5.55, GapPct: 0.06},
		},
	}
	broker := &fakeBroker{
		fiveMin: map[string][]domain.Bar{"ABCD": breakoutBars(5.55, 0.05, 5.0)},
		twoMin:  map[string][]domain.Bar{"ABCD": breakoutBars(5.55, 0.05, 5.0)},
	}
	signalStore := &fakeSignalStore{}
	s := scanner.New(defaultConfig(), broker, &fakeWatchlistStore{w: watchlist}, signalStore)

	err := s.Run(contextWithImmediateCancel(t), func(time.Time) bool { return true })
	require.NoError(t, err)

	require.Len(t, signalStore.saved, 1)
	sig := signalStore.saved[0]
	assert.Equal(t, "ABCD", sig.Symbol)
	assert.GreaterOrEqual(t, sig.Score, 60.0)
	assert.Equal(t, domain.BreakoutRefPremarketHigh, sig.BreakoutRef)
}

func TestScanner_RunCycle_SkipsWhenBelowThreshold(t *testing.T) {
	watchlist := domain.Watchlist{
		Date:    domain.TradingDate(time.Now()),
		Entries: []domain.WatchlistEntry{{Symbol: "FLAT", PremarketHigh: 5.55}},
	}
	broker := &fakeBroker{
		fiveMin: map[string][]domain.Bar{"FLAT": breakoutBars(5.55, 0.002, 1.0)},
		twoMin:  map[string][]domain.Bar{"FLAT": breakoutBars(5.55, 0.002, 1.0)},
	}
	signalStore := &fakeSignalStore{}
	s := scanner.New(defaultConfig(), broker, &fakeWatchlistStore{w: watchlist}, signalStore)

	err := s.Run(contextWithImmediateCancel(t), func(time.Time) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, signalStore.saved)
}

func TestScanner_RunCycle_SkipsSymbolWithInsufficientTwoMinHistory(t *testing.T) {
	watchlist := domain.Watchlist{
		Date:    domain.TradingDate(time.Now()),
		Entries: []domain.WatchlistEntry{{Symbol: "THIN", PremarketHigh: 5.55, GapPct: 0.06}},
	}
	broker := &fakeBroker{
		fiveMin: map[string][]domain.Bar{"THIN": breakoutBars(5.55, 0.05, 5.0)},
		twoMin:  map[string][]domain.Bar{"THIN": breakoutBars(5.55, 0.05, 5.0)[:10]},
	}
	signalStore := &fakeSignalStore{}
	s := scanner.New(defaultConfig(), broker, &fakeWatchlistStore{w: watchlist}, signalStore)

	err := s.Run(contextWithImmediateCancel(t), func(time.Time) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, signalStore.saved, "insufficient 2min history should reject the symbol before scoring")
}

func TestScanner_RunCycle_DegradedModeFallsBackToBaseUniverse(t *testing.T) {
	universe := filepath.Join(t.TempDir(), "base_universe.txt")
	require.NoError(t, os.WriteFile(universe, []byte("ABCD\nWXYZ\n"), 0o644))

	cfg := defaultConfig()
	cfg.DegradedUniversePath = universe
	cfg.DegradedUniverseSize = 25

	broker := &fakeBroker{
		fiveMin: map[string][]domain.Bar{"ABCD": breakoutBars(5.55, 0.05, 5.0)},
		twoMin:  map[string][]domain.Bar{"ABCD": breakoutBars(5.55, 0.05, 5.0)},
	}
	signalStore := &fakeSignalStore{}
	s := scanner.New(cfg, broker, &fakeWatchlistStore{empty: true}, signalStore)

	err := s.Run(contextWithImmediateCancel(t), func(time.Time) bool { return true })
	require.NoError(t, err)

	assert.Contains(t, broker.calls, "ABCD", "degraded mode should have scored the base-universe symbol instead of nothing")
}

// contextWithImmediateCancel returns a context canceled 10ms after it is
// created. Run performs its first cycle before it waits on the 45s ticker,
// so exactly one cycle runs before Run sees ctx.Done.
func contextWithImmediateCancel(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	return ctx
}
