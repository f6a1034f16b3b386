package seller_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/seller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	positions []domain.BrokerPosition
	submitted []domain.OrderRequest
}

func (f *fakeBroker) GetClock(ctx context.Context) (domain.Clock, error) { return domain.Clock{}, nil }
func (f *fakeBroker) GetAccount(ctx context.Context) (domain.Account, error) {
	return domain.Account{}, nil
}
func (f *fakeBroker) ListPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	return f.positions, nil
}
func (f *fakeBroker) GetLatestQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	return domain.Quote{}, nil
}
func (f *fakeBroker) GetBars(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	return nil, nil
}
func (f *fakeBroker) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	f.submitted = append(f.submitted, req)
	return "order-" + req.Symbol, nil
}
func (f *fakeBroker) GetOrder(ctx context.Context, orderID string) (domain.OrderState, error) {
	return domain.OrderState{Status: domain.OrderStatusFilled}, nil
}
func (f *fakeBroker) CancelOrder(ctx context.Context, orderID string) error { return nil }

type fakePoller struct {
	filledQty int
	avgPrice  float64
	err       error
}

func (p *fakePoller) PollUntilDone(ctx context.Context, orderID string, timeout time.Duration) (int, float64, error) {
	return p.filledQty, p.avgPrice, p.err
}

type fakeSellSignalStore struct {
	pending []domain.SellSignal
	cleared []domain.SellSignal
}

func (s *fakeSellSignalStore) Load(ctx context.Context) ([]domain.SellSignal, error) { return s.pending, nil }
func (s *fakeSellSignalStore) Append(ctx context.Context, sig domain.SellSignal) error {
	s.pending = append(s.pending, sig)
	return nil
}
func (s *fakeSellSignalStore) Clear(ctx context.Context, processed []domain.SellSignal) error {
	s.cleared = processed
	remove := map[string]bool{}
	for _, p := range processed {
		remove[p.Symbol+"|"+p.Timestamp.String()] = true
	}
	var remaining []domain.SellSignal
	for _, sig := range s.pending {
		if !remove[sig.Symbol+"|"+sig.Timestamp.String()] {
			remaining = append(remaining, sig)
		}
	}
	s.pending = remaining
	return nil
}

type fakePositionStore struct{ positions map[string]domain.Position }

func (s *fakePositionStore) Load(ctx context.Context) (map[string]domain.Position, error) {
	out := make(map[string]domain.Position, len(s.positions))
	for k, v := range s.positions {
		out[k] = v
	}
	return out, nil
}
func (s *fakePositionStore) Save(ctx context.Context, positions map[string]domain.Position) error {
	s.positions = positions
	return nil
}
func (s *fakePositionStore) Update(ctx context.Context, fn func(map[string]domain.Position) (map[string]domain.Position, error)) error {
	current, err := s.Load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return s.Save(ctx, next)
}

type fakeTradeStore struct{ trades []domain.Trade }

func (s *fakeTradeStore) Append(ctx context.Context, t domain.Trade) error {
	s.trades = append(s.trades, t)
	return nil
}
func (s *fakeTradeStore) Load(ctx context.Context) ([]domain.Trade, error) { return s.trades, nil }

type fakeCooldownStore struct{ cooldowns map[string]domain.Cooldown }

func (s *fakeCooldownStore) Load(ctx context.Context) (map[string]domain.Cooldown, error) {
	if s.cooldowns == nil {
		s.cooldowns = map[string]domain.Cooldown{}
	}
	return s.cooldowns, nil
}
func (s *fakeCooldownStore) Save(ctx context.Context, cooldowns map[string]domain.Cooldown) error {
	s.cooldowns = cooldowns
	return nil
}

func baseConfig() seller.Config {
	return seller.Config{Interval: 15 * time.Second, OrderTimeout: 30 * time.Second, CooldownPeriod: 15 * time.Minute, MaxFailures: 3}
}

func TestSeller_ExecuteExitFinalizesTradeAndCooldown(t *testing.T) {
	sig := domain.SellSignal{Symbol: "XYZ", Timestamp: time.Now(), Reason: domain.ReasonStopLoss, TriggerPrice: 7.79}
	broker := &fakeBroker{positions: []domain.BrokerPosition{{Symbol: "XYZ", Quantity: 50}}}
	poller := &fakePoller{filledQty: 50, avgPrice: 7.79}
	sellSignals := &fakeSellSignalStore{pending: []domain.SellSignal{sig}}
	positions := &fakePositionStore{positions: map[string]domain.Position{
		"XYZ": {Symbol: "XYZ", EntryPrice: 8.00, Quantity: 50, EntryTime: time.Now()},
	}}
	trades := &fakeTradeStore{}
	cooldowns := &fakeCooldownStore{}

	s := seller.New(baseConfig(), broker, poller, sellSignals, positions, trades, cooldowns, nil)
	require.NoError(t, runOnce(t, s))

	require.Len(t, trades.trades, 1)
	assert.InDelta(t, -0.02625, trades.trades[0].PnLPct, 0.001)
	assert.Empty(t, positions.positions)
	cd, ok := cooldowns.cooldowns["XYZ"]
	require.True(t, ok)
	assert.True(t, cd.Active(time.Now()))
	assert.Empty(t, sellSignals.pending)
}

func TestSeller_DropsSignalWhenPositionAlreadyClosed(t *testing.T) {
	sig := domain.SellSignal{Symbol: "GONE", Timestamp: time.Now(), Reason: domain.ReasonTrailingStop}
	broker := &fakeBroker{positions: nil} // broker shows zero quantity
	poller := &fakePoller{}
	sellSignals := &fakeSellSignalStore{pending: []domain.SellSignal{sig}}
	positions := &fakePositionStore{positions: map[string]domain.Position{}}
	trades := &fakeTradeStore{}
	cooldowns := &fakeCooldownStore{}

	s := seller.New(baseConfig(), broker, poller, sellSignals, positions, trades, cooldowns, nil)
	require.NoError(t, runOnce(t, s))

	assert.Empty(t, trades.trades)
	assert.Empty(t, sellSignals.pending)
	assert.Empty(t, broker.submitted)
}

func TestSeller_ProcessingSameSignalTwiceProducesOneTrade(t *testing.T) {
	sig := domain.SellSignal{Symbol: "IDEM", Timestamp: time.Now(), Reason: domain.ReasonStopLoss}
	broker := &fakeBroker{positions: []domain.BrokerPosition{{Symbol: "IDEM", Quantity: 10}}}
	poller := &fakePoller{filledQty: 10, avgPrice: 5.0}
	sellSignals := &fakeSellSignalStore{pending: []domain.SellSignal{sig}}
	positions := &fakePositionStore{positions: map[string]domain.Position{
		"IDEM": {Symbol: "IDEM", EntryPrice: 5.2, Quantity: 10, EntryTime: time.Now()},
	}}
	trades := &fakeTradeStore{}
	cooldowns := &fakeCooldownStore{}

	s := seller.New(baseConfig(), broker, poller, sellSignals, positions, trades, cooldowns, nil)
	require.NoError(t, runOnce(t, s))
	// Second pass: signal already cleared, broker now shows zero quantity.
	broker.positions = nil
	sellSignals.pending = []domain.SellSignal{sig}
	require.NoError(t, runOnce(t, s))

	assert.Len(t, trades.trades, 1)
}

func runOnce(t *testing.T, s *seller.Seller) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()
	return s.Run(ctx)
}
