// Package buyer implements the Buyer service (spec §4.3): consume fresh
// signals, revalidate execution price, and submit buy orders without
// violating position count, cooldown, or slippage limits.
package buyer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/config"
	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/ports"
)

// Config holds the Buyer's cycle cadence and execution limits (spec §4.3, §6.4).
type Config struct {
	Interval         time.Duration
	FastPathInterval time.Duration
	FastPathMinScore float64
	SignalMaxAge     time.Duration
	MaxPositions     int
	MaxSlippagePct   float64
	MaxSpreadPct     float64
	ReversalPct      float64
	UseLimitOrders   bool
	LimitOrderBuffer float64
	OrderTimeout     time.Duration
	DedupWindow      time.Duration
	Tiers            []config.PositionSizeTier
}

// Buyer runs the repeated buy cycle.
type Buyer struct {
	cfg        Config
	broker     ports.Broker
	poller     ports.OrderPoller
	signals    ports.SignalStore
	positions  ports.PositionStore
	cooldowns  ports.CooldownStore

	mu      sync.Mutex
	seen    map[string]time.Time // dedup key (symbol|timestamp) -> first-seen
}

func New(cfg Config, broker ports.Broker, poller ports.OrderPoller, signals ports.SignalStore, positions ports.PositionStore, cooldowns ports.CooldownStore) *Buyer {
	return &Buyer{
		cfg:       cfg,
		broker:    broker,
		poller:    poller,
		signals:   signals,
		positions: positions,
		cooldowns: cooldowns,
		seen:      make(map[string]time.Time),
	}
}

// Run alternates between the regular cycle and the fast path, selecting
// whichever ticker fires (spec §4.3: "every 15s; a fast path at 5s scans
// only signals with score >= 90").
func (b *Buyer) Run(ctx context.Context, isOpen func(time.Time) bool) error {
	slow := time.NewTicker(b.cfg.Interval)
	defer slow.Stop()
	fast := time.NewTicker(b.cfg.FastPathInterval)
	defer fast.Stop()

	if isOpen(time.Now()) {
		if err := b.runCycle(ctx, 0); err != nil {
			slog.Error("buy cycle failed", "err", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("buyer stopped")
			return nil
		case <-slow.C:
			if isOpen(time.Now()) {
				if err := b.runCycle(ctx, 0); err != nil {
					slog.Error("buy cycle failed", "err", err)
				}
			}
		case <-fast.C:
			if isOpen(time.Now()) {
				if err := b.runCycle(ctx, b.cfg.FastPathMinScore); err != nil {
					slog.Error("fast-path buy cycle failed", "err", err)
				}
			}
		}
	}
}

// runCycle implements the §4.3 per-signal procedure. minScore filters to
// the fast-path subset when > 0.
func (b *Buyer) runCycle(ctx context.Context, minScore float64) error {
	now := time.Now()

	signals, err := b.signals.Load(ctx)
	if err != nil {
		return fmt.Errorf("buyer: load signals: %w", err)
	}

	fresh := make([]domain.Signal, 0, len(signals))
	for _, sig := range signals {
		if !sig.IsFresh(now, b.cfg.SignalMaxAge) {
			continue
		}
		if minScore > 0 && sig.Score < minScore {
			continue
		}
		if b.alreadySeen(sig) {
			continue
		}
		fresh = append(fresh, sig)
	}
	sort.Slice(fresh, func(i, j int) bool {
		if fresh[i].Score != fresh[j].Score {
			return fresh[i].Score > fresh[j].Score
		}
		return fresh[i].Timestamp.Before(fresh[j].Timestamp)
	})

	cooldowns, err := b.cooldowns.Load(ctx)
	if err != nil {
		return fmt.Errorf("buyer: load cooldowns: %w", err)
	}

	if len(fresh) == 0 {
		b.evictExpired(now)
		return nil
	}

	// One GetAccount call per cycle, not per signal: equity moves slowly
	// enough that every symbol in this cycle sizes off the same snapshot
	// (spec §4.3 sizes off live equity; §5's 10 calls/min buyer budget
	// can't afford a call per candidate).
	account, err := b.broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("buyer: get account: %w", err)
	}

	for _, sig := range fresh {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b.markSeen(sig)

		stop, err := b.tryBuy(ctx, sig, cooldowns, now, account.Equity)
		if err != nil {
			slog.Warn("buyer: order failed", "symbol", sig.Symbol, "err", err)
		}
		if stop {
			break
		}
	}

	b.evictExpired(now)
	return nil
}

// tryBuy applies every §4.3 gate in order; returns stop=true once the
// position-count cap is hit (no more buys this cycle).
func (b *Buyer) tryBuy(ctx context.Context, sig domain.Signal, cooldowns map[string]domain.Cooldown, now time.Time, equity float64) (stop bool, err error) {
	positions, err := b.positions.Load(ctx)
	if err != nil {
		return false, err
	}
	if _, held := positions[sig.Symbol]; held {
		return false, nil
	}
	if cd, ok := cooldowns[sig.Symbol]; ok && cd.Active(now) {
		return false, nil
	}
	if len(positions) >= b.cfg.MaxPositions {
		return true, nil
	}

	quote, err := b.broker.GetLatestQuote(ctx, sig.Symbol)
	if err != nil {
		return false, fmt.Errorf("quote: %w", err)
	}
	if !quote.Valid() {
		return false, fmt.Errorf("missing quote for %s", sig.Symbol)
	}
	mid := quote.Mid()

	if quote.SpreadPct() > b.cfg.MaxSpreadPct {
		slog.Debug("buyer: spread too wide", "symbol", sig.Symbol, "spread_pct", quote.SpreadPct())
		return false, nil
	}
	slippage := (mid - sig.Price) / sig.Price
	if slippage > b.cfg.MaxSlippagePct {
		slog.Debug("buyer: slippage rejection", "symbol", sig.Symbol, "slippage_pct", slippage)
		return false, nil
	}
	if slippage < -b.cfg.ReversalPct {
		slog.Debug("buyer: reversal rejection", "symbol", sig.Symbol, "slippage_pct", slippage)
		return false, nil
	}

	pct := PositionSizePct(sig.Score, b.cfg.Tiers)
	quantity := int(math.Floor(equity * pct / mid))
	if quantity <= 0 {
		return false, nil
	}

	limitPrice := round2(mid * (1 + b.cfg.LimitOrderBuffer))
	orderType := domain.TypeLimit
	if !b.cfg.UseLimitOrders {
		orderType = domain.TypeMarket
	}

	orderID, err := b.broker.SubmitOrder(ctx, domain.OrderRequest{
		ClientOrderID: fmt.Sprintf("buy-%s-%d", sig.Symbol, now.UnixNano()),
		Symbol:        sig.Symbol,
		Quantity:      quantity,
		Side:          domain.SideBuy,
		Type:          orderType,
		TimeInForce:   domain.TIFDay,
		LimitPrice:    limitPrice,
	})
	if err != nil {
		return false, fmt.Errorf("submit order: %w", err)
	}

	filledQty, avgPrice, err := b.poller.PollUntilDone(ctx, orderID, b.cfg.OrderTimeout)
	if err != nil {
		return false, fmt.Errorf("poll order: %w", err)
	}
	if filledQty <= 0 {
		slog.Info("buyer: order did not fill", "symbol", sig.Symbol, "order_id", orderID)
		return false, nil
	}

	pos := domain.Position{
		Symbol:      sig.Symbol,
		EntryPrice:  avgPrice,
		Quantity:    filledQty,
		EntryTime:   now,
		CurrentStop: round2(avgPrice * (1 - 0.025)),
		PeakPrice:   avgPrice,
		SignalScore: sig.Score,
		SignalPrice: sig.Price,
		VWAPAtEntry: sig.VWAP,
		RSIAtEntry:  sig.RSI,
		BreakoutPct: sig.BreakoutPct,
	}
	return false, b.positions.Update(ctx, func(current map[string]domain.Position) (map[string]domain.Position, error) {
		current[pos.Symbol] = pos
		return current, nil
	})
}

// PositionSizePct returns the equity fraction for score per the §4.3 tier
// table, matching the highest tier whose MinScore the score clears.
func PositionSizePct(score float64, tiers []config.PositionSizeTier) float64 {
	for _, tier := range tiers {
		if score >= tier.MinScore {
			return tier.Pct
		}
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func dedupKey(sig domain.Signal) string {
	return sig.Symbol + "|" + sig.Timestamp.String()
}

func (b *Buyer) alreadySeen(sig domain.Signal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.seen[dedupKey(sig)]
	return ok
}

func (b *Buyer) markSeen(sig domain.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen[dedupKey(sig)] = time.Now()
}

// evictExpired drops dedup entries older than DedupWindow (spec §4.3: "an
// in-process LRU set ... for >= 10 minutes").
func (b *Buyer) evictExpired(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, seenAt := range b.seen {
		if now.Sub(seenAt) > b.cfg.DedupWindow {
			delete(b.seen, k)
		}
	}
}
