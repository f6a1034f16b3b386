// Package monitor implements the Monitor service (spec §4.4): reconcile
// open positions against the broker, ratchet stops, and emit exit
// signals when a risk rule triggers.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/config"
	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/indicators"
	"github.com/alejandrodnm/momentumcore/internal/ports"
)

// Config holds Monitor's risk-rule thresholds (spec §4.4, §6.4).
type Config struct {
	Interval               time.Duration
	StopLossPct            float64
	BreakEvenProfitPct     float64
	DecelExitThreshold     float64
	MinProfitForDecelCheck float64
	EODWindow              time.Duration
	TrailingStopTiers      []config.TrailingStopTier
}

// Monitor runs the repeated reconcile-and-evaluate cycle.
type Monitor struct {
	cfg        Config
	broker     ports.Broker
	positions  ports.PositionStore
	sellSignal ports.SellSignalStore
}

func New(cfg Config, broker ports.Broker, positions ports.PositionStore, sellSignal ports.SellSignalStore) *Monitor {
	return &Monitor{cfg: cfg, broker: broker, positions: positions, sellSignal: sellSignal}
}

// Run drives the cycle on cfg.Interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.runCycle(ctx); err != nil {
		slog.Error("monitor cycle failed", "err", err)
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor stopped")
			return nil
		case <-ticker.C:
			if err := m.runCycle(ctx); err != nil {
				slog.Error("monitor cycle failed", "err", err)
			}
		}
	}
}

// runCycle reconciles against the broker, then evaluates every surviving
// position in turn (spec §4.4 steps 1-5).
func (m *Monitor) runCycle(ctx context.Context) error {
	brokerPositions, err := m.broker.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("monitor: list broker positions: %w", err)
	}

	var toEvaluate map[string]domain.Position
	err = m.positions.Update(ctx, func(current map[string]domain.Position) (map[string]domain.Position, error) {
		reconciled := Reconcile(brokerPositions, current)
		toEvaluate = reconciled
		return reconciled, nil
	})
	if err != nil {
		return fmt.Errorf("monitor: reconcile: %w", err)
	}

	now := time.Now()
	for symbol, pos := range toEvaluate {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := m.evaluate(ctx, symbol, pos, now); err != nil {
			slog.Debug("monitor: skip symbol", "symbol", symbol, "err", err)
		}
	}
	return nil
}

// Reconcile is the pure (broker, local) -> new_local function described in
// spec §9: drop local positions the broker no longer holds, and ignore
// (only log) broker positions without a local record (those belong to the
// Buyer's in-flight write or a human-operated account).
func Reconcile(brokerPositions []domain.BrokerPosition, local map[string]domain.Position) map[string]domain.Position {
	held := make(map[string]domain.BrokerPosition, len(brokerPositions))
	for _, bp := range brokerPositions {
		if bp.Quantity != 0 {
			held[bp.Symbol] = bp
		}
	}

	reconciled := make(map[string]domain.Position, len(local))
	for symbol, pos := range local {
		if _, ok := held[symbol]; ok {
			reconciled[symbol] = pos
		} else {
			slog.Info("monitor: dropping position not held at broker", "symbol", symbol)
		}
	}
	for symbol := range held {
		if _, ok := local[symbol]; !ok {
			slog.Info("monitor: ignoring broker position without a local record", "symbol", symbol)
		}
	}
	return reconciled
}

// evaluate applies the §4.4 step-3/4 state updates and exit triggers for a
// single position, persisting a raised stop and/or appending a sell signal.
func (m *Monitor) evaluate(ctx context.Context, symbol string, pos domain.Position, now time.Time) error {
	quote, err := m.broker.GetLatestQuote(ctx, symbol)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}
	if !quote.Valid() {
		return fmt.Errorf("invalid quote")
	}
	price := quote.Mid()

	twoMin, err := m.broker.GetBars(ctx, symbol, domain.Timeframe2Min, 6)
	if err != nil {
		return fmt.Errorf("2min bars: %w", err)
	}
	fiveMin, err := m.broker.GetBars(ctx, symbol, domain.Timeframe5Min, 6)
	if err != nil {
		return fmt.Errorf("5min bars: %w", err)
	}
	accel := indicators.Acceleration(indicators.Velocity(twoMin), indicators.Velocity(fiveMin))

	updated, reason, exit := m.applyRules(pos, price, accel, now)

	if updated.CurrentStop > pos.CurrentStop || updated.PeakPrice > pos.PeakPrice {
		if err := m.positions.Update(ctx, func(current map[string]domain.Position) (map[string]domain.Position, error) {
			if p, ok := current[symbol]; ok {
				p.RaisePeak(updated.PeakPrice)
				p.RaiseStop(updated.CurrentStop)
				current[symbol] = p
			}
			return current, nil
		}); err != nil {
			return fmt.Errorf("persist stop: %w", err)
		}
	}

	if exit {
		return m.sellSignal.Append(ctx, domain.SellSignal{
			Symbol:       symbol,
			Timestamp:    now,
			Reason:       reason,
			TriggerPrice: price,
		})
	}
	return nil
}

// applyRules implements spec §4.4 step 3 (stop updates, in order) and step
// 4 (first-match exit trigger). It returns the position with peak/stop
// updated in-memory (callers persist only the delta) plus the exit
// decision.
func (m *Monitor) applyRules(pos domain.Position, price, accel float64, now time.Time) (domain.Position, domain.SellSignalReason, bool) {
	pos.RaisePeak(price)

	if pos.EntryPrice > 0 && pos.PeakPrice/pos.EntryPrice >= 1+m.cfg.BreakEvenProfitPct {
		pos.RaiseStop(pos.EntryPrice)
	}

	trailingPct := trailingStopPct(pos.UnrealizedPnLPct(pos.PeakPrice), m.cfg.TrailingStopTiers)
	if trailingPct > 0 {
		pos.RaiseStop(pos.PeakPrice * (1 - trailingPct))
	}

	if price <= pos.CurrentStop {
		if price < pos.EntryPrice {
			return pos, domain.ReasonStopLoss, true
		}
		return pos, domain.ReasonTrailingStop, true
	}

	profit := pos.UnrealizedPnLPct(price)
	if profit >= m.cfg.MinProfitForDecelCheck && !math.IsNaN(accel) && accel < m.cfg.DecelExitThreshold {
		return pos, domain.ReasonDeceleration, true
	}

	if domain.IsNearClose(now, m.cfg.EODWindow) {
		return pos, domain.ReasonEOD, true
	}

	return pos, "", false
}

// trailingStopPct finds the widest trailing distance whose MinProfitPct
// threshold profitPct clears (spec §4.4 tiered trailing-stop table).
func trailingStopPct(profitPct float64, tiers []config.TrailingStopTier) float64 {
	for _, tier := range tiers {
		if profitPct >= tier.MinProfitPct {
			return tier.TrailingPct
		}
	}
	return 0
}
