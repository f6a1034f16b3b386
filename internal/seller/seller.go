// Package seller implements the Seller service (spec §4.5): execute
// pending exits, finalize trade records, and start symbol cooldowns.
package seller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/ports"
)

// Config holds Seller's cadence and failure-escalation threshold (spec §4.5, §6.4).
type Config struct {
	Interval        time.Duration
	OrderTimeout    time.Duration
	CooldownPeriod  time.Duration
	MaxFailures     int
}

// AuditRecorder is the optional best-effort SQLite supplement (SPEC_FULL
// §C.1). A nil AuditRecorder disables it.
type AuditRecorder interface {
	Record(ctx context.Context, t domain.Trade) error
}

// Seller runs the repeated drain cycle over pending sell signals.
type Seller struct {
	cfg        Config
	broker     ports.Broker
	poller     ports.OrderPoller
	sellSignal ports.SellSignalStore
	positions  ports.PositionStore
	trades     ports.TradeStore
	cooldowns  ports.CooldownStore
	audit      AuditRecorder

	failures map[string]int
}

func New(cfg Config, broker ports.Broker, poller ports.OrderPoller, sellSignal ports.SellSignalStore, positions ports.PositionStore, trades ports.TradeStore, cooldowns ports.CooldownStore, audit AuditRecorder) *Seller {
	return &Seller{
		cfg:        cfg,
		broker:     broker,
		poller:     poller,
		sellSignal: sellSignal,
		positions:  positions,
		trades:     trades,
		cooldowns:  cooldowns,
		audit:      audit,
		failures:   make(map[string]int),
	}
}

// Run drives the cycle on cfg.Interval until ctx is canceled.
func (s *Seller) Run(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		slog.Error("sell cycle failed", "err", err)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("seller stopped")
			return nil
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				slog.Error("sell cycle failed", "err", err)
			}
		}
	}
}

// runCycle processes pending sell signals in arrival order (spec §4.5,
// §5 "Seller processes sell_signals in arrival order (FIFO)").
func (s *Seller) runCycle(ctx context.Context) error {
	pending, err := s.sellSignal.Load(ctx)
	if err != nil {
		return fmt.Errorf("seller: load sell signals: %w", err)
	}

	var processed []domain.SellSignal
	for _, sig := range pending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		done, err := s.execute(ctx, sig)
		if err != nil {
			s.failures[sig.Symbol]++
			if s.failures[sig.Symbol] >= s.cfg.MaxFailures {
				slog.Error("seller: exit repeatedly failing", "symbol", sig.Symbol, "attempts", s.failures[sig.Symbol], "err", err)
			} else {
				slog.Warn("seller: exit attempt failed, retrying next cycle", "symbol", sig.Symbol, "err", err)
			}
			continue
		}
		if done {
			delete(s.failures, sig.Symbol)
			processed = append(processed, sig)
		}
	}

	if len(processed) > 0 {
		if err := s.sellSignal.Clear(ctx, processed); err != nil {
			return fmt.Errorf("seller: clear sell signals: %w", err)
		}
	}
	return nil
}

// execute handles one pending exit (spec §4.5 step 2-3). done=true means
// the signal should be cleared (either the exit filled, or the broker
// already shows zero quantity so the position is already closed).
func (s *Seller) execute(ctx context.Context, sig domain.SellSignal) (done bool, err error) {
	brokerPositions, err := s.broker.ListPositions(ctx)
	if err != nil {
		return false, fmt.Errorf("list positions: %w", err)
	}
	qty := brokerQuantity(brokerPositions, sig.Symbol)
	if qty == 0 {
		return true, nil
	}

	orderID, err := s.broker.SubmitOrder(ctx, domain.OrderRequest{
		ClientOrderID: fmt.Sprintf("sell-%s-%d", sig.Symbol, time.Now().UnixNano()),
		Symbol:        sig.Symbol,
		Quantity:      qty,
		Side:          domain.SideSell,
		Type:          domain.TypeMarket,
		TimeInForce:   domain.TIFDay,
	})
	if err != nil {
		return false, fmt.Errorf("submit order: %w", err)
	}

	filledQty, avgPrice, err := s.poller.PollUntilDone(ctx, orderID, s.cfg.OrderTimeout)
	if err != nil {
		return false, fmt.Errorf("poll order: %w", err)
	}
	if filledQty <= 0 {
		return false, fmt.Errorf("exit order did not fill")
	}

	return true, s.finalize(ctx, sig, avgPrice)
}

// finalize appends the Trade record, removes the Position, and starts the
// symbol's cooldown (spec §4.5 step 3).
func (s *Seller) finalize(ctx context.Context, sig domain.SellSignal, exitPrice float64) error {
	now := time.Now()
	var trade domain.Trade
	err := s.positions.Update(ctx, func(current map[string]domain.Position) (map[string]domain.Position, error) {
		pos, ok := current[sig.Symbol]
		if !ok {
			return current, nil
		}
		trade = domain.NewTrade(pos, exitPrice, now, sig.Reason)
		delete(current, sig.Symbol)
		return current, nil
	})
	if err != nil {
		return fmt.Errorf("remove position: %w", err)
	}

	if trade.Symbol != "" {
		if err := s.trades.Append(ctx, trade); err != nil {
			return fmt.Errorf("append trade: %w", err)
		}
		if s.audit != nil {
			if err := s.audit.Record(ctx, trade); err != nil {
				slog.Warn("seller: audit record failed", "symbol", trade.Symbol, "err", err)
			}
		}
	}

	cooldowns, err := s.cooldowns.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cooldowns: %w", err)
	}
	cooldowns[sig.Symbol] = domain.Cooldown{Symbol: sig.Symbol, Until: now.Add(s.cfg.CooldownPeriod)}
	return s.cooldowns.Save(ctx, cooldowns)
}

func brokerQuantity(positions []domain.BrokerPosition, symbol string) int {
	for _, p := range positions {
		if p.Symbol == symbol {
			return p.Quantity
		}
	}
	return 0
}
