// Package scanner implements the Scanner service (spec §4.2): every cycle
// it scores each watchlist symbol on VWAP/RSI/breakout/volume and writes
// surviving candidates to the signal store.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/indicators"
	"github.com/alejandrodnm/momentumcore/internal/ports"
	"github.com/alejandrodnm/momentumcore/internal/premarket"
)

// Config holds the scoring thresholds from spec §4.2.1 and §6.4.
type Config struct {
	ScanInterval      time.Duration
	MinEntryScore     float64
	MinBreakoutPct    float64
	MinRelativeVolume float64
	RSIMin            float64
	RSIMax            float64
	RequireAboveVWAP  bool

	// DegradedUniversePath and DegradedUniverseSize back the spec §4.2
	// step 1 fallback: when no watchlist exists for today, scan the
	// first N symbols of the base universe instead.
	DegradedUniversePath string
	DegradedUniverseSize int
}

const (
	rsiPeriod         = 14
	relVolLookback    = 20
	fiveMinBarsNeeded = 30
	twoMinBarsNeeded  = 30
)

// Scanner runs the repeated scan cycle.
type Scanner struct {
	cfg       Config
	broker    ports.Broker
	watchlist ports.WatchlistStore
	signals   ports.SignalStore
}

func New(cfg Config, broker ports.Broker, watchlist ports.WatchlistStore, signals ports.SignalStore) *Scanner {
	return &Scanner{cfg: cfg, broker: broker, watchlist: watchlist, signals: signals}
}

// Run drives the cycle on cfg.ScanInterval until ctx is canceled. It gates
// on market hours, matching the "wall-clock ticks plus a market-open gate"
// design (spec §9).
func (s *Scanner) Run(ctx context.Context, isOpen func(time.Time) bool) error {
	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if isOpen(time.Now()) {
			if err := s.runCycle(ctx); err != nil {
				slog.Error("scan cycle failed", "err", err)
			}
		}
		select {
		case <-ctx.Done():
			slog.Info("scanner stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// runCycle executes exactly one scan over the day's watchlist (or a
// degraded fallback) and overwrites signals.json.
func (s *Scanner) runCycle(ctx context.Context) error {
	start := time.Now()

	symbols, err := s.symbolsToScan(ctx)
	if err != nil {
		return fmt.Errorf("scanner: load watchlist: %w", err)
	}

	var signals []domain.Signal
	for _, entry := range symbols {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sig, ok, err := s.scoreSymbol(ctx, entry, start)
		if err != nil {
			slog.Debug("scanner: skip symbol", "symbol", entry.Symbol, "err", err)
			continue
		}
		if ok {
			signals = append(signals, sig)
		}
	}

	sortSignals(signals)

	if err := s.signals.Save(ctx, signals); err != nil {
		return fmt.Errorf("scanner: save signals: %w", err)
	}
	slog.Info("scan cycle complete", "signals", len(signals), "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// symbolsToScan loads today's watchlist, or falls back to treating the
// first N base-universe entries as an unranked degraded watchlist
// (spec §4.2 step 1: "if absent, load first 25 of base universe").
func (s *Scanner) symbolsToScan(ctx context.Context) ([]domain.WatchlistEntry, error) {
	w, ok, err := s.watchlist.Load(ctx)
	if err != nil {
		return nil, err
	}
	if ok && w.IsToday(time.Now()) {
		return w.Entries, nil
	}

	slog.Warn("scanner: no watchlist for today, degraded mode")
	if s.cfg.DegradedUniversePath == "" {
		return nil, nil
	}
	symbols, err := premarket.LoadBaseUniverse(s.cfg.DegradedUniversePath, s.cfg.DegradedUniverseSize)
	if err != nil {
		slog.Warn("scanner: degraded mode fallback failed", "err", err)
		return nil, nil
	}
	entries := make([]domain.WatchlistEntry, len(symbols))
	for i, sym := range symbols {
		entries[i] = domain.WatchlistEntry{Symbol: sym, Rank: i + 1}
	}
	return entries, nil
}

// scoreSymbol fetches the two required bar series (spec §4.2 step 2: "each
// symbol consumes exactly 2 broker calls"). The 2-minute series only gates
// on having enough history for Monitor's later acceleration calculation;
// the rubric itself scores off the 5-minute series.
func (s *Scanner) scoreSymbol(ctx context.Context, entry domain.WatchlistEntry, now time.Time) (domain.Signal, bool, error) {
	fiveMin, err := s.broker.GetBars(ctx, entry.Symbol, domain.Timeframe5Min, fiveMinBarsNeeded)
	if err != nil {
		return domain.Signal{}, false, fmt.Errorf("5min bars: %w", err)
	}
	if len(fiveMin) <= rsiPeriod {
		return domain.Signal{}, false, fmt.Errorf("insufficient 5min history")
	}

	twoMin, err := s.broker.GetBars(ctx, entry.Symbol, domain.Timeframe2Min, twoMinBarsNeeded)
	if err != nil {
		return domain.Signal{}, false, fmt.Errorf("2min bars: %w", err)
	}
	if len(twoMin) < twoMinBarsNeeded {
		return domain.Signal{}, false, fmt.Errorf("insufficient 2min history")
	}

	current := fiveMin[len(fiveMin)-1]
	price := current.Close
	vwap := indicators.VWAP(fiveMin)
	rsi := indicators.RSI(fiveMin, rsiPeriod)
	relVol := indicators.RelativeVolume(fiveMin, relVolLookback)

	reference, ref := indicators.BreakoutReference(entry.PremarketHigh, fiveMin, entry.PriorClose)
	breakoutPct := indicators.BreakoutPct(price, reference)

	score, pass := s.score(price, vwap, rsi, relVol, breakoutPct, entry.GapPct)
	if !pass {
		return domain.Signal{}, false, nil
	}

	return domain.Signal{
		Symbol:         entry.Symbol,
		Timestamp:      now,
		Price:          price,
		Score:          score,
		VWAP:           vwap,
		RSI:            rsi,
		BreakoutPct:    breakoutPct,
		BreakoutRef:    ref,
		RelativeVolume: relVol,
		PremarketHigh:  entry.PremarketHigh,
		GapPct:         entry.GapPct,
	}, true, nil
}

// score implements the §4.2.1 rubric: four required criteria worth 60
// points total, plus up to 35 bonus points. Returns (score, false) if any
// required criterion fails or the total is below MinEntryScore.
func (s *Scanner) score(price, vwap, rsi, relVol, breakoutPct, gapPct float64) (float64, bool) {
	aboveVWAP := price > vwap
	if s.cfg.RequireAboveVWAP && !aboveVWAP {
		return 0, false
	}
	if breakoutPct < s.cfg.MinBreakoutPct {
		return 0, false
	}
	if relVol < s.cfg.MinRelativeVolume {
		return 0, false
	}
	if rsi < s.cfg.RSIMin || rsi > s.cfg.RSIMax {
		return 0, false
	}

	total := 15.0 + 20.0 + 15.0 + 10.0 // all four required criteria passed

	if breakoutPct >= 0.03 {
		total += 10
	}
	if relVol >= 4.0 {
		total += 10
	}
	if rsi >= 50 && rsi <= 65 {
		total += 5
	}
	if gapPct >= 0.05 {
		total += 10
	}

	if total < s.cfg.MinEntryScore {
		return total, false
	}
	return total, true
}

// sortSignals applies the §4.2.1 tie-break: score descending, then
// relative volume descending, then timestamp ascending.
func sortSignals(signals []domain.Signal) {
	sort.Slice(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.RelativeVolume != b.RelativeVolume {
			return a.RelativeVolume > b.RelativeVolume
		}
		return a.Timestamp.Before(b.Timestamp)
	})
}
