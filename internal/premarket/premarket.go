// Package premarket implements the PreMarketScanner (spec §4.1): once per
// trading day, rank the base universe's gap-and-volume candidates and
// publish the day's 25-symbol watchlist.
package premarket

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/ports"
)

// Config controls the gapper filter thresholds (spec §6.4).
type Config struct {
	UniverseSize       int
	WatchlistSize      int
	MinGapPct          float64
	MinPremarketVolume float64
	MinRelativeVolume  float64
	PriceMin           float64
	PriceMax           float64
}

// Scanner runs one pre-market selection pass.
type Scanner struct {
	cfg       Config
	broker    ports.Broker
	watchlist ports.WatchlistStore
}

func New(cfg Config, broker ports.Broker, watchlist ports.WatchlistStore) *Scanner {
	return &Scanner{cfg: cfg, broker: broker, watchlist: watchlist}
}

// LoadBaseUniverse reads the line-per-ticker universe file built weekly by
// the external pipeline (spec §3, out of scope to produce, in scope to
// read) and caps it at UniverseSize.
func LoadBaseUniverse(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("premarket: open base universe %q: %w", path, err)
	}
	defer f.Close()

	var symbols []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		symbols = append(symbols, line)
		if limit > 0 && len(symbols) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("premarket: scan base universe %q: %w", path, err)
	}
	return symbols, nil
}

// candidate is the per-symbol intermediate result before scoring.
type candidate struct {
	symbol          string
	priorClose      float64
	premarketPrice  float64
	premarketHigh   float64
	premarketVolume float64
	avgDailyVolume  float64
}

// Run executes one pass over universe and writes the resulting watchlist
// for tradingDate. An empty result is an error (spec §4.1 "if the
// resulting list is empty, no file is written").
func (s *Scanner) Run(ctx context.Context, universe []string, tradingDate string, now time.Time) error {
	var entries []domain.WatchlistEntry

	for _, symbol := range universe {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c, err := s.fetchCandidate(ctx, symbol, now)
		if err != nil {
			slog.Debug("premarket: skip symbol", "symbol", symbol, "err", err)
			continue
		}
		entry, ok := s.evaluate(c)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return fmt.Errorf("premarket: no candidates survived filtering for %s", tradingDate)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > s.cfg.WatchlistSize {
		entries = entries[:s.cfg.WatchlistSize]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return s.watchlist.Save(ctx, domain.Watchlist{Date: tradingDate, Entries: entries})
}

// fetchCandidate gathers the raw inputs spec §4.1 step 2 requires: prior
// close, premarket mid, premarket high, premarket cumulative volume, and
// the 20-day average daily volume, expressed through the broker's 1Min
// (premarket session) and 1Day bar feeds plus the latest quote.
func (s *Scanner) fetchCandidate(ctx context.Context, symbol string, now time.Time) (candidate, error) {
	dailyBars, err := s.broker.GetBars(ctx, symbol, domain.Timeframe1Day, 21)
	if err != nil {
		return candidate{}, fmt.Errorf("daily bars: %w", err)
	}
	if len(dailyBars) < 2 {
		return candidate{}, fmt.Errorf("insufficient daily history")
	}
	priorClose := dailyBars[len(dailyBars)-2].Close

	avgDailyVolume := averageVolume(dailyBars[:len(dailyBars)-1])

	premarketBars, err := s.broker.GetBars(ctx, symbol, domain.Timeframe1Min, 120)
	if err != nil {
		return candidate{}, fmt.Errorf("premarket bars: %w", err)
	}
	pmHigh, pmVolume := premarketHighAndVolume(premarketBars, now)

	quote, err := s.broker.GetLatestQuote(ctx, symbol)
	if err != nil {
		return candidate{}, fmt.Errorf("quote: %w", err)
	}
	if !quote.Valid() {
		return candidate{}, fmt.Errorf("invalid quote")
	}

	return candidate{
		symbol:          symbol,
		priorClose:      priorClose,
		premarketPrice:  quote.Mid(),
		premarketHigh:   pmHigh,
		premarketVolume: pmVolume,
		avgDailyVolume:  avgDailyVolume,
	}, nil
}

// evaluate applies the §4.1 step-3 filter and step-4 scoring. Float-factor
// adjustment is skipped: the broker interface (§6.1) carries no share-float
// data source, so float_factor is implicitly 1.0.
func (s *Scanner) evaluate(c candidate) (domain.WatchlistEntry, bool) {
	if c.priorClose <= 0 {
		return domain.WatchlistEntry{}, false
	}
	if c.premarketPrice < s.cfg.PriceMin || c.premarketPrice > s.cfg.PriceMax {
		return domain.WatchlistEntry{}, false
	}

	gapPct := (c.premarketPrice - c.priorClose) / c.priorClose
	if gapPct < s.cfg.MinGapPct {
		return domain.WatchlistEntry{}, false
	}
	if c.premarketVolume < s.cfg.MinPremarketVolume {
		return domain.WatchlistEntry{}, false
	}

	relVol := NormalizedRelativeVolume(c.premarketVolume, c.avgDailyVolume)
	if relVol < s.cfg.MinRelativeVolume {
		return domain.WatchlistEntry{}, false
	}

	score := gapPct * relVol * 100

	return domain.WatchlistEntry{
		Symbol:          c.symbol,
		PriorClose:      c.priorClose,
		PremarketPrice:  c.premarketPrice,
		PremarketHigh:   c.premarketHigh,
		PremarketVolume: c.premarketVolume,
		GapPct:          gapPct,
		RelativeVolume:  relVol,
		Score:           score,
	}, true
}

// NormalizedRelativeVolume projects premarket volume onto a full session
// (6.5h regular session vs the 5.5h typically elapsed by the scan cutoff)
// before comparing it to the 20-day average daily volume (spec §4.1 step 3).
func NormalizedRelativeVolume(premarketVolume, avgDailyVolume float64) float64 {
	if avgDailyVolume <= 0 {
		return 0
	}
	return premarketVolume * (6.5 / 5.5) / avgDailyVolume
}

func averageVolume(bars []domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += b.Volume
	}
	return sum / float64(len(bars))
}

// premarketHighAndVolume restricts bars to the pre-market window (before
// regular-session open) and reduces them to a session high and cumulative
// volume.
func premarketHighAndVolume(bars []domain.Bar, now time.Time) (high, volume float64) {
	loc := domain.EasternLocation()
	local := now.In(loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, loc)

	for _, b := range bars {
		if !b.Time.In(loc).Before(open) {
			continue
		}
		if b.High > high {
			high = b.High
		}
		volume += b.Volume
	}
	return high, volume
}
