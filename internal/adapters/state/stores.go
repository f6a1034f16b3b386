package state

import (
	"context"
	"path/filepath"

	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/ports"
)

const (
	watchlistFile   = "daily_watchlist.json"
	signalsFile     = "signals.json"
	positionsFile   = "positions.json"
	sellSignalsFile = "sell_signals.json"
	tradesFile      = "trades.json"
	cooldownsFile   = "cooldowns.json"
	statusFile      = "orchestrator_status.json"
)

// Dir is the shared state directory every store in this package reads and
// writes under (spec §5, "a shared state directory").
type Dir struct {
	Path string
}

func (d Dir) file(name string) string {
	return filepath.Join(d.Path, name)
}

// WatchlistStore implements ports.WatchlistStore.
type WatchlistStore struct{ Dir Dir }

func NewWatchlistStore(dir Dir) *WatchlistStore { return &WatchlistStore{Dir: dir} }

func (s *WatchlistStore) Save(ctx context.Context, w domain.Watchlist) error {
	return writeJSON(s.Dir.file(watchlistFile), w)
}

func (s *WatchlistStore) Load(ctx context.Context) (domain.Watchlist, bool, error) {
	var w domain.Watchlist
	path := s.Dir.file(watchlistFile)
	ok, err := readJSON(path, &w)
	if err != nil {
		_ = quarantine(path)
		return domain.Watchlist{}, false, err
	}
	return w, ok, nil
}

// SignalStore implements ports.SignalStore.
type SignalStore struct{ Dir Dir }

func NewSignalStore(dir Dir) *SignalStore { return &SignalStore{Dir: dir} }

func (s *SignalStore) Save(ctx context.Context, signals []domain.Signal) error {
	return writeJSON(s.Dir.file(signalsFile), signals)
}

func (s *SignalStore) Load(ctx context.Context) ([]domain.Signal, error) {
	var signals []domain.Signal
	path := s.Dir.file(signalsFile)
	ok, err := readJSON(path, &signals)
	if err != nil {
		_ = quarantine(path)
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return signals, nil
}

// PositionStore implements ports.PositionStore.
type PositionStore struct{ Dir Dir }

func NewPositionStore(dir Dir) *PositionStore { return &PositionStore{Dir: dir} }

func (s *PositionStore) Load(ctx context.Context) (map[string]domain.Position, error) {
	var positions map[string]domain.Position
	path := s.Dir.file(positionsFile)
	ok, err := readJSON(path, &positions)
	if err != nil {
		_ = quarantine(path)
		return nil, err
	}
	if !ok {
		return map[string]domain.Position{}, nil
	}
	return positions, nil
}

func (s *PositionStore) Save(ctx context.Context, positions map[string]domain.Position) error {
	return writeJSON(s.Dir.file(positionsFile), positions)
}

// Update holds positions.json's advisory lock for the full load-apply-save
// cycle, so Buyer creating a position, Monitor raising a stop, and Seller
// removing one (spec §3's three writers) can never interleave their
// read-modify-write and lose an update, in this process or any other
// (spec §5, "advisory file locks with timeout (5s)").
func (s *PositionStore) Update(ctx context.Context, fn func(map[string]domain.Position) (map[string]domain.Position, error)) error {
	path := s.Dir.file(positionsFile)
	return withLock(path, func() error {
		var current map[string]domain.Position
		ok, err := readJSONLocked(path, &current)
		if err != nil {
			_ = quarantine(path)
			return err
		}
		if !ok {
			current = map[string]domain.Position{}
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return writeJSONLocked(path, next)
	})
}

// SellSignalStore implements ports.SellSignalStore.
type SellSignalStore struct{ Dir Dir }

func NewSellSignalStore(dir Dir) *SellSignalStore { return &SellSignalStore{Dir: dir} }

func (s *SellSignalStore) Load(ctx context.Context) ([]domain.SellSignal, error) {
	var signals []domain.SellSignal
	path := s.Dir.file(sellSignalsFile)
	ok, err := readJSON(path, &signals)
	if err != nil {
		_ = quarantine(path)
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return signals, nil
}

func (s *SellSignalStore) Append(ctx context.Context, sig domain.SellSignal) error {
	path := s.Dir.file(sellSignalsFile)
	return withLock(path, func() error {
		var current []domain.SellSignal
		ok, err := readJSONLocked(path, &current)
		if err != nil {
			_ = quarantine(path)
			return err
		}
		if !ok {
			current = nil
		}
		current = append(current, sig)
		return writeJSONLocked(path, current)
	})
}

func (s *SellSignalStore) Clear(ctx context.Context, processed []domain.SellSignal) error {
	path := s.Dir.file(sellSignalsFile)
	processedKey := func(sig domain.SellSignal) string {
		return sig.Symbol + "|" + sig.Timestamp.String()
	}
	remove := make(map[string]bool, len(processed))
	for _, p := range processed {
		remove[processedKey(p)] = true
	}

	return withLock(path, func() error {
		var current []domain.SellSignal
		ok, err := readJSONLocked(path, &current)
		if err != nil {
			_ = quarantine(path)
			return err
		}
		if !ok {
			current = nil
		}
		remaining := make([]domain.SellSignal, 0, len(current))
		for _, sig := range current {
			if !remove[processedKey(sig)] {
				remaining = append(remaining, sig)
			}
		}
		return writeJSONLocked(path, remaining)
	})
}

// TradeStore implements ports.TradeStore.
type TradeStore struct{ Dir Dir }

func NewTradeStore(dir Dir) *TradeStore { return &TradeStore{Dir: dir} }

func (s *TradeStore) Append(ctx context.Context, t domain.Trade) error {
	path := s.Dir.file(tradesFile)
	return withLock(path, func() error {
		var current []domain.Trade
		ok, err := readJSONLocked(path, &current)
		if err != nil {
			_ = quarantine(path)
			return err
		}
		if !ok {
			current = nil
		}
		current = append(current, t)
		return writeJSONLocked(path, current)
	})
}

func (s *TradeStore) Load(ctx context.Context) ([]domain.Trade, error) {
	var trades []domain.Trade
	path := s.Dir.file(tradesFile)
	ok, err := readJSON(path, &trades)
	if err != nil {
		_ = quarantine(path)
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return trades, nil
}

// CooldownStore implements ports.CooldownStore.
type CooldownStore struct{ Dir Dir }

func NewCooldownStore(dir Dir) *CooldownStore { return &CooldownStore{Dir: dir} }

func (s *CooldownStore) Load(ctx context.Context) (map[string]domain.Cooldown, error) {
	var cooldowns map[string]domain.Cooldown
	path := s.Dir.file(cooldownsFile)
	ok, err := readJSON(path, &cooldowns)
	if err != nil {
		_ = quarantine(path)
		return nil, err
	}
	if !ok {
		return map[string]domain.Cooldown{}, nil
	}
	return cooldowns, nil
}

func (s *CooldownStore) Save(ctx context.Context, cooldowns map[string]domain.Cooldown) error {
	return writeJSON(s.Dir.file(cooldownsFile), cooldowns)
}

// StatusStore implements ports.StatusStore.
type StatusStore struct{ Dir Dir }

func NewStatusStore(dir Dir) *StatusStore { return &StatusStore{Dir: dir} }

func (s *StatusStore) Save(ctx context.Context, status domain.OrchestratorStatus) error {
	return writeJSON(s.Dir.file(statusFile), status)
}

func (s *StatusStore) Load(ctx context.Context) (domain.OrchestratorStatus, bool, error) {
	var status domain.OrchestratorStatus
	path := s.Dir.file(statusFile)
	ok, err := readJSON(path, &status)
	if err != nil {
		_ = quarantine(path)
		return domain.OrchestratorStatus{}, false, err
	}
	return status, ok, nil
}

var (
	_ ports.WatchlistStore  = (*WatchlistStore)(nil)
	_ ports.SignalStore     = (*SignalStore)(nil)
	_ ports.PositionStore   = (*PositionStore)(nil)
	_ ports.SellSignalStore = (*SellSignalStore)(nil)
	_ ports.TradeStore      = (*TradeStore)(nil)
	_ ports.CooldownStore   = (*CooldownStore)(nil)
	_ ports.StatusStore     = (*StatusStore)(nil)
)
