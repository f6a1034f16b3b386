package ports

import (
	"context"

	"github.com/alejandrodnm/momentumcore/internal/domain"
)

// WatchlistStore persists the DailyWatchlist. Written by PreMarketScanner,
// read by Scanner.
type WatchlistStore interface {
	Save(ctx context.Context, w domain.Watchlist) error
	Load(ctx context.Context) (domain.Watchlist, bool, error)
}

// SignalStore persists the latest Scanner output. Overwritten each cycle,
// read by Buyer.
type SignalStore interface {
	Save(ctx context.Context, signals []domain.Signal) error
	Load(ctx context.Context) ([]domain.Signal, error)
}

// PositionStore persists the open-Position map. Created by Buyer, mutated
// by Monitor (stop ratchet), removed by Seller.
type PositionStore interface {
	Load(ctx context.Context) (map[string]domain.Position, error)
	Save(ctx context.Context, positions map[string]domain.Position) error
	// Update atomically loads, applies fn, and saves, holding the
	// underlying file lock for the duration, so Buyer, Monitor and Seller
	// can each call it without losing one another's changes.
	Update(ctx context.Context, fn func(map[string]domain.Position) (map[string]domain.Position, error)) error
}

// SellSignalStore persists pending exits. Appended by Monitor, drained by Seller.
type SellSignalStore interface {
	Load(ctx context.Context) ([]domain.SellSignal, error)
	Append(ctx context.Context, s domain.SellSignal) error
	// Clear removes the given signals (by symbol+timestamp identity) and
	// rewrites the remainder atomically.
	Clear(ctx context.Context, processed []domain.SellSignal) error
}

// TradeStore persists the append-only trade log.
type TradeStore interface {
	Append(ctx context.Context, t domain.Trade) error
	Load(ctx context.Context) ([]domain.Trade, error)
}

// CooldownStore persists the symbol -> until-timestamp map. Written by
// Seller, read by Buyer.
type CooldownStore interface {
	Load(ctx context.Context) (map[string]domain.Cooldown, error)
	Save(ctx context.Context, cooldowns map[string]domain.Cooldown) error
}
