package domain

import "time"

// Position is an open long holding owned by the system for one symbol.
// Invariant: at most one Position exists per symbol at any time.
type Position struct {
	Symbol        string    `json:"symbol"`
	EntryPrice    float64   `json:"entry_price"`
	Quantity      int       `json:"quantity"` // positive, whole shares
	EntryTime     time.Time `json:"entry_time"`
	CurrentStop   float64   `json:"current_stop"` // monotonically non-decreasing
	PeakPrice     float64   `json:"peak_price"`
	SignalScore   float64   `json:"signal_score"`
	SignalPrice   float64   `json:"signal_price"`
	VWAPAtEntry   float64   `json:"vwap_at_entry"`
	RSIAtEntry    float64   `json:"rsi_at_entry"`
	BreakoutPct   float64   `json:"breakout_pct"`
}

// UnrealizedPnLPct returns the unrealized profit fraction at currentPrice,
// relative to entry (not peak).
func (p Position) UnrealizedPnLPct(currentPrice float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (currentPrice - p.EntryPrice) / p.EntryPrice
}

// RaiseStop applies the monotonic ratchet: current_stop only ever increases.
func (p *Position) RaiseStop(candidate float64) {
	if candidate > p.CurrentStop {
		p.CurrentStop = candidate
	}
}

// RaisePeak updates peak_price to the running max observed since entry.
func (p *Position) RaisePeak(currentPrice float64) {
	if currentPrice > p.PeakPrice {
		p.PeakPrice = currentPrice
	}
}

// SellSignalReason names why the Monitor decided to exit a position.
type SellSignalReason string

const (
	ReasonStopLoss     SellSignalReason = "stop_loss"
	ReasonTrailingStop SellSignalReason = "trailing_stop"
	ReasonDeceleration SellSignalReason = "deceleration"
	ReasonEOD          SellSignalReason = "eod"
)

// SellSignal is an exit instruction emitted by the Monitor and consumed
// by the Seller. Never mutated after append.
type SellSignal struct {
	Symbol       string           `json:"symbol"`
	Timestamp    time.Time        `json:"timestamp"`
	Reason       SellSignalReason `json:"reason"`
	TriggerPrice float64          `json:"trigger_price"`
}

// Trade is the append-only record of a completed round trip.
type Trade struct {
	Symbol      string           `json:"symbol"`
	EntryTime   time.Time        `json:"entry_time"`
	ExitTime    time.Time        `json:"exit_time"`
	EntryPrice  float64          `json:"entry_price"`
	ExitPrice   float64          `json:"exit_price"`
	Quantity    int              `json:"quantity"`
	PnLPct      float64          `json:"pnl_pct"`
	PnLDollars  float64          `json:"pnl_dollars"`
	Reason      SellSignalReason `json:"reason"`
	SignalScore float64          `json:"signal_score"`
}

// NewTrade computes a Trade record from a closed Position and its fill.
func NewTrade(p Position, exitPrice float64, exitTime time.Time, reason SellSignalReason) Trade {
	pnlPct := 0.0
	if p.EntryPrice != 0 {
		pnlPct = (exitPrice - p.EntryPrice) / p.EntryPrice
	}
	return Trade{
		Symbol:      p.Symbol,
		EntryTime:   p.EntryTime,
		ExitTime:    exitTime,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   exitPrice,
		Quantity:    p.Quantity,
		PnLPct:      pnlPct,
		PnLDollars:  (exitPrice - p.EntryPrice) * float64(p.Quantity),
		Reason:      reason,
		SignalScore: p.SignalScore,
	}
}

// Cooldown blocks new entries into symbol until the embedded deadline passes.
type Cooldown struct {
	Symbol string    `json:"symbol"`
	Until  time.Time `json:"until"`
}

// Active reports whether the cooldown is still in effect at now.
func (c Cooldown) Active(now time.Time) bool {
	return now.Before(c.Until)
}
