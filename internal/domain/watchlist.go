package domain

import "time"

// WatchlistEntry is one ranked candidate produced by the pre-market scan.
type WatchlistEntry struct {
	Symbol           string  `json:"symbol"`
	Rank             int     `json:"rank"` // 1..N, 1 = highest score
	PriorClose       float64 `json:"prior_close"`
	PremarketPrice   float64 `json:"premarket_price"`
	PremarketHigh    float64 `json:"premarket_high"`
	PremarketVolume  float64 `json:"premarket_volume"`
	GapPct           float64 `json:"gap_pct"`
	RelativeVolume   float64 `json:"relative_volume"`
	Score            float64 `json:"score"`
}

// Watchlist is the DailyWatchlist entity: one per trading date.
type Watchlist struct {
	Date    string           `json:"date"` // YYYY-MM-DD, ET calendar date
	Entries []WatchlistEntry `json:"entries"`
}

// Symbols returns the watchlist's tickers in rank order.
func (w Watchlist) Symbols() []string {
	out := make([]string, len(w.Entries))
	for i, e := range w.Entries {
		out[i] = e.Symbol
	}
	return out
}

// Entry returns the entry for symbol and whether it was found.
func (w Watchlist) Entry(symbol string) (WatchlistEntry, bool) {
	for _, e := range w.Entries {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return WatchlistEntry{}, false
}

// IsToday reports whether the watchlist was built for the trading date of t.
func (w Watchlist) IsToday(t time.Time) bool {
	return w.Date == TradingDate(t)
}

// TradingDate formats t as the trading-calendar date key (ET local date).
func TradingDate(t time.Time) string {
	loc := EasternLocation()
	return t.In(loc).Format("2006-01-02")
}
