package domain

import "time"

// Timeframe names the bar resolution requested from the broker.
type Timeframe string

const (
	Timeframe1Min Timeframe = "1Min"
	Timeframe2Min Timeframe = "2Min"
	Timeframe5Min Timeframe = "5Min"
	Timeframe1Day Timeframe = "1Day"
)

// Bar is a single OHLCV observation.
type Bar struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// TypicalPrice is (H+L+C)/3, the VWAP weighting price.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Quote is a top-of-book bid/ask snapshot.
type Quote struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// Mid returns the bid/ask midpoint, or 0 if the quote is missing/invalid.
func (q Quote) Mid() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0
	}
	return (q.Bid + q.Ask) / 2
}

// SpreadPct returns (ask-bid)/mid, or 0 if the quote is invalid.
func (q Quote) SpreadPct() float64 {
	mid := q.Mid()
	if mid == 0 {
		return 0
	}
	return (q.Ask - q.Bid) / mid
}

// Valid reports whether both sides of the quote are positive.
func (q Quote) Valid() bool {
	return q.Bid > 0 && q.Ask > 0
}

// Clock describes the broker's market-hours calendar.
type Clock struct {
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// Account is the broker's view of buying power.
type Account struct {
	Equity float64 `json:"equity"`
	Cash   float64 `json:"cash"`
}

// BrokerPosition is the broker's authoritative view of a held position,
// used during reconciliation (spec §3 invariant 2, §5 "Restart safety").
type BrokerPosition struct {
	Symbol        string  `json:"symbol"`
	Quantity      int     `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
}

// OrderSide and OrderType enumerate the narrow order vocabulary §6.1 exposes.
type OrderSide string
type OrderType string
type TimeInForce string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"

	TypeMarket OrderType = "market"
	TypeLimit  OrderType = "limit"

	TIFDay TimeInForce = "day"
)

// OrderStatus mirrors the broker's order lifecycle states.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
)

// OrderRequest is what a caller submits to open or close a position.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Quantity      int
	Side          OrderSide
	Type          OrderType
	TimeInForce   TimeInForce
	LimitPrice    float64 // only meaningful when Type == TypeLimit
}

// OrderState is the broker's current view of a submitted order.
type OrderState struct {
	ID              string      `json:"id"`
	Status          OrderStatus `json:"status"`
	FilledQuantity  int         `json:"filled_qty"`
	FilledAvgPrice  float64     `json:"filled_avg_price"`
}

// Terminal reports whether the order has reached a state that will not change further.
func (o OrderState) Terminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}
