package domain

import "time"

// APITrade representa un trade histórico de la API.
type APITrade struct {
	ID        string
	TokenID   string
	Side      string  // "BUY" o "SELL"
	Price     float64
	Size      float64
	Timestamp time.Time
}
