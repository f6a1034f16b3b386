package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/domain"
)

// Broker is the narrow trading-client interface the core depends on
// (spec §6.1). A concrete adapter (internal/adapters/broker) implements
// this against a real brokerage's REST API; tests substitute a fake.
type Broker interface {
	GetClock(ctx context.Context) (domain.Clock, error)
	GetAccount(ctx context.Context) (domain.Account, error)
	ListPositions(ctx context.Context) ([]domain.BrokerPosition, error)
	GetLatestQuote(ctx context.Context, symbol string) (domain.Quote, error)
	GetBars(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error)
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error)
	GetOrder(ctx context.Context, orderID string) (domain.OrderState, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// OrderPoller drives the shared order-lifecycle loop (spec §4.6): submit,
// poll every second up to a cap, cancel on timeout/partial.
type OrderPoller interface {
	// PollUntilDone polls orderID every second until it reaches a terminal
	// state or timeout elapses, canceling the remainder on timeout/partial.
	PollUntilDone(ctx context.Context, orderID string, timeout time.Duration) (filledQty int, avgPrice float64, err error)
}
