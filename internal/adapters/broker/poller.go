package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/ports"
)

// Poller implements ports.OrderPoller by polling a ports.Broker once a
// second until the order reaches a terminal state or timeout elapses. On
// timeout it cancels the remainder and returns whatever quantity filled.
type Poller struct {
	Broker ports.Broker
}

func NewPoller(b ports.Broker) *Poller {
	return &Poller{Broker: b}
}

func (p *Poller) PollUntilDone(ctx context.Context, orderID string, timeout time.Duration) (int, float64, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		state, err := p.Broker.GetOrder(ctx, orderID)
		if err != nil {
			return 0, 0, fmt.Errorf("poll order %s: %w", orderID, err)
		}

		if state.Terminal() {
			return state.FilledQuantity, state.FilledAvgPrice, nil
		}

		if time.Now().After(deadline) {
			if cancelErr := p.Broker.CancelOrder(ctx, orderID); cancelErr != nil {
				return state.FilledQuantity, state.FilledAvgPrice, fmt.Errorf("cancel timed-out order %s: %w", orderID, cancelErr)
			}
			final, err := p.Broker.GetOrder(ctx, orderID)
			if err != nil {
				return state.FilledQuantity, state.FilledAvgPrice, nil
			}
			return final.FilledQuantity, final.FilledAvgPrice, nil
		}

		select {
		case <-ctx.Done():
			return state.FilledQuantity, state.FilledAvgPrice, ctx.Err()
		case <-ticker.C:
		}
	}
}

var _ ports.OrderPoller = (*Poller)(nil)
var _ ports.Broker = (*Client)(nil)
