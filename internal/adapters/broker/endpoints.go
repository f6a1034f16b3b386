package broker

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/domain"
)

type clockResp struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

func (c *Client) GetClock(ctx context.Context) (domain.Clock, error) {
	var resp clockResp
	if err := c.do(ctx, http.MethodGet, c.tradingBase, "/v2/clock", nil, &resp); err != nil {
		return domain.Clock{}, fmt.Errorf("get clock: %w", err)
	}
	return domain.Clock{
		IsOpen:    resp.IsOpen,
		NextOpen:  resp.NextOpen,
		NextClose: resp.NextClose,
	}, nil
}

type accountResp struct {
	Equity      string `json:"equity"`
	Cash        string `json:"cash"`
	BuyingPower string `json:"buying_power"`
}

func (c *Client) GetAccount(ctx context.Context) (domain.Account, error) {
	var resp accountResp
	if err := c.do(ctx, http.MethodGet, c.tradingBase, "/v2/account", nil, &resp); err != nil {
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	return domain.Account{
		Equity: parseFloat(resp.Equity),
		Cash:   parseFloat(resp.Cash),
	}, nil
}

type positionResp struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
}

func (c *Client) ListPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	var resp []positionResp
	if err := c.do(ctx, http.MethodGet, c.tradingBase, "/v2/positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	out := make([]domain.BrokerPosition, 0, len(resp))
	for _, p := range resp {
		out = append(out, domain.BrokerPosition{
			Symbol:        p.Symbol,
			Quantity:      int(parseFloat(p.Qty)),
			AvgEntryPrice: parseFloat(p.AvgEntryPrice),
		})
	}
	return out, nil
}

type quoteResp struct {
	Quote struct {
		BidPrice float64 `json:"bp"`
		AskPrice float64 `json:"ap"`
	} `json:"quote"`
}

func (c *Client) GetLatestQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	var resp quoteResp
	path := fmt.Sprintf("/v2/stocks/%s/quotes/latest", symbol)
	if err := c.do(ctx, http.MethodGet, c.dataBase, path, nil, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("get quote %s: %w", symbol, err)
	}
	return domain.Quote{
		Bid: resp.Quote.BidPrice,
		Ask: resp.Quote.AskPrice,
	}, nil
}

type barResp struct {
	Bars []struct {
		Timestamp time.Time `json:"t"`
		Open      float64   `json:"o"`
		High      float64   `json:"h"`
		Low       float64   `json:"l"`
		Close     float64   `json:"c"`
		Volume    float64   `json:"v"`
	} `json:"bars"`
}

func alpacaTimeframe(tf domain.Timeframe) string {
	switch tf {
	case domain.Timeframe1Min:
		return "1Min"
	case domain.Timeframe2Min:
		return "2Min"
	case domain.Timeframe5Min:
		return "5Min"
	case domain.Timeframe1Day:
		return "1Day"
	default:
		return "1Min"
	}
}

func (c *Client) GetBars(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	var resp barResp
	path := fmt.Sprintf("/v2/stocks/%s/bars?timeframe=%s&limit=%d&adjustment=raw",
		symbol, alpacaTimeframe(tf), limit)
	if err := c.do(ctx, http.MethodGet, c.dataBase, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get bars %s: %w", symbol, err)
	}
	out := make([]domain.Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		out = append(out, domain.Bar{
			Time:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return out, nil
}

type orderReq struct {
	ClientOrderID string `json:"client_order_id,omitempty"`
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	LimitPrice    string `json:"limit_price,omitempty"`
}

type orderResp struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
}

func (c *Client) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	body := orderReq{
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Qty:           strconv.Itoa(req.Quantity),
		Side:          string(req.Side),
		Type:          string(req.Type),
		TimeInForce:   string(req.TimeInForce),
	}
	if req.Type == domain.TypeLimit {
		body.LimitPrice = strconv.FormatFloat(req.LimitPrice, 'f', 2, 64)
	}
	var resp orderResp
	if err := c.do(ctx, http.MethodPost, c.tradingBase, "/v2/orders", body, &resp); err != nil {
		return "", fmt.Errorf("submit order %s: %w", req.Symbol, err)
	}
	return resp.ID, nil
}

func mapOrderStatus(s string) domain.OrderStatus {
	switch s {
	case "filled":
		return domain.OrderStatusFilled
	case "partially_filled":
		return domain.OrderStatusPartiallyFilled
	case "canceled":
		return domain.OrderStatusCanceled
	case "rejected":
		return domain.OrderStatusRejected
	case "expired":
		return domain.OrderStatusExpired
	default:
		return domain.OrderStatusNew
	}
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.OrderState, error) {
	var resp orderResp
	path := "/v2/orders/" + orderID
	if err := c.do(ctx, http.MethodGet, c.tradingBase, path, nil, &resp); err != nil {
		return domain.OrderState{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return domain.OrderState{
		ID:             resp.ID,
		Status:         mapOrderStatus(resp.Status),
		FilledQuantity: int(parseFloat(resp.FilledQty)),
		FilledAvgPrice: parseFloat(resp.FilledAvgPrice),
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := "/v2/orders/" + orderID
	if err := c.do(ctx, http.MethodDelete, c.tradingBase, path, nil, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}
