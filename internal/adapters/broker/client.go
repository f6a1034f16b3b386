// Package broker implements ports.Broker against Alpaca's REST trading and
// market-data APIs: rate-limited HTTP with retry/backoff, in the same shape
// the Polymarket client uses, decoding Alpaca's string-typed JSON fields
// into the domain's numeric vocabulary.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/errs"
)

const (
	defaultTradingBase = "https://paper-api.alpaca.markets"
	defaultDataBase    = "https://data.alpaca.markets"

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is the Alpaca HTTP client. It implements ports.Broker.
type Client struct {
	http        *http.Client
	tradingBase string
	dataBase    string
	apiKey      string
	apiSecret   string
	limiter     *rate.Limiter
}

// Config holds the credentials and rate budget for a Client.
type Config struct {
	APIKey      string
	APISecret   string
	TradingBase string // empty uses the paper-trading default
	DataBase    string // empty uses the production market-data default
	// CallsPerMinute is this client's share of the shared broker-call
	// budget (spec §6.1 "200 calls/min total, allocated per component").
	CallsPerMinute int
}

// NewClient builds a Client from cfg, applying defaults for empty fields.
func NewClient(cfg Config) *Client {
	tradingBase := cfg.TradingBase
	if tradingBase == "" {
		tradingBase = defaultTradingBase
	}
	dataBase := cfg.DataBase
	if dataBase == "" {
		dataBase = defaultDataBase
	}
	perMin := cfg.CallsPerMinute
	if perMin <= 0 {
		perMin = 60
	}
	return &Client{
		http:        &http.Client{Timeout: 10 * time.Second},
		tradingBase: tradingBase,
		dataBase:    dataBase,
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		limiter:     rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin),
	}
}

func (c *Client) do(ctx context.Context, method, base, path string, body, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		var reqBody io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
			reqBody = bytes.NewReader(b)
		}
		req, err := http.NewRequestWithContext(ctx, method, base+path, reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("APCA-API-KEY-ID", c.apiKey)
		req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry runs fn under the rate limiter with exponential backoff on
// transient failures, classifying the terminal error into the broker error
// taxonomy (spec §7).
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			lastErr = err
			if attempt == maxRetries {
				return &errs.BrokerTransientError{Op: "http", Err: err}
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("broker rate limited", "attempt", attempt+1)
			lastErr = fmt.Errorf("rate limited (429)")
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error %d", resp.StatusCode)
			if attempt == maxRetries {
				return &errs.BrokerTransientError{Op: "http", Err: lastErr}
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return &errs.BrokerPermanentError{Op: "http", Err: fmt.Errorf("%d: %s", resp.StatusCode, string(b))}
		}

		defer resp.Body.Close()
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return &errs.BrokerTransientError{Op: "http", Err: lastErr}
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
