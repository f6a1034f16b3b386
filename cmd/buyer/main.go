// Command buyer runs the Buyer service (spec §4.3): act on fresh entry
// signals, size and submit buy orders, create Positions on fill.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/adapters/broker"
	"github.com/alejandrodnm/momentumcore/internal/adapters/state"
	"github.com/alejandrodnm/momentumcore/internal/buyer"
	"github.com/alejandrodnm/momentumcore/internal/config"
	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/logging"
	"github.com/alejandrodnm/momentumcore/internal/orchestrator"
)

const serviceName = "buyer"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	stateDir := flag.String("state-dir", "state", "shared state directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log, serviceName)

	brokerClient := broker.NewClient(broker.Config{
		APIKey:         cfg.Broker.APIKey,
		APISecret:      cfg.Broker.APISecret,
		TradingBase:    cfg.Broker.TradingBaseURL,
		DataBase:       cfg.Broker.DataBaseURL,
		CallsPerMinute: cfg.Broker.BuyerCallsPerMin,
	})
	poller := broker.NewPoller(brokerClient)

	dir := state.Dir{Path: *stateDir}
	b := buyer.New(buyer.Config{
		Interval:         cfg.BuyInterval(),
		FastPathInterval: cfg.HotCheckInterval(),
		FastPathMinScore: cfg.Trading.HotCheckMinScore,
		SignalMaxAge:     cfg.SignalMaxAge(),
		MaxPositions:     cfg.Trading.MaxPositions,
		MaxSlippagePct:   cfg.Trading.MaxSlippagePct,
		MaxSpreadPct:     cfg.Trading.MaxSpreadPct,
		ReversalPct:      cfg.Trading.ReversalPct,
		UseLimitOrders:   cfg.Trading.UseLimitOrders,
		LimitOrderBuffer: cfg.Trading.LimitOrderBuffer,
		OrderTimeout:     cfg.OrderTimeout(),
		DedupWindow:      cfg.DedupWindow(),
		Tiers:            config.DefaultPositionSizeTiers(),
	}, brokerClient, poller, state.NewSignalStore(dir), state.NewPositionStore(dir), state.NewCooldownStore(dir))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go heartbeatLoop(ctx, *stateDir, cfg.BuyInterval())

	slog.Info("buyer starting", "interval", cfg.BuyInterval())
	if err := b.Run(ctx, domain.IsMarketOpen); err != nil {
		slog.Error("buyer exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("buyer stopped cleanly")
}

func heartbeatLoop(ctx context.Context, stateDir string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	_ = orchestrator.WriteHeartbeat(stateDir, serviceName)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = orchestrator.WriteHeartbeat(stateDir, serviceName)
		}
	}
}
