// Command seller runs the Seller service (spec §4.5): execute pending
// exits, finalize Trade records, and start symbol cooldowns.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/adapters/audit"
	"github.com/alejandrodnm/momentumcore/internal/adapters/broker"
	"github.com/alejandrodnm/momentumcore/internal/adapters/state"
	"github.com/alejandrodnm/momentumcore/internal/config"
	"github.com/alejandrodnm/momentumcore/internal/logging"
	"github.com/alejandrodnm/momentumcore/internal/orchestrator"
	"github.com/alejandrodnm/momentumcore/internal/seller"
)

const serviceName = "seller"

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
		CallsPerMinute: cfg.Broker.SellerCallsPerMin,
	})
	poller := broker.NewPoller(brokerClient)

	var recorder seller.AuditRecorder
	if cfg.Audit.Enabled {
		store, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			slog.Warn("audit trail disabled: failed to open database", "err", err)
		} else {
			defer store.Close()
			recorder = store
		}
	}

	dir := state.Dir{Path: *stateDir}
	s := seller.New(seller.Config{
		Interval:       cfg.SellInterval(),
		OrderTimeout:   cfg.OrderTimeout(),
		CooldownPeriod: cfg.CooldownDuration(),
		MaxFailures:    cfg.Risk.SellerMaxFailures,
	}, brokerClient, poller, state.NewSellSignalStore(dir), state.NewPositionStore(dir), state.NewTradeStore(dir), state.NewCooldownStore(dir), recorder)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go heartbeatLoop(ctx, *stateDir, cfg.SellInterval())

	slog.Info("seller starting", "interval", cfg.SellInterval())
	if err := s.Run(ctx); err != nil {
		slog.Error("seller exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("seller stopped cleanly")
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
