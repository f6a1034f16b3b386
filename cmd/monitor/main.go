// Command monitor runs the Monitor service (spec §4.4): reconcile local
// positions against the broker and ratchet stops, emitting sell signals
// on exit triggers.
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
	"github.com/alejandrodnm/momentumcore/internal/config"
	"github.com/alejandrodnm/momentumcore/internal/logging"
	"github.com/alejandrodnm/momentumcore/internal/monitor"
	"github.com/alejandrodnm/momentumcore/internal/orchestrator"
)

const serviceName = "monitor"

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
		CallsPerMinute: cfg.Broker.MonitorCallsPerMin,
	})

	dir := state.Dir{Path: *stateDir}
	m := monitor.New(monitor.Config{
		Interval:               cfg.MonitorInterval(),
		StopLossPct:            cfg.Risk.StopLossPct,
		BreakEvenProfitPct:     cfg.Risk.BreakEvenProfitPct,
		DecelExitThreshold:     cfg.Risk.DecelExitThreshold,
		MinProfitForDecelCheck: cfg.Risk.MinProfitForDecelCheck,
		EODWindow:              cfg.EODWindow(),
		TrailingStopTiers:      config.DefaultTrailingStopTiers(),
	}, brokerClient, state.NewPositionStore(dir), state.NewSellSignalStore(dir))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go heartbeatLoop(ctx, *stateDir, cfg.MonitorInterval())

	slog.Info("monitor starting", "interval", cfg.MonitorInterval())
	if err := m.Run(ctx); err != nil {
		slog.Error("monitor exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("monitor stopped cleanly")
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
