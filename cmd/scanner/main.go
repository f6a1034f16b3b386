// Command scanner runs the Scanner service (spec §4.2): score the daily
// watchlist every cycle and publish entry signals.
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
	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/logging"
	"github.com/alejandrodnm/momentumcore/internal/orchestrator"
	"github.com/alejandrodnm/momentumcore/internal/scanner"
)

const serviceName = "scanner"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	stateDir := flag.String("state-dir", "state", "shared state directory")
	universePath := flag.String("universe", "universes/base_universe/base_universe.txt", "base universe file, used for degraded-mode fallback")
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
		CallsPerMinute: cfg.Broker.ScannerCallsPerMin,
	})

	dir := state.Dir{Path: *stateDir}
	s := scanner.New(scanner.Config{
		ScanInterval:         cfg.ScanInterval(),
		MinEntryScore:        cfg.Scanning.MinEntryScore,
		MinBreakoutPct:       cfg.Scanning.MinBreakoutPct,
		MinRelativeVolume:    cfg.Scanning.MinRelativeVolume,
		RSIMin:               cfg.Scanning.RSIMin,
		RSIMax:               cfg.Scanning.RSIMax,
		RequireAboveVWAP:     cfg.Scanning.RequireAboveVWAP,
		DegradedUniversePath: *universePath,
		DegradedUniverseSize: 25,
	}, brokerClient, state.NewWatchlistStore(dir), state.NewSignalStore(dir))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go heartbeatLoop(ctx, *stateDir, cfg.ScanInterval())

	slog.Info("scanner starting", "interval", cfg.ScanInterval())
	if err := s.Run(ctx, domain.IsMarketOpen); err != nil {
		slog.Error("scanner exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("scanner stopped cleanly")
}

// heartbeatLoop writes this service's heartbeat file on its own interval so
// the Orchestrator's 2x-staleness liveness check (spec §4.7) has a signal
// independent of whether any cycle actually produced work.
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
