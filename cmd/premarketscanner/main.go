// Command premarketscanner runs one PreMarketScanner pass (spec §4.1):
// rank the base universe and publish the day's watchlist. It is invoked
// once per trading day by the Orchestrator between 08:00-09:25 ET, and
// can also be run standalone for debugging (spec §6.3).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/adapters/broker"
	"github.com/alejandrodnm/momentumcore/internal/adapters/state"
	"github.com/alejandrodnm/momentumcore/internal/config"
	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/logging"
	"github.com/alejandrodnm/momentumcore/internal/orchestrator"
	"github.com/alejandrodnm/momentumcore/internal/premarket"
)

const serviceName = "premarketscanner"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	stateDir := flag.String("state-dir", "state", "shared state directory")
	universePath := flag.String("universe", "universes/base_universe/base_universe.txt", "base universe file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log, serviceName)

	warnIfUniverseStale(*universePath)

	symbols, err := premarket.LoadBaseUniverse(*universePath, cfg.Scanning.BaseUniverseSize)
	if err != nil {
		slog.Error("failed to load base universe", "err", err)
		os.Exit(1)
	}

	brokerClient := broker.NewClient(broker.Config{
		APIKey:         cfg.Broker.APIKey,
		APISecret:      cfg.Broker.APISecret,
		TradingBase:    cfg.Broker.TradingBaseURL,
		DataBase:       cfg.Broker.DataBaseURL,
		CallsPerMinute: cfg.Broker.ScannerCallsPerMin, // premarket shares Scanner's data-fetch budget
	})

	dir := state.Dir{Path: *stateDir}
	watchlistStore := state.NewWatchlistStore(dir)

	scanner := premarket.New(premarket.Config{
		UniverseSize:       cfg.Scanning.BaseUniverseSize,
		WatchlistSize:      cfg.Scanning.WatchlistSize,
		MinGapPct:          cfg.Scanning.MinGapPct,
		MinPremarketVolume: cfg.Scanning.MinPremarketVolume,
		MinRelativeVolume:  cfg.Scanning.MinPremarketRelVolume,
		PriceMin:           cfg.Scanning.PriceMin,
		PriceMax:           cfg.Scanning.PriceMax,
	}, brokerClient, watchlistStore)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	now := time.Now()
	tradingDate := now.In(domain.EasternLocation()).Format("2006-01-02")
	if err := scanner.Run(ctx, symbols, tradingDate, now); err != nil {
		slog.Error("premarket scan failed", "err", err)
		os.Exit(1)
	}

	_ = orchestrator.WriteHeartbeat(*stateDir, serviceName)
	slog.Info("premarket scan complete")
}

func warnIfUniverseStale(path string) {
	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("could not stat base universe file", "path", path, "err", err)
		return
	}
	if age := time.Since(info.ModTime()); age > 9*24*time.Hour {
		slog.Warn("base universe file is stale, external weekly builder may be overdue", "path", filepath.Clean(path), "age", age.Round(time.Hour))
	}
}
