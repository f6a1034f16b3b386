// Command orchestrator supervises the four long-running services
// (Scanner, Buyer, Monitor, Seller) plus the once-daily PreMarketScanner
// pass (spec §4.7, §6.3).
//
// Usage: orchestrator <start|stop|restart|status|monitor> [flags]
// Exit codes: 0 success, 1 runtime error, 2 usage error.
package main

import (
	"context"
	"flag"
	"fmt"
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
)

const serviceName = "orchestrator"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}
	cmd := args[0]

	fs := flag.NewFlagSet("orchestrator "+cmd, flag.ContinueOnError)
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	stateDir := fs.String("state-dir", "state", "shared state directory")
	binDir := fs.String("bin-dir", ".", "directory containing the compiled service binaries")
	jsonOut := fs.Bool("json", false, "render status as JSON instead of a table")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return 1
	}
	logging.Setup(cfg.Log, serviceName)

	specs := []orchestrator.ServiceSpec{
		{Name: "scanner", BinPath: filepath.Join(*binDir, "scanner"), Args: []string{"-config", *configPath, "-state-dir", *stateDir}, IntervalSeconds: int(cfg.ScanInterval().Seconds())},
		{Name: "buyer", BinPath: filepath.Join(*binDir, "buyer"), Args: []string{"-config", *configPath, "-state-dir", *stateDir}, IntervalSeconds: int(cfg.BuyInterval().Seconds())},
		{Name: "monitor", BinPath: filepath.Join(*binDir, "monitor"), Args: []string{"-config", *configPath, "-state-dir", *stateDir}, IntervalSeconds: int(cfg.MonitorInterval().Seconds())},
		{Name: "seller", BinPath: filepath.Join(*binDir, "seller"), Args: []string{"-config", *configPath, "-state-dir", *stateDir}, IntervalSeconds: int(cfg.SellInterval().Seconds())},
	}

	sup := orchestrator.NewSupervisor(orchestrator.Config{
		GracefulStop: cfg.GracefulStop(),
		MaxBackoff:   cfg.MaxBackoff(),
		StableAfter:  cfg.StableAfter(),
		PollInterval: cfg.HeartbeatInterval(),
	}, *stateDir, specs, orchestrator.OSLauncher{}, state.NewStatusStore(state.Dir{Path: *stateDir}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "start":
		if err := sup.Start(ctx); err != nil {
			slog.Error("start failed", "err", err)
			return 1
		}
		go runPremarketScheduler(ctx, *configPath, *stateDir, *binDir)
		fmt.Println("services started")
		return 0
	case "stop":
		if err := sup.Stop(ctx); err != nil {
			slog.Error("stop failed", "err", err)
			return 1
		}
		fmt.Println("services stopped")
		return 0
	case "restart":
		if err := sup.Restart(ctx); err != nil {
			slog.Error("restart failed", "err", err)
			return 1
		}
		fmt.Println("services restarted")
		return 0
	case "status":
		statuses, err := sup.Status(ctx)
		if err != nil {
			slog.Error("status failed", "err", err)
			return 1
		}
		if *jsonOut {
			if err := orchestrator.RenderStatusJSON(os.Stdout, statuses); err != nil {
				slog.Error("render status json", "err", err)
				return 1
			}
			return 0
		}
		orchestrator.RenderStatusTable(os.Stdout, statuses, time.Now())
		return 0
	case "monitor":
		return runMonitor(ctx, cfg, sup, *configPath, *stateDir, *binDir)
	default:
		usage()
		return 2
	}
}

// runMonitor is the Orchestrator's long-lived mode: it supervises every
// service, schedules the daily PreMarketScanner pass, and serves
// /metrics + /healthz until signaled.
func runMonitor(ctx context.Context, cfg *config.Config, sup *orchestrator.Supervisor, configPath, stateDir, binDir string) int {
	brokerClient := broker.NewClient(broker.Config{
		APIKey:         cfg.Broker.APIKey,
		APISecret:      cfg.Broker.APISecret,
		TradingBase:    cfg.Broker.TradingBaseURL,
		DataBase:       cfg.Broker.DataBaseURL,
		CallsPerMinute: cfg.Broker.OrchestratorCallsPerMin,
	})
	dir := state.Dir{Path: stateDir}
	srv := orchestrator.NewServer(cfg.Orchestrator.StatusAddr, state.NewStatusStore(dir), state.NewWatchlistStore(dir), state.NewPositionStore(dir), brokerClient, cfg.HeartbeatInterval())

	go runPremarketScheduler(ctx, configPath, stateDir, binDir)
	go func() {
		if err := srv.Run(ctx); err != nil {
			slog.Error("status server exited", "err", err)
		}
	}()

	slog.Info("orchestrator monitoring fleet", "status_addr", cfg.Orchestrator.StatusAddr)
	if err := sup.Monitor(ctx); err != nil {
		slog.Error("monitor exited with error", "err", err)
		return 1
	}
	return 0
}

// runPremarketScheduler launches the PreMarketScanner binary once per
// trading day, inside its 08:00-09:25 ET window (spec §4.1, §4.7).
func runPremarketScheduler(ctx context.Context, configPath, stateDir, binDir string) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	lastRunDate := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			today := now.In(domain.EasternLocation()).Format("2006-01-02")
			if today == lastRunDate || !domain.IsPreMarketWindow(now) {
				continue
			}
			launcher := orchestrator.OSLauncher{}
			pid, err := launcher.Start(filepath.Join(binDir, "premarketscanner"), []string{"-config", configPath, "-state-dir", stateDir})
			if err != nil {
				slog.Error("failed to launch premarket scanner", "err", err)
				continue
			}
			slog.Info("premarket scanner launched", "pid", pid)
			lastRunDate = today
		}
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: orchestrator <start|stop|restart|status|monitor> [-config path] [-state-dir dir] [-bin-dir dir] [-json]")
}
