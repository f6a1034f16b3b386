package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/ports"
)

// Server exposes /metrics (Prometheus) and /healthz (JSON) on STATUS_ADDR
// (SPEC_FULL §C.2, default 127.0.0.1:9090).
type Server struct {
	addr       string
	status     ports.StatusStore
	watchlist  ports.WatchlistStore
	positions  ports.PositionStore
	broker     ports.Broker
	refresh    time.Duration
}

func NewServer(addr string, status ports.StatusStore, watchlist ports.WatchlistStore, positions ports.PositionStore, broker ports.Broker, refresh time.Duration) *Server {
	return &Server{addr: addr, status: status, watchlist: watchlist, positions: positions, broker: broker, refresh: refresh}
}

// Run starts the refresh loop and blocks serving HTTP until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	go s.refreshLoop(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealthz)

	srv := &http.Server{Addr: s.addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status, ok, err := s.status.Load(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		status = domain.OrchestratorStatus{UpdatedAt: time.Now()}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		slog.Error("healthz encode failed", "err", err)
	}
}

// refreshLoop periodically samples fleet status, watchlist size, open
// positions, and a single broker clock check into the Prometheus gauges
// (the orchestrator's 5/min share of the broker budget, spec §5).
func (s *Server) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	var callsUsed float64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, ok, err := s.status.Load(ctx)
			if err == nil && ok {
				for _, svc := range status.Services {
					up := 0.0
					if svc.State == domain.StateRunning {
						up = 1.0
					}
					ServiceUp.WithLabelValues(svc.Name).Set(up)
					ServiceRestartCount.WithLabelValues(svc.Name).Set(float64(svc.RestartCount))
				}
			}

			if s.watchlist != nil {
				if w, ok, err := s.watchlist.Load(ctx); err == nil && ok {
					WatchlistSize.Set(float64(len(w.Entries)))
				}
			}

			if s.positions != nil {
				if p, err := s.positions.Load(ctx); err == nil {
					OpenPositions.Set(float64(len(p)))
				}
			}

			if s.broker != nil {
				if _, err := s.broker.GetClock(ctx); err == nil {
					callsUsed++
					BrokerCallsUsedTotal.Set(callsUsed)
				}
			}
		}
	}
}
