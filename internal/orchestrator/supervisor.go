package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/alejandrodnm/momentumcore/internal/domain"
	"github.com/alejandrodnm/momentumcore/internal/ports"
)

// ServiceSpec describes one supervised service binary.
type ServiceSpec struct {
	Name            string
	BinPath         string
	Args            []string
	IntervalSeconds int // drives the 2x heartbeat-staleness threshold
}

// Priority order services are started in (spec §4.7): Seller first (so a
// crash-restart never leaves an exit unprocessed), then Buyer, Monitor,
// Scanner. PreMarketScanner is scheduled separately, not long-running.
func priorityOrder(specs []ServiceSpec) []ServiceSpec {
	rank := map[string]int{"seller": 0, "buyer": 1, "monitor": 2, "scanner": 3}
	ordered := make([]ServiceSpec, len(specs))
	copy(ordered, specs)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && rank[ordered[j].Name] < rank[ordered[j-1].Name]; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}

// Config holds the Orchestrator's own timing knobs (spec §4.7, §6.4).
type Config struct {
	GracefulStop  time.Duration
	MaxBackoff    time.Duration
	StableAfter   time.Duration
	PollInterval  time.Duration
}

// Supervisor runs the Orchestrator's state machine over a fixed set of
// long-running services, persisting the fleet snapshot via a StatusStore
// and writing/reading PID files under stateDir.
type Supervisor struct {
	cfg      Config
	stateDir string
	specs    []ServiceSpec
	launcher ProcessLauncher
	status   ports.StatusStore

	mu           sync.Mutex
	restartCount map[string]int
	lastCrashAt  map[string]time.Time
	backoff      map[string]time.Duration
	startedAt    map[string]time.Time
}

func NewSupervisor(cfg Config, stateDir string, specs []ServiceSpec, launcher ProcessLauncher, status ports.StatusStore) *Supervisor {
	return &Supervisor{
		cfg:          cfg,
		stateDir:     stateDir,
		specs:        priorityOrder(specs),
		launcher:     launcher,
		status:       status,
		restartCount: make(map[string]int),
		lastCrashAt:  make(map[string]time.Time),
		backoff:      make(map[string]time.Duration),
		startedAt:    make(map[string]time.Time),
	}
}

// Start launches every service in priority order and writes its PID file.
func (s *Supervisor) Start(ctx context.Context) error {
	for _, spec := range s.specs {
		if pid, alive, _ := s.livePID(spec.Name); alive {
			slog.Info("service already running, skipping start", "service", spec.Name, "pid", pid)
			continue
		}
		if err := s.startOne(spec); err != nil {
			return fmt.Errorf("start %s: %w", spec.Name, err)
		}
	}
	return s.writeStatus(ctx)
}

func (s *Supervisor) startOne(spec ServiceSpec) error {
	pid, err := s.launcher.Start(spec.BinPath, spec.Args)
	if err != nil {
		return err
	}
	if err := writePID(s.stateDir, spec.Name, pid); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	s.mu.Lock()
	s.startedAt[spec.Name] = time.Now()
	s.mu.Unlock()
	slog.Info("service started", "service", spec.Name, "pid", pid)
	return nil
}

// Stop sends a graceful-shutdown signal to every service and waits up to
// cfg.GracefulStop per service before force-terminating (spec §4.7, §5
// "Orchestrator's graceful-shutdown wait is 30 s per service").
func (s *Supervisor) Stop(ctx context.Context) error {
	// Reverse priority order: stop Scanner/Monitor before Buyer/Seller so
	// no new signal or position is created mid-shutdown.
	for i := len(s.specs) - 1; i >= 0; i-- {
		spec := s.specs[i]
		pid, alive, err := s.livePID(spec.Name)
		if err != nil {
			slog.Warn("stop: could not read pid file", "service", spec.Name, "err", err)
			continue
		}
		if !alive {
			_ = removePID(s.stateDir, spec.Name)
			continue
		}
		s.stopOne(spec.Name, pid)
	}
	return s.writeStatus(ctx)
}

func (s *Supervisor) stopOne(service string, pid int) {
	if err := s.launcher.Signal(pid, syscall.SIGTERM); err != nil {
		slog.Warn("stop: signal failed", "service", service, "pid", pid, "err", err)
	}

	deadline := time.Now().Add(s.cfg.GracefulStop)
	for time.Now().Before(deadline) {
		if !s.launcher.IsAlive(pid) {
			slog.Info("service stopped gracefully", "service", service, "pid", pid)
			_ = removePID(s.stateDir, service)
			return
		}
		time.Sleep(200 * time.Millisecond)
	}

	slog.Warn("service did not stop in time, forcing termination", "service", service, "pid", pid)
	_ = s.launcher.Kill(pid)
	_ = removePID(s.stateDir, service)
}

// Restart stops then starts every service.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	return s.Start(ctx)
}

// Status computes each service's state machine position (spec §4.7
// "status": PID alive + heartbeat freshness) and cleans stale PID files.
func (s *Supervisor) Status(ctx context.Context) ([]domain.ServiceStatus, error) {
	out := make([]domain.ServiceStatus, 0, len(s.specs))
	for _, spec := range s.specs {
		st := s.statusOf(spec)
		out = append(out, st)
	}
	if err := s.writeStatus(ctx); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Supervisor) statusOf(spec ServiceSpec) domain.ServiceStatus {
	pid, hasPID, err := readPID(s.stateDir, spec.Name)
	st := domain.ServiceStatus{Name: spec.Name}
	s.mu.Lock()
	st.RestartCount = s.restartCount[spec.Name]
	s.mu.Unlock()
	if err != nil || !hasPID {
		st.State = domain.StateStopped
		return st
	}

	alive := s.launcher.IsAlive(pid)
	if !alive {
		_ = removePID(s.stateDir, spec.Name)
		st.State = domain.StateCrashed
		return st
	}
	st.PID = pid

	hb, hasHB, _ := readHeartbeat(s.stateDir, spec.Name)
	staleness := 2 * time.Duration(spec.IntervalSeconds) * time.Second
	if staleness <= 0 {
		staleness = 2 * time.Minute
	}
	if !hasHB || time.Since(hb) > staleness {
		st.State = domain.StateCrashed
		return st
	}

	st.State = domain.StateRunning
	st.LastHeartbeat = hb

	s.mu.Lock()
	st.StartedAt = s.startedAt[spec.Name]
	s.mu.Unlock()
	return st
}

func (s *Supervisor) livePID(service string) (int, bool, error) {
	pid, ok, err := readPID(s.stateDir, service)
	if err != nil || !ok {
		return 0, false, err
	}
	return pid, s.launcher.IsAlive(pid), nil
}

func (s *Supervisor) writeStatus(ctx context.Context) error {
	statuses := make([]domain.ServiceStatus, 0, len(s.specs))
	for _, spec := range s.specs {
		statuses = append(statuses, s.statusOf(spec))
	}
	return s.status.Save(ctx, domain.OrchestratorStatus{UpdatedAt: time.Now(), Services: statuses})
}

// Monitor runs Start then supervises: any Crashed service is restarted
// with exponential backoff (1s, 2s, 4s, ..., capped at cfg.MaxBackoff;
// reset after cfg.StableAfter of continuous running) until ctx is
// canceled (spec §4.7 "monitor").
func (s *Supervisor) Monitor(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("orchestrator monitor stopping")
			return s.Stop(context.Background())
		case <-ticker.C:
			s.superviseCycle(ctx)
		}
	}
}

func (s *Supervisor) superviseCycle(ctx context.Context) {
	for _, spec := range s.specs {
		st := s.statusOf(spec)
		if st.State == domain.StateRunning {
			s.mu.Lock()
			if last, ok := s.lastCrashAt[spec.Name]; ok && time.Since(last) > s.cfg.StableAfter {
				s.backoff[spec.Name] = 0
				delete(s.lastCrashAt, spec.Name)
			}
			s.mu.Unlock()
			continue
		}
		if st.State != domain.StateCrashed {
			continue
		}

		s.mu.Lock()
		wait := s.backoff[spec.Name]
		if wait == 0 {
			wait = time.Second
		} else {
			wait *= 2
			if wait > s.cfg.MaxBackoff {
				wait = s.cfg.MaxBackoff
			}
		}
		s.backoff[spec.Name] = wait
		s.lastCrashAt[spec.Name] = time.Now()
		s.restartCount[spec.Name]++
		s.mu.Unlock()

		slog.Warn("service crashed, restarting", "service", spec.Name, "backoff", wait)
		time.Sleep(wait)
		if err := s.startOne(spec); err != nil {
			slog.Error("restart failed", "service", spec.Name, "err", err)
		}
	}
	_ = s.writeStatus(ctx)
}
