package ports

import (
	"context"

	"github.com/alejandrodnm/momentumcore/internal/domain"
)

// StatusStore persists the OrchestratorStatus snapshot. Written by the
// Orchestrator, read by the `status` CLI command and /healthz.
type StatusStore interface {
	Save(ctx context.Context, status domain.OrchestratorStatus) error
	Load(ctx context.Context) (domain.OrchestratorStatus, bool, error)
}
