package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/momentumcore/internal/domain"
)

// RenderStatusTable prints statuses as a human-readable table (SPEC_FULL
// §C.3): Service | State | PID | Uptime | Last Heartbeat.
func RenderStatusTable(w io.Writer, statuses []domain.ServiceStatus, now time.Time) {
	table := tablewriter.NewWriter(w)
	table.Header("Service", "State", "PID", "Uptime", "Last Heartbeat")

	for _, st := range statuses {
		pid := "-"
		if st.PID > 0 {
			pid = fmt.Sprintf("%d", st.PID)
		}
		uptime := "-"
		if st.State == domain.StateRunning && !st.StartedAt.IsZero() {
			uptime = now.Sub(st.StartedAt).Round(time.Second).String()
		}
		heartbeat := "-"
		if !st.LastHeartbeat.IsZero() {
			heartbeat = now.Sub(st.LastHeartbeat).Round(time.Second).String() + " ago"
		}
		table.Append(st.Name, string(st.State), pid, uptime, heartbeat)
	}

	table.Render()
}

// RenderStatusJSON writes statuses as JSON for scripting (`-json` flag,
// SPEC_FULL §C.3).
func RenderStatusJSON(w io.Writer, statuses []domain.ServiceStatus) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(statuses)
}
