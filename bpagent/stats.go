// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: stats.go — agent snapshot for diagnostics/monitoring endpoints
//
// Notes:
//   - Uses sugawarayuuta/sonnet rather than encoding/json for the same
//     reason syncharvester reaches for it over the stdlib decoder: this is
//     a hot-ish diagnostics endpoint (polled by a supervisor process), and
//     sonnet's reflection-free encoder avoids the allocation churn stdlib
//     json pays per call.
// ─────────────────────────────────────────────────────────────────────────────

package bpagent

import "github.com/sugawarayuuta/sonnet"

// Snapshot is a point-in-time view of an Agent's queue depths, suitable
// for a supervisor process polling for health.
type Snapshot struct {
	ActiveCount   int  `json:"active_count"`
	ScheduledRetx int  `json:"scheduled_retx"`
	Hot           bool `json:"hot"`
}

// Snapshot captures the agent's current counters.
func (a *Agent) Snapshot() Snapshot {
	return Snapshot{
		ActiveCount:   a.table.Count(),
		ScheduledRetx: a.sched.Size(),
		Hot:           a.life.Hot(),
	}
}

// MarshalJSON encodes the agent's current snapshot.
func (a *Agent) MarshalJSON() ([]byte, error) {
	return sonnet.Marshal(a.Snapshot())
}
