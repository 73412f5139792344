// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: lifecycle.go — agent activity and shutdown coordination
//
// Purpose:
//   - Tracks whether the agent has seen recent convergence-layer traffic and
//     coordinates graceful shutdown across the receive loop and the
//     retransmission ticker.
//
// Notes:
//   - Grounded on control.go's hot/stop flag pair and cooldown timer, moved
//     from package-level globals onto atomics on a per-Agent struct: this
//     agent is a library type instantiated more than once in tests, unlike
//     control.go's single-process globals.
// ─────────────────────────────────────────────────────────────────────────────

package bpagent

import (
	"sync/atomic"
	"time"
)

// Lifecycle tracks activity and shutdown state for one Agent.
type Lifecycle struct {
	hot     atomic.Bool
	stop    atomic.Bool
	lastHot atomic.Int64
	cooldown time.Duration
}

// NewLifecycle builds a Lifecycle with the given idle cooldown.
func NewLifecycle(cooldown time.Duration) *Lifecycle {
	return &Lifecycle{cooldown: cooldown}
}

// SignalActivity marks the agent as active, called whenever a bundle is
// received.
func (l *Lifecycle) SignalActivity() {
	l.hot.Store(true)
	l.lastHot.Store(time.Now().UnixNano())
}

// PollCooldown clears the hot flag once cooldown has elapsed since the
// last signaled activity. Call periodically from the retransmission
// ticker to keep Hot() accurate without a timer per call.
func (l *Lifecycle) PollCooldown() {
	if l.hot.Load() && time.Now().UnixNano()-l.lastHot.Load() > int64(l.cooldown) {
		l.hot.Store(false)
	}
}

// Hot reports whether the agent has seen activity within the cooldown
// window.
func (l *Lifecycle) Hot() bool { return l.hot.Load() }

// Shutdown requests graceful termination. Safe to call more than once.
func (l *Lifecycle) Shutdown() { l.stop.Store(true) }

// Stopped reports whether Shutdown has been called.
func (l *Lifecycle) Stopped() bool { return l.stop.Load() }
