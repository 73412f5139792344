// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: agent.go — bundle agent orchestration
//
// Purpose:
//   - Wires activetable, dedupe, retx, routetable, storage and convergence
//     into the receive/forward/retransmit paths a running bundle agent
//     needs. Nothing here re-implements those packages' algorithms; Agent
//     is glue, not a sixth data structure.
//
// Notes:
//   - Phased construction (allocate each subsystem, then hand them to New)
//     mirrors main.go's top-level bootstrap shape, generalized to a
//     constructor since bpagent is a library type rather than a process.
// ─────────────────────────────────────────────────────────────────────────────

// Package bpagent orchestrates the active-bundle table, retransmission
// scheduler, dedupe ring, route table, storage service and convergence
// layer into a running bundle agent.
package bpagent

import (
	"errors"

	"github.com/glan6388/bplib/activetable"
	"github.com/glan6388/bplib/bundle"
	"github.com/glan6388/bplib/convergence"
	"github.com/glan6388/bplib/dedupe"
	"github.com/glan6388/bplib/internal/config"
	"github.com/glan6388/bplib/internal/logx"
	"github.com/glan6388/bplib/parser"
	"github.com/glan6388/bplib/retx"
	"github.com/glan6388/bplib/routetable"
	"github.com/glan6388/bplib/storage"
)

// ErrNoRoute is returned by Forward when the destination EID has no known
// next hop in the route table.
var ErrNoRoute = errors.New("bpagent: no route to destination")

// SignalKind enumerates the custody signal kinds dedupe distinguishes.
const (
	SignalAccepted uint8 = iota
	SignalRefused
	SignalDeleted
)

// Agent ties one active-bundle table to the supporting subsystems a
// custodian node needs to receive, retransmit and account for bundles on
// a single outbound channel.
type Agent struct {
	cfg config.Config

	table  *activetable.Table
	dedupe *dedupe.Dedupe
	sched  *retx.Scheduler
	routes *routetable.Table
	store  storage.Service

	life *Lifecycle

	handles map[uint64]retx.Handle // cid -> retx handle, mirrors table membership
}

// New builds an Agent from cfg. routes and store are supplied by the
// caller since both typically outlive any single Agent (shared across
// channels).
func New(cfg config.Config, store storage.Service, routes *routetable.Table) (*Agent, error) {
	table, err := activetable.New(cfg.ActiveTableSize)
	if err != nil {
		return nil, err
	}
	return &Agent{
		cfg:     cfg,
		table:   table,
		dedupe:  dedupe.New(cfg),
		sched:   retx.New(cfg),
		routes:  routes,
		store:   store,
		life:    NewLifecycle(cfg.RetxTickInterval * 5),
		handles: make(map[uint64]retx.Handle),
	}, nil
}

// Lifecycle exposes the agent's activity/shutdown coordinator.
func (a *Agent) Lifecycle() *Lifecycle { return a.life }

// Count returns the number of bundles currently custodied by this agent.
func (a *Agent) Count() int { return a.table.Count() }

// Receive processes one inbound bundle frame: parses the primary block,
// persists the body, and enrolls it in the active table with an initial
// retransmission deadline. Returns the assigned CID.
func (a *Agent) Receive(frame []byte) (uint64, error) {
	a.life.SignalActivity()

	primary, err := parser.ParsePrimary(frame)
	if err != nil {
		return 0, err
	}

	body := frame
	sid, err := a.store.Enqueue(body)
	if err != nil {
		return 0, err
	}

	deadline := int64(primary.Lifetime)
	bnd := bundle.Bundle{CID: primary.CID, SID: sid, RetxTime: deadline}
	if err := a.table.Add(bnd, true); err != nil {
		a.store.Delete(sid)
		return 0, err
	}

	h, ok := a.handles[primary.CID]
	if !ok {
		h, err = a.sched.Borrow()
		if err != nil {
			logx.Warn("bpagent: retx scheduler exhausted", err)
			return primary.CID, nil
		}
		a.handles[primary.CID] = h
	}
	if err := a.sched.Push(deadline, h, primary.CID); err != nil {
		logx.Warn("bpagent: schedule retransmission", err)
	}

	return primary.CID, nil
}

// Deliver marks cid as custody-complete: removes it from the active
// table, cancels its scheduled retransmission, and deletes its stored
// body.
func (a *Agent) Deliver(cid uint64) error {
	bnd, err := a.table.Remove(cid)
	if err != nil {
		return err
	}
	if h, ok := a.handles[cid]; ok {
		a.sched.Cancel(h)
		a.sched.Return(h)
		delete(a.handles, cid)
	}
	return a.store.Delete(bnd.SID)
}

// AcceptSignal records an inbound custody signal from sess, applying
// dedupe so a retried delivery over a flaky convergence layer session
// does not trigger a second Deliver for the same CID. Returns true if
// the signal was new and should be acted on.
func (a *Agent) AcceptSignal(sess *convergence.Session, cid uint64, kind uint8, tagHi, tagLo uint64) bool {
	sig := dedupe.Signal{SourceHash: sess.SourceHash, CID: cid, Kind: kind}
	return a.dedupe.Check(sig, tagHi, tagLo)
}

// DueForRetransmission returns the CID with the earliest scheduled
// retransmission deadline, if any is currently due at or before tick.
func (a *Agent) DueForRetransmission(tick int64) (uint64, bool) {
	_, cid, deadline, ok := a.sched.PeekDue()
	if !ok || deadline > tick {
		return 0, false
	}
	return cid, true
}

// Forward looks up the next-hop session id for destEID, returning
// ErrNoRoute if unknown.
func (a *Agent) Forward(destEID string) (uint32, error) {
	hop, ok := a.routes.Lookup(destEID)
	if !ok {
		return 0, ErrNoRoute
	}
	return hop, nil
}
