// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: retx.go — time-bucketed retransmission scheduler
//
// Purpose:
//   - Tracks per-CID retransmission deadlines separately from activetable,
//     which only carries retx_time as an opaque field (spec.md §3/§9). The
//     scheduler decides *when* to re-offer a bundle for retransmission;
//     activetable.Next still decides *which* bundle is oldest for the
//     replay scan itself.
//   - O(1) PeekDue via a two-level bitmap over fixed time buckets, exactly
//     the structure bucketqueue.go uses for its priority queue — retargeted
//     from an arbitrage tick window to a retransmission deadline window.
//
// Notes:
//   - Handles are arena indices reused via a free list, same as
//     bucketqueue.Borrow/Return. A handle stays valid across Push/Update
//     calls; callers keep it alongside the CID they scheduled.
//
// ⚠️ Not safe for concurrent use.
// ─────────────────────────────────────────────────────────────────────────────

// Package retx schedules per-CID retransmission deadlines using a
// two-level bitmap bucket queue, independent of activetable's own
// insertion-order age list.
package retx

import (
	"errors"
	"math/bits"

	"github.com/glan6388/bplib/internal/config"
)

const groupSize = 64

var (
	// ErrFull is returned by Borrow when no handle is available.
	ErrFull = errors.New("retx: no free handles")
	// ErrPastWindow is returned by Push/Update when the deadline is
	// already behind the scheduler's current base tick.
	ErrPastWindow = errors.New("retx: deadline too far in the past")
	// ErrBeyondWindow is returned by Push/Update when the deadline is
	// further out than the configured bucket window covers.
	ErrBeyondWindow = errors.New("retx: deadline too far in the future")
	// ErrItemNotFound is returned when a Handle is invalid or not
	// currently scheduled.
	ErrItemNotFound = errors.New("retx: invalid handle")
)

const nilIdx = ^uint32(0)

// Handle references one arena slot across Push/Update/Cancel calls.
type Handle uint32

type node struct {
	next, prev uint32
	tick       int64
	scheduled  bool
	cid        uint64
}

// Scheduler is a fixed-capacity time-bucketed retransmission queue.
type Scheduler struct {
	arena     []node
	freeHead  uint32
	buckets   []uint32
	baseTick  int64
	size      int
	summary   uint64
	groupBits []uint64
	numGroups int
}

// New builds a scheduler with cfg.RetxBucketCount buckets (rounded up to
// a multiple of 64) and capacity for one handle per active-table slot.
func New(cfg config.Config) *Scheduler {
	numBuckets := cfg.RetxBucketCount
	if numBuckets <= 0 {
		numBuckets = groupSize
	}
	if numBuckets%groupSize != 0 {
		numBuckets += groupSize - numBuckets%groupSize
	}
	capItems := cfg.ActiveTableSize
	if capItems <= 0 {
		capItems = numBuckets
	}

	s := &Scheduler{
		arena:     make([]node, capItems),
		buckets:   make([]uint32, numBuckets),
		groupBits: make([]uint64, numBuckets/groupSize),
		numGroups: numBuckets / groupSize,
	}
	for i := capItems - 1; i > 0; i-- {
		s.arena[i-1].next = uint32(i)
	}
	s.arena[capItems-1].next = nilIdx
	s.freeHead = 0
	for i := range s.buckets {
		s.buckets[i] = nilIdx
	}
	return s
}

// Borrow reserves an arena slot for a CID not yet scheduled.
func (s *Scheduler) Borrow() (Handle, error) {
	if s.freeHead == nilIdx {
		return Handle(nilIdx), ErrFull
	}
	h := s.freeHead
	n := &s.arena[h]
	s.freeHead = n.next
	n.next, n.prev, n.scheduled = nilIdx, nilIdx, false
	return Handle(h), nil
}

// Return releases a handle back to the free list. The handle must not be
// currently scheduled (call Cancel first).
func (s *Scheduler) Return(h Handle) error {
	idx := uint32(h)
	if idx >= uint32(len(s.arena)) {
		return ErrItemNotFound
	}
	n := &s.arena[idx]
	n.next = s.freeHead
	n.prev = nilIdx
	n.scheduled = false
	s.freeHead = idx
	return nil
}

func (s *Scheduler) numBuckets() uint64 { return uint64(len(s.buckets)) }

// Push schedules cid's retransmission at deadline: a tick relative to the
// scheduler's fixed origin (tick 0), not wall-clock time. bpagent.Receive
// passes the bundle's primary-block lifetime, already in tick units, as
// the deadline; cmd/bpagentd's ticker advances its tick counter once per
// config.RetxTickInterval. The origin never moves, matching bucketqueue.go's
// fixed-window model — Push does not slide the schedule forward.
func (s *Scheduler) Push(deadline int64, h Handle, cid uint64) error {
	idx := uint32(h)
	if idx >= uint32(len(s.arena)) {
		return ErrItemNotFound
	}
	delta := deadline - s.baseTick
	switch {
	case delta < 0:
		return ErrPastWindow
	case uint64(delta) >= s.numBuckets():
		return ErrBeyondWindow
	}

	n := &s.arena[idx]
	if n.scheduled {
		s.unlink(idx)
		s.size--
	}

	bkt := uint64(delta)
	n.next, n.prev = s.buckets[bkt], nilIdx
	if n.next != nilIdx {
		s.arena[n.next].prev = idx
	}
	s.buckets[bkt] = idx
	n.tick, n.cid, n.scheduled = deadline, cid, true

	g := bkt / groupSize
	s.groupBits[g] |= 1 << (bkt % groupSize)
	s.summary |= 1 << g
	s.size++
	return nil
}

// Update reschedules an already-scheduled handle to a new deadline.
func (s *Scheduler) Update(deadline int64, h Handle) error {
	idx := uint32(h)
	if idx >= uint32(len(s.arena)) || !s.arena[idx].scheduled {
		return ErrItemNotFound
	}
	cid := s.arena[idx].cid
	s.unlink(idx)
	s.size--
	return s.Push(deadline, h, cid)
}

// Cancel removes a handle from the schedule without freeing it.
func (s *Scheduler) Cancel(h Handle) error {
	idx := uint32(h)
	if idx >= uint32(len(s.arena)) || !s.arena[idx].scheduled {
		return ErrItemNotFound
	}
	s.unlink(idx)
	s.size--
	return nil
}

func (s *Scheduler) unlink(idx uint32) {
	n := &s.arena[idx]
	bkt := uint64(n.tick - s.baseTick)
	if n.prev != nilIdx {
		s.arena[n.prev].next = n.next
	} else {
		s.buckets[bkt] = n.next
	}
	if n.next != nilIdx {
		s.arena[n.next].prev = n.prev
	}
	if s.buckets[bkt] == nilIdx {
		g := bkt / groupSize
		s.groupBits[g] &^= 1 << (bkt % groupSize)
		if s.groupBits[g] == 0 {
			s.summary &^= 1 << g
		}
	}
	n.next, n.prev, n.scheduled = nilIdx, nilIdx, false
}

// PeekDue returns the handle and CID with the earliest scheduled
// deadline, without removing it. ok is false if nothing is scheduled.
func (s *Scheduler) PeekDue() (h Handle, cid uint64, deadline int64, ok bool) {
	if s.size == 0 || s.summary == 0 {
		return Handle(nilIdx), 0, 0, false
	}
	g := bits.TrailingZeros64(s.summary)
	b := bits.TrailingZeros64(s.groupBits[g])
	bkt := uint64(g*groupSize + b)
	idx := s.buckets[bkt]
	n := &s.arena[idx]
	return Handle(idx), n.cid, n.tick, true
}

// Size returns the number of currently scheduled handles.
func (s *Scheduler) Size() int { return s.size }
