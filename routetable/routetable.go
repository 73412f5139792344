// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: routetable.go — fixed-capacity endpoint-id to next-hop lookup
//
// Purpose:
//   - Maps a destination node EID to the convergence-layer session ID that
//     should carry bundles addressed to it. Populated through Put; nothing
//     in this module loads routes from a database.
//   - Deliberately dumb: no route computation, no contact-graph routing,
//     no link-state propagation. spec.md keeps routing tables external to
//     the active-bundle table; this is the external collaborator, not a
//     routing protocol implementation.
//
// Notes:
//   - Same fixed-capacity open-addressing shape as pairidx/map.go (hash,
//     probe, tag comparison), simplified from clustered 64-byte value
//     blocks down to a single uint32 next-hop id per entry — the payload
//     this table needs to carry is far smaller than pairidx's generic
//     value slots.
// ─────────────────────────────────────────────────────────────────────────────

// Package routetable is a fixed-capacity, open-addressed lookup from
// destination node EID to outbound convergence-layer session id.
package routetable

import "errors"

// ErrFull is returned by Put when every probed slot is occupied by a
// different key.
var ErrFull = errors.New("routetable: table full")

const emptyTag = 0

type entry struct {
	tag     uint64 // 0 means empty; FNV-1a EID hash with a Murmur3-style finalizer
	nextHop uint32
	eid     string // kept for collision resolution and iteration
}

// Table is a fixed-capacity EID -> next-hop map.
type Table struct {
	entries []entry
	mask    uint64
	size    int
}

// New builds a table sized to the next power of two at least 2x capacity,
// mirroring localidx.New's load-factor headroom.
func New(capacity int) *Table {
	sz := nextPow2(capacity * 2)
	return &Table{entries: make([]entry, sz), mask: sz - 1}
}

func nextPow2(n int) uint64 {
	if n < 1 {
		n = 1
	}
	s := uint64(1)
	for s < uint64(n) {
		s <<= 1
	}
	return s
}

func fingerprint(eid string) uint64 {
	var h uint64 = 0xcbf29ce484222325
	for i := 0; i < len(eid); i++ {
		h ^= uint64(eid[i])
		h *= 0x100000001b3
	}
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	if h == emptyTag {
		h = 1
	}
	return h
}

// Put associates eid with nextHop, overwriting any existing mapping.
func (t *Table) Put(eid string, nextHop uint32) error {
	tag := fingerprint(eid)
	i := tag & t.mask
	for probe := uint64(0); probe <= t.mask; probe++ {
		e := &t.entries[i]
		if e.tag == emptyTag {
			e.tag, e.nextHop, e.eid = tag, nextHop, eid
			t.size++
			return nil
		}
		if e.tag == tag && e.eid == eid {
			e.nextHop = nextHop
			return nil
		}
		i = (i + 1) & t.mask
	}
	return ErrFull
}

// Lookup returns the next-hop session id for eid, if known.
func (t *Table) Lookup(eid string) (uint32, bool) {
	tag := fingerprint(eid)
	i := tag & t.mask
	for probe := uint64(0); probe <= t.mask; probe++ {
		e := &t.entries[i]
		if e.tag == emptyTag {
			return 0, false
		}
		if e.tag == tag && e.eid == eid {
			return e.nextHop, true
		}
		i = (i + 1) & t.mask
	}
	return 0, false
}

// Size returns the number of routes currently stored.
func (t *Table) Size() int { return t.size }
