// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: activetable.go — fixed-capacity, dual-ordered active bundle table
//
// Purpose:
//   - Tracks in-flight bundles awaiting custody acknowledgement, indexed by
//     custody identifier (CID) for O(1) lookup and simultaneously ordered by
//     insertion time for oldest-first retransmission scanning.
//   - Pre-allocated backing array, single owner, no growth, no rehashing.
//
// Notes:
//   - Every occupied slot belongs to exactly two intrusive doubly-linked
//     lists at once: a per-bucket collision chain (next/prev) and a global
//     age list (after/before). Both are array-index based, not pointer
//     based — nilIndex plays the role bucketqueue.go's nilIdx plays.
//   - Robin Hood displacement keeps each CID's home slot always at the head
//     of its own chain; tail-compaction on remove preserves that without
//     re-probing. See the comments inside Add and Remove for the two subtle
//     cases (chain-head insert vs. displacement, and tail-compact removal).
//
// ⚠️ Not safe for concurrent use. Callers running a multi-threaded bundle
//    agent must serialize access to a given table externally.
// ─────────────────────────────────────────────────────────────────────────────

// Package activetable implements the rh_hash active-bundle table: a
// fixed-size, open-addressed, Robin-Hood-displacing hash table that
// maintains both a CID collision chain and a global insertion-order age
// list over the same backing array.
package activetable

import (
	"errors"

	"github.com/glan6388/bplib/bundle"
)

// nilIndex is the sentinel meaning "no slot" for next/prev/after/before
// links and for oldest/newest anchors. It sits outside [0, size) for any
// legal table, matching the source's NULL_INDEX == BP_MAX_INDEX pattern.
const nilIndex = ^uint32(0)

// maxSize bounds table capacity so that every valid slot index is strictly
// less than nilIndex. Left untyped (not derived from nilIndex) so it can
// be compared directly against an int size without a conversion.
const maxSize = 1<<32 - 2

var (
	// ErrParam is returned by New when the requested capacity is invalid.
	ErrParam = errors.New("activetable: invalid capacity")
	// ErrOOM is returned by New when the backing array cannot be allocated.
	ErrOOM = errors.New("activetable: allocation failed")
	// ErrDuplicateCID is returned by Add when overwrite is false and the
	// CID already has an occupied slot.
	ErrDuplicateCID = errors.New("activetable: duplicate cid")
	// ErrTableFull is returned by Add when no vacant slot can be found,
	// and by Available when the table is at capacity.
	ErrTableFull = errors.New("activetable: table full")
	// ErrCIDNotFound is returned by Remove and Next when no matching
	// occupied slot exists.
	ErrCIDNotFound = errors.New("activetable: cid not found")
)

// node is one cell of the backing array: a bundle payload fused with both
// intrusive links it can simultaneously participate in. Chain and age
// links are kept together deliberately — Add and Remove update both in
// lockstep and need them co-located, not split into side tables.
type node struct {
	bundle bundle.Bundle

	next, prev   uint32 // collision chain at this slot's home bucket
	after, before uint32 // global age list, insertion order
}

func (n *node) occupied() bool { return n.bundle.SID != bundle.SIDVacant }

// Table is a fixed-capacity active-bundle table. The zero value is not
// usable; construct with New.
type Table struct {
	slots []node

	numEntries int
	oldest     uint32
	newest     uint32
}

// New allocates a table with room for size active bundles. Capacity never
// changes after construction.
func New(size int) (*Table, error) {
	if size <= 0 || size > maxSize {
		return nil, ErrParam
	}

	slots := make([]node, size)
	if slots == nil {
		return nil, ErrOOM
	}
	for i := range slots {
		slots[i] = node{
			bundle: bundle.Bundle{SID: bundle.SIDVacant},
			next:   nilIndex,
			prev:   nilIndex,
			after:  nilIndex,
			before: nilIndex,
		}
	}

	return &Table{
		slots:      slots,
		numEntries: 0,
		oldest:     nilIndex,
		newest:     nilIndex,
	}, nil
}

// Close releases the table's backing storage. After Close the table must
// not be used again. Matches rh_hash_destroy's role in the source, though
// in Go the array is simply left for the collector.
func (t *Table) Close() {
	t.slots = nil
	t.numEntries = 0
	t.oldest = nilIndex
	t.newest = nilIndex
}

// home returns the chain-head index a CID hashes to. HASH_CID in the
// source is the identity function; CIDs are custodian-assigned sequence
// numbers already assumed well distributed.
func (t *Table) home(cid uint64) uint32 {
	return uint32(cid % uint64(len(t.slots)))
}

// Count returns the number of occupied slots.
func (t *Table) Count() int { return t.numEntries }

// Available reports whether the table has room for one more entry. cid is
// accepted but ignored — reserved for future per-bucket admission policy,
// per spec §4.5 / §9.
func (t *Table) Available(cid uint64) error {
	_ = cid
	if t.numEntries < len(t.slots) {
		return nil
	}
	return ErrTableFull
}

// Next returns the oldest active bundle without mutating the table, or
// ErrCIDNotFound if the table is empty. Used by the retransmission
// scanner to find the next candidate.
func (t *Table) Next() (bundle.Bundle, error) {
	if t.oldest == nilIndex {
		return bundle.Bundle{}, ErrCIDNotFound
	}
	return t.slots[t.oldest].bundle, nil
}

// ─────────────────────────────────────────────────────────────────────────
// age-list helpers
// ─────────────────────────────────────────────────────────────────────────

// unlinkAge removes slot idx from the age list wherever it currently sits,
// repairing the oldest/newest anchors as needed. It does not touch the
// slot's own after/before fields — callers overwrite those next.
func (t *Table) unlinkAge(idx uint32) {
	n := &t.slots[idx]
	if n.before != nilIndex {
		t.slots[n.before].after = n.after
	} else if t.oldest == idx {
		t.oldest = n.after
	}
	if n.after != nilIndex {
		t.slots[n.after].before = n.before
	} else if t.newest == idx {
		t.newest = n.before
	}
}

// appendAge appends slot idx to the tail of the age list as the newest
// entry. Caller is responsible for having unlinked idx first if it was
// already present.
func (t *Table) appendAge(idx uint32) {
	n := &t.slots[idx]
	n.after = nilIndex
	n.before = t.newest
	if t.oldest == nilIndex {
		t.oldest = idx
		t.newest = idx
		return
	}
	t.slots[t.newest].after = idx
	t.newest = idx
}

// writeNode installs bnd into slot idx as a fresh single-element chain
// (next = prev = nilIndex) and appends it to the tail of the age list.
// Mirrors write_node in the source.
func (t *Table) writeNode(idx uint32, bnd bundle.Bundle) {
	n := &t.slots[idx]
	n.bundle = bnd
	n.next = nilIndex
	n.prev = nilIndex
	t.appendAge(idx)
}

// ─────────────────────────────────────────────────────────────────────────
// Add
// ─────────────────────────────────────────────────────────────────────────

// Add inserts bnd into the table, or — if a slot with the same CID already
// exists — either overwrites it (overwrite == true) or reports
// ErrDuplicateCID (overwrite == false). Returns ErrTableFull if no vacant
// slot can be found. bnd.SID must not be bundle.SIDVacant.
func (t *Table) Add(bnd bundle.Bundle, overwrite bool) error {
	home := t.home(bnd.CID)

	if !t.slots[home].occupied() {
		t.writeNode(home, bnd)
		t.numEntries++
		return nil
	}

	// Current occupant of home: either this CID (duplicate/overwrite) or
	// the head of some chain that home belongs to.
	if t.slots[home].bundle.CID == bnd.CID {
		return t.overwrite(home, bnd, overwrite)
	}

	end := home
	scan := t.slots[home].next
	for scan != nilIndex {
		if t.slots[scan].bundle.CID == bnd.CID {
			return t.overwrite(scan, bnd, overwrite)
		}
		end = scan
		scan = t.slots[scan].next
	}

	// No match in the chain: find a vacant slot by linear probing.
	open := (home + 1) % uint32(len(t.slots))
	for t.slots[open].occupied() && open != home {
		open = (open + 1) % uint32(len(t.slots))
	}
	if open == home {
		return ErrTableFull
	}

	if t.slots[home].prev == nilIndex {
		// Chain-head case (also covers the single-element chain): home
		// already owns its rightful CID, the new entry simply extends the
		// chain at its tail.
		t.writeNode(open, bnd)
		t.slots[end].next = open
		t.slots[open].prev = end
	} else {
		// Robin Hood displacement: home is occupied by an interloper — a
		// tail/interior node of some other chain. Relocate it to open,
		// then install the new entry fresh at home.
		next := t.slots[home].next
		prev := t.slots[home].prev

		if next != nilIndex {
			t.slots[next].prev = prev
		}
		if prev != nilIndex {
			t.slots[prev].next = next
		}

		// end was found by walking home's own chain looking for a
		// duplicate of bnd.CID; when home was already the tail of its
		// foreign chain, that walk never advanced past home, so the
		// slot to re-append the relocated occupant after is prev, not
		// the stale end.
		if end == home {
			end = prev
		}

		t.slots[end].next = open
		moved := t.slots[home].bundle
		movedAfter := t.slots[home].after
		movedBefore := t.slots[home].before

		t.slots[open].bundle = moved
		t.slots[open].next = nilIndex
		t.slots[open].prev = end
		t.slots[open].after = movedAfter
		t.slots[open].before = movedBefore

		if movedAfter != nilIndex {
			t.slots[movedAfter].before = open
		} else if t.newest == home {
			t.newest = open
		}
		if movedBefore != nilIndex {
			t.slots[movedBefore].after = open
		} else if t.oldest == home {
			t.oldest = open
		}

		t.writeNode(home, bnd)
	}

	t.numEntries++
	return nil
}

// overwrite implements the sub-procedure Add delegates to when a slot
// carrying the incoming CID is already occupied. Chain linkage never
// changes here — only the payload and the slot's position in the age
// list. Unlink-then-append-to-tail from first principles, rather than the
// source's unconditional oldest-anchor write (see spec §9 open question).
func (t *Table) overwrite(idx uint32, bnd bundle.Bundle, overwrite bool) error {
	if !overwrite {
		return ErrDuplicateCID
	}
	t.slots[idx].bundle = bnd
	t.unlinkAge(idx)
	t.appendAge(idx)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────
// Remove
// ─────────────────────────────────────────────────────────────────────────

// Remove deletes the occupied slot carrying cid and returns the bundle it
// held, or ErrCIDNotFound if no such slot exists.
func (t *Table) Remove(cid uint64) (bundle.Bundle, error) {
	home := t.home(cid)
	if !t.slots[home].occupied() {
		return bundle.Bundle{}, ErrCIDNotFound
	}

	victim := home
	for victim != nilIndex && t.slots[victim].bundle.CID != cid {
		victim = t.slots[victim].next
	}
	if victim == nilIndex {
		return bundle.Bundle{}, ErrCIDNotFound
	}

	removed := t.slots[victim].bundle
	t.unlinkAge(victim)

	// Tail-compact the chain: walk from victim to its current tail. If the
	// tail isn't the victim itself, move the tail's payload into victim's
	// slot (its chain position is untouched) and vacate the tail slot
	// instead. This preserves invariant (3): the CID now sitting at home
	// still belongs to this same chain, hence still shares this home.
	end := victim
	for t.slots[end].next != nilIndex {
		end = t.slots[end].next
	}

	if end != victim {
		t.slots[victim].bundle = t.slots[end].bundle
		t.slots[victim].after = t.slots[end].after
		t.slots[victim].before = t.slots[end].before

		if t.slots[end].after != nilIndex {
			t.slots[t.slots[end].after].before = victim
		} else if t.newest == end {
			t.newest = victim
		}
		if t.slots[end].before != nilIndex {
			t.slots[t.slots[end].before].after = victim
		} else if t.oldest == end {
			t.oldest = victim
		}
	}

	t.slots[end].bundle.SID = bundle.SIDVacant
	if t.slots[end].prev != nilIndex {
		t.slots[t.slots[end].prev].next = nilIndex
	}
	t.slots[end].next = nilIndex
	t.slots[end].prev = nilIndex

	t.numEntries--
	return removed, nil
}
