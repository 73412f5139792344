// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: dedupe.go — custody-signal deduplication ring
//
// Purpose:
//   - Recognizes redundant custody acceptance/refusal signals arriving over
//     a flaky convergence layer, so a repeated ACK does not trigger a
//     second (and confusing) activetable.Remove for the same CID.
//   - Keyed by (source-EID fingerprint, CID, signal kind) plus a
//     caller-supplied authentication tag (tagHi/tagLo).
//
// Notes:
//   - Same fixed ring-of-slots, avalanche-mix indexing, branchless exact
//     match shape as the teacher's Ethereum log deduper. "age" here counts
//     custody signals processed rather than block height, and staleness is
//     a signal-count window rather than a reorg depth, since convergence
//     layer clocks are not assumed synchronized across peers.
//
// ⚠️ Not safe for concurrent use — callers must serialize calls to Check;
//    bpagent.AcceptSignal takes no lock of its own.
// ─────────────────────────────────────────────────────────────────────────────

// Package dedupe recognizes repeated custody signals so a flaky
// convergence layer's retries don't cause redundant table mutations.
package dedupe

import "github.com/glan6388/bplib/internal/config"

// Signal identifies one custody acknowledgement/refusal delivery.
type Signal struct {
	SourceHash uint64 // fingerprint of the sending peer's node EID
	CID        uint64
	Kind       uint8 // e.g. accepted, refused, deleted
}

type slot struct {
	sourceHash   uint64
	cid          uint64
	kind         uint8
	age          uint32
	tagHi, tagLo uint64
}

// Dedupe is a fixed-size ring of recently seen custody signals.
type Dedupe struct {
	buf    []slot
	mask   uint64
	window uint32
	seq    uint32
}

// New builds a dedupe ring sized 2^cfg.DedupeRingBits, with a staleness
// window of cfg.MaxReorderWindow signals.
func New(cfg config.Config) *Dedupe {
	size := uint64(1) << cfg.DedupeRingBits
	return &Dedupe{
		buf:    make([]slot, size),
		mask:   size - 1,
		window: cfg.MaxReorderWindow,
	}
}

// Check reports whether sig (with authentication fingerprint tagHi/tagLo)
// is new and should be acted on. Duplicate deliveries of the same signal
// return false; the ring is otherwise updated so a legitimately reused
// slot (recycled after window signals) is treated as new again.
func (d *Dedupe) Check(sig Signal, tagHi, tagLo uint64) bool {
	d.seq++

	key := sig.SourceHash ^ (sig.CID * 0x9E3779B185EBCA87) ^ uint64(sig.Kind)
	slot := &d.buf[mix64(key)&d.mask]

	stale := slot.age > 0 && d.seq > slot.age && (d.seq-slot.age) > d.window

	sourceMatch := slot.sourceHash ^ sig.SourceHash
	cidMatch := slot.cid ^ sig.CID
	kindMatch := uint64(slot.kind ^ sig.Kind)
	tagHiMatch := slot.tagHi ^ tagHi
	tagLoMatch := slot.tagLo ^ tagLo

	exactMatch := (sourceMatch | cidMatch | kindMatch | tagHiMatch | tagLoMatch) == 0
	isDuplicate := exactMatch && !stale

	if !isDuplicate {
		*slot = slot2(sig, d.seq, tagHi, tagLo)
	}

	return !isDuplicate
}

func slot2(sig Signal, age uint32, tagHi, tagLo uint64) slot {
	return slot{
		sourceHash: sig.SourceHash,
		cid:        sig.CID,
		kind:       sig.Kind,
		age:        age,
		tagHi:      tagHi,
		tagLo:      tagLo,
	}
}

// mix64 applies a Murmur3-style avalanche to spread ring indices.
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
