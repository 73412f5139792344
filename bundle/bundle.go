// Package bundle defines the opaque payload activetable stores. It knows
// nothing about bundle serialization, custody-block formatting, or
// convergence-layer framing — those live in parser, storage, and
// convergence respectively.
package bundle

// SIDVacant is the reserved storage-identifier value marking a slot
// empty. Callers must never construct a Bundle carrying this sentinel.
const SIDVacant uint64 = 0

// Bundle is the triple the active table tracks: a custody identifier
// assigned by the local custodian, a storage identifier pointing at the
// persisted bundle body, and the retransmission deadline the caller
// scheduled it under. activetable treats RetxTime as opaque.
type Bundle struct {
	CID      uint64
	SID      uint64
	RetxTime int64
}
