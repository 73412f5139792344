// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: parser.go — bundle primary-block field extraction
//
// Purpose:
//   - Pulls the fields activetable and the retransmission scheduler actually
//     need (creation timestamp id, destination EID, lifetime) out of a raw
//     received bundle without deserializing the whole primary block.
//
// Notes:
//   - Field layout is a fixed-offset encoding, not full RFC 9171 CBOR: this
//     agent is a bench for the active-bundle table, not a BPv7 codec.
//   - Scanning style (length check up front, early exit on malformed input,
//     sequential offset reads) is grounded on HandleFrame's field-detection
//     shape, without the unsafe pointer aliasing that made sense for a
//     single trusted upstream and not for bundles arriving over the wire
//     from arbitrary peers.
// ─────────────────────────────────────────────────────────────────────────────

// Package parser extracts the primary-block fields the bundle agent needs
// to route and deduplicate an incoming bundle.
package parser

import "errors"

// ErrShortFrame is returned when the frame is too short to contain a
// primary block header.
var ErrShortFrame = errors.New("parser: frame shorter than primary block header")

// ErrDestTruncated is returned when the declared destination EID length
// runs past the end of the frame.
var ErrDestTruncated = errors.New("parser: destination eid truncated")

// header layout, all fields little-endian:
//
//	offset 0  : uint64 creation timestamp (used as CID)
//	offset 8  : uint32 lifetime, in the scheduler's tick units
//	offset 12 : uint16 destination eid length
//	offset 14 : destination eid bytes
const headerLen = 14

// Primary holds the fields extracted from a bundle's primary block.
type Primary struct {
	CID      uint64
	Lifetime uint32
	DestEID  string
}

// ParsePrimary extracts the primary-block fields from a raw bundle frame.
// The returned Primary.DestEID does not alias frame.
func ParsePrimary(frame []byte) (Primary, error) {
	if len(frame) < headerLen {
		return Primary{}, ErrShortFrame
	}

	cid := leUint64(frame[0:8])
	lifetime := leUint32(frame[8:12])
	destLen := int(leUint16(frame[12:14]))

	if len(frame) < headerLen+destLen {
		return Primary{}, ErrDestTruncated
	}

	dest := make([]byte, destLen)
	copy(dest, frame[headerLen:headerLen+destLen])

	return Primary{
		CID:      cid,
		Lifetime: lifetime,
		DestEID:  string(dest),
	}, nil
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
