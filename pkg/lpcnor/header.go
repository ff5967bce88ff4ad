package lpcnor

import (
	"encoding/binary"

	"github.com/calvinalkan/lpcnor/pkg/crc32c"
)

// HeaderSize is the fixed byte size of a PEB header; it occupies exactly
// one write line.
const HeaderSize = 16

// Magic identifies a valid PEB header.
const Magic uint16 = 0xACDC

// Header is the PEB header written exactly once per PEB lifecycle, at
// offset 0.
type Header struct {
	LEBNumber        uint8
	Generation       uint8 // 2-bit wraparound counter, 0-3
	EraseCount       uint32 // 24 bits meaningful
	TransferredSlots uint16
}

// Encode serializes h to a 16-byte little-endian buffer, computing
// header_crc32 over bytes 0..11.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], Magic)
	buf[2] = h.LEBNumber
	buf[3] = h.Generation & 0x3
	buf[4] = 0 // reserved

	ec := h.EraseCount & 0xFFFFFF
	buf[5] = byte(ec)
	buf[6] = byte(ec >> 8)
	buf[7] = byte(ec >> 16)

	binary.LittleEndian.PutUint16(buf[8:10], h.TransferredSlots)
	binary.LittleEndian.PutUint16(buf[10:12], 0) // reserved

	binary.LittleEndian.PutUint32(buf[12:16], crc32c.Of(buf[0:12]))
	return buf
}

// decodeHeader parses a 16-byte buffer. ok is false if the magic does not
// match or header_crc32 does not verify; such a PEB is not valid.
func decodeHeader(raw []byte) (h Header, ok bool) {
	if binary.LittleEndian.Uint16(raw[0:2]) != Magic {
		return Header{}, false
	}
	crc := binary.LittleEndian.Uint32(raw[12:16])
	if crc32c.Of(raw[0:12]) != crc {
		return Header{}, false
	}
	h = Header{
		LEBNumber:        raw[2],
		Generation:       raw[3] & 0x3,
		EraseCount:       uint32(raw[5]) | uint32(raw[6])<<8 | uint32(raw[7])<<16,
		TransferredSlots: binary.LittleEndian.Uint16(raw[8:10]),
	}
	return h, true
}

// NextGeneration returns the generation a switch of this LEB would write:
// (current+1) mod 4.
func (h Header) NextGeneration() uint8 {
	return (h.Generation + 1) & 0x3
}

// IsMoreRecentThan is the duplicate-LEB resolution rule: h is more recent
// than other iff h's generation is in the younger half of the modular
// ring starting at other's generation, i.e. (other+1)%4 or (other+2)%4.
//
// Note this relation is not a strict order: when the two generations
// differ by exactly 2 (mod 4), both headers satisfy IsMoreRecentThan
// against each other - that case is a genuine tie and must be broken by
// the caller.
func (h Header) IsMoreRecentThan(other Header) bool {
	next1 := (other.Generation + 1) & 0x3
	next2 := (other.Generation + 2) & 0x3
	return h.Generation == next1 || h.Generation == next2
}
