package lpcnor

import (
	"encoding/binary"

	"github.com/calvinalkan/lpcnor/pkg/crc32c"
)

// SlotSize is the fixed byte size of a slot; it occupies exactly one
// write line.
const SlotSize = 16

// blankPage is the sentinel slot.Page value for an inline record (data
// fits in the 8-byte payload area).
const blankPage uint16 = 0xFFFF

// Slot is the fixed 16-byte record header. Payload is a tagged union: for inline records (DataSize <= 8) it holds
// the record bytes, padded with 0xFF; for external records it holds
// {reserved uint32, data_crc32 uint32}.
type Slot struct {
	Page     uint16
	DataSize uint16
	Payload  [8]byte
}

type slotState int

const (
	slotBlank slotState = iota
	slotValid
	slotInvalid
)

// Encode serializes s to a 16-byte little-endian buffer, computing
// slot_crc32 over bytes 0..11.
func (s Slot) Encode() []byte {
	buf := make([]byte, SlotSize)
	binary.LittleEndian.PutUint16(buf[0:2], s.Page)
	binary.LittleEndian.PutUint16(buf[2:4], s.DataSize)
	copy(buf[4:12], s.Payload[:])
	binary.LittleEndian.PutUint32(buf[12:16], crc32c.Of(buf[0:12]))
	return buf
}

// decodeSlot classifies raw as blank (all 0xFF), valid
// (page != 0 and slot_crc32 verifies), or invalid/deleted (anything else,
// in particular the deleted sentinel page=0,size=0).
func decodeSlot(raw []byte) (Slot, slotState) {
	s := Slot{
		Page:     binary.LittleEndian.Uint16(raw[0:2]),
		DataSize: binary.LittleEndian.Uint16(raw[2:4]),
	}
	copy(s.Payload[:], raw[4:12])

	if allFF(raw) {
		return s, slotBlank
	}

	crc := binary.LittleEndian.Uint32(raw[12:16])
	if s.Page != 0 && crc32c.Of(raw[0:12]) == crc {
		return s, slotValid
	}
	return s, slotInvalid
}

// IsInline reports whether this slot's data lives in Payload rather than
// in an external page range.
func (s Slot) IsInline() bool {
	return s.Page == blankPage
}

// SetDataCRC stores crc in the external-record payload shape
// {reserved=0xFFFFFFFF, data_crc32}.
func (s *Slot) SetDataCRC(crc uint32) {
	for i := 0; i < 4; i++ {
		s.Payload[i] = 0xFF
	}
	binary.LittleEndian.PutUint32(s.Payload[4:8], crc)
}

// DataCRC returns the data_crc32 field of an external-record payload.
func (s Slot) DataCRC() uint32 {
	return binary.LittleEndian.Uint32(s.Payload[4:8])
}

func allFF(b []byte) bool {
	for _, c := range b {
		if c != 0xFF {
			return false
		}
	}
	return true
}
