package lpcnor

import (
	"fmt"

	"github.com/calvinalkan/lpcnor/pkg/crc32c"
)

// Ptr is the 3-byte opaque pointer handed back to callers:
// {leb_number, slot_index}. The zero value is not blank; use Ptr{LEB:
// 0xFF} or BlankPtr().
type Ptr struct {
	LEB  uint8
	Slot uint16
}

// BlankPtr returns the blank pointer value (leb == 0xFF).
func BlankPtr() Ptr { return Ptr{LEB: 0xFF} }

// IsBlank reports whether p names no record.
func (p Ptr) IsBlank() bool { return p.LEB == 0xFF }

func (p Ptr) String() string {
	if p.IsBlank() {
		return "lpcnor.Ptr(blank)"
	}
	return fmt.Sprintf("lpcnor.Ptr(leb=%d,slot=%d)", p.LEB, p.Slot)
}

// Encode serializes p to its 3-byte wire form: leb, slot_lo, slot_hi.
func (p Ptr) Encode() [3]byte {
	return [3]byte{p.LEB, byte(p.Slot), byte(p.Slot >> 8)}
}

// DecodePtr parses a 3-byte wire pointer.
func DecodePtr(raw [3]byte) Ptr {
	return Ptr{LEB: raw[0], Slot: uint16(raw[1]) | uint16(raw[2])<<8}
}

// TempPtr is the reservation handle returned by Engine.Create and
// consumed by Engine.Append/Engine.Commit. It is not itself persisted;
// the record becomes durable only at Commit, the single atomic commit
// point of a record's lifecycle.
type TempPtr struct {
	leb      int
	external bool
	page     int // first data page, only meaningful when external
	size     int
	pos      int

	lineBuf  [16]byte
	lineFill int

	inline []byte // buffered bytes for the size<=8 inline case

	crc *crc32c.CRC
}
