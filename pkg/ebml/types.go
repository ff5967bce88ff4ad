package ebml

import (
	"fmt"
	"math/bits"
)

// IDSize returns the number of bytes a self-describing element ID encodes
// to. An ID's own highest set bit is its length marker: bit
// 7 of byte 0 for a 1-byte ID, bit 6 for 2 bytes, bit 5 for 3 bytes, bit 4
// for 4 bytes. IDSize rejects a zero ID and any value whose highest bit
// does not fall on one of those four marker positions.
func IDSize(id uint32) (int, error) {
	if id == 0 {
		return 0, fmt.Errorf("ebml: zero ID: %w", ErrFormat)
	}
	length := bits.Len32(id)
	if (length-1)%7 != 0 {
		return 0, fmt.Errorf("ebml: ID 0x%X has no valid length marker: %w", id, ErrFormat)
	}
	n := (length - 1) / 7
	if n < 1 || n > 4 {
		return 0, fmt.Errorf("ebml: ID 0x%X needs %d bytes, max is 4: %w", id, n, ErrFormat)
	}
	return n, nil
}

// SizeFieldSize returns the minimum number of bytes (1-8) a size field
// needs to hold size without colliding with the all-ones "unknown size"
// sentinel value reserved at that length.
func SizeFieldSize(size uint64) (int, error) {
	for n := 1; n <= 8; n++ {
		payloadBits := uint(8*n - n)
		max := uint64(1)<<payloadBits - 1
		if size < max {
			return n, nil
		}
	}
	return 0, fmt.Errorf("ebml: size %d exceeds the 8-byte size field: %w", size, ErrFormat)
}

// DataSizeBool returns the data size of a boolean value: 0 bytes for
// false, 1 byte for true.
func DataSizeBool(v bool) int {
	if v {
		return 1
	}
	return 0
}

// DataSizeFloat32 returns the data size of a float value: 0 bytes when
// exactly zero, else 4 bytes (single-precision IEEE-754, big-endian).
func DataSizeFloat32(v float32) int {
	if v == 0 {
		return 0
	}
	return 4
}

// DataSizeUint returns the minimum whole number of bytes needed to hold v,
// 0 bytes when v is 0.
func DataSizeUint(v uint64) int {
	n := 0
	for v > 0 {
		n++
		v >>= 8
	}
	return n
}

// DataSizeInt returns the minimum whole number of bytes needed to hold the
// two's-complement encoding of v, 0 bytes when v is 0.
func DataSizeInt(v int64) int {
	if v == 0 {
		return 0
	}
	for n := 1; n <= 8; n++ {
		bitWidth := uint(8 * n)
		min := -(int64(1) << (bitWidth - 1))
		max := int64(1)<<(bitWidth-1) - 1
		if v >= min && v <= max {
			return n
		}
	}
	return 8
}

// DataSizeString returns len(v); strings carry no terminator.
func DataSizeString(v string) int { return len(v) }

// DataSizeBytes returns len(v).
func DataSizeBytes(v []byte) int { return len(v) }

// classifyIDLen inspects an ID's leading byte and returns its total
// encoded length (1-4), per the same marker-bit rule as IDSize.
func classifyIDLen(b0 byte) (int, error) {
	switch {
	case b0&0x80 != 0:
		return 1, nil
	case b0&0x40 != 0:
		return 2, nil
	case b0&0x20 != 0:
		return 3, nil
	case b0&0x10 != 0:
		return 4, nil
	default:
		return 0, fmt.Errorf("ebml: invalid ID leading byte 0x%02X: %w", b0, ErrFormat)
	}
}

// classifySizeLen inspects a size field's leading byte and returns its
// total encoded length (1-8), by locating the marker bit counting down
// from bit 7.
func classifySizeLen(b0 byte) (int, error) {
	for n := 1; n <= 8; n++ {
		mask := byte(0x80) >> uint(n-1)
		if b0&mask != 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("ebml: invalid size leading byte 0x%02X: %w", b0, ErrFormat)
}
