// Package crc32c provides the reflected CRC-32 used throughout the lpcnor
// media stack for PEB header, slot, record, and frame integrity.
//
// The polynomial, initial value, and final XOR match the classic "CRC-32"
// (also used by zip, ethernet, and PNG): polynomial 0xEDB88320, reflected,
// init 0xFFFFFFFF, final XOR 0xFFFFFFFF.
package crc32c

import "hash/crc32"

var table = crc32.MakeTable(crc32.IEEE)

// CRC accumulates a running CRC-32 over one or more Process calls.
//
// Result may be called repeatedly without finalizing the internal state,
// so a caller can peek at the running checksum and keep feeding it more
// bytes afterward.
type CRC struct {
	// crc32.Update applies the 0xFFFFFFFF pre/post conditioning itself,
	// so state holds the finished standard checksum at all times.
	state uint32
}

// New returns a CRC ready to accumulate bytes.
func New() *CRC {
	c := &CRC{}
	c.Reset()
	return c
}

// Reset returns the accumulator to its initial state.
func (c *CRC) Reset() {
	c.state = 0
}

// Process folds data into the running checksum.
func (c *CRC) Process(data []byte) {
	c.state = crc32.Update(c.state, table, data)
}

// Result returns the CRC-32 of all bytes processed so far.
//
// Calling Result does not finalize or reset the accumulator; more bytes
// may be processed afterward and Result called again.
func (c *CRC) Result() uint32 {
	return c.state
}

// Of is a convenience helper for one-shot checksums.
func Of(data []byte) uint32 {
	c := New()
	c.Process(data)
	return c.Result()
}
