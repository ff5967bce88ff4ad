// Package lpcnor implements a wear-levelled, power-safe record store for
// NOR flash: a small set of fixed-size physical erase blocks (PEBs) is
// presented to callers as one fewer logical erase blocks (LEBs), with a
// spare PEB always held in reserve so a LEB can be switched to a fresh
// PEB atomically.
//
// Mount scans every PEB, resolves duplicate LEB claims by comparing
// generation counters, and rebuilds the in-RAM bookkeeping in lebInfo.
// Create/Append/Commit place a variable-length record either inline in a
// slot's 8-byte payload (size <= 8) or in data pages that grow down from
// the high end of the PEB while slots grow up from the low end.
package lpcnor

import "errors"

// Error classification. The engine wraps these with
// fmt.Errorf("...: %w", ...); callers classify with errors.Is.
var (
	// ErrFormat reports malformed binary: an invalid PEB header or slot
	// whose CRC does not verify, encountered where the engine cannot
	// self-repair (more than one spare candidate, or a LEB left without
	// any valid PEB). Engine.Read also returns it for a blank pointer or
	// a pointer naming a slot that is not valid.
	ErrFormat = errors.New("lpcnor: format error")

	// ErrIntegrity reports that a record's stored data_crc32 disagrees
	// with a freshly computed CRC over its data pages: the slot is
	// readable but its payload is unreliable.
	ErrIntegrity = errors.New("lpcnor: integrity error")

	// ErrCapacity reports that no LEB can host a requested allocation
	// even after performing one switch.
	ErrCapacity = errors.New("lpcnor: capacity error")

	// ErrTransport reports that the underlying flash.Device refused a
	// Program or Erase call.
	ErrTransport = errors.New("lpcnor: transport error")
)
