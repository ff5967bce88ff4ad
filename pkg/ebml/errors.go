// Package ebml implements a variable-length binary element format:
// self-describing element IDs (1-4 bytes), variable-
// length size fields (1-8 bytes), big-endian typed data, and a lazy
// Master/Leaf element tree that writes itself over a Writer and reads
// itself back, element by element, over a Parser.
//
// The media engine (pkg/lpcnor) and this package share no code, but both
// lean on the same correctness core: deterministic binary layout, length
// self-description, and integrity via CRC where applicable.
package ebml

import "errors"

// Error classification codes.
var (
	// ErrFormat reports a malformed ID or size field: a zero/oversized
	// ID, an unrecognised leading byte, a truncated read, or the
	// unknown-size sentinel (which this parser does not support).
	ErrFormat = errors.New("ebml: format error")

	// ErrOverrun reports that a parser consumed more bytes than its
	// enclosing element's declared size allows.
	ErrOverrun = errors.New("ebml: overrun")
)
