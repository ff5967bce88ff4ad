// Package hdlc implements a byte-stuffed framing protocol: frames
// delimited by a FLAG byte, an escape byte for any
// in-frame occurrence of FLAG or ESC itself, and a trailing CRC-32 over
// the unescaped payload. Frames carry arbitrary bytes, for example an
// encoded pkg/ebml stream; no other package in this module imports it.
package hdlc

import "errors"

var (
	// ErrFraming reports a malformed frame: an escape byte not followed
	// by a stuffed byte, or a frame shorter than the CRC-32 trailer.
	ErrFraming = errors.New("hdlc: framing error")

	// ErrCRC reports a frame whose trailing CRC-32 does not match its
	// payload.
	ErrCRC = errors.New("hdlc: crc mismatch")
)
