package hdlc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/calvinalkan/lpcnor/pkg/crc32c"
)

// Sentinel bytes.
const (
	flagByte byte = 0x41 // 'A'
	escByte  byte = 0x7D
	xorByte  byte = 0x20
)

type readerState int

const (
	stateSync readerState = iota // not yet aligned to a frame boundary
	stateStart                   // just saw a FLAG, frame not yet begun
	stateData                    // accumulating an in-progress frame
	stateEscape                  // previous byte was ESC
)

// FrameReader decodes a stream of HDLC-framed records from an
// io.Reader, one frame at a time.
type FrameReader struct {
	r     io.ByteReader
	state readerState
	buf   []byte
}

// NewFrameReader wraps r. r is buffered internally if it does not already
// implement io.ByteReader.
func NewFrameReader(r io.Reader) *FrameReader {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &FrameReader{r: br, state: stateSync}
}

// NextFrame reads and unstuffs the next complete frame, verifies its
// trailing CRC-32, and returns the payload with the trailer stripped. It
// returns io.EOF once the underlying reader is exhausted between frames.
func (f *FrameReader) NextFrame() ([]byte, error) {
	f.buf = f.buf[:0]
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch f.state {
		case stateSync:
			if b == flagByte {
				f.state = stateStart
			}

		case stateStart:
			switch {
			case b == flagByte:
				// a second FLAG is an inter-frame fill byte, not data
			case b == escByte:
				f.state = stateEscape
			default:
				f.buf = append(f.buf, b)
				f.state = stateData
			}

		case stateData:
			switch {
			case b == flagByte:
				f.state = stateStart
				return f.finishFrame()
			case b == escByte:
				f.state = stateEscape
			default:
				f.buf = append(f.buf, b)
			}

		case stateEscape:
			if b == flagByte {
				// A FLAG immediately after ESC cannot be a stuffed byte;
				// the frame is torn. Resync on the next FLAG.
				f.state = stateSync
				return nil, fmt.Errorf("hdlc: flag inside escape sequence: %w", ErrFraming)
			}
			f.buf = append(f.buf, b^xorByte)
			f.state = stateData
		}
	}
}

func (f *FrameReader) finishFrame() ([]byte, error) {
	if len(f.buf) < 4 {
		return nil, fmt.Errorf("hdlc: frame of %d bytes too short for crc trailer: %w", len(f.buf), ErrFraming)
	}
	data := f.buf[:len(f.buf)-4]
	want := binary.LittleEndian.Uint32(f.buf[len(f.buf)-4:])
	if got := crc32c.Of(data); got != want {
		return nil, fmt.Errorf("hdlc: crc mismatch (want %08x, got %08x): %w", want, got, ErrCRC)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
