package hdlc

import (
	"encoding/binary"
	"io"

	"github.com/calvinalkan/lpcnor/pkg/crc32c"
)

type writerState int

const (
	stateIdle      writerState = iota // no frame open; next byte opens one
	stateTransmit                     // frame open, accumulating the CRC
)

// FrameWriter encodes records as HDLC frames onto an io.Writer. A frame
// is opened lazily by the first Put/Write call and closed explicitly by
// WriteEnd, which appends the CRC-32 trailer and the closing FLAG.
type FrameWriter struct {
	w     io.Writer
	state writerState
	crc   *crc32c.CRC
}

// NewFrameWriter wraps w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w, state: stateIdle}
}

func (f *FrameWriter) ensureOpen() error {
	if f.state == stateTransmit {
		return nil
	}
	if _, err := f.w.Write([]byte{flagByte}); err != nil {
		return err
	}
	f.crc = crc32c.New()
	f.state = stateTransmit
	return nil
}

func (f *FrameWriter) putStuffed(b byte) error {
	if b == flagByte || b == escByte {
		_, err := f.w.Write([]byte{escByte, b ^ xorByte})
		return err
	}
	_, err := f.w.Write([]byte{b})
	return err
}

// Put writes a single payload byte, opening the frame first if needed.
func (f *FrameWriter) Put(b byte) error {
	if err := f.ensureOpen(); err != nil {
		return err
	}
	f.crc.Process([]byte{b})
	return f.putStuffed(b)
}

// Write writes p one byte at a time via Put, satisfying io.Writer.
func (f *FrameWriter) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := f.Put(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// WriteEnd appends the CRC-32 trailer and the closing FLAG, completing
// the frame. An empty frame (no prior Put/Write) still opens and closes
// with a valid zero-length-payload CRC.
func (f *FrameWriter) WriteEnd() error {
	if err := f.ensureOpen(); err != nil {
		return err
	}
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], f.crc.Result())
	for _, b := range trailer {
		if err := f.putStuffed(b); err != nil {
			return err
		}
	}
	if _, err := f.w.Write([]byte{flagByte}); err != nil {
		return err
	}
	f.state = stateIdle
	f.crc = nil
	return nil
}

// Cancel abandons the in-progress frame without writing a trailer or
// closing FLAG, leaving whatever bytes were already flushed to w on the
// wire as a malformed frame for the receiver to discard.
func (f *FrameWriter) Cancel() {
	f.state = stateIdle
	f.crc = nil
}
