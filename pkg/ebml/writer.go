package ebml

import (
	"io"
	"math"
)

// Writer serialises EBML elements onto an underlying io.Writer. Each
// write to the underlying io.Writer must take all of its bytes, or the
// Write* method returns an error (io.ErrShortWrite for a short write).
// An element's ID, size field and data are separate writes, so an error
// partway through an element leaves the bytes already written on the
// underlying io.Writer. A Writer keeps no internal buffer.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) writeAll(buf []byte) error {
	n, err := w.w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

// WriteID writes id's self-describing byte form.
func (w *Writer) WriteID(id uint32) error {
	n, err := IDSize(id)
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[n-1-i] = byte(id >> uint(8*i))
	}
	return w.writeAll(buf)
}

// WriteSize writes size's variable-length size field.
func (w *Writer) WriteSize(size uint64) error {
	n, err := SizeFieldSize(size)
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[n-1-i] = byte(size >> uint(8*i))
	}
	buf[0] |= byte(0x80) >> uint(n-1)
	return w.writeAll(buf)
}

func (w *Writer) writeRawUint(n int, v uint64) error {
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[n-1-i] = byte(v >> uint(8*i))
	}
	return w.writeAll(buf)
}

// WriteBool writes a {id, bool} leaf element.
func (w *Writer) WriteBool(id uint32, v bool) error {
	if err := w.WriteID(id); err != nil {
		return err
	}
	n := DataSizeBool(v)
	if err := w.WriteSize(uint64(n)); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	b := byte(0)
	if v {
		b = 1
	}
	return w.writeAll([]byte{b})
}

// WriteFloat32 writes a {id, float} leaf element as a single-precision
// IEEE-754 value (0 bytes when v is exactly zero). The wire format is
// 4-byte single precision, so the API takes float32 rather than silently
// narrowing a wider value.
func (w *Writer) WriteFloat32(id uint32, v float32) error {
	if err := w.WriteID(id); err != nil {
		return err
	}
	n := DataSizeFloat32(v)
	if err := w.WriteSize(uint64(n)); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	var buf [4]byte
	bePutUint32(buf[:], math.Float32bits(v))
	return w.writeAll(buf[:])
}

// WriteUint writes a {id, uint} leaf element.
func (w *Writer) WriteUint(id uint32, v uint64) error {
	if err := w.WriteID(id); err != nil {
		return err
	}
	n := DataSizeUint(v)
	if err := w.WriteSize(uint64(n)); err != nil {
		return err
	}
	return w.writeRawUint(n, v)
}

// WriteInt writes a {id, int} leaf element, two's-complement encoded in
// the minimum number of whole bytes that preserve its value.
func (w *Writer) WriteInt(id uint32, v int64) error {
	if err := w.WriteID(id); err != nil {
		return err
	}
	n := DataSizeInt(v)
	if err := w.WriteSize(uint64(n)); err != nil {
		return err
	}
	return w.writeRawUint(n, uint64(v))
}

// WriteString writes a {id, string} leaf element verbatim, untagged.
func (w *Writer) WriteString(id uint32, v string) error {
	if err := w.WriteID(id); err != nil {
		return err
	}
	if err := w.WriteSize(uint64(len(v))); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	return w.writeAll([]byte(v))
}

// WriteBytes writes a {id, bytes} leaf element verbatim.
func (w *Writer) WriteBytes(id uint32, v []byte) error {
	if err := w.WriteID(id); err != nil {
		return err
	}
	if err := w.WriteSize(uint64(len(v))); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	return w.writeAll(v)
}

// WriteMasterHeader writes only a master element's ID and size field; the
// caller is responsible for then writing exactly dataSize bytes of
// children (Master.WriteTo does this for the tree in tree.go).
func (w *Writer) WriteMasterHeader(id uint32, dataSize uint64) error {
	if err := w.WriteID(id); err != nil {
		return err
	}
	return w.WriteSize(dataSize)
}

func bePutUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
