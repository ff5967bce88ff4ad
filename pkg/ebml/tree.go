package ebml

import "math"

// Element is anything that can report its own ID, compute its fully
// encoded size (ID + size field + payload), and write itself to a
// Writer. Master, Leaf and LeafRef all implement it.
type Element interface {
	ID() uint32
	OuterSize() uint64
	WriteTo(w *Writer) error
}

// Value is a typed leaf payload: something that knows its own data size
// and how to write its raw bytes (no ID, no size field). Uint, Int,
// Float, Str, Bytes and Bool implement it.
type Value interface {
	dataSize() int
	writeData(w *Writer) error
}

// Uint is an unsigned-integer Value.
type Uint uint64

func (v Uint) dataSize() int                { return DataSizeUint(uint64(v)) }
func (v Uint) writeData(w *Writer) error    { return w.writeRawUint(v.dataSize(), uint64(v)) }

// Int is a signed-integer Value.
type Int int64

func (v Int) dataSize() int             { return DataSizeInt(int64(v)) }
func (v Int) writeData(w *Writer) error { return w.writeRawUint(v.dataSize(), uint64(v)) }

// Float is a float Value, encoded single-precision.
type Float float32

func (v Float) dataSize() int { return DataSizeFloat32(float32(v)) }
func (v Float) writeData(w *Writer) error {
	if v.dataSize() == 0 {
		return nil
	}
	var buf [4]byte
	bePutUint32(buf[:], math.Float32bits(float32(v)))
	return w.writeAll(buf[:])
}

// Str is a string Value.
type Str string

func (v Str) dataSize() int { return DataSizeString(string(v)) }
func (v Str) writeData(w *Writer) error {
	if len(v) == 0 {
		return nil
	}
	return w.writeAll([]byte(v))
}

// Bytes is a raw-bytes Value.
type Bytes []byte

func (v Bytes) dataSize() int { return DataSizeBytes([]byte(v)) }
func (v Bytes) writeData(w *Writer) error {
	if len(v) == 0 {
		return nil
	}
	return w.writeAll([]byte(v))
}

// Bool is a boolean Value.
type Bool bool

func (v Bool) dataSize() int { return DataSizeBool(bool(v)) }
func (v Bool) writeData(w *Writer) error {
	if !v {
		return nil
	}
	return w.writeAll([]byte{1})
}

// Leaf is an element that owns its typed value.
type Leaf struct {
	id    uint32
	value Value
}

// NewLeaf builds a Leaf owning v.
func NewLeaf(id uint32, v Value) *Leaf {
	return &Leaf{id: id, value: v}
}

func (l *Leaf) ID() uint32 { return l.id }

// Value returns the leaf's current owned value.
func (l *Leaf) Value() Value { return l.value }

// SetValue replaces the leaf's owned value.
func (l *Leaf) SetValue(v Value) { l.value = v }

func (l *Leaf) OuterSize() uint64 {
	return elementOuterSize(l.id, l.value.dataSize())
}

func (l *Leaf) WriteTo(w *Writer) error {
	return writeLeaf(w, l.id, l.value)
}

// LeafRef is an element that holds a mutable reference to a Value living
// elsewhere (e.g. a field the caller continues to update between writes),
// rather than owning a private copy.
type LeafRef struct {
	id  uint32
	ref *Value
}

// NewLeafRef builds a LeafRef borrowing the Value pointed to by ref. Every
// OuterSize/WriteTo call dereferences ref afresh.
func NewLeafRef(id uint32, ref *Value) *LeafRef {
	return &LeafRef{id: id, ref: ref}
}

func (l *LeafRef) ID() uint32 { return l.id }

func (l *LeafRef) OuterSize() uint64 {
	return elementOuterSize(l.id, (*l.ref).dataSize())
}

func (l *LeafRef) WriteTo(w *Writer) error {
	return writeLeaf(w, l.id, *l.ref)
}

func writeLeaf(w *Writer, id uint32, v Value) error {
	if err := w.WriteID(id); err != nil {
		return err
	}
	if err := w.WriteSize(uint64(v.dataSize())); err != nil {
		return err
	}
	return v.writeData(w)
}

func elementOuterSize(id uint32, dataSize int) uint64 {
	idN, err := IDSize(id)
	if err != nil {
		return 0
	}
	szN, err := SizeFieldSize(uint64(dataSize))
	if err != nil {
		return 0
	}
	return uint64(idN) + uint64(szN) + uint64(dataSize)
}

// Master is a container element whose data is the concatenation of its
// children's encodings. Its own size field is computed lazily from the
// children present at WriteTo/OuterSize time.
type Master struct {
	id       uint32
	children []Element
}

// NewMaster builds a Master with the given initial children.
func NewMaster(id uint32, children ...Element) *Master {
	return &Master{id: id, children: children}
}

func (m *Master) ID() uint32 { return m.id }

// Children returns m's current children slice.
func (m *Master) Children() []Element { return m.children }

// Append adds e as m's last child.
func (m *Master) Append(e Element) { m.children = append(m.children, e) }

func (m *Master) dataSize() uint64 {
	var sum uint64
	for _, c := range m.children {
		sum += c.OuterSize()
	}
	return sum
}

func (m *Master) OuterSize() uint64 {
	ds := m.dataSize()
	idN, err := IDSize(m.id)
	if err != nil {
		return 0
	}
	szN, err := SizeFieldSize(ds)
	if err != nil {
		return 0
	}
	return uint64(idN) + uint64(szN) + ds
}

func (m *Master) WriteTo(w *Writer) error {
	if err := w.WriteMasterHeader(m.id, m.dataSize()); err != nil {
		return err
	}
	for _, c := range m.children {
		if err := c.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}
