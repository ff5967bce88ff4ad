package ebml_test

import (
	"bytes"
	"testing"

	"github.com/calvinalkan/lpcnor/pkg/ebml"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func Test_IDSize_Classifies_By_Marker_Bit(t *testing.T) {
	cases := []struct {
		id   uint32
		want int
	}{
		{0x80, 1},
		{0xFE, 1},
		{0x4000, 2},
		{0x7FFF, 2},
		{0x200000, 3},
		{0x1A45DFA3, 4},
	}
	for _, c := range cases {
		n, err := ebml.IDSize(c.id)
		require.NoError(t, err)
		require.Equal(t, c.want, n, "id 0x%X", c.id)
	}
}

func Test_IDSize_Rejects_Zero_And_Oversized(t *testing.T) {
	_, err := ebml.IDSize(0)
	require.ErrorIs(t, err, ebml.ErrFormat)

	_, err = ebml.IDSize(0x08000000) // bit 27 set, not a valid 1-4 byte marker
	require.ErrorIs(t, err, ebml.ErrFormat)
}

func Test_SizeFieldSize_Picks_Minimum_Length_Avoiding_Sentinel(t *testing.T) {
	n, err := ebml.SizeFieldSize(0)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = ebml.SizeFieldSize(126) // max for n=1 is 127, sentinel is 127
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = ebml.SizeFieldSize(127) // would collide with n=1's sentinel
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = ebml.SizeFieldSize(16382)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = ebml.SizeFieldSize(16383) // n=2's sentinel
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func Test_DataSize_Uint_Int_Zero_Is_Zero_Bytes(t *testing.T) {
	require.Equal(t, 0, ebml.DataSizeUint(0))
	require.Equal(t, 0, ebml.DataSizeInt(0))
	require.Equal(t, 0, ebml.DataSizeFloat32(0))
	require.Equal(t, 0, ebml.DataSizeBool(false))
}

func Test_DataSize_Int_Covers_Negative_Two_Complement_Range(t *testing.T) {
	require.Equal(t, 1, ebml.DataSizeInt(-1))
	require.Equal(t, 1, ebml.DataSizeInt(-128))
	require.Equal(t, 2, ebml.DataSizeInt(-129))
	require.Equal(t, 2, ebml.DataSizeInt(127+1))
}

func Test_Writer_Leaf_Roundtrips_Through_Parser(t *testing.T) {
	const idUint, idInt, idStr, idBytes, idBool, idFloat = 0x81, 0x82, 0x83, 0x84, 0x85, 0x86

	var buf bytes.Buffer
	w := ebml.NewWriter(&buf)
	require.NoError(t, w.WriteUint(idUint, 4096))
	require.NoError(t, w.WriteInt(idInt, -12345))
	require.NoError(t, w.WriteString(idStr, "lpcnor"))
	require.NoError(t, w.WriteBytes(idBytes, []byte{0xDE, 0xAD, 0xBE, 0xEF}))
	require.NoError(t, w.WriteBool(idBool, true))
	require.NoError(t, w.WriteFloat32(idFloat, 0.1))

	p := ebml.New(&buf)

	ev, err := p.Parse()
	require.NoError(t, err)
	require.Equal(t, uint32(idUint), ev.ID)
	u, err := p.ReadUint()
	require.NoError(t, err)
	require.EqualValues(t, 4096, u)

	ev, err = p.Parse()
	require.NoError(t, err)
	require.Equal(t, uint32(idInt), ev.ID)
	i, err := p.ReadInt()
	require.NoError(t, err)
	require.EqualValues(t, -12345, i)

	ev, err = p.Parse()
	require.NoError(t, err)
	require.Equal(t, uint32(idStr), ev.ID)
	s, err := p.ReadString()
	require.NoError(t, err)
	require.Equal(t, "lpcnor", s)

	ev, err = p.Parse()
	require.NoError(t, err)
	require.Equal(t, uint32(idBytes), ev.ID)
	b, err := p.ReadBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, b)

	ev, err = p.Parse()
	require.NoError(t, err)
	require.Equal(t, uint32(idBool), ev.ID)
	bv, err := p.ReadBool()
	require.NoError(t, err)
	require.True(t, bv)

	ev, err = p.Parse()
	require.NoError(t, err)
	require.Equal(t, uint32(idFloat), ev.ID)
	f, err := p.ReadFloat32()
	require.NoError(t, err)
	require.Equal(t, float32(0.1), f, "float32 values round-trip exactly")

	ev, err = p.Parse()
	require.NoError(t, err)
	require.Equal(t, ebml.NoMoreEvent, ev.Type)
}

func Test_Master_Tree_Roundtrips_Via_Sub(t *testing.T) {
	const rootID, childID, leafID = 0x1A000001, 0x90, 0x91

	root := ebml.NewMaster(rootID,
		ebml.NewMaster(childID, ebml.NewLeaf(leafID, ebml.Uint(7))),
	)

	var buf bytes.Buffer
	require.NoError(t, root.WriteTo(ebml.NewWriter(&buf)))
	require.EqualValues(t, buf.Len(), root.OuterSize())

	p := ebml.New(&buf)
	ev, err := p.Parse()
	require.NoError(t, err)
	require.Equal(t, uint32(rootID), ev.ID)

	rootP := p.Sub()
	ev, err = rootP.Parse()
	require.NoError(t, err)
	require.Equal(t, uint32(childID), ev.ID)

	childP := rootP.Sub()
	ev, err = childP.Parse()
	require.NoError(t, err)
	require.Equal(t, uint32(leafID), ev.ID)
	v, err := childP.ReadUint()
	require.NoError(t, err)
	require.EqualValues(t, 7, v)

	ev, err = childP.Parse()
	require.NoError(t, err)
	require.Equal(t, ebml.NoMoreEvent, ev.Type)

	ev, err = rootP.Parse()
	require.NoError(t, err)
	require.Equal(t, ebml.NoMoreEvent, ev.Type)
}

// node is a parser-side mirror of the element tree: masters carry
// children, leaves carry their raw payload bytes.
type node struct {
	ID       uint32
	Payload  []byte
	Children []node
}

// readTree re-parses one scope into nodes, descending into any element
// whose ID has the 4-byte master prefix used by the fixtures below.
func readTree(t *testing.T, p *ebml.Parser) []node {
	t.Helper()
	var out []node
	for {
		ev, err := p.Parse()
		require.NoError(t, err)
		if ev.Type == ebml.NoMoreEvent {
			return out
		}
		if ev.ID >= 0x10000000 {
			sub := p.Sub()
			out = append(out, node{ID: ev.ID, Children: readTree(t, sub)})
			continue
		}
		payload, err := p.ReadBytes()
		require.NoError(t, err)
		out = append(out, node{ID: ev.ID, Payload: payload})
	}
}

func Test_Tree_Write_Then_Parse_Yields_Same_Structure(t *testing.T) {
	root := ebml.NewMaster(0x1A000001,
		ebml.NewLeaf(0x81, ebml.Uint(0x0102)),
		ebml.NewMaster(0x1B000001,
			ebml.NewLeaf(0x82, ebml.Str("nor")),
		),
		ebml.NewLeaf(0x83, ebml.Bytes{0xFF}),
	)

	var buf bytes.Buffer
	require.NoError(t, root.WriteTo(ebml.NewWriter(&buf)))

	want := []node{{
		ID: 0x1A000001,
		Children: []node{
			{ID: 0x81, Payload: []byte{0x01, 0x02}},
			{ID: 0x1B000001, Children: []node{
				{ID: 0x82, Payload: []byte("nor")},
			}},
			{ID: 0x83, Payload: []byte{0xFF}},
		},
	}}

	got := readTree(t, ebml.New(&buf))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
}

func Test_Skip_Advances_Past_An_Unwanted_Element(t *testing.T) {
	var buf bytes.Buffer
	w := ebml.NewWriter(&buf)
	require.NoError(t, w.WriteBytes(0x81, bytes.Repeat([]byte{0xAA}, 64)))
	require.NoError(t, w.WriteUint(0x82, 99))

	p := ebml.New(&buf)
	ev, err := p.Parse()
	require.NoError(t, err)
	require.Equal(t, uint32(0x81), ev.ID)
	require.NoError(t, p.Skip())

	ev, err = p.Parse()
	require.NoError(t, err)
	require.Equal(t, uint32(0x82), ev.ID)
	v, err := p.ReadUint()
	require.NoError(t, err)
	require.EqualValues(t, 99, v)
}

func Test_LeafRef_Reflects_Current_Value_At_Write_Time(t *testing.T) {
	var v ebml.Value = ebml.Uint(1)
	ref := ebml.NewLeafRef(0x81, &v)

	v = ebml.Uint(999)

	var buf bytes.Buffer
	require.NoError(t, ref.WriteTo(ebml.NewWriter(&buf)))

	p := ebml.New(&buf)
	_, err := p.Parse()
	require.NoError(t, err)
	got, err := p.ReadUint()
	require.NoError(t, err)
	require.EqualValues(t, 999, got)
}

func Test_Parse_Reports_Overrun_When_Sub_Scope_Exceeded(t *testing.T) {
	var buf bytes.Buffer
	w := ebml.NewWriter(&buf)
	// Hand-write a master header claiming a 1-byte body, followed by a
	// 2-byte child header: the child parser's second Parse call must see
	// bytes_read > outer_size before the child header is even read, since
	// the one declared body byte is consumed by the first header byte.
	require.NoError(t, w.WriteID(0x1A000001))
	require.NoError(t, w.WriteSize(1))
	require.NoError(t, w.WriteUint(0x81, 5))

	p := ebml.New(&buf)
	ev, err := p.Parse()
	require.NoError(t, err)
	require.EqualValues(t, 1, ev.Size)

	sub := p.Sub()
	_, err = sub.Parse() // consumes id+size (2 bytes), already past the 1-byte scope
	require.NoError(t, err)
	_, err = sub.Parse() // this call now observes bytes_read > outer_size
	require.ErrorIs(t, err, ebml.ErrOverrun)
}
