package message

import (
	"bytes"
	"testing"
)

func reparse(t *testing.T, m interface {
	Message
	encoder
}) Message {
	t.Helper()
	got, err := Parse(m.Type(), m.encode(8, 8), 0, testReader())
	if err != nil {
		t.Fatalf("parse %T: %v", m, err)
	}
	return got
}

func TestDatatypeRoundTrip(t *testing.T) {
	for _, in := range []*Datatype{
		NewFixedPointDatatype(4, true, OrderLE),
		NewFixedPointDatatype(2, false, OrderBE),
		NewFloatDatatype(8, OrderLE),
		NewStringDatatype(12, PadSpacePad, CharsetUTF8),
		NewVarLenStringDatatype(CharsetUTF8),
	} {
		out := reparse(t, in).(*Datatype)
		if out.Class != in.Class || out.Size != in.Size || out.ByteOrder != in.ByteOrder || out.Signed != in.Signed {
			t.Errorf("class %d size %d: got %+v", in.Class, in.Size, out)
		}
		if out.CharSet != in.CharSet || out.IsVarLenString != in.IsVarLenString {
			t.Errorf("class %d: charset %d varlen %v, want %d %v", in.Class, out.CharSet, out.IsVarLenString, in.CharSet, in.IsVarLenString)
		}
	}
}

func TestParseDatatypeRejectsVAXFloat(t *testing.T) {
	b := NewFloatDatatype(4, OrderLE).encode(8, 8)
	b[1] |= 0x41
	if _, err := parseDatatype(b, testReader()); err == nil {
		t.Error("expected an error for VAX byte order")
	}
}

func TestDataspaceRoundTrip(t *testing.T) {
	out := reparse(t, NewDataspace([]uint64{3, 70000}, []uint64{3, 70000})).(*Dataspace)
	if out.Rank != 2 || out.Dimensions[1] != 70000 || len(out.MaxDims) != 2 {
		t.Errorf("got %+v", out)
	}
	if out.NumElements() != 210000 {
		t.Errorf("elements %d", out.NumElements())
	}

	scalar := reparse(t, NewScalarDataspace()).(*Dataspace)
	if !scalar.IsScalar() || scalar.NumElements() != 1 {
		t.Errorf("scalar got %+v", scalar)
	}
}

func TestParseDataspaceV1(t *testing.T) {
	b := []byte{1, 2, 0, 0, 0, 0, 0, 0}
	b = le(b, 4, 8)
	b = le(b, 6, 8)
	m, err := parseDataspace(b, testReader())
	if err != nil {
		t.Fatal(err)
	}
	if m.SpaceType != DataspaceSimple || m.NumElements() != 24 {
		t.Errorf("got %+v", m)
	}

	if _, err := parseDataspace(b[:12], testReader()); err == nil {
		t.Error("expected an error for a truncated dataspace")
	}
}

func TestAttributeRoundTrip(t *testing.T) {
	in := NewAttribute("NA", NewFloatDatatype(8, OrderLE), NewScalarDataspace(), le(nil, 0x3ff0000000000000, 8))
	out := reparse(t, in).(*Attribute)
	if out.Name != "NA" || out.Datatype.Class != ClassFloatPoint || !out.Dataspace.IsScalar() {
		t.Errorf("got %+v", out)
	}
	if !bytes.Equal(out.Data, in.Data) {
		t.Errorf("data %x, want %x", out.Data, in.Data)
	}
}

func TestParseAttributeV1(t *testing.T) {
	dt := NewFixedPointDatatype(4, true, OrderLE).encode(8, 8)
	ds := append([]byte{1, 1, 0, 0, 0, 0, 0, 0}, le(nil, 2, 8)...)

	b := []byte{1, 0}
	b = le(b, 5, 2)
	b = le(b, uint64(len(dt)), 2)
	b = le(b, uint64(len(ds)), 2)
	b = append(b, "zone\x00\x00\x00\x00"...)
	b = append(b, dt...)
	b = append(b, make([]byte, 4)...)
	b = append(b, ds...)
	b = le(b, 7, 4)
	b = le(b, 9, 4)

	m, err := parseAttribute(b, testReader())
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "zone" || m.Datatype.Size != 4 || m.Dataspace.NumElements() != 2 {
		t.Errorf("got %+v", m)
	}
	if want := le(le(nil, 7, 4), 9, 4); !bytes.Equal(m.Data, want) {
		t.Errorf("data %x, want %x", m.Data, want)
	}
}

func TestLinkRoundTrip(t *testing.T) {
	hard := reparse(t, NewHardLink("data", 0x1234)).(*Link)
	if !hard.IsHard() || hard.Name != "data" || hard.ObjectAddress != 0x1234 {
		t.Errorf("hard link %+v", hard)
	}

	soft := reparse(t, NewSoftLink("alias", "/data/m1")).(*Link)
	if !soft.IsSoft() || soft.SoftLinkValue != "/data/m1" {
		t.Errorf("soft link %+v", soft)
	}

	ext := reparse(t, &Link{LinkType: LinkTypeExternal, Name: "x", ExternalFile: "other.omx", ExternalPath: "/data/a"}).(*Link)
	if !ext.IsExternal() || ext.ExternalFile != "other.omx" || ext.ExternalPath != "/data/a" {
		t.Errorf("external link %+v", ext)
	}

	long := string(bytes.Repeat([]byte("n"), 300))
	if got := reparse(t, NewHardLink(long, 8)).(*Link); got.Name != long {
		t.Errorf("long name came back with %d bytes", len(got.Name))
	}
}

func TestParseLinkSkipsOptionalFields(t *testing.T) {
	b := []byte{1, linkHasOrder | linkHasNameCharset}
	b = le(b, 42, 8)
	b = append(b, byte(CharsetUTF8), 3)
	b = append(b, "abc"...)
	b = le(b, 0x99, 8)
	m, err := parseLink(b, testReader())
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "abc" || m.ObjectAddress != 0x99 {
		t.Errorf("got %+v", m)
	}
}

func TestFilterPipelineRoundTrip(t *testing.T) {
	in := NewFilterPipeline(
		FilterInfo{ID: FilterShuffle, ClientData: []uint32{8}},
		FilterInfo{ID: FilterZstd, Name: "zstd", ClientData: []uint32{3}},
	)
	out := reparse(t, in).(*FilterPipeline)
	if len(out.Filters) != 2 {
		t.Fatalf("got %d filters", len(out.Filters))
	}
	if out.Filters[0].ID != FilterShuffle || out.Filters[0].ClientData[0] != 8 {
		t.Errorf("filter 0: %+v", out.Filters[0])
	}
	if out.Filters[1].ID != FilterZstd || out.Filters[1].Name != "zstd" || out.Filters[1].ClientData[0] != 3 {
		t.Errorf("filter 1: %+v", out.Filters[1])
	}
}

func TestParseFilterPipelineV1(t *testing.T) {
	b := []byte{1, 2, 0, 0, 0, 0, 0, 0}
	b = le(b, uint64(FilterDeflate), 2)
	b = le(b, 8, 2)
	b = le(b, 1, 2)
	b = le(b, 1, 2)
	b = append(b, "deflate\x00"...)
	b = le(b, 6, 4)
	b = le(b, 0, 4)
	b = le(b, uint64(FilterFletcher32), 2)
	b = le(b, 0, 2)
	b = le(b, 0, 2)
	b = le(b, 0, 2)

	m, err := parseFilterPipeline(b, testReader())
	if err != nil {
		t.Fatal(err)
	}
	if m.Filters[0].Name != "deflate" || !m.Filters[0].IsOptional() || m.Filters[0].ClientData[0] != 6 {
		t.Errorf("filter 0: %+v", m.Filters[0])
	}
	if m.Filters[1].ID != FilterFletcher32 || len(m.Filters[1].ClientData) != 0 {
		t.Errorf("filter 1: %+v", m.Filters[1])
	}

	if _, err := parseFilterPipeline(b[:20], testReader()); err == nil {
		t.Error("expected an error for a truncated pipeline")
	}
}

func TestParseContinuation(t *testing.T) {
	r := testReader().WithSizes(4, 2)
	c, err := ParseContinuation([]byte{0x00, 0x10, 0, 0, 0x80, 0}, r)
	if err != nil {
		t.Fatal(err)
	}
	if c.Offset != 0x1000 || c.Length != 0x80 {
		t.Errorf("got offset 0x%x length 0x%x", c.Offset, c.Length)
	}
}

func TestParseKeepsUnknownMessages(t *testing.T) {
	m, err := Parse(Type(0x15), []byte{1, 2, 3}, 0, testReader())
	if err != nil {
		t.Fatal(err)
	}
	u, ok := m.(*Unknown)
	if !ok || u.Type() != 0x15 || !bytes.Equal(u.Data(), []byte{1, 2, 3}) {
		t.Errorf("got %#v", m)
	}
}
