package object

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/message"
)

type file struct{ memWriter }

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(f.buf).ReadAt(p, off)
}

func (f *file) writer() *binpkg.Writer { return binpkg.NewWriter(f, binpkg.DefaultConfig()) }
func (f *file) reader() *binpkg.Reader { return binpkg.NewReader(f, binpkg.DefaultConfig()) }

func write(t *testing.T, f *file, at int64, msgs []message.Message, minChunk int) {
	t.Helper()
	n, err := Write(f.writer().At(at), msgs, minChunk)
	if err != nil {
		t.Fatal(err)
	}
	if want := Size(f.writer(), msgs, minChunk); int(n) != want {
		t.Errorf("Write wrote %d bytes, Size() = %d", n, want)
	}
}

func TestWriteThenReadDataset(t *testing.T) {
	f := &file{}
	msgs := DatasetMessages(
		message.NewDataspace([]uint64{3, 4}, nil),
		message.NewFloatDatatype(8, message.OrderLE),
		message.NewContiguousLayout(4096, 96),
	)
	write(t, f, 64, msgs, 0)

	h, err := Read(f.reader(), 64)
	if err != nil {
		t.Fatal(err)
	}
	if h.Version != 2 || h.Address != 64 || len(h.Messages) != 3 {
		t.Fatalf("got version %d address %d with %d messages", h.Version, h.Address, len(h.Messages))
	}
	if dims := h.Dataspace().Dimensions; len(dims) != 2 || dims[0] != 3 || dims[1] != 4 {
		t.Errorf("dims = %v", dims)
	}
	if h.Datatype().Size != 8 {
		t.Errorf("datatype size = %d", h.Datatype().Size)
	}
	if l := h.DataLayout(); l.Address != 4096 || l.Size != 96 {
		t.Errorf("layout = %+v", l)
	}
	if h.FilterPipeline() != nil {
		t.Error("unexpected filter pipeline")
	}
}

func TestGroupPadding(t *testing.T) {
	f := &file{}
	links := []*message.Link{message.NewHardLink("data", 800), message.NewSoftLink("alias", "/data")}
	write(t, f, 0, GroupMessages(links), MinGroupChunkSize)

	h, err := Read(f.reader(), 0)
	if err != nil {
		t.Fatal(err)
	}
	got := h.GetMessages(message.TypeLink)
	if len(got) != 2 || got[0].(*message.Link).Name != "data" || got[1].(*message.Link).SoftLinkValue != "/data" {
		t.Errorf("links = %v", got)
	}
	if h.GetMessage(message.TypeLinkInfo) == nil || h.GetMessage(message.TypeGroupInfo) == nil {
		t.Error("group info messages missing")
	}

	// A header one to three bytes short of the minimum grows to fit a NIL message.
	msgs := GroupMessages(nil)
	used, _ := chunkSize(f.writer(), msgs, 0)
	for short := 1; short < messageHeaderLen; short++ {
		if _, chunk := chunkSize(f.writer(), msgs, used+short); chunk != used+messageHeaderLen {
			t.Errorf("min %d: chunk %d, want %d", used+short, chunk, used+messageHeaderLen)
		}
	}
}

func TestReadRejectsCorruption(t *testing.T) {
	f := &file{}
	write(t, f, 0, GroupMessages(nil), MinGroupChunkSize)
	f.buf[10] ^= 0x40
	if _, err := Read(f.reader(), 0); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("flipped bit: %v", err)
	}

	f.buf[0] = 'X'
	if _, err := Read(f.reader(), 0); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("bad signature: %v", err)
	}
}

// v1Message lays out a version 1 header message padded to 8 bytes.
func v1Message(typ message.Type, data []byte) []byte {
	b := binary.LittleEndian.AppendUint16(nil, uint16(typ))
	b = binary.LittleEndian.AppendUint16(b, uint16(len(data)))
	b = append(b, 0, 0, 0, 0)
	b = append(b, data...)
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}

func addrs(v ...uint64) []byte {
	var b []byte
	for _, a := range v {
		b = binary.LittleEndian.AppendUint64(b, a)
	}
	return b
}

func TestReadV1FollowsContinuation(t *testing.T) {
	cont := v1Message(message.TypeSymbolTable, addrs(1000, 2000))
	body := v1Message(message.TypeNIL, make([]byte, 8))
	body = append(body, v1Message(message.TypeObjectHeaderContinuation, addrs(256, uint64(len(cont))))...)

	prefix := []byte{1, 0, 2, 0}
	prefix = binary.LittleEndian.AppendUint32(prefix, 1)
	prefix = binary.LittleEndian.AppendUint32(prefix, uint32(len(body)))
	prefix = append(prefix, 0, 0, 0, 0)

	f := &file{}
	f.WriteAt(append(prefix, body...), 0)
	f.WriteAt(cont, 256)

	h, err := Read(f.reader(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if h.Version != 1 || len(h.Messages) != 1 {
		t.Fatalf("version %d, %d messages", h.Version, len(h.Messages))
	}
	st, ok := h.Messages[0].(*message.SymbolTable)
	if !ok || st.BTreeAddress != 1000 || st.LocalHeapAddress != 2000 {
		t.Errorf("symbol table = %+v", h.Messages[0])
	}
}

func TestReadV1ContinuationLoop(t *testing.T) {
	body := v1Message(message.TypeObjectHeaderContinuation, addrs(16, 24))
	prefix := []byte{1, 0, 1, 0}
	prefix = binary.LittleEndian.AppendUint32(prefix, 1)
	prefix = binary.LittleEndian.AppendUint32(prefix, uint32(len(body)))
	prefix = append(prefix, 0, 0, 0, 0)

	f := &file{}
	f.WriteAt(append(prefix, body...), 0)
	if _, err := Read(f.reader(), 0); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("self-referencing continuation: %v", err)
	}
}
