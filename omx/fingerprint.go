package omx

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/blake3"
)

type fingerprint [32]byte

// digest hashes every element of rows in order. The kind and each row's
// length are mixed in, so reshaping or retyping changes the digest.
func digest[T Element](rows ...[]T) fingerprint {
	h := blake3.New()
	buf := make([]byte, 0, 4096)
	flush := func() {
		h.Write(buf)
		buf = buf[:0]
	}

	buf = append(buf, byte(KindOf[T]()))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(rows)))
	for _, row := range rows {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(row)))
		for _, v := range row {
			buf = appendElement(buf, v)
			if len(buf) >= 4000 {
				flush()
			}
		}
	}
	flush()

	var out fingerprint
	copy(out[:], h.Sum(nil))
	return out
}

func appendElement[T Element](buf []byte, v T) []byte {
	switch x := any(v).(type) {
	case int8:
		return append(buf, byte(x))
	case int16:
		return binary.LittleEndian.AppendUint16(buf, uint16(x))
	case int32:
		return binary.LittleEndian.AppendUint32(buf, uint32(x))
	case int64:
		return binary.LittleEndian.AppendUint64(buf, uint64(x))
	case float32:
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
	case float64:
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
	case string:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(x)))
		return append(buf, x...)
	}
	return buf
}
