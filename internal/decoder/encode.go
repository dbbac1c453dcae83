package decoder

import (
	"encoding/binary"
	"fmt"
	"math"

	"solar-monitor/internal/model"
)

// Encode lays out an unscaled value in registers the way a device would.
// The result is size registers long (at least the type's natural width),
// with the value in the leading registers and zero padding after it.
// Integer types round raw to the nearest whole number first.
func Encode(dt model.DataType, raw float64, size int) ([]uint16, error) {
	w := dt.Registers()
	if w == 0 || dt == model.String {
		return nil, fmt.Errorf("encode: unsupported data type %s", dt)
	}
	if dt != model.Float32 && dt != model.Float64 {
		raw = math.Round(raw)
	}
	if size < w {
		size = w
	}
	b := make([]byte, size*2)
	switch dt {
	case model.Uint8:
		b[0] = uint8(raw)
	case model.Int8:
		b[0] = byte(int8(raw))
	case model.Uint16:
		binary.BigEndian.PutUint16(b, uint16(raw))
	case model.Int16:
		binary.BigEndian.PutUint16(b, uint16(int16(raw)))
	case model.Uint32:
		binary.BigEndian.PutUint32(b, uint32(raw))
	case model.Int32:
		binary.BigEndian.PutUint32(b, uint32(int32(raw)))
	case model.Uint64:
		binary.BigEndian.PutUint64(b, uint64(raw))
	case model.Int64:
		binary.BigEndian.PutUint64(b, uint64(int64(raw)))
	case model.Float32:
		binary.BigEndian.PutUint32(b, math.Float32bits(float32(raw)))
	case model.Float64:
		binary.BigEndian.PutUint64(b, math.Float64bits(raw))
	}
	return bytesToWords(b), nil
}

// EncodeString packs s into size registers, NUL padded. Text longer than
// size*2 bytes is truncated.
func EncodeString(s string, size int) []uint16 {
	b := make([]byte, size*2)
	copy(b, s)
	return bytesToWords(b)
}

func bytesToWords(b []byte) []uint16 {
	words := make([]uint16, len(b)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(b[i*2:])
	}
	return words
}
