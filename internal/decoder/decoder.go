// Package decoder turns raw holding-register blocks into typed, scaled values.
//
// Registers are big-endian on both levels: the most significant byte of a
// word comes first and the most significant word of a multi-word value comes
// first.
package decoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"solar-monitor/internal/model"
)

// DecodeError reports a malformed descriptor or an undersized register block.
// It is a configuration problem and is never worth retrying.
type DecodeError struct {
	Metric   string
	DataType model.DataType
	Reason   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s (%s): %s", e.Metric, e.DataType, e.Reason)
}

// Value is a decoded metric reading: a scaled number or, for STRING
// metrics, text.
type Value struct {
	Number float64
	Text   string
	IsText bool
}

// String renders the canonical value string stored in the data table.
func (v Value) String() string {
	if v.IsText {
		return v.Text
	}
	return FormatNumber(v.Number)
}

// FormatNumber renders f as the shortest decimal string that round-trips.
func FormatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return decimal.NewFromFloat(f).String()
}

type decodeFunc func(b []byte) float64

// decoders is the single dispatch point for numeric types. Adding a type is
// one entry here plus its width in model.DataType.Registers.
var decoders = map[model.DataType]decodeFunc{
	model.Uint8:   func(b []byte) float64 { return float64(b[0]) },
	model.Uint16:  func(b []byte) float64 { return float64(binary.BigEndian.Uint16(b)) },
	model.Uint32:  func(b []byte) float64 { return float64(binary.BigEndian.Uint32(b)) },
	model.Uint64:  func(b []byte) float64 { return float64(binary.BigEndian.Uint64(b)) },
	model.Int8:    func(b []byte) float64 { return float64(int8(b[0])) },
	model.Int16:   func(b []byte) float64 { return float64(int16(binary.BigEndian.Uint16(b))) },
	model.Int32:   func(b []byte) float64 { return float64(int32(binary.BigEndian.Uint32(b))) },
	model.Int64:   func(b []byte) float64 { return float64(int64(binary.BigEndian.Uint64(b))) },
	model.Float32: func(b []byte) float64 { return float64(math.Float32frombits(binary.BigEndian.Uint32(b))) },
	model.Float64: func(b []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(b)) },
}

// Decode interprets words (read from m.Address, m.Size registers long) as
// m.DataType and applies m.ScalingFactor. STRING values are not scaled.
func Decode(m model.Metric, words []uint16) (Value, error) {
	if m.DataType == model.String {
		if len(words) == 0 || len(words) < int(m.Size) {
			return Value{}, &DecodeError{Metric: m.Name, DataType: m.DataType,
				Reason: fmt.Sprintf("got %d registers, want %d", len(words), m.Size)}
		}
		return Value{Text: decodeString(words[:m.Size]), IsText: true}, nil
	}

	fn, ok := decoders[m.DataType]
	if !ok {
		return Value{}, &DecodeError{Metric: m.Name, DataType: m.DataType, Reason: "unsupported data type"}
	}
	need := m.DataType.Registers()
	if int(m.Size) > need {
		need = int(m.Size)
	}
	if len(words) == 0 || len(words) < need {
		return Value{}, &DecodeError{Metric: m.Name, DataType: m.DataType,
			Reason: fmt.Sprintf("got %d registers, want %d", len(words), need)}
	}

	raw := fn(wordsToBytes(words[:m.DataType.Registers()]))
	return Value{Number: raw * m.ScalingFactor}, nil
}

func decodeString(words []uint16) string {
	b := bytes.TrimRight(wordsToBytes(words), "\x00")
	return strings.ToValidUTF8(string(b), "�")
}

func wordsToBytes(words []uint16) []byte {
	b := make([]byte, len(words)*2)
	for i, w := range words {
		binary.BigEndian.PutUint16(b[i*2:], w)
	}
	return b
}
