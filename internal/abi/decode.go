package abi

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// maxDecodeSize bounds any offset, length or element count read from the
// wire. Larger values cannot describe a real buffer and are rejected as
// malformed rather than treated as truncation.
const maxDecodeSize = 1 << 32

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// Decode reads one value per type from data. Offsets inside nested tuples
// and arrays are relative to the start of their own head region.
//
// Decode never reads outside data: a short buffer yields an
// *InsufficientDataError and an offset, length or word that cannot be valid
// yields an *InvalidEncodingError.
func Decode(types []Type, data []byte) ([]Value, error) {
	return decodeSequence(types, data, 0)
}

// DecodeOne decodes a single value of type t.
func DecodeOne(t Type, data []byte) (Value, error) {
	vals, err := Decode([]Type{t}, data)
	if err != nil {
		return Value{}, err
	}
	return vals[0], nil
}

// decodeSequence decodes types laid out as a head/tail sequence starting at
// buf[0]. base is the absolute position of buf[0], used for error reporting.
func decodeSequence(types []Type, buf []byte, base int) ([]Value, error) {
	out := make([]Value, len(types))
	pos := 0
	for i, t := range types {
		if !t.IsDynamic() {
			v, err := decodeStatic(t, buf, pos, base)
			if err != nil {
				return nil, err
			}
			out[i] = v
			pos += t.headSize()
			continue
		}

		off, err := readSize(buf, pos, base)
		if err != nil {
			return nil, err
		}
		if off > len(buf) {
			return nil, &InsufficientDataError{Need: base + off, Have: base + len(buf)}
		}
		v, err := decodeDynamic(t, buf[off:], base+off)
		if err != nil {
			return nil, err
		}
		out[i] = v
		pos += WordSize
	}
	return out, nil
}

func decodeStatic(t Type, buf []byte, pos, base int) (Value, error) {
	switch t.Kind {
	case KindArray:
		items, err := decodeSequence(repeat(*t.Elem, t.Size), buf[min(pos, len(buf)):], base+pos)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Data: items}, nil
	case KindTuple:
		items, err := decodeSequence(fieldTypes(t), buf[min(pos, len(buf)):], base+pos)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Data: items}, nil
	}

	word, err := readWord(buf, pos, base)
	if err != nil {
		return Value{}, err
	}
	at := base + pos

	switch t.Kind {
	case KindUInt:
		x := new(big.Int).SetBytes(word)
		if x.BitLen() > t.Size {
			return Value{}, &InvalidEncodingError{Offset: at, Reason: "dirty high bits in " + t.String()}
		}
		return Value{Type: t, Data: x}, nil
	case KindInt:
		x := new(big.Int).SetBytes(word)
		if word[0]&0x80 != 0 {
			x.Sub(x, twoTo256)
		}
		if checkIntRange(t, x) != nil {
			return Value{}, &InvalidEncodingError{Offset: at, Reason: "improper sign extension in " + t.String()}
		}
		return Value{Type: t, Data: x}, nil
	case KindBool:
		if !allZero(word[:WordSize-1]) || word[WordSize-1] > 1 {
			return Value{}, &InvalidEncodingError{Offset: at, Reason: "bool word is not 0 or 1"}
		}
		return Value{Type: t, Data: word[WordSize-1] == 1}, nil
	case KindAddress:
		if !allZero(word[:12]) {
			return Value{}, &InvalidEncodingError{Offset: at, Reason: "dirty address padding"}
		}
		return Value{Type: t, Data: common.BytesToAddress(word[12:])}, nil
	case KindFixedBytes:
		if !allZero(word[t.Size:]) {
			return Value{}, &InvalidEncodingError{Offset: at, Reason: "dirty " + t.String() + " padding"}
		}
		b := make([]byte, t.Size)
		copy(b, word[:t.Size])
		return Value{Type: t, Data: b}, nil
	}
	return Value{}, &InvalidEncodingError{Offset: at, Reason: "unsupported static type " + t.String()}
}

// decodeDynamic decodes t whose encoding starts at buf[0].
func decodeDynamic(t Type, buf []byte, base int) (Value, error) {
	switch t.Kind {
	case KindBytes, KindString:
		n, err := readSize(buf, 0, base)
		if err != nil {
			return Value{}, err
		}
		if WordSize+n > len(buf) {
			return Value{}, &InsufficientDataError{Need: base + WordSize + n, Have: base + len(buf)}
		}
		b := make([]byte, n)
		copy(b, buf[WordSize:WordSize+n])
		if t.Kind == KindString {
			return Value{Type: t, Data: string(b)}, nil
		}
		return Value{Type: t, Data: b}, nil

	case KindArray:
		if t.Size >= 0 {
			items, err := decodeSequence(repeat(*t.Elem, t.Size), buf, base)
			if err != nil {
				return Value{}, err
			}
			return Value{Type: t, Data: items}, nil
		}
		count, err := readSize(buf, 0, base)
		if err != nil {
			return Value{}, err
		}
		need := count * max(t.Elem.headSize(), 1)
		if need > maxDecodeSize {
			return Value{}, &InvalidEncodingError{Offset: base, Reason: "array length too large"}
		}
		if WordSize+need > len(buf) {
			return Value{}, &InsufficientDataError{Need: base + WordSize + need, Have: base + len(buf)}
		}
		items, err := decodeSequence(repeat(*t.Elem, count), buf[WordSize:], base+WordSize)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Data: items}, nil

	case KindTuple:
		items, err := decodeSequence(fieldTypes(t), buf, base)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Data: items}, nil
	}
	return Value{}, &InvalidEncodingError{Offset: base, Reason: "unsupported dynamic type " + t.String()}
}

func readWord(buf []byte, pos, base int) ([]byte, error) {
	if pos < 0 || pos+WordSize > len(buf) {
		return nil, &InsufficientDataError{Need: base + pos + WordSize, Have: base + len(buf)}
	}
	return buf[pos : pos+WordSize], nil
}

// readSize reads an offset, length or count word.
func readSize(buf []byte, pos, base int) (int, error) {
	word, err := readWord(buf, pos, base)
	if err != nil {
		return 0, err
	}
	if !allZero(word[:WordSize-8]) {
		return 0, &InvalidEncodingError{Offset: base + pos, Reason: "size word overflows 64 bits"}
	}
	n := binary.BigEndian.Uint64(word[WordSize-8:])
	if n > maxDecodeSize {
		return 0, &InvalidEncodingError{Offset: base + pos, Reason: "size word out of range"}
	}
	return int(n), nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func repeat(t Type, n int) []Type {
	out := make([]Type, n)
	for i := range out {
		out[i] = t
	}
	return out
}

func fieldTypes(t Type) []Type {
	out := make([]Type, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = f.Type
	}
	return out
}
