package abi

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// Encode lays out values as one head/tail sequence. Every value is checked
// against its type before any bytes are produced.
func Encode(values ...Value) ([]byte, error) {
	for _, v := range values {
		if err := v.Check(); err != nil {
			return nil, err
		}
	}
	return encodeSequence(values)
}

// EncodeWithSelector returns selector || Encode(values).
func EncodeWithSelector(selector [4]byte, values ...Value) ([]byte, error) {
	body, err := Encode(values...)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 4+len(body))
	out = append(out, selector[:]...)
	return append(out, body...), nil
}

// Pack coerces raw Go values into types and encodes them.
func Pack(types []Type, raw ...any) ([]byte, error) {
	values, err := CoerceAll(types, raw)
	if err != nil {
		return nil, err
	}
	return Encode(values...)
}

// encodeSequence writes the heads of vals followed by the tails of the
// dynamic ones. Offsets are measured from the start of this sequence.
func encodeSequence(vals []Value) ([]byte, error) {
	headLen := 0
	for _, v := range vals {
		headLen += v.Type.headSize()
	}

	head := make([]byte, 0, headLen)
	var tail []byte
	for _, v := range vals {
		enc, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		if v.Type.IsDynamic() {
			head = append(head, uintWord(uint64(headLen+len(tail)))...)
			tail = append(tail, enc...)
			continue
		}
		head = append(head, enc...)
	}
	return append(head, tail...), nil
}

func encodeValue(v Value) ([]byte, error) {
	t := v.Type
	switch t.Kind {
	case KindUInt, KindInt:
		return encodeInt(v.Data.(*big.Int)), nil
	case KindBool:
		if v.Data.(bool) {
			return uintWord(1), nil
		}
		return uintWord(0), nil
	case KindAddress:
		return common.LeftPadBytes(v.Data.(common.Address).Bytes(), WordSize), nil
	case KindFixedBytes:
		return common.RightPadBytes(v.Data.([]byte), WordSize), nil
	case KindBytes:
		return encodeBytes(v.Data.([]byte)), nil
	case KindString:
		return encodeBytes([]byte(v.Data.(string))), nil
	case KindArray:
		items := v.Data.([]Value)
		body, err := encodeSequence(items)
		if err != nil {
			return nil, err
		}
		if t.Size >= 0 {
			return body, nil
		}
		return append(uintWord(uint64(len(items))), body...), nil
	case KindTuple:
		return encodeSequence(v.Data.([]Value))
	}
	return nil, valueErrorf(t, "unknown kind %s", t.Kind)
}

// encodeInt writes x as a 256-bit two's complement big-endian word.
func encodeInt(x *big.Int) []byte {
	return math.U256Bytes(new(big.Int).Set(x))
}

func encodeBytes(b []byte) []byte {
	out := uintWord(uint64(len(b)))
	padded := (len(b) + WordSize - 1) / WordSize * WordSize
	return append(out, common.RightPadBytes(b, padded)...)
}

func uintWord(n uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(n).Bytes(), WordSize)
}
