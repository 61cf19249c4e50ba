package abi

import (
	"bytes"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Value is a Go value tagged with its ABI type.
//
// Data holds *big.Int for integers, bool, common.Address, []byte for fixed
// and dynamic bytes, string, and []Value for arrays and tuples.
type Value struct {
	Type Type
	Data any
}

// UintValue returns a uint<bits> value.
func UintValue(bits int, x *big.Int) Value { return Value{Type: UintType(bits), Data: x} }

// IntValue returns an int<bits> value.
func IntValue(bits int, x *big.Int) Value { return Value{Type: IntType(bits), Data: x} }

// Uint256 is shorthand for UintValue(256, x).
func Uint256(x *big.Int) Value { return UintValue(256, x) }

// BoolValue returns a bool value.
func BoolValue(b bool) Value { return Value{Type: BoolType(), Data: b} }

// AddressValue returns an address value.
func AddressValue(a common.Address) Value { return Value{Type: AddressType(), Data: a} }

// FixedBytesValue returns a bytes<len(b)> value.
func FixedBytesValue(b []byte) Value { return Value{Type: FixedBytesType(len(b)), Data: b} }

// BytesValue returns a dynamic bytes value.
func BytesValue(b []byte) Value { return Value{Type: BytesType(), Data: b} }

// StringValue returns a string value.
func StringValue(s string) Value { return Value{Type: StringType(), Data: s} }

// SliceValue returns a dynamic array of elem.
func SliceValue(elem Type, items ...Value) Value {
	return Value{Type: SliceType(elem), Data: items}
}

// ArrayValue returns a fixed array of elem sized to items.
func ArrayValue(elem Type, items ...Value) Value {
	return Value{Type: ArrayType(elem, len(items)), Data: items}
}

// TupleValue returns an unnamed tuple built from items.
func TupleValue(items ...Value) Value {
	fields := make([]Field, len(items))
	for i, it := range items {
		fields[i] = Field{Type: it.Type}
	}
	return Value{Type: TupleType(fields...), Data: items}
}

// Check verifies that Data has the shape and range required by Type.
func (v Value) Check() error {
	t := v.Type
	switch t.Kind {
	case KindUInt, KindInt:
		x, ok := v.Data.(*big.Int)
		if !ok || x == nil {
			return valueErrorf(t, "want *big.Int, got %T", v.Data)
		}
		return checkIntRange(t, x)
	case KindBool:
		if _, ok := v.Data.(bool); !ok {
			return valueErrorf(t, "want bool, got %T", v.Data)
		}
	case KindAddress:
		if _, ok := v.Data.(common.Address); !ok {
			return valueErrorf(t, "want common.Address, got %T", v.Data)
		}
	case KindFixedBytes:
		b, ok := v.Data.([]byte)
		if !ok {
			return valueErrorf(t, "want []byte, got %T", v.Data)
		}
		if len(b) != t.Size {
			return valueErrorf(t, "want %d bytes, got %d", t.Size, len(b))
		}
	case KindBytes:
		if _, ok := v.Data.([]byte); !ok {
			return valueErrorf(t, "want []byte, got %T", v.Data)
		}
	case KindString:
		if _, ok := v.Data.(string); !ok {
			return valueErrorf(t, "want string, got %T", v.Data)
		}
	case KindArray:
		items, ok := v.Data.([]Value)
		if !ok {
			return valueErrorf(t, "want []Value, got %T", v.Data)
		}
		if t.Size >= 0 && len(items) != t.Size {
			return valueErrorf(t, "want %d elements, got %d", t.Size, len(items))
		}
		for _, it := range items {
			if !it.Type.Equal(*t.Elem) {
				return valueErrorf(t, "element type %s", it.Type)
			}
			if err := it.Check(); err != nil {
				return err
			}
		}
	case KindTuple:
		items, ok := v.Data.([]Value)
		if !ok {
			return valueErrorf(t, "want []Value, got %T", v.Data)
		}
		if len(items) != len(t.Fields) {
			return valueErrorf(t, "want %d fields, got %d", len(t.Fields), len(items))
		}
		for i, it := range items {
			if !it.Type.Equal(t.Fields[i].Type) {
				return valueErrorf(t, "field %d has type %s", i, it.Type)
			}
			if err := it.Check(); err != nil {
				return err
			}
		}
	default:
		return valueErrorf(t, "unknown kind %s", t.Kind)
	}
	return nil
}

func checkIntRange(t Type, x *big.Int) error {
	if t.Kind == KindUInt {
		if x.Sign() < 0 {
			return valueErrorf(t, "negative value %s", x)
		}
		if x.BitLen() > t.Size {
			return valueErrorf(t, "%s overflows %d bits", x, t.Size)
		}
		return nil
	}
	mag := x
	if x.Sign() < 0 {
		mag = new(big.Int).Neg(x)
		mag.Sub(mag, big.NewInt(1))
	}
	if mag.BitLen() > t.Size-1 {
		return valueErrorf(t, "%s overflows %d bits", x, t.Size)
	}
	return nil
}

// Equal reports whether two values have the same type and contents.
func (v Value) Equal(o Value) bool {
	if !v.Type.Equal(o.Type) {
		return false
	}
	switch v.Type.Kind {
	case KindUInt, KindInt:
		a, aok := v.Data.(*big.Int)
		b, bok := o.Data.(*big.Int)
		return aok && bok && a.Cmp(b) == 0
	case KindFixedBytes, KindBytes:
		a, aok := v.Data.([]byte)
		b, bok := o.Data.([]byte)
		return aok && bok && bytes.Equal(a, b)
	case KindArray, KindTuple:
		a, aok := v.Data.([]Value)
		b, bok := o.Data.([]Value)
		if !aok || !bok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	}
	return v.Data == o.Data
}

// Native returns the plain Go representation of v, with arrays and tuples as []any.
func (v Value) Native() any {
	items, ok := v.Data.([]Value)
	if !ok {
		return v.Data
	}
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it.Native()
	}
	return out
}

// String renders v for display.
func (v Value) String() string {
	switch d := v.Data.(type) {
	case *big.Int:
		return d.String()
	case bool:
		if d {
			return "true"
		}
		return "false"
	case common.Address:
		return d.Hex()
	case []byte:
		return hexutil.Encode(d)
	case string:
		return d
	case []Value:
		parts := make([]string, len(d))
		for i, it := range d {
			parts[i] = it.String()
		}
		if v.Type.Kind == KindTuple {
			return "(" + strings.Join(parts, ", ") + ")"
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "<invalid>"
}

// Values is a convenience for rendering a decoded result list.
type Values []Value

// Strings renders each value with String.
func (vs Values) Strings() []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
