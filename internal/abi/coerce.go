package abi

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Coerce converts a raw Go value into a Value of type t. The accepted shapes
// per kind are:
//
//	uint/int   Go integer kinds, *big.Int, big.Int, json.Number, integral
//	           float64 up to 2^53, decimal strings ("-42")
//	bool       bool, "true", "false"
//	address    common.Address, *common.Address, [20]byte, 0x-prefixed hex
//	           (mixed case must carry a valid EIP-55 checksum)
//	bytesN     []byte or [k]byte with k <= N (right padded), 0x-prefixed hex
//	bytes      []byte, [k]byte, 0x-prefixed hex
//	string     string
//	T[] / T[k] any slice or array whose elements coerce to T
//	tuple      slice with one element per field, or map[string]any keyed by
//	           field name
//
// A Value whose type already equals t is returned unchanged after Check.
func Coerce(t Type, raw any) (Value, error) {
	if v, ok := raw.(Value); ok {
		if !v.Type.Equal(t) {
			return Value{}, valueErrorf(t, "got %s value", v.Type)
		}
		return v, v.Check()
	}

	var (
		v   Value
		err error
	)
	switch t.Kind {
	case KindUInt, KindInt:
		v, err = coerceInt(t, raw)
	case KindBool:
		v, err = coerceBool(t, raw)
	case KindAddress:
		v, err = coerceAddress(t, raw)
	case KindFixedBytes:
		v, err = coerceFixedBytes(t, raw)
	case KindBytes:
		b, ok := bytesOf(raw)
		if !ok {
			return Value{}, valueErrorf(t, "cannot use %T", raw)
		}
		v = Value{Type: t, Data: b}
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, valueErrorf(t, "cannot use %T", raw)
		}
		v = Value{Type: t, Data: s}
	case KindArray:
		v, err = coerceArray(t, raw)
	case KindTuple:
		v, err = coerceTuple(t, raw)
	default:
		return Value{}, valueErrorf(t, "unknown kind %s", t.Kind)
	}
	if err != nil {
		return Value{}, err
	}
	return v, v.Check()
}

// CoerceAll coerces raw[i] into types[i]. The lengths must match.
func CoerceAll(types []Type, raw []any) ([]Value, error) {
	if len(types) != len(raw) {
		return nil, fmt.Errorf("%w: want %d arguments, got %d", ErrInvalidValue, len(types), len(raw))
	}
	out := make([]Value, len(types))
	for i, t := range types {
		v, err := Coerce(t, raw[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Compatible reports whether raw can be coerced into t.
func Compatible(t Type, raw any) bool {
	_, err := Coerce(t, raw)
	return err == nil
}

// ParseAddress validates a hex address string, enforcing the EIP-55 checksum
// when the string is mixed case.
func ParseAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, fmt.Errorf("%w: address %q lacks 0x prefix", ErrInvalidValue, s)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: malformed address %q", ErrInvalidValue, s)
	}
	addr := common.HexToAddress(s)
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex() != "0x"+body {
		return common.Address{}, fmt.Errorf("%w: bad checksum for address %q", ErrInvalidValue, s)
	}
	return addr, nil
}

func coerceInt(t Type, raw any) (Value, error) {
	var x *big.Int
	switch r := raw.(type) {
	case *big.Int:
		if r == nil {
			return Value{}, valueErrorf(t, "nil *big.Int")
		}
		x = new(big.Int).Set(r)
	case big.Int:
		x = new(big.Int).Set(&r)
	case json.Number:
		var ok bool
		if x, ok = new(big.Int).SetString(r.String(), 10); !ok {
			return Value{}, valueErrorf(t, "json number %q is not an integer", r)
		}
	case float64:
		if r != math.Trunc(r) || math.Abs(r) > 1<<53 {
			return Value{}, valueErrorf(t, "float %v is not an exact integer", r)
		}
		x = big.NewInt(int64(r))
	case string:
		s := strings.TrimSpace(r)
		if s == "" || strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			return Value{}, valueErrorf(t, "want decimal string, got %q", r)
		}
		var ok bool
		if x, ok = new(big.Int).SetString(s, 10); !ok {
			return Value{}, valueErrorf(t, "invalid decimal %q", r)
		}
	default:
		rv := reflect.ValueOf(raw)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			x = big.NewInt(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			x = new(big.Int).SetUint64(rv.Uint())
		default:
			return Value{}, valueErrorf(t, "cannot use %T", raw)
		}
	}
	return Value{Type: t, Data: x}, nil
}

func coerceBool(t Type, raw any) (Value, error) {
	switch r := raw.(type) {
	case bool:
		return Value{Type: t, Data: r}, nil
	case string:
		switch r {
		case "true":
			return Value{Type: t, Data: true}, nil
		case "false":
			return Value{Type: t, Data: false}, nil
		}
	}
	return Value{}, valueErrorf(t, "cannot use %T %v", raw, raw)
}

func coerceAddress(t Type, raw any) (Value, error) {
	switch r := raw.(type) {
	case common.Address:
		return Value{Type: t, Data: r}, nil
	case *common.Address:
		if r == nil {
			return Value{}, valueErrorf(t, "nil *common.Address")
		}
		return Value{Type: t, Data: *r}, nil
	case [20]byte:
		return Value{Type: t, Data: common.Address(r)}, nil
	case string:
		addr, err := ParseAddress(r)
		if err != nil {
			return Value{}, valueErrorf(t, "%v", err)
		}
		return Value{Type: t, Data: addr}, nil
	}
	return Value{}, valueErrorf(t, "cannot use %T", raw)
}

func coerceFixedBytes(t Type, raw any) (Value, error) {
	b, ok := bytesOf(raw)
	if !ok {
		return Value{}, valueErrorf(t, "cannot use %T", raw)
	}
	if len(b) > t.Size {
		return Value{}, valueErrorf(t, "%d bytes do not fit", len(b))
	}
	out := make([]byte, t.Size)
	copy(out, b)
	return Value{Type: t, Data: out}, nil
}

// bytesOf accepts []byte, [k]byte arrays and 0x-prefixed hex strings.
func bytesOf(raw any) ([]byte, bool) {
	switch r := raw.(type) {
	case common.Address:
		return nil, false
	case []byte:
		return append([]byte{}, r...), true
	case string:
		if !strings.HasPrefix(r, "0x") && !strings.HasPrefix(r, "0X") {
			return nil, false
		}
		b, err := hexutil.Decode("0x" + r[2:])
		if err != nil {
			return nil, false
		}
		return b, true
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		out := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(out), rv)
		return out, true
	}
	return nil, false
}

func coerceArray(t Type, raw any) (Value, error) {
	if items, ok := raw.([]Value); ok {
		return Value{Type: t, Data: items}, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Value{}, valueErrorf(t, "cannot use %T", raw)
	}
	if t.Size >= 0 && rv.Len() != t.Size {
		return Value{}, valueErrorf(t, "want %d elements, got %d", t.Size, rv.Len())
	}
	items := make([]Value, rv.Len())
	for i := range items {
		v, err := Coerce(*t.Elem, rv.Index(i).Interface())
		if err != nil {
			return Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		items[i] = v
	}
	return Value{Type: t, Data: items}, nil
}

func coerceTuple(t Type, raw any) (Value, error) {
	if m, ok := raw.(map[string]any); ok {
		items := make([]Value, len(t.Fields))
		for i, f := range t.Fields {
			fv, present := m[f.Name]
			if f.Name == "" || !present {
				return Value{}, valueErrorf(t, "missing field %q", f.Name)
			}
			v, err := Coerce(f.Type, fv)
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", f.Name, err)
			}
			items[i] = v
		}
		if len(m) != len(t.Fields) {
			return Value{}, valueErrorf(t, "want %d fields, got %d", len(t.Fields), len(m))
		}
		return Value{Type: t, Data: items}, nil
	}

	if items, ok := raw.([]Value); ok {
		return Value{Type: t, Data: items}, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Value{}, valueErrorf(t, "cannot use %T", raw)
	}
	if rv.Len() != len(t.Fields) {
		return Value{}, valueErrorf(t, "want %d fields, got %d", len(t.Fields), rv.Len())
	}
	items := make([]Value, len(t.Fields))
	for i, f := range t.Fields {
		v, err := Coerce(f.Type, rv.Index(i).Interface())
		if err != nil {
			return Value{}, fmt.Errorf("field %d: %w", i, err)
		}
		items[i] = v
	}
	return Value{Type: t, Data: items}, nil
}
