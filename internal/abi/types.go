// Package abi implements the Solidity contract ABI: type parsing, the
// head/tail binary codec, and coercion of native Go values into typed values.
package abi

import (
	"fmt"
	"strconv"
	"strings"
)

// WordSize is the width of one encoded ABI word.
const WordSize = 32

// Kind identifies the variant of an ABI type.
type Kind int

const (
	KindUInt Kind = iota + 1
	KindInt
	KindBool
	KindAddress
	KindFixedBytes
	KindBytes
	KindString
	KindArray
	KindTuple
)

var kindNames = map[Kind]string{
	KindUInt:       "uint",
	KindInt:        "int",
	KindBool:       "bool",
	KindAddress:    "address",
	KindFixedBytes: "bytesN",
	KindBytes:      "bytes",
	KindString:     "string",
	KindArray:      "array",
	KindTuple:      "tuple",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Type is an ABI type descriptor. Types are immutable once built.
//
// Size holds the bit width for integers, the byte width for fixed bytes and
// the element count for arrays (-1 for dynamic arrays).
type Type struct {
	Kind   Kind
	Size   int
	Elem   *Type
	Fields []Field
}

// Field is a named tuple component.
type Field struct {
	Name string
	Type Type
}

// UintType returns uint<bits>.
func UintType(bits int) Type { return Type{Kind: KindUInt, Size: bits} }

// IntType returns int<bits>.
func IntType(bits int) Type { return Type{Kind: KindInt, Size: bits} }

// BoolType returns bool.
func BoolType() Type { return Type{Kind: KindBool} }

// AddressType returns address.
func AddressType() Type { return Type{Kind: KindAddress} }

// FixedBytesType returns bytes<n>.
func FixedBytesType(n int) Type { return Type{Kind: KindFixedBytes, Size: n} }

// BytesType returns bytes.
func BytesType() Type { return Type{Kind: KindBytes} }

// StringType returns string.
func StringType() Type { return Type{Kind: KindString} }

// SliceType returns the dynamic array elem[].
func SliceType(elem Type) Type { return Type{Kind: KindArray, Size: -1, Elem: &elem} }

// ArrayType returns the fixed array elem[n].
func ArrayType(elem Type, n int) Type { return Type{Kind: KindArray, Size: n, Elem: &elem} }

// TupleType returns a tuple of the given fields.
func TupleType(fields ...Field) Type { return Type{Kind: KindTuple, Fields: fields} }

// Len reports the array length and whether it is fixed.
func (t Type) Len() (int, bool) {
	if t.Kind != KindArray || t.Size < 0 {
		return 0, false
	}
	return t.Size, true
}

// IsDynamic reports whether t is encoded through an offset into the tail.
func (t Type) IsDynamic() bool {
	switch t.Kind {
	case KindBytes, KindString:
		return true
	case KindArray:
		return t.Size < 0 || t.Elem.IsDynamic()
	case KindTuple:
		for _, f := range t.Fields {
			if f.Type.IsDynamic() {
				return true
			}
		}
	}
	return false
}

// headSize is the number of bytes t occupies in its enclosing head region.
func (t Type) headSize() int {
	if t.IsDynamic() {
		return WordSize
	}
	switch t.Kind {
	case KindArray:
		return t.Size * t.Elem.headSize()
	case KindTuple:
		n := 0
		for _, f := range t.Fields {
			n += f.Type.headSize()
		}
		return n
	}
	return WordSize
}

// String returns the canonical type string used in signatures.
func (t Type) String() string {
	switch t.Kind {
	case KindUInt:
		return "uint" + strconv.Itoa(t.Size)
	case KindInt:
		return "int" + strconv.Itoa(t.Size)
	case KindBool:
		return "bool"
	case KindAddress:
		return "address"
	case KindFixedBytes:
		return "bytes" + strconv.Itoa(t.Size)
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindArray:
		if t.Size < 0 {
			return t.Elem.String() + "[]"
		}
		return t.Elem.String() + "[" + strconv.Itoa(t.Size) + "]"
	case KindTuple:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Type.String()
		}
		return "(" + strings.Join(parts, ",") + ")"
	}
	return "invalid"
}

// Equal reports whether two types have the same canonical shape. Field names are ignored.
func (t Type) Equal(o Type) bool {
	return t.String() == o.String()
}

// ParseType parses a human-readable type string such as "uint256",
// "address[]" or "(uint8,bytes32)[3]".
func ParseType(s string) (Type, error) {
	p := &typeParser{input: s, src: strings.TrimSpace(s)}
	t, err := p.parse()
	if err != nil {
		return Type{}, err
	}
	if p.pos != len(p.src) {
		return Type{}, p.fail("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error. Intended for
// package-level type tables.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTypes parses each string in order.
func ParseTypes(ss ...string) ([]Type, error) {
	out := make([]Type, len(ss))
	for i, s := range ss {
		t, err := ParseType(s)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// WithArraySuffix wraps base in the array dimensions described by suffix,
// e.g. "[2][]". Used for JSON ABI "tuple[2][]" entries whose base comes from
// components.
func WithArraySuffix(base Type, suffix string) (Type, error) {
	p := &typeParser{input: base.String() + suffix, src: suffix}
	t, err := p.arrays(base)
	if err != nil {
		return Type{}, err
	}
	if p.pos != len(p.src) {
		return Type{}, p.fail("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

type typeParser struct {
	input string
	src   string
	pos   int
}

func (p *typeParser) fail(format string, args ...any) error {
	return &TypeSyntaxError{Input: p.input, Reason: fmt.Sprintf(format, args...)}
}

func (p *typeParser) parse() (Type, error) {
	var (
		base Type
		err  error
	)
	if p.pos < len(p.src) && p.src[p.pos] == '(' {
		base, err = p.tuple()
	} else {
		base, err = p.elementary()
	}
	if err != nil {
		return Type{}, err
	}
	return p.arrays(base)
}

func (p *typeParser) tuple() (Type, error) {
	p.pos++ // (
	var fields []Field
	if p.pos < len(p.src) && p.src[p.pos] == ')' {
		p.pos++
		return TupleType(), nil
	}
	for {
		p.skipSpace()
		t, err := p.parse()
		if err != nil {
			return Type{}, err
		}
		p.skipSpace()
		name := p.ident()
		p.skipSpace()
		fields = append(fields, Field{Name: name, Type: t})
		if p.pos >= len(p.src) {
			return Type{}, p.fail("unterminated tuple")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return TupleType(fields...), nil
		default:
			return Type{}, p.fail("unexpected %q in tuple", p.src[p.pos])
		}
	}
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *typeParser) elementary() (Type, error) {
	word := p.ident()
	if word == "" {
		if p.pos >= len(p.src) {
			return Type{}, p.fail("empty type")
		}
		return Type{}, p.fail("unexpected %q", p.src[p.pos])
	}

	switch word {
	case "bool":
		return BoolType(), nil
	case "address":
		return AddressType(), nil
	case "string":
		return StringType(), nil
	case "bytes":
		return BytesType(), nil
	case "byte":
		return FixedBytesType(1), nil
	case "uint":
		return UintType(256), nil
	case "int":
		return IntType(256), nil
	}

	prefix, digits := splitDigits(word)
	if digits == "" || (len(digits) > 1 && digits[0] == '0') {
		return Type{}, p.fail("unknown base type %q", word)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return Type{}, p.fail("unknown base type %q", word)
	}

	switch prefix {
	case "uint", "int":
		if n < 8 || n > 256 || n%8 != 0 {
			return Type{}, p.fail("bit width %d must be a multiple of 8 in [8,256]", n)
		}
		if prefix == "uint" {
			return UintType(n), nil
		}
		return IntType(n), nil
	case "bytes":
		if n < 1 || n > 32 {
			return Type{}, p.fail("fixed bytes width %d must be in [1,32]", n)
		}
		return FixedBytesType(n), nil
	}
	return Type{}, p.fail("unknown base type %q", word)
}

func (p *typeParser) arrays(base Type) (Type, error) {
	t := base
	for p.pos < len(p.src) && p.src[p.pos] == '[' {
		end := strings.IndexByte(p.src[p.pos:], ']')
		if end < 0 {
			return Type{}, p.fail("unterminated array bracket")
		}
		inner := p.src[p.pos+1 : p.pos+end]
		p.pos += end + 1
		if inner == "" {
			t = SliceType(t)
			continue
		}
		n, err := strconv.Atoi(inner)
		if err != nil || n <= 0 {
			return Type{}, p.fail("invalid array length %q", inner)
		}
		t = ArrayType(t, n)
	}
	return t, nil
}

func splitDigits(s string) (string, string) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[:i], s[i:]
}
