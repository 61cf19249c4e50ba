package abi

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestCoerceAccepted(t *testing.T) {
	addr := common.HexToAddress(checksummed)
	var hash common.Hash
	hash[0] = 0xab

	tests := []struct {
		name string
		typ  string
		raw  any
		want Value
	}{
		{"int", "uint256", 7, Uint256(big.NewInt(7))},
		{"uint64", "uint64", uint64(1 << 63), UintValue(64, new(big.Int).SetUint64(1<<63))},
		{"negative int8", "int8", int8(-5), IntValue(8, big.NewInt(-5))},
		{"big pointer", "uint256", big.NewInt(99), Uint256(big.NewInt(99))},
		{"big value", "uint256", *big.NewInt(99), Uint256(big.NewInt(99))},
		{"json number", "int32", json.Number("-12"), IntValue(32, big.NewInt(-12))},
		{"float", "uint16", float64(300), UintValue(16, big.NewInt(300))},
		{"decimal string", "uint256", "1000000000000000000", Uint256(big.NewInt(1e18))},
		{"bool", "bool", true, BoolValue(true)},
		{"bool string", "bool", "false", BoolValue(false)},
		{"address", "address", addr, AddressValue(addr)},
		{"address pointer", "address", &addr, AddressValue(addr)},
		{"address lower hex", "address", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", AddressValue(addr)},
		{"address checksum hex", "address", checksummed, AddressValue(addr)},
		{"bytes32 hash", "bytes32", hash, FixedBytesValue(hash.Bytes())},
		{"bytes32 short slice", "bytes32", []byte("a"), FixedBytesValue(common.RightPadBytes([]byte("a"), 32))},
		{"bytes4 hex", "bytes4", "0xdeadbeef", FixedBytesValue([]byte{0xde, 0xad, 0xbe, 0xef})},
		{"bytes hex", "bytes", "0x0102", BytesValue([]byte{1, 2})},
		{"bytes empty hex", "bytes", "0x", BytesValue([]byte{})},
		{"string", "string", "hi", StringValue("hi")},
		{"slice", "uint8[]", []int{1, 2}, SliceValue(UintType(8), UintValue(8, big.NewInt(1)), UintValue(8, big.NewInt(2)))},
		{"any slice", "string[2]", []any{"a", "b"}, ArrayValue(StringType(), StringValue("a"), StringValue("b"))},
		{"tuple slice", "(uint8,bool)", []any{1, true}, TupleValue(UintValue(8, big.NewInt(1)), BoolValue(true))},
		{"value passthrough", "bool", BoolValue(true), BoolValue(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(MustParseType(tt.typ), tt.raw)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestCoerceTupleMap(t *testing.T) {
	typ := MustParseType("(address owner,uint256 amount)")

	got, err := Coerce(typ, map[string]any{"owner": checksummed, "amount": "5"})
	require.NoError(t, err)
	items := got.Data.([]Value)
	assert.Equal(t, common.HexToAddress(checksummed), items[0].Data)
	assert.Equal(t, int64(5), items[1].Data.(*big.Int).Int64())

	_, err = Coerce(typ, map[string]any{"owner": checksummed})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = Coerce(typ, map[string]any{"owner": checksummed, "amount": 1, "extra": 2})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestCoerceRejected(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		raw  any
	}{
		{"uint from hex string", "uint256", "0x10"},
		{"uint negative", "uint256", -1},
		{"uint8 overflow", "uint8", 256},
		{"int from bool", "int256", true},
		{"fractional float", "uint256", 1.5},
		{"garbage decimal", "uint256", "12abc"},
		{"nil big", "uint256", (*big.Int)(nil)},
		{"bool from int", "bool", 1},
		{"bool from word", "bool", "yes"},
		{"address without prefix", "address", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"},
		{"address bad checksum", "address", "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{"address too short", "address", "0x1234"},
		{"address from int", "address", 5},
		{"bytes4 too long", "bytes4", "0xdeadbeef00"},
		{"bytes32 from address", "bytes32", common.HexToAddress(checksummed)},
		{"bytes from plain string", "bytes", "hello"},
		{"bytes odd hex", "bytes", "0x123"},
		{"string from bytes", "string", []byte("x")},
		{"fixed array length", "bool[2]", []bool{true}},
		{"array from scalar", "bool[]", true},
		{"tuple arity", "(bool,bool)", []any{true}},
		{"value of other type", "uint256", BoolValue(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Coerce(MustParseType(tt.typ), tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidValue)
			assert.False(t, Compatible(MustParseType(tt.typ), tt.raw))
		})
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress(checksummed)
	require.NoError(t, err)
	assert.Equal(t, checksummed, addr.Hex())

	_, err = ParseAddress("0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED")
	assert.NoError(t, err, "all upper case skips checksum")

	_, err = ParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValueString(t *testing.T) {
	v := TupleValue(
		Uint256(big.NewInt(12)),
		SliceValue(BoolType(), BoolValue(true), BoolValue(false)),
		AddressValue(common.HexToAddress(checksummed)),
		BytesValue([]byte{0xca, 0xfe}),
	)
	assert.Equal(t, "(12, [true, false], "+checksummed+", 0xcafe)", v.String())
	assert.Equal(t, []any{big.NewInt(12), []any{true, false}, common.HexToAddress(checksummed), []byte{0xca, 0xfe}}, v.Native())
}
