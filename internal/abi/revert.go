package abi

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrReverted matches every decoded revert payload.
var ErrReverted = errors.New("execution reverted")

var (
	// ErrorSelector is the selector of the built-in Error(string).
	ErrorSelector = Selector("Error(string)")
	// PanicSelector is the selector of the built-in Panic(uint256).
	PanicSelector = Selector("Panic(uint256)")
	// OffchainLookupSelector is the EIP-3668 OffchainLookup selector.
	OffchainLookupSelector = Selector("OffchainLookup(address,string[],bytes,bytes4,bytes)")
)

var offchainLookupTypes = []Type{
	AddressType(),
	SliceType(StringType()),
	BytesType(),
	FixedBytesType(4),
	BytesType(),
}

var panicReasons = map[uint64]string{
	0x00: "generic compiler inserted panic",
	0x01: "assert evaluated to false",
	0x11: "arithmetic operation underflowed or overflowed",
	0x12: "division or modulo by zero",
	0x21: "value cannot be converted to enum type",
	0x22: "storage byte array is incorrectly encoded",
	0x31: "pop() called on an empty array",
	0x32: "array index out of bounds",
	0x41: "too much memory allocated or array too large",
	0x51: "call to zero-initialized internal function variable",
}

// RevertError is a revert carrying an Error(string) reason, or no reason at all.
type RevertError struct {
	Reason string
	Data   []byte
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error { return ErrReverted }

// PanicError is a revert raised by a Panic(uint256) compiler check.
type PanicError struct {
	Code uint64
	Data []byte
}

func (e *PanicError) Error() string {
	reason, ok := panicReasons[e.Code]
	if !ok {
		reason = "unknown panic code"
	}
	return fmt.Sprintf("execution reverted: panic 0x%02x: %s", e.Code, reason)
}

func (e *PanicError) Unwrap() error { return ErrReverted }

// OffchainLookupError is an EIP-3668 request to resolve data off chain.
type OffchainLookupError struct {
	Sender           common.Address
	URLs             []string
	CallData         []byte
	CallbackFunction [4]byte
	ExtraData        []byte
}

func (e *OffchainLookupError) Error() string {
	return fmt.Sprintf("offchain lookup requested by %s via %d url(s)", e.Sender.Hex(), len(e.URLs))
}

func (e *OffchainLookupError) Unwrap() error { return ErrReverted }

// UnpackRevert decodes a revert payload returned by a node. It returns nil
// when data does not start with a built-in error selector.
func UnpackRevert(data []byte) error {
	if len(data) < 4 {
		return nil
	}
	body := data[4:]
	switch {
	case bytes.Equal(data[:4], ErrorSelector[:]):
		v, err := DecodeOne(StringType(), body)
		if err != nil {
			return &RevertError{Data: data}
		}
		return &RevertError{Reason: v.Data.(string), Data: data}

	case bytes.Equal(data[:4], PanicSelector[:]):
		v, err := DecodeOne(UintType(256), body)
		if err != nil {
			return &RevertError{Data: data}
		}
		code := v.Data.(*big.Int)
		if !code.IsUint64() {
			return &PanicError{Code: ^uint64(0), Data: data}
		}
		return &PanicError{Code: code.Uint64(), Data: data}

	case bytes.Equal(data[:4], OffchainLookupSelector[:]):
		vals, err := Decode(offchainLookupTypes, body)
		if err != nil {
			return &RevertError{Data: data}
		}
		urls := make([]string, 0)
		for _, u := range vals[1].Data.([]Value) {
			urls = append(urls, u.Data.(string))
		}
		var cb [4]byte
		copy(cb[:], vals[3].Data.([]byte))
		return &OffchainLookupError{
			Sender:           vals[0].Data.(common.Address),
			URLs:             urls,
			CallData:         vals[2].Data.([]byte),
			CallbackFunction: cb,
			ExtraData:        vals[4].Data.([]byte),
		}
	}
	return nil
}
