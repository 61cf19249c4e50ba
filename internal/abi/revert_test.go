package abi

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnpackRevertReason(t *testing.T) {
	data, err := EncodeWithSelector(ErrorSelector, StringValue("not enough balance"))
	require.NoError(t, err)

	err = UnpackRevert(data)
	var revert *RevertError
	require.ErrorAs(t, err, &revert)
	assert.Equal(t, "not enough balance", revert.Reason)
	assert.Equal(t, "execution reverted: not enough balance", err.Error())
	assert.ErrorIs(t, err, ErrReverted)
}

func TestUnpackRevertPanic(t *testing.T) {
	data, err := EncodeWithSelector(PanicSelector, Uint256(big.NewInt(0x11)))
	require.NoError(t, err)

	err = UnpackRevert(data)
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, uint64(0x11), panicErr.Code)
	assert.Contains(t, err.Error(), "panic 0x11: arithmetic operation underflowed or overflowed")

	data, err = EncodeWithSelector(PanicSelector, Uint256(big.NewInt(0x99)))
	require.NoError(t, err)
	assert.Contains(t, UnpackRevert(data).Error(), "unknown panic code")
}

func TestUnpackRevertOffchainLookup(t *testing.T) {
	sender := common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")
	data, err := EncodeWithSelector(OffchainLookupSelector,
		AddressValue(sender),
		SliceValue(StringType(), StringValue("https://gateway.example/{sender}/{data}.json")),
		BytesValue([]byte{1, 2, 3}),
		FixedBytesValue([]byte{0xaa, 0xbb, 0xcc, 0xdd}),
		BytesValue([]byte{9}),
	)
	require.NoError(t, err)

	err = UnpackRevert(data)
	var lookup *OffchainLookupError
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, sender, lookup.Sender)
	assert.Equal(t, []string{"https://gateway.example/{sender}/{data}.json"}, lookup.URLs)
	assert.Equal(t, []byte{1, 2, 3}, lookup.CallData)
	assert.Equal(t, [4]byte{0xaa, 0xbb, 0xcc, 0xdd}, lookup.CallbackFunction)
	assert.Equal(t, []byte{9}, lookup.ExtraData)
}

func TestUnpackRevertUnknown(t *testing.T) {
	assert.Nil(t, UnpackRevert(nil))
	assert.Nil(t, UnpackRevert([]byte{1, 2, 3}))
	assert.Nil(t, UnpackRevert([]byte{0xde, 0xad, 0xbe, 0xef, 0}))

	// A recognised selector with a mangled body still reports a revert.
	err := UnpackRevert(append(ErrorSelector[:], 0x01))
	var revert *RevertError
	require.ErrorAs(t, err, &revert)
	assert.Empty(t, revert.Reason)
}
