package middleware

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

var (
	sender    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// feeNode answers the lookups the gas/nonce stage makes. A nil baseFee
// models a chain without EIP-1559.
func feeNode(baseFee any) *node {
	return newNode(func(req *transport.Request) (*transport.Response, error) {
		switch req.Method {
		case "eth_getTransactionCount":
			return ok(req, "0x7")
		case "eth_getBlockByNumber":
			block := map[string]any{"number": "0x10"}
			if baseFee != nil {
				block["baseFeePerGas"] = baseFee
			}
			return ok(req, block)
		case "eth_maxPriorityFeePerGas":
			return ok(req, "0x2")
		case "eth_gasPrice":
			return ok(req, "0x3b9aca00")
		case "eth_estimateGas":
			return ok(req, "0x5208")
		case "eth_sendTransaction":
			return ok(req, "0x"+common.Bytes2Hex(make([]byte, 32)))
		}
		return fail(req, -32601, "method not found")
	})
}

func sentTx(t *testing.T, n *node) map[string]any {
	t.Helper()
	req := n.last("eth_sendTransaction")
	require.NotNil(t, req)
	raw, err := json.Marshal(req.Params[0])
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestGasNonceFillsDynamicFees(t *testing.T) {
	n := feeNode("0x64")
	h, ctx := rooted(NewChain(NewValidation(), NewGasNonce(), NewFormatting()), n.handle)

	_, err := h(ctx, transport.NewRequest(1, "eth_sendTransaction", &TxArgs{From: &sender, To: &recipient}))
	require.NoError(t, err)

	tx := sentTx(t, n)
	assert.Equal(t, "0x7", tx["nonce"])
	assert.Equal(t, "0x5208", tx["gas"])
	assert.Equal(t, "0x2", tx["maxPriorityFeePerGas"])
	assert.Equal(t, "0xca", tx["maxFeePerGas"], "tip + 2*baseFee")
	assert.Equal(t, "0x2", tx["type"])
	assert.Equal(t, "0x0", tx["value"])
	assert.Equal(t, "0x", tx["data"])
	assert.NotContains(t, tx, "gasPrice")

	count := n.last("eth_getTransactionCount")
	assert.Equal(t, []any{sender.Hex(), "pending"}, count.Params)
}

func TestGasNonceLegacyChain(t *testing.T) {
	n := feeNode(nil)
	h, ctx := rooted(NewChain(NewGasNonce(), NewFormatting()), n.handle)

	_, err := h(ctx, transport.NewRequest(1, "eth_sendTransaction", map[string]any{"from": sender, "to": recipient}))
	require.NoError(t, err)

	tx := sentTx(t, n)
	assert.Equal(t, "0x3b9aca00", tx["gasPrice"])
	assert.NotContains(t, tx, "maxFeePerGas")
	assert.Equal(t, 0, n.count("eth_maxPriorityFeePerGas"))
}

func TestGasNonceStrategy(t *testing.T) {
	n := feeNode("0x64")
	g := NewGasNonce(WithGasPriceStrategy(FixedGasPrice(big.NewInt(5))))
	h, ctx := rooted(NewChain(g, NewFormatting()), n.handle)

	_, err := h(ctx, transport.NewRequest(1, "eth_sendTransaction", &TxArgs{From: &sender, To: &recipient}))
	require.NoError(t, err)

	assert.Equal(t, "0x5", sentTx(t, n)["gasPrice"])
	assert.Equal(t, 0, n.count("eth_getBlockByNumber"))
	assert.Equal(t, 0, n.count("eth_gasPrice"))
}

func TestGasNonceKeepsExplicitFields(t *testing.T) {
	n := feeNode("0x64")
	h, ctx := rooted(NewChain(NewGasNonce(), NewFormatting()), n.handle)

	nonce, gas := uint64(3), uint64(100000)
	args := &TxArgs{From: &sender, To: &recipient, Nonce: &nonce, Gas: &gas, GasPrice: big.NewInt(9)}
	_, err := h(ctx, transport.NewRequest(1, "eth_sendTransaction", args))
	require.NoError(t, err)

	tx := sentTx(t, n)
	assert.Equal(t, "0x3", tx["nonce"])
	assert.Equal(t, "0x186a0", tx["gas"])
	assert.Equal(t, "0x9", tx["gasPrice"])
	assert.Len(t, n.calls, 1, "a complete transaction needs no lookups")
	assert.Nil(t, args.Value, "the caller's transaction is not modified")
}

func TestGasNoncePartialDynamicFee(t *testing.T) {
	n := feeNode("0x64")
	h, ctx := rooted(NewChain(NewGasNonce(), NewFormatting()), n.handle)

	_, err := h(ctx, transport.NewRequest(1, "eth_sendTransaction", &TxArgs{From: &sender, MaxPriorityFeePerGas: big.NewInt(10)}))
	require.NoError(t, err)

	tx := sentTx(t, n)
	assert.Equal(t, "0xa", tx["maxPriorityFeePerGas"])
	assert.Equal(t, "0xd2", tx["maxFeePerGas"], "10 + 2*100")
	assert.Equal(t, 0, n.count("eth_maxPriorityFeePerGas"))
}

func TestGasNonceNestedCallsUseWholeChain(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	counter := Func("counter", func(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
		mu.Lock()
		seen[req.Method]++
		mu.Unlock()
		return next(ctx, req)
	})

	n := feeNode("0x64")
	h, ctx := rooted(NewChain(counter, NewGasNonce(), NewFormatting()), n.handle)
	_, err := h(ctx, transport.NewRequest(1, "eth_sendTransaction", &TxArgs{From: &sender, To: &recipient}))
	require.NoError(t, err)

	for _, m := range []string{"eth_sendTransaction", "eth_getTransactionCount", "eth_getBlockByNumber", "eth_maxPriorityFeePerGas", "eth_estimateGas"} {
		assert.Equal(t, 1, seen[m], m)
	}
}

func TestGasNonceErrors(t *testing.T) {
	t.Run("nonce needs from", func(t *testing.T) {
		n := feeNode("0x64")
		h, ctx := rooted(NewChain(NewGasNonce(), NewFormatting()), n.handle)
		_, err := h(ctx, transport.NewRequest(1, "eth_sendTransaction", &TxArgs{To: &recipient}))
		assert.ErrorContains(t, err, "needs a from address")
		assert.Equal(t, 0, n.count("eth_sendTransaction"))
	})

	t.Run("lookup failure", func(t *testing.T) {
		n := newNode(func(req *transport.Request) (*transport.Response, error) {
			return fail(req, -32000, "nonce unavailable")
		})
		h, ctx := rooted(NewChain(NewGasNonce(), NewFormatting()), n.handle)
		_, err := h(ctx, transport.NewRequest(1, "eth_sendTransaction", &TxArgs{From: &sender}))
		var rpcErr *transport.RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, "nonce unavailable", rpcErr.Message)
	})

	t.Run("mixed fees", func(t *testing.T) {
		n := feeNode("0x64")
		h, ctx := rooted(NewChain(NewGasNonce()), n.handle)
		_, err := h(ctx, transport.NewRequest(1, "eth_sendTransaction", &TxArgs{GasPrice: big.NewInt(1), MaxFeePerGas: big.NewInt(1)}))
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestGasNonceIgnoresOtherMethods(t *testing.T) {
	n := feeNode("0x64")
	h, ctx := rooted(NewChain(NewGasNonce()), n.handle)
	_, err := h(ctx, transport.NewRequest(1, "eth_call", map[string]any{"to": recipient.Hex()}))
	require.NoError(t, err)
	assert.Len(t, n.calls, 1)
}
