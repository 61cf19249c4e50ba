package contract_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/client"
	"github.com/Mohsinsiddi/w3kit/internal/contract"
	"github.com/Mohsinsiddi/w3kit/internal/middleware"
	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// node answers eth_call by calldata selector and records every request.
type node struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests map[string][][]json.RawMessage
}

func newNode(t *testing.T, handle func(method string, params []json.RawMessage) (any, *transport.RPCError)) *node {
	t.Helper()
	n := &node{requests: make(map[string][][]json.RawMessage)}
	n.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		n.mu.Lock()
		n.requests[req.Method] = append(n.requests[req.Method], req.Params)
		n.mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if result, rpcErr := handle(req.Method, req.Params); rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *node) sent(method string) [][]json.RawMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requests[method]
}

func (n *node) evm(t *testing.T) *chain.EVMClient {
	t.Helper()
	log, _ := test.NewNullLogger()
	c, err := client.Dial(context.Background(), n.srv.URL, client.Options{
		Logger:    log,
		BaseDelay: time.Millisecond,
		MaxDelay:  2 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return chain.NewEVMClient(client.NewBlocking(c))
}

// calldata extracts the "data" field of an eth_call/eth_estimateGas object.
func calldata(t *testing.T, params []json.RawMessage) []byte {
	t.Helper()
	var tx struct {
		Data hexutil.Bytes `json:"data"`
	}
	require.NoError(t, json.Unmarshal(params[0], &tx))
	return tx.Data
}

func word(x int64) string {
	return hexutil.Encode(common.LeftPadBytes(big.NewInt(x).Bytes(), 32))
}

func revertWith(data []byte) *transport.RPCError {
	raw, _ := json.Marshal(hexutil.Encode(data))
	return &transport.RPCError{Code: 3, Message: "execution reverted", Data: raw}
}

const vaultABI = `[
  {"type":"function","name":"balanceOf","inputs":[{"name":"who","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"withdraw","inputs":[{"name":"amount","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"deposit","inputs":[],"outputs":[],"stateMutability":"payable"},
  {"type":"error","name":"Unauthorized","inputs":[{"name":"caller","type":"address"}]},
  {"type":"event","name":"Named","anonymous":false,"inputs":[
    {"name":"tag","type":"string","indexed":true},
    {"name":"value","type":"uint256","indexed":false}]}
]`

var unauthorized = append(hexutil.MustDecode("0x8e4a23d6"), common.LeftPadBytes(alice.Bytes(), 32)...)

// ---------------------------------------------------------------------------
// Call
// ---------------------------------------------------------------------------

func TestCallDecodesOutputs(t *testing.T) {
	n := newNode(t, func(method string, params []json.RawMessage) (any, *transport.RPCError) {
		return word(1_000_000), nil
	})
	c := contract.New(bob, mustRegistry(t, vaultABI), n.evm(t))

	out, err := c.Call(context.Background(), "balanceOf", alice.Hex())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, big.NewInt(1_000_000), out[0].Data)

	sent := n.sent("eth_call")
	require.Len(t, sent, 1)
	assert.Equal(t, "0x70a08231", hexutil.Encode(calldata(t, sent[0])[:4]))
	assert.JSONEq(t, `"latest"`, string(sent[0][1]))
	assert.Contains(t, strings.ToLower(string(sent[0][0])), strings.ToLower(bob.Hex()))
}

func TestCallWithBlockAndSender(t *testing.T) {
	n := newNode(t, func(string, []json.RawMessage) (any, *transport.RPCError) {
		return word(5), nil
	})
	c := contract.New(bob, mustRegistry(t, vaultABI), n.evm(t))

	from := alice
	_, err := c.CallWith(context.Background(), contract.CallOpts{From: &from, Block: uint64(17)}, "balanceOf", alice)
	require.NoError(t, err)

	sent := n.sent("eth_call")
	require.Len(t, sent, 1)
	assert.JSONEq(t, `"0x11"`, string(sent[0][1]))
	var tx map[string]string
	require.NoError(t, json.Unmarshal(sent[0][0], &tx))
	assert.Equal(t, strings.ToLower(alice.Hex()), strings.ToLower(tx["from"]))
}

func TestCallEmptyResult(t *testing.T) {
	n := newNode(t, func(string, []json.RawMessage) (any, *transport.RPCError) {
		return "0x", nil
	})
	c := contract.New(bob, mustRegistry(t, vaultABI), n.evm(t))

	_, err := c.Call(context.Background(), "balanceOf", alice)
	assert.ErrorIs(t, err, contract.ErrEmptyResult)
}

func TestCallArgumentErrorsNeverReachNode(t *testing.T) {
	n := newNode(t, func(string, []json.RawMessage) (any, *transport.RPCError) {
		return word(0), nil
	})
	c := contract.New(bob, mustRegistry(t, vaultABI), n.evm(t))

	_, err := c.Call(context.Background(), "balanceOf(address)", "0x1234")
	assert.ErrorIs(t, err, abi.ErrInvalidValue)
	_, err = c.Call(context.Background(), "nope")
	assert.ErrorIs(t, err, contract.ErrNoMatchingFunction)
	assert.Empty(t, n.sent("eth_call"))
}

// ---------------------------------------------------------------------------
// Reverts
// ---------------------------------------------------------------------------

func TestCallCustomRevert(t *testing.T) {
	n := newNode(t, func(string, []json.RawMessage) (any, *transport.RPCError) {
		return nil, revertWith(unauthorized)
	})
	c := contract.New(bob, mustRegistry(t, vaultABI), n.evm(t))

	_, err := c.Call(context.Background(), "balanceOf", alice)
	require.Error(t, err)
	assert.ErrorIs(t, err, abi.ErrReverted)

	var custom *contract.CustomRevertError
	require.True(t, errors.As(err, &custom))
	assert.Equal(t, "Unauthorized", custom.Def.Name)
	require.Len(t, custom.Args, 1)
	assert.Equal(t, alice, custom.Args[0].Data)
	assert.Equal(t, "execution reverted: Unauthorized("+alice.Hex()+")", err.Error())
}

func TestCallUnknownCustomRevert(t *testing.T) {
	payload := hexutil.MustDecode("0xdeadbeef")
	n := newNode(t, func(string, []json.RawMessage) (any, *transport.RPCError) {
		return nil, revertWith(payload)
	})
	c := contract.New(bob, mustRegistry(t, vaultABI), n.evm(t))

	_, err := c.Call(context.Background(), "balanceOf", alice)
	var exec *middleware.ExecutionError
	require.True(t, errors.As(err, &exec))
	assert.Equal(t, payload, exec.Data)
	assert.Contains(t, err.Error(), "custom error 0xdeadbeef")
}

func TestCallRevertReason(t *testing.T) {
	reason, err := abi.Pack([]abi.Type{abi.StringType()}, "paused")
	require.NoError(t, err)
	payload := append(hexutil.MustDecode("0x08c379a0"), reason...)

	n := newNode(t, func(string, []json.RawMessage) (any, *transport.RPCError) {
		return nil, revertWith(payload)
	})
	c := contract.New(bob, mustRegistry(t, vaultABI), n.evm(t))

	_, err = c.Call(context.Background(), "balanceOf", alice)
	var revert *contract.RevertError
	require.True(t, errors.As(err, &revert))
	assert.Equal(t, "paused", revert.Reason)
}

func TestEstimateGasCustomRevert(t *testing.T) {
	n := newNode(t, func(method string, params []json.RawMessage) (any, *transport.RPCError) {
		if method == "eth_estimateGas" {
			return nil, revertWith(unauthorized)
		}
		return nil, &transport.RPCError{Code: -32601, Message: "method not found"}
	})
	c := contract.New(bob, mustRegistry(t, vaultABI), n.evm(t))

	_, err := c.EstimateGas(context.Background(), contract.TransactOpts{}, "withdraw", "1")
	var custom *contract.CustomRevertError
	require.True(t, errors.As(err, &custom))
	assert.Equal(t, "Unauthorized(address)", custom.Def.Signature)
}

func TestUnpackError(t *testing.T) {
	reg := mustRegistry(t, vaultABI)

	panicData := append(hexutil.MustDecode("0x4e487b71"), common.LeftPadBytes([]byte{0x11}, 32)...)
	var p *contract.PanicError
	require.True(t, errors.As(reg.UnpackError(panicData), &p))

	var custom *contract.CustomRevertError
	require.True(t, errors.As(reg.UnpackError(unauthorized), &custom))

	assert.Nil(t, reg.UnpackError(hexutil.MustDecode("0xdeadbeef")))
	assert.Nil(t, reg.UnpackError(unauthorized[:20]))
	assert.Nil(t, reg.UnpackError(nil))
}

// ---------------------------------------------------------------------------
// Transact
// ---------------------------------------------------------------------------

func TestTransact(t *testing.T) {
	hash := "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"
	n := newNode(t, func(method string, _ []json.RawMessage) (any, *transport.RPCError) {
		if method == "eth_sendTransaction" {
			return hash, nil
		}
		return nil, &transport.RPCError{Code: -32601, Message: "method not found"}
	})
	c := contract.New(bob, mustRegistry(t, vaultABI), n.evm(t))

	from := alice
	gas, nonce := uint64(50_000), uint64(3)
	got, err := c.Transact(context.Background(), contract.TransactOpts{
		From:     &from,
		Gas:      &gas,
		Nonce:    &nonce,
		GasPrice: big.NewInt(1_000_000_000),
	}, "withdraw", "250")
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash(hash), got)

	sent := n.sent("eth_sendTransaction")
	require.Len(t, sent, 1)
	var tx map[string]string
	require.NoError(t, json.Unmarshal(sent[0][0], &tx))
	assert.Equal(t, "0xc350", tx["gas"])
	assert.Equal(t, "0x3", tx["nonce"])
	assert.Equal(t, "0x2e1a7d4d"+word(250)[2:], tx["data"])
}

func TestTransactRejects(t *testing.T) {
	n := newNode(t, func(string, []json.RawMessage) (any, *transport.RPCError) {
		return nil, &transport.RPCError{Code: -32601, Message: "method not found"}
	})
	c := contract.New(bob, mustRegistry(t, vaultABI), n.evm(t))
	ctx := context.Background()

	_, err := c.Transact(ctx, contract.TransactOpts{}, "balanceOf", alice)
	assert.ErrorContains(t, err, "use Call")

	_, err = c.Transact(ctx, contract.TransactOpts{Value: big.NewInt(1)}, "withdraw", "1")
	assert.ErrorContains(t, err, "not payable")
	assert.Empty(t, n.sent("eth_sendTransaction"))
}

// ---------------------------------------------------------------------------
// Logs
// ---------------------------------------------------------------------------

func TestFilterLogs(t *testing.T) {
	logJSON := func(addr common.Address, idx int) map[string]any {
		return map[string]any{
			"address":          addr.Hex(),
			"topics":           []string{namedTopic.Hex(), helloHash.Hex()},
			"data":             word(42),
			"blockNumber":      "0x10",
			"blockHash":        common.Hash{1}.Hex(),
			"transactionHash":  common.Hash{2}.Hex(),
			"transactionIndex": "0x0",
			"logIndex":         hexutil.EncodeUint64(uint64(idx)),
			"removed":          false,
		}
	}
	n := newNode(t, func(method string, _ []json.RawMessage) (any, *transport.RPCError) {
		if method == "eth_getLogs" {
			return []any{logJSON(bob, 0), logJSON(alice, 1)}, nil
		}
		return nil, &transport.RPCError{Code: -32601, Message: "method not found"}
	})
	c := contract.New(bob, mustRegistry(t, vaultABI), n.evm(t))

	logs, err := c.FilterLogs(context.Background(), "Named", uint64(1), "latest", "hello")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Named", logs[0].Event.Name)
	assert.Equal(t, "42", logs[0].Named()["value"].String())
	assert.Equal(t, uint64(16), logs[0].Log.BlockNumber)

	sent := n.sent("eth_getLogs")
	require.Len(t, sent, 1)
	var filter struct {
		FromBlock string     `json:"fromBlock"`
		ToBlock   string     `json:"toBlock"`
		Topics    [][]string `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(sent[0][0], &filter))
	assert.Equal(t, "0x1", filter.FromBlock)
	assert.Equal(t, "latest", filter.ToBlock)
	require.Len(t, filter.Topics, 2)
	assert.Equal(t, helloHash.Hex(), filter.Topics[1][0])

	_, err = c.FilterLogs(context.Background(), "Missing", nil, nil)
	assert.ErrorIs(t, err, contract.ErrNotInABI)
}
