// Package chain is the typed JSON-RPC method layer for EVM chains. Every
// method goes through a client.Executor, so the client's middleware chain
// (validation, caching, retry, formatting) applies to each call.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Mohsinsiddi/w3kit/internal/client"
	"github.com/Mohsinsiddi/w3kit/internal/middleware"
)

var (
	// ErrNotFound is returned when the node answers null for a block,
	// transaction or receipt.
	ErrNotFound = errors.New("not found")
	// ErrTxFailed is returned by WaitForReceipt for a mined transaction
	// whose status is 0.
	ErrTxFailed = errors.New("transaction failed")
)

// DefaultPollInterval is the receipt polling interval used when
// WaitForReceipt is given zero.
const DefaultPollInterval = 2 * time.Second

// EVMClient is a typed JSON-RPC client for EVM chains.
type EVMClient struct {
	exec client.Executor
}

// NewEVMClient returns a method layer over exec.
func NewEVMClient(exec client.Executor) *EVMClient {
	return &EVMClient{exec: exec}
}

// Executor returns the executor calls are sent through.
func (c *EVMClient) Executor() client.Executor { return c.exec }

// ChainID returns the chain id reported by eth_chainId.
func (c *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "eth_chainId")
}

// BlockNumber returns the latest block number.
func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "eth_blockNumber")
}

// GasPrice returns the legacy gas price in wei.
func (c *EVMClient) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "eth_gasPrice")
}

// MaxPriorityFeePerGas returns the node's suggested EIP-1559 tip in wei.
func (c *EVMClient) MaxPriorityFeePerGas(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "eth_maxPriorityFeePerGas")
}

// GetBalance returns the native balance of addr in wei. block is a tag,
// a number or nil for latest.
func (c *EVMClient) GetBalance(ctx context.Context, addr common.Address, block any) (*big.Int, error) {
	tag, err := middleware.BlockParam(block)
	if err != nil {
		return nil, err
	}
	return c.callBig(ctx, "eth_getBalance", addr.Hex(), tag)
}

// GetTransactionCount returns the nonce of addr at block. Use "pending" to
// include queued transactions.
func (c *EVMClient) GetTransactionCount(ctx context.Context, addr common.Address, block any) (uint64, error) {
	tag, err := middleware.BlockParam(block)
	if err != nil {
		return 0, err
	}
	return c.callUint64(ctx, "eth_getTransactionCount", addr.Hex(), tag)
}

// GetCode returns the deployed bytecode at addr, empty for an EOA.
func (c *EVMClient) GetCode(ctx context.Context, addr common.Address, block any) ([]byte, error) {
	tag, err := middleware.BlockParam(block)
	if err != nil {
		return nil, err
	}
	return c.callBytes(ctx, "eth_getCode", addr.Hex(), tag)
}

// GetStorageAt returns the 32-byte storage word at slot.
func (c *EVMClient) GetStorageAt(ctx context.Context, addr common.Address, slot *big.Int, block any) (common.Hash, error) {
	tag, err := middleware.BlockParam(block)
	if err != nil {
		return common.Hash{}, err
	}
	b, err := c.callBytes(ctx, "eth_getStorageAt", addr.Hex(), hexutil.EncodeBig(slot), tag)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) > common.HashLength {
		return common.Hash{}, fmt.Errorf("eth_getStorageAt: %d-byte word", len(b))
	}
	return common.BytesToHash(b), nil
}

// Call executes msg against block without creating a transaction and
// returns the raw return data.
func (c *EVMClient) Call(ctx context.Context, msg *middleware.TxArgs, block any) ([]byte, error) {
	tag, err := middleware.BlockParam(block)
	if err != nil {
		return nil, err
	}
	return c.callBytes(ctx, "eth_call", msg, tag)
}

// EstimateGas returns the gas tx would use at the pending state.
func (c *EVMClient) EstimateGas(ctx context.Context, tx *middleware.TxArgs) (uint64, error) {
	return c.callUint64(ctx, "eth_estimateGas", tx)
}

// SendTransaction submits tx through eth_sendTransaction. Missing gas,
// nonce and fees are filled by the gas/nonce stage; local accounts are
// signed by the signing stage.
func (c *EVMClient) SendTransaction(ctx context.Context, tx *middleware.TxArgs) (common.Hash, error) {
	return c.callHash(ctx, "eth_sendTransaction", tx)
}

// SendRawTransaction broadcasts a signed, RLP-encoded transaction.
func (c *EVMClient) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	return c.callHash(ctx, "eth_sendRawTransaction", hexutil.Encode(raw))
}

// GetTransactionByHash fetches a transaction. Pending transactions have a
// nil BlockNumber.
func (c *EVMClient) GetTransactionByHash(ctx context.Context, hash common.Hash) (*Transaction, error) {
	var tx Transaction
	if err := c.call(ctx, &tx, "eth_getTransactionByHash", hash.Hex()); err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetTransactionReceipt fetches the receipt of a mined transaction. It
// returns ErrNotFound while the transaction is pending or unknown.
func (c *EVMClient) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var r Receipt
	if err := c.call(ctx, &r, "eth_getTransactionReceipt", hash.Hex()); err != nil {
		return nil, err
	}
	return &r, nil
}

// WaitForReceipt polls for the receipt of hash every poll until it is mined
// or ctx ends. A mined receipt with status 0 is returned along with an error
// wrapping ErrTxFailed.
func (c *EVMClient) WaitForReceipt(ctx context.Context, hash common.Hash, poll time.Duration) (*Receipt, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		receipt, err := c.GetTransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if !receipt.Succeeded() {
				return receipt, fmt.Errorf("%w (hash: %s)", ErrTxFailed, hash.Hex())
			}
			return receipt, nil
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// GetBlockByNumber fetches a block by tag or number. With full set the
// block carries transaction objects, otherwise only their hashes.
func (c *EVMClient) GetBlockByNumber(ctx context.Context, block any, full bool) (*Block, error) {
	tag, err := middleware.BlockParam(block)
	if err != nil {
		return nil, err
	}
	var b Block
	if err := c.call(ctx, &b, "eth_getBlockByNumber", tag, full); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBlockByHash fetches a block by hash.
func (c *EVMClient) GetBlockByHash(ctx context.Context, hash common.Hash, full bool) (*Block, error) {
	var b Block
	if err := c.call(ctx, &b, "eth_getBlockByHash", hash.Hex(), full); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetLogs returns the logs matching q.
func (c *EVMClient) GetLogs(ctx context.Context, q middleware.FilterArgs) ([]Log, error) {
	var logs []Log
	if err := c.call(ctx, &logs, "eth_getLogs", &q); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return logs, nil
}

// Ping measures the round-trip time of eth_blockNumber and returns the
// block number it reported.
func (c *EVMClient) Ping(ctx context.Context) (latency time.Duration, blockNum uint64, err error) {
	start := time.Now()
	blockNum, err = c.BlockNumber(ctx)
	return time.Since(start), blockNum, err
}

// ---------------------------------------------------------------------------
// result decoding
// ---------------------------------------------------------------------------

// call runs method and decodes its result into out. A null result is
// reported as ErrNotFound.
func (c *EVMClient) call(ctx context.Context, out any, method string, params ...any) error {
	raw, err := c.exec.Call(ctx, method, params...)
	if err != nil {
		return err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%s: %w", method, ErrNotFound)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing %s result: %w", method, err)
	}
	return nil
}

func (c *EVMClient) callBig(ctx context.Context, method string, params ...any) (*big.Int, error) {
	var n hexutil.Big
	if err := c.call(ctx, &n, method, params...); err != nil {
		return nil, err
	}
	return n.ToInt(), nil
}

func (c *EVMClient) callUint64(ctx context.Context, method string, params ...any) (uint64, error) {
	var n hexutil.Uint64
	if err := c.call(ctx, &n, method, params...); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func (c *EVMClient) callBytes(ctx context.Context, method string, params ...any) ([]byte, error) {
	var b hexutil.Bytes
	if err := c.call(ctx, &b, method, params...); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *EVMClient) callHash(ctx context.Context, method string, params ...any) (common.Hash, error) {
	var h common.Hash
	err := c.call(ctx, &h, method, params...)
	return h, err
}

// ---------------------------------------------------------------------------
// unit helpers
// ---------------------------------------------------------------------------

// WeiToETH converts wei to an ETH decimal string with 18 fractional digits.
func WeiToETH(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return FormatUnits(wei, 18)
}

// FormatUnits renders raw as a decimal with the given number of fractional
// digits, e.g. an ERC-20 balance and its decimals().
func FormatUnits(raw *big.Int, decimals int) string {
	if raw == nil {
		return "0"
	}
	if decimals <= 0 {
		return raw.String()
	}
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	q, r := new(big.Int).QuoRem(new(big.Int).Abs(raw), div, new(big.Int))
	sign := ""
	if raw.Sign() < 0 {
		sign = "-"
	}
	frac := r.String()
	return sign + q.String() + "." + strings.Repeat("0", decimals-len(frac)) + frac
}

// ParseUnits is the inverse of FormatUnits: "1.5" with 18 decimals is
// 1500000000000000000. More fractional digits than decimals is an error.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if (whole == "" && frac == "") || !digits(whole) || !digits(frac) {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	n, ok := new(big.Int).SetString(whole+frac+strings.Repeat("0", decimals-len(frac)), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

func digits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var unitDecimals = map[string]int{"wei": 0, "gwei": 9, "ether": 18, "eth": 18}

// ParseValue reads an amount of wei written as a plain integer or with a
// unit suffix: "1000", "20gwei", "0.5ether".
func ParseValue(s string) (*big.Int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, unit := range []string{"gwei", "ether", "eth", "wei"} {
		if num, ok := strings.CutSuffix(s, unit); ok {
			return ParseUnits(num, unitDecimals[unit])
		}
	}
	return ParseUnits(s, 0)
}
