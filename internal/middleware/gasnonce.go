package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// GasPriceStrategy chooses a legacy gas price for tx. Returning a nil price
// falls back to the node's fee suggestions.
type GasPriceStrategy func(ctx context.Context, tx *TxArgs) (*big.Int, error)

// FixedGasPrice always returns price.
func FixedGasPrice(price *big.Int) GasPriceStrategy {
	return func(context.Context, *TxArgs) (*big.Int, error) { return new(big.Int).Set(price), nil }
}

type gasNonce struct {
	strategy GasPriceStrategy
}

// GasNonceOption configures NewGasNonce.
type GasNonceOption func(*gasNonce)

// WithGasPriceStrategy overrides how a legacy gas price is chosen.
func WithGasPriceStrategy(s GasPriceStrategy) GasNonceOption {
	return func(g *gasNonce) { g.strategy = s }
}

// NewGasNonce fills gas, nonce and fee fields missing from
// eth_sendTransaction requests. Lookups are nested calls through the root
// chain, so they are validated, cached and retried like any other call.
func NewGasNonce(opts ...GasNonceOption) Middleware {
	g := &gasNonce{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *gasNonce) Name() string { return NameGasNonce }

func (g *gasNonce) Process(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
	if req.Method != "eth_sendTransaction" || len(req.Params) != 1 {
		return next(ctx, req)
	}
	orig, err := ToTxArgs(req.Params[0])
	if err != nil {
		return nil, &ValidationError{Method: req.Method, Err: err}
	}
	if err := orig.Check(); err != nil {
		return nil, &ValidationError{Method: req.Method, Err: err}
	}

	tx := orig.Clone()
	if err := g.fill(ctx, tx); err != nil {
		return nil, fmt.Errorf("filling transaction: %w", err)
	}
	return next(ctx, cloneRequest(req, []any{tx}))
}

func (g *gasNonce) fill(ctx context.Context, tx *TxArgs) error {
	if tx.Value == nil {
		tx.Value = new(big.Int)
	}
	if tx.Data == nil {
		tx.Data = []byte{}
	}

	if tx.Nonce == nil {
		if tx.From == nil {
			return fmt.Errorf("nonce lookup needs a from address")
		}
		n, err := callUint64(ctx, "eth_getTransactionCount", tx.From.Hex(), "pending")
		if err != nil {
			return fmt.Errorf("nonce: %w", err)
		}
		tx.Nonce = &n
	}

	if err := g.fillFees(ctx, tx); err != nil {
		return fmt.Errorf("fees: %w", err)
	}

	if tx.Gas == nil {
		gas, err := callUint64(ctx, "eth_estimateGas", tx)
		if err != nil {
			return fmt.Errorf("gas: %w", err)
		}
		tx.Gas = &gas
	}
	return nil
}

// fillFees applies the default fee policy: an explicit strategy wins; on a
// chain with a base fee maxFeePerGas = tip + 2*baseFee; otherwise the
// node's legacy gas price.
func (g *gasNonce) fillFees(ctx context.Context, tx *TxArgs) error {
	if tx.GasPrice != nil || (tx.MaxFeePerGas != nil && tx.MaxPriorityFeePerGas != nil) {
		return nil
	}

	if g.strategy != nil && !tx.DynamicFee() {
		price, err := g.strategy(ctx, tx)
		if err != nil {
			return err
		}
		if price != nil {
			tx.GasPrice = price
			return nil
		}
	}

	baseFee, err := latestBaseFee(ctx)
	if err != nil {
		return err
	}
	if baseFee == nil {
		if tx.DynamicFee() {
			return fmt.Errorf("node reports no base fee for a dynamic fee transaction")
		}
		price, err := callQuantity(ctx, "eth_gasPrice")
		if err != nil {
			return err
		}
		tx.GasPrice = price
		return nil
	}

	if tx.MaxPriorityFeePerGas == nil {
		tip, err := callQuantity(ctx, "eth_maxPriorityFeePerGas")
		if err != nil {
			return err
		}
		tx.MaxPriorityFeePerGas = tip
	}
	if tx.MaxFeePerGas == nil {
		fee := new(big.Int).Mul(baseFee, big.NewInt(2))
		tx.MaxFeePerGas = fee.Add(fee, tx.MaxPriorityFeePerGas)
	}
	return nil
}

func latestBaseFee(ctx context.Context) (*big.Int, error) {
	raw, err := Call(ctx, "eth_getBlockByNumber", "latest", false)
	if err != nil {
		return nil, err
	}
	var block struct {
		BaseFeePerGas *hexutil.Big `json:"baseFeePerGas"`
	}
	if string(raw) == "null" {
		return nil, fmt.Errorf("latest block not found")
	}
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("decoding latest block: %w", err)
	}
	return (*big.Int)(block.BaseFeePerGas), nil
}

func callQuantity(ctx context.Context, method string, params ...any) (*big.Int, error) {
	raw, err := Call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	return decodeQuantity(raw)
}

func callUint64(ctx context.Context, method string, params ...any) (uint64, error) {
	n, err := callQuantity(ctx, method, params...)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("%s returned %s, which overflows uint64", method, n)
	}
	return n.Uint64(), nil
}

func decodeQuantity(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: want hex quantity, got %s", ErrMalformedResult, raw)
	}
	return quantity(s)
}
