package middleware

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// TxSigner signs transactions for one local account and returns the raw
// signed encoding.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) ([]byte, error)
}

type signing struct {
	chainID *big.Int
	signers map[common.Address]TxSigner
}

// NewSigning turns eth_sendTransaction requests sent from a local account
// into eth_sendRawTransaction. It must sit inside the gas/nonce stage so the
// transaction is complete by the time it is signed.
func NewSigning(chainID *big.Int, signers ...TxSigner) Middleware {
	s := &signing{chainID: chainID, signers: make(map[common.Address]TxSigner, len(signers))}
	for _, signer := range signers {
		s.signers[signer.Address()] = signer
	}
	return s
}

func (s *signing) Name() string { return NameSigning }

func (s *signing) Process(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
	if req.Method != "eth_sendTransaction" || len(req.Params) != 1 {
		return next(ctx, req)
	}
	args, err := ToTxArgs(req.Params[0])
	if err != nil || args.From == nil {
		return next(ctx, req)
	}
	signer, ok := s.signers[*args.From]
	if !ok {
		return next(ctx, req)
	}

	tx, err := s.buildTx(args)
	if err != nil {
		return nil, &ValidationError{Method: req.Method, Err: err}
	}
	raw, err := signer.SignTx(tx, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("signing transaction from %s: %w", args.From.Hex(), err)
	}

	signed := transport.NewRequest(req.ID, "eth_sendRawTransaction", hexutil.Encode(raw))
	return next(ctx, signed)
}

func (s *signing) buildTx(a *TxArgs) (*types.Transaction, error) {
	if a.Nonce == nil || a.Gas == nil {
		return nil, fmt.Errorf("transaction needs nonce and gas before signing")
	}
	if a.ChainID != nil && a.ChainID.Cmp(s.chainID) != 0 {
		return nil, fmt.Errorf("transaction chainId %s does not match signer chain %s", a.ChainID, s.chainID)
	}
	value := a.Value
	if value == nil {
		value = new(big.Int)
	}

	if a.DynamicFee() {
		if a.MaxFeePerGas == nil || a.MaxPriorityFeePerGas == nil {
			return nil, fmt.Errorf("dynamic fee transaction needs both maxFeePerGas and maxPriorityFeePerGas")
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:    s.chainID,
			Nonce:      *a.Nonce,
			GasTipCap:  a.MaxPriorityFeePerGas,
			GasFeeCap:  a.MaxFeePerGas,
			Gas:        *a.Gas,
			To:         a.To,
			Value:      value,
			Data:       a.Data,
			AccessList: a.AccessList,
		}), nil
	}
	if a.GasPrice == nil {
		return nil, fmt.Errorf("transaction needs a gas price before signing")
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    *a.Nonce,
		GasPrice: a.GasPrice,
		Gas:      *a.Gas,
		To:       a.To,
		Value:    value,
		Data:     a.Data,
	}), nil
}
