package middleware

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
)

// TxArgs is a transaction object as accepted by eth_call, eth_estimateGas
// and eth_sendTransaction. Nil fields are omitted from the wire form.
type TxArgs struct {
	From                 *common.Address
	To                   *common.Address
	Gas                  *uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Value                *big.Int
	Data                 []byte
	Nonce                *uint64
	ChainID              *big.Int
	Type                 *uint64
	AccessList           types.AccessList
}

// DynamicFee reports whether either EIP-1559 fee field is set.
func (a *TxArgs) DynamicFee() bool {
	return a.MaxFeePerGas != nil || a.MaxPriorityFeePerGas != nil
}

// Clone returns a shallow copy with its own Data slice.
func (a *TxArgs) Clone() *TxArgs {
	out := *a
	if a.Data != nil {
		out.Data = append([]byte(nil), a.Data...)
	}
	return &out
}

// Check rejects a transaction that mixes a legacy gas price with dynamic
// fee fields or declares a type that contradicts its fee fields.
func (a *TxArgs) Check() error {
	if a.GasPrice != nil && a.DynamicFee() {
		return fmt.Errorf("both gasPrice and (maxFeePerGas or maxPriorityFeePerGas) specified")
	}
	if a.Type != nil && *a.Type == types.DynamicFeeTxType && a.GasPrice != nil {
		return fmt.Errorf("type 0x2 transaction with gasPrice")
	}
	if a.Type != nil && *a.Type == types.LegacyTxType && a.DynamicFee() {
		return fmt.Errorf("legacy transaction with dynamic fee fields")
	}
	return nil
}

// Wire returns the canonical JSON-RPC form: camelCase keys, hex quantities
// and checksummed addresses. Dynamic fee fields imply type 0x2.
func (a *TxArgs) Wire() map[string]any {
	m := make(map[string]any)
	if a.From != nil {
		m["from"] = a.From.Hex()
	}
	if a.To != nil {
		m["to"] = a.To.Hex()
	}
	if a.Gas != nil {
		m["gas"] = hexutil.EncodeUint64(*a.Gas)
	}
	if a.GasPrice != nil {
		m["gasPrice"] = hexutil.EncodeBig(a.GasPrice)
	}
	if a.MaxFeePerGas != nil {
		m["maxFeePerGas"] = hexutil.EncodeBig(a.MaxFeePerGas)
	}
	if a.MaxPriorityFeePerGas != nil {
		m["maxPriorityFeePerGas"] = hexutil.EncodeBig(a.MaxPriorityFeePerGas)
	}
	if a.Value != nil {
		m["value"] = hexutil.EncodeBig(a.Value)
	}
	if a.Data != nil {
		m["data"] = hexutil.Encode(a.Data)
	}
	if a.Nonce != nil {
		m["nonce"] = hexutil.EncodeUint64(*a.Nonce)
	}
	if a.ChainID != nil {
		m["chainId"] = hexutil.EncodeBig(a.ChainID)
	}
	switch {
	case a.Type != nil:
		m["type"] = hexutil.EncodeUint64(*a.Type)
	case a.DynamicFee():
		m["type"] = hexutil.EncodeUint64(types.DynamicFeeTxType)
	}
	if a.AccessList != nil {
		m["accessList"] = a.AccessList
	}
	return m
}

// MarshalJSON encodes the wire form.
func (a *TxArgs) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Wire())
}

// ToTxArgs converts a transaction param in any accepted shape: *TxArgs,
// TxArgs, or a map keyed by the JSON-RPC field names whose values are
// native Go values or hex strings.
func ToTxArgs(raw any) (*TxArgs, error) {
	switch v := raw.(type) {
	case *TxArgs:
		if v == nil {
			return nil, fmt.Errorf("nil transaction")
		}
		return v, nil
	case TxArgs:
		return &v, nil
	case map[string]any:
		return txArgsFromMap(v)
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return txArgsFromMap(m)
	}
	return nil, fmt.Errorf("unsupported transaction type %T", raw)
}

func txArgsFromMap(m map[string]any) (*TxArgs, error) {
	a := &TxArgs{}
	for key, raw := range m {
		if raw == nil {
			continue
		}
		var err error
		switch key {
		case "from":
			a.From, err = addressPtr(raw)
		case "to":
			a.To, err = addressPtr(raw)
		case "gas":
			a.Gas, err = uint64Ptr(raw)
		case "gasPrice":
			a.GasPrice, err = quantity(raw)
		case "maxFeePerGas":
			a.MaxFeePerGas, err = quantity(raw)
		case "maxPriorityFeePerGas":
			a.MaxPriorityFeePerGas, err = quantity(raw)
		case "value":
			a.Value, err = quantity(raw)
		case "data", "input":
			a.Data, err = data(raw)
		case "nonce":
			a.Nonce, err = uint64Ptr(raw)
		case "chainId":
			a.ChainID, err = quantity(raw)
		case "type":
			a.Type, err = uint64Ptr(raw)
		case "accessList":
			al, ok := raw.(types.AccessList)
			if !ok {
				err = fmt.Errorf("want types.AccessList, got %T", raw)
			}
			a.AccessList = al
		default:
			err = fmt.Errorf("unknown field")
		}
		if err != nil {
			return nil, fmt.Errorf("transaction field %q: %w", key, err)
		}
	}
	return a, nil
}

// FilterArgs is the eth_getLogs filter object. FromBlock and ToBlock take
// the same shapes as a block parameter.
type FilterArgs struct {
	FromBlock any
	ToBlock   any
	BlockHash *common.Hash
	Addresses []common.Address
	Topics    [][]common.Hash
}

// Wire returns the canonical JSON-RPC filter object.
func (f *FilterArgs) Wire() (map[string]any, error) {
	if f.BlockHash != nil && (f.FromBlock != nil || f.ToBlock != nil) {
		return nil, fmt.Errorf("blockHash cannot be combined with fromBlock/toBlock")
	}
	m := make(map[string]any)
	if f.BlockHash != nil {
		m["blockHash"] = f.BlockHash.Hex()
	}
	for key, raw := range map[string]any{"fromBlock": f.FromBlock, "toBlock": f.ToBlock} {
		if raw == nil {
			continue
		}
		tag, err := BlockParam(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		m[key] = tag
	}
	switch len(f.Addresses) {
	case 0:
	case 1:
		m["address"] = f.Addresses[0].Hex()
	default:
		addrs := make([]string, len(f.Addresses))
		for i, a := range f.Addresses {
			addrs[i] = a.Hex()
		}
		m["address"] = addrs
	}
	if len(f.Topics) > 0 {
		topics := make([]any, len(f.Topics))
		for i, alts := range f.Topics {
			switch len(alts) {
			case 0:
				topics[i] = nil
			case 1:
				topics[i] = alts[0].Hex()
			default:
				hs := make([]string, len(alts))
				for j, h := range alts {
					hs[j] = h.Hex()
				}
				topics[i] = hs
			}
		}
		m["topics"] = topics
	}
	return m, nil
}

// MarshalJSON encodes the wire form.
func (f *FilterArgs) MarshalJSON() ([]byte, error) {
	m, err := f.Wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// ---------------------------------------------------------------------------
// scalar conversions
// ---------------------------------------------------------------------------

var uint256Type = abi.UintType(256)

// quantity accepts anything abi.Coerce takes for uint256, plus canonical or
// zero-padded 0x hex strings.
func quantity(raw any) (*big.Int, error) {
	if s, ok := raw.(string); ok && has0x(s) {
		n, ok := parseHexQuantity(s)
		if !ok {
			return nil, fmt.Errorf("invalid hex quantity %q", s)
		}
		if n.BitLen() > 256 {
			return nil, fmt.Errorf("quantity %q exceeds 256 bits", s)
		}
		return n, nil
	}
	v, err := abi.Coerce(uint256Type, raw)
	if err != nil {
		return nil, err
	}
	return v.Data.(*big.Int), nil
}

func uint64Ptr(raw any) (*uint64, error) {
	n, err := quantity(raw)
	if err != nil {
		return nil, err
	}
	if !n.IsUint64() {
		return nil, fmt.Errorf("%s overflows uint64", n)
	}
	u := n.Uint64()
	return &u, nil
}

func addressPtr(raw any) (*common.Address, error) {
	switch v := raw.(type) {
	case *common.Address:
		if v == nil {
			return nil, fmt.Errorf("nil address")
		}
		return v, nil
	case common.Address:
		return &v, nil
	case string:
		a, err := abi.ParseAddress(v)
		if err != nil {
			return nil, err
		}
		return &a, nil
	}
	return nil, fmt.Errorf("unsupported address type %T", raw)
}

func data(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case hexutil.Bytes:
		return v, nil
	case string:
		if !has0x(v) {
			return nil, fmt.Errorf("data %q lacks 0x prefix", v)
		}
		return hexutil.Decode(v)
	}
	return nil, fmt.Errorf("unsupported data type %T", raw)
}

func hash(raw any) (common.Hash, error) {
	switch v := raw.(type) {
	case common.Hash:
		return v, nil
	case *common.Hash:
		if v == nil {
			return common.Hash{}, fmt.Errorf("nil hash")
		}
		return *v, nil
	case []byte:
		if len(v) != common.HashLength {
			return common.Hash{}, fmt.Errorf("hash must be 32 bytes, got %d", len(v))
		}
		return common.BytesToHash(v), nil
	case string:
		b, err := data(v)
		if err != nil {
			return common.Hash{}, err
		}
		if len(b) != common.HashLength {
			return common.Hash{}, fmt.Errorf("hash must be 32 bytes, got %d", len(b))
		}
		return common.BytesToHash(b), nil
	}
	return common.Hash{}, fmt.Errorf("unsupported hash type %T", raw)
}

// BlockTags are the named block parameters a node understands.
var BlockTags = map[string]bool{
	"latest":    true,
	"earliest":  true,
	"pending":   true,
	"safe":      true,
	"finalized": true,
}

// BlockParam returns a block tag or a hex quantity. Nil means latest.
func BlockParam(raw any) (string, error) {
	if raw == nil {
		return "latest", nil
	}
	if s, ok := raw.(string); ok && BlockTags[s] {
		return s, nil
	}
	if s, ok := raw.(string); ok && !has0x(s) && !isDecimal(s) {
		return "", fmt.Errorf("invalid block tag %q", s)
	}
	n, err := quantity(raw)
	if err != nil {
		return "", fmt.Errorf("invalid block number: %w", err)
	}
	return hexutil.EncodeBig(n), nil
}

func has0x(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// parseHexQuantity parses "0x" followed by one or more hex digits. Signs
// are rejected; big.Int.SetString would accept them.
func parseHexQuantity(s string) (*big.Int, bool) {
	if !has0x(s) || len(s) == 2 {
		return nil, false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return nil, false
		}
	}
	return new(big.Int).SetString(s[2:], 16)
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
