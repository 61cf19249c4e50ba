package middleware

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type paramKind int

const (
	paramAny paramKind = iota
	paramAddress
	paramQuantity
	paramBlock
	paramData
	paramHash
	paramTx
	paramFilter
	paramBool
)

// methodParams lists the positional parameter kinds of the methods whose
// params are validated and normalized. Methods not listed pass through.
var methodParams = map[string][]paramKind{
	"eth_getBalance":                       {paramAddress, paramBlock},
	"eth_getTransactionCount":              {paramAddress, paramBlock},
	"eth_getCode":                          {paramAddress, paramBlock},
	"eth_getStorageAt":                     {paramAddress, paramQuantity, paramBlock},
	"eth_call":                             {paramTx, paramBlock},
	"eth_estimateGas":                      {paramTx, paramBlock},
	"eth_sendTransaction":                  {paramTx},
	"eth_sendRawTransaction":               {paramData},
	"eth_getTransactionByHash":             {paramHash},
	"eth_getTransactionReceipt":            {paramHash},
	"eth_getBlockByNumber":                 {paramBlock, paramBool},
	"eth_getBlockByHash":                   {paramHash, paramBool},
	"eth_getBlockTransactionCountByNumber": {paramBlock},
	"eth_getLogs":                          {paramFilter},
	"eth_feeHistory":                       {paramQuantity, paramBlock, paramAny},
	"eth_sign":                             {paramAddress, paramData},
}

// optionalTrailing is the number of trailing params a method may omit.
var optionalTrailing = map[string]int{
	"eth_call":        1,
	"eth_estimateGas": 1,
}

// formatParams converts every param of a known method to its wire form.
// The first failure is reported with the param position.
func formatParams(method string, params []any) ([]any, error) {
	kinds, ok := methodParams[method]
	if !ok {
		return params, nil
	}
	if len(params) > len(kinds) || len(params) < len(kinds)-optionalTrailing[method] {
		return nil, fmt.Errorf("%s takes %d params, got %d", method, len(kinds), len(params))
	}
	out := make([]any, len(params))
	for i, raw := range params {
		v, err := formatParam(kinds[i], raw)
		if err != nil {
			return nil, fmt.Errorf("%s param %d: %w", method, i, err)
		}
		out[i] = v
	}
	return out, nil
}

func formatParam(kind paramKind, raw any) (any, error) {
	switch kind {
	case paramAddress:
		a, err := addressPtr(raw)
		if err != nil {
			return nil, err
		}
		return a.Hex(), nil
	case paramQuantity:
		n, err := quantity(raw)
		if err != nil {
			return nil, err
		}
		return hexutil.EncodeBig(n), nil
	case paramBlock:
		return BlockParam(raw)
	case paramData:
		b, err := data(raw)
		if err != nil {
			return nil, err
		}
		return hexutil.Encode(b), nil
	case paramHash:
		h, err := hash(raw)
		if err != nil {
			return nil, err
		}
		return h.Hex(), nil
	case paramTx:
		a, err := ToTxArgs(raw)
		if err != nil {
			return nil, err
		}
		if err := a.Check(); err != nil {
			return nil, err
		}
		return a.Wire(), nil
	case paramFilter:
		switch f := raw.(type) {
		case *FilterArgs:
			return f.Wire()
		case FilterArgs:
			return f.Wire()
		case map[string]any:
			return filterFromMap(f)
		}
		return nil, fmt.Errorf("unsupported filter type %T", raw)
	case paramBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", raw)
		}
		return b, nil
	}
	return raw, nil
}

// filterFromMap checks the address and block fields of a raw filter map and
// passes topics through.
func filterFromMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case "fromBlock", "toBlock":
			tag, err := BlockParam(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = tag
		case "address":
			switch a := v.(type) {
			case []string:
				addrs := make([]string, len(a))
				for i, s := range a {
					p, err := addressPtr(s)
					if err != nil {
						return nil, fmt.Errorf("address[%d]: %w", i, err)
					}
					addrs[i] = p.Hex()
				}
				out[k] = addrs
			default:
				p, err := addressPtr(v)
				if err != nil {
					return nil, fmt.Errorf("address: %w", err)
				}
				out[k] = p.Hex()
			}
		case "blockHash":
			h, err := hash(v)
			if err != nil {
				return nil, fmt.Errorf("blockHash: %w", err)
			}
			out[k] = h.Hex()
		case "topics":
			out[k] = v
		default:
			return nil, fmt.Errorf("unknown filter field %q", k)
		}
	}
	return out, nil
}
