package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// ErrMalformedResult matches results that do not have the shape the method promises.
var ErrMalformedResult = errors.New("malformed result")

// ExecutionError is an RPC error reporting that the EVM reverted. Reason is
// the decoded payload (an *abi.RevertError, *abi.PanicError or
// *abi.OffchainLookupError) or nil for custom errors, which callers decode
// from Data against their contract ABI.
type ExecutionError struct {
	RPC    *transport.RPCError
	Data   []byte
	Reason error
}

func (e *ExecutionError) Error() string {
	if e.Reason != nil {
		return e.Reason.Error()
	}
	if len(e.Data) >= 4 {
		return fmt.Sprintf("execution reverted: custom error %s", hexutil.Encode(e.Data[:4]))
	}
	return e.RPC.Message
}

func (e *ExecutionError) Unwrap() []error {
	errs := []error{e.RPC, abi.ErrReverted}
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	return errs
}

// quantityResults are methods whose result is a single hex quantity.
var quantityResults = map[string]bool{
	"eth_chainId":                          true,
	"eth_blockNumber":                      true,
	"eth_gasPrice":                         true,
	"eth_maxPriorityFeePerGas":             true,
	"eth_getBalance":                       true,
	"eth_getTransactionCount":              true,
	"eth_estimateGas":                      true,
	"eth_blobBaseFee":                      true,
	"net_peerCount":                        true,
	"eth_getBlockTransactionCountByNumber": true,
}

// dataResults are methods whose result is 0x-prefixed bytes.
var dataResults = map[string]bool{
	"eth_call":               true,
	"eth_getCode":            true,
	"eth_getStorageAt":       true,
	"eth_sendTransaction":    true,
	"eth_sendRawTransaction": true,
	"eth_sign":               true,
}

type formatting struct{}

// NewFormatting normalizes params to their wire form on the way out, and on
// the way back turns error envelopes into Go errors and canonicalizes
// scalar results.
func NewFormatting() Middleware { return formatting{} }

func (formatting) Name() string { return NameFormatting }

func (formatting) Process(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
	params, err := formatParams(req.Method, req.Params)
	if err != nil {
		return nil, &ValidationError{Method: req.Method, Err: err}
	}

	resp, err := next(ctx, cloneRequest(req, params))
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, FormatRPCError(resp.Error)
	}

	result, err := canonicalResult(req.Method, resp.Result)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Method, err)
	}
	out := *resp
	out.Result = result
	return &out, nil
}

// FormatRPCError converts an error envelope into the most specific Go
// error: an *ExecutionError for reverts, the *transport.RPCError otherwise.
func FormatRPCError(rpcErr *transport.RPCError) error {
	if !isRevert(rpcErr) {
		return rpcErr
	}
	payload := revertData(rpcErr.Data)
	reason := abi.UnpackRevert(payload)
	if reason == nil && len(payload) == 0 {
		msg := rpcErr.Message
		if i := strings.Index(msg, "execution reverted: "); i >= 0 {
			reason = &abi.RevertError{Reason: msg[i+len("execution reverted: "):]}
		} else {
			reason = &abi.RevertError{}
		}
	}
	return &ExecutionError{RPC: rpcErr, Data: payload, Reason: reason}
}

func isRevert(e *transport.RPCError) bool {
	return e.Code == 3 || strings.HasPrefix(e.Message, "execution reverted") ||
		strings.Contains(e.Message, "VM Exception while processing transaction: revert")
}

// revertData accepts the payload as a hex string or as an object with a
// "data" field, both of which nodes use.
func revertData(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var obj struct {
			Data string `json:"data"`
		}
		if json.Unmarshal(raw, &obj) != nil {
			return nil
		}
		s = obj.Data
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil
	}
	return b
}

func canonicalResult(method string, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return raw, nil
	}
	switch {
	case quantityResults[method]:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: want hex quantity, got %s", ErrMalformedResult, raw)
		}
		n, ok := parseHexQuantity(s)
		if !ok {
			return nil, fmt.Errorf("%w: want hex quantity, got %s", ErrMalformedResult, raw)
		}
		return json.Marshal(hexutil.EncodeBig(n))
	case dataResults[method]:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: want hex data, got %s", ErrMalformedResult, raw)
		}
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
		}
		return json.Marshal(hexutil.Encode(b))
	}
	return raw, nil
}
