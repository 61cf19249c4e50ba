package contract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/middleware"
)

// Revert payloads decoded from built-in error selectors.
type (
	RevertError         = abi.RevertError
	PanicError          = abi.PanicError
	OffchainLookupError = abi.OffchainLookupError
)

// ErrEmptyResult is returned when a call expecting outputs gets no return
// data, which usually means there is no contract at the address.
var ErrEmptyResult = errors.New("call returned no data")

// CustomRevertError is a revert carrying one of the contract's declared
// errors.
type CustomRevertError struct {
	Def  *CustomError
	Args []abi.Value
	Data []byte
}

func (e *CustomRevertError) Error() string {
	return "execution reverted: " + e.Def.Name + "(" + strings.Join(abi.Values(e.Args).Strings(), ", ") + ")"
}

func (e *CustomRevertError) Unwrap() error { return abi.ErrReverted }

// UnpackError decodes a revert payload: Error(string), Panic(uint256) and
// OffchainLookup first, then the errors declared in the ABI. It returns nil
// when data matches none of them.
func (r *Registry) UnpackError(data []byte) error {
	if err := abi.UnpackRevert(data); err != nil {
		return err
	}
	if len(data) < 4 {
		return nil
	}
	var sel [4]byte
	copy(sel[:], data)
	def, err := r.ErrorBySelector(sel)
	if err != nil {
		return nil
	}
	args, err := abi.Decode(argTypes(def.Inputs), data[4:])
	if err != nil {
		return nil
	}
	return &CustomRevertError{Def: def, Args: args, Data: data}
}

// CallOpts tunes a read-only call.
type CallOpts struct {
	From  *common.Address
	Block any // tag or number, nil for latest
}

// TransactOpts tunes a transaction. Nil fields are filled by the gas/nonce
// stage of the client's middleware chain.
type TransactOpts struct {
	From                 *common.Address
	Value                *big.Int
	Gas                  *uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                *uint64
}

func (o TransactOpts) txArgs(to common.Address, data []byte) *middleware.TxArgs {
	return &middleware.TxArgs{
		From:                 o.From,
		To:                   &to,
		Value:                o.Value,
		Gas:                  o.Gas,
		GasPrice:             o.GasPrice,
		MaxFeePerGas:         o.MaxFeePerGas,
		MaxPriorityFeePerGas: o.MaxPriorityFeePerGas,
		Nonce:                o.Nonce,
		Data:                 data,
	}
}

// Contract binds a deployed contract's ABI to an address and a method
// layer.
type Contract struct {
	address  common.Address
	registry *Registry
	evm      *chain.EVMClient
}

// New returns a dispatcher for the contract at address.
func New(address common.Address, registry *Registry, evm *chain.EVMClient) *Contract {
	return &Contract{address: address, registry: registry, evm: evm}
}

// Address returns the contract address.
func (c *Contract) Address() common.Address { return c.address }

// Registry returns the contract's ABI registry.
func (c *Contract) Registry() *Registry { return c.registry }

// EncodeCall returns selector || encoded arguments for the function name
// resolves to.
func (c *Contract) EncodeCall(name string, args ...any) ([]byte, error) {
	_, data, err := c.pack(name, args)
	return data, err
}

func (c *Contract) pack(name string, args []any) (*Function, []byte, error) {
	fn, err := c.registry.Resolve(name, args)
	if err != nil {
		return nil, nil, err
	}
	vals, err := abi.CoerceAll(fn.InputTypes(), args)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", fn.Signature, err)
	}
	data, err := abi.EncodeWithSelector(fn.Selector, vals...)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", fn.Signature, err)
	}
	return fn, data, nil
}

// Call runs a function with eth_call at the latest block and decodes its
// outputs.
func (c *Contract) Call(ctx context.Context, name string, args ...any) ([]abi.Value, error) {
	return c.CallWith(ctx, CallOpts{}, name, args...)
}

// CallWith is Call with an explicit sender and block.
func (c *Contract) CallWith(ctx context.Context, opts CallOpts, name string, args ...any) ([]abi.Value, error) {
	fn, data, err := c.pack(name, args)
	if err != nil {
		return nil, err
	}
	out, err := c.evm.Call(ctx, &middleware.TxArgs{From: opts.From, To: &c.address, Data: data}, opts.Block)
	if err != nil {
		return nil, c.revertError(err)
	}
	if len(out) == 0 && len(fn.Outputs) > 0 {
		return nil, fmt.Errorf("%s at %s: %w", fn.Signature, c.address.Hex(), ErrEmptyResult)
	}
	vals, err := abi.Decode(fn.OutputTypes(), out)
	if err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", fn.Signature, err)
	}
	return vals, nil
}

// Transact sends a state-changing call and returns the transaction hash.
func (c *Contract) Transact(ctx context.Context, opts TransactOpts, name string, args ...any) (common.Hash, error) {
	fn, data, err := c.pack(name, args)
	if err != nil {
		return common.Hash{}, err
	}
	if fn.IsRead() {
		return common.Hash{}, fmt.Errorf("function %s is %s, use Call", fn.Signature, fn.Mutability)
	}
	if opts.Value != nil && opts.Value.Sign() > 0 && fn.Mutability != "payable" {
		return common.Hash{}, fmt.Errorf("function %s is not payable", fn.Signature)
	}
	hash, err := c.evm.SendTransaction(ctx, opts.txArgs(c.address, data))
	if err != nil {
		return common.Hash{}, c.revertError(err)
	}
	return hash, nil
}

// EstimateGas estimates the gas a transaction calling name would use.
func (c *Contract) EstimateGas(ctx context.Context, opts TransactOpts, name string, args ...any) (uint64, error) {
	_, data, err := c.pack(name, args)
	if err != nil {
		return 0, err
	}
	gas, err := c.evm.EstimateGas(ctx, opts.txArgs(c.address, data))
	if err != nil {
		return 0, c.revertError(err)
	}
	return gas, nil
}

// DecodeCall identifies the function calldata targets and decodes its
// arguments.
func (c *Contract) DecodeCall(calldata []byte) (*Function, []abi.Value, error) {
	if len(calldata) < 4 {
		return nil, nil, fmt.Errorf("calldata too short for a selector: %d bytes", len(calldata))
	}
	var sel [4]byte
	copy(sel[:], calldata)
	fn, err := c.registry.FunctionBySelector(sel)
	if err != nil {
		return nil, nil, err
	}
	vals, err := abi.Decode(fn.InputTypes(), calldata[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("decoding %s arguments: %w", fn.Signature, err)
	}
	return fn, vals, nil
}

// DecodeLog matches the log's first topic to an event and decodes it.
// Anonymous events have no signature topic; use DecodeLogAs.
func (c *Contract) DecodeLog(log chain.Log) (*DecodedLog, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics; decode anonymous events with DecodeLogAs")
	}
	ev, err := c.registry.EventByTopic(log.Topics[0])
	if err != nil {
		return nil, err
	}
	return decodeLog(ev, log)
}

// DecodeLogAs decodes log as the event with the given signature.
func (c *Contract) DecodeLogAs(signature string, log chain.Log) (*DecodedLog, error) {
	ev, err := c.registry.Event(signature)
	if err != nil {
		return nil, err
	}
	return decodeLog(ev, log)
}

func decodeLog(ev *Event, log chain.Log) (*DecodedLog, error) {
	args, err := ev.Decode(log.Topics, log.Data)
	if err != nil {
		return nil, err
	}
	return &DecodedLog{Event: ev, Args: args, Log: log}, nil
}

// FilterLogs fetches the contract's logs for event between two blocks and
// decodes them. filter narrows indexed inputs in order; nil matches any.
func (c *Contract) FilterLogs(ctx context.Context, event string, fromBlock, toBlock any, filter ...any) ([]*DecodedLog, error) {
	ev, err := c.Event(event)
	if err != nil {
		return nil, err
	}
	topics, err := ev.Topics(filter...)
	if err != nil {
		return nil, err
	}
	logs, err := c.evm.GetLogs(ctx, middleware.FilterArgs{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: []common.Address{c.address},
		Topics:    topics,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*DecodedLog, 0, len(logs))
	for _, l := range logs {
		if l.Removed || !bytes.Equal(l.Address.Bytes(), c.address.Bytes()) {
			continue
		}
		d, err := decodeLog(ev, l)
		if err != nil {
			return nil, fmt.Errorf("log %d of tx %s: %w", l.Index, l.TxHash.Hex(), err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Event looks up an event by signature, or by a bare name that is not
// overloaded.
func (c *Contract) Event(event string) (*Event, error) {
	if strings.Contains(event, "(") {
		return c.registry.Event(event)
	}
	var found []*Event
	for _, ev := range c.registry.Events() {
		if ev.Name == event {
			found = append(found, ev)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("event %s: %w", event, ErrNotInABI)
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("event %s is overloaded, pass its signature", event)
}

// revertError replaces an execution error whose payload matches a declared
// custom error with a *CustomRevertError.
func (c *Contract) revertError(err error) error {
	var exec *middleware.ExecutionError
	if !errors.As(err, &exec) || exec.Reason != nil || len(exec.Data) < 4 {
		return err
	}
	if custom := c.registry.UnpackError(exec.Data); custom != nil {
		return custom
	}
	return err
}
