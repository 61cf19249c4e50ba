// Package ens resolves Ethereum Name Service names through the registry and
// resolver contracts.
package ens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/contract"
)

// RegistryAddress is the ENS registry on mainnet and the public testnets.
var RegistryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

var (
	// ErrNoResolver means the registry has no resolver for the name.
	ErrNoResolver = errors.New("no resolver set")
	// ErrNoRecord means the resolver has no record of the requested kind.
	ErrNoRecord = errors.New("no record")
	// ErrReverseMismatch means a reverse record names a name that does not
	// resolve back to the address.
	ErrReverseMismatch = errors.New("reverse record does not resolve back")
)

// Resolver looks names up through the ENS contracts.
type Resolver struct {
	evm       *chain.EVMClient
	registry  common.Address
	normalize Normalizer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRegistry overrides the registry address, for local deployments.
func WithRegistry(addr common.Address) Option {
	return func(r *Resolver) { r.registry = addr }
}

// WithNormalizer replaces NFCNormalizer.
func WithNormalizer(n Normalizer) Option {
	return func(r *Resolver) { r.normalize = n }
}

// NewResolver returns a resolver calling through evm.
func NewResolver(evm *chain.EVMClient, opts ...Option) *Resolver {
	r := &Resolver{evm: evm, registry: RegistryAddress, normalize: NFCNormalizer}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Namehash implements the EIP-137 namehash of an already normalized name.
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		node = common.BytesToHash(abi.Keccak256(node.Bytes(), abi.Keccak256([]byte(labels[i]))))
	}
	return node
}

// Node normalizes name and returns its namehash.
func (r *Resolver) Node(name string) (common.Hash, error) {
	normalized, err := r.normalize(name)
	if err != nil {
		return common.Hash{}, err
	}
	return Namehash(normalized), nil
}

// ResolverOf returns the resolver contract the registry holds for name.
func (r *Resolver) ResolverOf(ctx context.Context, name string) (common.Address, error) {
	node, err := r.Node(name)
	if err != nil {
		return common.Address{}, err
	}
	return r.resolverOf(ctx, name, node)
}

func (r *Resolver) resolverOf(ctx context.Context, name string, node common.Hash) (common.Address, error) {
	reg := contract.New(r.registry, builtin("ens-registry"), r.evm)
	out, err := reg.Call(ctx, "resolver", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("querying ENS registry: %w", err)
	}
	addr := out[0].Data.(common.Address)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%q: %w", name, ErrNoResolver)
	}
	return addr, nil
}

// Resolve returns the address record of name.
func (r *Resolver) Resolve(ctx context.Context, name string) (common.Address, error) {
	node, err := r.Node(name)
	if err != nil {
		return common.Address{}, err
	}
	res, err := r.resolverOf(ctx, name, node)
	if err != nil {
		return common.Address{}, err
	}
	out, err := contract.New(res, builtin("ens-resolver"), r.evm).Call(ctx, "addr(bytes32)", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("querying ENS resolver: %w", err)
	}
	addr := out[0].Data.(common.Address)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("address of %q: %w", name, ErrNoRecord)
	}
	return addr, nil
}

// Text returns the text record key of name, e.g. "url" or "avatar".
func (r *Resolver) Text(ctx context.Context, name, key string) (string, error) {
	node, err := r.Node(name)
	if err != nil {
		return "", err
	}
	res, err := r.resolverOf(ctx, name, node)
	if err != nil {
		return "", err
	}
	out, err := contract.New(res, builtin("ens-resolver"), r.evm).Call(ctx, "text", node, key)
	if err != nil {
		return "", fmt.Errorf("querying ENS resolver: %w", err)
	}
	text := out[0].Data.(string)
	if text == "" {
		return "", fmt.Errorf("%s of %q: %w", key, name, ErrNoRecord)
	}
	return text, nil
}

// ReverseLookup returns the primary name of addr. The name must resolve
// back to addr.
func (r *Resolver) ReverseLookup(ctx context.Context, addr common.Address) (string, error) {
	reverse := strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")) + ".addr.reverse"
	node := Namehash(reverse)
	res, err := r.resolverOf(ctx, reverse, node)
	if err != nil {
		return "", err
	}
	out, err := contract.New(res, builtin("ens-resolver"), r.evm).Call(ctx, "name", node)
	if err != nil {
		return "", fmt.Errorf("querying reverse resolver: %w", err)
	}
	name := out[0].Data.(string)
	if name == "" {
		return "", fmt.Errorf("reverse name of %s: %w", addr.Hex(), ErrNoRecord)
	}

	forward, err := r.Resolve(ctx, name)
	if err != nil {
		return "", fmt.Errorf("verifying %q: %w", name, err)
	}
	if forward != addr {
		return "", fmt.Errorf("%q resolves to %s, not %s: %w", name, forward.Hex(), addr.Hex(), ErrReverseMismatch)
	}
	return name, nil
}

// IsName reports whether s looks like an ENS name rather than a hex
// address or a decimal: dotted, with a top-level label holding a letter.
func IsName(s string) bool {
	dot := strings.LastIndexByte(s, '.')
	if dot <= 0 || strings.HasPrefix(s, "0x") {
		return false
	}
	return strings.IndexFunc(s[dot+1:], unicode.IsLetter) >= 0
}

func builtin(id string) *contract.Registry {
	b, ok := contract.GetBuiltin(id)
	if !ok {
		panic("ens: builtin ABI " + id + " not registered")
	}
	return b.Registry()
}
