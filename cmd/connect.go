package cmd

import (
	"context"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/client"
	"github.com/Mohsinsiddi/w3kit/internal/config"
	"github.com/Mohsinsiddi/w3kit/internal/contract"
	"github.com/Mohsinsiddi/w3kit/internal/ens"
	"github.com/Mohsinsiddi/w3kit/internal/middleware"
	"github.com/Mohsinsiddi/w3kit/internal/rpc"
	"github.com/Mohsinsiddi/w3kit/internal/wallet"
)

// session is one dialed endpoint of the selected network.
type session struct {
	network chain.Network
	url     string
	client  *client.Client
	evm     *chain.EVMClient
}

func (s *session) Close() error { return s.client.Close() }

// clientOptions are the config's options plus the CLI's logger and
// observability stages.
func (g *globals) clientOptions() client.Options {
	opts := g.cfg.ClientOptions(g.cfg.DefaultNetwork)
	opts.Logger = g.log
	if len(opts.Middleware) == 0 {
		opts.Middleware = slices.Clone(middleware.DefaultOrder)
	}
	if g.verbose && !slices.Contains(opts.Middleware, middleware.NameLogging) {
		opts.Middleware = append(opts.Middleware, middleware.NameLogging)
	}
	if g.metrics != nil {
		opts.Registerer = g.metrics.registry
		if !slices.Contains(opts.Middleware, middleware.NameMetrics) {
			opts.Middleware = append([]string{middleware.NameMetrics}, opts.Middleware...)
		}
	}
	return opts
}

// probeOptions are the bare options used to benchmark endpoints and read
// the chain id: no metrics registration, no cache, no signing. An empty
// network means the selected one.
func (g *globals) probeOptions(network string) client.Options {
	full := g.cfg.ClientOptions(network)
	return client.Options{
		RequestTimeout: full.RequestTimeout,
		Headers:        full.Headers,
		Middleware:     []string{middleware.NameFormatting},
		Logger:         g.log,
	}
}

// endpoint returns --rpc or the URL the configured algorithm picks.
func (g *globals) endpoint(ctx context.Context) (chain.Network, string, error) {
	net, netErr := g.cfg.Network("")
	if g.rpcURL != "" {
		if netErr != nil {
			net = chain.Network{Name: g.cfg.DefaultNetwork}
		}
		return net, g.rpcURL, nil
	}
	if netErr != nil {
		return chain.Network{}, "", netErr
	}
	algo, err := rpc.ParseAlgorithm(g.cfg.RPCAlgorithm)
	if err != nil {
		return chain.Network{}, "", err
	}
	url, err := rpc.Select(ctx, rpc.NewPicker(algo), net.RPCs, rpc.EVMProber(g.probeOptions(net.Name)), config.RPCSelectTimeout)
	if err != nil {
		return chain.Network{}, "", fmt.Errorf("%s: %w", net.Name, err)
	}
	g.log.WithFields(map[string]any{"network": net.Name, "rpc": url, "algorithm": algo}).Debug("endpoint selected")
	return net, url, nil
}

// dial connects to the selected network. Signers enable local signing;
// their chain id is read from the node so --rpc against a dev chain signs
// for the right chain.
func (g *globals) dial(ctx context.Context, signers ...middleware.TxSigner) (*session, error) {
	net, url, err := g.endpoint(ctx)
	if err != nil {
		return nil, err
	}
	opts := g.clientOptions()
	if len(signers) > 0 {
		id, err := g.nodeChainID(ctx, url)
		if err != nil {
			return nil, err
		}
		if opts.ChainID != nil && opts.ChainID.Cmp(id) != 0 {
			g.log.WithFields(map[string]any{"configured": opts.ChainID, "node": id}).Warn("node chain id differs from network config, signing for the node's chain")
		}
		opts.ChainID = id
		opts.Signers = signers
	}

	c, err := client.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", url, err)
	}
	return &session{network: net, url: url, client: c, evm: chain.NewEVMClient(client.NewBlocking(c))}, nil
}

func (g *globals) nodeChainID(ctx context.Context, url string) (*big.Int, error) {
	c, err := client.Dial(ctx, url, g.probeOptions(""))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer c.Close()
	id, err := chain.NewEVMClient(client.NewBlocking(c)).ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading chain id: %w", err)
	}
	return id, nil
}

// wallets opens the keyring-backed wallet manager.
func (g *globals) wallets() (*wallet.Manager, error) {
	if g.keys == nil {
		ks, err := wallet.OpenKeystore(g.cfg.Dir())
		if err != nil {
			return nil, err
		}
		g.keys = ks
	}
	return wallet.NewManager(g.cfg, g.keys), nil
}

// sender resolves --from: a wallet name, an address, or empty for the
// configured default wallet. It returns the address and, for local wallets,
// its signer.
func (g *globals) sender(from string) (*common.Address, []middleware.TxSigner, error) {
	if from != "" && common.IsHexAddress(from) {
		addr, err := abi.ParseAddress(from)
		if err != nil {
			return nil, nil, err
		}
		m, err := g.wallets()
		if err != nil {
			g.log.WithError(err).Debug("keystore unavailable, node will sign")
			return &addr, nil, nil
		}
		signers, err := m.TxSigners(addr)
		return &addr, signers, err
	}

	name := from
	if name == "" {
		name = g.cfg.DefaultWallet
	}
	m, err := g.wallets()
	if err != nil {
		return nil, nil, err
	}
	s, err := m.Signer(name)
	if err != nil {
		return nil, nil, err
	}
	addr := s.Address()
	return &addr, []middleware.TxSigner{s}, nil
}

// resolveNames replaces ENS names passed for address inputs of function
// with the addresses they resolve to.
func resolveNames(ctx context.Context, s *session, reg *contract.Registry, function string, args []any) error {
	return resolveSlots(ctx, s, addressSlots(reg, function, len(args)), args)
}

// resolveSlots resolves the ENS names among args at the marked positions.
func resolveSlots(ctx context.Context, s *session, slots map[int]bool, args []any) error {
	var r *ens.Resolver
	for i, a := range args {
		name, ok := a.(string)
		if !ok || !slots[i] || !ens.IsName(name) {
			continue
		}
		if r == nil {
			r = ens.NewResolver(s.evm)
		}
		addr, err := r.Resolve(ctx, name)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		args[i] = addr
	}
	return nil
}

// addressSlots marks the argument positions that take an address in some
// overload of function with n inputs.
func addressSlots(reg *contract.Registry, function string, n int) map[int]bool {
	var fns []*contract.Function
	if fn, err := reg.Function(function); err == nil {
		fns = []*contract.Function{fn}
	} else {
		fns = reg.FunctionsByName(function)
	}
	slots := make(map[int]bool)
	for _, fn := range fns {
		if len(fn.Inputs) != n {
			continue
		}
		for i, in := range fn.Inputs {
			if in.Type.Kind == abi.KindAddress {
				slots[i] = true
			}
		}
	}
	return slots
}

// contractAddress parses a hex address or resolves an ENS name.
func contractAddress(ctx context.Context, s *session, target string) (common.Address, error) {
	if ens.IsName(target) {
		addr, err := ens.NewResolver(s.evm).Resolve(ctx, target)
		if err != nil {
			return common.Address{}, fmt.Errorf("resolving %s: %w", target, err)
		}
		return addr, nil
	}
	return abi.ParseAddress(target)
}
