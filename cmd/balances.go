package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/client"
	"github.com/Mohsinsiddi/w3kit/internal/config"
	"github.com/Mohsinsiddi/w3kit/internal/ui"
	"github.com/Mohsinsiddi/w3kit/internal/wallet"
)

// networkParallelism bounds how many networks are queried at once.
const networkParallelism = 8

type balanceResult struct {
	network string
	address common.Address
	balance *big.Int
	symbol  string
	err     error
}

func newBalancesCmd(g *globals) *cobra.Command {
	var (
		networks []string
		testnets bool
	)
	cmd := &cobra.Command{
		Use:   "balances <address | wallet>...",
		Short: "Native balances of several accounts across networks",
		Long: `Query the native balance of every address on every selected network in
parallel. Wallet names resolve to their addresses. Networks default to the
builtin mainnets; --testnets adds the testnets.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := g.balanceTargets(args)
			if err != nil {
				return err
			}
			nets, err := g.balanceNetworks(networks, testnets)
			if err != nil {
				return err
			}

			sp := ui.NewSpinner(fmt.Sprintf("querying %d accounts on %d networks", len(addrs), len(nets))).Start()
			results := g.fetchBalances(cmd.Context(), nets, addrs)
			sp.Stop()

			t := ui.NewTable(
				ui.Column{Title: "NETWORK"},
				ui.Column{Title: "ACCOUNT"},
				ui.Column{Title: "BALANCE", Right: true},
				ui.Column{Title: "SYMBOL"},
				ui.Column{Title: "NOTE"},
			)
			for _, r := range results {
				bal, note := trimZeros(chain.WeiToETH(r.balance)), ""
				if r.err != nil {
					bal, note = "-", ui.Err(r.err.Error())
				}
				t.AddRow(r.network, ui.TruncateHex(r.address.Hex()), bal, r.symbol, note)
			}
			g.print(t.Render())
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&networks, "networks", nil, "networks to query (default: all builtin mainnets)")
	cmd.Flags().BoolVar(&testnets, "testnets", false, "include builtin testnets")
	return cmd
}

func (g *globals) balanceTargets(args []string) ([]common.Address, error) {
	var (
		out []common.Address
		m   *wallet.Manager
	)
	for _, a := range args {
		if common.IsHexAddress(a) {
			addr, err := abi.ParseAddress(a)
			if err != nil {
				return nil, err
			}
			out = append(out, addr)
			continue
		}
		if m == nil {
			var err error
			if m, err = g.wallets(); err != nil {
				return nil, err
			}
		}
		w, err := m.Get(a)
		if err != nil {
			return nil, err
		}
		out = append(out, common.HexToAddress(w.Address))
	}
	return out, nil
}

func (g *globals) balanceNetworks(names []string, testnets bool) ([]chain.Network, error) {
	if len(names) > 0 {
		out := make([]chain.Network, 0, len(names))
		for _, name := range names {
			n, err := g.cfg.Network(name)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	}
	var out []chain.Network
	for _, b := range chain.NewRegistry().All() {
		if b.Testnet && !testnets {
			continue
		}
		n, err := g.cfg.Network(b.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// fetchBalances queries every network concurrently. Within a network the
// addresses go out together through the async executor.
func (g *globals) fetchBalances(ctx context.Context, nets []chain.Network, addrs []common.Address) []balanceResult {
	results := make([][]balanceResult, len(nets))
	var eg errgroup.Group
	eg.SetLimit(networkParallelism)
	for i, n := range nets {
		eg.Go(func() error {
			results[i] = g.networkBalances(ctx, n, addrs)
			return nil
		})
	}
	eg.Wait() //nolint:errcheck

	var flat []balanceResult
	for _, rs := range results {
		flat = append(flat, rs...)
	}
	slices.SortStableFunc(flat, func(a, b balanceResult) int { return strings.Compare(a.network, b.network) })
	return flat
}

func (g *globals) networkBalances(ctx context.Context, n chain.Network, addrs []common.Address) []balanceResult {
	out := make([]balanceResult, len(addrs))
	for i, a := range addrs {
		out[i] = balanceResult{network: n.Name, address: a, symbol: nativeCurrency(n)}
	}
	fail := func(err error) []balanceResult {
		for i := range out {
			out[i].err = err
		}
		return out
	}
	if len(n.RPCs) == 0 {
		return fail(fmt.Errorf("no RPC configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, config.RPCSelectTimeout)
	defer cancel()
	c, err := client.Dial(ctx, n.RPCs[0], g.probeOptions(n.Name))
	if err != nil {
		return fail(err)
	}
	defer c.Close()

	async := client.NewAsync(c, g.cfg.AsyncConcurrency)
	futures := make([]*client.Future, len(addrs))
	for i, a := range addrs {
		futures[i] = async.Go(ctx, "eth_getBalance", a.Hex(), "latest")
	}
	for i, f := range futures {
		raw, err := f.Wait(ctx)
		if err != nil {
			out[i].err = err
			continue
		}
		out[i].balance, out[i].err = decodeQuantity(raw)
	}
	return out
}

func decodeQuantity(raw json.RawMessage) (*big.Int, error) {
	var q hexutil.Big
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("decoding balance: %w", err)
	}
	return q.ToInt(), nil
}

// trimZeros drops trailing fractional zeros: "0.050000" is "0.05".
func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
