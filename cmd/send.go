package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/config"
	"github.com/Mohsinsiddi/w3kit/internal/contract"
	"github.com/Mohsinsiddi/w3kit/internal/middleware"
	"github.com/Mohsinsiddi/w3kit/internal/ui"
)

type sendFlags struct {
	abi   abiFlags
	from  string
	value string
	gas   uint64
	nonce int64
	wait  bool
	yes   bool
}

func newSendCmd(g *globals) *cobra.Command {
	f := &sendFlags{}
	cmd := &cobra.Command{
		Use:   "send <to> [function] [args...]",
		Short: "Send a transaction",
		Long: `Send value or a state-changing contract call.

Gas, fees and nonce are filled in by the gas/nonce middleware unless given.
With a local wallet (--from <name>, or the default wallet) the transaction
is signed locally and sent raw; with --from <address> of an account the
node manages, the node signs it.

  w3kit send vitalik.eth --value 0.01ether
  w3kit send 0xA0b8...eB48 transfer 0x70997970...79C8 1000000 --builtin erc20 --wait`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), g, f, args)
		},
	}
	f.abi.register(cmd)
	cmd.Flags().StringVar(&f.from, "from", "", "wallet name or address (default: default wallet)")
	cmd.Flags().StringVar(&f.value, "value", "", "value to send: wei, or with a unit like 20gwei or 0.5ether")
	cmd.Flags().Uint64Var(&f.gas, "gas", 0, "gas limit (default: estimated)")
	cmd.Flags().Int64Var(&f.nonce, "nonce", -1, "nonce (default: pending count)")
	cmd.Flags().BoolVar(&f.wait, "wait", false, "wait for the receipt")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runSend(ctx context.Context, g *globals, f *sendFlags, args []string) error {
	opts := contract.TransactOpts{}
	if f.value != "" {
		v, err := chain.ParseValue(f.value)
		if err != nil {
			return fmt.Errorf("--value: %w", err)
		}
		if v.Sign() < 0 {
			return fmt.Errorf("--value must not be negative")
		}
		opts.Value = v
	}
	if f.gas > 0 {
		opts.Gas = &f.gas
	}
	if f.nonce >= 0 {
		n := uint64(f.nonce)
		opts.Nonce = &n
	}

	from, signers, err := g.sender(f.from)
	if err != nil {
		return err
	}
	opts.From = from

	var (
		reg      *contract.Registry
		name     string
		callArgs []any
	)
	if len(args) > 1 {
		if reg, name, err = f.abi.registry(args[1], "payable"); err != nil {
			return err
		}
		if callArgs, err = parseArgs(args[2:]); err != nil {
			return err
		}
	}

	s, err := g.dial(ctx, signers...)
	if err != nil {
		return err
	}
	defer s.Close()

	to, err := contractAddress(ctx, s, args[0])
	if err != nil {
		return err
	}

	summary := [][2]string{
		{"network", s.network.Name},
		{"from", from.Hex()},
		{"to", to.Hex()},
	}
	var fn *contract.Function
	if reg != nil {
		if err := resolveNames(ctx, s, reg, name, callArgs); err != nil {
			return err
		}
		if fn, err = pickFunction(reg, name, callArgs); err != nil {
			return err
		}
		summary = append(summary, [2]string{"call", fn.Signature})
	}
	if opts.Value != nil {
		summary = append(summary, [2]string{"value", chain.WeiToETH(opts.Value) + " " + nativeCurrency(s.network)})
	}
	g.println(ui.KeyValueBlock("transaction", summary))
	if !f.yes && !ui.Confirm("send this transaction?") {
		return ui.ErrCancelled
	}

	var hash common.Hash
	if fn != nil {
		hash, err = contract.New(to, reg, s.evm).Transact(ctx, opts, fn.Signature, callArgs...)
	} else {
		hash, err = s.evm.SendTransaction(ctx, &middleware.TxArgs{
			From:  opts.From,
			To:    &to,
			Value: valueOrZero(opts.Value),
			Gas:   opts.Gas,
			Nonce: opts.Nonce,

			GasPrice:             opts.GasPrice,
			MaxFeePerGas:         opts.MaxFeePerGas,
			MaxPriorityFeePerGas: opts.MaxPriorityFeePerGas,
		})
	}
	if err != nil {
		return err
	}
	g.println(ui.Success("sent " + hash.Hex()))
	if s.network.Explorer != "" {
		g.println(ui.Hint(s.network.Explorer + "/tx/" + hash.Hex()))
	}
	if !f.wait {
		return nil
	}

	wctx, cancel := context.WithTimeout(ctx, config.TxConfirmTimeout)
	defer cancel()
	sp := ui.NewSpinner("waiting for receipt").Start()
	receipt, err := s.evm.WaitForReceipt(wctx, hash, 0)
	sp.Stop()
	if receipt != nil {
		g.println(ui.KeyValueBlock("receipt", receiptPairs(receipt)))
	}
	return err
}

func receiptPairs(r *chain.Receipt) [][2]string {
	status := ui.Success("success")
	if !r.Succeeded() {
		status = ui.Err("reverted")
	}
	pairs := [][2]string{
		{"status", status},
		{"block", fmt.Sprintf("%d", r.BlockNumber)},
		{"gas used", fmt.Sprintf("%d", r.GasUsed)},
	}
	if fee := r.Fee(); fee != nil {
		pairs = append(pairs, [2]string{"fee", chain.WeiToETH(fee)})
	}
	if r.ContractAddress != nil {
		pairs = append(pairs, [2]string{"contract", r.ContractAddress.Hex()})
	}
	if len(r.Logs) > 0 {
		pairs = append(pairs, [2]string{"logs", fmt.Sprintf("%d", len(r.Logs))})
	}
	return pairs
}

func nativeCurrency(n chain.Network) string {
	if n.NativeCurrency == "" {
		return "ETH"
	}
	return n.NativeCurrency
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
