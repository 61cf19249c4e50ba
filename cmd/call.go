package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/contract"
	"github.com/Mohsinsiddi/w3kit/internal/middleware"
	"github.com/Mohsinsiddi/w3kit/internal/ui"
)

func newCallCmd(g *globals) *cobra.Command {
	var (
		af    abiFlags
		block string
		from  string
		raw   bool
	)
	cmd := &cobra.Command{
		Use:   "call <contract> <function> [args...]",
		Short: "Call a read-only contract function",
		Long: `Encode a function call, run it with eth_call and decode the result.

The function is a name from --abi or --builtin, or a full signature with
its outputs when no ABI is given:

  w3kit call 0xA0b8...eB48 balanceOf vitalik.eth --builtin erc20
  w3kit call 0xA0b8...eB48 "balanceOf(address)(uint256)" 0xd8dA...6045

The contract and address arguments may be ENS names. Array and tuple
arguments are JSON: '[1,2,3]' or '{"to":"0x...","amount":"5"}'.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, name, err := af.registry(args[1], "view")
			if err != nil {
				return err
			}
			callArgs, err := parseArgs(args[2:])
			if err != nil {
				return err
			}
			opts := contract.CallOpts{}
			if block != "" {
				if _, err := middleware.BlockParam(block); err != nil {
					return fmt.Errorf("--block: %w", err)
				}
				opts.Block = block
			}
			if from != "" {
				addr, err := abi.ParseAddress(from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				opts.From = &addr
			}

			s, err := g.dial(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			addr, err := contractAddress(ctx, s, args[0])
			if err != nil {
				return err
			}
			if err := resolveNames(ctx, s, reg, name, callArgs); err != nil {
				return err
			}
			fn, err := pickFunction(reg, name, callArgs)
			if err != nil {
				return err
			}

			vals, err := contract.New(addr, reg, s.evm).CallWith(ctx, opts, fn.Signature, callArgs...)
			if err != nil {
				return err
			}
			if raw {
				for _, v := range vals {
					g.println(v.String())
				}
				return nil
			}
			if len(vals) == 0 {
				g.println(ui.Success(fn.Signature + " returned no values"))
				return nil
			}
			g.println(ui.KeyValueBlock(fn.Signature, valuePairs(fn.Outputs, vals)))
			return nil
		},
	}
	af.register(cmd)
	cmd.Flags().StringVar(&block, "block", "", "block tag or number (default latest)")
	cmd.Flags().StringVar(&from, "from", "", "sender address for the call")
	cmd.Flags().BoolVar(&raw, "raw", false, "print one value per line without formatting")
	return cmd
}

// pickFunction resolves name against args. When several overloads fit and
// a terminal is attached the user chooses one.
func pickFunction(reg *contract.Registry, name string, args []any) (*contract.Function, error) {
	fn, err := reg.Resolve(name, args)
	var ambiguous *contract.AmbiguousFunctionError
	if !errors.As(err, &ambiguous) || !ui.Interactive() {
		return fn, err
	}
	items := make([]ui.PickerItem, len(ambiguous.Candidates))
	for i, sig := range ambiguous.Candidates {
		items[i] = ui.PickerItem{Label: sig, Value: sig}
	}
	sig, err := ui.PickItem(fmt.Sprintf("%s is overloaded, pick one", name), items)
	if err != nil {
		return nil, err
	}
	return reg.Function(sig)
}

// valuePairs labels decoded values with their parameter names and types.
func valuePairs(params []contract.Arg, vals []abi.Value) [][2]string {
	pairs := make([][2]string, len(vals))
	for i, v := range vals {
		label := fmt.Sprintf("[%d]", i)
		typ := v.Type.String()
		if i < len(params) {
			if params[i].Name != "" {
				label = params[i].Name
			}
			typ = params[i].Type.String()
		}
		pairs[i] = [2]string{label + " " + ui.TypeName(typ), v.String()}
	}
	return pairs
}
