package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/contract"
	"github.com/Mohsinsiddi/w3kit/internal/ui"
)

func newDecodeCmd(g *globals) *cobra.Command {
	var (
		af     abiFlags
		revert bool
	)
	cmd := &cobra.Command{
		Use:   "decode [types | signature] <0xdata>",
		Short: "Decode ABI data, calldata or revert data",
		Long: `With a type list, decode data as those types. With a function signature,
decode calldata and check its selector. With only data, decode calldata
against --abi, --builtin or every built-in ABI; with --revert, decode it as
a revert payload.

  w3kit decode "(uint256,bool)" 0x000...2a000...01
  w3kit decode "transfer(address,uint256)" 0xa9059cbb...
  w3kit decode 0xa9059cbb... --builtin erc20
  w3kit decode --revert 0x08c379a0...`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hexutil.Decode(args[len(args)-1])
			if err != nil {
				return fmt.Errorf("data: %w", err)
			}
			if len(args) == 2 {
				title, pairs, err := decodeWith(args[0], data)
				if err != nil {
					return err
				}
				g.println(ui.KeyValueBlock(title, pairs))
				return nil
			}

			regs, err := decodeRegistries(&af)
			if err != nil {
				return err
			}
			if revert {
				return decodeRevert(g, regs, data)
			}
			for _, reg := range regs {
				fn, vals, err := contract.New(common.Address{}, reg, nil).DecodeCall(data)
				if errors.Is(err, contract.ErrNotInABI) {
					continue
				}
				if err != nil {
					return err
				}
				g.println(ui.KeyValueBlock(fn.Signature, valuePairs(fn.Inputs, vals)))
				return nil
			}
			return fmt.Errorf("selector %s is not in the ABI", hexutil.Encode(data[:min(4, len(data))]))
		},
	}
	af.register(cmd)
	cmd.Flags().BoolVar(&revert, "revert", false, "decode revert data: Error(string), Panic(uint256) or a custom error")
	return cmd
}

// decodeWith decodes data as a type list, or as calldata of a signature.
func decodeWith(layout string, data []byte) (string, [][2]string, error) {
	layout = strings.TrimSpace(layout)
	if strings.HasPrefix(layout, "(") {
		types, err := typeList(layout)
		if err != nil {
			return "", nil, err
		}
		vals, err := abi.Decode(types, data)
		if err != nil {
			return "", nil, err
		}
		return layout, valuePairs(nil, vals), nil
	}

	entry, err := signatureEntry(layout, "nonpayable")
	if err != nil {
		return "", nil, err
	}
	reg, err := contract.NewRegistry([]contract.ABIEntry{entry})
	if err != nil {
		return "", nil, err
	}
	fn := reg.Functions()[0]
	if len(data) < 4 || !bytes.Equal(data[:4], fn.Selector[:]) {
		return "", nil, fmt.Errorf("calldata does not start with the %s selector 0x%x", fn.Signature, fn.Selector)
	}
	_, vals, err := contract.New(common.Address{}, reg, nil).DecodeCall(data)
	if err != nil {
		return "", nil, err
	}
	return fn.Signature, valuePairs(fn.Inputs, vals), nil
}

// decodeRegistries returns the ABI named by the flags, or every built-in.
func decodeRegistries(af *abiFlags) ([]*contract.Registry, error) {
	if af.file != "" || af.builtin != "" {
		reg, _, err := af.registry("", "")
		if err != nil {
			return nil, err
		}
		return []*contract.Registry{reg}, nil
	}
	var regs []*contract.Registry
	for _, b := range contract.AllBuiltins() {
		regs = append(regs, b.Registry())
	}
	return regs, nil
}

func decodeRevert(g *globals, regs []*contract.Registry, data []byte) error {
	for _, reg := range regs {
		if err := reg.UnpackError(data); err != nil {
			g.println(ui.Err(err.Error()))
			return nil
		}
	}
	return fmt.Errorf("revert data matches no known error")
}
