package cmd

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/contract"
)

func newEncodeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <types | signature> [values...]",
		Short: "ABI-encode values, or calldata for a function signature",
		Long: `Encode values for a parenthesised type list, or calldata (selector
followed by the arguments) when the list is prefixed with a function name:

  w3kit encode "(uint256,bool)" 42 true
  w3kit encode "transfer(address,uint256)" 0x70997970C51812dc3A010C7d01b50e0d17dc79C8 1000
  w3kit encode "(uint256[],(address,string))" '[1,2]' '["0x7099...79C8","hi"]'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseArgs(args[1:])
			if err != nil {
				return err
			}
			data, err := encodeValues(args[0], values)
			if err != nil {
				return err
			}
			g.println(hexutil.Encode(data))
			return nil
		},
	}
}

func encodeValues(layout string, values []any) ([]byte, error) {
	layout = strings.TrimSpace(layout)
	if strings.HasPrefix(layout, "(") {
		types, err := typeList(layout)
		if err != nil {
			return nil, err
		}
		return abi.Pack(types, values...)
	}

	entry, err := signatureEntry(layout, "nonpayable")
	if err != nil {
		return nil, err
	}
	reg, err := contract.NewRegistry([]contract.ABIEntry{entry})
	if err != nil {
		return nil, err
	}
	return contract.New(common.Address{}, reg, nil).EncodeCall(reg.Functions()[0].Signature, values...)
}

// typeList parses "(type,...)" into its member types.
func typeList(layout string) ([]abi.Type, error) {
	t, err := abi.ParseType(layout)
	if err != nil {
		return nil, err
	}
	if t.Kind != abi.KindTuple {
		return nil, fmt.Errorf("want a parenthesised type list, got %s", t)
	}
	types := make([]abi.Type, len(t.Fields))
	for i, f := range t.Fields {
		types[i] = f.Type
	}
	return types, nil
}
