package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/ens"
	"github.com/Mohsinsiddi/w3kit/internal/ui"
	"github.com/Mohsinsiddi/w3kit/internal/wallet"
)

func newWalletCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage local signing keys",
		Long: `Private keys live in the OS keychain, or in an encrypted file store in the
config directory when no keychain is available (unlocked with
W3KIT_KEYRING_PASSWORD). wallets.json only records names and addresses.`,
	}
	cmd.AddCommand(
		newWalletImportCmd(g),
		newWalletListCmd(g),
		newWalletDefaultCmd(g),
		newWalletRemoveCmd(g),
		newWalletBalanceCmd(g),
		newWalletSignCmd(g),
		newWalletVerifyCmd(g),
	)
	return cmd
}

func newWalletImportCmd(g *globals) *cobra.Command {
	var setDefault bool
	cmd := &cobra.Command{
		Use:   "import <name>",
		Short: "Import a private key, read from the terminal or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.wallets()
			if err != nil {
				return err
			}
			key, err := ui.ReadSecret("private key: ")
			if err != nil {
				return err
			}
			w, err := m.Import(args[0], key)
			if err != nil {
				return err
			}
			if setDefault && !w.IsDefault {
				if err := m.SetDefault(w.Name); err != nil {
					return err
				}
			}
			g.println(ui.Success(fmt.Sprintf("imported %s %s", w.Name, ui.Addr(w.Address))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&setDefault, "default", false, "make it the default wallet")
	return cmd
}

func newWalletListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List wallets",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.wallets()
			if err != nil {
				return err
			}
			wallets, err := m.List()
			if err != nil {
				return err
			}
			if len(wallets) == 0 {
				g.println(ui.Hint("no wallets yet, add one with `w3kit wallet import <name>`"))
				return nil
			}
			t := ui.NewTable(ui.Column{Title: "NAME"}, ui.Column{Title: "ADDRESS"}, ui.Column{Title: ""})
			for _, w := range wallets {
				mark := ""
				if w.IsDefault {
					mark = ui.Meta("default")
				}
				t.AddRow(w.Name, w.Address, mark)
			}
			g.print(t.Render())
			return nil
		},
	}
}

func newWalletDefaultCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "default <name>",
		Short: "Set the default wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.wallets()
			if err != nil {
				return err
			}
			if err := m.SetDefault(args[0]); err != nil {
				return err
			}
			g.println(ui.Success("default wallet is now " + args[0]))
			return nil
		},
	}
}

func newWalletRemoveCmd(g *globals) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a wallet and its stored key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.wallets()
			if err != nil {
				return err
			}
			w, err := m.Get(args[0])
			if err != nil {
				return err
			}
			if !yes && !ui.Confirm(fmt.Sprintf("delete %s (%s) and its key?", w.Name, w.Address)) {
				return ui.ErrCancelled
			}
			if err := m.Remove(w.Name); err != nil {
				return err
			}
			g.println(ui.Success("removed " + w.Name))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newWalletBalanceCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [name | address]",
		Short: "Show the native balance of a wallet (default wallet when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			s, err := g.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			var label string
			switch {
			case common.IsHexAddress(target) || ens.IsName(target):
				label = target
			default:
				m, err := g.wallets()
				if err != nil {
					return err
				}
				w, err := m.Get(target)
				if err != nil {
					return err
				}
				label, target = w.Name, w.Address
			}
			addr, err := contractAddress(cmd.Context(), s, target)
			if err != nil {
				return err
			}
			bal, err := s.evm.GetBalance(cmd.Context(), addr, nil)
			if err != nil {
				return err
			}
			g.println(ui.KeyValueBlock(label, [][2]string{
				{"address", addr.Hex()},
				{"network", s.network.Name},
				{"balance", chain.WeiToETH(bal) + " " + nativeCurrency(s.network)},
			}))
			return nil
		},
	}
}

func newWalletSignCmd(g *globals) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "sign <message>",
		Short: "Sign a message with the EIP-191 personal_sign prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.wallets()
			if err != nil {
				return err
			}
			s, err := m.Signer(from)
			if err != nil {
				return err
			}
			sig, err := s.SignMessage([]byte(args[0]))
			if err != nil {
				return err
			}
			g.println(hexutil.Encode(sig))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "wallet name (default: default wallet)")
	return cmd
}

func newWalletVerifyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <message> <signature> [address]",
		Short: "Recover the signer of a personal_sign signature",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := hexutil.Decode(args[1])
			if err != nil {
				return fmt.Errorf("signature: %w", err)
			}
			signer, err := wallet.VerifyMessage([]byte(args[0]), sig)
			if err != nil {
				return err
			}
			if len(args) == 2 {
				g.println(signer.Hex())
				return nil
			}
			want, err := abi.ParseAddress(args[2])
			if err != nil {
				return err
			}
			if signer != want {
				return fmt.Errorf("signed by %s, not %s", signer.Hex(), want.Hex())
			}
			g.println(ui.Success("signed by " + signer.Hex()))
			return nil
		},
	}
}
