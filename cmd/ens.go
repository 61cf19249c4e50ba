package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/ens"
	"github.com/Mohsinsiddi/w3kit/internal/ui"
)

func newENSCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ens",
		Short: "Resolve ENS names, reverse records and text records",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "resolve <name>",
			Short: "Resolve a name to its address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := g.dial(cmd.Context())
				if err != nil {
					return err
				}
				defer s.Close()
				addr, err := ens.NewResolver(s.evm).Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				g.println(addr.Hex())
				return nil
			},
		},
		&cobra.Command{
			Use:   "reverse <address>",
			Short: "Look up the primary name of an address",
			Long: `Look up the primary name of an address. The name is only printed when it
resolves back to the same address.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := abi.ParseAddress(args[0])
				if err != nil {
					return err
				}
				s, err := g.dial(cmd.Context())
				if err != nil {
					return err
				}
				defer s.Close()
				name, err := ens.NewResolver(s.evm).ReverseLookup(cmd.Context(), addr)
				if errors.Is(err, ens.ErrNoRecord) || errors.Is(err, ens.ErrNoResolver) {
					g.println(ui.Warn(addr.Hex() + " has no primary name"))
					return nil
				}
				if err != nil {
					return err
				}
				g.println(name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "text <name> <key>",
			Short: "Read a text record such as url, avatar or com.github",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := g.dial(cmd.Context())
				if err != nil {
					return err
				}
				defer s.Close()
				v, err := ens.NewResolver(s.evm).Text(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				g.println(v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "namehash <name>",
			Short: "Print the namehash of a name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				node, err := ens.NewResolver(nil).Node(args[0])
				if err != nil {
					return err
				}
				g.println(node.Hex())
				return nil
			},
		},
	)
	return cmd
}
