package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/contract"
	"github.com/Mohsinsiddi/w3kit/internal/ui"
)

func newSelectorCmd(g *globals) *cobra.Command {
	var (
		event    bool
		builtins bool
	)
	cmd := &cobra.Command{
		Use:   "selector [signature | 0xselector | 0xtopic]",
		Short: "Compute selectors and topics, or look them up in the built-in ABIs",
		Long: `Given a signature, print its canonical form, 4-byte selector and 32-byte
topic hash. Given a selector or topic, search the built-in ABIs for it.

  w3kit selector "transfer(address to, uint256 amount)"
  w3kit selector --event "Transfer(address indexed from, address indexed to, uint256)"
  w3kit selector 0xa9059cbb
  w3kit selector --builtins`,
		Args: func(cmd *cobra.Command, args []string) error {
			if builtins {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if builtins {
				g.print(builtinsTable())
				return nil
			}
			in := strings.TrimSpace(args[0])
			if strings.HasPrefix(in, "0x") && !strings.Contains(in, "(") {
				return lookupSelector(g, in)
			}
			if event {
				entry, err := eventEntry(in, false)
				if err != nil {
					return err
				}
				ev := contract.MustRegistry([]contract.ABIEntry{entry}).Events()[0]
				g.println(ui.KeyValueBlock("event", [][2]string{
					{"signature", ev.Signature},
					{"topic", ev.Topic.Hex()},
				}))
				return nil
			}
			entry, err := signatureEntry(in, "nonpayable")
			if err != nil {
				return err
			}
			fn := contract.MustRegistry([]contract.ABIEntry{entry}).Functions()[0]
			g.println(ui.KeyValueBlock("function", [][2]string{
				{"signature", fn.Signature},
				{"selector", "0x" + hex.EncodeToString(fn.Selector[:])},
				{"topic", abi.Topic(fn.Signature).Hex()},
			}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&event, "event", false, "treat the signature as an event, parameters may be marked indexed")
	cmd.Flags().BoolVar(&builtins, "builtins", false, "list the built-in ABIs")
	return cmd
}

func builtinsTable() string {
	t := ui.NewTable(
		ui.Column{Title: "ID"},
		ui.Column{Title: "NAME"},
		ui.Column{Title: "FUNCTIONS", Right: true},
		ui.Column{Title: "EVENTS", Right: true},
		ui.Column{Title: "DESCRIPTION"},
	)
	for _, b := range contract.AllBuiltins() {
		reg := b.Registry()
		t.AddRow(b.ID, b.Name, fmt.Sprint(len(reg.Functions())), fmt.Sprint(len(reg.Events())), b.Description)
	}
	return t.Render()
}

// lookupSelector searches the built-in ABIs for a 4-byte function or error
// selector, or a 32-byte event topic.
func lookupSelector(g *globals, in string) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(in, "0x"))
	if err != nil {
		return fmt.Errorf("%s is not hex: %w", in, err)
	}

	var hits [][2]string
	switch len(raw) {
	case 4:
		var sel [4]byte
		copy(sel[:], raw)
		for _, b := range contract.AllBuiltins() {
			reg := b.Registry()
			for _, fn := range reg.Functions() {
				if fn.Selector == sel {
					hits = append(hits, [2]string{b.ID, fn.Signature})
				}
			}
			if ce, err := reg.ErrorBySelector(sel); err == nil {
				hits = append(hits, [2]string{b.ID, "error " + ce.Signature})
			}
		}
	case 32:
		topic := common.BytesToHash(raw)
		for _, b := range contract.AllBuiltins() {
			if ev, err := b.Registry().EventByTopic(topic); err == nil {
				hits = append(hits, [2]string{b.ID, "event " + ev.Signature})
			}
		}
	default:
		return fmt.Errorf("want a 4-byte selector or 32-byte topic, got %d bytes", len(raw))
	}

	if len(hits) == 0 {
		g.println(ui.Warn(in + " is not in any built-in ABI"))
		return nil
	}
	g.println(ui.KeyValueBlock(in, hits))
	return nil
}
