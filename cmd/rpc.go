package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3kit/internal/config"
	"github.com/Mohsinsiddi/w3kit/internal/rpc"
	"github.com/Mohsinsiddi/w3kit/internal/ui"
)

func newRPCCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rpc",
		Short: "Raw JSON-RPC calls and endpoint management",
	}
	cmd.AddCommand(
		newRPCCallCmd(g),
		newRPCListCmd(g),
		newRPCAddCmd(g),
		newRPCRemoveCmd(g),
		newRPCBenchmarkCmd(g),
	)
	return cmd
}

func newRPCCallCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [params...]",
		Short: "Send one JSON-RPC request through the middleware chain",
		Long: `Each param is parsed as JSON when it is valid JSON and sent as a string
otherwise, so block tags and hex values need no quoting:

  w3kit rpc call eth_getBalance 0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045 latest
  w3kit rpc call eth_getBlockByNumber latest false`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make([]any, len(args)-1)
			for i, a := range args[1:] {
				params[i] = parseRPCParam(a)
			}

			s, err := g.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.client.Call(cmd.Context(), args[0], params...)
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, result, "", "  "); err != nil {
				g.println(string(result))
				return nil
			}
			g.println(pretty.String())
			return nil
		},
	}
}

func newRPCListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the endpoints of the selected network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			net, err := g.cfg.Network("")
			if err != nil {
				return err
			}
			g.printf("%s %s\n\n", ui.ChainName(net.Name), ui.Meta(fmt.Sprintf("chain %d, %s", net.ChainID, g.cfg.RPCAlgorithm)))
			custom := g.cfg.Networks[net.Name].RPCs
			t := ui.NewTable(ui.Column{Title: "#", Right: true}, ui.Column{Title: "URL"}, ui.Column{Title: "SOURCE"})
			for i, u := range net.RPCs {
				source := "builtin"
				if len(custom) > 0 {
					source = "config"
				}
				t.AddRow(strconv.Itoa(i+1), u, source)
			}
			g.print(t.Render())
			return nil
		},
	}
}

func newRPCAddCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>",
		Short: "Add an endpoint to the selected network",
		Long: `Add an endpoint to the selected network's config. The first added URL
replaces the builtin list for that network.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			net := g.cfg.DefaultNetwork
			if err := g.cfg.AddRPC(net, args[0]); err != nil {
				return err
			}
			return g.saveConfig(fmt.Sprintf("added %s to %s", args[0], net))
		},
	}
}

func newRPCRemoveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <url>",
		Aliases: []string{"rm"},
		Short:   "Remove a configured endpoint from the selected network",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			net := g.cfg.DefaultNetwork
			if err := g.cfg.RemoveRPC(net, args[0]); err != nil {
				return err
			}
			return g.saveConfig(fmt.Sprintf("removed %s from %s", args[0], net))
		},
	}
}

func newRPCBenchmarkCmd(g *globals) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:     "benchmark",
		Aliases: []string{"bench"},
		Short:   "Probe every endpoint of the selected network",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			net, err := g.cfg.Network("")
			if err != nil {
				return err
			}
			algo, err := rpc.ParseAlgorithm(g.cfg.RPCAlgorithm)
			if err != nil {
				return err
			}

			sp := ui.NewSpinner(fmt.Sprintf("probing %d endpoints of %s", len(net.RPCs), net.Name)).Start()
			results := rpc.Benchmark(cmd.Context(), net.RPCs, rpc.EVMProber(g.probeOptions(net.Name)), timeout)
			sp.Stop()

			var pick string
			if best, err := rpc.NewPicker(algo).Pick(rpc.ResultsToEndpoints(results)); err == nil {
				pick = best.URL
			}

			t := ui.NewTable(
				ui.Column{Title: "URL"},
				ui.Column{Title: "LATENCY", Right: true},
				ui.Column{Title: "BLOCK", Right: true},
				ui.Column{Title: "STATUS"},
			)
			for _, r := range results {
				status := ui.Success("ok")
				latency, block := r.Latency.Round(time.Millisecond).String(), strconv.FormatUint(r.BlockNumber, 10)
				if r.Err != nil {
					status, latency, block = ui.Err(r.Err.Error()), "-", "-"
				}
				url := r.URL
				if url == pick {
					url = ui.StyleSelected.Render(url)
				}
				t.AddRow(url, latency, block, status)
			}
			g.print(t.Render())
			if pick != "" {
				g.println()
				g.println(ui.Hint(fmt.Sprintf("%s picks %s", algo, pick)))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", config.RPCSelectTimeout, "per-endpoint probe timeout")
	return cmd
}
