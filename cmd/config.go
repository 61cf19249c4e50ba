package cmd

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/config"
	"github.com/Mohsinsiddi/w3kit/internal/rpc"
	"github.com/Mohsinsiddi/w3kit/internal/ui"
)

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change the configuration",
	}
	cmd.AddCommand(
		newConfigShowCmd(g),
		newConfigNetworksCmd(g),
		newConfigSetNetworkCmd(g),
		newConfigAddNetworkCmd(g),
		newConfigSetAlgorithmCmd(g),
		newConfigSetRetryCmd(g),
	)
	return cmd
}

func newConfigShowCmd(g *globals) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				out []byte
				err error
			)
			switch format {
			case "yaml", "yml":
				out, err = yaml.Marshal(g.cfg)
			case "json":
				out, err = json.MarshalIndent(g.cfg, "", "  ")
				out = append(out, '\n')
			default:
				return fmt.Errorf("unknown format %q (want yaml or json)", format)
			}
			if err != nil {
				return err
			}
			g.print(string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "yaml or json")
	return cmd
}

func newConfigNetworksCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List builtin and configured networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make(map[string]bool)
			for _, n := range chain.NewRegistry().All() {
				names[strings.ToLower(n.Name)] = true
			}
			for name := range g.cfg.Networks {
				names[name] = true
			}
			sorted := make([]string, 0, len(names))
			for name := range names {
				sorted = append(sorted, name)
			}
			sort.Strings(sorted)

			t := ui.NewTable(
				ui.Column{Title: "NETWORK"},
				ui.Column{Title: "CHAIN ID", Right: true},
				ui.Column{Title: "RPCS", Right: true},
				ui.Column{Title: ""},
			)
			for _, name := range sorted {
				net, err := g.cfg.Network(name)
				if err != nil {
					t.AddRow(name, "-", "-", ui.Err(err.Error()))
					continue
				}
				var marks []string
				if name == strings.ToLower(g.cfg.DefaultNetwork) {
					marks = append(marks, "default")
				}
				if net.Testnet {
					marks = append(marks, "testnet")
				}
				if _, ok := g.cfg.Networks[name]; ok {
					marks = append(marks, "configured")
				}
				t.AddRow(name, strconv.FormatInt(net.ChainID, 10), strconv.Itoa(len(net.RPCs)), ui.Meta(strings.Join(marks, ", ")))
			}
			g.print(t.Render())
			return nil
		},
	}
}

func newConfigSetNetworkCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "set-network <name>",
		Short: "Set the default network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := g.cfg.Network(args[0]); err != nil {
				return err
			}
			g.cfg.DefaultNetwork = strings.ToLower(args[0])
			g.defaultNetwork = g.cfg.DefaultNetwork
			return g.saveConfig("default network is now " + g.cfg.DefaultNetwork)
		},
	}
}

func newConfigAddNetworkCmd(g *globals) *cobra.Command {
	var (
		chainID int64
		rpcs    []string
		headers []string
	)
	cmd := &cobra.Command{
		Use:   "add-network <name>",
		Short: "Add a custom network or override a builtin one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			nc := g.cfg.Networks[name]
			if chainID != 0 {
				nc.ChainID = chainID
			}
			if len(rpcs) > 0 {
				nc.RPCs = rpcs
			}
			for _, h := range headers {
				k, v, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("--header %q must look like Name: value", h)
				}
				if nc.Headers == nil {
					nc.Headers = make(map[string]string)
				}
				nc.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
			g.cfg.Networks[name] = nc
			if _, err := g.cfg.Network(name); err != nil {
				return err
			}
			return g.saveConfig("saved network " + name)
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain-id", 0, "chain id (required for custom networks)")
	cmd.Flags().StringSliceVar(&rpcs, "endpoint", nil, "endpoint URL, repeatable")
	cmd.Flags().StringArrayVar(&headers, "header", nil, `HTTP header sent to the network's endpoints, "Name: value", repeatable`)
	return cmd
}

func newConfigSetAlgorithmCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:       "set-algorithm <fastest|round-robin|failover>",
		Short:     "Set how an endpoint is picked from a network's RPCs",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(rpc.AlgorithmFastest), string(rpc.AlgorithmRoundRobin), string(rpc.AlgorithmFailover)},
		RunE: func(cmd *cobra.Command, args []string) error {
			algo, err := rpc.ParseAlgorithm(args[0])
			if err != nil {
				return err
			}
			g.cfg.RPCAlgorithm = string(algo)
			return g.saveConfig("rpc algorithm is now " + string(algo))
		},
	}
}

func newConfigSetRetryCmd(g *globals) *cobra.Command {
	var (
		attempts  int
		baseDelay time.Duration
		maxDelay  time.Duration
		retryable []int
		fatal     []int
	)
	cmd := &cobra.Command{
		Use:   "set-retry",
		Short: "Tune the retry middleware",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &g.cfg.Retry
			flags := cmd.Flags()
			if flags.Changed("max-attempts") {
				r.MaxAttempts = attempts
			}
			if flags.Changed("base-delay") {
				r.BaseDelay = config.Duration{Duration: baseDelay}
			}
			if flags.Changed("max-delay") {
				r.MaxDelay = config.Duration{Duration: maxDelay}
			}
			if flags.Changed("retryable") {
				r.RetryableCodes = slices.Clone(retryable)
			}
			if flags.Changed("fatal") {
				r.FatalCodes = slices.Clone(fatal)
			}
			if err := g.cfg.Validate(); err != nil {
				return err
			}
			return g.saveConfig(fmt.Sprintf("retry: %d attempts, %s to %s backoff", r.MaxAttempts, r.BaseDelay, r.MaxDelay))
		},
	}
	cmd.Flags().IntVar(&attempts, "max-attempts", 0, "attempts per request, including the first")
	cmd.Flags().DurationVar(&baseDelay, "base-delay", 0, "first backoff delay")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", 0, "backoff ceiling")
	cmd.Flags().IntSliceVar(&retryable, "retryable", nil, "JSON-RPC error codes to retry")
	cmd.Flags().IntSliceVar(&fatal, "fatal", nil, "JSON-RPC error codes never to retry")
	return cmd
}

// saveConfig writes the config without persisting a --network override.
func (g *globals) saveConfig(msg string) error {
	active := g.cfg.DefaultNetwork
	g.cfg.DefaultNetwork = g.defaultNetwork
	err := g.cfg.Save()
	g.cfg.DefaultNetwork = active
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	g.println(ui.Success(msg))
	return nil
}
