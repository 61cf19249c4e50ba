// Package cmd implements the w3kit command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3kit/internal/config"
	"github.com/Mohsinsiddi/w3kit/internal/ui"
	"github.com/Mohsinsiddi/w3kit/internal/wallet"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/w3kit/cmd.Version=1.2.3" .
var Version = "0.1.0"

// configDirEnv overrides the --config default.
const configDirEnv = "W3KIT_CONFIG_DIR"

// globals are the persistent flags plus what PersistentPreRunE loads from
// them. Every subcommand receives the same instance.
type globals struct {
	cfgDir      string
	network     string
	rpcURL      string
	verbose     bool
	logFormat   string
	metricsAddr string

	cfg            *config.Config
	defaultNetwork string // as configured, before --network
	log            *logger.Logger
	metrics        *metricsServer
	out            io.Writer
	keys           wallet.KeystoreBackend // nil opens the OS keychain
}

func newRootCmd() *cobra.Command {
	return newRoot(&globals{cfgDir: os.Getenv(configDirEnv)})
}

func newRoot(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:   "w3kit",
		Short: "JSON-RPC client and ABI toolkit for EVM chains",
		Long: `w3kit talks to Ethereum-compatible nodes over HTTP, WebSocket or IPC.

Every request runs through a configurable middleware chain (validation,
gas/nonce filling, caching, retry, formatting). Contract calls and logs are
encoded and decoded with a Solidity ABI codec.

The endpoint is chosen from the network's configured RPCs with the
rpc_algorithm setting unless --rpc names one directly.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			g.out = cmd.OutOrStdout()
			switch cmd.Name() {
			case "help", "completion", "version":
				return nil
			}
			return g.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return g.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.cfgDir, "config", g.cfgDir, "config directory (default: ~/.w3kit, env "+configDirEnv+")")
	pf.StringVarP(&g.network, "network", "n", "", "network name (default: config default_network)")
	pf.StringVar(&g.rpcURL, "rpc", "", "endpoint URL or IPC path, skips endpoint selection")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging, including every RPC round trip")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: text or json (default: config log_format)")
	pf.StringVar(&g.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")

	root.AddCommand(
		newVersionCmd(),
		newRPCCmd(g),
		newCallCmd(g),
		newSendCmd(g),
		newBalancesCmd(g),
		newSelectorCmd(g),
		newEncodeCmd(g),
		newDecodeCmd(g),
		newLogsCmd(g),
		newENSCmd(g),
		newConfigCmd(g),
		newWalletCmd(g),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), ui.Err(err.Error()))
		os.Exit(1)
	}
}

func (g *globals) setup() error {
	cfg, err := config.Load(g.cfgDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	g.defaultNetwork = cfg.DefaultNetwork
	if g.network != "" {
		cfg.DefaultNetwork = strings.ToLower(g.network)
	}
	g.cfg = cfg

	format := cfg.LogFormat
	if g.logFormat != "" {
		format = g.logFormat
	}
	g.log, err = newLogger(os.Stderr, cfg.LogLevel, format, g.verbose)
	if err != nil {
		return err
	}

	addr := g.metricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}
	if addr != "" {
		if g.metrics, err = startMetrics(addr, g.log); err != nil {
			return err
		}
	}
	return nil
}

func (g *globals) teardown() error {
	if g.metrics == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.metrics.Close(ctx)
}

func (g *globals) printf(format string, args ...any) {
	fmt.Fprintf(g.out, format, args...)
}

func (g *globals) print(args ...any) {
	fmt.Fprint(g.out, args...)
}

func (g *globals) println(args ...any) {
	fmt.Fprintln(g.out, args...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), ui.Banner(Version))
		},
	}
}
