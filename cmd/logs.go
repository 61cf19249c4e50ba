package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/client"
	"github.com/Mohsinsiddi/w3kit/internal/contract"
	"github.com/Mohsinsiddi/w3kit/internal/middleware"
	"github.com/Mohsinsiddi/w3kit/internal/ui"
)

type logsFlags struct {
	abi       abiFlags
	fromBlock string
	toBlock   string
	anonymous bool
	follow    bool
	poll      time.Duration
}

func newLogsCmd(g *globals) *cobra.Command {
	f := &logsFlags{}
	cmd := &cobra.Command{
		Use:   "logs <contract> <event> [indexed filters...]",
		Short: "Fetch and decode a contract's event logs",
		Long: `Fetch a contract's logs for one event and decode them. The event is a name
from --abi or --builtin (ERC-20 by default), or a signature whose indexed
parameters are marked:

  w3kit logs 0xA0b8...eB48 Transfer --from-block 19000000 --to-block 19000100
  w3kit logs 0xA0b8...eB48 "Transfer(address indexed from, address indexed to, uint256 value)" _ vitalik.eth

Filters narrow the indexed parameters in order; _ matches any value.
--follow keeps printing new logs, over a subscription on ws:// and IPC
endpoints and by polling otherwise.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd.Context(), g, f, args)
		},
	}
	f.abi.register(cmd)
	cmd.Flags().StringVar(&f.fromBlock, "from-block", "latest", "first block, number or tag")
	cmd.Flags().StringVar(&f.toBlock, "to-block", "latest", "last block, number or tag")
	cmd.Flags().BoolVar(&f.anonymous, "anonymous", false, "the event signature is anonymous")
	cmd.Flags().BoolVarP(&f.follow, "follow", "f", false, "keep printing new logs until interrupted")
	cmd.Flags().DurationVar(&f.poll, "poll", chain.DefaultPollInterval, "poll interval for --follow without a subscription")
	return cmd
}

func runLogs(ctx context.Context, g *globals, f *logsFlags, args []string) error {
	reg, event, err := eventRegistry(&f.abi, args[1], f.anonymous)
	if err != nil {
		return err
	}
	filter, err := parseArgs(args[2:])
	if err != nil {
		return err
	}
	for i, v := range filter {
		if s, ok := v.(string); ok && (s == "_" || s == "null") {
			filter[i] = nil
		}
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
	c := contract.New(addr, reg, s.evm)
	ev, err := c.Event(event)
	if err != nil {
		return err
	}
	if err := resolveFilterNames(ctx, s, ev, filter); err != nil {
		return err
	}

	logs, err := c.FilterLogs(ctx, ev.Signature, f.fromBlock, f.toBlock, filter...)
	if err != nil {
		return err
	}
	t := logTable(ev)
	for _, l := range logs {
		addLogRow(t, l)
	}
	if !f.follow {
		if len(logs) == 0 {
			g.println(ui.Warn("no " + ev.Name + " logs in range"))
			return nil
		}
		g.print(t.Render())
		g.println(ui.Meta(fmt.Sprintf("%d logs", len(logs))))
		return nil
	}

	if len(logs) > 0 {
		g.print(t.Render())
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	topics, err := ev.Topics(filter...)
	if err != nil {
		return err
	}
	q := middleware.FilterArgs{Addresses: []common.Address{addr}, Topics: topics}
	return followLogs(ctx, g, s, c, ev, q, f.poll)
}

// eventRegistry is abiFlags.registry for events: a signature without
// --abi or --builtin becomes a one-event ABI.
func eventRegistry(af *abiFlags, event string, anonymous bool) (*contract.Registry, string, error) {
	if af.file != "" || af.builtin != "" || !strings.Contains(event, "(") {
		return af.registry(event, "")
	}
	entry, err := eventEntry(event, anonymous)
	if err != nil {
		return nil, "", err
	}
	reg, err := contract.NewRegistry([]contract.ABIEntry{entry})
	if err != nil {
		return nil, "", err
	}
	return reg, reg.Events()[0].Signature, nil
}

// resolveFilterNames resolves ENS names given for indexed address inputs.
func resolveFilterNames(ctx context.Context, s *session, ev *contract.Event, filter []any) error {
	slots := make(map[int]bool)
	for i, in := range ev.Indexed() {
		if in.Type.Kind == abi.KindAddress {
			slots[i] = true
		}
	}
	return resolveSlots(ctx, s, slots, filter)
}

// followLogs streams new logs matching q until ctx ends.
func followLogs(ctx context.Context, g *globals, s *session, c *contract.Contract, ev *contract.Event, q middleware.FilterArgs, poll time.Duration) error {
	g.println(ui.Hint("following new logs, ctrl-c to stop"))

	wire, err := q.Wire()
	if err != nil {
		return err
	}
	ch := make(chan json.RawMessage, 64)
	sub, err := s.client.Subscribe(ctx, "eth", ch, "logs", wire)
	if errors.Is(err, client.ErrNotStreaming) {
		return pollLogs(ctx, g, s, c, ev, q, poll)
	}
	if err != nil {
		return err
	}
	defer sub.Unsubscribe(context.Background()) //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Err():
			if !ok {
				return nil
			}
			return err
		case raw := <-ch:
			var l chain.Log
			if err := json.Unmarshal(raw, &l); err != nil {
				g.log.WithError(err).Warn("skipping undecodable log notification")
				continue
			}
			printLog(g, c, ev, l)
		}
	}
}

func pollLogs(ctx context.Context, g *globals, s *session, c *contract.Contract, ev *contract.Event, q middleware.FilterArgs, poll time.Duration) error {
	next, err := s.evm.BlockNumber(ctx)
	if err != nil {
		return err
	}
	next++
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		head, err := s.evm.BlockNumber(ctx)
		if err != nil {
			g.log.WithError(err).Warn("polling block number")
			continue
		}
		if head < next {
			continue
		}
		q.FromBlock, q.ToBlock = next, head
		logs, err := s.evm.GetLogs(ctx, q)
		if err != nil {
			g.log.WithError(err).WithField("from", next).Warn("polling logs")
			continue
		}
		for _, l := range logs {
			printLog(g, c, ev, l)
		}
		next = head + 1
	}
}

func printLog(g *globals, c *contract.Contract, ev *contract.Event, l chain.Log) {
	if l.Removed {
		g.println(ui.Warn(fmt.Sprintf("removed by reorg: block %d tx %s", l.BlockNumber, l.TxHash.Hex())))
		return
	}
	d, err := c.DecodeLogAs(ev.Signature, l)
	if err != nil {
		g.log.WithError(err).WithField("tx", l.TxHash.Hex()).Warn("skipping undecodable log")
		return
	}
	g.printf("%s %s %s\n", ui.Meta(strconv.FormatUint(l.BlockNumber, 10)), ui.TruncateHex(l.TxHash.Hex()), logArgs(d))
}

func logTable(ev *contract.Event) *ui.Table {
	return ui.NewTable(
		ui.Column{Title: "BLOCK", Right: true},
		ui.Column{Title: "TX"},
		ui.Column{Title: "#", Right: true},
		ui.Column{Title: strings.ToUpper(ev.Name)},
	)
}

func addLogRow(t *ui.Table, d *contract.DecodedLog) {
	t.AddRow(
		strconv.FormatUint(d.Log.BlockNumber, 10),
		ui.TruncateHex(d.Log.TxHash.Hex()),
		strconv.FormatUint(d.Log.Index, 10),
		logArgs(d),
	)
}

// logArgs renders "name=value" pairs in declaration order.
func logArgs(d *contract.DecodedLog) string {
	parts := make([]string, len(d.Args))
	for i, v := range d.Args {
		name := d.Event.Inputs[i].Name
		if name == "" {
			name = strconv.Itoa(i)
		}
		parts[i] = name + "=" + v.String()
	}
	return strings.Join(parts, " ")
}
