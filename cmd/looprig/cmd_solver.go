package main

import (
	"fmt"
	"io"
	"net"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"looprig/internal/logging"
	"looprig/internal/solver"
)

var solverFlags struct {
	variant string
	addr    string
}

var solverSendFlags struct {
	timeout time.Duration
}

var solverCmd = &cobra.Command{
	Use:   "solver",
	Short: "Run the TCP solver service",
	Long: `Listens for solving requests from analysis runs.

The iterative variant serves connections one after another: it reads one
request of at most 1024 bytes, replies "DONE\n" and closes the connection.
The single-shot variant serves one connection, logs everything received
until the peer closes, and exits without replying.`,
	RunE: runSolver,
}

var solverSendCmd = &cobra.Command{
	Use:   "send [payload]",
	Short: "Send one request to the solver service and print the reply",
	Long:  "Sends the payload argument, or standard input when no argument is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSolverSend,
}

func init() {
	pf := solverCmd.PersistentFlags()
	pf.StringVar(&solverFlags.addr, "addr", "", "host:port (default from config, localhost:25241)")
	f := solverCmd.Flags()
	f.StringVar(&solverFlags.variant, "variant", "", "iterative or single-shot (default from config)")

	solverSendCmd.Flags().DurationVar(&solverSendFlags.timeout, "timeout", 10*time.Second, "dial and I/O timeout")
	solverCmd.AddCommand(solverSendCmd)
}

func solverAddr() string {
	if solverFlags.addr != "" {
		return solverFlags.addr
	}
	return cfg.SolverAddr()
}

func runSolver(cmd *cobra.Command, _ []string) error {
	v := solverFlags.variant
	if v == "" {
		v = cfg.Solver.Variant
	}
	variant, err := solver.ParseVariant(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", solverAddr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger := logging.New("cli")
	srv := &solver.Server{
		Variant: variant,
		OnSession: func(r solver.SessionResult) {
			logger.Debug("session done", "remote", r.Remote, "bytes", len(r.Request), "truncated", r.Truncated)
		},
	}
	return srv.Serve(ctx, ln)
}

func runSolverSend(cmd *cobra.Command, args []string) error {
	var payload []byte
	if len(args) == 1 {
		payload = []byte(args[0])
	} else {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		payload = b
	}
	c := &solver.Client{Addr: solverAddr(), Timeout: solverSendFlags.timeout}
	reply, err := c.Send(cmd.Context(), payload)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(reply))
	if len(reply) > 0 && !strings.HasSuffix(string(reply), "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
