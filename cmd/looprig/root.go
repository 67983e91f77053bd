package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"looprig/internal/config"
	"looprig/internal/logging"
	"looprig/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

// Exit codes beyond the generic 1.
const (
	exitBuildFailed     = 2
	exitProvisionFailed = 3
	exitCasesFailed     = 4
)

// ExitError carries a specific process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

var globalFlags struct {
	config    string
	logLevel  string
	logFormat string
	db        string
}

// cfg is the configuration loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "looprig",
	Short: "Regression pipeline and solver service for the loop-parallelization analyzer",
	Long: "looprig compiles the test program corpus, runs the analysis artifact once per\n" +
		"test case, snapshots the files each run leaves behind and archives them.\n" +
		"It also hosts the TCP solver service analysis runs talk to.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&globalFlags.config, "config", "", "config file (YAML or JSON; default "+config.DefaultPath+" if present)")
	f.StringVar(&globalFlags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.StringVar(&globalFlags.logFormat, "log-format", "text", "log format: text, json")
	f.StringVar(&globalFlags.db, "db", "", "run ledger path (default from config, "+store.DefaultDBPath+")")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(solverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func setup(cmd *cobra.Command, _ []string) error {
	level, err := logging.ParseLevel(globalFlags.logLevel)
	if err != nil {
		return err
	}
	switch globalFlags.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (expected text|json)", globalFlags.logFormat)
	}
	logging.Init(level, globalFlags.logFormat, cmd.ErrOrStderr())

	if globalFlags.config != "" {
		cfg, err = config.LoadFromPath(globalFlags.config)
	} else {
		cfg, err = config.LoadOptional(config.DefaultPath)
	}
	if err != nil {
		return err
	}
	if globalFlags.db != "" {
		cfg.Store.Path = globalFlags.db
	}
	return nil
}

// openLedger opens the configured run ledger.
func openLedger() (*store.SqlStore, error) {
	path := cfg.Store.Path
	if path == "" {
		path = store.DefaultDBPath
	}
	return store.Open(cfg.Path(path))
}

func exitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}
