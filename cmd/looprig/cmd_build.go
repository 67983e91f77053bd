package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"looprig/internal/build"
	"looprig/internal/corpus"
	"looprig/internal/invoke"
)

var buildFlags struct {
	classname string
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the test program corpus",
	Long: `Compiles one test program, or all of them with --classname all (the default).
Compiling all recreates the output directory first. The first compile error
stops the build and exits with status 2.`,
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVarP(&buildFlags.classname, "classname", "c", corpus.All, "test case to compile, or 'all'")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cases, err := corpus.Load(cfg.Path(cfg.Corpus.SourceDir), cfg.Corpus.Extension)
	if err != nil {
		return err
	}
	res, err := build.NewStage(cfg, invoke.Exec{}).Compile(cmd.Context(), cases, buildFlags.classname)
	var bErr *build.Error
	if errors.As(err, &bErr) {
		return &ExitError{Code: exitBuildFailed, Err: err}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "compiled %d test case(s)\n", len(res.Compiled))
	return nil
}
