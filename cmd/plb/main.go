// Command plb is the cluster-wide workload rebalancer's entry point: it
// wires the CLI surface (spec.md 6) onto the pipeline and daemon loop.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyptazy/plb/internal/config"
	"github.com/gyptazy/plb/internal/daemon"
	"github.com/gyptazy/plb/internal/logging"
	"github.com/gyptazy/plb/internal/observer"
)

// version is the CLI's own build identifier, printed by -v/--version;
// overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		dryRun     bool
		jsonDump   bool
		bestNode   bool
		showVer    bool
	)

	root := &cobra.Command{
		Use:           "plb",
		Short:         "Cluster-wide workload rebalancer for Proxmox VE",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVer {
				cmd.Println(version)
				return nil
			}
			return mainPipeline(configPath, dryRun, jsonDump, bestNode)
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML configuration file")
	root.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "plan but skip the execution stage")
	root.Flags().BoolVarP(&jsonDump, "json", "j", false, "dump the scrubbed world state as JSON to stdout")
	root.Flags().BoolVarP(&bestNode, "best-node", "b", false, "print the globally most-free node and exit")
	root.Flags().BoolVarP(&showVer, "version", "v", false, "print the version and exit")

	root.AddCommand(newConfigInitCommand())

	exitCode := 0
	if err := root.Execute(); err != nil {
		exitCode = classifyExitCode(err)
		root.PrintErrln("error:", err)
	}
	return exitCode
}

// classifyExitCode maps an error to spec.md 6's exit code taxonomy:
// 0 success, 1 configuration/dependency error, 2 API/auth/transport error.
func classifyExitCode(err error) int {
	type coder interface{ ExitCode() int }
	if c, ok := err.(coder); ok {
		return c.ExitCode()
	}
	switch err.(type) {
	case *config.ConfigError:
		return 1
	default:
		return 2
	}
}

func mainPipeline(configPath string, dryRun, jsonDump, bestNode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New(os.Stdout, cfg.Service.LogLevel)
	metrics := observer.NewMetrics()

	reload := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	var cycleErr error
	cycle := func(ctx context.Context, cfg *config.Config) error {
		code, err := runCycle(ctx, cfg, log, metrics, dryRun, jsonDump, bestNode)
		if err != nil {
			cycleErr = &exitCodeError{code: code, err: err}
			log.Error().Err(err).Msg("cycle failed")
		}
		return nil
	}

	ctx := context.Background()
	if err := daemon.Run(ctx, cfg, log, cycle, reload); err != nil {
		return err
	}
	return cycleErr
}

// exitCodeError carries an explicit exit code alongside the underlying
// error, letting classifyExitCode honor runCycle's own taxonomy decision
// rather than re-deriving it from the error's type.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }
func (e *exitCodeError) ExitCode() int { return e.code }
