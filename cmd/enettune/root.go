package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/enettune/config"
	"github.com/YuminosukeSato/enettune/pkg/log"
)

// Set with -ldflags "-X main.version=..." at release time.
var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "enettune",
		Short:         "Cross-validated penalty tuning for elastic-net regression",
		Long:          `enettune splits a dataset into training and test sets, tunes the elastic-net penalty over a regular grid with k-fold cross-validation, fits the best candidate on the full training set and reports its test-set metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTuneCmd(), newSynthCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "enettune %s (%s) %s %s/%s\n",
				version, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
}

// newLogger builds the zerolog-backed logger for a run and routes library
// warnings (non-convergence, undefined metrics) through it.
func newLogger(cmd *cobra.Command, cfg *config.Config) (log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	provider := log.NewZerologProvider(level,
		log.WithOutput(cmd.ErrOrStderr()),
		log.WithConsole(cfg.LogFormat == "console"),
	)
	provider.InstallWarningHook()
	return provider.GetLoggerWithName("enettune"), nil
}
