// Package cmd implements the goforce command line interface
package cmd

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	saveDir  string
)

// GetRootCommand returns the root command of the command line
// interface with all subcommands added
func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "goforce",
		Short:         "Run and inspect reinforcement learning experiments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (trace, debug, info, warn, error)")
	rootCommand.PersistentFlags().StringVarP(&saveDir, "save", "s", "results",
		"Save the result data in the specified folder")

	rootCommand.AddCommand(RunCommand())
	rootCommand.AddCommand(SpecCommand())
	rootCommand.AddCommand(PlotCommand())
	return rootCommand
}

// newLogger returns the logger of the command line interface
func newLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "goforce",
		Level:  hclog.LevelFromString(logLevel),
		Output: os.Stderr,
	})
}
