package cmd

import (
	"github.com/samuelfneumann/goforce/experiment/curves"
	"github.com/spf13/cobra"
)

var (
	output  string
	window  int
	summary string
)

// PlotCommand returns the command which plots the learning curves of
// saved runs
func PlotCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "plot RUN...",
		Short: "Plot the learning curves of saved runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			series, err := curves.Load(args, summary)
			if err != nil {
				return err
			}

			yLabel := "Return"
			if summary == "episode-length" {
				yLabel = "Episode Length"
			}
			if err := curves.Plot(summary, yLabel, series, window,
				output); err != nil {
				return err
			}
			newLogger().Info("saved plot", "file", output,
				"series", len(series))
			return nil
		},
	}
	command.Flags().StringVarP(&output, "output", "o", "curves.png",
		"File to save the plot to")
	command.Flags().IntVarP(&window, "window", "w", 10,
		"Number of episodes to smooth over")
	command.Flags().StringVar(&summary, "summary", "return",
		"Summary to plot (return, episode-length)")
	return command
}
