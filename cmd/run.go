package cmd

import (
	"fmt"
	"os"

	"github.com/samuelfneumann/goforce/experiment"
	"github.com/samuelfneumann/goforce/utils/progressbar"
	"github.com/spf13/cobra"

	// Register agent configurations
	_ "github.com/samuelfneumann/goforce/agent/dpg"
)

var (
	index    int
	seed     uint64
	runs     int
	progress bool
)

// RunCommand returns the command which runs an experiment
func RunCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "run CONFIG",
		Short: "Run the experiment described by a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
	command.Flags().IntVarP(&index, "index", "i", 0,
		"Index of the agent configuration to run")
	command.Flags().Uint64Var(&seed, "seed", 0, "Seed of the first run")
	command.Flags().IntVar(&runs, "runs", 1,
		"Number of runs, each with the next seed")
	command.Flags().BoolVar(&progress, "progress", true,
		"Display a progress bar")
	return command
}

func run(path string) error {
	logger := newLogger()

	c, err := experiment.Load(path)
	if err != nil {
		return err
	}

	for r := 0; r < runs; r++ {
		dir, err := experiment.NewRunDir(saveDir)
		if err != nil {
			return err
		}
		runSeed := seed + uint64(r)
		logger.Info("starting run", "run", r, "seed", runSeed, "dir", dir)

		exp, err := c.CreateExp(index, runSeed, dir, logger)
		if err != nil {
			return err
		}
		if err := runExp(exp); err != nil {
			exp.Close()
			return fmt.Errorf("run %v: %v", r, err)
		}
		if err := exp.Save(); err != nil {
			exp.Close()
			return fmt.Errorf("run %v: %v", r, err)
		}
		if err := exp.Close(); err != nil {
			return fmt.Errorf("run %v: %v", r, err)
		}
	}
	return nil
}

// runExp runs the experiment episode by episode, displaying its
// progress
func runExp(exp experiment.Experiment) error {
	if !progress {
		return exp.Run()
	}

	bar := progressbar.NewManualProgressBar(os.Stdout, 50,
		int(exp.MaxSteps()))
	defer bar.Close()

	for ended := false; !ended; {
		var err error
		if ended, err = exp.RunEpisode(); err != nil {
			return err
		}
		bar.Set(int(exp.Steps()))
		bar.Display()
	}
	return nil
}
