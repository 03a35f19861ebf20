// Package checkpointer implements checkpointing of agent weights
// during an experiment
package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/goforce/agent"
	ts "github.com/samuelfneumann/goforce/timestep"
)

// Checkpointer checkpoints/saves the weights of an agent based on
// timestep.TimeSteps
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}

// Save saves the weights of w to filename
func Save(w agent.Weighter, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not create checkpoint file: %v", err)
	}

	if err := gob.NewEncoder(file).Encode(w.Weights()); err != nil {
		file.Close()
		return fmt.Errorf("save: could not encode weights: %v", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("save: could not write checkpoint file: %v", err)
	}
	return nil
}

// Load restores the weights of w from a checkpoint saved by Save
func Load(w agent.Weighter, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("load: could not open checkpoint file: %v", err)
	}
	defer file.Close()

	var weights map[string][][]float64
	if err := gob.NewDecoder(file).Decode(&weights); err != nil {
		return fmt.Errorf("load: could not decode weights: %v", err)
	}

	if err := w.SetWeights(weights); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	return nil
}
