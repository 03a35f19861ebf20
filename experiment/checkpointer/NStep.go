package checkpointer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/goforce/agent"
	"github.com/samuelfneumann/goforce/spec"
	ts "github.com/samuelfneumann/goforce/timestep"
)

// Unit is the unit in which the checkpointing frequency is measured
type Unit string

const (
	Timesteps Unit = "timesteps"
	Episodes  Unit = "episodes"
)

// Defaults of checkpointers created from specifications
const (
	DefaultDirectory      string = "checkpoints"
	DefaultFilename       string = "agent"
	DefaultFrequency      int    = 1
	DefaultUnit           Unit   = Episodes
	DefaultMaxCheckpoints int    = 10
)

// Extension is the file extension of checkpoints
const Extension = ".bin"

// nStep implements checkpointing every N timesteps or episodes
type nStep struct {
	interval int
	unit     Unit
	count    int
	object   agent.Weighter

	// maxCheckpoints is the number of most recent checkpoints to keep
	// on disk. Older checkpoints are removed. Non-positive values keep
	// all checkpoints.
	maxCheckpoints int
	saved          []string

	// filename returns the filename of the next checkpoint. To save
	// each checkpoint in a separate enumerated file (e.g. agent-1.bin,
	// agent-2.bin, ..., agent-K.bin) use FilenameEnumerator.
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n timesteps or
// episodes, depending on unit.
func NewNStep(n int, unit Unit, object agent.Weighter, maxCheckpoints int,
	filename func() string) (Checkpointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("newNStep: interval must be positive")
	}
	if unit != Timesteps && unit != Episodes {
		return nil, fmt.Errorf("newNStep: unknown unit %v", unit)
	}

	return &nStep{
		interval:       n,
		unit:           unit,
		object:         object,
		maxCheckpoints: maxCheckpoints,
		filename:       filename,
	}, nil
}

// FromSpec returns the checkpointer described by a saver
// specification, with keys directory, filename, frequency, unit and
// max_checkpoints. A relative directory is taken relative to root.
func FromSpec(s *spec.Dict, object agent.Weighter,
	root string) (Checkpointer, error) {
	dir, err := s.Str("directory", DefaultDirectory)
	if err != nil {
		return nil, fmt.Errorf("fromSpec: %v", err)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	name, err := s.Str("filename", DefaultFilename)
	if err != nil {
		return nil, fmt.Errorf("fromSpec: %v", err)
	}
	frequency, err := s.Int("frequency", DefaultFrequency)
	if err != nil {
		return nil, fmt.Errorf("fromSpec: %v", err)
	}
	unit, err := s.Str("unit", string(DefaultUnit))
	if err != nil {
		return nil, fmt.Errorf("fromSpec: %v", err)
	}
	maxCheckpoints, err := s.Int("max_checkpoints", DefaultMaxCheckpoints)
	if err != nil {
		return nil, fmt.Errorf("fromSpec: %v", err)
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("fromSpec: could not create directory: %v",
			err)
	}

	c, err := NewNStep(frequency, Unit(unit), object, maxCheckpoints,
		FilenameEnumerator(0, filepath.Join(dir, name), Extension))
	if err != nil {
		return nil, fmt.Errorf("fromSpec: %v", err)
	}
	return c, nil
}

// Checkpoint saves the weights of the tracked object if the
// checkpointing interval has elapsed
func (n *nStep) Checkpoint(t ts.TimeStep) error {
	switch n.unit {
	case Timesteps:
		if t.First() {
			return nil
		}
	case Episodes:
		if !t.Last() {
			return nil
		}
	}

	n.count++
	if n.count%n.interval != 0 {
		return nil
	}

	filename := n.filename()
	if err := Save(n.object, filename); err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	n.saved = append(n.saved, filename)

	if n.maxCheckpoints > 0 && len(n.saved) > n.maxCheckpoints {
		oldest := n.saved[0]
		n.saved = n.saved[1:]
		if err := os.Remove(oldest); err != nil {
			return fmt.Errorf("checkpoint: could not remove %v: %v", oldest,
				err)
		}
	}
	return nil
}
