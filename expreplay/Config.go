package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/goforce/spec"
)

// Replay is the only memory type, a replay buffer
const Replay = "replay"

// Config implements a specific configuration of an ExperienceReplayer
type Config struct {
	Type         string
	Capacity     int
	BatchSize    int
	MinCapacity  int
	SampleMethod SelectorType
}

// NewConfig returns a new Config of a replay memory with the given
// capacity that samples batches of batchSize uniformly at random once
// it holds minCapacity transitions
func NewConfig(capacity, batchSize, minCapacity int) Config {
	return Config{
		Type:         Replay,
		Capacity:     capacity,
		BatchSize:    batchSize,
		MinCapacity:  minCapacity,
		SampleMethod: Uniform,
	}
}

// Validate returns an error if the Config is invalid
func (c Config) Validate() error {
	if c.Type != Replay {
		return fmt.Errorf("validate: unknown memory type %q", c.Type)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("validate: capacity must be > 0")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("validate: batch size must be > 0")
	}
	if c.BatchSize > c.Capacity {
		return fmt.Errorf("validate: batch size (%v) cannot exceed capacity "+
			"(%v)", c.BatchSize, c.Capacity)
	}
	if c.MinCapacity <= 0 || c.MinCapacity > c.Capacity {
		return fmt.Errorf("validate: min capacity must be in [1, %v]",
			c.Capacity)
	}
	return nil
}

// Create creates and returns the ExperienceReplayer with the specified
// Config.
func (c Config) Create(featureSize, actionSize int,
	seed uint64) (ExperienceReplayer, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	sampler, err := CreateSelector(c.SampleMethod, c.BatchSize, seed)
	if err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	return New(sampler, c.MinCapacity, c.Capacity, featureSize, actionSize,
		false)
}

// Spec returns the memory specification
func (c Config) Spec() *spec.Dict {
	return spec.New("type", c.Type, "capacity", c.Capacity)
}
