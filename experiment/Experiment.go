// Package experiment implements functionality for running an experiment
package experiment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/samuelfneumann/goforce/agent"
	"github.com/samuelfneumann/goforce/environment"
	"github.com/samuelfneumann/goforce/environment/envconfig"
	"github.com/samuelfneumann/goforce/experiment/tracker"
	"github.com/samuelfneumann/goforce/spec"
)

// Experiment outlines structs that can run experiments. Experiments
// send each environment TimeStep to their Trackers, which cache data
// in RAM to be later saved to disk by Save, and to their
// Checkpointers, which save the agent's weights as the experiment
// progresses. Run runs all episodes until the maximum timestep limit
// is reached, while RunEpisode runs a single episode.
type Experiment interface {
	Run() error

	// RunEpisode runs a single episode and returns whether the
	// timestep limit was reached
	RunEpisode() (bool, error)

	// Register adds a new tracker.Tracker to the (possibly already
	// running) experiment. Useful to track data only after a specified
	// event.
	Register(t tracker.Tracker)

	// Save saves all tracked data to disk
	Save() error

	// Steps returns the number of timesteps run so far and MaxSteps
	// the timestep limit
	Steps() uint
	MaxSteps() uint

	// Close releases the resources held by the agent
	Close() error
}

// Type is the type of an experiment
type Type string

const (
	// OnlineExp runs an agent in a single environment
	OnlineExp Type = "Online"

	// ParallelExp runs an agent in one environment per parallel
	// interaction of the agent, stepping all environments in lockstep
	ParallelExp Type = "Parallel"
)

// Config represents a configuration of an experiment
type Config struct {
	Type      Type                  `json:"type"`
	MaxSteps  uint                  `json:"max_steps"`
	EnvConf   envconfig.Config      `json:"environment"`
	AgentConf agent.TypedConfigList `json:"agent"`
}

// Validate returns an error if the Config is invalid
func (c Config) Validate() error {
	if c.Type != OnlineExp && c.Type != ParallelExp {
		return fmt.Errorf("validate: no such experiment type %v", c.Type)
	}
	if c.MaxSteps == 0 {
		return fmt.Errorf("validate: max steps must be positive")
	}
	if err := c.EnvConf.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.AgentConf.ConfigList == nil {
		return fmt.Errorf("validate: no agent configurations")
	}
	if c.AgentConf.Len() == 0 {
		return fmt.Errorf("validate: empty agent configuration list")
	}
	return nil
}

// NewRunDir creates and returns a new uniquely named directory under
// root, in which the data of a single run is stored
func NewRunDir(root string) (string, error) {
	dir := filepath.Join(root, uuid.NewString())
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("newRunDir: %v", err)
	}
	return dir, nil
}

// CreateExp creates the experiment which runs the agent configuration
// at index i of the Config's agent configurations. All data of the
// experiment is saved under dir.
func (c Config) CreateExp(i int, seed uint64, dir string,
	logger hclog.Logger) (Experiment, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	conf := c.AgentConf.At(i)
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("createExp: invalid agent configuration "+
			"%v: %v", i, err)
	}

	env, _, err := c.EnvConf.Create(seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}
	a, err := conf.CreateAgent(env, seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create agent: %v", err)
	}

	if err := writeSpec(conf, dir); err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}

	parallel := 1
	if c.Type == ParallelExp {
		learner, ok := a.(agent.ParallelLearner)
		if !ok {
			return nil, fmt.Errorf("createExp: agent %T cannot interact "+
				"in parallel", a)
		}
		parallel = learner.Parallel()
	}

	trackers, checkpointers, err := monitors(conf, a, dir, parallel)
	if err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}
	logger = logger.With("agent", conf.Type(), "config", i, "seed", seed)

	switch c.Type {
	case OnlineExp:
		return NewOnline(env, a, c.MaxSteps, trackers[0], checkpointers,
			logger), nil

	case ParallelExp:
		envs := []environment.Environment{env}
		for j := 1; j < parallel; j++ {
			e, _, err := c.EnvConf.Create(seed + uint64(j))
			if err != nil {
				return nil, fmt.Errorf("createExp: %v", err)
			}
			envs = append(envs, e)
		}

		exp, err := NewParallel(envs, a, c.MaxSteps, trackers,
			checkpointers, logger)
		if err != nil {
			return nil, fmt.Errorf("createExp: %v", err)
		}
		return exp, nil
	}

	return nil, fmt.Errorf("createExp: no such experiment type %v", c.Type)
}

// writeSpec saves the specification of an agent configuration, if it
// has one, to dir
func writeSpec(c agent.Config, dir string) error {
	specer, ok := c.(interface{ Spec() *spec.Dict })
	if !ok {
		return nil
	}

	data, err := json.MarshalIndent(specer.Spec(), "", "  ")
	if err != nil {
		return fmt.Errorf("writeSpec: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "agent.json"), data,
		0o644); err != nil {
		return fmt.Errorf("writeSpec: %v", err)
	}
	return nil
}
