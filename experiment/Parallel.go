package experiment

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/samuelfneumann/goforce/agent"
	env "github.com/samuelfneumann/goforce/environment"
	"github.com/samuelfneumann/goforce/experiment/checkpointer"
	"github.com/samuelfneumann/goforce/experiment/tracker"
	ts "github.com/samuelfneumann/goforce/timestep"
	"gonum.org/v1/gonum/mat"
)

// ParallelAgent is an Agent which can interact with multiple
// environments at once
type ParallelAgent interface {
	agent.Agent
	agent.ParallelLearner
}

// Parallel is an Experiment that runs an agent online in one
// environment per parallel interaction of the agent. Environments are
// stepped in lockstep, and an environment whose episode ends is reset
// while the others continue their episodes. Each environment step
// counts as one timestep of the experiment.
type Parallel struct {
	envs          []env.Environment
	agent         ParallelAgent
	steps         []ts.TimeStep
	maxSteps      uint
	currentSteps  uint
	episodes      int
	trackers      [][]tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	logger        hclog.Logger
}

// NewParallel creates and returns a new parallel experiment. There must
// be one environment per parallel interaction of the agent, which must
// be a ParallelAgent. Trackers are given per environment, while
// Checkpointers are sent the TimeSteps of the first environment only.
// A nil logger discards all logs.
func NewParallel(envs []env.Environment, a agent.Agent, steps uint,
	t [][]tracker.Tracker, c []checkpointer.Checkpointer,
	logger hclog.Logger) (*Parallel, error) {
	p, ok := a.(ParallelAgent)
	if !ok {
		return nil, fmt.Errorf("newParallel: agent %T cannot interact in "+
			"parallel", a)
	}
	if len(envs) != p.Parallel() {
		return nil, fmt.Errorf("newParallel: agent has %v parallel "+
			"interactions but %v environments were given", p.Parallel(),
			len(envs))
	}
	if t == nil {
		t = make([][]tracker.Tracker, len(envs))
	}
	if len(t) != len(envs) {
		return nil, fmt.Errorf("newParallel: want %v tracker lists, have %v",
			len(envs), len(t))
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Parallel{
		envs:          envs,
		agent:         p,
		maxSteps:      steps,
		trackers:      t,
		checkpointers: c,
		logger:        logger,
	}, nil
}

// Register registers a tracker.Tracker with the first environment of
// the experiment
func (p *Parallel) Register(t tracker.Tracker) {
	p.trackers[0] = append(p.trackers[0], t)
}

// reset starts a new episode in environment i
func (p *Parallel) reset(i int) error {
	step, err := p.envs[i].Reset()
	if err != nil {
		return err
	}
	if err := p.agent.ObserveFirstAt(i, step); err != nil {
		return err
	}
	p.steps[i] = step
	p.track(i, step)
	return nil
}

// RunEpisode steps all environments until the episode of at least one
// of them ends, and returns whether the timestep limit was reached
func (p *Parallel) RunEpisode() (bool, error) {
	if p.steps == nil {
		p.steps = make([]ts.TimeStep, len(p.envs))
		for i := range p.envs {
			if err := p.reset(i); err != nil {
				return true, fmt.Errorf("runEpisode: %v", err)
			}
		}
	}

	for ended := false; !ended && p.currentSteps < p.maxSteps; {
		for i := range p.envs {
			if p.currentSteps >= p.maxSteps {
				break
			}
			p.currentSteps++

			action := p.agent.SelectAction(p.steps[i])
			p.trackAction(i, action)
			step, _, err := p.envs[i].Step(action)
			if err != nil {
				return true, fmt.Errorf("runEpisode: %v", err)
			}
			p.steps[i] = step
			p.track(i, step)

			if err := p.agent.ObserveAt(i, action, step); err != nil {
				return true, fmt.Errorf("runEpisode: %v", err)
			}
			if err := p.agent.Step(); err != nil {
				return true, fmt.Errorf("runEpisode: %v", err)
			}
			if i == 0 {
				if err := p.checkpoint(step); err != nil {
					return true, fmt.Errorf("runEpisode: %v", err)
				}
			}

			if step.Last() {
				ended = true
				p.episodes++
				p.logger.Debug("episode finished", "parallel", i,
					"episode", p.episodes, "length", step.Number,
					"end", step.EndType())
				if err := p.reset(i); err != nil {
					return true, fmt.Errorf("runEpisode: %v", err)
				}
			}
		}
	}

	return p.currentSteps >= p.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (p *Parallel) Run() error {
	p.logger.Info("starting experiment", "max_steps", p.maxSteps,
		"parallel", len(p.envs))
	for ended := false; !ended; {
		var err error
		if ended, err = p.RunEpisode(); err != nil {
			return fmt.Errorf("run: %v", err)
		}
	}
	p.agent.EndEpisode()
	p.logger.Info("experiment finished", "episodes", p.episodes,
		"steps", p.currentSteps)
	return nil
}

// Steps returns the number of timesteps run so far
func (p *Parallel) Steps() uint { return p.currentSteps }

// MaxSteps returns the number of timesteps the experiment runs for
func (p *Parallel) MaxSteps() uint { return p.maxSteps }

// Save saves all the data cached by the Trackers to disk
func (p *Parallel) Save() error {
	for _, trackers := range p.trackers {
		for _, t := range trackers {
			if err := t.Save(); err != nil {
				return fmt.Errorf("save: %v", err)
			}
		}
	}
	return nil
}

// Close closes the agent if it must be closed
func (p *Parallel) Close() error {
	if closer, ok := p.agent.(agent.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (p *Parallel) track(i int, t ts.TimeStep) {
	for _, tr := range p.trackers[i] {
		tr.Track(t)
	}
}

func (p *Parallel) trackAction(i int, action *mat.VecDense) {
	for _, t := range p.trackers[i] {
		if at, ok := t.(tracker.ActionTracker); ok {
			at.TrackAction(action)
		}
	}
}

func (p *Parallel) checkpoint(t ts.TimeStep) error {
	for _, c := range p.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return err
		}
	}
	return nil
}
