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

// Online is an Experiment that runs an agent online only. No offline
// evaluation is performed.
type Online struct {
	env.Environment
	agent.Agent
	maxSteps      uint
	currentSteps  uint
	episodes      int
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	logger        hclog.Logger
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for, the t parameter determines
// what data is tracked and the c parameter when the agent is
// checkpointed. A nil logger discards all logs.
func NewOnline(e env.Environment, a agent.Agent, steps uint,
	t []tracker.Tracker, c []checkpointer.Checkpointer,
	logger hclog.Logger) *Online {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Online{
		Environment:   e,
		Agent:         a,
		maxSteps:      steps,
		trackers:      t,
		checkpointers: c,
		logger:        logger,
	}
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunEpisode runs a single episode of the experiment
func (o *Online) RunEpisode() (bool, error) {
	step, err := o.Environment.Reset()
	if err != nil {
		return true, fmt.Errorf("runEpisode: %v", err)
	}
	if err := o.Agent.ObserveFirst(step); err != nil {
		return true, fmt.Errorf("runEpisode: %v", err)
	}
	o.track(step)

	var episodeReturn float64
	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		// Select action, step in environment
		action := o.Agent.SelectAction(step)
		o.trackAction(action)
		step, _, err = o.Environment.Step(action)
		if err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		o.track(step)
		episodeReturn += step.Reward

		// Observe the timestep and step the agent
		if err := o.Agent.Observe(action, step); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		if err := o.Agent.Step(); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		if err := o.checkpoint(step); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
	}

	if step.Last() {
		o.episodes++
		o.Agent.EndEpisode()
		o.logger.Debug("episode finished", "episode", o.episodes,
			"length", step.Number, "return", episodeReturn,
			"end", step.EndType())
	}

	// Return whether or not the max timestep limit has been reached
	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run() error {
	o.logger.Info("starting experiment", "max_steps", o.maxSteps)
	for ended := false; !ended; {
		var err error
		if ended, err = o.RunEpisode(); err != nil {
			return fmt.Errorf("run: %v", err)
		}
	}
	o.logger.Info("experiment finished", "episodes", o.episodes,
		"steps", o.currentSteps)
	return nil
}

// Steps returns the number of timesteps run so far
func (o *Online) Steps() uint { return o.currentSteps }

// MaxSteps returns the number of timesteps the experiment runs for
func (o *Online) MaxSteps() uint { return o.maxSteps }

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// Close closes the agent if it must be closed
func (o *Online) Close() error {
	if closer, ok := o.Agent.(agent.Closer); ok {
		return closer.Close()
	}
	return nil
}

// track tracks the current timestep by caching its data in each Tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}

// trackAction sends an action to each Tracker which tracks actions
func (o *Online) trackAction(action mat.Vector) {
	for _, t := range o.trackers {
		if at, ok := t.(tracker.ActionTracker); ok {
			at.TrackAction(action)
		}
	}
}

// checkpoint sends the current timestep to each Checkpointer
func (o *Online) checkpoint(t ts.TimeStep) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return err
		}
	}
	return nil
}
