// Package agent defines the interfaces of agents, their configurations
// and the registry of agent types used to deserialize configurations.
package agent

import (
	"github.com/samuelfneumann/goforce/timestep"
	"gonum.org/v1/gonum/mat"
)

// Agent couples a Learner with the Policy it trains. The two share
// weights, so updates made by Step are seen by SelectAction.
type Agent interface {
	Learner
	Policy
}

// Closer is an Agent holding resources, such as computational graph
// machines, which must be released once training is over
type Closer interface {
	Agent
	Close() error
}

// Learner consumes the experience of an agent and updates its weights
type Learner interface {
	// ObserveFirst starts a new episode at t
	ObserveFirst(t timestep.TimeStep) error

	// Observe records that taking action led to nextObs
	Observe(action mat.Vector, nextObs timestep.TimeStep) error

	// Step runs one update, which may be a no-op depending on the
	// update schedule
	Step() error

	// EndEpisode is called once an episode's Last step was observed
	EndEpisode()
}

// ParallelLearner is a Learner which interacts with several
// environments at once. Each environment is identified by an index in
// [0, Parallel()) and has its own episode history.
type ParallelLearner interface {
	Learner
	Parallel() int
	ObserveFirstAt(parallel int, t timestep.TimeStep) error
	ObserveAt(parallel int, action mat.Vector, nextObs timestep.TimeStep) error
}

// TdErrorer is a Learner which can compute the TD error of a
// transition under its current weights
type TdErrorer interface {
	Learner
	TdError(t timestep.Transition) float64
}

// Policy selects actions. In training mode actions may be explored,
// in evaluation mode they are greedy.
type Policy interface {
	SelectAction(t timestep.TimeStep) *mat.VecDense
	Eval()
	Train()
	IsEval() bool
}

// Weighter is an agent whose weights can be read and restored by name,
// which is how checkpoints are taken
type Weighter interface {
	Weights() map[string][][]float64
	SetWeights(map[string][][]float64) error
}
