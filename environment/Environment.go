// Package environment outlines the interfaces and sturcts needed to implement
// concrete environments
package environment

import (
	"github.com/samuelfneumann/goforce/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when an episode ends
type Ender interface {
	// End determines whether the episode should end at the argument
	// TimeStep. If so, the TimeStep's StepType and EndType are
	// adjusted in place.
	End(*timestep.TimeStep) bool
}

// Task implements the reward scheme for taking actions in some
// environment
type Task interface {
	Starter
	Ender

	GetReward(state, action, nextState mat.Vector) float64
	AtGoal(state mat.Matrix) bool

	Min() float64 // Minimum attainable reward
	Max() float64 // Maximum attainable reward
	RewardSpec() Spec
}

// Environment implements a simualted environment, which includes a Task
// to complete
type Environment interface {
	Task

	// Reset resets the environment between episodes
	Reset() (timestep.TimeStep, error)

	// Step takes a single environmental step given an action, and
	// returns the next TimeStep as well as whether the episode ended
	Step(action *mat.VecDense) (timestep.TimeStep, bool, error)

	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec

	// LastTimeStep returns the most recent TimeStep of the
	// environment
	LastTimeStep() timestep.TimeStep
}
