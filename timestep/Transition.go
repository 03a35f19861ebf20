package timestep

import "gonum.org/v1/gonum/mat"

// Transition represents a single (S, A, R, γ, S', A') tuple. The
// Discount field holds the discount to apply to the value of NextState,
// which is zero if NextState is terminal and its value should not be
// bootstrapped.
type Transition struct {
	State      *mat.VecDense
	Action     *mat.VecDense
	Reward     float64
	Discount   float64
	NextState  *mat.VecDense
	NextAction *mat.VecDense
}

// NewTransition creates a new Transition from two consecutive
// TimeSteps and the actions taken in each. The reward and discount
// of the transition are those of the next TimeStep.
func NewTransition(step TimeStep, action *mat.VecDense, nextStep TimeStep,
	nextAction *mat.VecDense) Transition {
	return Transition{
		State:      step.Observation,
		Action:     action,
		Reward:     nextStep.Reward,
		Discount:   nextStep.Discount,
		NextState:  nextStep.Observation,
		NextAction: nextAction,
	}
}
