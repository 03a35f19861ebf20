package pendulum

import (
	"math"

	"github.com/samuelfneumann/goforce/environment"
	"gonum.org/v1/gonum/mat"
)

const (
	minReward = -1.0
	maxReward = 1.0
)

// SwingUp is the task of raising the pendulum from any start to the
// upright position and balancing it there. The reward on each step is
// cos(θ') for the next angle θ', measured from the vertical.
type SwingUp struct {
	environment.Starter
	environment.Ender
}

// NewSwingUp returns a SwingUp task drawing initial states from s and
// cutting episodes off after cutoff steps
func NewSwingUp(s environment.Starter, cutoff int) *SwingUp {
	return &SwingUp{Starter: s, Ender: environment.NewStepLimit(cutoff)}
}

// GetReward returns cos(θ') where θ' is the angle of nextState
func (s *SwingUp) GetReward(_, _, nextState mat.Vector) float64 {
	return math.Cos(nextState.AtVec(0))
}

// AtGoal reports whether the pendulum is exactly upright
func (s *SwingUp) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) == 0
}

func (s *SwingUp) Min() float64 { return minReward }

func (s *SwingUp) Max() float64 { return maxReward }

// RewardSpec describes the scalar reward in [-1, 1]
func (s *SwingUp) RewardSpec() environment.Spec {
	return environment.NewSpec(
		mat.NewVecDense(1, nil),
		environment.Reward,
		mat.NewVecDense(1, []float64{minReward}),
		mat.NewVecDense(1, []float64{maxReward}),
		environment.Continuous,
	)
}
