package dpg

import (
	"math"

	"github.com/samuelfneumann/goforce/timestep"
	"gonum.org/v1/gonum/mat"
)

// pending is a transition whose n-step return is still accumulating
type pending struct {
	state  *mat.VecDense
	action *mat.VecDense
	ret    float64 // Discounted sum of rewards so far
	n      int     // Number of rewards summed
}

// buffer turns the interaction of a single episode into n-step
// transitions:
//
//	(s_t, a_t, Σ_{k<n} γ^k r_{t+k+1}, γ^n, s_{t+n})
//
// with n equal to the horizon, or less at the end of an episode. The
// value of a terminal state is zero unless predictTerminal is set, in
// which case it is bootstrapped like the final state of an episode
// which timed out.
type buffer struct {
	horizon         int
	discount        float64
	predictTerminal bool

	state   *mat.VecDense // Most recent state
	pending []pending
}

func newBuffer(horizon int, discount float64, predictTerminal bool) *buffer {
	return &buffer{
		horizon:         horizon,
		discount:        discount,
		predictTerminal: predictTerminal,
		pending:         make([]pending, 0, horizon),
	}
}

// start starts a new episode in state, discarding any pending
// transitions
func (b *buffer) start(state *mat.VecDense) {
	b.state = state
	b.pending = b.pending[:0]
}

// started returns whether an episode has been started
func (b *buffer) started() bool {
	return b.state != nil
}

// add records that action taken in the most recent state lead to next,
// whose preprocessed observation is nextState, and returns the
// transitions whose returns are complete
func (b *buffer) add(action *mat.VecDense, next timestep.TimeStep,
	nextState *mat.VecDense) []timestep.Transition {
	b.pending = append(b.pending, pending{state: b.state, action: action})
	for i := range b.pending {
		p := &b.pending[i]
		p.ret += math.Pow(b.discount, float64(p.n)) * next.Reward
		p.n++
	}

	var complete []timestep.Transition
	if next.Last() {
		bootstrap := next.EndType() == timestep.Timeout || b.predictTerminal
		for _, p := range b.pending {
			complete = append(complete, b.transition(p, nextState, bootstrap))
		}
		b.pending = b.pending[:0]
		b.state = nil
		return complete
	}

	if b.pending[0].n == b.horizon {
		complete = append(complete, b.transition(b.pending[0], nextState,
			true))
		b.pending = append(b.pending[:0], b.pending[1:]...)
	}
	b.state = nextState

	return complete
}

func (b *buffer) transition(p pending, nextState *mat.VecDense,
	bootstrap bool) timestep.Transition {
	discount := 0.0
	if bootstrap {
		discount = math.Pow(b.discount, float64(p.n))
	}
	return timestep.Transition{
		State:     p.state,
		Action:    p.action,
		Reward:    p.ret,
		Discount:  discount,
		NextState: nextState,
	}
}
