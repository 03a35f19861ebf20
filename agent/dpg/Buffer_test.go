package dpg

import (
	"math"
	"testing"

	"github.com/samuelfneumann/goforce/timestep"
	"gonum.org/v1/gonum/mat"
)

func vec(x float64) *mat.VecDense {
	return mat.NewVecDense(1, []float64{x})
}

func step(t timestep.StepType, reward float64, n int) timestep.TimeStep {
	return timestep.New(t, reward, 1, vec(float64(n)), n)
}

func last(reward float64, n int, end timestep.EndType) timestep.TimeStep {
	s := step(timestep.Last, reward, n)
	s.SetEnd(end)
	return s
}

func TestBufferOneStep(t *testing.T) {
	b := newBuffer(1, 0.5, false)
	b.start(vec(0))

	out := b.add(vec(10), step(timestep.Mid, 1, 1), vec(1))
	if len(out) != 1 {
		t.Fatalf("want(1 transition) have(%v)", len(out))
	}
	tr := out[0]
	if tr.State.AtVec(0) != 0 || tr.NextState.AtVec(0) != 1 ||
		tr.Action.AtVec(0) != 10 {
		t.Errorf("transition: have(%v, %v, %v)", tr.State.AtVec(0),
			tr.Action.AtVec(0), tr.NextState.AtVec(0))
	}
	if tr.Reward != 1 || tr.Discount != 0.5 {
		t.Errorf("return and discount: want(1, 0.5) have(%v, %v)", tr.Reward,
			tr.Discount)
	}
}

func TestBufferNStep(t *testing.T) {
	b := newBuffer(3, 0.5, false)
	b.start(vec(0))

	if out := b.add(vec(0), step(timestep.Mid, 1, 1), vec(1)); len(out) != 0 {
		t.Errorf("step 1: want(0 transitions) have(%v)", len(out))
	}
	if out := b.add(vec(1), step(timestep.Mid, 2, 2), vec(2)); len(out) != 0 {
		t.Errorf("step 2: want(0 transitions) have(%v)", len(out))
	}

	out := b.add(vec(2), step(timestep.Mid, 4, 3), vec(3))
	if len(out) != 1 {
		t.Fatalf("step 3: want(1 transition) have(%v)", len(out))
	}
	// 1 + 0.5 * 2 + 0.25 * 4
	if out[0].Reward != 3 || out[0].Discount != 0.125 {
		t.Errorf("step 3: want(3, 0.125) have(%v, %v)", out[0].Reward,
			out[0].Discount)
	}
	if out[0].State.AtVec(0) != 0 || out[0].NextState.AtVec(0) != 3 {
		t.Errorf("step 3: wrong states")
	}

	// Terminal: remaining transitions are flushed without bootstrapping
	out = b.add(vec(3), last(8, 4, timestep.TerminalStateReached), vec(4))
	if len(out) != 3 {
		t.Fatalf("terminal: want(3 transitions) have(%v)", len(out))
	}
	wantReturns := []float64{2 + 0.5*4 + 0.25*8, 4 + 0.5*8, 8}
	for i, tr := range out {
		if math.Abs(tr.Reward-wantReturns[i]) > 1e-12 {
			t.Errorf("terminal %v: return want(%v) have(%v)", i,
				wantReturns[i], tr.Reward)
		}
		if tr.Discount != 0 {
			t.Errorf("terminal %v: discount want(0) have(%v)", i, tr.Discount)
		}
	}
	if b.started() {
		t.Error("buffer should require a new episode after a last step")
	}
}

func TestBufferEpisodeEnd(t *testing.T) {
	tests := []struct {
		name            string
		end             timestep.EndType
		predictTerminal bool
		discount        []float64
	}{
		{"timeout", timestep.Timeout, false, []float64{0.25, 0.5}},
		{"terminal", timestep.TerminalStateReached, false, []float64{0, 0}},
		{"predicted terminal", timestep.TerminalStateReached, true,
			[]float64{0.25, 0.5}},
	}

	for _, test := range tests {
		b := newBuffer(5, 0.5, test.predictTerminal)
		b.start(vec(0))
		b.add(vec(0), step(timestep.Mid, 1, 1), vec(1))
		out := b.add(vec(1), last(1, 2, test.end), vec(2))

		if len(out) != 2 {
			t.Fatalf("%v: want(2 transitions) have(%v)", test.name, len(out))
		}
		for i, tr := range out {
			if tr.Discount != test.discount[i] {
				t.Errorf("%v %v: discount want(%v) have(%v)", test.name, i,
					test.discount[i], tr.Discount)
			}
			if tr.NextState.AtVec(0) != 2 {
				t.Errorf("%v %v: next state should be the last state",
					test.name, i)
			}
		}
	}
}
