package policy

import (
	"errors"
	"math"
	"testing"

	"github.com/samuelfneumann/goforce/network"
	"github.com/samuelfneumann/goforce/tensorspec"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	stateFeatures  = 2
	actionFeatures = 1
)

func newNet(t *testing.T, features, outputs int) network.NeuralNet {
	t.Helper()
	net, err := network.NewMLP(features, 1, outputs, G.NewGraph(),
		[]int{8}, []bool{true}, G.GlorotU(1.0),
		[]*network.Activation{network.TanH()})
	if err != nil {
		t.Fatalf("could not create network: %v", err)
	}
	return net
}

func newStatesSpec() *tensorspec.Dict {
	states := tensorspec.NewDict()
	states.Set("state", tensorspec.New(tensorspec.Float, stateFeatures))
	return states
}

func newHead() ActionHead {
	return NewActionHead(tensorspec.NewBoundedFloat(-2, 2, actionFeatures),
		false)
}

func near(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestStateValueSignatures(t *testing.T) {
	v := NewStateValue("value", 0, newStatesSpec(), nil, nil)

	in, err := v.InputSignature("state_value")
	if err != nil {
		t.Fatalf("state_value inputs: %v", err)
	}
	if names := in.Names(); len(names) != 1 || names[0] != "horizons" {
		t.Errorf("state_value inputs: want(horizons) have(%v)", names)
	}
	dicts := in.DictNames()
	if len(dicts) != 3 || dicts[0] != "states" || dicts[1] != "internals" ||
		dicts[2] != "auxiliaries" {
		t.Errorf("state_value nested inputs: have(%v)", dicts)
	}

	in, err = v.InputSignature("past_horizon")
	if err != nil || !in.Empty() {
		t.Errorf("past_horizon inputs: want(empty) have(%v, %v)", in, err)
	}

	out, err := v.OutputSignature("past_horizon")
	if err != nil {
		t.Fatalf("past_horizon outputs: %v", err)
	}
	if sig, _ := out.Get("singleton"); sig.Batched ||
		sig.Type != tensorspec.Int || len(sig.Shape) != 0 {
		t.Errorf("past_horizon outputs: have(%v)", sig)
	}

	out, err = v.OutputSignature("state_value")
	if err != nil {
		t.Fatalf("state_value outputs: %v", err)
	}
	if sig, _ := out.Get("singleton"); !sig.Batched ||
		sig.Type != tensorspec.Float || len(sig.Shape) != 0 {
		t.Errorf("state_value outputs: have(%v)", sig)
	}

	if _, err := v.InputSignature("act"); !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("unknown function: want(ErrUnknownFunction) have(%v)", err)
	}

	_, err = v.StateValue(nil, NewHorizons(1), nil, nil)
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("abstract state value: want(ErrNotImplemented) have(%v)",
			err)
	}
	if v.PastHorizon() != 0 {
		t.Errorf("past horizon: want(0) have(%v)", v.PastHorizon())
	}
}

func TestCheckInputs(t *testing.T) {
	v := NewStateValue("value", 0, newStatesSpec(), nil, nil)

	states := tensorspec.NewTensorDict()
	states.Set("state", tensor.New(tensor.WithShape(3, stateFeatures),
		tensor.WithBacking(make([]float64, 3*stateFeatures))))

	if err := v.CheckInputs(states, NewHorizons(3), nil, nil); err != nil {
		t.Errorf("valid: unexpected error: %v", err)
	}

	badHorizons := tensor.New(tensor.WithShape(3, 3),
		tensor.WithBacking(make([]int, 9)))
	if err := v.CheckInputs(states, badHorizons, nil, nil); err == nil {
		t.Error("horizons shape: expected an error")
	}

	floatHorizons := tensor.New(tensor.WithShape(3, 2),
		tensor.WithBacking(make([]float64, 6)))
	if err := v.CheckInputs(states, floatHorizons, nil, nil); err == nil {
		t.Error("horizons dtype: expected an error")
	}

	if err := v.CheckInputs(states, nil, nil, nil); err == nil {
		t.Error("missing horizons: expected an error")
	}
}

func TestL2Loss(t *testing.T) {
	net := newNet(t, stateFeatures, actionFeatures)

	m := Module{Name: "none"}
	if loss, err := m.L2Loss(net.Learnables()); loss != nil || err != nil {
		t.Errorf("unregularized: want(nil, nil) have(%v, %v)", loss, err)
	}

	m.L2Regularization = 0.1
	loss, err := m.L2Loss(net.Learnables())
	if err != nil {
		t.Fatalf("l2Loss: %v", err)
	}

	var lossVal G.Value
	G.Read(loss, &lossVal)
	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("could not compute loss: %v", err)
	}

	want := 0.0
	for _, w := range net.Weights() {
		for _, x := range w {
			want += x * x
		}
	}
	want *= 0.5 * 0.1
	if have := lossVal.Data().(float64); math.Abs(have-want) > 1e-9 {
		t.Errorf("l2 loss: want(%v) have(%v)", want, have)
	}
}

func TestDeterministicAct(t *testing.T) {
	actor := newNet(t, stateFeatures, actionFeatures)
	d, err := NewDeterministic("policy", actor, newHead(), 10, 0, 1)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}
	defer d.Close()

	state := []float64{0.3, -0.7}

	d.Eval()
	first, err := d.Act(state)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	second, _ := d.Act(state)
	if !near(first, second) {
		t.Errorf("eval: actions differ %v %v", first, second)
	}

	// With a large exploration noise, training actions must be noisy and
	// still lie within the action bounds
	d.Train()
	noisy := false
	for i := 0; i < 20; i++ {
		action, err := d.Act(state)
		if err != nil {
			t.Fatalf("act: %v", err)
		}
		if action[0] < -2 || action[0] > 2 {
			t.Errorf("action %v outside of bounds", action)
		}
		if !near(action, first) {
			noisy = true
		}
	}
	if !noisy {
		t.Error("train: actions were not perturbed by exploration")
	}

	if _, err := NewDeterministic("policy", actor, newHead(), -1, 0,
		1); err == nil {
		t.Error("negative exploration: expected an error")
	}
}

func TestDeterministicVariableNoise(t *testing.T) {
	actor := newNet(t, stateFeatures, actionFeatures)
	d, err := NewDeterministic("policy", actor, ActionHead{}, 0, 0.5, 1)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}
	defer d.Close()

	state := []float64{1, 1}
	weights := d.Network().Weights()

	d.Eval()
	clean, _ := d.Act(state)

	d.Train()
	perturbed, err := d.Act(state)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if near(clean, perturbed) {
		t.Error("variable noise did not change the action")
	}

	// Weights are restored after acting
	for i, w := range d.Network().Weights() {
		if !near(w, weights[i]) {
			t.Errorf("weights %v were not restored after acting", i)
		}
	}
}

// restoreFails is a network whose weights can be set only once
type restoreFails struct {
	network.NeuralNet
	sets int
}

func (r *restoreFails) SetWeights(weights [][]float64) error {
	r.sets++
	if r.sets > 1 {
		return errors.New("weights locked")
	}
	return r.NeuralNet.SetWeights(weights)
}

func TestDeterministicRestoreError(t *testing.T) {
	actor := newNet(t, stateFeatures, actionFeatures)
	d, err := NewDeterministic("policy", actor, ActionHead{}, 0, 0.5, 1)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}
	defer d.Close()

	d.net = &restoreFails{NeuralNet: d.net}
	if _, err := d.Act([]float64{1, 1}); err == nil {
		t.Error("act: expected an error when weights cannot be restored")
	}
}

func TestDeterministicSync(t *testing.T) {
	actor := newNet(t, stateFeatures, actionFeatures)
	d, err := NewDeterministic("policy", actor, newHead(), 0, 0, 1)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}
	defer d.Close()
	d.Eval()

	other := newNet(t, stateFeatures, actionFeatures)
	if err := actor.Set(other); err != nil {
		t.Fatalf("set: %v", err)
	}

	o, err := NewDeterministic("other", other, newHead(), 0, 0, 1)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}
	defer o.Close()
	o.Eval()

	if err := d.Sync(actor); err != nil {
		t.Fatalf("sync: %v", err)
	}

	state := []float64{-0.2, 0.9}
	a, _ := d.Act(state)
	b, _ := o.Act(state)
	if !near(a, b) {
		t.Errorf("synced policies differ: %v %v", a, b)
	}
}

func TestActionValue(t *testing.T) {
	critic := newNet(t, stateFeatures+actionFeatures, 1)
	q, err := NewActionValue("critic", critic, stateFeatures, actionFeatures,
		0)
	if err != nil {
		t.Fatalf("could not create action value: %v", err)
	}
	defer q.Close()

	states := []float64{0.1, 0.2, -0.3, 0.4}
	actions := []float64{1.5, -1}
	values, err := q.ActionValue(states, actions)
	if err != nil {
		t.Fatalf("actionValue: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("actionValue: want(2 values) have(%v)", values)
	}

	// Compare each row to the critic run directly
	for i := 0; i < 2; i++ {
		input := append(append([]float64{},
			states[i*stateFeatures:(i+1)*stateFeatures]...), actions[i])
		if err := critic.SetInput(input); err != nil {
			t.Fatalf("setInput: %v", err)
		}
		vm := G.NewTapeMachine(critic.Graph())
		if err := vm.RunAll(); err != nil {
			t.Fatalf("run: %v", err)
		}
		want := critic.Output().Data().([]float64)[0]
		vm.Close()

		if math.Abs(values[i]-want) > 1e-9 {
			t.Errorf("row %v: want(%v) have(%v)", i, want, values[i])
		}
	}

	if _, err := q.ActionValue(states, []float64{1}); err == nil {
		t.Error("mismatched batch: expected an error")
	}
	if _, err := NewActionValue("critic", critic, 1, 1, 0); err == nil {
		t.Error("wrong features: expected an error")
	}
}

func TestActorCriticValue(t *testing.T) {
	actor := newNet(t, stateFeatures, actionFeatures)
	critic := newNet(t, stateFeatures+actionFeatures, 1)
	head := newHead()

	base := NewStateValue("value", 0, newStatesSpec(), nil, nil)
	v, err := NewActorCriticValue(base, actor, critic, head, nil)
	if err != nil {
		t.Fatalf("could not create state value: %v", err)
	}
	defer v.Close()

	var _ StateValuer = v

	backing := []float64{0.5, -0.5, 1, 0}
	states := tensorspec.NewTensorDict()
	states.Set("state", tensor.New(tensor.WithShape(2, stateFeatures),
		tensor.WithBacking(backing)))

	values, err := v.StateValue(states, NewHorizons(2), nil, nil)
	if err != nil {
		t.Fatalf("stateValue: %v", err)
	}

	// V(s) = Q(s, μ(s))
	pi, err := NewDeterministic("policy", actor, head, 0, 0, 1)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}
	defer pi.Close()
	pi.Eval()

	q, err := NewActionValue("critic", critic, stateFeatures, actionFeatures,
		0)
	if err != nil {
		t.Fatalf("could not create action value: %v", err)
	}
	defer q.Close()

	actions := make([]float64, 0, 2)
	for i := 0; i < 2; i++ {
		a, err := pi.Act(backing[i*stateFeatures : (i+1)*stateFeatures])
		if err != nil {
			t.Fatalf("act: %v", err)
		}
		actions = append(actions, a...)
	}
	want, err := q.ActionValue(backing, actions)
	if err != nil {
		t.Fatalf("actionValue: %v", err)
	}
	if !near(values, want) {
		t.Errorf("state values: want(%v) have(%v)", want, values)
	}

	// Mismatched horizons batch
	if _, err := v.StateValue(states, NewHorizons(3), nil, nil); err == nil {
		t.Error("horizons batch: expected an error")
	}
}

func TestEmptyBatch(t *testing.T) {
	actor := newNet(t, stateFeatures, actionFeatures)
	critic := newNet(t, stateFeatures+actionFeatures, 1)

	base := NewStateValue("value", 0, newStatesSpec(), nil, nil)
	v, err := NewActorCriticValue(base, actor, critic, newHead(), nil)
	if err != nil {
		t.Fatalf("could not create state value: %v", err)
	}
	defer v.Close()

	states := tensorspec.NewTensorDict()
	states.Set("state", tensor.New(tensor.WithShape(0, stateFeatures),
		tensor.WithBacking([]float64{})))
	if _, err := v.StateValue(states, NewHorizons(0), nil, nil); err == nil {
		t.Error("stateValue: expected an error on an empty batch")
	}

	q, err := NewActionValue("critic", critic, stateFeatures, actionFeatures,
		0)
	if err != nil {
		t.Fatalf("could not create action value: %v", err)
	}
	defer q.Close()
	if _, err := q.ActionValue(nil, nil); err == nil {
		t.Error("actionValue: expected an error on an empty batch")
	}
}
