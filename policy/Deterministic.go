package policy

import (
	"fmt"

	"github.com/samuelfneumann/goforce/network"
	"github.com/samuelfneumann/goforce/tensorspec"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// Deterministic is a deterministic actor, a policy which selects the
// action its network predicts. In training mode, Gaussian noise with
// standard deviation Exploration is added to selected actions, and
// Gaussian noise with standard deviation VariableNoise is added to the
// network weights before each action is selected.
type Deterministic struct {
	Module

	head      ActionHead
	net       network.NeuralNet // batch size 1
	actionVal G.Value
	vm        G.VM

	exploration   float64
	variableNoise float64
	noise         distuv.Normal

	eval bool
}

// NewDeterministic returns a new Deterministic policy which selects
// actions using a copy of actor. Use Sync to copy new weights from
// actor into the policy.
func NewDeterministic(name string, actor network.NeuralNet, head ActionHead,
	exploration, variableNoise float64, seed uint64) (*Deterministic, error) {
	if exploration < 0 || variableNoise < 0 {
		return nil, fmt.Errorf("newDeterministic: exploration and variable " +
			"noise must be non-negative")
	}

	net, err := actor.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("newDeterministic: could not clone actor: %v",
			err)
	}

	action, err := head.Apply(net.Prediction())
	if err != nil {
		return nil, fmt.Errorf("newDeterministic: %v", err)
	}

	d := &Deterministic{
		Module:        Module{Name: name},
		head:          head,
		net:           net,
		exploration:   exploration,
		variableNoise: variableNoise,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed),
		},
	}
	G.Read(action, &d.actionVal)
	d.vm = G.NewTapeMachine(net.Graph())

	return d, nil
}

// InputSignature returns the signature of the inputs of function
func (d *Deterministic) InputSignature(function string) (
	*tensorspec.SignatureDict, error) {
	if function != "act" {
		return d.Module.InputSignature(function)
	}

	sig := tensorspec.NewSignatureDict()
	sig.Set("states", tensorspec.New(tensorspec.Float,
		d.net.Features()).Signature(true))
	return sig, nil
}

// OutputSignature returns the signature of the outputs of function
func (d *Deterministic) OutputSignature(function string) (
	*tensorspec.SignatureDict, error) {
	if function != "act" {
		return d.Module.OutputSignature(function)
	}

	sig := tensorspec.NewSignatureDict()
	sig.Set("actions", tensorspec.New(tensorspec.Float,
		d.net.Outputs()).Signature(true))
	return sig, nil
}

// Act returns the action selected in state
func (d *Deterministic) Act(state []float64) ([]float64, error) {
	perturb := !d.eval && d.variableNoise > 0

	var weights [][]float64
	if perturb {
		weights = d.net.Weights()
		if err := d.net.SetWeights(d.perturb(weights)); err != nil {
			return nil, fmt.Errorf("act: could not perturb weights: %v", err)
		}
	}

	action, err := d.predict(state)
	if perturb {
		if restoreErr := d.net.SetWeights(weights); restoreErr != nil {
			return nil, fmt.Errorf("act: could not restore weights: %v",
				restoreErr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("act: %v", err)
	}

	if !d.eval && d.exploration > 0 {
		for i := range action {
			action[i] += d.exploration * d.noise.Rand()
		}
	}
	d.head.Clip(action)

	return action, nil
}

// predict runs the network on state and returns a copy of the action
// before exploration noise
func (d *Deterministic) predict(state []float64) ([]float64, error) {
	if err := d.net.SetInput(state); err != nil {
		return nil, err
	}
	defer d.vm.Reset()
	if err := d.vm.RunAll(); err != nil {
		return nil, err
	}
	return append([]float64{}, d.actionVal.Data().([]float64)...), nil
}

// perturb returns a copy of weights with Gaussian noise added
func (d *Deterministic) perturb(weights [][]float64) [][]float64 {
	perturbed := make([][]float64, len(weights))
	for i := range weights {
		perturbed[i] = make([]float64, len(weights[i]))
		for j := range weights[i] {
			perturbed[i][j] = weights[i][j] + d.variableNoise*d.noise.Rand()
		}
	}
	return perturbed
}

// Sync copies the weights of actor into the policy
func (d *Deterministic) Sync(actor network.NeuralNet) error {
	return d.net.Set(actor)
}

// Network returns the network used to select actions
func (d *Deterministic) Network() network.NeuralNet {
	return d.net
}

// Eval sets the policy to evaluation mode, selecting actions without
// noise
func (d *Deterministic) Eval() { d.eval = true }

// Train sets the policy to training mode
func (d *Deterministic) Train() { d.eval = false }

// IsEval returns whether the policy is in evaluation mode
func (d *Deterministic) IsEval() bool { return d.eval }

// Close closes the policy's VM
func (d *Deterministic) Close() error {
	return d.vm.Close()
}
