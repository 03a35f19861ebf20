package policy

import (
	"fmt"

	"github.com/samuelfneumann/goforce/network"
	"github.com/samuelfneumann/goforce/tensorspec"
	G "gorgonia.org/gorgonia"
)

// ActionValue is an action-value critic, estimating the value of taking
// actions in states with a network over the concatenation of states
// and actions.
type ActionValue struct {
	Module

	critic         network.NeuralNet
	stateFeatures  int
	actionFeatures int
	graphs         *evalGraphs
}

// NewActionValue returns a new ActionValue which predicts values with
// critic. The critic's inputs are stateFeatures state features
// followed by actionFeatures action features.
func NewActionValue(name string, critic network.NeuralNet, stateFeatures,
	actionFeatures int, l2 float64) (*ActionValue, error) {
	if critic.Features() != stateFeatures+actionFeatures {
		return nil, fmt.Errorf("newActionValue: critic must have %v "+
			"features \n\thave(%v)", stateFeatures+actionFeatures,
			critic.Features())
	}
	if critic.Outputs() != 1 {
		return nil, fmt.Errorf("newActionValue: critic must have a single "+
			"output \n\thave(%v)", critic.Outputs())
	}

	a := &ActionValue{
		Module:         Module{Name: name, L2Regularization: l2},
		critic:         critic,
		stateFeatures:  stateFeatures,
		actionFeatures: actionFeatures,
	}
	a.graphs = newEvalGraphs(a.build)

	return a, nil
}

func (a *ActionValue) build(batch int) (*evalGraph, error) {
	g := G.NewGraph()
	states, err := newInput(g, "states", batch, a.stateFeatures)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	actions, err := newInput(g, "actions", batch, a.actionFeatures)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}

	clone, err := a.critic.CloneWithInputTo(1, []*G.Node{states, actions},
		g, a.Name)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}

	return &evalGraph{
		g:       g,
		inputs:  []*G.Node{states, actions},
		sources: []network.NeuralNet{a.critic},
		clones:  []network.NeuralNet{clone},
		output:  clone,
		vm:      G.NewTapeMachine(g),
	}, nil
}

// InputSignature returns the signature of the inputs of function
func (a *ActionValue) InputSignature(function string) (
	*tensorspec.SignatureDict, error) {
	if function != "action_value" {
		return a.Module.InputSignature(function)
	}

	sig := tensorspec.NewSignatureDict()
	sig.Set("states", tensorspec.New(tensorspec.Float,
		a.stateFeatures).Signature(true))
	sig.Set("actions", tensorspec.New(tensorspec.Float,
		a.actionFeatures).Signature(true))
	return sig, nil
}

// OutputSignature returns the signature of the outputs of function
func (a *ActionValue) OutputSignature(function string) (
	*tensorspec.SignatureDict, error) {
	if function != "action_value" {
		return a.Module.OutputSignature(function)
	}

	sig := tensorspec.NewSignatureDict()
	sig.Set("singleton", tensorspec.New(tensorspec.Float).Signature(true))
	return sig, nil
}

// ActionValue returns the value of each batch row of actions taken in
// the corresponding row of states. States and actions are row-major
// matrices.
func (a *ActionValue) ActionValue(states, actions []float64) ([]float64,
	error) {
	if len(states)%a.stateFeatures != 0 {
		return nil, fmt.Errorf("actionValue: states size %v is not a "+
			"multiple of %v", len(states), a.stateFeatures)
	}
	batch := len(states) / a.stateFeatures
	if batch < 1 {
		return nil, fmt.Errorf("actionValue: batch size must be positive")
	}
	if len(actions) != batch*a.actionFeatures {
		return nil, fmt.Errorf("actionValue: invalid batch \n\tstates(%v)"+
			"\n\tactions(%v)", len(states), len(actions))
	}

	graph, err := a.graphs.get(batch)
	if err != nil {
		return nil, fmt.Errorf("actionValue: %v", err)
	}
	values, err := graph.run(states, actions)
	if err != nil {
		return nil, fmt.Errorf("actionValue: %v", err)
	}
	return values, nil
}

// Network returns the critic network
func (a *ActionValue) Network() network.NeuralNet {
	return a.critic
}

func (a *ActionValue) Close() error {
	return a.graphs.Close()
}
