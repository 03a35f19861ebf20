package policy

import (
	"fmt"

	"github.com/samuelfneumann/goforce/network"
	"github.com/samuelfneumann/goforce/preprocessing"
	"github.com/samuelfneumann/goforce/tensorspec"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ActorCriticValue is the state value of a deterministic actor under
// an action-value critic:
//
//	V(s) = Q(s, μ(s))
type ActorCriticValue struct {
	base *StateValue

	actor      network.NeuralNet
	critic     network.NeuralNet
	head       ActionHead
	preprocess preprocessing.Preprocessor
	graphs     *evalGraphs
}

// NewActorCriticValue returns a new ActorCriticValue. States given to
// StateValue are preprocessed with preprocess before being passed to
// the networks. If preprocess is nil, states are used as is.
func NewActorCriticValue(base *StateValue, actor, critic network.NeuralNet,
	head ActionHead, preprocess preprocessing.Preprocessor) (
	*ActorCriticValue, error) {
	features := base.StatesSpec.Size()
	if actor.Features() != features {
		return nil, fmt.Errorf("newActorCriticValue: actor must have %v "+
			"features \n\thave(%v)", features, actor.Features())
	}
	if critic.Features() != features+actor.Outputs() {
		return nil, fmt.Errorf("newActorCriticValue: critic must have %v "+
			"features \n\thave(%v)", features+actor.Outputs(),
			critic.Features())
	}

	v := &ActorCriticValue{
		base:       base,
		actor:      actor,
		critic:     critic,
		head:       head,
		preprocess: preprocess,
	}
	v.graphs = newEvalGraphs(v.build)

	return v, nil
}

func (v *ActorCriticValue) build(batch int) (*evalGraph, error) {
	g := G.NewGraph()
	states, err := newInput(g, "states", batch, v.actor.Features())
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}

	actor, err := v.actor.CloneWithInputTo(1, []*G.Node{states}, g, "actor")
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	action, err := v.head.Apply(actor.Prediction())
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	critic, err := v.critic.CloneWithInputTo(1, []*G.Node{states, action}, g,
		"critic")
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}

	return &evalGraph{
		g:       g,
		inputs:  []*G.Node{states},
		sources: []network.NeuralNet{v.actor, v.critic},
		clones:  []network.NeuralNet{actor, critic},
		output:  critic,
		vm:      G.NewTapeMachine(g),
	}, nil
}

// InputSignature returns the signature of the inputs of function
func (v *ActorCriticValue) InputSignature(function string) (
	*tensorspec.SignatureDict, error) {
	return v.base.InputSignature(function)
}

// OutputSignature returns the signature of the outputs of function
func (v *ActorCriticValue) OutputSignature(function string) (
	*tensorspec.SignatureDict, error) {
	return v.base.OutputSignature(function)
}

// PastHorizon returns zero, states have no history
func (v *ActorCriticValue) PastHorizon() int {
	return v.base.PastHorizon()
}

// StateValue returns the value of each batch entry of states
func (v *ActorCriticValue) StateValue(states *tensorspec.TensorDict,
	horizons tensor.Tensor, internals,
	auxiliaries *tensorspec.TensorDict) ([]float64, error) {
	if err := v.base.CheckInputs(states, horizons, internals,
		auxiliaries); err != nil {
		return nil, fmt.Errorf("stateValue: %v", err)
	}

	batch, err := states.BatchSize()
	if err != nil {
		return nil, fmt.Errorf("stateValue: %v", err)
	}
	if batch < 1 {
		return nil, fmt.Errorf("stateValue: batch size must be positive")
	}
	if horizons.Shape()[0] != batch {
		return nil, fmt.Errorf("stateValue: horizons batch size %v does "+
			"not match states batch size %v", horizons.Shape()[0], batch)
	}

	input, err := v.flatten(states, batch)
	if err != nil {
		return nil, fmt.Errorf("stateValue: %v", err)
	}

	graph, err := v.graphs.get(batch)
	if err != nil {
		return nil, fmt.Errorf("stateValue: %v", err)
	}
	values, err := graph.run(input)
	if err != nil {
		return nil, fmt.Errorf("stateValue: %v", err)
	}
	return values, nil
}

// flatten concatenates the states of each batch entry, in the order of
// the states specification, and preprocesses them
func (v *ActorCriticValue) flatten(states *tensorspec.TensorDict,
	batch int) ([]float64, error) {
	features := v.base.StatesSpec.Size()
	flat := make([]float64, batch*features)

	offset := 0
	for _, name := range v.base.StatesSpec.Names() {
		spec, _ := v.base.StatesSpec.Get(name)
		size := spec.Size()

		t, ok := states.Get(name)
		if !ok {
			return nil, fmt.Errorf("flatten: missing state %v", name)
		}
		values, err := toFloats(t.Data())
		if err != nil {
			return nil, fmt.Errorf("flatten: state %v: %v", name, err)
		}

		for b := 0; b < batch; b++ {
			copy(flat[b*features+offset:b*features+offset+size],
				values[b*size:(b+1)*size])
		}
		offset += size
	}

	if v.preprocess == nil {
		return flat, nil
	}
	for b := 0; b < batch; b++ {
		row := mat.NewVecDense(features, flat[b*features:(b+1)*features])
		copy(flat[b*features:(b+1)*features],
			v.preprocess.Preprocess(row).RawVector().Data)
	}
	return flat, nil
}

// toFloats converts the backing data of a float, int or bool tensor
// to float64s
func toFloats(data interface{}) ([]float64, error) {
	switch d := data.(type) {
	case []float64:
		return d, nil

	case []int:
		out := make([]float64, len(d))
		for i := range d {
			out[i] = float64(d[i])
		}
		return out, nil

	case []bool:
		out := make([]float64, len(d))
		for i := range d {
			if d[i] {
				out[i] = 1
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported data type %T", data)
}

func (v *ActorCriticValue) Close() error {
	return v.graphs.Close()
}
