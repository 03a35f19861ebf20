package policy

import (
	"fmt"

	"github.com/samuelfneumann/goforce/tensorspec"
	"gorgonia.org/tensor"
)

// StateValuer is a state-value function: a "degenerate" policy which
// only estimates the value of states
type StateValuer interface {
	// StateValue returns the batched value of states. Horizons is a
	// batched int tensor of shape (2), the start and length of the
	// state history of each batch entry.
	StateValue(states *tensorspec.TensorDict, horizons tensor.Tensor,
		internals, auxiliaries *tensorspec.TensorDict) ([]float64, error)

	// PastHorizon returns the number of past timesteps of states which
	// the state value requires
	PastHorizon() int
}

// StateValue is the base of all state-value functions. It implements
// the signatures of the state_value and past_horizon functions, but
// StateValue itself computes no values.
type StateValue struct {
	Module

	StatesSpec      *tensorspec.Dict
	AuxiliariesSpec *tensorspec.Dict
	ActionsSpec     *tensorspec.Dict
	InternalsSpec   *tensorspec.Dict
}

// NewStateValue returns a new StateValue. Nil specifications are
// treated as empty.
func NewStateValue(name string, l2 float64, states, auxiliaries,
	actions *tensorspec.Dict) *StateValue {
	return &StateValue{
		Module:          Module{Name: name, L2Regularization: l2},
		StatesSpec:      orEmpty(states),
		AuxiliariesSpec: orEmpty(auxiliaries),
		ActionsSpec:     orEmpty(actions),
		InternalsSpec:   tensorspec.NewDict(),
	}
}

// InputSignature returns the signature of the inputs of function
func (s *StateValue) InputSignature(function string) (
	*tensorspec.SignatureDict, error) {
	switch function {
	case "past_horizon":
		return tensorspec.NewSignatureDict(), nil

	case "state_value":
		sig := tensorspec.NewSignatureDict()
		sig.SetDict("states", s.StatesSpec.Signature(true))
		sig.Set("horizons", tensorspec.New(tensorspec.Int, 2).Signature(true))
		sig.SetDict("internals", orEmpty(s.InternalsSpec).Signature(true))
		sig.SetDict("auxiliaries", orEmpty(s.AuxiliariesSpec).Signature(true))
		return sig, nil
	}
	return s.Module.InputSignature(function)
}

// OutputSignature returns the signature of the outputs of function
func (s *StateValue) OutputSignature(function string) (
	*tensorspec.SignatureDict, error) {
	sig := tensorspec.NewSignatureDict()
	switch function {
	case "past_horizon":
		sig.Set("singleton", tensorspec.New(tensorspec.Int).Signature(false))
		return sig, nil

	case "state_value":
		sig.Set("singleton", tensorspec.New(tensorspec.Float).Signature(true))
		return sig, nil
	}
	return s.Module.OutputSignature(function)
}

// StateValue is abstract and always returns ErrNotImplemented
func (s *StateValue) StateValue(states *tensorspec.TensorDict,
	horizons tensor.Tensor, internals,
	auxiliaries *tensorspec.TensorDict) ([]float64, error) {
	return nil, fmt.Errorf("stateValue: %w", ErrNotImplemented)
}

// PastHorizon returns the number of past timesteps required, zero for
// state values without state history
func (s *StateValue) PastHorizon() int {
	return 0
}

// CheckInputs returns an error if the arguments do not satisfy the
// input signature of the state_value function. Nil internals and
// auxiliaries are treated as empty.
func (s *StateValue) CheckInputs(states *tensorspec.TensorDict,
	horizons tensor.Tensor, internals,
	auxiliaries *tensorspec.TensorDict) error {
	sig, err := s.InputSignature("state_value")
	if err != nil {
		return err
	}

	inputs := tensorspec.NewTensorDict()
	if states != nil {
		inputs.SetDict("states", states)
	}
	if horizons != nil {
		inputs.Set("horizons", horizons)
	}
	inputs.SetDict("internals", orEmptyTensors(internals))
	inputs.SetDict("auxiliaries", orEmptyTensors(auxiliaries))

	return sig.Check(inputs)
}

// NewHorizons returns horizons for a batch of states without history:
// every entry starts at zero and has length one
func NewHorizons(batch int) tensor.Tensor {
	backing := make([]int, 2*batch)
	for i := 0; i < batch; i++ {
		backing[2*i+1] = 1
	}
	return tensor.New(tensor.WithShape(batch, 2), tensor.WithBacking(backing))
}

func orEmpty(d *tensorspec.Dict) *tensorspec.Dict {
	if d == nil {
		return tensorspec.NewDict()
	}
	return d
}

func orEmptyTensors(d *tensorspec.TensorDict) *tensorspec.TensorDict {
	if d == nil {
		return tensorspec.NewTensorDict()
	}
	return d
}
