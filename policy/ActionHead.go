package policy

import (
	"fmt"

	"github.com/samuelfneumann/goforce/tensorspec"
	"github.com/samuelfneumann/goforce/utils/floatutils"
	G "gorgonia.org/gorgonia"
)

// ActionHead maps the outputs of an actor network to actions. Outputs
// for bounded actions are squashed into the action bounds, using a
// sigmoid when Beta is set and a tanh otherwise. Outputs for unbounded
// actions are used as is.
type ActionHead struct {
	Bounded  bool
	Beta     bool
	Min, Max float64
}

// NewActionHead returns the ActionHead for the argument action
// specification
func NewActionHead(action tensorspec.TensorSpec, useBeta bool) ActionHead {
	if !action.Bounded() {
		return ActionHead{}
	}
	return ActionHead{
		Bounded: true,
		Beta:    useBeta,
		Min:     *action.MinValue,
		Max:     *action.MaxValue,
	}
}

// Apply adds the mapping from network outputs to actions to the graph
// of pred
func (h ActionHead) Apply(pred *G.Node) (*G.Node, error) {
	if !h.Bounded {
		return pred, nil
	}

	// Squash to [0, 1]
	var unit *G.Node
	var err error
	if h.Beta {
		unit, err = G.Sigmoid(pred)
	} else {
		unit, err = G.Tanh(pred)
		if err == nil {
			unit, err = G.Add(unit, G.NewConstant(1.0))
		}
		if err == nil {
			unit, err = G.Mul(unit, G.NewConstant(0.5))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("apply: could not squash outputs: %v", err)
	}

	// Rescale to [min, max]
	action, err := G.Mul(unit, G.NewConstant(h.Max-h.Min))
	if err == nil {
		action, err = G.Add(action, G.NewConstant(h.Min))
	}
	if err != nil {
		return nil, fmt.Errorf("apply: could not rescale outputs: %v", err)
	}
	return action, nil
}

// Clip clips an action into the action bounds
func (h ActionHead) Clip(action []float64) {
	if !h.Bounded {
		return
	}
	for i := range action {
		action[i] = floatutils.Clip(action[i], h.Min, h.Max)
	}
}
