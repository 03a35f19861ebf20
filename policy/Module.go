// Package policy implements the modules which map states to actions
// and values: a deterministic actor, an action-value critic and state
// value functions. Each module describes the inputs and outputs of its
// functions with typed signatures.
package policy

import (
	"errors"
	"fmt"

	"github.com/samuelfneumann/goforce/tensorspec"
	G "gorgonia.org/gorgonia"
)

var (
	// ErrUnknownFunction is returned when requesting the signature of
	// a function which a module does not have
	ErrUnknownFunction = errors.New("unknown function")

	// ErrNotImplemented is returned by abstract module functions
	ErrNotImplemented = errors.New("not implemented")
)

// Module is the base of all policy modules
type Module struct {
	Name             string
	L2Regularization float64
}

// InputSignature returns the signature of the inputs of function. The
// base Module has no functions.
func (m *Module) InputSignature(function string) (*tensorspec.SignatureDict,
	error) {
	return nil, fmt.Errorf("inputSignature: %v: %w", function,
		ErrUnknownFunction)
}

// OutputSignature returns the signature of the outputs of function. The
// base Module has no functions.
func (m *Module) OutputSignature(function string) (*tensorspec.SignatureDict,
	error) {
	return nil, fmt.Errorf("outputSignature: %v: %w", function,
		ErrUnknownFunction)
}

// L2Loss returns a node computing the L2 regularization loss of the
// argument learnables, 0.5 * λ * Σ w², or nil if the Module is not
// regularized.
func (m *Module) L2Loss(learnables G.Nodes) (*G.Node, error) {
	if m.L2Regularization == 0 || len(learnables) == 0 {
		return nil, nil
	}

	var loss *G.Node
	for _, w := range learnables {
		squared, err := G.Square(w)
		if err != nil {
			return nil, fmt.Errorf("l2Loss: %v", err)
		}
		sum, err := G.Sum(squared)
		if err != nil {
			return nil, fmt.Errorf("l2Loss: %v", err)
		}

		if loss == nil {
			loss = sum
		} else if loss, err = G.Add(loss, sum); err != nil {
			return nil, fmt.Errorf("l2Loss: %v", err)
		}
	}

	loss, err := G.Mul(loss, G.NewConstant(0.5*m.L2Regularization))
	if err != nil {
		return nil, fmt.Errorf("l2Loss: %v", err)
	}
	return loss, nil
}
