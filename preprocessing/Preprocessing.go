// Package preprocessing implements preprocessing layers which are
// applied to environment states before they are seen by an agent.
package preprocessing

import (
	"encoding/json"
	"fmt"

	"github.com/samuelfneumann/goforce/environment"
	"gonum.org/v1/gonum/mat"
)

// Type is the type of a preprocessing layer
type Type string

const (
	// LinearNormalization linearly maps each bounded state dimension
	// from [min, max] to [-2, 2]. Unbounded dimensions are unchanged.
	LinearNormalization Type = "linear_normalization"

	// None leaves states unchanged
	None Type = "none"
)

// Bound of linearly normalized state dimensions
const normalizedBound = 2.0

// Preprocessor preprocesses states
type Preprocessor interface {
	// Preprocess returns the preprocessed state. The argument state
	// is not modified.
	Preprocess(state mat.Vector) *mat.VecDense
	Type() Type
}

// UnmarshalJSON implements the json.Unmarshaler interface. A JSON null
// is treated as None.
func (t *Type) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = None
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	if err := Type(name).Validate(); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	*t = Type(name)
	return nil
}

// Validate returns an error if t is not a known preprocessing type
func (t Type) Validate() error {
	switch t {
	case LinearNormalization, None:
		return nil
	}
	return fmt.Errorf("validate: unknown preprocessing %q", t)
}

// Create returns a new Preprocessor of type t for states described by
// the argument environment Spec
func (t Type) Create(states environment.Spec) (Preprocessor, error) {
	switch t {
	case LinearNormalization:
		return newLinearNormalizer(states), nil
	case None, "":
		return identity{}, nil
	}
	return nil, fmt.Errorf("create: unknown preprocessing %q", t)
}

type identity struct{}

func (identity) Type() Type { return None }

func (identity) Preprocess(state mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(state.Len(), nil)
	out.CopyVec(state)
	return out
}

// linearNormalizer maps bounded state dimensions to [-2, 2]
type linearNormalizer struct {
	bounded []bool
	min     []float64
	scale   []float64
}

func newLinearNormalizer(states environment.Spec) *linearNormalizer {
	dims := states.Shape.Len()
	l := &linearNormalizer{
		bounded: make([]bool, dims),
		min:     make([]float64, dims),
		scale:   make([]float64, dims),
	}

	for i := 0; i < dims; i++ {
		if !states.Bounded(i) {
			continue
		}
		min, max := states.LowerBound.AtVec(i), states.UpperBound.AtVec(i)
		if max <= min {
			continue
		}

		l.bounded[i] = true
		l.min[i] = min
		l.scale[i] = 2 * normalizedBound / (max - min)
	}
	return l
}

func (l *linearNormalizer) Type() Type { return LinearNormalization }

func (l *linearNormalizer) Preprocess(state mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(state.Len(), nil)
	for i := 0; i < state.Len(); i++ {
		x := state.AtVec(i)
		if i < len(l.bounded) && l.bounded[i] {
			x = (x-l.min[i])*l.scale[i] - normalizedBound
		}
		out.SetVec(i, x)
	}
	return out
}
