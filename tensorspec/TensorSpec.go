// Package tensorspec implements typed descriptions of tensors. A
// TensorSpec describes the type, shape and bounds of a single state,
// action, internal or auxiliary value. A Signature is a TensorSpec
// fixed to a batched or unbatched layout, used to type-check the
// inputs and outputs of the functions of a module.
package tensorspec

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/goforce/environment"
	"github.com/samuelfneumann/goforce/spec"
	"github.com/samuelfneumann/goforce/utils/intutils"
	"gorgonia.org/tensor"
)

// Type is the data type of a tensor
type Type string

// Available tensor data types
const (
	Bool  Type = "bool"
	Int   Type = "int"
	Float Type = "float"
)

// Dtype returns the tensor.Dtype used to store values of the Type
func (t Type) Dtype() (tensor.Dtype, error) {
	switch t {
	case Bool:
		return tensor.Bool, nil
	case Int:
		return tensor.Int, nil
	case Float:
		return tensor.Float64, nil
	}
	return tensor.Dtype{}, fmt.Errorf("dtype: no such type %q", t)
}

// TensorSpec describes a single tensor value
type TensorSpec struct {
	Type  Type  `json:"type"`
	Shape []int `json:"shape"`

	// NumValues is the number of discrete values of an int tensor
	NumValues int `json:"num_values,omitempty"`

	// MinValue and MaxValue optionally bound a float tensor
	MinValue *float64 `json:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty"`
}

// New returns a new TensorSpec of the given type and shape. A nil
// shape describes a scalar.
func New(t Type, shape ...int) TensorSpec {
	return TensorSpec{Type: t, Shape: shape}
}

// NewBoundedFloat returns a new float TensorSpec with the given bounds
func NewBoundedFloat(min, max float64, shape ...int) TensorSpec {
	return TensorSpec{Type: Float, Shape: shape, MinValue: &min,
		MaxValue: &max}
}

// FromEnvironment converts an environment Spec into a TensorSpec.
// Continuous specs become float TensorSpecs bounded wherever all
// dimensions are finite. Discrete specs become int TensorSpecs whose
// number of values is taken from the upper bound of the first
// dimension.
func FromEnvironment(s environment.Spec) TensorSpec {
	dims := s.Shape.Len()
	if s.Cardinality == environment.Discrete {
		return TensorSpec{
			Type:      Int,
			Shape:     []int{dims},
			NumValues: int(s.UpperBound.AtVec(0)) + 1,
		}
	}

	spec := TensorSpec{Type: Float, Shape: []int{dims}}

	min, max := math.Inf(1), math.Inf(-1)
	for i := 0; i < dims; i++ {
		if !s.Bounded(i) {
			return spec
		}
		min = math.Min(min, s.LowerBound.AtVec(i))
		max = math.Max(max, s.UpperBound.AtVec(i))
	}
	spec.MinValue, spec.MaxValue = &min, &max
	return spec
}

// Validate returns an error if the TensorSpec is malformed
func (t TensorSpec) Validate() error {
	if _, err := t.Type.Dtype(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}

	for _, dim := range t.Shape {
		if dim <= 0 {
			return fmt.Errorf("validate: shape dimensions must be positive "+
				"\n\thave(%v)", t.Shape)
		}
	}

	if t.Type == Int && t.NumValues <= 0 {
		return fmt.Errorf("validate: int tensors require num_values > 0")
	}

	if (t.MinValue != nil || t.MaxValue != nil) && t.Type != Float {
		return fmt.Errorf("validate: only float tensors can be bounded")
	}

	if t.MinValue != nil && t.MaxValue != nil && *t.MinValue >= *t.MaxValue {
		return fmt.Errorf("validate: min value %v must be less than max "+
			"value %v", *t.MinValue, *t.MaxValue)
	}

	return nil
}

// Size returns the number of elements in a single (unbatched) tensor
func (t TensorSpec) Size() int {
	return intutils.Prod(t.Shape...)
}

// Bounded returns whether the TensorSpec has both a min and max value
func (t TensorSpec) Bounded() bool {
	return t.MinValue != nil && t.MaxValue != nil
}

// Signature returns the Signature of the TensorSpec
func (t TensorSpec) Signature(batched bool) Signature {
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)

	return Signature{Type: t.Type, Shape: shape, Batched: batched}
}

// Spec returns the specification dictionary of the TensorSpec
func (t TensorSpec) Spec() *spec.Dict {
	d := spec.New("type", string(t.Type), "shape",
		append([]int{}, t.Shape...))
	if t.Type == Int {
		d.Set("num_values", t.NumValues)
	}
	if t.MinValue != nil {
		d.Set("min_value", *t.MinValue)
	}
	if t.MaxValue != nil {
		d.Set("max_value", *t.MaxValue)
	}
	return d
}
