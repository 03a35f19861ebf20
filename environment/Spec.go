package environment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SpecType names the quantity a Spec describes
type SpecType int

const (
	Action SpecType = iota
	Observation
	Discount
	Reward
)

// Cardinality tells whether a quantity is continuous or discrete
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// Spec describes the shape and per-dimension bounds of the actions,
// observations, discounts or rewards of an environment. Unbounded
// dimensions use ±Inf.
type Spec struct {
	Shape      *mat.VecDense
	Type       SpecType
	LowerBound *mat.VecDense
	UpperBound *mat.VecDense
	Cardinality
}

// NewSpec returns a Spec of the given type. It panics if the bounds do
// not have one entry per dimension of shape.
func NewSpec(shape *mat.VecDense, t SpecType, lowerBound,
	upperBound *mat.VecDense, cardinality Cardinality) Spec {
	for name, bound := range map[string]*mat.VecDense{
		"lower": lowerBound,
		"upper": upperBound,
	} {
		if bound.Len() != shape.Len() {
			panic(fmt.Sprintf("newSpec: %v bound length %v != shape "+
				"length %v", name, bound.Len(), shape.Len()))
		}
	}
	return Spec{
		Shape:       shape,
		Type:        t,
		LowerBound:  lowerBound,
		UpperBound:  upperBound,
		Cardinality: cardinality,
	}
}

// Bounded reports whether dimension i has finite lower and upper
// bounds
func (s Spec) Bounded(i int) bool {
	finite := func(x float64) bool {
		return !math.IsInf(x, 0) && !math.IsNaN(x)
	}
	return finite(s.LowerBound.AtVec(i)) && finite(s.UpperBound.AtVec(i))
}
