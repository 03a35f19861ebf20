package environment

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// UniformStarter is a Starter drawing each dimension of the initial
// state independently and uniformly from a fixed interval
type UniformStarter struct {
	dims int
	dist *distmv.Uniform
}

// NewUniformStarter returns a UniformStarter whose i-th state
// dimension lies in bounds[i]. It panics if any interval is inverted.
func NewUniformStarter(bounds []r1.Interval, seed uint64) UniformStarter {
	for i, b := range bounds {
		if b.Min > b.Max {
			panic(fmt.Sprintf("newUniformStarter: bound %v has min %v > max %v",
				i, b.Min, b.Max))
		}
	}
	dist := distmv.NewUniform(bounds, rand.NewSource(seed))
	return UniformStarter{dims: len(bounds), dist: dist}
}

// Start samples a new initial state
func (u UniformStarter) Start() *mat.VecDense {
	return mat.NewVecDense(u.dims, u.dist.Rand(nil))
}
