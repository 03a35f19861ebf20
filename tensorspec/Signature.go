package tensorspec

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Signature describes the layout of a tensor passed to or returned from
// a module function. Batched signatures have an additional leading
// batch dimension of any size.
type Signature struct {
	Type    Type
	Shape   []int
	Batched bool
}

// FullShape returns the shape of a tensor with the Signature and the
// given batch size. The batch size is ignored for unbatched signatures.
func (s Signature) FullShape(batch int) tensor.Shape {
	if !s.Batched {
		return tensor.Shape(append([]int{}, s.Shape...))
	}
	return tensor.Shape(append([]int{batch}, s.Shape...))
}

// Check returns an error if the argument tensor does not satisfy the
// Signature
func (s Signature) Check(t tensor.Tensor) error {
	dtype, err := s.Type.Dtype()
	if err != nil {
		return fmt.Errorf("check: %v", err)
	}
	if t.Dtype() != dtype {
		return fmt.Errorf("check: invalid dtype \n\twant(%v) \n\thave(%v)",
			dtype, t.Dtype())
	}

	shape := t.Shape()
	if s.Batched {
		if len(shape) != len(s.Shape)+1 {
			return fmt.Errorf("check: invalid rank for batched tensor "+
				"\n\twant(%v) \n\thave(%v)", len(s.Shape)+1, len(shape))
		}
		shape = shape[1:]
	} else if shape.IsScalar() && len(s.Shape) == 0 {
		return nil
	}

	if len(shape) != len(s.Shape) {
		return fmt.Errorf("check: invalid rank \n\twant(%v) \n\thave(%v)",
			len(s.Shape), len(shape))
	}
	for i := range shape {
		if shape[i] != s.Shape[i] {
			return fmt.Errorf("check: invalid shape \n\twant(%v) \n\thave(%v)",
				s.Shape, t.Shape())
		}
	}
	return nil
}

// Node adds a new input node with the Signature and batch size to the
// computational graph g. Scalars with a batch dimension become
// vectors.
func (s Signature) Node(g *G.ExprGraph, name string, batch int) (*G.Node,
	error) {
	dtype, err := s.Type.Dtype()
	if err != nil {
		return nil, fmt.Errorf("node: %v", err)
	}

	shape := s.FullShape(batch)
	if len(shape) == 0 {
		return G.NewScalar(g, dtype, G.WithName(name)), nil
	}
	opts := []G.NodeConsOpt{G.WithShape(shape...), G.WithName(name)}
	if s.Type == Float {
		opts = append(opts, G.WithInit(G.Zeroes()))
	}
	return G.NewTensor(g, dtype, len(shape), opts...), nil
}
