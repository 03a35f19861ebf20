package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer is a single layer of a feed forward network
type Layer interface {
	fwd(*G.Node) (*G.Node, error)
	CloneTo(g *G.ExprGraph, prefix string, index int) Layer
	Weights() *G.Node
	Bias() *G.Node
	Activation() *Activation
}

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// addfcLayers adds fully connected layers with the given sizes to the
// graph g. Node names are prefix followed by the layer index.
func addfcLayers(g *G.ExprGraph, hiddenSizes []int, biases []bool,
	activations []*Activation, init G.InitWFn, features int,
	prefix string) []Layer {
	layers := make([]Layer, 0, len(hiddenSizes))

	in := features
	for i, out := range hiddenSizes {
		weights := G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(in, out),
			G.WithName(weightName(prefix, i)),
			G.WithInit(init),
		)

		var bias *G.Node
		if biases[i] {
			bias = G.NewMatrix(
				g,
				tensor.Float64,
				G.WithShape(1, out),
				G.WithName(biasName(prefix, i)),
				G.WithInit(G.Zeroes()),
			)
		}

		layers = append(layers, &fcLayer{
			weights: weights,
			bias:    bias,
			act:     activations[i],
		})
		in = out
	}

	return layers
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not multiply weights: %v", err)
	}

	if f.bias != nil {
		// Broadcast the bias weights to all samples along the batch
		// dimension
		x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0})
		if err != nil {
			return nil, fmt.Errorf("fwd: could not add bias: %v", err)
		}
	}

	if f.act == nil {
		return x, nil
	}
	return f.act.fwd(x)
}

// CloneTo clones an fcLayer to a computational graph. The cloned
// weights are new nodes, named with prefix and index, holding copies
// of the current weight values.
func (f *fcLayer) CloneTo(g *G.ExprGraph, prefix string, index int) Layer {
	var newBias *G.Node
	if f.bias != nil {
		newBias = cloneNode(f.bias, g, biasName(prefix, index))
	}

	return &fcLayer{
		weights: cloneNode(f.weights, g, weightName(prefix, index)),
		bias:    newBias,
		act:     f.act,
	}
}

// cloneNode adds a new variable to g with the shape and a copy of the
// value of n. Variables with equal names and shapes are deduplicated
// by Gorgonia, so the name must be unique within g.
func cloneNode(n *G.Node, g *G.ExprGraph, name string) *G.Node {
	value := n.Value().(tensor.Tensor).Clone().(tensor.Tensor)
	return G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(n.Shape().Clone()...),
		G.WithName(name),
		G.WithValue(value),
	)
}

func weightName(prefix string, index int) string {
	return fmt.Sprintf("%vL%dW", prefix, index)
}

func biasName(prefix string, index int) string {
	return fmt.Sprintf("%vL%dB", prefix, index)
}

func (f *fcLayer) Activation() *Activation {
	return f.act
}

func (f *fcLayer) Bias() *G.Node {
	return f.bias
}

func (f *fcLayer) Weights() *G.Node {
	return f.weights
}
