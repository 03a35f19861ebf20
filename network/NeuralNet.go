// Package network implements feed forward neural networks on Gorgonia
// computational graphs.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet implements a neural network whose forward pass has been
// added to a Gorgonia computational graph.
type NeuralNet interface {
	Graph() *G.ExprGraph
	Clone() (NeuralNet, error)
	CloneWithBatch(int) (NeuralNet, error)

	// CloneWithInputTo clones the NeuralNet into graph g, using the
	// concatenation of inputs along axis as the input to the clone.
	// The clone has new weight nodes named with prefix, and no input
	// node to be set.
	CloneWithInputTo(axis int, inputs []*G.Node, g *G.ExprGraph,
		prefix string) (NeuralNet, error)

	BatchSize() int
	Features() int
	Outputs() int
	SetInput([]float64) error

	// Set and Polyak copy weights between networks with the same
	// architecture
	Set(NeuralNet) error
	Polyak(NeuralNet, float64) error

	Learnables() G.Nodes
	Model() []G.ValueGrad

	// Output returns the value of the prediction after the graph has
	// been run
	Output() G.Value
	Prediction() *G.Node

	// Weights returns a copy of the values of each learnable, in the
	// same order as Learnables()
	Weights() [][]float64
	SetWeights([][]float64) error
}
