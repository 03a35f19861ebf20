package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// mlp implements a multi-layered perceptron. The final layer of an mlp
// is linear with a bias unit and produces the network outputs.
type mlp struct {
	g          *G.ExprGraph
	layers     []Layer
	input      *G.Node
	settable   bool // Whether input is a variable which SetInput may bind
	prefix     string
	numOutputs int
	numInputs  int
	batchSize  int

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMLP creates and returns a new multi-layered perceptron with a
// single input node of shape (batch, features) and outputs output
// nodes. The graph parameter g is populated with the MLP.
//
// The MLP has number of layers equal to len(hiddenSizes) + 1. A final
// linear layer with a bias unit is always added so that the network
// outputs outputs values per sample. For index i, hiddenSizes[i] is the
// number of nodes in hidden layer i; biases[i] is true if the hidden
// layer will contain a bias unit; and activations[i] is the activation
// function for hidden layer i. The parameter init determines the weight
// initialization scheme.
func NewMLP(features, batch, outputs int, g *G.ExprGraph, hiddenSizes []int,
	biases []bool, init G.InitWFn, activations []*Activation) (NeuralNet,
	error) {
	if features <= 0 || batch <= 0 {
		return nil, fmt.Errorf("newMLP: features and batch size must be "+
			"positive \n\thave(%v, %v)", features, batch)
	}

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	net, err := NewMLPFromInput([]*G.Node{input}, outputs, g, hiddenSizes,
		biases, init, activations, "")
	if err != nil {
		return nil, fmt.Errorf("newMLP: %v", err)
	}
	net.(*mlp).settable = true

	return net, nil
}

// NewMLPFromInput returns a new MLP that uses the concatenation of
// inputs along the feature (column) dimension as its input. Weight
// nodes are named with the given prefix so that multiple networks can
// share a single graph.
func NewMLPFromInput(inputs []*G.Node, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation, prefix string) (NeuralNet, error) {
	// Ensure we have one activation per layer
	if len(hiddenSizes) != len(activations) {
		msg := "newMLPFromInput: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}

	// Ensure one bias bool per layer
	if len(hiddenSizes) != len(biases) {
		msg := "newMLPFromInput: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}

	if outputs <= 0 {
		return nil, fmt.Errorf("newMLPFromInput: outputs must be positive "+
			"\n\thave(%v)", outputs)
	}

	input, err := concatInputs(1, inputs, g)
	if err != nil {
		return nil, fmt.Errorf("newMLPFromInput: %v", err)
	}

	batch := input.Shape()[0]
	features := input.Shape()[1]

	// Add a final linear layer with no activation to ensure outputs
	// are predicted by the network
	sizes := append(append([]int{}, hiddenSizes...), outputs)
	useBias := append(append([]bool{}, biases...), true)
	acts := append(append([]*Activation{}, activations...), Identity())

	layers := addfcLayers(g, sizes, useBias, acts, init, features, prefix)

	// Create the network and run the forward pass on the input node
	network := mlp{
		g:          g,
		layers:     layers,
		input:      input,
		numOutputs: outputs,
		numInputs:  features,
		batchSize:  batch,
		prefix:     prefix,
	}
	if _, err := network.fwd(input); err != nil {
		msg := "newMLPFromInput: could not compute forward pass: %v"
		return nil, fmt.Errorf(msg, err)
	}

	return &network, nil
}

// concatInputs concatenates inputs along axis, ensuring that all
// inputs belong to graph g and that the result is a matrix.
func concatInputs(axis int, inputs []*G.Node, g *G.ExprGraph) (*G.Node,
	error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input nodes")
	}

	for _, input := range inputs {
		if input.Graph() != g {
			return nil, fmt.Errorf("not all inputs have the same graph")
		}
	}

	input := inputs[0]
	if len(inputs) > 1 {
		var err error
		input, err = G.Concat(axis, inputs...)
		if err != nil {
			return nil, fmt.Errorf("could not concatenate inputs: %v", err)
		}
	}

	if !input.IsMatrix() {
		return nil, fmt.Errorf("input must be a matrix node")
	}
	return input, nil
}

// Graph returns the computational graph of the mlp.
func (e *mlp) Graph() *G.ExprGraph {
	return e.g
}

// Clone clones an mlp
func (e *mlp) Clone() (NeuralNet, error) {
	return e.CloneWithBatch(e.batchSize)
}

// CloneWithInputTo clones an mlp to a specific computational graph
// with a specified input node. If multiple input nodes are given, then
// they are first concatenated along the specified axis. Weight nodes of
// the clone are named using prefix.
func (e *mlp) CloneWithInputTo(axis int, inputs []*G.Node,
	graph *G.ExprGraph, prefix string) (NeuralNet, error) {
	input, err := concatInputs(axis, inputs, graph)
	if err != nil {
		return nil, fmt.Errorf("cloneWithInputTo: %v", err)
	}

	if features := input.Shape()[1]; features != e.numInputs {
		return nil, fmt.Errorf("cloneWithInputTo: invalid number of "+
			"features \n\twant(%v) \n\thave(%v)", e.numInputs, features)
	}

	// Copy fully connected layers
	l := make([]Layer, len(e.layers))
	for i := range e.layers {
		l[i] = e.layers[i].CloneTo(graph, prefix, i)
	}

	// Create the network and run the forward pass on the input node
	network := mlp{
		g:          graph,
		layers:     l,
		input:      input,
		numOutputs: e.numOutputs,
		numInputs:  e.numInputs,
		batchSize:  input.Shape()[0],
		prefix:     prefix,
	}
	if _, err := network.fwd(input); err != nil {
		return nil, fmt.Errorf("cloneWithInputTo: could not clone: %v", err)
	}

	return &network, nil
}

// CloneWithBatch clones an mlp with a new input batch size.
func (e *mlp) CloneWithBatch(batchSize int) (NeuralNet, error) {
	graph := G.NewGraph()

	input := G.NewMatrix(
		graph,
		tensor.Float64,
		G.WithShape(batchSize, e.numInputs),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	net, err := e.CloneWithInputTo(1, []*G.Node{input}, graph, e.prefix)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}
	net.(*mlp).settable = true

	return net, nil
}

// BatchSize returns the batch size of inputs to the network
func (e *mlp) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single input vector
func (e *mlp) Features() int {
	return e.numInputs
}

// Outputs returns the number of outputs from the network
func (e *mlp) Outputs() int {
	return e.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass.
func (e *mlp) SetInput(input []float64) error {
	if !e.settable {
		return fmt.Errorf("setInput: input is computed from other nodes")
	}
	if len(input) != e.numInputs*e.batchSize {
		return fmt.Errorf("setInput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", e.numInputs*e.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.input.Shape()...),
	)
	return G.Let(e.input, inputTensor)
}

// Set sets the weights of an mlp to be equal to the weights of another
// network with the same architecture
func (dest *mlp) Set(source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: incompatible networks")
	}

	for i, destLearnable := range nodes {
		sourceValue, ok := sourceNodes[i].Value().(*tensor.Dense)
		if !ok {
			return fmt.Errorf("set: learnable %v has no dense value", i)
		}
		if !sourceValue.Shape().Eq(destLearnable.Shape()) {
			return fmt.Errorf("set: learnable %v: incompatible shapes "+
				"\n\twant(%v) \n\thave(%v)", i, destLearnable.Shape(),
				sourceValue.Shape())
		}
		if err := G.Let(destLearnable, sourceValue.Clone()); err != nil {
			return fmt.Errorf("set: %v", err)
		}
	}
	return nil
}

// Polyak sets the weights of an mlp to be a polyak average between its
// existing weights and the weights of another network:
//
//	θ ← (1 - τ)θ + τθ'
func (dest *mlp) Polyak(source NeuralNet, tau float64) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("polyak: incompatible networks")
	}

	for i := range nodes {
		weights := nodes[i].Value().(*tensor.Dense)
		sourceWeights := sourceNodes[i].Value().(*tensor.Dense)

		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}

		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}

		newWeights, err := weights.Add(sourceWeights)
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}

		if err := G.Let(nodes[i], newWeights); err != nil {
			return fmt.Errorf("polyak: %v", err)
		}
	}
	return nil
}

// Learnables returns the learnable nodes in an mlp
func (e *mlp) Learnables() G.Nodes {
	// Lazy instantiation
	if e.learnables == nil {
		learnables := make([]*G.Node, 0, 2*len(e.layers))
		for i := range e.layers {
			learnables = append(learnables, e.layers[i].Weights())
			if bias := e.layers[i].Bias(); bias != nil {
				learnables = append(learnables, bias)
			}
		}
		e.learnables = G.Nodes(learnables)
	}
	return e.learnables
}

// Model returns the learnables nodes with their gradients.
func (e *mlp) Model() []G.ValueGrad {
	// Lazy instantiation
	if e.model == nil {
		e.model = make([]G.ValueGrad, 0, 2*len(e.layers))
		for _, node := range e.Learnables() {
			e.model = append(e.model, node)
		}
	}
	return e.model
}

// Weights returns a copy of the values of all learnables of the mlp
func (e *mlp) Weights() [][]float64 {
	learnables := e.Learnables()
	weights := make([][]float64, len(learnables))
	for i, node := range learnables {
		data := node.Value().Data().([]float64)
		weights[i] = append([]float64{}, data...)
	}
	return weights
}

// SetWeights sets the values of all learnables of the mlp
func (e *mlp) SetWeights(weights [][]float64) error {
	learnables := e.Learnables()
	if len(weights) != len(learnables) {
		return fmt.Errorf("setWeights: invalid number of learnables "+
			"\n\twant(%v) \n\thave(%v)", len(learnables), len(weights))
	}

	for i, node := range learnables {
		if len(weights[i]) != node.Shape().TotalSize() {
			return fmt.Errorf("setWeights: invalid size for learnable %v "+
				"\n\twant(%v) \n\thave(%v)", i, node.Shape().TotalSize(),
				len(weights[i]))
		}
		value := tensor.New(
			tensor.WithShape(node.Shape().Clone()...),
			tensor.WithBacking(append([]float64{}, weights[i]...)),
		)
		if err := G.Let(node, value); err != nil {
			return fmt.Errorf("setWeights: %v", err)
		}
	}
	return nil
}

// fwd performs the forward pass of the mlp on the input node
func (e *mlp) fwd(input *G.Node) (*G.Node, error) {
	inputShape := input.Shape()[len(input.Shape())-1]
	if inputShape != e.numInputs {
		return nil, fmt.Errorf("fwd: invalid shape for input to neural net:"+
			" \n\twant(%v) \n\thave(%v)", e.numInputs, inputShape)
	}

	pred := input
	var err error
	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	e.prediction = pred
	G.Read(e.prediction, &e.predVal)

	return pred, nil
}

// Output returns the output of the mlp.
func (e *mlp) Output() G.Value {
	return e.predVal
}

// Prediction returns the node of the computational graph the stores
// the output of the mlp
func (e *mlp) Prediction() *G.Node {
	return e.prediction
}
