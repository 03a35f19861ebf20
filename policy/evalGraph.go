package policy

import (
	"fmt"

	"github.com/samuelfneumann/goforce/network"
	"github.com/samuelfneumann/goforce/tensorspec"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// evalGraph is a computational graph used only for prediction. Its
// networks are clones of other networks whose weights are copied into
// the clones before each run.
type evalGraph struct {
	g       *G.ExprGraph
	inputs  []*G.Node
	sources []network.NeuralNet
	clones  []network.NeuralNet
	output  network.NeuralNet
	vm      G.VM
}

// newInput adds a new (batch, features) float input matrix to g
func newInput(g *G.ExprGraph, name string, batch, features int) (*G.Node,
	error) {
	sig := tensorspec.New(tensorspec.Float, features).Signature(true)
	node, err := sig.Node(g, name, batch)
	if err != nil {
		return nil, fmt.Errorf("newInput: %v", err)
	}
	return node, nil
}

// run sets the inputs of the graph, runs it and returns a copy of the
// output network's predictions
func (e *evalGraph) run(inputs ...[]float64) ([]float64, error) {
	if len(inputs) != len(e.inputs) {
		return nil, fmt.Errorf("run: invalid number of inputs \n\twant(%v)"+
			"\n\thave(%v)", len(e.inputs), len(inputs))
	}

	for i := range e.clones {
		if err := e.clones[i].Set(e.sources[i]); err != nil {
			return nil, fmt.Errorf("run: could not copy weights: %v", err)
		}
	}

	for i, node := range e.inputs {
		if len(inputs[i]) != node.Shape().TotalSize() {
			return nil, fmt.Errorf("run: invalid size of input %v "+
				"\n\twant(%v) \n\thave(%v)", node.Name(),
				node.Shape().TotalSize(), len(inputs[i]))
		}
		value := tensor.New(
			tensor.WithShape(node.Shape().Clone()...),
			tensor.WithBacking(inputs[i]),
		)
		if err := G.Let(node, value); err != nil {
			return nil, fmt.Errorf("run: could not set input: %v", err)
		}
	}

	defer e.vm.Reset()
	if err := e.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("run: %v", err)
	}

	out := e.output.Output().Data().([]float64)
	return append([]float64{}, out...), nil
}

func (e *evalGraph) Close() error {
	return e.vm.Close()
}

// evalGraphs caches evalGraphs by batch size
type evalGraphs struct {
	build  func(batch int) (*evalGraph, error)
	graphs map[int]*evalGraph
}

func newEvalGraphs(build func(batch int) (*evalGraph, error)) *evalGraphs {
	return &evalGraphs{build: build, graphs: make(map[int]*evalGraph)}
}

// get returns the evalGraph for batch, building it if needed
func (e *evalGraphs) get(batch int) (*evalGraph, error) {
	if graph, ok := e.graphs[batch]; ok {
		return graph, nil
	}

	graph, err := e.build(batch)
	if err != nil {
		return nil, err
	}
	e.graphs[batch] = graph
	return graph, nil
}

func (e *evalGraphs) Close() error {
	for batch, graph := range e.graphs {
		if err := graph.Close(); err != nil {
			return err
		}
		delete(e.graphs, batch)
	}
	return nil
}
