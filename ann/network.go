// Package ann implements a small fully-connected feedforward network whose
// weights live in a single flat buffer.
//
// Weights are stored layer by layer, neuron by neuron, and within a neuron as
// [bias, one weight per neuron of the previous layer]. Bias inputs are fixed
// at -1. Every hidden and output neuron uses the logistic sigmoid.
package ann

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Network is not safe for concurrent use: Forward and Train both write the
// shared scratch buffers.
type Network struct {
	topology Topology
	weights  []float64

	// scratch, rebuilt from the topology and never persisted
	activations []float64
	deltas      []float64
}

// New builds a network with every weight drawn uniformly from [-0.5, 0.5)
// using src. The caller owns src, so construction is reproducible for a
// given seed.
func New(t Topology, src rand.Source) (*Network, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	n := newNetwork(t)
	n.Randomize(src)
	return n, nil
}

// FromWeights rebuilds a network from a topology and a weight buffer, for
// example one read back from a checkpoint. The weights are copied.
func FromWeights(t Topology, weights []float64) (*Network, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if len(weights) != t.TotalWeights() {
		return nil, DimensionError{What: "weight buffer", Got: len(weights), Expected: t.TotalWeights()}
	}
	n := newNetwork(t)
	copy(n.weights, weights)
	return n, nil
}

func newNetwork(t Topology) *Network {
	return &Network{
		topology:    t,
		weights:     make([]float64, t.TotalWeights()),
		activations: make([]float64, t.TotalNeurons()),
		deltas:      make([]float64, t.TotalDeltas()),
	}
}

// Randomize redraws every weight from [-0.5, 0.5).
func (n *Network) Randomize(src rand.Source) {
	dist := distuv.Uniform{Min: -0.5, Max: 0.5, Src: src}
	for i := range n.weights {
		n.weights[i] = dist.Rand()
	}
}

func (n *Network) Topology() Topology {
	return n.topology
}

// Weights returns a copy of the weight buffer.
func (n *Network) Weights() []float64 {
	return append([]float64(nil), n.weights...)
}

// SetWeights overwrites the weight buffer with w.
func (n *Network) SetWeights(w []float64) error {
	if len(w) != len(n.weights) {
		return DimensionError{What: "weight buffer", Got: len(w), Expected: len(n.weights)}
	}
	copy(n.weights, w)
	return nil
}

// Layer returns weighted layer l (0 is the first hidden layer, Layers()-1 the
// output layer) as a width × (fanIn+1) matrix backed by the network's own
// buffer; column 0 holds the bias weights. Writes through the matrix change
// the network. Layer returns nil for a layer without neurons.
func (n *Network) Layer(l int) *mat.Dense {
	t := n.topology
	if l < 0 || l >= t.Layers() {
		panic(fmt.Sprintf("ann: layer %d out of range [0, %d)", l, t.Layers()))
	}
	rows, cols := t.width(l), t.fanIn(l)+1
	if rows == 0 {
		return nil
	}
	off := t.weightOffset(l)
	return mat.NewDense(rows, cols, n.weights[off:off+rows*cols])
}

// Forward runs input through the network and returns a fresh copy of the
// output layer. It overwrites the activation scratch buffer and allocates
// nothing else.
func (n *Network) Forward(input []float64) ([]float64, error) {
	if len(input) != n.topology.Inputs {
		return nil, DimensionError{What: "input", Got: len(input), Expected: n.topology.Inputs}
	}
	n.run(input)
	return append([]float64(nil), n.outputs()...), nil
}

func (n *Network) run(input []float64) {
	t := n.topology
	copy(n.activations, input)

	for l := 0; l < t.Layers(); l++ {
		fanIn := t.fanIn(l)
		in := n.activations[t.inputOffset(l) : t.inputOffset(l)+fanIn]
		out := n.activations[t.outputOffset(l) : t.outputOffset(l)+t.width(l)]
		w := n.weights[t.weightOffset(l):]

		for j := range out {
			row := w[j*(fanIn+1) : (j+1)*(fanIn+1)]
			out[j] = sigmoid(floats.Dot(row[1:], in) - row[0])
		}
	}
}

func (n *Network) outputs() []float64 {
	return n.activations[len(n.activations)-n.topology.Outputs:]
}
