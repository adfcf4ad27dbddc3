package ann

import "fmt"

// Topology is the fixed shape of a network.
type Topology struct {
	Inputs       int
	HiddenLayers int
	Hidden       int // width of every hidden layer
	Outputs      int
}

// Validate reports whether t describes a buildable network. A topology with
// no hidden layers connects the inputs straight to the outputs.
func (t Topology) Validate() error {
	switch {
	case t.Inputs < 0:
		return TopologyError{Topology: t, Reason: "negative input count"}
	case t.HiddenLayers < 0:
		return TopologyError{Topology: t, Reason: "negative hidden layer count"}
	case t.Hidden < 0:
		return TopologyError{Topology: t, Reason: "negative hidden layer width"}
	case t.Outputs < 0:
		return TopologyError{Topology: t, Reason: "negative output count"}
	case t.HiddenLayers > 0 && t.Hidden == 0:
		return TopologyError{Topology: t, Reason: "hidden layers of width 0"}
	}
	return nil
}

// HiddenWeights is the number of weights feeding hidden neurons, biases included.
func (t Topology) HiddenWeights() int {
	if t.HiddenLayers == 0 {
		return 0
	}
	return (t.Inputs+1)*t.Hidden + (t.HiddenLayers-1)*(t.Hidden+1)*t.Hidden
}

// OutputWeights is the number of weights feeding output neurons, biases included.
func (t Topology) OutputWeights() int {
	if t.HiddenLayers > 0 {
		return (t.Hidden + 1) * t.Outputs
	}
	return (t.Inputs + 1) * t.Outputs
}

// TotalWeights is the exact length of the weight buffer.
func (t Topology) TotalWeights() int {
	return t.HiddenWeights() + t.OutputWeights()
}

// TotalNeurons is the length of the activation buffer: the input echo, every
// hidden layer, then the outputs.
func (t Topology) TotalNeurons() int {
	return t.Inputs + t.Hidden*t.HiddenLayers + t.Outputs
}

// TotalDeltas is the length of the delta buffer (every non-input neuron).
func (t Topology) TotalDeltas() int {
	return t.Hidden*t.HiddenLayers + t.Outputs
}

// Layers is the number of weighted layers, the output layer included.
func (t Topology) Layers() int {
	return t.HiddenLayers + 1
}

func (t Topology) String() string {
	return fmt.Sprintf("%d-%dx%d-%d", t.Inputs, t.HiddenLayers, t.Hidden, t.Outputs)
}

// The helpers below index weighted layers l = 0..HiddenLayers, where
// l == HiddenLayers is the output layer.

func (t Topology) width(l int) int {
	if l < t.HiddenLayers {
		return t.Hidden
	}
	return t.Outputs
}

func (t Topology) fanIn(l int) int {
	if l == 0 {
		return t.Inputs
	}
	return t.Hidden
}

// weightOffset is where layer l's first bias weight lives.
func (t Topology) weightOffset(l int) int {
	if l == 0 {
		return 0
	}
	return (t.Inputs+1)*t.Hidden + (l-1)*(t.Hidden+1)*t.Hidden
}

// inputOffset is where the activations feeding layer l start.
func (t Topology) inputOffset(l int) int {
	if l == 0 {
		return 0
	}
	return t.Inputs + (l-1)*t.Hidden
}

// outputOffset is where layer l writes its activations.
func (t Topology) outputOffset(l int) int {
	return t.Inputs + l*t.Hidden
}

// deltaOffset is where layer l's deltas live.
func (t Topology) deltaOffset(l int) int {
	return l * t.Hidden
}

// WeightIndex locates the weight connecting source neuron i of the previous
// layer to neuron j of weighted layer l. i == -1 selects j's bias weight.
func (t Topology) WeightIndex(l, j, i int) int {
	return t.weightOffset(l) + j*(t.fanIn(l)+1) + 1 + i
}
