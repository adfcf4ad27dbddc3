package ann

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Train performs one online backpropagation step on a single labelled
// sample and returns the sample's mean squared error as measured by the
// forward pass that preceded the update.
//
// Every delta is computed before any weight moves, so hidden deltas always
// read the pre-update downstream weights.
func Train(n *Network, input, target []float64, rate float64) (float64, error) {
	t := n.topology
	if len(input) != t.Inputs {
		return 0, DimensionError{What: "input", Got: len(input), Expected: t.Inputs}
	}
	if len(target) != t.Outputs {
		return 0, DimensionError{What: "target", Got: len(target), Expected: t.Outputs}
	}

	n.run(input)

	loss := n.outputDeltas(target)
	n.hiddenDeltas()
	n.applyDeltas(rate)

	if t.Outputs == 0 {
		return 0, nil
	}
	return loss / float64(t.Outputs), nil
}

// outputDeltas fills the output segment of the delta buffer and returns the
// summed squared error.
func (n *Network) outputDeltas(target []float64) float64 {
	t := n.topology
	d := n.deltas[t.deltaOffset(t.HiddenLayers):]

	var sse float64
	for j, o := range n.outputs() {
		e := target[j] - o
		sse += e * e
		d[j] = e * sigmoidPrime(o)
	}
	return sse
}

// hiddenDeltas walks the hidden layers back to front. For layer h the error
// reaching neuron j is the sum over the next layer's neurons k of
// delta_k * w(j->k), i.e. the transposed next-layer weights (bias column
// dropped) applied to the next layer's deltas.
func (n *Network) hiddenDeltas() {
	t := n.topology
	for h := t.HiddenLayers - 1; h >= 0; h-- {
		off := t.deltaOffset(h)
		cur := mat.NewVecDense(t.Hidden, n.deltas[off:off+t.Hidden])

		next := n.Layer(h + 1)
		if next == nil {
			cur.Zero()
			continue
		}
		nw := t.width(h + 1)
		noff := t.deltaOffset(h + 1)
		fwd := mat.NewVecDense(nw, n.deltas[noff:noff+nw])
		cur.MulVec(next.Slice(0, nw, 1, t.Hidden+1).T(), fwd)

		act := n.activations[t.outputOffset(h) : t.outputOffset(h)+t.Hidden]
		for j, o := range act {
			n.deltas[off+j] *= sigmoidPrime(o)
		}
	}
}

func (n *Network) applyDeltas(rate float64) {
	t := n.topology
	for l := 0; l < t.Layers(); l++ {
		fanIn := t.fanIn(l)
		in := n.activations[t.inputOffset(l) : t.inputOffset(l)+fanIn]
		d := n.deltas[t.deltaOffset(l) : t.deltaOffset(l)+t.width(l)]
		w := n.weights[t.weightOffset(l):]

		for j, dj := range d {
			row := w[j*(fanIn+1) : (j+1)*(fanIn+1)]
			row[0] += dj * rate * -1.0
			floats.AddScaled(row[1:], dj*rate, in)
		}
	}
}
