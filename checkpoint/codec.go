// Package checkpoint persists network snapshots keyed by (slot, epoch).
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"shapenet/ann"
)

const formatVersion = 1

// snapshot is the wire form of a checkpoint: the topology plus the flat
// weight buffer, marshalled as a gonum vector. Scratch buffers are never
// part of it.
type snapshot struct {
	Version      int
	Inputs       int
	HiddenLayers int
	Hidden       int
	Outputs      int
	Weights      []byte
}

// Encode writes net's topology and weights to w.
func Encode(w io.Writer, net *ann.Network) error {
	t := net.Topology()
	s := snapshot{
		Version:      formatVersion,
		Inputs:       t.Inputs,
		HiddenLayers: t.HiddenLayers,
		Hidden:       t.Hidden,
		Outputs:      t.Outputs,
	}
	if weights := net.Weights(); len(weights) > 0 {
		b, err := mat.NewVecDense(len(weights), weights).MarshalBinary()
		if err != nil {
			return fmt.Errorf("marshalling weights: %w", err)
		}
		s.Weights = b
	}
	if err := gob.NewEncoder(w).Encode(&s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode and rebuilds the network with
// freshly allocated scratch buffers.
func Decode(r io.Reader) (*ann.Network, error) {
	var s snapshot
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.Version != formatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	t := ann.Topology{
		Inputs:       s.Inputs,
		HiddenLayers: s.HiddenLayers,
		Hidden:       s.Hidden,
		Outputs:      s.Outputs,
	}

	var weights []float64
	if len(s.Weights) > 0 {
		var v mat.VecDense
		if err := v.UnmarshalBinary(s.Weights); err != nil {
			return nil, fmt.Errorf("unmarshalling weights: %w", err)
		}
		weights = make([]float64, v.Len())
		for i := range weights {
			weights[i] = v.AtVec(i)
		}
	}

	net, err := ann.FromWeights(t, weights)
	if err != nil {
		return nil, fmt.Errorf("rebuilding network: %w", err)
	}
	return net, nil
}
