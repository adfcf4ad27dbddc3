package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"shapenet/ann"
	"shapenet/tensor"
)

// WeightData represents serializable weight data for a layer
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights is a network exported layer by layer, keyed by layer name.
type ModelWeights struct {
	Version  string                 `json:"version"`
	Topology string                 `json:"topology"`
	Epoch    int                    `json:"epoch"`
	Layers   map[string]LayerWeight `json:"layers"`
}

// LayerWeight contains weights and bias for a layer
type LayerWeight struct {
	Weight *WeightData `json:"weight,omitempty"`
	Bias   *WeightData `json:"bias,omitempty"`
}

// LayerName names weighted layer l of t: hidden_1 … hidden_N, then output.
func LayerName(t ann.Topology, l int) string {
	if l == t.Layers()-1 {
		return "output"
	}
	return fmt.Sprintf("hidden_%d", l+1)
}

// ExportWeights splits the network's flat buffer into a weight matrix
// (width × fanIn) and a bias vector per layer.
func ExportWeights(net *ann.Network, epoch int) *ModelWeights {
	t := net.Topology()
	mw := &ModelWeights{
		Version:  "1.0",
		Topology: t.String(),
		Epoch:    epoch,
		Layers:   make(map[string]LayerWeight, t.Layers()),
	}
	for l := 0; l < t.Layers(); l++ {
		layer := net.Layer(l)
		if layer == nil {
			continue
		}
		rows, cols := layer.Dims()
		name := LayerName(t, l)

		w := tensor.New(rows, cols-1)
		b := tensor.New(rows)
		for j := 0; j < rows; j++ {
			b.Set(layer.At(j, 0), j)
			for i := 1; i < cols; i++ {
				w.Set(layer.At(j, i), j, i-1)
			}
		}
		mw.Layers[name] = LayerWeight{
			Weight: TensorToWeightData(name+"_weight", w),
			Bias:   TensorToWeightData(name+"_bias", b),
		}
	}
	return mw
}

// ImportWeights rebuilds a network of topology t from exported weights.
func ImportWeights(t ann.Topology, mw *ModelWeights) (*ann.Network, error) {
	net, err := ann.FromWeights(t, make([]float64, t.TotalWeights()))
	if err != nil {
		return nil, err
	}
	for l := 0; l < t.Layers(); l++ {
		layer := net.Layer(l)
		if layer == nil {
			continue
		}
		rows, cols := layer.Dims()
		name := LayerName(t, l)
		lw, ok := mw.Layers[name]
		if !ok || lw.Weight == nil || lw.Bias == nil {
			return nil, fmt.Errorf("layer %s missing", name)
		}
		w, err := tensor.NewWithData(lw.Weight.Data).Reshape(rows, cols-1)
		if err != nil {
			return nil, fmt.Errorf("layer %s weights: %w", name, err)
		}
		b, err := tensor.NewWithData(lw.Bias.Data).Reshape(rows, 1)
		if err != nil {
			return nil, fmt.Errorf("layer %s biases: %w", name, err)
		}
		layer.Slice(0, rows, 0, 1).(*mat.Dense).Copy(mat.NewDense(rows, 1, b.Data))
		if cols > 1 {
			layer.Slice(0, rows, 1, cols).(*mat.Dense).Copy(mat.NewDense(rows, cols-1, w.Data))
		}
	}
	return net, nil
}

// SaveWeights saves model weights to a JSON file
func SaveWeights(filepath string, weights *ModelWeights) error {
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadWeights loads model weights from a JSON file
func LoadWeights(filepath string) (*ModelWeights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	return &weights, nil
}

// TensorToWeightData converts a tensor to serializable weight data
func TensorToWeightData(name string, t *tensor.Tensor) *WeightData {
	return &WeightData{
		Name:  name,
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float64{}, t.Data...),
	}
}
