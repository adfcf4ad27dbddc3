package ann

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestTotalWeights(t *testing.T) {
	tests := []struct {
		topology Topology
		want     int
	}{
		{Topology{Inputs: 2, HiddenLayers: 1, Hidden: 2, Outputs: 1}, 9},
		{Topology{Inputs: 2, HiddenLayers: 0, Hidden: 0, Outputs: 1}, 3},
		{Topology{Inputs: 2, HiddenLayers: 0, Hidden: 7, Outputs: 3}, 9},
		{Topology{Inputs: 3, HiddenLayers: 2, Hidden: 4, Outputs: 2}, 16 + 20 + 10},
		{Topology{Inputs: 1024, HiddenLayers: 1, Hidden: 64, Outputs: 5}, 1025*64 + 65*5},
		{Topology{Inputs: 0, HiddenLayers: 0, Hidden: 0, Outputs: 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.topology.String(), func(t *testing.T) {
			tp := tt.topology
			hidden := 0
			if tp.HiddenLayers > 0 {
				hidden = (tp.Inputs+1)*tp.Hidden + (tp.HiddenLayers-1)*(tp.Hidden+1)*tp.Hidden
			}
			prev := tp.Inputs
			if tp.HiddenLayers > 0 {
				prev = tp.Hidden
			}
			require.Equal(t, tt.want, hidden+(prev+1)*tp.Outputs)
			require.Equal(t, tt.want, tp.TotalWeights())

			net, err := New(tp, rand.NewSource(1))
			require.NoError(t, err)
			assert.Len(t, net.Weights(), tt.want)
			assert.Len(t, net.activations, tp.Inputs+tp.Hidden*tp.HiddenLayers+tp.Outputs)
			assert.Len(t, net.deltas, tp.Hidden*tp.HiddenLayers+tp.Outputs)

			if tp.Inputs > 0 && tp.Outputs > 0 {
				in := make([]float64, tp.Inputs)
				target := make([]float64, tp.Outputs)
				_, err = Train(net, in, target, 0.5)
				require.NoError(t, err)
				assert.Len(t, net.weights, tt.want)
			}
		})
	}
}

func TestNewRejectsInvalidTopology(t *testing.T) {
	tests := []Topology{
		{Inputs: -1, HiddenLayers: 1, Hidden: 2, Outputs: 1},
		{Inputs: 2, HiddenLayers: -1, Hidden: 2, Outputs: 1},
		{Inputs: 2, HiddenLayers: 1, Hidden: -2, Outputs: 1},
		{Inputs: 2, HiddenLayers: 1, Hidden: 2, Outputs: -1},
		{Inputs: 2, HiddenLayers: 2, Hidden: 0, Outputs: 1},
	}
	for _, tp := range tests {
		_, err := New(tp, rand.NewSource(1))
		require.Error(t, err, "topology %+v", tp)
		assert.ErrorIs(t, err, ErrInvalidTopology)
	}
}

func TestRandomizeRange(t *testing.T) {
	net, err := New(Topology{Inputs: 16, HiddenLayers: 2, Hidden: 8, Outputs: 4}, rand.NewSource(7))
	require.NoError(t, err)
	for i, w := range net.Weights() {
		if w < -0.5 || w >= 0.5 {
			t.Errorf("weight %d = %f outside [-0.5, 0.5)", i, w)
		}
	}
}

func TestNewIsReproducible(t *testing.T) {
	tp := Topology{Inputs: 5, HiddenLayers: 1, Hidden: 3, Outputs: 2}
	a, err := New(tp, rand.NewSource(99))
	require.NoError(t, err)
	b, err := New(tp, rand.NewSource(99))
	require.NoError(t, err)
	assert.Equal(t, a.Weights(), b.Weights())
}

func TestForwardHandComputed(t *testing.T) {
	tp := Topology{Inputs: 2, HiddenLayers: 1, Hidden: 2, Outputs: 1}
	// hidden 0: bias, x0, x1 | hidden 1: bias, x0, x1 | output: bias, h0, h1
	weights := []float64{0.1, 0.2, 0.3, -0.1, 0.4, -0.2, 0.05, 0.6, -0.7}
	net, err := FromWeights(tp, weights)
	require.NoError(t, err)

	out, err := net.Forward([]float64{1.0, 0.0})
	require.NoError(t, err)
	require.Len(t, out, 1)

	s := func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
	h0 := s(-1*0.1 + 0.2*1.0 + 0.3*0.0)
	h1 := s(-1*-0.1 + 0.4*1.0 + -0.2*0.0)
	want := s(-1*0.05 + 0.6*h0 + -0.7*h1)

	assert.InDelta(t, want, out[0], 1e-12)
	assert.InDelta(t, 0.45742, out[0], 1e-4)
}

func TestForwardIsDeterministic(t *testing.T) {
	net, err := New(Topology{Inputs: 8, HiddenLayers: 2, Hidden: 5, Outputs: 3}, rand.NewSource(3))
	require.NoError(t, err)

	in := []float64{0.1, 0.9, 0.3, 0.0, 1.0, 0.5, 0.25, 0.75}
	first, err := net.Forward(in)
	require.NoError(t, err)
	second, err := net.Forward(in)
	require.NoError(t, err)
	for i := range first {
		if math.Float64bits(first[i]) != math.Float64bits(second[i]) {
			t.Errorf("output %d differs between calls: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestForwardReturnsCopy(t *testing.T) {
	net, err := New(Topology{Inputs: 2, HiddenLayers: 1, Hidden: 2, Outputs: 2}, rand.NewSource(5))
	require.NoError(t, err)
	out, err := net.Forward([]float64{1, 1})
	require.NoError(t, err)
	out[0] = 42
	assert.NotEqual(t, 42.0, net.outputs()[0])
}

func TestForwardWithoutHiddenLayers(t *testing.T) {
	tp := Topology{Inputs: 2, HiddenLayers: 0, Outputs: 2}
	net, err := FromWeights(tp, []float64{0.5, 1, 2, -0.5, -1, 0})
	require.NoError(t, err)

	out, err := net.Forward([]float64{0.25, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(-0.5+0.25+1.0), out[0], 1e-15)
	assert.InDelta(t, sigmoid(0.5-0.25), out[1], 1e-15)
}

func TestSigmoidClamp(t *testing.T) {
	tp := Topology{Inputs: 1, HiddenLayers: 0, Outputs: 2}
	// output 0 sums to -50, output 1 to +50
	net, err := FromWeights(tp, []float64{0, -50, 0, 50})
	require.NoError(t, err)

	out, err := net.Forward([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 1.0, out[1])

	assert.Equal(t, 0.0, sigmoid(-45.0001))
	assert.Equal(t, 1.0, sigmoid(45.0001))
	assert.Greater(t, sigmoid(-45), 0.0)
}

func TestForwardDimensionMismatch(t *testing.T) {
	net, err := New(Topology{Inputs: 3, HiddenLayers: 1, Hidden: 2, Outputs: 1}, rand.NewSource(1))
	require.NoError(t, err)
	_, err = net.Forward([]float64{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFromWeightsRejectsWrongLength(t *testing.T) {
	_, err := FromWeights(Topology{Inputs: 2, HiddenLayers: 1, Hidden: 2, Outputs: 1}, make([]float64, 8))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLayerSharesBuffer(t *testing.T) {
	tp := Topology{Inputs: 2, HiddenLayers: 1, Hidden: 2, Outputs: 1}
	net, err := FromWeights(tp, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)

	hidden := net.Layer(0)
	r, c := hidden.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 4.0, hidden.At(1, 1))

	output := net.Layer(1)
	r, c = output.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 8.0, output.At(0, 2))

	output.Set(0, 0, -1)
	assert.Equal(t, -1.0, net.Weights()[6])
	assert.Equal(t, tp.WeightIndex(1, 0, 1), 8)
	assert.Equal(t, tp.WeightIndex(0, 1, -1), 3)
}
