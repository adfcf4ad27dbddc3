package render

import (
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shapenet/dataset"
	"shapenet/run"
)

func TestFrameSinkWritesFramesAndAnimation(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFrameSink(filepath.Join(dir, "frames"), ArcDecoder)
	require.NoError(t, err)

	arc := dataset.Arc{CX: 64, CY: 64, R: 30, Start: 0, End: 3}
	for _, epoch := range []int{0, 10, 20} {
		require.NoError(t, sink.RenderPrediction("001", epoch, arc.Target()))
	}
	require.NoError(t, sink.FinishSample("001"))

	for _, epoch := range []int{0, 10, 20} {
		img, err := dataset.LoadPNG(FramePath(sink.Dir, "001", epoch))
		require.NoError(t, err)
		assert.Equal(t, dataset.Size, img.Bounds().Dx())
	}

	f, err := os.Open(AnimationPath(sink.Dir, "001"))
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, anim.Image, 3)
	assert.Equal(t, []int{DefaultDelay, DefaultDelay, DefaultDelay}, anim.Delay)
	assert.Equal(t, 0, anim.LoopCount)
}

func TestFrameSinkPolygon(t *testing.T) {
	sink, err := NewFrameSink(t.TempDir(), PolygonDecoder)
	require.NoError(t, err)
	sink.Delay = 5

	require.NoError(t, sink.RenderPrediction("002", 0, dataset.Square.Target()))
	require.NoError(t, sink.FinishSample("002"))

	f, err := os.Open(AnimationPath(sink.Dir, "002"))
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, anim.Delay)
}

func TestFrameSinkRejectsBadPrediction(t *testing.T) {
	sink, err := NewFrameSink(t.TempDir(), ArcDecoder)
	require.NoError(t, err)
	assert.Error(t, sink.RenderPrediction("001", 0, []float64{0.5}))
}

func TestFinishSampleWithoutFrames(t *testing.T) {
	sink, err := NewFrameSink(t.TempDir(), ArcDecoder)
	require.NoError(t, err)
	require.NoError(t, sink.FinishSample("009"))
	_, err = os.Stat(AnimationPath(sink.Dir, "009"))
	assert.True(t, os.IsNotExist(err))
}

func TestLossCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.png")
	err := LossCurve(path, []run.EpochLoss{{Epoch: 0, Loss: 0.3}, {Epoch: 1, Loss: 0.2}, {Epoch: 2, Loss: 0.05}})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, LossCurve(path, nil))
}
