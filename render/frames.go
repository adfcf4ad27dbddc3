// Package render turns replayed predictions into images: one PNG frame per
// checkpoint and an animated GIF per sample.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"sync"

	"shapenet/dataset"
	"shapenet/run"
)

// Decoder turns a prediction vector back into a drawable shape.
type Decoder func(prediction []float64) (dataset.Shape, error)

func ArcDecoder(p []float64) (dataset.Shape, error) {
	return dataset.ArcFromPrediction(p)
}

func PolygonDecoder(p []float64) (dataset.Shape, error) {
	return dataset.PolygonFromPrediction(p)
}

// DefaultDelay is the GIF frame delay in hundredths of a second.
const DefaultDelay = 16

// PredictionColor is the stroke color of predicted shapes.
var PredictionColor = color.RGBA{R: 0xff, A: 0xff}

// FrameSink draws each prediction in red into Dir as
// pred_<id>_epoch_<n>.png and, once a sample is finished, assembles its
// frames into evolution_<id>.gif.
type FrameSink struct {
	Dir    string
	Decode Decoder
	// Delay between GIF frames in 1/100 s; DefaultDelay when zero.
	Delay int

	mu     sync.Mutex
	frames map[string][]*image.Paletted
}

var (
	_ run.Sink           = (*FrameSink)(nil)
	_ run.SampleFinisher = (*FrameSink)(nil)
)

func NewFrameSink(dir string, decode Decoder) (*FrameSink, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("creating frame dir: %w", err)
	}
	return &FrameSink{Dir: dir, Decode: decode}, nil
}

// FramePath is where the frame of sample id at epoch is written.
func FramePath(dir, id string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("pred_%s_epoch_%d.png", id, epoch))
}

// AnimationPath is where the GIF of sample id is written.
func AnimationPath(dir, id string) string {
	return filepath.Join(dir, "evolution_"+id+".gif")
}

func (s *FrameSink) RenderPrediction(id string, epoch int, prediction []float64) error {
	shape, err := s.Decode(prediction)
	if err != nil {
		return err
	}
	img := dataset.Render(shape, PredictionColor)
	if err := dataset.WritePNG(FramePath(s.Dir, id, epoch), img); err != nil {
		return err
	}

	frame := image.NewPaletted(img.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(frame, img.Bounds(), img, image.Point{})

	s.mu.Lock()
	if s.frames == nil {
		s.frames = make(map[string][]*image.Paletted)
	}
	s.frames[id] = append(s.frames[id], frame)
	s.mu.Unlock()
	return nil
}

func (s *FrameSink) FinishSample(id string) error {
	s.mu.Lock()
	frames := s.frames[id]
	delete(s.frames, id)
	s.mu.Unlock()

	if len(frames) == 0 {
		return nil
	}
	delay := s.Delay
	if delay == 0 {
		delay = DefaultDelay
	}
	anim := &gif.GIF{LoopCount: 0}
	for _, f := range frames {
		anim.Image = append(anim.Image, f)
		anim.Delay = append(anim.Delay, delay)
	}

	path := AnimationPath(s.Dir, id)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
