package dataset

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/exp/rand"
)

// Sample is one training pair. Input is the downsampled raster, row major.
type Sample struct {
	ID     string
	Shape  Shape
	Input  []float64
	Target []float64
}

// SampleID names the i-th sample (0-based) the way its files are named.
func SampleID(i int) string {
	return fmt.Sprintf("%03d", i+1)
}

// ArcSource generates Count random arcs.
type ArcSource struct {
	Count int
	Src   rand.Source
	// Dir receives output_<id>.png ground-truth images when set.
	Dir string
}

func (s *ArcSource) Generate() ([]Sample, error) {
	r := rand.New(s.Src)
	shapes := make([]Shape, s.Count)
	for i := range shapes {
		cx := float64(14 + r.Intn(100))
		cy := float64(14 + r.Intn(100))
		rad := float64(20 + r.Intn(60))
		a1 := r.Float64() * 2 * math.Pi
		a2 := r.Float64() * 2 * math.Pi
		shapes[i] = Arc{CX: cx, CY: cy, R: rad, Start: math.Min(a1, a2), End: math.Max(a1, a2)}
	}
	return build(shapes, s.Dir)
}

// PolygonSource draws the same polygon Count times, so every sample shares
// one target.
type PolygonSource struct {
	Count   int
	Polygon Polygon
	Dir     string
}

func (s *PolygonSource) Generate() ([]Sample, error) {
	g := s.Polygon
	if len(g.Points) == 0 {
		g = Square
	}
	shapes := make([]Shape, s.Count)
	for i := range shapes {
		shapes[i] = g
	}
	return build(shapes, s.Dir)
}

func build(shapes []Shape, dir string) ([]Sample, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("creating dataset dir: %w", err)
		}
	}
	samples := make([]Sample, len(shapes))
	for i, sh := range shapes {
		img := Render(sh, color.Black)
		id := SampleID(i)
		if dir != "" {
			if err := WritePNG(GroundTruthPath(dir, id), img); err != nil {
				return nil, fmt.Errorf("writing sample %s: %w", id, err)
			}
		}
		samples[i] = NewSample(id, sh, img)
	}
	return samples, nil
}

// NewSample pairs the downsampled img with sh's target.
func NewSample(id string, sh Shape, img image.Image) Sample {
	return Sample{
		ID:     id,
		Shape:  sh,
		Input:  Downsample(img, InputSide).Flatten().Data,
		Target: sh.Target(),
	}
}

// GroundTruthPath is where the image of sample id is written under dir.
func GroundTruthPath(dir, id string) string {
	return filepath.Join(dir, "output_"+id+".png")
}
