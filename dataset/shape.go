// Package dataset draws the training shapes and turns them into samples:
// a downsampled raster as input, the shape's normalized parameters as target.
package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/plot/vg"
)

// Canvas geometry of every rendered image, in pixels.
const (
	Size      = 128
	Thickness = 5
)

// Shape is something that can be stroked on a Size×Size canvas and
// described by a target vector.
type Shape interface {
	// Target is the vector the network learns for this shape.
	Target() []float64
	// Path is the outline in canvas coordinates (origin bottom left).
	Path() vg.Path
}

// Point is a position in image coordinates (origin top left). Values in
// [0, 1] are fractions of the canvas, anything else is taken as pixels.
type Point struct {
	X, Y float64
}

func (p Point) pixels() (x, y float64) {
	x, y = p.X, p.Y
	if x >= 0 && x <= 1 {
		x *= Size
	}
	if y >= 0 && y <= 1 {
		y *= Size
	}
	return math.Round(x), math.Round(y)
}

func canvasPoint(x, y float64) vg.Point {
	return vg.Point{X: vg.Length(x), Y: vg.Length(Size - y)}
}

// Arc is a circular arc in pixels. Angles are in radians, measured
// clockwise on screen from three o'clock.
type Arc struct {
	CX, CY, R  float64
	Start, End float64
}

// ArcOutputs is the length of an arc target.
const ArcOutputs = 5

func (a Arc) Target() []float64 {
	return []float64{a.CX / 128, a.CY / 128, a.R / 100, a.Start / (2 * math.Pi), a.End / (2 * math.Pi)}
}

// ArcFromPrediction inverts Arc.Target.
func ArcFromPrediction(p []float64) (Arc, error) {
	if len(p) != ArcOutputs {
		return Arc{}, fmt.Errorf("arc needs %d values, got %d", ArcOutputs, len(p))
	}
	return Arc{
		CX:    p[0] * 128,
		CY:    p[1] * 128,
		R:     p[2] * 100,
		Start: p[3] * 2 * math.Pi,
		End:   p[4] * 2 * math.Pi,
	}, nil
}

const arcSegments = 72

func (a Arc) Path() vg.Path {
	var p vg.Path
	if a.R <= 0 || a.Start == a.End {
		return p
	}
	sweep := a.End - a.Start
	if sweep > 2*math.Pi {
		sweep = 2 * math.Pi
	} else if sweep < -2*math.Pi {
		sweep = -2 * math.Pi
	}
	for i := 0; i <= arcSegments; i++ {
		theta := a.Start + sweep*float64(i)/arcSegments
		pt := canvasPoint(a.CX+a.R*math.Cos(theta), a.CY+a.R*math.Sin(theta))
		if i == 0 {
			p.Move(pt)
		} else {
			p.Line(pt)
		}
	}
	return p
}

// Polygon is a closed outline through Points.
type Polygon struct {
	Points []Point
}

// Square is the polygon drawn when no points are given.
var Square = Polygon{Points: []Point{{0.2, 0.2}, {0.2, 0.8}, {0.8, 0.8}, {0.8, 0.2}}}

// Target flattens the vertices to [x1, y1, x2, y2, ...].
func (g Polygon) Target() []float64 {
	t := make([]float64, 0, 2*len(g.Points))
	for _, p := range g.Points {
		t = append(t, p.X, p.Y)
	}
	return t
}

// PolygonFromPrediction inverts Polygon.Target.
func PolygonFromPrediction(p []float64) (Polygon, error) {
	if len(p) == 0 || len(p)%2 != 0 {
		return Polygon{}, fmt.Errorf("polygon needs an even, non-zero number of values, got %d", len(p))
	}
	g := Polygon{Points: make([]Point, len(p)/2)}
	for k := range g.Points {
		g.Points[k] = Point{X: p[2*k], Y: p[2*k+1]}
	}
	return g, nil
}

func (g Polygon) Path() vg.Path {
	var p vg.Path
	for i, pt := range g.Points {
		x, y := pt.pixels()
		if i == 0 {
			p.Move(canvasPoint(x, y))
		} else {
			p.Line(canvasPoint(x, y))
		}
	}
	if len(g.Points) > 2 {
		p.Close()
	}
	return p
}
