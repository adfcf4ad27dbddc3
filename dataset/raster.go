package dataset

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"

	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"

	"shapenet/tensor"
)

// InputSide is the side of the downsampled raster fed to the network.
const InputSide = 32

// Render strokes s in c on a white Size×Size image.
func Render(s Shape, c color.Color) image.Image {
	// at 72 dpi one vg point is one pixel
	canvas := vgimg.NewWith(
		vgimg.UseWH(Size, Size),
		vgimg.UseDPI(72),
		vgimg.UseBackgroundColor(color.White),
	)
	path := s.Path()
	if len(path) > 0 {
		canvas.SetColor(c)
		canvas.SetLineWidth(vg.Length(Thickness))
		canvas.Stroke(path)
	}
	return canvas.Image()
}

// Downsample samples img on a side×side grid, nearest neighbour, and returns
// 1 - red/255 per cell so that dark strokes on white are close to 1.
func Downsample(img image.Image, side int) *tensor.Tensor {
	b := img.Bounds()
	scaleX := float64(b.Dx()) / float64(side)
	scaleY := float64(b.Dy()) / float64(side)

	t := tensor.New(side, side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			srcX := b.Min.X + int(float64(x)*scaleX)
			srcY := b.Min.Y + int(float64(y)*scaleY)
			r, _, _, _ := img.At(srcX, srcY).RGBA()
			t.Set(1-float64(r>>8)/255, y, x)
		}
	}
	return t
}

// Sketch draws a [h, w] raster as text, one line per row: '#' for cells
// above 0.5, '+' for cells above 0.1, '.' otherwise.
func Sketch(t *tensor.Tensor) string {
	if len(t.Shape) != 2 {
		return ""
	}
	var b strings.Builder
	for y := 0; y < t.Shape[0]; y++ {
		for x := 0; x < t.Shape[1]; x++ {
			switch v := t.At(y, x); {
			case v > 0.5:
				b.WriteByte('#')
			case v > 0.1:
				b.WriteByte('+')
			default:
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

// LoadPNG decodes the image at path.
func LoadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}
