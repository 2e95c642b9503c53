package emath

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
	"golang.org/x/image/draw"
)

// A FloatGrid is a grid of floats, with some operations. Intensity
// images live in here as [0,255] values; depth maps keep their raw
// sensor units.
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	if w <= 0 || h <= 0 {
		return FloatGrid{}
	}
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

func (fg *FloatGrid) Set(x, y int, v float64)  { fg.values[fg.stride*y+x] = v }
func (fg *FloatGrid) Get(x, y int) float64     { return fg.values[fg.stride*y+x] }
func (fg *FloatGrid) Dx() int                  { return fg.stride }
func (fg *FloatGrid) IsEmpty() bool            { return len(fg.values) == 0 }
func (fg *FloatGrid) Size() image.Point        { return image.Point{fg.Dx(), fg.Dy()} }

func (fg *FloatGrid) Dy() int {
	if fg.stride == 0 {
		return 0
	}
	return len(fg.values) / fg.stride
}

// NewFloatGridFromImage builds an intensity grid in [0,255] from any
// image; color images are reduced to luminance. 16 bit sources keep
// their fractional precision.
func NewFloatGridFromImage(img image.Image) FloatGrid {
	b := img.Bounds()
	g := NewFloatGrid(b.Dx(), b.Dy())

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			switch v := c.(type) {
			case color.Gray:
				g.Set(x, y, float64(v.Y))
			default:
				gray := color.Gray16Model.Convert(c).(color.Gray16)
				g.Set(x, y, float64(gray.Y)/257.0)
			}
		}
	}

	return g
}

// NewFloatGridFromRaw keeps the raw sample values of a single channel
// image, e.g. a 16 bit disparity or depth map. 8 bit sources give 8
// bit values.
func NewFloatGridFromRaw(img image.Image) FloatGrid {
	b := img.Bounds()
	g := NewFloatGrid(b.Dx(), b.Dy())

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			switch v := c.(type) {
			case color.Gray16:
				g.Set(x, y, float64(v.Y))
			case color.Gray:
				g.Set(x, y, float64(v.Y))
			default:
				gray := color.Gray16Model.Convert(c).(color.Gray16)
				g.Set(x, y, float64(gray.Y))
			}
		}
	}

	return g
}

// Bilinear samples the grid at a sub-pixel location. Coordinates
// outside the grid are clamped onto the edge.
func (fg *FloatGrid) Bilinear(x, y float64) float64 {
	w, h := fg.Dx(), fg.Dy()

	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x > float64(w-1) {
		x = float64(w - 1)
	}
	if y > float64(h-1) {
		y = float64(h - 1)
	}

	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	x1, y1 := x0+1, y0+1
	if x1 > w-1 {
		x1 = w - 1
	}
	if y1 > h-1 {
		y1 = h - 1
	}

	xx := x - float64(x0)
	yy := y - float64(y0)

	return (1-xx)*(1-yy)*fg.Get(x0, y0) +
		xx*(1-yy)*fg.Get(x1, y0) +
		(1-xx)*yy*fg.Get(x0, y1) +
		xx*yy*fg.Get(x1, y1)
}

// Gradient is the central difference of the interpolated intensity.
func (fg *FloatGrid) Gradient(x, y float64) (float64, float64) {
	gx := 0.5 * (fg.Bilinear(x+1, y) - fg.Bilinear(x-1, y))
	gy := 0.5 * (fg.Bilinear(x, y+1) - fg.Bilinear(x, y-1))
	return gx, gy
}

// PixelGradient is the integer-pixel difference used to pick textured
// pixels; it spans two pixels, there is no 0.5 factor.
func (fg *FloatGrid) PixelGradient(x, y int) (float64, float64) {
	gx := fg.Get(x+1, y) - fg.Get(x-1, y)
	gy := fg.Get(x, y+1) - fg.Get(x, y-1)
	return gx, gy
}

func (fg *FloatGrid) MinMax() (float64, float64) {
	min := math.MaxFloat64
	max := -1.0 * min

	for i := 0; i < len(fg.values); i++ {
		if fg.values[i] > max {
			max = fg.values[i]
		}
		if fg.values[i] < min {
			min = fg.values[i]
		}
	}
	return min, max
}

// Resize returns a grid scaled by `scale` in each dimension, using
// bilinear interpolation. Values are carried through a 16 bit gray
// image stretched over the grid's own [min,max], so the output keeps
// the input's range.
func (g1 *FloatGrid) Resize(scale float64) FloatGrid {
	width := int(float64(g1.Dx()) * scale)
	height := int(float64(g1.Dy()) * scale)
	if width < 1 || height < 1 || g1.IsEmpty() {
		return FloatGrid{}
	}

	min, max := g1.MinMax()
	g2 := NewFloatGrid(width, height)
	if max == min {
		for i := range g2.values {
			g2.values[i] = min
		}
		return g2
	}

	span := max - min
	src := image.NewGray16(image.Rect(0, 0, g1.Dx(), g1.Dy()))
	for y := 0; y < g1.Dy(); y++ {
		for x := 0; x < g1.Dx(); x++ {
			v := math.Round((g1.Get(x, y) - min) / span * 65535.0)
			src.SetGray16(x, y, color.Gray16{uint16(v)})
		}
	}

	dst := image.NewGray16(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g2.Set(x, y, min+float64(dst.Gray16At(x, y).Y)/65535.0*span)
		}
	}

	return g2
}

// DownSample returns a grid that is 1/4 of the size, averaging the values from the
// original.
func (g1 *FloatGrid) DownSample() FloatGrid {
	width := g1.Dx() / 2
	height := g1.Dy() / 2
	g2 := NewFloatGrid(width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := g1.Get(2*x, 2*y)
			p += g1.Get(2*x+1, 2*y)
			p += g1.Get(2*x, 2*y+1)
			p += g1.Get(2*x+1, 2*y+1)
			g2.Set(x, y, p/4.0)
		}
	}

	return g2
}

func (fg *FloatGrid) Stats() string {
	min, max := fg.MinMax()
	return fmt.Sprintf("fg[%dx%d, vals{%f,%f}]", fg.Dx(), fg.Dy(), min, max)
}

// ToGray clamps the grid into an 8 bit grayscale image.
func (fg *FloatGrid) ToGray() *image.Gray {
	img := image.NewGray(image.Rectangle{Max: image.Point{fg.Dx(), fg.Dy()}})
	for y := 0; y < fg.Dy(); y++ {
		for x := 0; x < fg.Dx(); x++ {
			v := math.Round(fg.Get(x, y))
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{uint8(v)})
		}
	}
	return img
}

// ToImg saves a simple grayscale, stretched over the range of values
// in the grid, with a title drawn on top.
func (fg *FloatGrid) ToImg(title, filename string) error {
	min, max := fg.MinMax()
	if max == min {
		max = min + 1
	}

	img := image.NewRGBA64(image.Rectangle{Max: image.Point{fg.Dx(), fg.Dy()}})
	for x := 0; x < fg.Dx(); x++ {
		for y := 0; y < fg.Dy(); y++ {
			gray := (fg.Get(x, y) - min) / (max - min)
			col := color.RGBA64{uint16(gray * 65535.0), uint16(gray * 65535.0), uint16(gray * 65535.0), 0xFFFF}
			img.Set(x, y, col)
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1, 0.2, 0.2)
	dc.DrawString(title, 10, 20)
	return dc.SavePNG(filename)
}
