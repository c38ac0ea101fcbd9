package ambient

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/coreman2200/edream/internal/render"
)

// Sampler reduces a frame to one colour per LED. The frame is scaled down
// to a grid with one cell per LED along each edge, so each LED sees the
// average of the band of screen behind it.
type Sampler struct {
	pos    []Point
	grid   *image.RGBA
	smooth float32
	prev   []render.Color
}

// NewSampler builds a sampler for p. smoothing in (0,1] is the weight of
// the newest frame; 1 disables smoothing.
func NewSampler(p Perimeter, smoothing float64) *Sampler {
	gw := max(p.Top, p.Bottom, 1)
	gh := max(p.Left, p.Right, 1)
	if smoothing <= 0 || smoothing > 1 {
		smoothing = 1
	}
	return &Sampler{
		pos:    p.Positions(),
		grid:   image.NewRGBA(image.Rect(0, 0, gw, gh)),
		smooth: float32(smoothing),
	}
}

// Sample returns the smoothed colour for every LED in strip order. The
// returned slice is reused by the next call.
func (s *Sampler) Sample(img image.Image) []render.Color {
	if img == nil || img.Bounds().Empty() {
		return s.prev
	}
	draw.BiLinear.Scale(s.grid, s.grid.Bounds(), img, img.Bounds(), draw.Src, nil)

	gw, gh := s.grid.Rect.Dx(), s.grid.Rect.Dy()
	first := s.prev == nil
	if first {
		s.prev = make([]render.Color, len(s.pos))
	}
	for i, p := range s.pos {
		x := min(int(p.U*float64(gw)), gw-1)
		y := min(int(p.V*float64(gh)), gh-1)
		o := s.grid.PixOffset(x, y)
		c := render.Color{
			R: float32(s.grid.Pix[o+0]) / 255,
			G: float32(s.grid.Pix[o+1]) / 255,
			B: float32(s.grid.Pix[o+2]) / 255,
			A: 1,
		}
		if first {
			s.prev[i] = c
			continue
		}
		s.prev[i] = render.Lerp(s.prev[i], c, s.smooth)
	}
	return s.prev
}

// Reset drops the smoothing history.
func (s *Sampler) Reset() { s.prev = nil }
