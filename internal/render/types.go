package render

// Color is linear RGBA in 0..1. A is only read as a draw tint.
type Color struct{ R, G, B, A float32 }

var (
	White = Color{1, 1, 1, 1}
	Black = Color{0, 0, 0, 1}
)

// Scale multiplies the colour channels, leaving A untouched.
func (c Color) Scale(s float32) Color {
	return Color{R: c.R * s, G: c.G * s, B: c.B * s, A: c.A}
}

// Add sums the colour channels of c and o.
func (c Color) Add(o Color) Color {
	return Color{R: c.R + o.R, G: c.G + o.G, B: c.B + o.B, A: c.A}
}

// Rect is a pixel or UV rectangle with origin at the top-left.
type Rect struct{ X, Y, W, H float64 }

// FullUV samples the whole texture.
var FullUV = Rect{0, 0, 1, 1}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// FitRect letterboxes a srcW x srcH image inside dst, keeping aspect ratio.
func FitRect(srcW, srcH int, dst Rect) Rect {
	if srcW <= 0 || srcH <= 0 || dst.Empty() {
		return dst
	}
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := dst.W / dst.H
	if srcAspect > dstAspect {
		h := dst.W / srcAspect
		return Rect{X: dst.X, Y: dst.Y + (dst.H-h)/2, W: dst.W, H: h}
	}
	w := dst.H * srcAspect
	return Rect{X: dst.X + (dst.W-w)/2, Y: dst.Y, W: w, H: dst.H}
}
