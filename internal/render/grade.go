package render

import "math"

// Grade is the output transform applied on Present: exposure in EV,
// optional filmic curve, then display gamma.
type Grade struct {
	ExposureEV float64
	Gamma      float64 // 0 or 1 disables
	Filmic     bool
}

func (g Grade) Identity() bool {
	return g.ExposureEV == 0 && (g.Gamma == 0 || g.Gamma == 1) && !g.Filmic
}

// Apply grades a single colour and clamps it to 0..1.
func (g Grade) Apply(c Color) Color {
	if g.ExposureEV != 0 {
		c = c.Scale(float32(math.Pow(2.0, g.ExposureEV)))
	}
	if g.Filmic {
		c.R, c.G, c.B = acesApprox(c.R), acesApprox(c.G), acesApprox(c.B)
	}
	if g.Gamma > 0 && g.Gamma != 1 {
		ig := 1.0 / g.Gamma
		c.R, c.G, c.B = powf(clamp01(c.R), ig), powf(clamp01(c.G), ig), powf(clamp01(c.B), ig)
	}
	c.R, c.G, c.B = clamp01(c.R), clamp01(c.G), clamp01(c.B)
	return c
}

// ApplyBuf grades buf in place.
func (g Grade) ApplyBuf(buf []Color) {
	if g.Identity() {
		for i := range buf {
			buf[i].R, buf[i].G, buf[i].B = clamp01(buf[i].R), clamp01(buf[i].G), clamp01(buf[i].B)
		}
		return
	}
	for i := range buf {
		buf[i] = g.Apply(buf[i])
	}
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func powf(x float32, p float64) float32 {
	return float32(math.Pow(float64(x), p))
}

// Approximate ACES filmic curve (Narkowicz 2015).
func acesApprox(x float32) float32 {
	a := float32(2.51)
	b := float32(0.03)
	c := float32(2.43)
	d := float32(0.59)
	e := float32(0.14)
	return clamp01((x * (a*x + b)) / (x*(c*x+d) + e))
}
