// Package display holds the frame display strategies: how a clip's most
// recent decoded frames are kept on the GPU and blended into one image.
package display

import (
	"fmt"

	"github.com/coreman2200/edream/internal/config"
	"github.com/coreman2200/edream/internal/render"
)

// Strategy owns a ring of frame textures and draws them blended by the
// inter-frame delta.
type Strategy interface {
	Mode() config.DisplayMode
	// RequestTargetTexture advances the ring and returns the slot to fill
	// with the next decoded frame. Slot.Tex may be nil or hold a stale
	// texture of the wrong size; the caller replaces it as needed.
	RequestTargetTexture() *Slot
	// StartAtFrame is the frame count (minus one) to buffer before timed
	// gating starts.
	StartAtFrame() int
	// Draw composites the frames into dst with the given cross-fade alpha.
	// It reports false when there is nothing to draw yet.
	Draw(r render.Renderer, alpha, interframeDelta float64, dst render.Rect) bool
	// InheritFramesFrom copies prev's frames when prev is the same variant.
	InheritFramesFrom(prev Strategy)
	// Frames returns the filled textures, oldest first.
	Frames() []*render.Texture
	Release()
}

// New compiles the shader for mode and returns its strategy. Callers fall
// back to discrete when this fails.
func New(mode config.DisplayMode, r render.Renderer) (Strategy, error) {
	name, vs, fs, err := ShaderSource(mode)
	if err != nil {
		return nil, err
	}
	sh, err := r.CompileShader(name, vs, fs)
	if err != nil {
		return nil, fmt.Errorf("display %s: %w", mode, err)
	}
	switch mode {
	case config.ModeLinear:
		return &Linear{base: newBase(mode, sh, 2)}, nil
	case config.ModeCubic:
		return &Cubic{base: newBase(mode, sh, 4)}, nil
	default:
		return &Discrete{base: newBase(mode, sh, 1)}, nil
	}
}

type base struct {
	mode   config.DisplayMode
	shader *render.Shader
	ring   ring
}

func newBase(mode config.DisplayMode, sh *render.Shader, n int) base {
	return base{mode: mode, shader: sh, ring: newRing(n)}
}

func (b *base) Mode() config.DisplayMode { return b.mode }

func (b *base) RequestTargetTexture() *Slot { return b.ring.advance() }

func (b *base) Frames() []*render.Texture { return b.ring.ordered() }

func (b *base) Release() { b.ring.release() }

func (b *base) inherit(prev Strategy) { b.ring.load(prev.Frames()) }

func (b *base) quad(r render.Renderer, alpha float64, dst render.Rect) {
	r.DrawQuad(dst, render.Color{R: 1, G: 1, B: 1, A: float32(clamp01(alpha))}, render.FullUV)
}

// Discrete shows the newest frame with no blending.
type Discrete struct{ base }

func (d *Discrete) StartAtFrame() int { return 0 }

func (d *Discrete) InheritFramesFrom(prev Strategy) {
	if p, ok := prev.(*Discrete); ok && p != d {
		d.inherit(p)
	}
}

func (d *Discrete) Draw(r render.Renderer, alpha, _ float64, dst render.Rect) bool {
	t := d.ring.newest()
	if t == nil {
		return false
	}
	r.UseShader(d.shader)
	r.BindTexture(0, t)
	d.quad(r, alpha, dst)
	return true
}

// Linear cross-blends the two newest frames by the inter-frame delta.
type Linear struct{ base }

func (l *Linear) StartAtFrame() int { return 1 }

func (l *Linear) InheritFramesFrom(prev Strategy) {
	if p, ok := prev.(*Linear); ok && p != l {
		l.inherit(p)
	}
}

func (l *Linear) Draw(r render.Renderer, alpha, interframeDelta float64, dst render.Rect) bool {
	frames := l.ring.ordered()
	if len(frames) == 0 {
		return false
	}
	older, newer := frames[0], frames[len(frames)-1]
	r.UseShader(l.shader)
	r.BindTexture(0, older)
	r.BindTexture(1, newer)
	r.Set("delta", float32(interframeDelta))
	l.quad(r, alpha, dst)
	return true
}

// Cubic reconstructs from the four newest frames with a Mitchell-Netravali
// kernel. Missing frames repeat the earliest one.
type Cubic struct{ base }

func (c *Cubic) StartAtFrame() int { return 3 }

func (c *Cubic) InheritFramesFrom(prev Strategy) {
	if p, ok := prev.(*Cubic); ok && p != c {
		c.inherit(p)
	}
}

func (c *Cubic) Draw(r render.Renderer, alpha, interframeDelta float64, dst render.Rect) bool {
	frames := c.ring.ordered()
	if len(frames) == 0 {
		return false
	}
	padded := make([]*render.Texture, 0, 4)
	for i := len(frames); i < 4; i++ {
		padded = append(padded, frames[0])
	}
	padded = append(padded, frames...)

	w := CubicWeights(interframeDelta)
	r.UseShader(c.shader)
	for i, t := range padded {
		r.BindTexture(i, t)
	}
	r.Set("weights", float32(w[0]), float32(w[1]), float32(w[2]), float32(w[3]))
	c.quad(r, alpha, dst)
	return true
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
