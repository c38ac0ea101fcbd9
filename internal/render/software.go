package render

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Kernel is the software stand-in for a fragment shader. It returns the
// colour at texture coordinate (u,v) given the bound units and uniforms.
type Kernel func(ctx *KernelContext, u, v float64) Color

// KernelContext exposes bound textures and uniforms to a Kernel.
type KernelContext struct {
	units    *[MaxTextureUnits]*Texture
	uniforms map[string][]float32
}

// Sample reads unit at (u,v) with nearest filtering. Unbound units read black.
func (k *KernelContext) Sample(unit int, u, v float64) Color {
	if unit < 0 || unit >= MaxTextureUnits {
		return Color{}
	}
	t := k.units[unit]
	if t == nil || t.Img == nil {
		return Color{}
	}
	b := t.Img.Bounds()
	x := b.Min.X + clampInt(int(u*float64(b.Dx())), 0, b.Dx()-1)
	y := b.Min.Y + clampInt(int(v*float64(b.Dy())), 0, b.Dy()-1)
	i := t.Img.PixOffset(x, y)
	p := t.Img.Pix[i : i+4 : i+4]
	return Color{
		R: float32(p[0]) / 255,
		G: float32(p[1]) / 255,
		B: float32(p[2]) / 255,
		A: float32(p[3]) / 255,
	}
}

// Uniform returns the last values Set for name.
func (k *KernelContext) Uniform(name string) []float32 { return k.uniforms[name] }

// Software is a CPU renderer. Shaders resolve to registered kernels by name;
// the vertex and fragment sources are kept for diagnostics only.
type Software struct {
	w, h int
	fb   []Color
	out  *image.RGBA

	Grade Grade

	kernels  map[string]Kernel
	disabled map[string]bool
	shaders  map[uint32]string

	active   *Shader
	units    [MaxTextureUnits]*Texture
	uniforms map[string][]float32

	nextID   uint32
	live     int
	draws    int
	presents int
}

func NewSoftware(w, h int) *Software {
	s := &Software{
		w:        w,
		h:        h,
		fb:       make([]Color, w*h),
		out:      image.NewRGBA(image.Rect(0, 0, w, h)),
		kernels:  map[string]Kernel{},
		disabled: map[string]bool{},
		shaders:  map[uint32]string{},
		uniforms: map[string][]float32{},
	}
	registerBuiltinKernels(s)
	return s
}

// RegisterKernel makes name available to CompileShader.
func (s *Software) RegisterKernel(name string, k Kernel) {
	if k == nil {
		return
	}
	s.kernels[name] = k
}

// DisableShader makes CompileShader fail for name, mimicking a driver that
// rejects the program.
func (s *Software) DisableShader(name string) { s.disabled[name] = true }

// Kernels lists registered kernel names.
func (s *Software) Kernels() []string {
	out := make([]string, 0, len(s.kernels))
	for k := range s.kernels {
		out = append(out, k)
	}
	return out
}

func (s *Software) CompileShader(name, vertexSrc, fragmentSrc string) (*Shader, error) {
	if s.disabled[name] {
		return nil, fmt.Errorf("compile %q: %w", name, ErrUnknownShader)
	}
	if _, ok := s.kernels[name]; !ok {
		return nil, fmt.Errorf("compile %q: %w", name, ErrUnknownShader)
	}
	s.nextID++
	s.shaders[s.nextID] = name
	return &Shader{Name: name, ID: s.nextID}, nil
}

func (s *Software) UseShader(sh *Shader) { s.active = sh }

func (s *Software) NewTexture(w, h int) (*Texture, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("new texture %dx%d: %w", w, h, ErrBadTexture)
	}
	s.nextID++
	s.live++
	t := NewTexture(s.nextID, w, h, func(*Texture) { s.live-- })
	t.Img = image.NewRGBA(image.Rect(0, 0, w, h))
	return t, nil
}

// Upload copies img into t, scaling when the sizes differ.
func (s *Software) Upload(t *Texture, img *image.RGBA) error {
	if t == nil || t.Img == nil {
		return ErrBadTexture
	}
	if img == nil {
		return fmt.Errorf("upload: nil image")
	}
	if img.Bounds().Size() == t.Img.Bounds().Size() && img.Stride == t.Img.Stride {
		copy(t.Img.Pix, img.Pix)
		return nil
	}
	draw.ApproxBiLinear.Scale(t.Img, t.Img.Bounds(), img, img.Bounds(), draw.Src, nil)
	return nil
}

func (s *Software) BindTexture(unit int, t *Texture) {
	if unit < 0 || unit >= MaxTextureUnits {
		return
	}
	s.units[unit] = t
}

func (s *Software) Set(uniform string, values ...float32) {
	s.uniforms[uniform] = append(s.uniforms[uniform][:0], values...)
}

func (s *Software) DrawQuad(dst Rect, tint Color, uv Rect) {
	if s.active == nil || dst.Empty() {
		return
	}
	k, ok := s.kernels[s.active.Name]
	if !ok {
		return
	}
	s.draws++
	ctx := &KernelContext{units: &s.units, uniforms: s.uniforms}
	a := clamp01(tint.A)
	x0 := clampInt(int(math.Floor(dst.X)), 0, s.w)
	y0 := clampInt(int(math.Floor(dst.Y)), 0, s.h)
	x1 := clampInt(int(math.Ceil(dst.X+dst.W)), 0, s.w)
	y1 := clampInt(int(math.Ceil(dst.Y+dst.H)), 0, s.h)
	for py := y0; py < y1; py++ {
		v := uv.Y + (float64(py)+0.5-dst.Y)/dst.H*uv.H
		row := s.fb[py*s.w : (py+1)*s.w]
		for px := x0; px < x1; px++ {
			u := uv.X + (float64(px)+0.5-dst.X)/dst.W*uv.W
			c := k(ctx, u, v)
			c.R, c.G, c.B = c.R*tint.R, c.G*tint.G, c.B*tint.B
			row[px] = Lerp(row[px], c, a)
		}
	}
}

func (s *Software) Clear(c Color) {
	for i := range s.fb {
		s.fb[i] = c
	}
}

// Present grades the framebuffer into the output image.
func (s *Software) Present() error {
	s.presents++
	for i, c := range s.fb {
		c = s.Grade.Apply(c)
		o := i * 4
		s.out.Pix[o+0] = toByte(c.R)
		s.out.Pix[o+1] = toByte(c.G)
		s.out.Pix[o+2] = toByte(c.B)
		s.out.Pix[o+3] = 0xff
	}
	return nil
}

func (s *Software) Size() (int, int) { return s.w, s.h }

// Snapshot copies the last presented frame.
func (s *Software) Snapshot() *image.RGBA {
	cp := image.NewRGBA(s.out.Rect)
	copy(cp.Pix, s.out.Pix)
	return cp
}

// At reads the ungraded framebuffer.
func (s *Software) At(x, y int) Color {
	if x < 0 || y < 0 || x >= s.w || y >= s.h {
		return Color{}
	}
	return s.fb[y*s.w+x]
}

// Bound returns the texture on unit, for inspection.
func (s *Software) Bound(unit int) *Texture {
	if unit < 0 || unit >= MaxTextureUnits {
		return nil
	}
	return s.units[unit]
}

// Uniform returns the last values Set for name.
func (s *Software) Uniform(name string) []float32 { return s.uniforms[name] }

func (s *Software) LiveTextures() int { return s.live }
func (s *Software) Draws() int        { return s.draws }
func (s *Software) Presents() int     { return s.presents }

func toByte(x float32) uint8 {
	return uint8(clamp01(x)*255 + 0.5)
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
