package render

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func near(a, b, eps float32) bool { return float32(math.Abs(float64(a-b))) <= eps }

func TestMixAlpha(t *testing.T) {
	n := 10
	a := make([]Color, n)
	b := make([]Color, n)
	dst := make([]Color, n)
	for i := 0; i < n; i++ {
		a[i] = Color{R: 1} // red
		b[i] = Color{B: 1} // blue
	}
	Mix(dst, a, b, 0.5)
	if dst[0].R < 0.49 || dst[0].R > 0.51 || dst[0].B < 0.49 || dst[0].B > 0.51 {
		t.Fatalf("expected ~purple at alpha=0.5, got %#v", dst[0])
	}
	Mix(dst, a, b, 1.5)
	if dst[0] != b[0] {
		t.Fatalf("expected b at alpha>=1, got %#v", dst[0])
	}
}

func TestFitRectLetterbox(t *testing.T) {
	got := FitRect(16, 9, Rect{W: 100, H: 100})
	if !near(float32(got.W), 100, 1e-6) || !near(float32(got.H), 56.25, 1e-6) || !near(float32(got.Y), 21.875, 1e-6) {
		t.Fatalf("unexpected letterbox %#v", got)
	}
	got = FitRect(9, 16, Rect{W: 160, H: 90})
	if !near(float32(got.H), 90, 1e-6) || !near(float32(got.X), 54.6875, 1e-4) {
		t.Fatalf("unexpected pillarbox %#v", got)
	}
}

func TestCompileUnknownAndDisabledShader(t *testing.T) {
	s := NewSoftware(4, 4)
	if _, err := s.CompileShader("bogus", "", ""); !errors.Is(err, ErrUnknownShader) {
		t.Fatalf("expected ErrUnknownShader, got %v", err)
	}
	if _, err := s.CompileShader(KernelCubic, "", ""); err != nil {
		t.Fatalf("cubic: %v", err)
	}
	s.DisableShader(KernelCubic)
	if _, err := s.CompileShader(KernelCubic, "", ""); !errors.Is(err, ErrUnknownShader) {
		t.Fatalf("expected disabled cubic to fail, got %v", err)
	}
}

func TestTextureRefcountFreesOnce(t *testing.T) {
	s := NewSoftware(4, 4)
	tex, err := s.NewTexture(2, 2)
	if err != nil {
		t.Fatalf("new texture: %v", err)
	}
	tex.Retain()
	if !tex.Shared() || s.LiveTextures() != 1 {
		t.Fatalf("expected shared live texture, refs=%d live=%d", tex.Refs(), s.LiveTextures())
	}
	if tex.Release() {
		t.Fatalf("first release must not free")
	}
	if !tex.Release() {
		t.Fatalf("second release must free")
	}
	if s.LiveTextures() != 0 {
		t.Fatalf("expected no live textures, got %d", s.LiveTextures())
	}
}

func TestDrawQuadBlendsByTintAlpha(t *testing.T) {
	s := NewSoftware(2, 2)
	sh, err := s.CompileShader(KernelDiscrete, "", "")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	tex, _ := s.NewTexture(2, 2)
	if err := s.Upload(tex, solidImage(2, 2, color.RGBA{R: 255, A: 255})); err != nil {
		t.Fatalf("upload: %v", err)
	}
	s.Clear(Color{B: 1, A: 1})
	s.UseShader(sh)
	s.BindTexture(0, tex)
	s.DrawQuad(Rect{W: 2, H: 2}, Color{R: 1, G: 1, B: 1, A: 0.25}, FullUV)

	c := s.At(1, 1)
	if !near(c.R, 0.25, 1e-3) || !near(c.B, 0.75, 1e-3) {
		t.Fatalf("expected 25%% red over blue, got %#v", c)
	}
	if err := s.Present(); err != nil {
		t.Fatalf("present: %v", err)
	}
	snap := s.Snapshot()
	if snap.Pix[0] != 64 || snap.Pix[2] != 191 {
		t.Fatalf("unexpected snapshot pixel %v", snap.Pix[:4])
	}
}

func TestUploadScalesMismatchedImage(t *testing.T) {
	s := NewSoftware(1, 1)
	tex, _ := s.NewTexture(4, 4)
	if err := s.Upload(tex, solidImage(8, 8, color.RGBA{G: 200, A: 255})); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if tex.Img.Pix[1] != 200 {
		t.Fatalf("expected scaled green, got %v", tex.Img.Pix[:4])
	}
}

func TestGradeGammaAndExposure(t *testing.T) {
	g := Grade{Gamma: 2.0}
	c := g.Apply(Color{R: 0.25, G: 0.25, B: 0.25})
	if !near(c.R, 0.5, 1e-5) {
		t.Fatalf("expected sqrt(0.25)=0.5, got %v", c.R)
	}
	g = Grade{ExposureEV: 1}
	c = g.Apply(Color{R: 0.25, G: 0.75})
	if !near(c.R, 0.5, 1e-5) || c.G != 1 {
		t.Fatalf("expected exposure doubling with clamp, got %#v", c)
	}
	if !(Grade{}).Identity() || (Grade{Filmic: true}).Identity() {
		t.Fatalf("identity detection wrong")
	}
}
