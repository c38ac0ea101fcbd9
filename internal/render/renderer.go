package render

import (
	"errors"
	"image"
)

var (
	ErrUnknownShader = errors.New("render: unknown shader")
	ErrBadTexture    = errors.New("render: invalid texture")
)

// MaxTextureUnits bounds BindTexture's unit argument.
const MaxTextureUnits = 8

// Shader is a compiled program. ID is backend specific.
type Shader struct {
	Name string
	ID   uint32
}

// Renderer is the narrow GPU surface the display strategies draw through.
// All calls happen on the render goroutine.
type Renderer interface {
	CompileShader(name, vertexSrc, fragmentSrc string) (*Shader, error)
	UseShader(s *Shader)
	NewTexture(w, h int) (*Texture, error)
	Upload(t *Texture, img *image.RGBA) error
	BindTexture(unit int, t *Texture)
	Set(uniform string, values ...float32)
	DrawQuad(dst Rect, tint Color, uv Rect)
	Clear(c Color)
	Present() error
	Size() (w, h int)
	Snapshot() *image.RGBA
}

// Viewport is the full target rectangle of r.
func Viewport(r Renderer) Rect {
	w, h := r.Size()
	return Rect{W: float64(w), H: float64(h)}
}
