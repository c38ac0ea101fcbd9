//go:build gl

// Package glrender implements render.Renderer on an OpenGL 3.3 core context.
// Every call must come from the goroutine that owns the context.
package glrender

import (
	"fmt"
	"image"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/coreman2200/edream/internal/render"
)

type program struct {
	id       uint32
	name     string
	uniforms map[string]int32
}

// Renderer draws into the default framebuffer of the current context.
// Present calls Swap, which is usually the window's SwapBuffers.
type Renderer struct {
	w, h    int
	Swap    func()
	// Capture reads each frame back before the swap so Snapshot has it.
	Capture bool
	last    *image.RGBA

	vao, vbo, ebo uint32
	programs      map[uint32]*program
	active        *program
}

// New initialises GL on the current context. w and h are the framebuffer size.
func New(w, h int, swap func()) (*Renderer, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("glrender: init: %w", err)
	}
	r := &Renderer{w: w, h: h, Swap: swap, programs: map[uint32]*program{}}
	gl.Disable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	r.createQuad()
	return r, nil
}

// createQuad builds a unit quad. UVs are flipped vertically so texture rows
// keep the top-left origin of image.RGBA.
func (r *Renderer) createQuad() {
	vertices := []float32{
		// x, y, u, v
		0, 0, 0, 1, // bottom left
		1, 0, 1, 1, // bottom right
		1, 1, 1, 0, // top right
		0, 1, 0, 0, // top left
	}
	indices := []uint32{0, 1, 2, 0, 2, 3}

	gl.GenVertexArrays(1, &r.vao)
	gl.GenBuffers(1, &r.vbo)
	gl.GenBuffers(1, &r.ebo)
	gl.BindVertexArray(r.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)

	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(2*4))
	gl.EnableVertexAttribArray(1)
	gl.BindVertexArray(0)
}

// Resize updates the viewport after a framebuffer size change.
func (r *Renderer) Resize(w, h int) {
	r.w, r.h = w, h
	gl.Viewport(0, 0, int32(w), int32(h))
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logBytes := make([]byte, logLength+1)
		gl.GetShaderInfoLog(shader, logLength, nil, &logBytes[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile: %s", strings.TrimRight(string(logBytes), "\x00"))
	}
	return shader, nil
}

func (r *Renderer) CompileShader(name, vertexSrc, fragmentSrc string) (*render.Shader, error) {
	vs, err := compileShader(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return nil, fmt.Errorf("shader %q vertex: %w", name, err)
	}
	fs, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vs)
		return nil, fmt.Errorf("shader %q fragment: %w", name, err)
	}

	id := gl.CreateProgram()
	gl.AttachShader(id, vs)
	gl.AttachShader(id, fs)
	gl.LinkProgram(id)
	gl.DeleteShader(vs)
	gl.DeleteShader(fs)

	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &logLength)
		logBytes := make([]byte, logLength+1)
		gl.GetProgramInfoLog(id, logLength, nil, &logBytes[0])
		gl.DeleteProgram(id)
		return nil, fmt.Errorf("shader %q link: %s", name, strings.TrimRight(string(logBytes), "\x00"))
	}

	p := &program{id: id, name: name, uniforms: map[string]int32{}}
	r.programs[id] = p
	// Sampler tex<i> reads texture unit i.
	gl.UseProgram(id)
	for i := 0; i < render.MaxTextureUnits; i++ {
		if loc := r.location(p, fmt.Sprintf("tex%d", i)); loc >= 0 {
			gl.Uniform1i(loc, int32(i))
		}
	}
	if r.active != nil {
		gl.UseProgram(r.active.id)
	}
	return &render.Shader{Name: name, ID: id}, nil
}

func (r *Renderer) location(p *program, name string) int32 {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	p.uniforms[name] = loc
	return loc
}

func (r *Renderer) UseShader(s *render.Shader) {
	if s == nil {
		r.active = nil
		gl.UseProgram(0)
		return
	}
	p, ok := r.programs[s.ID]
	if !ok {
		return
	}
	r.active = p
	gl.UseProgram(p.id)
}

func (r *Renderer) NewTexture(w, h int) (*render.Texture, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("new texture %dx%d: %w", w, h, render.ErrBadTexture)
	}
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return render.NewTexture(id, w, h, func(t *render.Texture) {
		gl.DeleteTextures(1, &t.ID)
	}), nil
}

func (r *Renderer) Upload(t *render.Texture, img *image.RGBA) error {
	if t == nil || img == nil {
		return render.ErrBadTexture
	}
	b := img.Bounds()
	if b.Dx() != t.Width || b.Dy() != t.Height {
		return fmt.Errorf("upload %dx%d into %dx%d: %w", b.Dx(), b.Dy(), t.Width, t.Height, render.ErrBadTexture)
	}
	gl.BindTexture(gl.TEXTURE_2D, t.ID)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(t.Width), int32(t.Height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	return nil
}

func (r *Renderer) BindTexture(unit int, t *render.Texture) {
	if unit < 0 || unit >= render.MaxTextureUnits {
		return
	}
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	if t == nil {
		gl.BindTexture(gl.TEXTURE_2D, 0)
		return
	}
	gl.BindTexture(gl.TEXTURE_2D, t.ID)
}

// Set uploads a float uniform of 1 to 4 components on the active program.
func (r *Renderer) Set(uniform string, values ...float32) {
	if r.active == nil {
		return
	}
	loc := r.location(r.active, uniform)
	if loc < 0 {
		return
	}
	switch len(values) {
	case 1:
		gl.Uniform1f(loc, values[0])
	case 2:
		gl.Uniform2f(loc, values[0], values[1])
	case 3:
		gl.Uniform3f(loc, values[0], values[1], values[2])
	case 4:
		gl.Uniform4f(loc, values[0], values[1], values[2], values[3])
	}
}

// DrawQuad maps dst from top-left pixel space to NDC and draws the unit quad.
func (r *Renderer) DrawQuad(dst render.Rect, tint render.Color, uv render.Rect) {
	if r.active == nil || dst.Empty() || r.w <= 0 || r.h <= 0 {
		return
	}
	fw, fh := float32(r.w), float32(r.h)
	x := 2*float32(dst.X)/fw - 1
	y := 1 - 2*float32(dst.Y+dst.H)/fh
	r.Set("rect", x, y, 2*float32(dst.W)/fw, 2*float32(dst.H)/fh)
	r.Set("uvRect", float32(uv.X), float32(uv.Y), float32(uv.W), float32(uv.H))
	r.Set("tint", tint.R, tint.G, tint.B, tint.A)

	gl.BindVertexArray(r.vao)
	gl.DrawElements(gl.TRIANGLES, 6, gl.UNSIGNED_INT, gl.PtrOffset(0))
	gl.BindVertexArray(0)
}

func (r *Renderer) Clear(c render.Color) {
	gl.Viewport(0, 0, int32(r.w), int32(r.h))
	gl.ClearColor(c.R, c.G, c.B, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func (r *Renderer) Present() error {
	if r.Capture {
		r.last = r.readBack()
	}
	if r.Swap != nil {
		r.Swap()
	}
	return nil
}

func (r *Renderer) Size() (int, int) { return r.w, r.h }

// Snapshot copies the last captured frame, or returns black when Capture is off.
func (r *Renderer) Snapshot() *image.RGBA {
	if r.last == nil {
		return image.NewRGBA(image.Rect(0, 0, r.w, r.h))
	}
	cp := image.NewRGBA(r.last.Rect)
	copy(cp.Pix, r.last.Pix)
	return cp
}

func (r *Renderer) readBack() *image.RGBA {
	img := r.last
	if img == nil || img.Rect.Dx() != r.w || img.Rect.Dy() != r.h {
		img = image.NewRGBA(image.Rect(0, 0, r.w, r.h))
	}
	if r.w <= 0 || r.h <= 0 {
		return img
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(r.w), int32(r.h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	// GL rows run bottom-up.
	row := make([]byte, img.Stride)
	for top, bottom := 0, r.h-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := img.Pix[top*img.Stride : (top+1)*img.Stride]
		b := img.Pix[bottom*img.Stride : (bottom+1)*img.Stride]
		copy(row, a)
		copy(a, b)
		copy(b, row)
	}
	return img
}

// Close deletes the quad buffers and every compiled program.
func (r *Renderer) Close() {
	for id := range r.programs {
		gl.DeleteProgram(id)
	}
	r.programs = map[uint32]*program{}
	gl.DeleteBuffers(1, &r.ebo)
	gl.DeleteBuffers(1, &r.vbo)
	gl.DeleteVertexArrays(1, &r.vao)
}

var _ render.Renderer = (*Renderer)(nil)
