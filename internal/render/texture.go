package render

import (
	"image"
	"sync/atomic"
)

// Texture is a reference-counted handle to a renderer-owned image.
// A strategy that inherits frames from another holds its own reference,
// so the backing object lives until the last holder releases it.
type Texture struct {
	ID     uint32
	Width  int
	Height int

	// Img is the CPU backing store for the software renderer. GL textures leave it nil.
	Img *image.RGBA

	refs atomic.Int32
	free func(*Texture)
}

// NewTexture returns a handle with one reference. free runs when the last
// reference is released.
func NewTexture(id uint32, w, h int, free func(*Texture)) *Texture {
	t := &Texture{ID: id, Width: w, Height: h, free: free}
	t.refs.Store(1)
	return t
}

func (t *Texture) Retain() *Texture {
	t.refs.Add(1)
	return t
}

// Release drops one reference and reports whether the texture was freed.
func (t *Texture) Release() bool {
	if t == nil {
		return false
	}
	n := t.refs.Add(-1)
	if n > 0 {
		return false
	}
	if n == 0 && t.free != nil {
		t.free(t)
	}
	return n == 0
}

func (t *Texture) Refs() int { return int(t.refs.Load()) }

// Shared reports whether another holder still references t.
func (t *Texture) Shared() bool { return t.refs.Load() > 1 }
