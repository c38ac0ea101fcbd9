// Package decoder produces decoded video frames on a background goroutine.
// Consumers poll with PopVideoFrame, which never blocks.
package decoder

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coreman2200/edream/internal/render"
)

var (
	ErrEndOfStream = errors.New("decoder: end of stream")
	ErrNotStarted  = errors.New("decoder: not started")
	ErrStopped     = errors.New("decoder: stopped")
)

// FrameMetadata is attached to every decoded frame.
type FrameMetadata struct {
	FrameIdx    int `json:"frame_idx"`
	MaxFrameIdx int `json:"max_frame_idx"` // <= 0 when the length is unknown
}

// Frame is one decoded picture. Pix holds tightly packed RGBA rows unless
// the decoder produced a GPU texture directly, in which case Texture is set.
type Frame struct {
	Width   int
	Height  int
	Pix     []byte
	Texture *render.Texture
	Meta    FrameMetadata
}

// Image wraps Pix without copying.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

type VideoInfo struct {
	Path     string  `json:"path"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Frames   int     `json:"frames"`
	Duration float64 `json:"duration_s"`
	Codec    string  `json:"codec,omitempty"`
}

// Decoder is the contract a clip needs from its frame source.
type Decoder interface {
	Start(path string, seekFrame int) error
	Stop()
	// PopVideoFrame returns (nil, nil) when no frame is ready yet and
	// (nil, err) once the stream is exhausted or failed.
	PopVideoFrame() (*Frame, error)
	SkipTime(seconds float64)
	VideoInfo() VideoInfo
}

type Options struct {
	// BufferFrames bounds the decoded-frame queue.
	BufferFrames int
	Logger       zerolog.Logger
}

// Factory builds a fresh decoder per clip.
type Factory func() Decoder

// NewFactory maps a backend name to a Factory.
func NewFactory(backend string, opts Options) (Factory, error) {
	switch strings.ToLower(backend) {
	case "", "vidio":
		return func() Decoder { return NewVidio(opts) }, nil
	case "synthetic", "sim":
		return func() Decoder { return NewSynthetic(opts) }, nil
	default:
		return nil, fmt.Errorf("unknown decoder backend %q", backend)
	}
}

// ForPath picks the synthetic decoder for synthetic:// paths and base otherwise.
func ForPath(base Factory, opts Options) func(path string) Decoder {
	return func(path string) Decoder {
		if IsSynthetic(path) {
			return NewSynthetic(opts)
		}
		return base()
	}
}
