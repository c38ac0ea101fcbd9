package ambient

import (
	"errors"
	"fmt"
)

var ErrUnknownPattern = errors.New("ambient: unknown test pattern")

type Kind string

const (
	None       Kind = ""
	IndexSweep Kind = "index_sweep"
	RGBTest    Kind = "rgb_channels"
	EdgeSweep  Kind = "edges"
)

// Kinds lists the test patterns.
func Kinds() []Kind { return []Kind{IndexSweep, RGBTest, EdgeSweep} }

// Runner steps through a wiring test pattern one frame per Step.
type Runner struct {
	kind Kind
	step int
}

func NewRunner(kind Kind) (*Runner, error) {
	switch kind {
	case IndexSweep, RGBTest, EdgeSweep:
		return &Runner{kind: kind}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, kind)
	}
}

func (r *Runner) Kind() Kind { return r.kind }

// Step fills rgb with the next frame; it returns false when complete.
func (r *Runner) Step(p Perimeter, rgb []byte) bool {
	n := p.Count()
	clear(rgb)
	switch r.kind {
	case IndexSweep:
		idx := r.step
		if idx >= n {
			return false
		}
		rgb[idx*3+0], rgb[idx*3+1], rgb[idx*3+2] = 255, 255, 255
	case RGBTest:
		if r.step >= 3 {
			return false
		}
		for i := 0; i < n; i++ {
			rgb[i*3+r.step] = 255
		}
	case EdgeSweep:
		if r.step > int(EdgeLeft) {
			return false
		}
		start, end := p.Span(Edge(r.step))
		for i := start; i < end; i++ {
			rgb[i*3+1], rgb[i*3+2] = 255, 255 // cyan
		}
	default:
		return false
	}
	r.step++
	return true
}
