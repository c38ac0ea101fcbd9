// Package ambient drives an LED bias-light strip from the composited frame.
package ambient

import "github.com/coreman2200/edream/internal/config"

type Edge int

const (
	EdgeTop Edge = iota
	EdgeRight
	EdgeBottom
	EdgeLeft
)

func (e Edge) String() string {
	switch e {
	case EdgeTop:
		return "top"
	case EdgeRight:
		return "right"
	case EdgeBottom:
		return "bottom"
	default:
		return "left"
	}
}

// Perimeter is a strip run clockwise around the screen from the top-left
// corner: top edge left to right, right edge downwards, bottom edge right to
// left, left edge upwards.
type Perimeter struct{ Top, Right, Bottom, Left int }

func PerimeterOf(e config.Edges) Perimeter {
	return Perimeter{Top: e.Top, Right: e.Right, Bottom: e.Bottom, Left: e.Left}
}

func (p Perimeter) Count() int { return p.Top + p.Right + p.Bottom + p.Left }

func (p Perimeter) edgeLen(e Edge) int {
	switch e {
	case EdgeTop:
		return p.Top
	case EdgeRight:
		return p.Right
	case EdgeBottom:
		return p.Bottom
	default:
		return p.Left
	}
}

// Span returns the strip indices [start, end) of edge e.
func (p Perimeter) Span(e Edge) (int, int) {
	start := 0
	for x := EdgeTop; x < e; x++ {
		start += p.edgeLen(x)
	}
	return start, start + p.edgeLen(e)
}

// Index maps the i-th LED along e (in strip direction) to its strip index,
// or -1 when out of range.
func (p Perimeter) Index(e Edge, i int) int {
	start, end := p.Span(e)
	if i < 0 || start+i >= end {
		return -1
	}
	return start + i
}

// Point is a normalized screen position; (0,0) is the top-left corner.
type Point struct{ U, V float64 }

// Positions returns each LED's screen position in strip order.
func (p Perimeter) Positions() []Point {
	out := make([]Point, 0, p.Count())
	at := func(i, n int) float64 { return (float64(i) + 0.5) / float64(n) }
	for i := 0; i < p.Top; i++ {
		out = append(out, Point{U: at(i, p.Top), V: 0})
	}
	for i := 0; i < p.Right; i++ {
		out = append(out, Point{U: 1, V: at(i, p.Right)})
	}
	for i := 0; i < p.Bottom; i++ {
		out = append(out, Point{U: 1 - at(i, p.Bottom), V: 1})
	}
	for i := 0; i < p.Left; i++ {
		out = append(out, Point{U: 0, V: 1 - at(i, p.Left)})
	}
	return out
}
