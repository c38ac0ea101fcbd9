package display

import "github.com/coreman2200/edream/internal/render"

// Slot is one ring position. The caller fills Tex after RequestTargetTexture.
type Slot struct {
	Tex *render.Texture
}

// ring is a fixed-capacity circular buffer of texture slots. cursor points at
// the newest slot; advancing recycles the oldest.
type ring struct {
	slots  []Slot
	cursor int
}

func newRing(n int) ring {
	return ring{slots: make([]Slot, n), cursor: n - 1}
}

func (r *ring) capacity() int { return len(r.slots) }

// advance steps the cursor to the oldest slot and hands it out as the newest.
// A handle still referenced elsewhere is dropped so the caller allocates a
// fresh texture instead of overwriting a frame another clip is showing.
func (r *ring) advance() *Slot {
	r.cursor = (r.cursor + 1) % len(r.slots)
	s := &r.slots[r.cursor]
	if s.Tex != nil && s.Tex.Shared() {
		s.Tex.Release()
		s.Tex = nil
	}
	return s
}

// ordered returns the filled handles from oldest to newest.
func (r *ring) ordered() []*render.Texture {
	n := len(r.slots)
	out := make([]*render.Texture, 0, n)
	for i := 1; i <= n; i++ {
		if t := r.slots[(r.cursor+i)%n].Tex; t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (r *ring) newest() *render.Texture {
	return r.slots[r.cursor].Tex
}

// load replaces the contents with frames (oldest to newest), retaining each.
// Only the newest len(slots) frames are kept.
func (r *ring) load(frames []*render.Texture) {
	r.release()
	if len(frames) > len(r.slots) {
		frames = frames[len(frames)-len(r.slots):]
	}
	for i, t := range frames {
		r.slots[i].Tex = t.Retain()
	}
	if len(frames) > 0 {
		r.cursor = len(frames) - 1
	} else {
		r.cursor = len(r.slots) - 1
	}
}

func (r *ring) release() {
	for i := range r.slots {
		if r.slots[i].Tex != nil {
			r.slots[i].Tex.Release()
			r.slots[i].Tex = nil
		}
	}
	r.cursor = len(r.slots) - 1
}
