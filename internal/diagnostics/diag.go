package diagnostics

import (
	"sync"
	"time"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes emitted by the player.
const (
	DisplayFallback = "DISPLAY.FALLBACK"
	DecoderOpen     = "DECODER.OPEN"
	DecoderFailed   = "DECODER.FAILED"
	ClipSkipped     = "CLIP.SKIPPED"
	PlaylistEmpty   = "PLAYLIST.EMPTY"
	AmbientFallback = "AMBIENT.FALLBACK"
	AmbientTest     = "AMBIENT.TEST"
	AmbientWrite    = "AMBIENT.WRITE"
)

type Diagnostic struct {
	Time           time.Time      `json:"time"`
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// Sink receives diagnostics as they happen.
type Sink func(Diagnostic)

// Hub keeps the most recent diagnostics and fans new ones out to listeners.
type Hub struct {
	mu        sync.Mutex
	recent    []Diagnostic
	limit     int
	listeners map[int]Sink
	nextID    int
}

func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = 64
	}
	return &Hub{limit: limit, listeners: map[int]Sink{}}
}

// Push stamps d if needed, records it and notifies listeners.
func (h *Hub) Push(d Diagnostic) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	h.mu.Lock()
	h.recent = append(h.recent, d)
	if len(h.recent) > h.limit {
		h.recent = h.recent[len(h.recent)-h.limit:]
	}
	ls := make([]Sink, 0, len(h.listeners))
	for _, l := range h.listeners {
		ls = append(ls, l)
	}
	h.mu.Unlock()
	for _, l := range ls {
		l(d)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (h *Hub) Subscribe(fn Sink) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Recent returns a copy of the buffered diagnostics, oldest first.
func (h *Hub) Recent() []Diagnostic {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Diagnostic(nil), h.recent...)
}
