package decoder

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// SyntheticScheme prefixes generated clip paths, e.g.
//
//	synthetic://grad?w=64&h=36&fps=25&frames=250&speed=0.2
//	synthetic://solid?color=ff0000&pulse=1
//	synthetic://index?frames=100
//
// "index" writes the frame number into the red channel, which tests use to
// tell frames apart.
const SyntheticScheme = "synthetic"

func IsSynthetic(path string) bool {
	return strings.HasPrefix(path, SyntheticScheme+"://")
}

// Synthetic decodes generated test patterns.
type Synthetic struct {
	*stream
}

func NewSynthetic(opts Options) *Synthetic {
	return &Synthetic{stream: newStream(openSynthetic, opts, "synthetic")}
}

type pattern int

const (
	patternSolid pattern = iota
	patternGrad
	patternIndex
)

type syntheticSource struct {
	info    VideoInfo
	pattern pattern
	color   [3]float64
	pulseHz float64
	speed   float64
	failAt  int
	idx     int
}

func openSynthetic(path string) (source, error) {
	u, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("synthetic path %q: %w", path, err)
	}
	if u.Scheme != SyntheticScheme {
		return nil, fmt.Errorf("synthetic path %q: scheme must be %s", path, SyntheticScheme)
	}
	q := u.Query()
	s := &syntheticSource{
		info: VideoInfo{
			Path:   path,
			Width:  queryInt(q, "w", 64),
			Height: queryInt(q, "h", 36),
			FPS:    queryFloat(q, "fps", 25),
			Frames: queryInt(q, "frames", 250),
			Codec:  "synthetic/" + u.Host,
		},
		color:   [3]float64{1, 1, 1},
		pulseHz: queryFloat(q, "pulse", 0),
		speed:   queryFloat(q, "speed", 0.1),
		failAt:  queryInt(q, "fail_at", -1),
	}
	if s.info.Width <= 0 || s.info.Height <= 0 || s.info.FPS <= 0 {
		return nil, fmt.Errorf("synthetic path %q: invalid geometry", path)
	}
	if s.info.Frames > 0 {
		s.info.Duration = float64(s.info.Frames) / s.info.FPS
	}
	switch u.Host {
	case "solid":
		s.pattern = patternSolid
		if c := q.Get("color"); c != "" {
			rgb, err := parseHexColor(c)
			if err != nil {
				return nil, err
			}
			s.color = rgb
		}
	case "grad", "":
		s.pattern = patternGrad
	case "index":
		s.pattern = patternIndex
	default:
		return nil, fmt.Errorf("synthetic path %q: unknown pattern %q", path, u.Host)
	}
	return s, nil
}

func (s *syntheticSource) Info() VideoInfo { return s.info }

func (s *syntheticSource) Next(dst []byte) (bool, error) {
	if s.info.Frames > 0 && s.idx >= s.info.Frames {
		return false, nil
	}
	if s.failAt >= 0 && s.idx == s.failAt {
		return false, fmt.Errorf("synthetic failure at frame %d", s.idx)
	}
	t := float64(s.idx) / s.info.FPS
	switch s.pattern {
	case patternSolid:
		s.solid(dst, t)
	case patternGrad:
		s.grad(dst, t)
	case patternIndex:
		for i := 0; i+3 < len(dst); i += 4 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = byte(s.idx), 0, 0, 0xff
		}
	}
	s.idx++
	return true, nil
}

func (s *syntheticSource) Close() error { return nil }

// solid fills with one colour, optionally pulsing at pulseHz.
func (s *syntheticSource) solid(dst []byte, t float64) {
	scale := 1.0
	if s.pulseHz > 0 {
		scale = 0.5 + 0.5*math.Sin(2*math.Pi*s.pulseHz*t)
	}
	r, g, b := toByte(s.color[0]*scale), toByte(s.color[1]*scale), toByte(s.color[2]*scale)
	for i := 0; i+3 < len(dst); i += 4 {
		dst[i], dst[i+1], dst[i+2], dst[i+3] = r, g, b, 0xff
	}
}

// grad renders a horizontal hue sweep that drifts over time.
func (s *syntheticSource) grad(dst []byte, t float64) {
	w := s.info.Width
	for x := 0; x < w; x++ {
		v := float64(x) / float64(max(1, w-1))
		phase := v*2*math.Pi + t*2*math.Pi*s.speed
		r := toByte(0.5 + 0.5*math.Sin(phase))
		g := toByte(0.5 + 0.5*math.Sin(phase+2*math.Pi/3))
		b := toByte(0.5 + 0.5*math.Sin(phase+4*math.Pi/3))
		for y := 0; y < s.info.Height; y++ {
			i := (y*w + x) * 4
			dst[i], dst[i+1], dst[i+2], dst[i+3] = r, g, b, 0xff
		}
	}
}

func toByte(x float64) byte {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 0xff
	}
	return byte(x*255 + 0.5)
}

func parseHexColor(s string) ([3]float64, error) {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return [3]float64{}, fmt.Errorf("bad colour %q", s)
	}
	return [3]float64{
		float64(v>>16&0xff) / 255,
		float64(v>>8&0xff) / 255,
		float64(v&0xff) / 255,
	}, nil
}

func queryInt(q url.Values, key string, def int) int {
	if v, err := strconv.Atoi(q.Get(key)); err == nil {
		return v
	}
	return def
}

func queryFloat(q url.Values, key string, def float64) float64 {
	if v, err := strconv.ParseFloat(q.Get(key), 64); err == nil {
		return v
	}
	return def
}
