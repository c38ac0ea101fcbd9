package ambient

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/coreman2200/edream/internal/config"
	diag "github.com/coreman2200/edream/internal/diagnostics"
	"github.com/coreman2200/edream/internal/metrics"
	"github.com/coreman2200/edream/internal/render"
)

// estCurrent estimates current in mA using the same model as the limiter.
func estCurrent(buf []render.Color, chanmA float32) float64 {
	total := 0.0
	for i := range buf {
		total += float64((buf[i].R + buf[i].G + buf[i].B) * chanmA)
	}
	return total
}

func TestLimiterBudgetClamp(t *testing.T) {
	// 10 LEDs all white: 60mA each, 600mA total
	buf := make([]render.Color, 10)
	for i := range buf {
		buf[i] = render.Color{R: 1, G: 1, B: 1}
	}
	l := Limiter{WhiteCap: 3, ChanMA: 20, BudgetMA: 300, Knee: 0.9}
	l.Apply(buf)
	if cur := estCurrent(buf, 20); cur > 300.1 {
		t.Fatalf("expected <= 300mA after limit, got %.2f mA", cur)
	}
}

func TestLimiterWhiteCap(t *testing.T) {
	buf := []render.Color{{R: 1, G: 1, B: 1}}
	LimiterOf(1.5, 0).Apply(buf)
	if sum := buf[0].R + buf[0].G + buf[0].B; sum > 1.5001 {
		t.Fatalf("expected sum <= 1.5, got %f", sum)
	}
}

func TestLimiterKnee(t *testing.T) {
	l := Limiter{ChanMA: 20, BudgetMA: 100, Knee: 0.9}

	under := []render.Color{{R: 1, G: 1, B: 1}} // 60mA, below the knee
	l.Apply(under)
	assert.Equal(t, render.Color{R: 1, G: 1, B: 1}, under[0])

	soft := []render.Color{{R: 1, G: 1, B: 1}, {R: 1, G: 0.75, B: 0}} // 60+35 = 95mA
	l.Apply(soft)
	got := l.EstimateMA(soft)
	assert.Less(t, got, 95.0)
	assert.Greater(t, got, 90.0)
}

func TestPerimeterOrder(t *testing.T) {
	p := Perimeter{Top: 4, Right: 2, Bottom: 4, Left: 2}
	assert.Equal(t, 12, p.Count())

	s, e := p.Span(EdgeBottom)
	assert.Equal(t, 6, s)
	assert.Equal(t, 10, e)
	assert.Equal(t, 7, p.Index(EdgeBottom, 1))
	assert.Equal(t, -1, p.Index(EdgeLeft, 2))

	pos := p.Positions()
	require.Len(t, pos, 12)
	assert.Equal(t, Point{U: 0.125, V: 0}, pos[0])
	assert.Equal(t, Point{U: 1, V: 0.25}, pos[4])
	assert.Equal(t, Point{U: 0.875, V: 1}, pos[6])
	assert.Equal(t, Point{U: 0, V: 0.75}, pos[10])
}

func splitFrame(w, h int, left, right color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, image.Rect(0, 0, w/2, h), image.NewUniform(left), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(w/2, 0, w, h), image.NewUniform(right), image.Point{}, draw.Src)
	return img
}

func TestSamplerReadsEdges(t *testing.T) {
	p := Perimeter{Top: 4, Right: 2, Bottom: 4, Left: 2}
	s := NewSampler(p, 1)
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	out := s.Sample(splitFrame(64, 36, red, green))
	require.Len(t, out, p.Count())

	isRed := func(c render.Color) bool { return c.R > 0.95 && c.G < 0.05 }
	isGreen := func(c render.Color) bool { return c.G > 0.95 && c.R < 0.05 }
	assert.True(t, isRed(out[p.Index(EdgeTop, 0)]), "%v", out[0])
	assert.True(t, isGreen(out[p.Index(EdgeTop, 3)]))
	assert.True(t, isGreen(out[p.Index(EdgeRight, 0)]))
	assert.True(t, isGreen(out[p.Index(EdgeBottom, 0)]))
	assert.True(t, isRed(out[p.Index(EdgeBottom, 3)]))
	assert.True(t, isRed(out[p.Index(EdgeLeft, 1)]))
}

func TestSamplerSmoothing(t *testing.T) {
	p := Perimeter{Top: 2, Right: 1, Bottom: 2, Left: 1}
	s := NewSampler(p, 0.5)
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	s.Sample(splitFrame(16, 16, red, red))
	out := s.Sample(splitFrame(16, 16, blue, blue))
	assert.InDelta(t, 0.5, out[0].R, 0.01)
	assert.InDelta(t, 0.5, out[0].B, 0.01)

	s.Reset()
	out = s.Sample(splitFrame(16, 16, blue, blue))
	assert.InDelta(t, 1.0, out[0].B, 0.01)
}

func TestPatterns(t *testing.T) {
	p := Perimeter{Top: 2, Right: 1, Bottom: 2, Left: 1}
	rgb := make([]byte, p.Count()*3)

	r, err := NewRunner(IndexSweep)
	require.NoError(t, err)
	for i := 0; i < p.Count(); i++ {
		require.True(t, r.Step(p, rgb))
		assert.Equal(t, byte(255), rgb[i*3])
	}
	assert.False(t, r.Step(p, rgb))

	r, _ = NewRunner(RGBTest)
	for ch := 0; ch < 3; ch++ {
		require.True(t, r.Step(p, rgb))
		assert.Equal(t, byte(255), rgb[3+ch])
	}
	assert.False(t, r.Step(p, rgb))

	r, _ = NewRunner(EdgeSweep)
	require.True(t, r.Step(p, rgb))
	require.True(t, r.Step(p, rgb)) // right edge: index 2
	assert.Equal(t, []byte{0, 255, 255}, rgb[6:9])
	assert.Equal(t, []byte{0, 0, 0}, rgb[0:3])

	_, err = NewRunner("plane_z")
	assert.ErrorIs(t, err, ErrUnknownPattern)
}

func TestSPIWritesNRZStream(t *testing.T) {
	var buf bytes.Buffer
	d, err := NewSPI(spitest.NewRecordRaw(&buf), 3)
	require.NoError(t, err)
	assert.Equal(t, "nrzled{recordraw}", d.String())

	require.NoError(t, d.Write([]byte{255, 0, 0, 0, 255, 0, 0, 0, 255}))
	// 4 symbol bytes per channel byte plus the 3 byte latch.
	assert.Equal(t, 3*3*4+3, buf.Len())
	assert.Error(t, d.Write([]byte{1, 2, 3}))

	_, err = NewSPI(spitest.NewRecordRaw(&buf), 0)
	assert.Error(t, err)
}

func TestOpenDrivers(t *testing.T) {
	d, err := Open(config.Ambient{Driver: "off"}, zerolog.Nop(), nil)
	assert.NoError(t, err)
	assert.Nil(t, d)

	d, err = Open(config.Ambient{Driver: "sim"}, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.IsType(t, &Sim{}, d)

	_, err = Open(config.Ambient{Driver: "dmx"}, zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestOpenSPIFallsBackToSim(t *testing.T) {
	var got []diag.Diagnostic
	cfg := config.Ambient{Driver: "spi", Port: "/dev/spidev-does-not-exist", LEDs: config.Edges{Top: 2}}
	d, err := Open(cfg, zerolog.Nop(), func(x diag.Diagnostic) { got = append(got, x) })
	require.NoError(t, err)
	assert.IsType(t, &Sim{}, d)
	require.Len(t, got, 1)
	assert.Equal(t, diag.AmbientFallback, got[0].Code)
}

func TestOutputSamplesAndLimits(t *testing.T) {
	sim := NewSim(zerolog.Nop())
	m := metrics.New(nil)
	cfg := config.Ambient{
		LEDs:       config.Edges{Top: 2, Right: 1, Bottom: 2, Left: 1},
		Brightness: 1,
		WhiteCap:   1.5,
	}
	o := NewOutput(cfg, sim, m, zerolog.Nop())

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	require.NoError(t, o.Update(splitFrame(16, 16, white, white)))
	last := sim.Last()
	require.Len(t, last, 18)
	assert.InDelta(t, 128, int(last[0]), 1, "white capped to half")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AmbientWrites.WithLabelValues("ok")))

	require.NoError(t, o.RunPattern(RGBTest))
	assert.True(t, o.Testing())
	for i := 0; i < 3; i++ {
		require.NoError(t, o.Update(nil))
	}
	assert.Equal(t, byte(0), sim.Last()[0])
	assert.Equal(t, byte(255), sim.Last()[2])
	require.NoError(t, o.Update(nil))
	assert.False(t, o.Testing())
	assert.Equal(t, 5, sim.Frames())

	require.NoError(t, o.Close())
	require.NoError(t, o.Update(nil))
	assert.Equal(t, 5, sim.Frames())
}
