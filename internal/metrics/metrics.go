package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the player's Prometheus metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Clip metrics
	ActiveClips   prometheus.Gauge
	ClipsStarted  prometheus.Counter
	ClipsFinished *prometheus.CounterVec
	ClipAlpha     prometheus.Gauge

	// Frame metrics
	FramesGrabbed   *prometheus.CounterVec
	FramesNotReady  prometheus.Counter
	InterframeDelta prometheus.Gauge

	// Display metrics
	DisplayFallbacks *prometheus.CounterVec
	RenderDuration   prometheus.Histogram
	FramesPresented  prometheus.Counter

	// Ambient metrics
	AmbientWrites *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers all metrics on reg. A nil reg uses a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	m := &Metrics{
		ActiveClips: f.NewGauge(prometheus.GaugeOpts{
			Name: "edream_active_clips",
			Help: "Number of clips currently being updated",
		}),
		ClipsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "edream_clips_started_total",
			Help: "Total number of clips started",
		}),
		ClipsFinished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edream_clips_finished_total",
				Help: "Total number of clips finished",
			},
			[]string{"reason"}, // ended, faded, decode_error, open_error, stopped
		),
		ClipAlpha: f.NewGauge(prometheus.GaugeOpts{
			Name: "edream_clip_alpha",
			Help: "Cross-fade alpha of the current clip",
		}),
		FramesGrabbed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edream_frames_grabbed_total",
				Help: "Decoded frames uploaded into display rings",
			},
			[]string{"path"}, // software or hardware
		),
		FramesNotReady: f.NewCounter(prometheus.CounterOpts{
			Name: "edream_frames_not_ready_total",
			Help: "Frame grabs that found the decoder queue empty",
		}),
		InterframeDelta: f.NewGauge(prometheus.GaugeOpts{
			Name: "edream_interframe_delta",
			Help: "Sub-frame position of the current clip",
		}),
		DisplayFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edream_display_fallbacks_total",
				Help: "Display strategies that fell back to discrete",
			},
			[]string{"mode"},
		),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "edream_render_duration_seconds",
			Help:    "Time spent in one update and draw pass",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10), // 0.5ms to ~256ms
		}),
		FramesPresented: f.NewCounter(prometheus.CounterOpts{
			Name: "edream_frames_presented_total",
			Help: "Total composited frames presented",
		}),
		AmbientWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edream_ambient_writes_total",
				Help: "Frames written to the ambient LED sink",
			},
			[]string{"result"},
		),
		gatherer: reg,
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordClipStart records a clip starting.
func (m *Metrics) RecordClipStart() {
	if m == nil {
		return
	}
	m.ActiveClips.Inc()
	m.ClipsStarted.Inc()
}

// RecordClipFinish records a clip leaving the timeline.
func (m *Metrics) RecordClipFinish(reason string) {
	if m == nil {
		return
	}
	m.ActiveClips.Dec()
	m.ClipsFinished.WithLabelValues(reason).Inc()
}

// RecordFrameGrab records one pop from the decoder.
func (m *Metrics) RecordFrameGrab(ok, hardware bool) {
	if m == nil {
		return
	}
	if !ok {
		m.FramesNotReady.Inc()
		return
	}
	path := "software"
	if hardware {
		path = "hardware"
	}
	m.FramesGrabbed.WithLabelValues(path).Inc()
}

func (m *Metrics) RecordFallback(mode string) {
	if m == nil {
		return
	}
	m.DisplayFallbacks.WithLabelValues(mode).Inc()
}

// RecordPresent records a presented frame and the time it took.
func (m *Metrics) RecordPresent(seconds, alpha, delta float64) {
	if m == nil {
		return
	}
	m.FramesPresented.Inc()
	m.RenderDuration.Observe(seconds)
	m.ClipAlpha.Set(alpha)
	m.InterframeDelta.Set(delta)
}

func (m *Metrics) RecordAmbientWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.AmbientWrites.WithLabelValues(result).Inc()
}
