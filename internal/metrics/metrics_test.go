package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordClipStart()
	m.RecordClipFinish("ended")
	m.RecordFrameGrab(true, false)
	m.RecordFallback("cubic")
	m.RecordPresent(0.01, 1, 0.5)
	m.RecordAmbientWrite(nil)
}

func TestRecordersAndHandler(t *testing.T) {
	m := New(nil)
	m.RecordClipStart()
	m.RecordClipStart()
	m.RecordClipFinish("decode_error")
	m.RecordFrameGrab(true, false)
	m.RecordFrameGrab(false, false)
	m.RecordAmbientWrite(errors.New("spi"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveClips))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClipsFinished.WithLabelValues("decode_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesNotReady))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AmbientWrites.WithLabelValues("error")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "edream_clips_started_total 2")
}
