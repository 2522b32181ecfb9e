package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.FrameCaptured()
	m.FrameCaptured()
	m.FrameDropped()
	m.Classified("compost")
	m.Actuated("p2", nil)
	m.Actuated("p2", errors.New("boom"))
	m.ObserveInference(20 * time.Millisecond)
	m.SetState(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.frames.WithLabelValues("captured")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.frames.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classifications.WithLabelValues("compost")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actuations.WithLabelValues("p2", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actuations.WithLabelValues("p2", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.state))
	assert.Equal(t, 1, testutil.CollectAndCount(m.inference))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FrameCaptured()
		m.FrameDropped()
		m.Classified("trash")
		m.Actuated("p0", nil)
		m.ObserveInference(time.Millisecond)
		m.SetState(0)
	})
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Classified("recycle")

	srv := httptest.NewServer(Router(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `smartbin_classifications_total{label="recycle"} 1`))

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/metrics", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
