package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageDecoded("ok")
		m.Dispatch("split", "ok", time.Millisecond)
		m.Merged()
		m.ShardDocs(0, 1)
	})
}

func TestCollectors(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.MessageDecoded("ok")
	m.MessageDecoded("ok")
	m.Operation("Add")
	m.Dispatch("writer_only", "ok", 10*time.Millisecond)
	m.HandleOpened("writer")
	m.ShardDocs(3, 42)
	m.SetActiveShards(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesDecodedTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchesTotal.WithLabelValues("writer_only", "ok")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.ShardDocCount.WithLabelValues("3")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ActiveShards))
}

type staticHealth struct{}

func (staticHealth) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
}

func (staticHealth) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }
}

func TestMuxRoutes(t *testing.T) {
	srv := httptest.NewServer(newMux(staticHealth{}))
	defer srv.Close()

	for path, want := range map[string]int{
		"/metrics": http.StatusOK,
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusServiceUnavailable,
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}
}
