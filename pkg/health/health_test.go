package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeShard struct {
	docs, segments, buffered int
	locked                   bool
}

func (s fakeShard) DocCount() int     { return s.docs }
func (s fakeShard) SegmentCount() int { return s.segments }
func (s fakeShard) BufferedDocs() int { return s.buffered }
func (s fakeShard) Locked() bool      { return s.locked }

func ok(context.Context) error { return nil }

func TestReportListsShards(t *testing.T) {
	m := NewMonitor([]Shard{
		fakeShard{docs: 10, segments: 2, buffered: 1},
		fakeShard{docs: 3, segments: 1, locked: true},
	})
	report := m.Run(context.Background())

	assert.Equal(t, StatusUp, report.Status)
	require.Len(t, report.Shards, 2)
	assert.Equal(t, ShardStatus{ShardID: 0, Status: StatusUp, Docs: 10, Segments: 2, Buffered: 1}, report.Shards[0])
	assert.True(t, report.Shards[1].Locked)
	assert.Empty(t, report.Dependencies)
}

func TestTooManySegmentsDegradesShard(t *testing.T) {
	m := NewMonitor([]Shard{fakeShard{segments: 2}, fakeShard{segments: 9}}, WithMaxSegments(4))
	report := m.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUp, report.Shards[0].Status)
	assert.Equal(t, StatusDegraded, report.Shards[1].Status)
}

func TestDependencyCriticality(t *testing.T) {
	refused := func(context.Context) error { return errors.New("connection refused") }

	m := NewMonitor(nil)
	m.AddDependency("locks", ok, true)
	m.AddDependency("journal", refused, false)
	report := m.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Dependencies["journal"].Message)
	assert.False(t, report.Dependencies["journal"].Critical)

	m.AddDependency("locks", refused, true)
	report = m.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, StatusDown, report.Dependencies["locks"].Status)
}

func TestSlowDependencyDegrades(t *testing.T) {
	m := NewMonitor(nil, WithSlowThreshold(time.Millisecond))
	m.AddDependency("locks", func(context.Context) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}, true)
	report := m.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Dependencies["locks"].Status)
	assert.Equal(t, "slow response", report.Dependencies["locks"].Message)
}

func TestReadyHandler(t *testing.T) {
	m := NewMonitor([]Shard{fakeShard{docs: 1, segments: 9}}, WithMaxSegments(4))

	rec := httptest.NewRecorder()
	m.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "degraded node stays ready")

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)
	require.Len(t, report.Shards, 1)
	assert.Equal(t, 9, report.Shards[0].Segments)

	m.AddDependency("locks", func(context.Context) error { return errors.New("timeout") }, true)
	rec = httptest.NewRecorder()
	m.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	m := NewMonitor([]Shard{fakeShard{}, fakeShard{}})
	rec := httptest.NewRecorder()
	m.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive","shards":2}`, rec.Body.String())
}
