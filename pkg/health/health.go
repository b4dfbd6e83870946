// Package health reports the state of an index node: every shard's engine
// and lock, plus the external stores the node depends on. The report backs
// the /healthz and /readyz endpoints.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// rank orders statuses so the report can take the worst one.
func (s Status) rank() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

func worst(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Shard is the view of one shard workspace the monitor reads.
type Shard interface {
	DocCount() int
	SegmentCount() int
	BufferedDocs() int
	// Locked reports whether a dispatch cycle currently holds the shard.
	Locked() bool
}

// ShardStatus is one shard's entry in a Report.
type ShardStatus struct {
	ShardID  int    `json:"shard_id"`
	Status   Status `json:"status"`
	Docs     int    `json:"docs"`
	Segments int    `json:"segments"`
	Buffered int    `json:"buffered"`
	Locked   bool   `json:"locked"`
}

// DependencyStatus is the result of pinging one external store.
type DependencyStatus struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency"`
}

type Report struct {
	Status       Status                      `json:"status"`
	Shards       []ShardStatus               `json:"shards"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
	CheckedAt    time.Time                   `json:"checked_at"`
}

type dependency struct {
	ping     func(ctx context.Context) error
	critical bool
}

// Monitor builds Reports. A shard with more segments than the merge bound is
// degraded. An unreachable critical dependency takes the node down; any other
// unreachable or slow dependency only degrades it.
type Monitor struct {
	shards      []Shard
	maxSegments int
	slow        time.Duration
	logger      *slog.Logger

	mu   sync.RWMutex
	deps map[string]dependency
}

type Option func(*Monitor)

// WithMaxSegments marks shards above n segments as degraded. Zero disables it.
func WithMaxSegments(n int) Option {
	return func(m *Monitor) { m.maxSegments = n }
}

// WithSlowThreshold marks dependencies answering slower than d as degraded.
func WithSlowThreshold(d time.Duration) Option {
	return func(m *Monitor) { m.slow = d }
}

func NewMonitor(shards []Shard, opts ...Option) *Monitor {
	m := &Monitor{
		shards: shards,
		slow:   100 * time.Millisecond,
		logger: slog.Default().With("component", "health"),
		deps:   make(map[string]dependency),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddDependency registers an external store. Critical stores are ones the node
// cannot apply messages without, such as the shard lock store.
func (m *Monitor) AddDependency(name string, ping func(ctx context.Context) error, critical bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps[name] = dependency{ping: ping, critical: critical}
}

// Run reads every shard and pings every dependency concurrently.
func (m *Monitor) Run(ctx context.Context) Report {
	m.mu.RLock()
	deps := make(map[string]dependency, len(m.deps))
	for name, d := range m.deps {
		deps[name] = d
	}
	m.mu.RUnlock()

	report := Report{
		Status:       StatusUp,
		Shards:       make([]ShardStatus, len(m.shards)),
		Dependencies: make(map[string]DependencyStatus, len(deps)),
		CheckedAt:    time.Now().UTC(),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, d := range deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := m.ping(ctx, d)
			mu.Lock()
			report.Dependencies[name] = result
			mu.Unlock()
		}()
	}

	for id, s := range m.shards {
		st := ShardStatus{
			ShardID:  id,
			Status:   StatusUp,
			Docs:     s.DocCount(),
			Segments: s.SegmentCount(),
			Buffered: s.BufferedDocs(),
			Locked:   s.Locked(),
		}
		if m.maxSegments > 0 && st.Segments > m.maxSegments {
			st.Status = StatusDegraded
		}
		report.Shards[id] = st
		report.Status = worst(report.Status, st.Status)
	}
	wg.Wait()

	for name, d := range report.Dependencies {
		if d.Status != StatusUp {
			m.logger.Warn("dependency unhealthy",
				"dependency", name,
				"status", d.Status,
				"critical", d.Critical,
				"message", d.Message,
			)
		}
		report.Status = worst(report.Status, d.Status)
	}
	return report
}

func (m *Monitor) ping(ctx context.Context, d dependency) DependencyStatus {
	start := time.Now()
	err := d.ping(ctx)
	elapsed := time.Since(start)
	result := DependencyStatus{
		Status:   StatusUp,
		Critical: d.critical,
		Latency:  elapsed.Round(time.Millisecond).String(),
	}
	switch {
	case err != nil && d.critical:
		result.Status, result.Message = StatusDown, err.Error()
	case err != nil:
		result.Status, result.Message = StatusDegraded, err.Error()
	case m.slow > 0 && elapsed > m.slow:
		result.Status, result.Message = StatusDegraded, "slow response"
	}
	return result
}

// LiveHandler answers as long as the process serves HTTP.
func (m *Monitor) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "alive",
			"shards": len(m.shards),
		})
	}
}

// ReadyHandler serves the full report. Only a down node is unready: a degraded
// one still applies messages.
func (m *Monitor) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := m.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(report)
	}
}
