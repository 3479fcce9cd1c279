package flow

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

type Metrics struct {
	Received int64 // atomic
	Failed   int64 // atomic; triggers that returned an error
	Dropped  int64 // atomic; records on auto-terminated relationships

	routed  map[string]*int64 // keys fixed at construction
	started time.Time
}

func NewMetrics(routes []string) *Metrics {
	m := &Metrics{routed: make(map[string]*int64, len(routes)), started: time.Now()}
	for _, r := range routes {
		m.routed[r] = new(int64)
	}
	return m
}

type MetricsSnapshot struct {
	Received int64
	Failed   int64
	Dropped  int64
	Routed   map[string]int64
	Elapsed  time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Received: atomic.LoadInt64(&m.Received),
		Failed:   atomic.LoadInt64(&m.Failed),
		Dropped:  atomic.LoadInt64(&m.Dropped),
		Routed:   make(map[string]int64, len(m.routed)),
		Elapsed:  time.Since(m.started),
	}
	for k, v := range m.routed {
		s.Routed[k] = atomic.LoadInt64(v)
	}
	return s
}

func (m *Metrics) IncReceived() {
	atomic.AddInt64(&m.Received, 1)
}
func (m *Metrics) IncFailed() {
	atomic.AddInt64(&m.Failed, 1)
}
func (m *Metrics) AddDropped(n int) {
	atomic.AddInt64(&m.Dropped, int64(n))
}
func (m *Metrics) AddRouted(route string, n int) {
	if c, ok := m.routed[route]; ok {
		atomic.AddInt64(c, int64(n))
	}
}

func (s MetricsSnapshot) String() string {
	routes := make([]string, 0, len(s.Routed))
	for r := range s.Routed {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	parts := make([]string, 0, len(routes))
	for _, r := range routes {
		parts = append(parts, fmt.Sprintf("%s=%d", r, s.Routed[r]))
	}
	return fmt.Sprintf("received=%d failed=%d dropped=%d routed[%s] elapsed=%s",
		s.Received, s.Failed, s.Dropped, strings.Join(parts, " "), s.Elapsed.Round(time.Millisecond))
}
