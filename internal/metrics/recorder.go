// Package metrics tracks provider health and exports Prometheus collectors.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/DeafMist/hotel-radar/internal/apperr"
)

// Status is the derived health of one provider.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

const (
	windowSize        = 100
	criticalErrorRate = 0.5
	degradedErrorRate = 0.2
	degradedLatency   = 10 * time.Second
)

// Outcome labels for provider_requests_total.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
)

// Stats is a point-in-time view of one provider.
type Stats struct {
	Requests   int64         `json:"requests"`
	Errors     int64         `json:"errors"`
	ErrorRate  float64       `json:"errorRate"`
	AvgLatency time.Duration `json:"-"`
	AvgMillis  int64         `json:"avgLatencyMs"`
	Status     Status        `json:"status"`
}

type providerStats struct {
	mu        sync.Mutex
	requests  int64
	errors    int64
	latencies [windowSize]time.Duration
	next      int
	filled    int
}

func (p *providerStats) record(failed bool, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests++
	if failed {
		p.errors++
	}
	p.latencies[p.next] = latency
	p.next = (p.next + 1) % windowSize
	if p.filled < windowSize {
		p.filled++
	}
}

func (p *providerStats) snapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{Requests: p.requests, Errors: p.errors}
	if p.filled > 0 {
		var sum time.Duration
		for i := 0; i < p.filled; i++ {
			sum += p.latencies[i]
		}
		s.AvgLatency = sum / time.Duration(p.filled)
		s.AvgMillis = s.AvgLatency.Milliseconds()
	}
	if p.requests > 0 {
		s.ErrorRate = float64(p.errors) / float64(p.requests)
	}
	s.Status = deriveStatus(s)
	return s
}

func deriveStatus(s Stats) Status {
	switch {
	case s.Requests == 0:
		return StatusUnknown
	case s.ErrorRate > criticalErrorRate:
		return StatusCritical
	case s.ErrorRate > degradedErrorRate || s.AvgLatency > degradedLatency:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Recorder aggregates provider call outcomes. It is safe for concurrent use.
type Recorder struct {
	mu        sync.RWMutex
	providers map[string]*providerStats

	registry        *prometheus.Registry
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewRecorder creates a Recorder whose collectors are registered on reg.
// A nil reg gets a private registry.
func NewRecorder(reg *prometheus.Registry, providers ...string) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		providers: make(map[string]*providerStats, len(providers)),
		registry:  reg,
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Upstream provider calls by outcome",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provider_latency_seconds",
			Help:    "Latency of upstream provider calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by key namespace and result",
		}, []string{"namespace", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(r.providerCalls, r.providerLatency, r.cacheLookups, r.httpRequests, r.httpDuration)

	for _, name := range providers {
		r.providers[name] = &providerStats{}
	}
	return r
}

// Record registers one provider attempt. A nil err is a success.
func (r *Recorder) Record(provider string, err error, latency time.Duration) {
	r.stats(provider).record(err != nil, latency)

	outcome := OutcomeSuccess
	switch {
	case apperr.IsRateLimited(err):
		outcome = OutcomeRateLimited
	case err != nil:
		outcome = OutcomeError
	}
	r.providerCalls.WithLabelValues(provider, outcome).Inc()
	r.providerLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// ObserveCache counts a cache lookup.
func (r *Recorder) ObserveCache(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(namespace, result).Inc()
}

// Snapshot returns the current stats for provider.
func (r *Recorder) Snapshot(provider string) Stats {
	r.mu.RLock()
	p, ok := r.providers[provider]
	r.mu.RUnlock()
	if !ok {
		return Stats{Status: StatusUnknown}
	}
	return p.snapshot()
}

// Snapshots returns stats for every known provider.
func (r *Recorder) Snapshots() map[string]Stats {
	names := r.Providers()
	out := make(map[string]Stats, len(names))
	for _, name := range names {
		out[name] = r.Snapshot(name)
	}
	return out
}

// Health maps every known provider to its status.
func (r *Recorder) Health() map[string]Status {
	names := r.Providers()
	out := make(map[string]Status, len(names))
	for _, name := range names {
		out[name] = r.Snapshot(name).Status
	}
	return out
}

// Providers lists provider names in sorted order.
func (r *Recorder) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Recorder) stats(provider string) *providerStats {
	r.mu.RLock()
	p, ok := r.providers[provider]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok = r.providers[provider]; !ok {
		p = &providerStats{}
		r.providers[provider] = p
	}
	return p
}
