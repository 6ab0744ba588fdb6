package msgrate

import (
	"sync"
	"time"
)

// DefaultWindow is the averaging window used when none is given
const DefaultWindow = 5 * time.Second

// minPruneLen is the slice length below which writes never prune
const minPruneLen = 1024

// Monitor tracks message arrival times and reports messages per second
// over a sliding window. Stale arrivals are pruned when read, and on write
// once the slice has doubled since the last prune, so memory stays within
// twice the arrivals of one retention period whether or not anyone reads.
type Monitor struct {
	mu        sync.Mutex
	arrivals  []float64 // unix seconds, append order
	pruneAt   int       // length at which the next write prunes
	retention float64
	now       func() time.Time
}

// Option configures a Monitor
type Option func(*Monitor)

// WithClock overrides the wall clock used by Rate
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// NewMonitor creates a monitor that keeps arrivals for up to retention.
// Rates over windows longer than retention are clamped to it.
func NewMonitor(retention time.Duration, opts ...Option) *Monitor {
	if retention < DefaultWindow {
		retention = DefaultWindow
	}
	m := &Monitor{
		pruneAt:   minPruneLen,
		retention: retention.Seconds(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordArrival appends an arrival time in unix seconds
func (m *Monitor) RecordArrival(t float64) {
	m.mu.Lock()
	m.arrivals = append(m.arrivals, t)
	if len(m.arrivals) >= m.pruneAt {
		m.prune(t - m.retention)
	}
	m.mu.Unlock()
}

// Rate returns arrivals per second over the last window, measured from now.
func (m *Monitor) Rate(window time.Duration) float64 {
	return m.RateAt(unixSeconds(m.now()), window.Seconds())
}

// RateAt counts arrivals with t > now-windowSeconds and divides by
// windowSeconds. A non-positive window falls back to DefaultWindow.
func (m *Monitor) RateAt(now, windowSeconds float64) float64 {
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindow.Seconds()
	}
	windowSeconds = min(windowSeconds, m.retention)
	cutoff := now - windowSeconds

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prune(now - m.retention)

	count := 0
	for _, t := range m.arrivals {
		if t > cutoff {
			count++
		}
	}
	return float64(count) / windowSeconds
}

// Len returns the number of retained arrivals
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.arrivals)
}

// prune drops arrivals at or before cutoff from the head and moves the
// write threshold. Callers hold mu.
func (m *Monitor) prune(cutoff float64) {
	i := 0
	for i < len(m.arrivals) && m.arrivals[i] <= cutoff {
		i++
	}
	if i > 0 {
		n := copy(m.arrivals, m.arrivals[i:])
		m.arrivals = m.arrivals[:n]
	}
	m.pruneAt = max(2*len(m.arrivals), minPruneLen)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Now returns the current time in unix seconds, the unit RecordArrival expects
func Now() float64 {
	return unixSeconds(time.Now())
}
