package tracking

import (
	"math"
	"sync"
	"time"
)

const (
	trailWindow    = 10 * time.Second
	trailThreshold = 0.0001
)

// TrailPoint is a rider sample with the opacity it is drawn at.
type TrailPoint struct {
	Point
	At      time.Time
	Opacity float64
}

// Trail keeps recent rider samples for the fading breadcrumb line. It has
// no influence on routing or status.
type Trail struct {
	mu      sync.Mutex
	now     func() time.Time
	samples []TrailPoint
}

func NewTrail(now func() time.Time) *Trail {
	if now == nil {
		now = time.Now
	}
	return &Trail{now: now}
}

// Observe appends p when it moved more than the threshold on either axis
// since the last kept sample. It reports whether p was appended.
func (t *Trail) Observe(p Point) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.pruneLocked(now)
	if n := len(t.samples); n > 0 {
		last := t.samples[n-1].Point
		if math.Abs(p.Lat-last.Lat) <= trailThreshold && math.Abs(p.Lng-last.Lng) <= trailThreshold {
			return false
		}
	}
	t.samples = append(t.samples, TrailPoint{Point: p, At: now})
	return true
}

// Points prunes expired samples and returns the rest oldest first with
// opacity decaying linearly from 1 (now) to 0 (window age).
func (t *Trail) Points() []TrailPoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.pruneLocked(now)
	out := make([]TrailPoint, len(t.samples))
	for i, s := range t.samples {
		age := now.Sub(s.At)
		s.Opacity = 1 - float64(age)/float64(trailWindow)
		out[i] = s
	}
	return out
}

func (t *Trail) Reset() {
	t.mu.Lock()
	t.samples = nil
	t.mu.Unlock()
}

func (t *Trail) pruneLocked(now time.Time) {
	keep := t.samples[:0]
	for _, s := range t.samples {
		if now.Sub(s.At) <= trailWindow {
			keep = append(keep, s)
		}
	}
	t.samples = keep
}
