package trend

import (
	"sync"
	"time"
)

// DefaultSpan is the rolling time span a series retains by default.
const DefaultSpan = 5 * time.Minute

// Point is one charted window close.
type Point struct {
	T      time.Time
	Flow   float64 // Corrected flowrate (l/min)
	Volume float64 // Total volume at the window close (l)
}

// Series holds the recent points shown in the trend, trimmed to a rolling
// time span anchored at the newest point.
type Series struct {
	mu     sync.RWMutex
	points []Point
	span   time.Duration
}

// NewSeries creates a series keeping points within span of the newest.
func NewSeries(span time.Duration) *Series {
	if span <= 0 {
		span = DefaultSpan
	}

	return &Series{
		points: make([]Point, 0, 1024),
		span:   span,
	}
}

// Insert appends a point and drops points that fell out of the span.
// Points are expected in time order; out-of-order points are kept but
// never extend the span backwards.
func (s *Series) Insert(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = append(s.points, p)

	cutoff := p.T.Add(-s.span)
	trim := 0
	for trim < len(s.points) && s.points[trim].T.Before(cutoff) {
		trim++
	}
	if trim > 0 {
		s.points = append(s.points[:0], s.points[trim:]...)
	}
}

// Points returns a copy of the retained points, oldest first.
func (s *Series) Points() []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Len returns the number of retained points.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Clear drops all points.
func (s *Series) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = s.points[:0]
}
