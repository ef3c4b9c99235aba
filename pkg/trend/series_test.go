package trend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeries_DefaultSpan(t *testing.T) {
	s := NewSeries(0)
	assert.NotNil(t, s)
	assert.Equal(t, DefaultSpan, s.span)
	assert.Equal(t, 0, s.Len())
}

func TestSeries_Insert(t *testing.T) {
	s := NewSeries(time.Minute)
	now := time.Now()

	s.Insert(Point{T: now, Flow: 5.0, Volume: 0.08})
	s.Insert(Point{T: now.Add(time.Second), Flow: 10.0, Volume: 0.25})

	points := s.Points()
	require.Len(t, points, 2)
	assert.Equal(t, 5.0, points[0].Flow)
	assert.Equal(t, 10.0, points[1].Flow)
}

func TestSeries_TrimsOldPoints(t *testing.T) {
	s := NewSeries(10 * time.Second)
	now := time.Now()

	s.Insert(Point{T: now, Flow: 1.0})
	s.Insert(Point{T: now.Add(5 * time.Second), Flow: 2.0})
	s.Insert(Point{T: now.Add(15 * time.Second), Flow: 3.0})

	// The first point is older than 10s relative to the newest one.
	points := s.Points()
	require.Len(t, points, 2)
	assert.Equal(t, 2.0, points[0].Flow)
	assert.Equal(t, 3.0, points[1].Flow)
}

func TestSeries_PointsReturnsCopy(t *testing.T) {
	s := NewSeries(time.Minute)
	now := time.Now()

	s.Insert(Point{T: now, Flow: 5.0})

	points := s.Points()
	points[0].Flow = 99.0

	again := s.Points()
	assert.Equal(t, 5.0, again[0].Flow)
}

func TestSeries_Clear(t *testing.T) {
	s := NewSeries(time.Minute)
	now := time.Now()

	s.Insert(Point{T: now, Flow: 5.0})
	s.Insert(Point{T: now.Add(time.Second), Flow: 6.0})
	require.Equal(t, 2, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Points())
}
