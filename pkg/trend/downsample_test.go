package trend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownsample_NoDownsampling(t *testing.T) {
	now := time.Now()
	points := []Point{
		{T: now, Flow: 1.0},
		{T: now.Add(time.Second), Flow: 1.1},
		{T: now.Add(2 * time.Second), Flow: 1.2},
	}

	// Test with nil dst
	result := Downsample(nil, points, 10)
	require.Equal(t, 3, len(result))
	assert.Equal(t, points[0], result[0])
	assert.Equal(t, points[1], result[1])
	assert.Equal(t, points[2], result[2])

	// Test with sufficient capacity dst
	dst := make([]Point, 0, 10)
	result = Downsample(dst, points, 10)
	require.Equal(t, 3, len(result))
	assert.Equal(t, points[0], result[0])
	// Should reuse dst
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsample_WithDownsampling(t *testing.T) {
	now := time.Now()
	points := make([]Point, 100)
	for i := range 100 {
		points[i] = Point{
			T:    now.Add(time.Duration(i) * time.Second),
			Flow: float64(i) * 0.1,
		}
	}

	// Downsample to 10 points
	dst := make([]Point, 0, 20)
	result := Downsample(dst, points, 10)
	require.Equal(t, 10, len(result))

	// Should always include first point
	assert.Equal(t, points[0], result[0])

	// Last point should come from the tail of the range
	assert.GreaterOrEqual(t, result[len(result)-1].Flow, 8.0)

	// Should reuse dst if capacity sufficient
	assert.GreaterOrEqual(t, cap(result), 10)
}

func TestDownsample_DestinationReuse(t *testing.T) {
	now := time.Now()
	points1 := []Point{
		{T: now, Flow: 1.0},
		{T: now.Add(time.Second), Flow: 1.1},
	}

	points2 := []Point{
		{T: now, Flow: 2.0},
		{T: now.Add(time.Second), Flow: 2.1},
		{T: now.Add(2 * time.Second), Flow: 2.2},
	}

	// First call
	dst := make([]Point, 0, 10)
	result1 := Downsample(dst, points1, 10)
	require.Equal(t, 2, len(result1))

	// Second call - should reuse dst
	result2 := Downsample(result1, points2, 10)
	require.Equal(t, 3, len(result2))

	// Should reuse same underlying array
	assert.Equal(t, cap(result1), cap(result2))
}

func TestDownsample_EmptyInput(t *testing.T) {
	result := Downsample(nil, []Point{}, 10)
	require.Equal(t, 0, len(result))
}

func TestDownsample_ExactMaxPoints(t *testing.T) {
	now := time.Now()
	points := make([]Point, 10)
	for i := range 10 {
		points[i] = Point{
			T:    now.Add(time.Duration(i) * time.Second),
			Flow: float64(i) * 0.1,
		}
	}

	// Downsample to exactly 10 points (same as input)
	result := Downsample(nil, points, 10)
	require.Equal(t, 10, len(result))

	// Should be identical
	for i := range 10 {
		assert.Equal(t, points[i], result[i])
	}
}
