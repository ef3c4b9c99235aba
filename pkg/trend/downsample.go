package trend

// Downsample reduces a slice of points to a maximum number for display.
// Uses simple decimation.
// Destination-based: reuses dst if it has sufficient capacity, otherwise
// allocates new. Returns the destination slice (may be dst if reused, or
// a new slice if dst was too small).
// If len(points) <= maxPoints, copies all points to dst.
func Downsample(dst []Point, points []Point, maxPoints int) []Point {
	if len(points) <= maxPoints {
		// Need to copy all points
		if cap(dst) >= len(points) {
			dst = dst[:len(points)]
			copy(dst, points)
			return dst
		}
		// dst too small, allocate new
		result := make([]Point, len(points))
		copy(result, points)
		return result
	}

	// Need to downsample
	if cap(dst) >= maxPoints {
		// Reuse dst
		dst = dst[:0] // Reset length but keep capacity
	} else {
		// Allocate new slice
		dst = make([]Point, 0, maxPoints)
	}

	// Calculate step size for decimation
	step := float64(len(points)) / float64(maxPoints)

	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(points) {
			dst = append(dst, points[idx])
		}
	}

	return dst
}
