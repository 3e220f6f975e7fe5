package flow

import "math"

// runningStats accumulates count, mean, sample variance (Welford's
// online algorithm) and min/max for a stream of float64 observations
// without retaining the observations themselves. Per-flow packet-length
// and inter-arrival-time series would otherwise grow without bound over
// a long-lived flow; this keeps the per-flow footprint O(1).
type runningStats struct {
	count int
	mean  float64
	m2    float64
	min   float64
	max   float64
}

func (s *runningStats) add(x float64) {
	s.count++
	if s.count == 1 {
		s.min, s.max = x, x
	} else {
		if x < s.min {
			s.min = x
		}
		if x > s.max {
			s.max = x
		}
	}
	delta := x - s.mean
	s.mean += delta / float64(s.count)
	s.m2 += delta * (x - s.mean)
}

// Mean returns the arithmetic mean, or 0 for an empty series.
func (s *runningStats) Mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.mean
}

// Variance returns the sample variance (divisor N-1), or 0 for N <= 1.
func (s *runningStats) Variance() float64 {
	if s.count < 2 {
		return 0
	}
	return s.m2 / float64(s.count-1)
}

// Std returns the sample standard deviation.
func (s *runningStats) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Min returns the minimum observation, or 0 for an empty series.
func (s *runningStats) Min() float64 {
	if s.count == 0 {
		return 0
	}
	return s.min
}

// Max returns the maximum observation, or 0 for an empty series.
func (s *runningStats) Max() float64 {
	if s.count == 0 {
		return 0
	}
	return s.max
}

// Count returns the number of observations folded into the series.
func (s *runningStats) Count() int {
	return s.count
}
