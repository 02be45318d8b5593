package xtid

import "math"

// cubic evaluates a cubic Bezier easing curve y(x) whose control points are
// (curves[0], curves[1]) and (curves[2], curves[3]). Outside [0, 1] the curve
// is extended linearly along the end gradients, matching the browser's
// easing implementation.
type cubic struct {
	curves []float64
}

func (c cubic) value(t float64) float64 {
	start, mid, end := 0.0, 0.0, 1.0

	if t <= 0.0 {
		startGradient := 0.0
		if c.curves[0] > 0.0 {
			startGradient = c.curves[1] / c.curves[0]
		} else if c.curves[1] == 0.0 && c.curves[2] > 0.0 {
			startGradient = c.curves[3] / c.curves[2]
		}
		return startGradient * t
	}

	if t >= 1.0 {
		endGradient := 0.0
		if c.curves[2] < 1.0 {
			endGradient = (c.curves[3] - 1.0) / (c.curves[2] - 1.0)
		} else if c.curves[2] == 1.0 && c.curves[0] < 1.0 {
			endGradient = (c.curves[1] - 1.0) / (c.curves[0] - 1.0)
		}
		return 1.0 + endGradient*(t-1.0)
	}

	for start < end {
		mid = (start + end) / 2
		xEst := bezierTerm(c.curves[0], c.curves[2], mid)
		if math.Abs(t-xEst) < 0.00001 {
			return bezierTerm(c.curves[1], c.curves[3], mid)
		}
		if xEst < t {
			start = mid
		} else {
			end = mid
		}
	}
	return bezierTerm(c.curves[1], c.curves[3], mid)
}

func bezierTerm(a, b, m float64) float64 {
	return 3.0*a*(1-m)*(1-m)*m + 3.0*b*(1-m)*m*m + m*m*m
}
