package display

import "math"

// Spline parameters for the cubic strategy: B=1, C=0 is the cubic B-spline.
const (
	SplineB = 1.0
	SplineC = 0.0
)

// MitchellNetravali evaluates the Mitchell-Netravali reconstruction kernel.
func MitchellNetravali(x, b, c float64) float64 {
	x = math.Abs(x)
	switch {
	case x < 1:
		return ((12-9*b-6*c)*x*x*x + (-18+12*b+6*c)*x*x + (6 - 2*b)) / 6
	case x < 2:
		return ((-b-6*c)*x*x*x + (6*b+30*c)*x*x + (-12*b-48*c)*x + (8*b + 24*c)) / 6
	default:
		return 0
	}
}

// CubicWeights returns the blend weights for the four frames (oldest first)
// at fractional position delta. They sum to 1.
func CubicWeights(delta float64) [4]float64 {
	return [4]float64{
		MitchellNetravali(delta+1, SplineB, SplineC),
		MitchellNetravali(delta, SplineB, SplineC),
		MitchellNetravali(1-delta, SplineB, SplineC),
		MitchellNetravali(2-delta, SplineB, SplineC),
	}
}
