package playback

import "math"

// EaseFunc reshapes a 0..1 ramp.
type EaseFunc func(float64) float64

// Ease returns the named curve: "linear" (default), "smooth" or "cubic".
func Ease(kind string) EaseFunc {
	switch kind {
	case "smooth":
		// classic smoothstep 3x^2 - 2x^3
		return func(x float64) float64 { return x * x * (3 - 2*x) }
	case "cubic":
		return smootherstep
	default:
		return nil
	}
}

// smootherstep: 6x^5 - 15x^4 + 10x^3
func smootherstep(x float64) float64 {
	return x * x * x * (x*(x*6-15) + 10)
}

// ramp is min(seconds/fade, 1) clamped to [0,1]; a non-positive fade is open.
func ramp(seconds, fade float64, ease EaseFunc) float64 {
	if fade <= 0 || math.IsInf(seconds, 1) {
		return 1
	}
	x := clamp01(seconds / fade)
	if ease != nil {
		x = clamp01(ease(x))
	}
	return x
}

// FadeAlpha is the product of the fade-in and fade-out ramps.
func FadeAlpha(secondsIn, secondsOut, fadeIn, fadeOut float64, ease EaseFunc) float64 {
	return ramp(secondsIn, fadeIn, ease) * ramp(secondsOut, fadeOut, ease)
}

func clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
