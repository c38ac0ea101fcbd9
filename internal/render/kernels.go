package render

// Built-in kernels mirror the GLSL programs used by the display strategies.
const (
	KernelDiscrete = "discrete"
	KernelLinear   = "linear"
	KernelCubic    = "cubic"
)

func registerBuiltinKernels(s *Software) {
	s.RegisterKernel(KernelDiscrete, discreteKernel)
	s.RegisterKernel(KernelLinear, linearKernel)
	s.RegisterKernel(KernelCubic, cubicKernel)
}

func discreteKernel(ctx *KernelContext, u, v float64) Color {
	return ctx.Sample(0, u, v)
}

// linearKernel blends unit 0 (older) towards unit 1 (newer) by "delta".
func linearKernel(ctx *KernelContext, u, v float64) Color {
	var d float32
	if vals := ctx.Uniform("delta"); len(vals) > 0 {
		d = clamp01(vals[0])
	}
	return Lerp(ctx.Sample(0, u, v), ctx.Sample(1, u, v), d)
}

// cubicKernel sums units 0..3 weighted by the four "weights" values.
func cubicKernel(ctx *KernelContext, u, v float64) Color {
	w := ctx.Uniform("weights")
	var out Color
	for i := 0; i < 4 && i < len(w); i++ {
		out = out.Add(ctx.Sample(i, u, v).Scale(w[i]))
	}
	out.A = 1
	return out
}
