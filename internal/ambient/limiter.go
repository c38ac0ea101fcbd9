package ambient

import (
	"math"

	"github.com/coreman2200/edream/internal/render"
)

// Limiter keeps the strip inside its power envelope in two stages:
//  1. per-LED white cap: scales (R,G,B) so R+G+B <= WhiteCap
//  2. global budget: estimates current and scales the whole frame to stay
//     under BudgetMA with a soft knee from Knee*BudgetMA
type Limiter struct {
	WhiteCap float64 // max R+G+B per LED; <= 0 or >= 3 disables
	ChanMA   float64 // mA per channel at full scale; WS2812 is about 20
	BudgetMA float64 // 0 disables the budget stage
	Knee     float64 // fraction of budget where soft limiting begins
}

func LimiterOf(whiteCap, budgetMA float64) Limiter {
	return Limiter{WhiteCap: whiteCap, ChanMA: 20, BudgetMA: budgetMA, Knee: 0.9}
}

// EstimateMA is the current drawn by buf under the limiter's channel model.
func (l Limiter) EstimateMA(buf []render.Color) float64 {
	chanMA := l.ChanMA
	if chanMA <= 0 {
		chanMA = 20
	}
	var total float64
	cm := float32(chanMA)
	for i := range buf {
		total += float64((buf[i].R + buf[i].G + buf[i].B) * cm)
	}
	return total
}

func (l Limiter) Apply(buf []render.Color) {
	if l.WhiteCap > 0 && l.WhiteCap < 3 {
		wc := float32(l.WhiteCap)
		for i := range buf {
			s := buf[i].R + buf[i].G + buf[i].B
			if s > wc && s > 0 {
				scale := wc / s
				buf[i].R *= scale
				buf[i].G *= scale
				buf[i].B *= scale
			}
		}
	}

	if l.BudgetMA <= 0 {
		return
	}
	total := l.EstimateMA(buf)
	if total <= 0 {
		return
	}
	knee := l.Knee
	if knee <= 0 || knee >= 1 {
		knee = 0.9
	}
	kneeMA := knee * l.BudgetMA
	if total <= kneeMA {
		return
	}
	// above the knee the output approaches BudgetMA without reaching it
	span := l.BudgetMA - kneeMA
	out := kneeMA + span*(1-math.Exp(-(total-kneeMA)/span))
	scaleAll(buf, float32(out/total))
}

func scaleAll(buf []render.Color, s float32) {
	if s >= 1 {
		return
	}
	for i := range buf {
		buf[i].R *= s
		buf[i].G *= s
		buf[i].B *= s
	}
}
