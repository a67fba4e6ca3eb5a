package indicators

import "math"

// CalculateStochastic computes the fast stochastic oscillator.
// %K[i] = 100 * (close[i] - lowest low) / (highest high - lowest low) over the
// last kPeriod bars; %D is the dPeriod simple moving average of %K.
// Positions without enough history, or with a flat range, are NaN.
func CalculateStochastic(high, low, close []float64, kPeriod, dPeriod int) (k, d []float64) {
	n := len(close)
	k = nanSlice(n)
	d = nanSlice(n)
	if kPeriod <= 0 || dPeriod <= 0 || len(high) != n || len(low) != n {
		return k, d
	}

	for i := kPeriod - 1; i < n; i++ {
		hh, ll := high[i], low[i]
		for j := i - kPeriod + 1; j < i; j++ {
			hh = math.Max(hh, high[j])
			ll = math.Min(ll, low[j])
		}
		if rng := hh - ll; rng > 0 {
			k[i] = 100 * (close[i] - ll) / rng
		}
	}

	d = CalculateSMA(k, dPeriod)
	return k, d
}

// CalculateSMA is a simple moving average. A window containing NaN yields NaN.
func CalculateSMA(data []float64, period int) []float64 {
	out := nanSlice(len(data))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(data); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += data[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
