// Package stats holds the closed-form statistics shared by the index reducers.
//
// Every function is total: empty or degenerate input returns the formula's
// neutral value instead of NaN or a division error.
package stats

import (
	"math"
	"sort"
)

// Sum returns the sum of values
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns the arithmetic mean, 0 for no values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// WeightedMean returns Σ(v·w)/Σw, 0 when the weights sum to zero
func WeightedMean(values, weights []float64) float64 {
	var num, den float64
	for i, v := range values {
		if i >= len(weights) {
			break
		}
		num += v * weights[i]
		den += weights[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Median returns the median of values without modifying them
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Quantile returns the linearly interpolated value at percentile p of sorted values
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// StdDev returns the population standard deviation
func StdDev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	mean := Mean(values)
	sumSquared := 0.0
	for _, v := range values {
		d := v - mean
		sumSquared += d * d
	}
	return math.Sqrt(sumSquared / float64(len(values)))
}

// CoefficientOfVariation returns stddev/mean, 0 when the mean is zero
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return StdDev(values) / mean
}

// Shares converts volumes into fractions of their total.
// All-zero input yields all-zero shares.
func Shares(volumes []float64) []float64 {
	total := Sum(volumes)
	shares := make([]float64, len(volumes))
	if total == 0 {
		return shares
	}
	for i, v := range volumes {
		shares[i] = v / total
	}
	return shares
}

// Simpson returns 1 − Σ share² over the categories, in [0, 1].
// No volume at all yields 0.
func Simpson(volumes []float64) float64 {
	if Sum(volumes) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, s := range Shares(volumes) {
		sumSquares += s * s
	}
	return clamp01(1 - sumSquares)
}

// Shannon returns −Σ p·ln p over the categories, in [0, ln N].
// Zero-share categories contribute nothing.
func Shannon(volumes []float64) float64 {
	entropy := 0.0
	for _, p := range Shares(volumes) {
		if p > 0 {
			entropy -= p * math.Log(p)
		}
	}
	if entropy < 0 {
		return 0
	}
	return entropy
}

// NormalizedShannon returns Shannon / ln N, 0 when fewer than two categories
func NormalizedShannon(volumes []float64) float64 {
	if len(volumes) < 2 {
		return 0
	}
	return clamp01(Shannon(volumes) / math.Log(float64(len(volumes))))
}

// Gini returns the Gini coefficient using the sorted cumulative share method:
// G = 1 − Σ (X_k − X_{k−1})(Y_k + Y_{k−1}) over ascending volumes, where X is
// the cumulative population share and Y the cumulative volume share.
// A single value, equal values, or no volume all yield 0.
func Gini(volumes []float64) float64 {
	n := len(volumes)
	total := Sum(volumes)
	if n <= 1 || total == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, volumes)
	sort.Float64s(sorted)

	area := 0.0
	prevY := 0.0
	cumulative := 0.0
	step := 1 / float64(n)
	for _, v := range sorted {
		cumulative += v
		y := cumulative / total
		area += step * (y + prevY)
		prevY = y
	}
	return clamp01(1 - area)
}

// Clamp limits v to [lo, hi] and maps NaN to lo
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}
