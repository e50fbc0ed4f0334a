package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"odd count", []float64{3, 1, 2}, 2},
		{"even count", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{7}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Median(tt.values))
		})
	}

	t.Run("does not reorder input", func(t *testing.T) {
		values := []float64{3, 1, 2}
		Median(values)
		assert.Equal(t, []float64{3, 1, 2}, values)
	})
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, Quantile(sorted, 0))
	assert.Equal(t, 3.0, Quantile(sorted, 0.5))
	assert.Equal(t, 5.0, Quantile(sorted, 1))
	assert.InDelta(t, 2.0, Quantile(sorted, 0.25), 1e-12)
	assert.Equal(t, 0.0, Quantile(nil, 0.5))
}

func TestSimpson(t *testing.T) {
	t.Run("ten equal models", func(t *testing.T) {
		volumes := make([]float64, 10)
		for i := range volumes {
			volumes[i] = 100
		}
		assert.InDelta(t, 0.9, Simpson(volumes), 1e-12)
	})

	t.Run("single category is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Simpson([]float64{42}))
	})

	t.Run("no volume is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Simpson(nil))
		assert.Equal(t, 0.0, Simpson([]float64{0, 0}))
	})

	t.Run("always in unit interval", func(t *testing.T) {
		inputs := [][]float64{{1, 2, 3}, {1000, 1}, {5, 5, 5, 5}, {0, 9}}
		for _, in := range inputs {
			v := Simpson(in)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	})
}

func TestShannon(t *testing.T) {
	t.Run("uniform over 24 bins reaches ln 24", func(t *testing.T) {
		volumes := make([]float64, 24)
		for i := range volumes {
			volumes[i] = 3
		}
		assert.InDelta(t, math.Log(24), Shannon(volumes), 1e-12)
	})

	t.Run("single bin is zero", func(t *testing.T) {
		volumes := make([]float64, 24)
		volumes[12] = 10
		assert.Equal(t, 0.0, Shannon(volumes))
	})

	t.Run("bounded by ln N", func(t *testing.T) {
		volumes := []float64{1, 7, 2, 0, 4}
		h := Shannon(volumes)
		assert.GreaterOrEqual(t, h, 0.0)
		assert.LessOrEqual(t, h, math.Log(float64(len(volumes)))+1e-12)
	})

	t.Run("normalized needs two categories", func(t *testing.T) {
		assert.Equal(t, 0.0, NormalizedShannon([]float64{5}))
		assert.InDelta(t, 1.0, NormalizedShannon([]float64{5, 5}), 1e-12)
	})
}

func TestGini(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"single entity", []float64{60}, 0},
		{"perfect equality", []float64{10, 10, 10, 10}, 0},
		{"all volume in one of four", []float64{0, 0, 0, 40}, 0.75},
		{"two entities one and three", []float64{1, 3}, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Gini(tt.values), 1e-12)
		})
	}
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.Equal(t, 0.0, CoefficientOfVariation(nil))
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{5, 5, 5}))
	assert.InDelta(t, 0.5, CoefficientOfVariation([]float64{1, 3}), 1e-12)
}

func TestWeightedMean(t *testing.T) {
	assert.InDelta(t, 2.5, WeightedMean([]float64{1, 3}, []float64{1, 3}), 1e-12)
	assert.Equal(t, 0.0, WeightedMean([]float64{1, 3}, []float64{0, 0}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(math.NaN(), 0, 1))
	assert.Equal(t, 1.0, Clamp(3, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
}
