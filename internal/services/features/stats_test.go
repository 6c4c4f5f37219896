package features

import (
    "math"
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestMeanStd(t *testing.T) {
    mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
    assert.InDelta(t, 5.0, mean, 1e-12)
    assert.InDelta(t, math.Sqrt(32.0/7), std, 1e-12)

    mean, std = MeanStd([]float64{3})
    assert.Zero(t, mean)
    assert.Zero(t, std)
}

func TestZScore(t *testing.T) {
    assert.InDelta(t, 1.0, ZScore(3, []float64{1, 3, 2}), 1e-12)
    assert.InDelta(t, 1.0, ZScore(1, []float64{1, 3, 2}), 1e-12)
    assert.Zero(t, ZScore(100, []float64{5, 5, 5}))
}
