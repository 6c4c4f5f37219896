package features

import "math"

// MeanStd returns the mean and sample standard deviation (n-1) of xs.
// It returns zeros for fewer than two values.
func MeanStd(xs []float64) (mean, std float64) {
    n := len(xs)
    if n < 2 {
        return 0, 0
    }
    sum := 0.0
    for _, x := range xs {
        sum += x
    }
    mean = sum / float64(n)
    ss := 0.0
    for _, x := range xs {
        d := x - mean
        ss += d * d
    }
    return mean, math.Sqrt(ss / float64(n-1))
}

// ZScore returns |x-mean|/std over xs, or 0 when the spread is zero.
func ZScore(x float64, xs []float64) float64 {
    mean, std := MeanStd(xs)
    if std == 0 {
        return 0
    }
    return math.Abs(x-mean) / std
}
