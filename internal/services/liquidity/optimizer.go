package liquidity

import (
	"fmt"
	"math"
	"strings"

	"DefiGuard/internal/domain/models"
	"DefiGuard/pkg/config"
)

const (
	maxBaseRange     = 0.4
	maxTrend         = 0.3
	trendDamping     = 0.5
	maxDepthFactor   = 2.0
	minUtilization   = 0.5
	maxUtilization   = 0.9
	volatileAbove    = 0.1
	trendingAbove    = 0.05
	utilizationStep  = 0.1
	trendUtilization = 0.05
)

// ValidationError lists the pool metrics that are outside the range the optimizer trusts.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid liquidity metrics: " + strings.Join(e.Violations, "; ")
}

// Optimizer proposes a concentrated-liquidity range from pool metrics. It never fails:
// untrusted metrics degrade to the default range.
type Optimizer struct {
	cfg config.LiquidityConfig
}

func NewOptimizer(cfg config.LiquidityConfig) *Optimizer {
	return &Optimizer{cfg: cfg}
}

// Validate returns a *ValidationError when the metrics are too thin or too volatile.
func (o *Optimizer) Validate(m models.LiquidityMetrics) error {
	var v []string
	if !(m.PoolDepth >= o.cfg.MinPoolDepth) {
		v = append(v, fmt.Sprintf("pool depth %v below %v", m.PoolDepth, o.cfg.MinPoolDepth))
	}
	if !(m.Volatility <= o.cfg.MaxVolatility) {
		v = append(v, fmt.Sprintf("volatility %v above %v", m.Volatility, o.cfg.MaxVolatility))
	}
	if !(m.Volume24h > 0) {
		v = append(v, "24h volume must be positive")
	}
	if !(m.CurrentPrice > 0) {
		v = append(v, "current price must be positive")
	}
	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

func (o *Optimizer) DefaultRange() models.OptimalRange {
	return models.OptimalRange{Min: o.cfg.DefaultRange, Max: o.cfg.DefaultRange}
}

// OptimizeRange returns fractional offsets below and above the current price.
func (o *Optimizer) OptimizeRange(m models.LiquidityMetrics) models.OptimalRange {
	if o.Validate(m) != nil {
		return o.DefaultRange()
	}

	base := math.Min(m.Volatility*2, maxBaseRange)
	trend := math.Min(math.Abs(m.PriceChange24h/m.CurrentPrice)*trendDamping, maxTrend)
	depth := math.Min(m.PoolDepth/(o.cfg.MinPoolDepth*10), maxDepthFactor)

	return models.OptimalRange{
		Min: o.bound(base * (1 - trend) * depth),
		Max: o.bound(base * (1 + trend) * depth),
	}
}

// OptimizeParameters turns the range into absolute price bounds with a utilization target.
func (o *Optimizer) OptimizeParameters(m models.LiquidityMetrics) models.OptimalParameters {
	r := o.OptimizeRange(m)
	return models.OptimalParameters{
		MinPrice:          m.CurrentPrice * (1 - r.Min),
		MaxPrice:          m.CurrentPrice * (1 + r.Max),
		TargetUtilization: o.targetUtilization(m),
	}
}

// NeedsAdjustment reports whether either bound moved by more than the configured tolerance.
func (o *Optimizer) NeedsAdjustment(current, target models.OptimalRange) bool {
	return math.Abs(current.Min-target.Min) > o.cfg.AdjustTolerance ||
		math.Abs(current.Max-target.Max) > o.cfg.AdjustTolerance
}

func (o *Optimizer) bound(x float64) float64 {
	return math.Max(math.Min(x, o.cfg.MaxRange), o.cfg.DefaultRange)
}

func (o *Optimizer) targetUtilization(m models.LiquidityMetrics) float64 {
	u := o.cfg.TargetUtilization
	if m.Volatility > volatileAbove {
		u -= utilizationStep
	}
	if m.Volume24h > m.PoolDepth {
		u += utilizationStep
	}
	if math.Abs(m.PriceChange24h) > trendingAbove {
		u -= trendUtilization
	}
	return math.Max(minUtilization, math.Min(maxUtilization, u))
}
