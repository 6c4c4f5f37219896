package liquidity

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DefiGuard/internal/domain/models"
	"DefiGuard/pkg/config"
)

func newOptimizer() *Optimizer {
	return NewOptimizer(config.DefaultEngineConfig().Liquidity)
}

func deepPool() models.LiquidityMetrics {
	return models.LiquidityMetrics{
		PoolDepth:      1000000,
		Volatility:     0.15,
		Volume24h:      500000,
		CurrentPrice:   1.2,
		PriceChange24h: 0.05,
	}
}

func TestOptimizeRange_DeepPool(t *testing.T) {
	o := newOptimizer()
	r := o.OptimizeRange(deepPool())

	assert.GreaterOrEqual(t, r.Min, 0.1)
	assert.LessOrEqual(t, r.Min, 0.5)
	assert.GreaterOrEqual(t, r.Max, 0.1)
	assert.LessOrEqual(t, r.Max, 0.5)
	// depth factor 2 pushes both bounds past the cap
	assert.Equal(t, models.OptimalRange{Min: 0.5, Max: 0.5}, r)
	assert.Equal(t, r, o.OptimizeRange(deepPool()))
}

func TestOptimizeRange_Asymmetric(t *testing.T) {
	o := newOptimizer()
	m := models.LiquidityMetrics{
		PoolDepth:      10000,
		Volatility:     0.1,
		Volume24h:      5000,
		CurrentPrice:   10,
		PriceChange24h: 2,
	}
	r := o.OptimizeRange(m)

	// base 0.2, trend 0.1, depth 1
	assert.InDelta(t, 0.18, r.Min, 1e-12)
	assert.InDelta(t, 0.22, r.Max, 1e-12)
}

func TestOptimizeRange_FloorApplied(t *testing.T) {
	o := newOptimizer()
	m := models.LiquidityMetrics{PoolDepth: 2000, Volatility: 0.02, Volume24h: 100, CurrentPrice: 3}

	assert.Equal(t, models.OptimalRange{Min: 0.1, Max: 0.1}, o.OptimizeRange(m))
}

func TestOptimizeRange_InvalidDegradesToDefault(t *testing.T) {
	o := newOptimizer()
	tests := []struct {
		name   string
		mutate func(m *models.LiquidityMetrics)
	}{
		{"shallow pool", func(m *models.LiquidityMetrics) { m.PoolDepth = 500 }},
		{"too volatile", func(m *models.LiquidityMetrics) { m.Volatility = 0.6 }},
		{"no volume", func(m *models.LiquidityMetrics) { m.Volume24h = 0 }},
		{"zero price", func(m *models.LiquidityMetrics) { m.CurrentPrice = 0 }},
		{"nan depth", func(m *models.LiquidityMetrics) { m.PoolDepth = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := deepPool()
			tt.mutate(&m)
			assert.NotPanics(t, func() { o.OptimizeRange(m) })
			assert.Equal(t, models.OptimalRange{Min: 0.1, Max: 0.1}, o.OptimizeRange(m))

			err := o.Validate(m)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr.Violations, 1)
		})
	}
}

func TestOptimizeParameters(t *testing.T) {
	o := newOptimizer()
	p := o.OptimizeParameters(deepPool())

	assert.InDelta(t, 0.6, p.MinPrice, 1e-12)
	assert.InDelta(t, 1.8, p.MaxPrice, 1e-12)
	assert.InDelta(t, 0.7, p.TargetUtilization, 1e-12)
}

func TestTargetUtilization(t *testing.T) {
	o := newOptimizer()
	tests := []struct {
		name string
		m    models.LiquidityMetrics
		want float64
	}{
		{"calm", models.LiquidityMetrics{PoolDepth: 1000, Volatility: 0.05, Volume24h: 10}, 0.8},
		{"busy", models.LiquidityMetrics{PoolDepth: 1000, Volatility: 0.05, Volume24h: 5000}, 0.9},
		{"volatile trending", models.LiquidityMetrics{PoolDepth: 1000, Volatility: 0.3, Volume24h: 10, PriceChange24h: -0.2}, 0.65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, o.targetUtilization(tt.m), 1e-12)
		})
	}
}

func TestTargetUtilization_Clamped(t *testing.T) {
	cfg := config.DefaultEngineConfig().Liquidity
	cfg.TargetUtilization = 0.95
	o := NewOptimizer(cfg)
	assert.Equal(t, 0.9, o.targetUtilization(models.LiquidityMetrics{PoolDepth: 1, Volume24h: 10}))

	cfg.TargetUtilization = 0.4
	o = NewOptimizer(cfg)
	assert.Equal(t, 0.5, o.targetUtilization(models.LiquidityMetrics{Volatility: 0.4, PriceChange24h: 1}))
}

func TestNeedsAdjustment(t *testing.T) {
	o := newOptimizer()
	target := models.OptimalRange{Min: 0.2, Max: 0.3}

	assert.False(t, o.NeedsAdjustment(models.OptimalRange{Min: 0.205, Max: 0.295}, target))
	assert.True(t, o.NeedsAdjustment(models.OptimalRange{Min: 0.1, Max: 0.3}, target))
	assert.True(t, o.NeedsAdjustment(models.OptimalRange{Min: 0.2, Max: 0.5}, target))
}
