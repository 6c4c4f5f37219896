package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"DefiGuard/internal/domain/models"
	"DefiGuard/pkg/config"
)

func newScorer() *Scorer {
	return NewScorer(config.DefaultEngineConfig().Risk)
}

func baseFeatures() models.TransactionFeatures {
	return models.TransactionFeatures{
		Amount:              100,
		HistoricalVolume:    500,
		AvgTransactionSize:  100,
		RecipientTrustScore: 0.9,
		BiometricConfidence: 1,
		TimeOfDay:           12,
		DayOfWeek:           3,
	}
}

func TestPredict_KnownValue(t *testing.T) {
	s := newScorer()
	f := baseFeatures()

	want := 0.3*(2.0/10) + 0.2*(math.Log10(500)/12) + 0.2*0.1 + 0.1*((0.2+0.3)/2)
	assert.InDelta(t, want, s.Predict(f), 1e-12)
}

func TestPredict_AlwaysInUnitInterval(t *testing.T) {
	s := newScorer()
	amounts := []float64{0, 0.001, 1, 999, 1e6, 1e10, 1e20}
	volumes := []float64{0, 1, 1e5, 1e12, 1e15}
	trusts := []float64{0, 0.5, 1}
	confs := []float64{0, 0.1, 0.29, 0.3, 1}
	hours := []int{0, 5, 12, 23}

	for _, a := range amounts {
		for _, v := range volumes {
			for _, tr := range trusts {
				for _, c := range confs {
					for _, h := range hours {
						f := models.TransactionFeatures{
							Amount: a, HistoricalVolume: v, RecipientTrustScore: tr,
							BiometricConfidence: c, TimeOfDay: h, DayOfWeek: 6,
						}
						got := s.Predict(f)
						assert.GreaterOrEqual(t, got, 0.0, "features %+v", f)
						assert.LessOrEqual(t, got, 1.0, "features %+v", f)
					}
				}
			}
		}
	}
}

func TestPredict_MonotonicInAmount(t *testing.T) {
	s := newScorer()
	f := baseFeatures()

	prev := -1.0
	for _, a := range []float64{0, 0.01, 0.5, 1, 10, 100, 1e4, 1e8, 1e10, 1e12} {
		f.Amount = a
		got := s.Predict(f)
		assert.GreaterOrEqual(t, got, prev, "amount %v", a)
		prev = got
	}
}

func TestPredict_LowConfidenceNeverLowers(t *testing.T) {
	s := newScorer()
	for _, conf := range []float64{0, 0.1, 0.2, 0.29} {
		f := baseFeatures()
		f.BiometricConfidence = conf
		c := s.Breakdown(f)

		assert.GreaterOrEqual(t, c.Score, c.Base)
		assert.InDelta(t, math.Min(1, c.Base+1-conf), c.Score, 1e-12)
	}
}

func TestPredict_ConfidenceAtThresholdNotAdjusted(t *testing.T) {
	s := newScorer()
	f := baseFeatures()
	f.BiometricConfidence = 0.3

	c := s.Breakdown(f)
	assert.Zero(t, c.LowConfidence)
	assert.Equal(t, c.Base, c.Score)
}

func TestPredict_NaNPropagates(t *testing.T) {
	s := newScorer()
	f := baseFeatures()
	f.Amount = math.NaN()

	assert.NotPanics(t, func() { s.Predict(f) })
	assert.True(t, math.IsNaN(s.Predict(f)))
}

func TestPredict_Idempotent(t *testing.T) {
	s := newScorer()
	f := baseFeatures()
	f.TimeOfDay = 3
	assert.Equal(t, s.Predict(f), s.Predict(f))
}

func TestBreakdown_BiometricWeightReserved(t *testing.T) {
	cfg := config.DefaultEngineConfig().Risk
	want := NewScorer(cfg).Breakdown(baseFeatures())

	cfg.Weights.Biometric = 0.9
	assert.Equal(t, want, NewScorer(cfg).Breakdown(baseFeatures()))

	cfg.Weights.Biometric = 0
	assert.Equal(t, want, NewScorer(cfg).Breakdown(baseFeatures()))
}

func TestTimingRisk(t *testing.T) {
	tests := []struct {
		hour, day int
		want      float64
	}{
		{12, 3, 0.25},
		{3, 3, 0.55},
		{23, 3, 0.55},
		{22, 3, 0.25},
		{6, 0, 0.45},
		{2, 6, 0.75},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, TimingRisk(tt.hour, tt.day), 1e-12, "hour=%d day=%d", tt.hour, tt.day)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-2, 0, 1))
	assert.Equal(t, 1.0, Clamp(5, 0, 1))
	assert.Equal(t, 0.4, Clamp(0.4, 0, 1))
	assert.True(t, math.IsNaN(Clamp(math.NaN(), 0, 1)))
}
