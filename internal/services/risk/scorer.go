package risk

import (
	"math"

	"DefiGuard/internal/domain/models"
	"DefiGuard/pkg/config"
)

const (
	// amounts and daily volume are assumed below 10^10 and 10^12
	amountDecades = 10.0
	volumeDecades = 12.0

	offHoursRisk = 0.8
	dayHoursRisk = 0.2
	weekendRisk  = 0.7
	weekdayRisk  = 0.3
)

// Contributions is the per-term breakdown of a risk score.
type Contributions struct {
	Amount        float64 `json:"amount"`
	Volume        float64 `json:"volume"`
	Trust         float64 `json:"trust"`
	Timing        float64 `json:"timing"`
	Base          float64 `json:"base"`
	LowConfidence float64 `json:"low_confidence"`
	Score         float64 `json:"score"`
}

// Scorer is a stateless weighted-sum risk model.
type Scorer struct {
	cfg config.RiskConfig
}

func NewScorer(cfg config.RiskConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Predict returns the risk score in [0,1]. NaN inputs yield NaN.
func (s *Scorer) Predict(f models.TransactionFeatures) float64 {
	return s.Breakdown(f).Score
}

// Breakdown computes the score and exposes each weighted term.
func (s *Scorer) Breakdown(f models.TransactionFeatures) Contributions {
	w := s.cfg.Weights
	c := Contributions{
		Amount: w.Amount * logScale(f.Amount, amountDecades),
		Volume: w.Volume * logScale(f.HistoricalVolume, volumeDecades),
		Trust:  w.Trust * (1 - f.RecipientTrustScore),
		Timing: w.Timing * TimingRisk(f.TimeOfDay, f.DayOfWeek),
	}
	c.Base = math.Min(c.Amount+c.Volume+c.Trust+c.Timing, s.cfg.MaxScore)

	score := c.Base
	if f.BiometricConfidence < s.cfg.MinConfidence {
		c.LowConfidence = 1 - f.BiometricConfidence
		score += c.LowConfidence
	}
	c.Score = Clamp(score, 0, s.cfg.MaxScore)
	return c
}

// TimingRisk averages the hour and weekday risk. Hours outside 06..22 and weekends are riskier.
func TimingRisk(hour, day int) float64 {
	hourRisk := dayHoursRisk
	if hour < 6 || hour > 22 {
		hourRisk = offHoursRisk
	}
	dayRisk := weekdayRisk
	if day == 0 || day == 6 {
		dayRisk = weekendRisk
	}
	return (hourRisk + dayRisk) / 2
}

func logScale(v, decades float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, math.Log10(v)/decades))
}

// Clamp bounds x to [lo, hi] and keeps NaN as NaN.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return x
	}
	return math.Max(lo, math.Min(hi, x))
}
