package anomaly

import (
	"math"

	"DefiGuard/internal/domain/models"
	"DefiGuard/internal/services/features"
	"DefiGuard/pkg/config"
)

// ZScoreDetector scores a transaction by its largest standard-score deviation from a
// window of previous feature vectors. The caller owns the window.
type ZScoreDetector struct {
	cfg config.AnomalyConfig
}

func NewZScoreDetector(cfg config.AnomalyConfig) *ZScoreDetector {
	return &ZScoreDetector{cfg: cfg}
}

// Score returns max(|z|)/threshold capped at 1 over amount, volume and average size.
// Fewer than two history points give 0.
func (d *ZScoreDetector) Score(current models.TransactionFeatures, history []models.TransactionFeatures) float64 {
	if len(history) < 2 {
		return 0
	}
	amounts := make([]float64, len(history))
	volumes := make([]float64, len(history))
	sizes := make([]float64, len(history))
	for i, h := range history {
		amounts[i] = h.Amount
		volumes[i] = h.HistoricalVolume
		sizes[i] = h.AvgTransactionSize
	}

	maxZ := math.Max(
		math.Abs(features.ZScore(current.Amount, amounts)),
		math.Max(
			math.Abs(features.ZScore(current.HistoricalVolume, volumes)),
			math.Abs(features.ZScore(current.AvgTransactionSize, sizes)),
		),
	)
	return math.Min(maxZ/d.cfg.ZScoreThreshold, 1)
}

// Evaluate wraps Score as a score result.
func (d *ZScoreDetector) Evaluate(current models.TransactionFeatures, history []models.TransactionFeatures) models.AnomalyResult {
	return models.AnomalyResult{Kind: models.AnomalyResultScore, Score: d.Score(current, history)}
}
