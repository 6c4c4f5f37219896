package service

import "DefiGuard/internal/domain/models"

// BiometricVerifier decides whether a behavioral sample matches the expected human pattern.
type BiometricVerifier interface {
	Verify(sample models.BiometricSample) bool
	Score(sample models.BiometricSample) (models.BiometricScores, bool)
	Hash(sample models.BiometricSample) [32]byte
}

// RiskScorer maps a feature vector to a risk score in [0,1].
type RiskScorer interface {
	Predict(f models.TransactionFeatures) float64
}

// AnomalyDetector flags deviations of the current features from the historical baseline.
type AnomalyDetector interface {
	Detect(current, historical models.TransactionFeatures) []models.Anomaly
}

// DriftScorer rates how far the current features sit from a window of past ones, in [0,1].
type DriftScorer interface {
	Score(current models.TransactionFeatures, history []models.TransactionFeatures) float64
}

// LiquidityOptimizer proposes a price range for a pool.
type LiquidityOptimizer interface {
	Validate(m models.LiquidityMetrics) error
	OptimizeRange(m models.LiquidityMetrics) models.OptimalRange
	OptimizeParameters(m models.LiquidityMetrics) models.OptimalParameters
	NeedsAdjustment(current, target models.OptimalRange) bool
}
