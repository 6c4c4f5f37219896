package anomaly

import (
	"math"

	"DefiGuard/internal/domain/models"
	"DefiGuard/pkg/config"
)

const (
	amountMultiple     = 2.0
	amountSeverityDiv  = 5.0
	lowConfidence      = 0.7
	lowConfidenceBump  = 0.2
	timingSeverity     = 0.7
	behavioralSeverity = 0.9
	behavioralMultiple = 3.0
	lowTrust           = 0.5

	detailsAmount     = "Unusual transaction amount detected"
	detailsTiming     = "Unusual transaction timing detected"
	detailsBehavioral = "Unusual transaction behavior pattern detected"
)

// RuleDetector flags a single transaction against a historical baseline using fixed rules.
type RuleDetector struct {
	cfg config.AnomalyConfig
}

func NewRuleDetector(cfg config.AnomalyConfig) *RuleDetector {
	return &RuleDetector{cfg: cfg}
}

// Detect returns triggered anomalies in the order amount, timing, behavioral.
// The result is never nil.
func (d *RuleDetector) Detect(current, historical models.TransactionFeatures) []models.Anomaly {
	out := make([]models.Anomaly, 0, 3)

	if a, ok := amountRule(current); ok {
		out = append(out, a)
	}
	if current.TimeOfDay < 6 || current.TimeOfDay > 22 {
		out = append(out, models.Anomaly{Type: models.AnomalyTiming, Severity: timingSeverity, Details: detailsTiming})
	}
	if d.behavioralScore(current, historical) > d.cfg.Threshold {
		out = append(out, models.Anomaly{Type: models.AnomalyBehavioral, Severity: behavioralSeverity, Details: detailsBehavioral})
	}
	return out
}

// Evaluate wraps Detect as a flags result.
func (d *RuleDetector) Evaluate(current, historical models.TransactionFeatures) models.AnomalyResult {
	return models.AnomalyResult{Kind: models.AnomalyResultFlags, Flags: d.Detect(current, historical)}
}

// amountRule compares the amount with the account's own average size. A zero average
// with non-zero volume saturates the severity.
func amountRule(f models.TransactionFeatures) (models.Anomaly, bool) {
	if f.HistoricalVolume == 0 || !(f.Amount > f.AvgTransactionSize*amountMultiple) {
		return models.Anomaly{}, false
	}
	severity := 1.0
	if f.AvgTransactionSize > 0 {
		severity = math.Min(1, (f.Amount/f.AvgTransactionSize)/amountSeverityDiv)
	}
	if f.BiometricConfidence < lowConfidence {
		severity = math.Min(1, severity+lowConfidenceBump)
	}
	return models.Anomaly{Type: models.AnomalyAmount, Severity: severity, Details: detailsAmount}, true
}

func (d *RuleDetector) behavioralScore(current, historical models.TransactionFeatures) float64 {
	score := 0.0
	if current.Amount > historical.AvgTransactionSize*behavioralMultiple {
		score += 0.4
	}
	if current.BiometricConfidence < lowConfidence {
		score += 0.3
	}
	if current.RecipientTrustScore < lowTrust {
		score += 0.3
	}
	return score
}
