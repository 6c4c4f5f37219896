package models

import "time"

// Audit message types carried by the audit queue and the audit topic.
const (
	AuditAssessment        = "audit.assessment"
	AuditAnomalies         = "audit.anomalies"
	AuditLiquidityDecision = "audit.liquidity_decision"
)

// AnomalyRecord groups the anomalies observed for one address at one time.
type AnomalyRecord struct {
	Address   string    `json:"address"`
	At        time.Time `json:"at"`
	Anomalies []Anomaly `json:"anomalies"`
}

// AuditEvent is the envelope published to the audit topic.
type AuditEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}
