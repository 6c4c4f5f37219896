package models

import "time"

// MonitorReport is the outcome of one monitoring pass over an account's recent transfers.
type MonitorReport struct {
	Address      string              `json:"address"`
	Transactions int                 `json:"transactions"`
	Features     TransactionFeatures `json:"features"`
	Baseline     TransactionFeatures `json:"baseline"`
	Anomalies    []Anomaly           `json:"anomalies"`
	// DriftScore is the normalized z-score of the latest transfer against the window.
	DriftScore float64 `json:"drift_score"`
	// Risky lists the transfers of the window scored above the mitigation threshold.
	Risky     []TransactionRisk `json:"risky_transactions"`
	Responses []string          `json:"responses,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type TransactionRisk struct {
	Hash      string  `json:"hash"`
	RiskScore float64 `json:"risk_score"`
}

type RiskResponseKind string

const (
	RiskResponseMitigation RiskResponseKind = "risky_transaction"
	RiskResponseAnomaly    RiskResponseKind = "anomaly"
)

// RiskResponse asks the on-chain agent to act on a risky transfer or a detected anomaly.
type RiskResponse struct {
	Kind      RiskResponseKind `json:"kind"`
	Address   string           `json:"address"`
	Function  string           `json:"function"`
	TxHash    string           `json:"tx_hash,omitempty"`
	RiskScore float64          `json:"risk_score,omitempty"`
	Anomaly   *Anomaly         `json:"anomaly,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
