package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RiskAssessment is the result of assessing one prospective transfer.
type RiskAssessment struct {
	ID                string              `json:"id"`
	From              string              `json:"from"`
	To                string              `json:"to"`
	Amount            float64             `json:"amount"`
	RiskScore         float64             `json:"risk_score"`
	AnomalyScore      float64             `json:"anomaly_score"`
	Anomalies         []Anomaly           `json:"anomalies"`
	Recommendations   []string            `json:"recommendations"`
	BiometricVerified bool                `json:"biometric_verified"`
	BiometricHash     hexutil.Bytes       `json:"biometric_hash"`
	Features          TransactionFeatures `json:"features"`
	Timestamp         time.Time           `json:"timestamp"`
}

// TransferDecision is the accept/reject outcome of a secure transfer.
type TransferDecision struct {
	Accepted   bool            `json:"accepted"`
	Reasons    []string        `json:"reasons"`
	TxRef      string          `json:"tx_ref,omitempty"`
	Assessment *RiskAssessment `json:"assessment"`
}

// TransferIntent is handed to the signing service once a transfer is accepted.
type TransferIntent struct {
	AssessmentID  string        `json:"assessment_id"`
	From          string        `json:"from"`
	To            string        `json:"to"`
	Amount        float64       `json:"amount"`
	Function      string        `json:"function"`
	BiometricHash hexutil.Bytes `json:"biometric_hash"`
	RiskScore     float64       `json:"risk_score"`
	CreatedAt     time.Time     `json:"created_at"`
}
