package models

// Requests for the HTTP endpoints. Defined in domain for reuse by handlers and tests.

type VerifyBiometricRequest struct {
	Sample BiometricSample `json:"sample"`
}

type ScoreRiskRequest struct {
	Features TransactionFeatures `json:"features"`
}

type DetectAnomaliesRequest struct {
	Current    TransactionFeatures   `json:"current"`
	Historical TransactionFeatures   `json:"historical"`
	History    []TransactionFeatures `json:"history,omitempty"`
	Method     string                `json:"method" default:"rules" validate:"oneof=rules zscore"`
}

type LiquidityRequest struct {
	Metrics LiquidityMetrics `json:"metrics"`
}

type AssessRequest struct {
	From      string           `json:"from" validate:"required,hexaddr"`
	To        string           `json:"to" validate:"required,hexaddr"`
	Amount    float64          `json:"amount" validate:"gte=0"`
	Sample    *BiometricSample `json:"sample,omitempty"`
	SessionID string           `json:"session_id,omitempty" validate:"required_without=Sample"`
}

type DecideRequest struct {
	Assessment RiskAssessment `json:"assessment"`
}

type MonitorRequest struct {
	Address string `param:"address" validate:"required,hexaddr"`
}

type OptimizePoolRequest struct {
	Address string `param:"address" validate:"required,hexaddr"`
}
