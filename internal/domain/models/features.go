package models

// TransactionFeatures is the numeric feature vector describing one prospective transfer.
type TransactionFeatures struct {
	Amount              float64 `json:"amount"`
	HistoricalVolume    float64 `json:"historical_volume"`
	AvgTransactionSize  float64 `json:"avg_transaction_size"`
	RecipientTrustScore float64 `json:"recipient_trust_score"`
	BiometricConfidence float64 `json:"biometric_confidence"`
	// TimeOfDay is the hour 0..23 and DayOfWeek is 0 (Sunday) .. 6.
	TimeOfDay int `json:"time_of_day"`
	DayOfWeek int `json:"day_of_week"`
}

// TransactionHistory summarises the recent transfers of one account.
type TransactionHistory struct {
	Transactions []HistoricalTransaction `json:"transactions"`
	TotalVolume  float64                 `json:"total_volume"`
	AvgAmount    float64                 `json:"avg_amount"`
}

type HistoricalTransaction struct {
	Hash      string  `json:"hash"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
}
