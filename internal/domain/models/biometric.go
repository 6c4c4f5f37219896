package models

// BiometricSample is one behavioral capture. Times are milliseconds.
type BiometricSample struct {
	KeystrokePatterns []KeystrokePattern  `json:"keystroke_patterns"`
	MouseMovements    []MouseMovement     `json:"mouse_movements"`
	TransactionTiming []TransactionTiming `json:"transaction_timing"`
}

type KeystrokePattern struct {
	Key         string  `json:"key"`
	PressTime   float64 `json:"press_time"`
	ReleaseTime float64 `json:"release_time"`
}

type MouseMovement struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Timestamp    float64 `json:"timestamp"`
	Velocity     float64 `json:"velocity"`
	Acceleration float64 `json:"acceleration"`
}

type TransactionTiming struct {
	StartTime     float64 `json:"start_time"`
	ConfirmTime   float64 `json:"confirm_time"`
	TotalDuration float64 `json:"total_duration"`
}

// BiometricScores exposes the per-signal similarity scores and their weighted aggregate.
type BiometricScores struct {
	Keystroke float64 `json:"keystroke"`
	Mouse     float64 `json:"mouse"`
	Timing    float64 `json:"timing"`
	Aggregate float64 `json:"aggregate"`
}
