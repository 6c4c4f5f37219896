package models

type AnomalyType string

const (
	AnomalyAmount     AnomalyType = "amount"
	AnomalyTiming     AnomalyType = "timing"
	AnomalyBehavioral AnomalyType = "behavioral"
)

// Anomaly is a flagged deviation. Severity is in [0,1].
type Anomaly struct {
	Type     AnomalyType `json:"type"`
	Severity float64     `json:"severity"`
	Details  string      `json:"details"`
}

type AnomalyResultKind string

const (
	AnomalyResultScore AnomalyResultKind = "score"
	AnomalyResultFlags AnomalyResultKind = "flags"
)

// AnomalyResult is the output of either detector variant: a bare score or a list of flags.
type AnomalyResult struct {
	Kind  AnomalyResultKind `json:"kind"`
	Score float64           `json:"score,omitempty"`
	Flags []Anomaly         `json:"flags,omitempty"`
}

// Aggregate reduces the result to a single score in [0,1].
func (r AnomalyResult) Aggregate() float64 {
	if r.Kind == AnomalyResultScore {
		return r.Score
	}
	return MaxSeverity(r.Flags)
}

// MaxSeverity returns the highest severity, or 0 for an empty list.
func MaxSeverity(anomalies []Anomaly) float64 {
	max := 0.0
	for _, a := range anomalies {
		if a.Severity > max {
			max = a.Severity
		}
	}
	return max
}
