package biometrics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"DefiGuard/internal/domain/models"
	"DefiGuard/pkg/config"
)

// Reference points for the behavioral scores, in milliseconds.
const (
	intervalCenter = 200.0
	intervalScale  = 200.0
	holdCenter     = 100.0
	holdScale      = 100.0
	velocityScale  = 1000.0
	accelScale     = 500.0
	efficiencyRef  = 0.7
	efficiencyDiv  = 0.3
)

// Verifier scores a behavioral sample against fixed human-like reference patterns.
// It holds only immutable configuration and is safe for concurrent use.
type Verifier struct {
	cfg config.BiometricConfig
}

func NewVerifier(cfg config.BiometricConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify reports whether the weighted similarity reaches the configured threshold.
// Samples that fail validation are never verified.
func (v *Verifier) Verify(sample models.BiometricSample) bool {
	scores, ok := v.Score(sample)
	if !ok {
		return false
	}
	return scores.Aggregate >= v.cfg.SimilarityThreshold
}

// Score returns the three sub-scores and their weighted aggregate.
// ok is false, with all scores zero, when the sample is too small to judge.
func (v *Verifier) Score(sample models.BiometricSample) (models.BiometricScores, bool) {
	if !v.valid(sample) {
		return models.BiometricScores{}, false
	}
	s := models.BiometricScores{
		Keystroke: clamp01(keystrokeScore(sample.KeystrokePatterns)),
		Mouse:     clamp01(mouseScore(sample.MouseMovements)),
		Timing:    clamp01(timingScore(sample.TransactionTiming)),
	}
	w := v.cfg.Weights
	s.Aggregate = s.Keystroke*w.Keystroke + s.Mouse*w.Mouse + s.Timing*w.Timing
	return s, true
}

func (v *Verifier) valid(s models.BiometricSample) bool {
	return len(s.KeystrokePatterns) >= v.cfg.MinPatterns &&
		len(s.MouseMovements) >= v.cfg.MinPatterns &&
		len(s.TransactionTiming) > 0
}

// keystrokeScore averages the rhythm score of consecutive key pairs. The first key has
// no predecessor and counts as a perfect 1.
func keystrokeScore(p []models.KeystrokePattern) float64 {
	if len(p) == 0 {
		return 0
	}
	sum := 1.0
	for i := 1; i < len(p); i++ {
		interval := p[i].PressTime - p[i-1].ReleaseTime
		hold := p[i].ReleaseTime - p[i].PressTime
		sum += (decay(interval, intervalCenter, intervalScale) + decay(hold, holdCenter, holdScale)) / 2
	}
	return sum / float64(len(p))
}

// mouseScore rewards smooth velocity and acceleration changes. Same first-sample rule as keystrokes.
func mouseScore(m []models.MouseMovement) float64 {
	if len(m) == 0 {
		return 0
	}
	sum := 1.0
	for i := 1; i < len(m); i++ {
		dv := m[i].Velocity - m[i-1].Velocity
		da := m[i].Acceleration - m[i-1].Acceleration
		sum += (decay(dv, 0, velocityScale) + decay(da, 0, accelScale)) / 2
	}
	return sum / float64(len(m))
}

func timingScore(t []models.TransactionTiming) float64 {
	if len(t) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range t {
		eff := 0.0
		if x.TotalDuration > 0 {
			eff = (x.ConfirmTime - x.StartTime) / x.TotalDuration
		}
		sum += decay(eff, efficiencyRef, efficiencyDiv)
	}
	return sum / float64(len(t))
}

func decay(x, center, scale float64) float64 {
	return math.Exp(-math.Abs(x-center) / scale)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

type sampleDigest struct {
	KeystrokeHash string `json:"keystrokeHash"`
	MouseHash     string `json:"mouseHash"`
	TimingHash    string `json:"timingHash"`
}

// Hash returns a deterministic SHA-256 digest of the sample. Each list is serialized
// as ':'-separated fields and '|'-separated records, hashed on its own, and the three
// labelled hex digests are hashed together.
func (v *Verifier) Hash(sample models.BiometricSample) [32]byte {
	keys := make([]string, len(sample.KeystrokePatterns))
	for i, p := range sample.KeystrokePatterns {
		keys[i] = record(p.Key, num(p.PressTime), num(p.ReleaseTime))
	}
	moves := make([]string, len(sample.MouseMovements))
	for i, m := range sample.MouseMovements {
		moves[i] = record(num(m.X), num(m.Y), num(m.Timestamp), num(m.Velocity), num(m.Acceleration))
	}
	timings := make([]string, len(sample.TransactionTiming))
	for i, t := range sample.TransactionTiming {
		timings[i] = record(num(t.StartTime), num(t.ConfirmTime), num(t.TotalDuration))
	}

	// Marshal of a flat struct of hex strings cannot fail.
	b, _ := json.Marshal(sampleDigest{
		KeystrokeHash: hexDigest(strings.Join(keys, "|")),
		MouseHash:     hexDigest(strings.Join(moves, "|")),
		TimingHash:    hexDigest(strings.Join(timings, "|")),
	})
	return sha256.Sum256(b)
}

func record(fields ...string) string { return strings.Join(fields, ":") }

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func hexDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
