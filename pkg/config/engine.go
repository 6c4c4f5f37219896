package config

import (
	"fmt"

	"github.com/creasty/defaults"
)

// EngineConfig holds the tunables of the scoring engines. It is read once at startup
// and passed by value into each engine constructor.
type EngineConfig struct {
	Biometric BiometricConfig `yaml:"biometric"`
	Risk      RiskConfig      `yaml:"risk"`
	Anomaly   AnomalyConfig   `yaml:"anomaly"`
	Liquidity LiquidityConfig `yaml:"liquidity"`
	Decision  DecisionConfig  `yaml:"decision"`
}

type BiometricConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" default:"0.85"`
	MinPatterns         int     `yaml:"min_patterns" default:"5"`
	Weights             struct {
		Keystroke float64 `yaml:"keystroke" default:"0.4"`
		Mouse     float64 `yaml:"mouse" default:"0.3"`
		Timing    float64 `yaml:"timing" default:"0.3"`
	} `yaml:"weights"`
}

type RiskConfig struct {
	Weights struct {
		Amount float64 `yaml:"amount" default:"0.3"`
		Volume float64 `yaml:"volume" default:"0.2"`
		Trust  float64 `yaml:"trust" default:"0.2"`
		// Biometric is reserved and not read by the scorer. It keeps the published weight
		// set summing to 1; biometric confidence enters the score only through the
		// low-confidence adjustment.
		Biometric float64 `yaml:"biometric" default:"0.2"`
		Timing    float64 `yaml:"timing" default:"0.1"`
	} `yaml:"weights"`
	MinConfidence float64 `yaml:"min_confidence" default:"0.3"`
	MaxScore      float64 `yaml:"max_score" default:"1.0"`
}

type AnomalyConfig struct {
	Threshold       float64 `yaml:"threshold" default:"0.85"`
	ZScoreThreshold float64 `yaml:"zscore_threshold" default:"3.0"`
}

type LiquidityConfig struct {
	MinPoolDepth      float64 `yaml:"min_pool_depth" default:"1000"`
	MaxVolatility     float64 `yaml:"max_volatility" default:"0.5"`
	DefaultRange      float64 `yaml:"default_range" default:"0.1"`
	MaxRange          float64 `yaml:"max_range" default:"0.5"`
	TargetUtilization float64 `yaml:"target_utilization" default:"0.8"`
	// AdjustTolerance is the bound difference above which an on-chain range is rebalanced.
	AdjustTolerance float64 `yaml:"adjust_tolerance" default:"0.01"`
}

type DecisionConfig struct {
	RiskThreshold          float64 `yaml:"risk_threshold" default:"0.75"`
	HighRiskRecommendation float64 `yaml:"high_risk_recommendation" default:"0.7"`
	AnomalyRecommendation  float64 `yaml:"anomaly_recommendation" default:"0.5"`
	AmountMultiple         float64 `yaml:"amount_multiple" default:"3"`
}

// DefaultEngineConfig returns the engine constants used when no override is configured.
func DefaultEngineConfig() EngineConfig {
	var c EngineConfig
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("engine defaults: %v", err))
	}
	return c
}

func (c EngineConfig) Validate() error {
	b := c.Biometric
	if b.SimilarityThreshold < 0 || b.SimilarityThreshold > 1 {
		return fmt.Errorf("biometric.similarity_threshold must be in [0,1], got %v", b.SimilarityThreshold)
	}
	if b.MinPatterns < 1 {
		return fmt.Errorf("biometric.min_patterns must be >= 1, got %d", b.MinPatterns)
	}
	if c.Risk.MaxScore <= 0 || c.Risk.MaxScore > 1 {
		return fmt.Errorf("risk.max_score must be in (0,1], got %v", c.Risk.MaxScore)
	}
	l := c.Liquidity
	if l.DefaultRange <= 0 || l.DefaultRange > l.MaxRange {
		return fmt.Errorf("liquidity.default_range must be in (0, max_range], got %v", l.DefaultRange)
	}
	if c.Decision.RiskThreshold < 0 || c.Decision.RiskThreshold > 1 {
		return fmt.Errorf("decision.risk_threshold must be in [0,1], got %v", c.Decision.RiskThreshold)
	}
	return nil
}
