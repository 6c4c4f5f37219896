package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
aptos:
  module_address: "0x1"
`))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 50, c.Aptos.HistoryLimit)
	assert.Equal(t, 10*time.Second, c.Aptos.Timeout)
	assert.Equal(t, "transfer_intents", c.Kafka.Topics.TransferIntents)
	assert.Equal(t, []string{"*"}, c.Server.CORSOrigins)
	assert.Equal(t, "defiguard", c.Redis.Prefix)
	assert.Equal(t, 2*time.Second, c.Queue.RetryDelay)
	assert.Equal(t, 10000, c.LocalCache.MaxSize)

	e := c.Engine
	assert.Equal(t, 0.85, e.Biometric.SimilarityThreshold)
	assert.Equal(t, 5, e.Biometric.MinPatterns)
	assert.Equal(t, 0.4, e.Biometric.Weights.Keystroke)
	assert.Equal(t, 0.3, e.Risk.Weights.Amount)
	assert.Equal(t, 0.1, e.Risk.Weights.Timing)
	assert.Equal(t, 0.3, e.Risk.MinConfidence)
	assert.Equal(t, 0.85, e.Anomaly.Threshold)
	assert.Equal(t, 1000.0, e.Liquidity.MinPoolDepth)
	assert.Equal(t, 0.75, e.Decision.RiskThreshold)
}

func TestParse_OverridesEngine(t *testing.T) {
	c, err := Parse([]byte(`
aptos:
  module_address: "0x1"
engine:
  decision:
    risk_threshold: 0.6
`))
	require.NoError(t, err)
	assert.Equal(t, 0.6, c.Engine.Decision.RiskThreshold)
	assert.Equal(t, 0.7, c.Engine.Decision.HighRiskRecommendation)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing module address", `environment: test`},
		{"kafka without brokers", "aptos:\n  module_address: \"0x1\"\nkafka:\n  enabled: true\n"},
		{"bad threshold", "aptos:\n  module_address: \"0x1\"\nengine:\n  decision:\n    risk_threshold: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("aptos:\n  module_address: \"0x1\"\n"), 0o600))

	t.Setenv("MODULE_ADDRESS", "0xabc")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", c.Aptos.ModuleAddress)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
}

func TestDefaultEngineConfig(t *testing.T) {
	e := DefaultEngineConfig()
	assert.NoError(t, e.Validate())
	assert.Equal(t, 0.01, e.Liquidity.AdjustTolerance)
}
