package models

import "time"

// LiquidityMetrics is a snapshot of pool state.
type LiquidityMetrics struct {
	PoolDepth      float64 `json:"pool_depth"`
	Volatility     float64 `json:"volatility"`
	Volume24h      float64 `json:"volume_24h"`
	CurrentPrice   float64 `json:"current_price"`
	PriceChange24h float64 `json:"price_change_24h"`
}

// OptimalRange holds fractional offsets below and above the current price.
type OptimalRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type OptimalParameters struct {
	MinPrice          float64 `json:"min_price"`
	MaxPrice          float64 `json:"max_price"`
	TargetUtilization float64 `json:"target_utilization"`
}

// PoolState is a pool snapshot together with its currently configured range.
type PoolState struct {
	Address string           `json:"address"`
	Metrics LiquidityMetrics `json:"metrics"`
	Current OptimalRange     `json:"current"`
}

// LiquidityDecision records whether a pool range should be moved and to what.
type LiquidityDecision struct {
	Pool       string            `json:"pool"`
	Current    OptimalRange      `json:"current"`
	Range      OptimalRange      `json:"range"`
	Parameters OptimalParameters `json:"parameters"`
	Adjust     bool              `json:"adjust"`
	Reason     string            `json:"reason"`
	TxRef      string            `json:"tx_ref,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
