package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ChainTransaction is the subset of a ledger transaction used for history building.
type ChainTransaction struct {
	Hash      string             `json:"hash"`
	Sender    string             `json:"sender"`
	Success   bool               `json:"success"`
	Timestamp string             `json:"timestamp"`
	Payload   TransactionPayload `json:"payload"`
}

type TransactionPayload struct {
	Type      string            `json:"type"`
	Function  string            `json:"function"`
	Arguments []json.RawMessage `json:"arguments"`
}

// UserProfile mirrors the on-chain profile resource. Move u64 values arrive as JSON
// strings; decimal accepts both quoted and bare numbers.
type UserProfile struct {
	TrustScore decimal.Decimal `json:"trust_score"`
}

// PoolResource mirrors the on-chain pool resource.
type PoolResource struct {
	TotalLiquidity decimal.Decimal `json:"total_liquidity"`
	Volatility     decimal.Decimal `json:"volatility"`
	Volume24h      decimal.Decimal `json:"volume_24h"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	PriceChange24h decimal.Decimal `json:"price_change_24h"`
	RangeMin       decimal.Decimal `json:"range_min"`
	RangeMax       decimal.Decimal `json:"range_max"`
}
