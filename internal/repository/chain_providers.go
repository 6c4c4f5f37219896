package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"DefiGuard/internal/domain/models"
	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/internal/services/features"
	"DefiGuard/internal/services/risk"
	"DefiGuard/pkg/config"
)

const (
	defaultHistoryLimit = 50
	// on-chain trust scores are percentages
	trustScale = 100
)

// ChainHistoryProvider builds account history from ledger transactions.
type ChainHistoryProvider struct {
	chain domrepo.ChainClient
	limit int
}

func NewChainHistoryProvider(chain domrepo.ChainClient, cfg *config.Config) *ChainHistoryProvider {
	limit := cfg.Aptos.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &ChainHistoryProvider{chain: chain, limit: limit}
}

func (p *ChainHistoryProvider) History(ctx context.Context, address string) (models.TransactionHistory, error) {
	txs, err := p.chain.AccountTransactions(ctx, address, p.limit)
	if err != nil {
		return models.TransactionHistory{}, fmt.Errorf("history for %s: %w", address, err)
	}
	return features.SummarizeHistory(txs), nil
}

// ChainTrustProvider reads the recipient's trust score from its profile resource.
type ChainTrustProvider struct {
	chain        domrepo.ChainClient
	resourceType string
}

func NewChainTrustProvider(chain domrepo.ChainClient, cfg *config.Config) *ChainTrustProvider {
	return &ChainTrustProvider{
		chain:        chain,
		resourceType: cfg.Aptos.ModuleAddress + "::defi_agent::UserProfile",
	}
}

// TrustScore returns the profile score scaled and clamped to [0,1]. Accounts without a
// profile get the neutral default; any other failure is returned.
func (p *ChainTrustProvider) TrustScore(ctx context.Context, address string) (float64, error) {
	var profile models.UserProfile
	err := p.chain.AccountResource(ctx, address, p.resourceType, &profile)
	if errors.Is(err, domrepo.ErrResourceNotFound) {
		return features.DefaultTrustScore, nil
	}
	if err != nil {
		return 0, fmt.Errorf("trust profile for %s: %w", address, err)
	}
	f, _ := profile.TrustScore.Div(decimal.NewFromInt(trustScale)).Float64()
	return risk.Clamp(f, 0, 1), nil
}

// ChainPoolProvider reads pool metrics and the current range from the pool resource.
type ChainPoolProvider struct {
	chain        domrepo.ChainClient
	resourceType string
}

func NewChainPoolProvider(chain domrepo.ChainClient, cfg *config.Config) *ChainPoolProvider {
	return &ChainPoolProvider{
		chain:        chain,
		resourceType: cfg.Aptos.ModuleAddress + "::liquidity_pool::Pool",
	}
}

func (p *ChainPoolProvider) PoolState(ctx context.Context, poolAddress string) (models.PoolState, error) {
	var res models.PoolResource
	if err := p.chain.AccountResource(ctx, poolAddress, p.resourceType, &res); err != nil {
		return models.PoolState{}, fmt.Errorf("pool %s: %w", poolAddress, err)
	}

	st := models.PoolState{Address: poolAddress}
	st.Metrics.PoolDepth, _ = res.TotalLiquidity.Float64()
	st.Metrics.Volatility, _ = res.Volatility.Float64()
	st.Metrics.Volume24h, _ = res.Volume24h.Float64()
	st.Metrics.CurrentPrice, _ = res.CurrentPrice.Float64()
	st.Metrics.PriceChange24h, _ = res.PriceChange24h.Float64()
	st.Current.Min, _ = res.RangeMin.Float64()
	st.Current.Max, _ = res.RangeMax.Float64()
	return st, nil
}
