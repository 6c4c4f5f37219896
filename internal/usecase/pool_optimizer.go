package usecase

import (
	"context"
	"fmt"
	"time"

	"DefiGuard/internal/domain/models"
	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/internal/domain/service"
	"DefiGuard/pkg/cache"
	applogger "DefiGuard/pkg/logger"
)

const (
	poolLockTTL    = 30 * time.Second
	poolLockPrefix = "lock:pool"

	ReasonInvalidMetrics = "metrics outside trusted bounds, default range proposed"
	ReasonDrifted        = "current range differs from target"
	ReasonWithinRange    = "current range within tolerance"
	ReasonInProgress     = "adjustment already in progress"
)

// Locker serializes range adjustments per pool across replicas. cache.Service satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// PoolOptimizer decides whether a pool's on-chain range should move and hands accepted
// adjustments to the submitter.
type PoolOptimizer struct {
	pools     domrepo.PoolStateProvider
	optimizer service.LiquidityOptimizer
	submitter domrepo.TransferSubmitter
	locker    Locker
	audit     *BackgroundAuditor
	metrics   domrepo.Metrics
	l         *applogger.Logger
	now       func() time.Time
}

// NewPoolOptimizer creates a PoolOptimizer. locker may be nil for a single replica.
func NewPoolOptimizer(
	pools domrepo.PoolStateProvider,
	optimizer service.LiquidityOptimizer,
	submitter domrepo.TransferSubmitter,
	locker Locker,
	audit *BackgroundAuditor,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *PoolOptimizer {
	return &PoolOptimizer{
		pools:     pools,
		optimizer: optimizer,
		submitter: submitter,
		locker:    locker,
		audit:     audit,
		metrics:   metrics,
		l:         l,
		now:       time.Now,
	}
}

// OptimizePool reads the pool from the chain and decides on it. A missing pool keeps
// domrepo.ErrResourceNotFound in the error chain.
func (o *PoolOptimizer) OptimizePool(ctx context.Context, poolAddress string) (*models.LiquidityDecision, error) {
	st, err := o.pools.PoolState(ctx, poolAddress)
	if err != nil {
		o.metrics.RecordCollaboratorError("pool")
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, err)
	}
	return o.Decide(ctx, st)
}

// Decide computes the target range for a pool snapshot and submits an adjustment when
// the current range is out of tolerance.
func (o *PoolOptimizer) Decide(ctx context.Context, st models.PoolState) (*models.LiquidityDecision, error) {
	start := time.Now()
	d := &models.LiquidityDecision{
		Pool:       st.Address,
		Current:    st.Current,
		Range:      o.optimizer.OptimizeRange(st.Metrics),
		Parameters: o.optimizer.OptimizeParameters(st.Metrics),
		Timestamp:  o.now().UTC(),
	}
	d.Adjust = o.optimizer.NeedsAdjustment(st.Current, d.Range)

	switch {
	case o.optimizer.Validate(st.Metrics) != nil:
		d.Reason = ReasonInvalidMetrics
	case d.Adjust:
		d.Reason = ReasonDrifted
	default:
		d.Reason = ReasonWithinRange
	}

	if d.Adjust {
		if err := o.submit(ctx, d); err != nil {
			return nil, err
		}
	}

	o.metrics.RecordLiquidityDecision(d.Adjust)
	o.metrics.RecordLatency("optimize_pool", time.Since(start).Seconds())
	o.audit.LiquidityDecision(ctx, d)

	o.l.Info("liquidity decision",
		applogger.String("pool", d.Pool),
		applogger.Bool("adjust", d.Adjust),
		applogger.Float64("range_min", d.Range.Min),
		applogger.Float64("range_max", d.Range.Max),
		applogger.String("reason", d.Reason),
	)
	return d, nil
}

func (o *PoolOptimizer) submit(ctx context.Context, d *models.LiquidityDecision) error {
	if o.locker != nil {
		key := cache.GenerateKey(poolLockPrefix, d.Pool)
		ok, err := o.locker.TryLock(ctx, key, poolLockTTL)
		if err != nil {
			// lock backend down: proceed unlocked
			o.l.Warn("pool lock failed", applogger.String("pool", d.Pool), applogger.Error(err))
		} else if !ok {
			d.Adjust = false
			d.Reason = ReasonInProgress
			return nil
		} else {
			defer func() {
				if err := o.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
					o.l.Warn("pool unlock failed", applogger.String("pool", d.Pool), applogger.Error(err))
				}
			}()
		}
	}

	ref, err := o.submitter.SubmitLiquidityAdjustment(ctx, d)
	if err != nil {
		o.metrics.RecordCollaboratorError("submit")
		return fmt.Errorf("%w: submit adjustment for %s: %w", ErrCollaborator, d.Pool, err)
	}
	d.TxRef = ref
	return nil
}

// Process adapts Decide to the pool pipeline.
func (o *PoolOptimizer) Process(ctx context.Context, st *models.PoolState) error {
	_, err := o.Decide(ctx, *st)
	return err
}
