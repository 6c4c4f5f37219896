package usecase

import (
	"context"
	"fmt"

	"DefiGuard/internal/domain/models"
	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/pkg/queue"
)

// AuditJobs returns the queue jobs that persist audit records to the store.
func AuditJobs(store domrepo.AuditStore) []queue.Job {
	return []queue.Job{
		&assessmentAuditJob{store: store},
		&anomalyAuditJob{store: store},
		&liquidityAuditJob{store: store},
	}
}

type assessmentAuditJob struct {
	store domrepo.AuditStore
}

func (j *assessmentAuditJob) Name() string { return "audit-assessment" }
func (j *assessmentAuditJob) Type() string { return models.AuditAssessment }

func (j *assessmentAuditJob) Handle(ctx context.Context, payload interface{}) error {
	a, err := queue.ParsePayload[models.RiskAssessment](payload)
	if err != nil {
		return fmt.Errorf("assessment payload: %w", err)
	}
	return j.store.StoreAssessment(ctx, a)
}

type anomalyAuditJob struct {
	store domrepo.AuditStore
}

func (j *anomalyAuditJob) Name() string { return "audit-anomalies" }
func (j *anomalyAuditJob) Type() string { return models.AuditAnomalies }

func (j *anomalyAuditJob) Handle(ctx context.Context, payload interface{}) error {
	r, err := queue.ParsePayload[models.AnomalyRecord](payload)
	if err != nil {
		return fmt.Errorf("anomaly payload: %w", err)
	}
	return j.store.StoreAnomalies(ctx, r.Address, r.At, r.Anomalies)
}

type liquidityAuditJob struct {
	store domrepo.AuditStore
}

func (j *liquidityAuditJob) Name() string { return "audit-liquidity-decision" }
func (j *liquidityAuditJob) Type() string { return models.AuditLiquidityDecision }

func (j *liquidityAuditJob) Handle(ctx context.Context, payload interface{}) error {
	d, err := queue.ParsePayload[models.LiquidityDecision](payload)
	if err != nil {
		return fmt.Errorf("liquidity decision payload: %w", err)
	}
	return j.store.StoreLiquidityDecision(ctx, d)
}
