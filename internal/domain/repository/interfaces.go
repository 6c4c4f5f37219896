package repository

import (
	"context"
	"errors"
	"time"

	"DefiGuard/internal/domain/models"
)

// ErrResourceNotFound is returned by a ChainClient when the requested account resource does not exist.
var ErrResourceNotFound = errors.New("resource not found")

// ChainClient reads account state from the ledger node.
type ChainClient interface {
	AccountTransactions(ctx context.Context, address string, limit int) ([]models.ChainTransaction, error)
	AccountResource(ctx context.Context, address, resourceType string, dest interface{}) error
}

type HistoryProvider interface {
	History(ctx context.Context, address string) (models.TransactionHistory, error)
}

// TrustProvider returns the trust score of an account in [0,1].
type TrustProvider interface {
	TrustScore(ctx context.Context, address string) (float64, error)
}

type PoolStateProvider interface {
	PoolState(ctx context.Context, poolAddress string) (models.PoolState, error)
}

// AuditSink receives assessment records. Implementations must not block the caller for long.
type AuditSink interface {
	RecordAssessment(ctx context.Context, a *models.RiskAssessment) error
	RecordAnomalies(ctx context.Context, address string, anomalies []models.Anomaly) error
	RecordLiquidityDecision(ctx context.Context, d *models.LiquidityDecision) error
}

// AuditStore persists audit records.
type AuditStore interface {
	Init(ctx context.Context) error
	StoreAssessment(ctx context.Context, a *models.RiskAssessment) error
	StoreAnomalies(ctx context.Context, address string, at time.Time, anomalies []models.Anomaly) error
	StoreLiquidityDecision(ctx context.Context, d *models.LiquidityDecision) error
	Health(ctx context.Context) error
	Close() error
}

// TransferSubmitter hands accepted transfers, range adjustments and risk responses to the
// signing service. The returned reference identifies the submitted intent.
type TransferSubmitter interface {
	SubmitTransfer(ctx context.Context, intent *models.TransferIntent) (string, error)
	SubmitLiquidityAdjustment(ctx context.Context, d *models.LiquidityDecision) (string, error)
	SubmitRiskResponse(ctx context.Context, r *models.RiskResponse) (string, error)
}

// BiometricSource yields the buffered capture for a session.
type BiometricSource interface {
	Sample(sessionID string) (models.BiometricSample, bool)
}

type Metrics interface {
	RecordAssessment(accepted bool, riskScore float64, seconds float64)
	RecordAnomaly(kind string)
	RecordCollaboratorError(collaborator string)
	RecordAuditError()
	RecordLiquidityDecision(adjust bool)
	RecordLatency(op string, seconds float64)
}
