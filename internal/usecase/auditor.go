package usecase

import (
	"context"
	"sync"
	"time"

	"DefiGuard/internal/domain/models"
	domrepo "DefiGuard/internal/domain/repository"
	applogger "DefiGuard/pkg/logger"
)

const auditTimeout = 5 * time.Second

// BackgroundAuditor hands records to the audit sink without blocking the caller.
// Sink failures are logged and counted, never returned.
type BackgroundAuditor struct {
	sink    domrepo.AuditSink
	metrics domrepo.Metrics
	l       *applogger.Logger
	wg      sync.WaitGroup
}

func NewBackgroundAuditor(sink domrepo.AuditSink, metrics domrepo.Metrics, l *applogger.Logger) *BackgroundAuditor {
	return &BackgroundAuditor{sink: sink, metrics: metrics, l: l}
}

func (b *BackgroundAuditor) Assessment(ctx context.Context, a *models.RiskAssessment) {
	b.dispatch(ctx, "assessment", func(ctx context.Context) error {
		return b.sink.RecordAssessment(ctx, a)
	})
}

func (b *BackgroundAuditor) Anomalies(ctx context.Context, address string, anomalies []models.Anomaly) {
	if len(anomalies) == 0 {
		return
	}
	b.dispatch(ctx, "anomalies", func(ctx context.Context) error {
		return b.sink.RecordAnomalies(ctx, address, anomalies)
	})
}

func (b *BackgroundAuditor) LiquidityDecision(ctx context.Context, d *models.LiquidityDecision) {
	b.dispatch(ctx, "liquidity_decision", func(ctx context.Context) error {
		return b.sink.RecordLiquidityDecision(ctx, d)
	})
}

// Wait blocks until in-flight records are delivered or ctx is done.
func (b *BackgroundAuditor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *BackgroundAuditor) dispatch(ctx context.Context, kind string, fn func(context.Context) error) {
	// the request may finish before the record is written
	actx := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		actx, cancel := context.WithTimeout(actx, auditTimeout)
		defer cancel()
		if err := fn(actx); err != nil {
			b.metrics.RecordAuditError()
			b.l.Warn("audit record failed", applogger.String("kind", kind), applogger.Error(err))
		}
	}()
}
