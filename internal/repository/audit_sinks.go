package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"DefiGuard/internal/domain/models"
	domrepo "DefiGuard/internal/domain/repository"
	pkgkafka "DefiGuard/pkg/kafka"
	applogger "DefiGuard/pkg/logger"
	"DefiGuard/pkg/queue"
)

// QueueAuditSink enqueues audit records for the audit job to persist.
type QueueAuditSink struct {
	q   queue.QueueService
	now func() time.Time
}

func NewQueueAuditSink(q queue.QueueService) *QueueAuditSink {
	return &QueueAuditSink{q: q, now: time.Now}
}

func (s *QueueAuditSink) RecordAssessment(ctx context.Context, a *models.RiskAssessment) error {
	return s.q.PublishMessage(ctx, models.AuditAssessment, a)
}

func (s *QueueAuditSink) RecordAnomalies(ctx context.Context, address string, anomalies []models.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}
	return s.q.PublishMessage(ctx, models.AuditAnomalies, models.AnomalyRecord{
		Address:   address,
		At:        s.now(),
		Anomalies: anomalies,
	})
}

func (s *QueueAuditSink) RecordLiquidityDecision(ctx context.Context, d *models.LiquidityDecision) error {
	return s.q.PublishMessage(ctx, models.AuditLiquidityDecision, d)
}

// StoreAuditSink writes straight to the audit store.
type StoreAuditSink struct {
	store domrepo.AuditStore
	now   func() time.Time
}

func NewStoreAuditSink(store domrepo.AuditStore) *StoreAuditSink {
	return &StoreAuditSink{store: store, now: time.Now}
}

// RecordAssessment writes the assessment row only. Its anomalies arrive separately
// through RecordAnomalies, as on the queue route.
func (s *StoreAuditSink) RecordAssessment(ctx context.Context, a *models.RiskAssessment) error {
	return s.store.StoreAssessment(ctx, a)
}

func (s *StoreAuditSink) RecordAnomalies(ctx context.Context, address string, anomalies []models.Anomaly) error {
	return s.store.StoreAnomalies(ctx, address, s.now(), anomalies)
}

func (s *StoreAuditSink) RecordLiquidityDecision(ctx context.Context, d *models.LiquidityDecision) error {
	return s.store.StoreLiquidityDecision(ctx, d)
}

// KafkaAuditPublisher mirrors audit records onto a topic for downstream consumers.
type KafkaAuditPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	now      func() time.Time
}

func NewKafkaAuditPublisher(producer *pkgkafka.Producer, topic string) *KafkaAuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaAuditPublisher) RecordAssessment(ctx context.Context, a *models.RiskAssessment) error {
	return p.publish(ctx, a.From, a.ID, models.AuditAssessment, a)
}

func (p *KafkaAuditPublisher) RecordAnomalies(ctx context.Context, address string, anomalies []models.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}
	at := p.now()
	return p.publish(ctx, address, "", models.AuditAnomalies, models.AnomalyRecord{Address: address, At: at, Anomalies: anomalies})
}

func (p *KafkaAuditPublisher) RecordLiquidityDecision(ctx context.Context, d *models.LiquidityDecision) error {
	return p.publish(ctx, d.Pool, "", models.AuditLiquidityDecision, d)
}

func (p *KafkaAuditPublisher) publish(ctx context.Context, key, traceID, kind string, payload interface{}) error {
	var headers map[string]string
	if traceID != "" {
		headers = map[string]string{pkgkafka.TraceHeader: traceID}
	}
	event := models.AuditEvent{Type: kind, Payload: payload, At: p.now()}
	if err := p.producer.PublishWithHeaders(ctx, p.topic, []byte(key), event, headers); err != nil {
		return fmt.Errorf("audit %s: %w", kind, err)
	}
	return nil
}

// LogAuditSink writes audit records to the log only.
type LogAuditSink struct {
	l *applogger.Logger
}

func NewLogAuditSink(l *applogger.Logger) *LogAuditSink {
	return &LogAuditSink{l: l}
}

func (s *LogAuditSink) RecordAssessment(_ context.Context, a *models.RiskAssessment) error {
	s.l.Info("risk assessment",
		applogger.String("id", a.ID),
		applogger.String("from", a.From),
		applogger.String("to", a.To),
		applogger.Float64("amount", a.Amount),
		applogger.Float64("risk_score", a.RiskScore),
		applogger.Float64("anomaly_score", a.AnomalyScore),
		applogger.Bool("biometric_verified", a.BiometricVerified),
	)
	return nil
}

func (s *LogAuditSink) RecordAnomalies(_ context.Context, address string, anomalies []models.Anomaly) error {
	for _, an := range anomalies {
		s.l.Info("anomaly detected",
			applogger.String("address", address),
			applogger.String("type", string(an.Type)),
			applogger.Float64("severity", an.Severity),
			applogger.String("details", an.Details),
		)
	}
	return nil
}

func (s *LogAuditSink) RecordLiquidityDecision(_ context.Context, d *models.LiquidityDecision) error {
	s.l.Info("liquidity decision",
		applogger.String("pool", d.Pool),
		applogger.Bool("adjust", d.Adjust),
		applogger.Float64("range_min", d.Range.Min),
		applogger.Float64("range_max", d.Range.Max),
		applogger.String("reason", d.Reason),
	)
	return nil
}

// FanoutAuditSink delivers every record to all sinks and joins their errors.
type FanoutAuditSink []domrepo.AuditSink

func (f FanoutAuditSink) RecordAssessment(ctx context.Context, a *models.RiskAssessment) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.RecordAssessment(ctx, a))
	}
	return errors.Join(errs...)
}

func (f FanoutAuditSink) RecordAnomalies(ctx context.Context, address string, anomalies []models.Anomaly) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.RecordAnomalies(ctx, address, anomalies))
	}
	return errors.Join(errs...)
}

func (f FanoutAuditSink) RecordLiquidityDecision(ctx context.Context, d *models.LiquidityDecision) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.RecordLiquidityDecision(ctx, d))
	}
	return errors.Join(errs...)
}
