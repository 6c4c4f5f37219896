package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"DefiGuard/internal/domain/models"
	"DefiGuard/pkg/config"
	pkgkafka "DefiGuard/pkg/kafka"
	applogger "DefiGuard/pkg/logger"
)

// KafkaTransferSubmitter hands accepted transfers, range adjustments and risk responses
// to the signing service through Kafka. Messages are keyed by sender or pool so each
// account's intents stay ordered on one partition.
type KafkaTransferSubmitter struct {
	producer       *pkgkafka.Producer
	transferTopic  string
	liquidityTopic string
	responseTopic  string
	l              *applogger.Logger
}

func NewKafkaTransferSubmitter(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) *KafkaTransferSubmitter {
	return &KafkaTransferSubmitter{
		producer:       producer,
		transferTopic:  cfg.Kafka.Topics.TransferIntents,
		liquidityTopic: cfg.Kafka.Topics.LiquidityDecisions,
		responseTopic:  cfg.Kafka.Topics.RiskResponses,
		l:              l,
	}
}

// SubmitTransfer publishes the intent and returns its reference, the assessment id.
func (s *KafkaTransferSubmitter) SubmitTransfer(ctx context.Context, intent *models.TransferIntent) (string, error) {
	ref := intent.AssessmentID
	if ref == "" {
		ref = uuid.NewString()
	}
	err := s.producer.PublishWithHeaders(ctx, s.transferTopic, []byte(intent.From), intent,
		map[string]string{pkgkafka.TraceHeader: ref})
	if err != nil {
		return "", fmt.Errorf("submit transfer: %w", err)
	}
	s.l.Info("transfer intent submitted",
		applogger.String("ref", ref),
		applogger.String("from", intent.From),
		applogger.String("to", intent.To),
		applogger.Float64("amount", intent.Amount))
	return ref, nil
}

func (s *KafkaTransferSubmitter) SubmitLiquidityAdjustment(ctx context.Context, d *models.LiquidityDecision) (string, error) {
	ref := uuid.NewString()
	err := s.producer.PublishWithHeaders(ctx, s.liquidityTopic, []byte(d.Pool), d,
		map[string]string{pkgkafka.TraceHeader: ref})
	if err != nil {
		return "", fmt.Errorf("submit liquidity adjustment: %w", err)
	}
	s.l.Info("liquidity adjustment submitted",
		applogger.String("ref", ref),
		applogger.String("pool", d.Pool),
		applogger.Float64("range_min", d.Range.Min),
		applogger.Float64("range_max", d.Range.Max))
	return ref, nil
}

// SubmitRiskResponse publishes a mitigation or anomaly response keyed by the account.
func (s *KafkaTransferSubmitter) SubmitRiskResponse(ctx context.Context, r *models.RiskResponse) (string, error) {
	ref := uuid.NewString()
	err := s.producer.PublishWithHeaders(ctx, s.responseTopic, []byte(r.Address), r,
		map[string]string{pkgkafka.TraceHeader: ref})
	if err != nil {
		return "", fmt.Errorf("submit risk response: %w", err)
	}
	s.l.Info("risk response submitted",
		applogger.String("ref", ref),
		applogger.String("kind", string(r.Kind)),
		applogger.String("address", r.Address),
		applogger.String("function", r.Function))
	return ref, nil
}

// DryRunSubmitter logs intents without handing them off. Used when Kafka is disabled.
type DryRunSubmitter struct {
	l *applogger.Logger
}

func NewDryRunSubmitter(l *applogger.Logger) *DryRunSubmitter {
	return &DryRunSubmitter{l: l}
}

func (s *DryRunSubmitter) SubmitTransfer(_ context.Context, intent *models.TransferIntent) (string, error) {
	ref := "dryrun:" + intent.AssessmentID
	s.l.Warn("transfer intent not submitted (dry run)",
		applogger.String("ref", ref),
		applogger.String("from", intent.From),
		applogger.String("to", intent.To))
	return ref, nil
}

func (s *DryRunSubmitter) SubmitLiquidityAdjustment(_ context.Context, d *models.LiquidityDecision) (string, error) {
	ref := "dryrun:" + d.Pool
	s.l.Warn("liquidity adjustment not submitted (dry run)",
		applogger.String("ref", ref),
		applogger.String("pool", d.Pool))
	return ref, nil
}

func (s *DryRunSubmitter) SubmitRiskResponse(_ context.Context, r *models.RiskResponse) (string, error) {
	ref := "dryrun:" + string(r.Kind) + ":" + r.Address
	s.l.Warn("risk response not submitted (dry run)",
		applogger.String("ref", ref),
		applogger.String("function", r.Function))
	return ref, nil
}

// KafkaLogPublisher ships aggregated log batches for the log collector.
type KafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaLogPublisher(producer *pkgkafka.Producer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
