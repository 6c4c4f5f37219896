package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DefiGuard/internal/domain/models"
	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/pkg/config"
	pkgkafka "DefiGuard/pkg/kafka"
	applogger "DefiGuard/pkg/logger"
)

type memWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func kafkaConfig() *config.Config {
	c := &config.Config{}
	c.Kafka.Topics.TransferIntents = "transfer_intents"
	c.Kafka.Topics.LiquidityDecisions = "liquidity_decisions"
	c.Kafka.Topics.RiskResponses = "risk_responses"
	return c
}

func TestKafkaTransferSubmitter(t *testing.T) {
	w := &memWriter{}
	s := NewKafkaTransferSubmitter(pkgkafka.NewProducerWithWriter(w, "snappy"), kafkaConfig(), applogger.Nop())

	ref, err := s.SubmitTransfer(context.Background(), &models.TransferIntent{
		AssessmentID:  "a-1",
		From:          "0xa11",
		To:            "0xb0b",
		Amount:        100,
		BiometricHash: []byte{0x01},
	})
	require.NoError(t, err)
	assert.Equal(t, "a-1", ref)

	require.Len(t, w.msgs, 1)
	m := w.msgs[0]
	assert.Equal(t, "transfer_intents", m.Topic)
	assert.Equal(t, "0xa11", string(m.Key))
	assert.Equal(t, "a-1", pkgkafka.ExtractTraceID(m))

	var got models.TransferIntent
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, "0xb0b", got.To)

	ref, err = s.SubmitLiquidityAdjustment(context.Background(), &models.LiquidityDecision{Pool: "0x9001", Adjust: true})
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
	assert.Equal(t, "liquidity_decisions", w.msgs[1].Topic)
	assert.Equal(t, "0x9001", string(w.msgs[1].Key))
}

func TestKafkaTransferSubmitter_RiskResponse(t *testing.T) {
	w := &memWriter{}
	s := NewKafkaTransferSubmitter(pkgkafka.NewProducerWithWriter(w, "snappy"), kafkaConfig(), applogger.Nop())

	ref, err := s.SubmitRiskResponse(context.Background(), &models.RiskResponse{
		Kind:      models.RiskResponseMitigation,
		Address:   "0xa11",
		Function:  "0xabc::defi_agent::handle_risky_transaction",
		TxHash:    "0x3",
		RiskScore: 0.92,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	m := w.msgs[0]
	assert.Equal(t, "risk_responses", m.Topic)
	assert.Equal(t, "0xa11", string(m.Key))
	assert.Equal(t, ref, pkgkafka.ExtractTraceID(m))

	var got models.RiskResponse
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, models.RiskResponseMitigation, got.Kind)
	assert.Equal(t, "0x3", got.TxHash)
	assert.Nil(t, got.Anomaly)
}

func TestKafkaTransferSubmitter_Error(t *testing.T) {
	w := &memWriter{err: errors.New("leader not available")}
	s := NewKafkaTransferSubmitter(pkgkafka.NewProducerWithWriter(w, "snappy"), kafkaConfig(), applogger.Nop())

	ref, err := s.SubmitTransfer(context.Background(), &models.TransferIntent{AssessmentID: "a-1"})
	require.Error(t, err)
	assert.Empty(t, ref)
}

func TestKafkaAuditPublisher(t *testing.T) {
	w := &memWriter{}
	p := NewKafkaAuditPublisher(pkgkafka.NewProducerWithWriter(w, "snappy"), "risk_audit")
	ctx := context.Background()

	require.NoError(t, p.RecordAssessment(ctx, &models.RiskAssessment{ID: "a-1", From: "0xa11"}))
	require.NoError(t, p.RecordAnomalies(ctx, "0xa11", nil))
	require.NoError(t, p.RecordAnomalies(ctx, "0xa11", []models.Anomaly{{Type: models.AnomalyTiming}}))

	require.Len(t, w.msgs, 2)
	var ev struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, models.AuditAssessment, ev.Type)
	assert.Equal(t, "a-1", pkgkafka.ExtractTraceID(w.msgs[0]))
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &ev))
	assert.Equal(t, models.AuditAnomalies, ev.Type)
}

type recordingQueue struct {
	types    []string
	payloads []interface{}
}

func (q *recordingQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.types = append(q.types, msgType)
	q.payloads = append(q.payloads, payload)
	return nil
}

func TestQueueAuditSink(t *testing.T) {
	q := &recordingQueue{}
	s := NewQueueAuditSink(q)
	at := time.Unix(1700000000, 0)
	s.now = func() time.Time { return at }
	ctx := context.Background()

	require.NoError(t, s.RecordAssessment(ctx, &models.RiskAssessment{ID: "a"}))
	require.NoError(t, s.RecordAnomalies(ctx, "0xa11", nil))
	require.NoError(t, s.RecordAnomalies(ctx, "0xa11", []models.Anomaly{{Type: models.AnomalyAmount}}))
	require.NoError(t, s.RecordLiquidityDecision(ctx, &models.LiquidityDecision{Pool: "p"}))

	assert.Equal(t, []string{models.AuditAssessment, models.AuditAnomalies, models.AuditLiquidityDecision}, q.types)
	rec := q.payloads[1].(models.AnomalyRecord)
	assert.Equal(t, at, rec.At)
	assert.Equal(t, "0xa11", rec.Address)
}

type memAuditStore struct {
	domrepo.AuditStore
	assessments int
	anomalies   int
	decisions   int
}

func (m *memAuditStore) StoreAssessment(context.Context, *models.RiskAssessment) error {
	m.assessments++
	return nil
}

func (m *memAuditStore) StoreAnomalies(_ context.Context, _ string, _ time.Time, an []models.Anomaly) error {
	m.anomalies += len(an)
	return nil
}

func (m *memAuditStore) StoreLiquidityDecision(context.Context, *models.LiquidityDecision) error {
	m.decisions++
	return nil
}

type failingSink struct{ domrepo.AuditSink }

func (failingSink) RecordAssessment(context.Context, *models.RiskAssessment) error {
	return errors.New("sink down")
}

func TestStoreAuditSinkAndFanout(t *testing.T) {
	store := &memAuditStore{}
	direct := NewStoreAuditSink(store)
	fan := FanoutAuditSink{direct, NewLogAuditSink(applogger.Nop()), failingSink{}}

	err := fan.RecordAssessment(context.Background(), &models.RiskAssessment{
		Anomalies: []models.Anomaly{{Type: models.AnomalyTiming}, {Type: models.AnomalyAmount}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Equal(t, 1, store.assessments)
	assert.Equal(t, 0, store.anomalies, "anomalies are only written through RecordAnomalies")

	require.NoError(t, direct.RecordAnomalies(context.Background(), "0xa11",
		[]models.Anomaly{{Type: models.AnomalyTiming}, {Type: models.AnomalyAmount}}))
	assert.Equal(t, 2, store.anomalies)

	require.NoError(t, direct.RecordLiquidityDecision(context.Background(), &models.LiquidityDecision{}))
	assert.Equal(t, 1, store.decisions)
}

func TestDryRunSubmitter(t *testing.T) {
	s := NewDryRunSubmitter(applogger.Nop())
	ref, err := s.SubmitTransfer(context.Background(), &models.TransferIntent{AssessmentID: "a-1"})
	require.NoError(t, err)
	assert.Equal(t, "dryrun:a-1", ref)

	ref, err = s.SubmitRiskResponse(context.Background(), &models.RiskResponse{Kind: models.RiskResponseAnomaly, Address: "0xa11"})
	require.NoError(t, err)
	assert.Equal(t, "dryrun:anomaly:0xa11", ref)
}
