package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"DefiGuard/internal/domain/models"
	pkgkafka "DefiGuard/pkg/kafka"
)

// SnapshotProcessor accepts decoded pool snapshots.
type SnapshotProcessor interface {
	Process(ctx context.Context, st *models.PoolState) error
}

// PoolMetricsHandler consumes pool snapshots from Kafka and feeds the pool pipeline.
type PoolMetricsHandler struct {
	topic string
	next  SnapshotProcessor
}

func NewPoolMetricsHandler(topic string, next SnapshotProcessor) *PoolMetricsHandler {
	return &PoolMetricsHandler{topic: topic, next: next}
}

func (h *PoolMetricsHandler) Topic() string { return h.topic }

// incoming message schema: {address, metrics{...}, current{min,max}}
func (h *PoolMetricsHandler) Handle(ctx context.Context, b []byte) error {
	var st models.PoolState
	if err := json.Unmarshal(b, &st); err != nil {
		return fmt.Errorf("decode pool snapshot: %w", err)
	}
	return h.next.Process(ctx, &st)
}

var _ pkgkafka.MessageHandler = (*PoolMetricsHandler)(nil)
