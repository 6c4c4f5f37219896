package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"DefiGuard/internal/domain/models"
	pkgch "DefiGuard/pkg/clickhouse"
	applogger "DefiGuard/pkg/logger"
)

// sqlExecer is the part of *sql.DB the audit store needs.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// ClickHouseAuditStore appends assessments, anomalies and liquidity decisions
// to MergeTree tables.
type ClickHouseAuditStore struct {
	db       sqlExecer
	database string
	closer   func() error
	l        *applogger.Logger
}

func NewClickHouseAuditStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseAuditStore {
	s := newClickHouseAuditStore(ch.DB(), ch.Database(), l)
	s.closer = ch.Close
	return s
}

func newClickHouseAuditStore(db sqlExecer, database string, l *applogger.Logger) *ClickHouseAuditStore {
	if database == "" {
		database = "defiguard"
	}
	return &ClickHouseAuditStore{db: db, database: database, l: l}
}

// AuditSchema returns the idempotent DDL for the audit tables.
func AuditSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.risk_assessments (
            id String,
            ts DateTime64(3),
            from_address String,
            to_address String,
            amount Float64,
            risk_score Float64,
            anomaly_score Float64,
            anomaly_count UInt16,
            biometric_verified UInt8,
            biometric_hash String,
            recommendations Array(String)
        ) ENGINE = MergeTree ORDER BY (from_address, ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.anomalies (
            ts DateTime64(3),
            address String,
            type LowCardinality(String),
            severity Float64,
            details String
        ) ENGINE = MergeTree ORDER BY (address, ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.liquidity_decisions (
            ts DateTime64(3),
            pool String,
            current_min Float64,
            current_max Float64,
            range_min Float64,
            range_max Float64,
            min_price Float64,
            max_price Float64,
            target_utilization Float64,
            adjust UInt8,
            reason String,
            tx_ref String
        ) ENGINE = MergeTree ORDER BY (pool, ts)`, database),
	}
}

func (s *ClickHouseAuditStore) Init(ctx context.Context) error {
	for _, stmt := range AuditSchema(s.database) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init audit schema: %w", err)
		}
	}
	s.l.Info("clickhouse audit schema ready", applogger.String("database", s.database))
	return nil
}

func (s *ClickHouseAuditStore) StoreAssessment(ctx context.Context, a *models.RiskAssessment) error {
	q := fmt.Sprintf(`INSERT INTO %s.risk_assessments
        (id, ts, from_address, to_address, amount, risk_score, anomaly_score, anomaly_count, biometric_verified, biometric_hash, recommendations)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	_, err := s.db.ExecContext(ctx, q,
		a.ID,
		a.Timestamp,
		a.From,
		a.To,
		a.Amount,
		a.RiskScore,
		a.AnomalyScore,
		uint16(len(a.Anomalies)),
		boolToUInt8(a.BiometricVerified),
		a.BiometricHash.String(),
		nonNilStrings(a.Recommendations),
	)
	if err != nil {
		s.l.Error("clickhouse store assessment failed", applogger.String("id", a.ID), applogger.Error(err))
		return fmt.Errorf("store assessment: %w", err)
	}
	return nil
}

// StoreAnomalies writes all anomalies of one observation in a single multi-row insert.
func (s *ClickHouseAuditStore) StoreAnomalies(ctx context.Context, address string, at time.Time, anomalies []models.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}
	values := make([]string, 0, len(anomalies))
	args := make([]interface{}, 0, len(anomalies)*5)
	for _, an := range anomalies {
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args, at, address, string(an.Type), an.Severity, an.Details)
	}
	q := fmt.Sprintf("INSERT INTO %s.anomalies (ts, address, type, severity, details) VALUES %s",
		s.database, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse store anomalies failed",
			applogger.String("address", address),
			applogger.Int("count", len(anomalies)),
			applogger.Error(err))
		return fmt.Errorf("store anomalies: %w", err)
	}
	return nil
}

func (s *ClickHouseAuditStore) StoreLiquidityDecision(ctx context.Context, d *models.LiquidityDecision) error {
	q := fmt.Sprintf(`INSERT INTO %s.liquidity_decisions
        (ts, pool, current_min, current_max, range_min, range_max, min_price, max_price, target_utilization, adjust, reason, tx_ref)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	_, err := s.db.ExecContext(ctx, q,
		d.Timestamp,
		d.Pool,
		d.Current.Min,
		d.Current.Max,
		d.Range.Min,
		d.Range.Max,
		d.Parameters.MinPrice,
		d.Parameters.MaxPrice,
		d.Parameters.TargetUtilization,
		boolToUInt8(d.Adjust),
		d.Reason,
		d.TxRef,
	)
	if err != nil {
		s.l.Error("clickhouse store liquidity decision failed", applogger.String("pool", d.Pool), applogger.Error(err))
		return fmt.Errorf("store liquidity decision: %w", err)
	}
	return nil
}

func (s *ClickHouseAuditStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseAuditStore) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
