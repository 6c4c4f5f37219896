package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"DefiGuard/internal/domain/models"
	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/internal/domain/service"
	"DefiGuard/internal/services/features"
	applogger "DefiGuard/pkg/logger"
)

const (
	monitorTimeout = 30 * time.Second
	// DefaultMonitorIdleTTL is how long an address keeps its monitoring state without a pass.
	DefaultMonitorIdleTTL = time.Hour
)

// TransactionMonitor watches an account's latest transfer against the previous pass and
// against the account's recent window. It is the only component that keeps state across
// requests: the last feature vector and the last scored transfer per address.
type TransactionMonitor struct {
	history  domrepo.HistoryProvider
	detector service.AnomalyDetector
	drift    service.DriftScorer
	audit    *BackgroundAuditor
	metrics  domrepo.Metrics
	l        *applogger.Logger
	now      func() time.Time

	// risk responses, off unless WithRiskResponses is given
	scorer     service.RiskScorer
	submitter  domrepo.TransferSubmitter
	mitigateFn string
	anomalyFn  string
	threshold  float64

	idleTTL time.Duration

	mu    sync.Mutex
	state map[string]*accountState
	wg    sync.WaitGroup
}

type accountState struct {
	last     models.TransactionFeatures
	lastHash string
	seenAt   time.Time
}

type MonitorOption func(*TransactionMonitor)

// WithRiskResponses scores every new transfer of a pass and hands transfers scored above
// threshold, and every detected anomaly, to the submitter as on-chain responses.
func WithRiskResponses(scorer service.RiskScorer, submitter domrepo.TransferSubmitter, moduleAddress string, threshold float64) MonitorOption {
	return func(m *TransactionMonitor) {
		m.scorer = scorer
		m.submitter = submitter
		m.mitigateFn = moduleAddress + "::defi_agent::handle_risky_transaction"
		m.anomalyFn = moduleAddress + "::move_ai::handle_anomaly"
		m.threshold = threshold
	}
}

// WithIdleTTL sets how long per-address state survives without a monitoring pass.
func WithIdleTTL(d time.Duration) MonitorOption {
	return func(m *TransactionMonitor) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

func NewTransactionMonitor(
	history domrepo.HistoryProvider,
	detector service.AnomalyDetector,
	drift service.DriftScorer,
	audit *BackgroundAuditor,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	opts ...MonitorOption,
) *TransactionMonitor {
	m := &TransactionMonitor{
		history:  history,
		detector: detector,
		drift:    drift,
		audit:    audit,
		metrics:  metrics,
		l:        l,
		now:      time.Now,
		idleTTL:  DefaultMonitorIdleTTL,
		state:    make(map[string]*accountState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Monitor runs one pass over the account. The first pass for an address compares the
// latest transfer with itself.
func (m *TransactionMonitor) Monitor(ctx context.Context, address string) (*models.MonitorReport, error) {
	start := time.Now()
	h, err := m.history.History(ctx, address)
	if err != nil {
		m.metrics.RecordCollaboratorError("history")
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, err)
	}

	report := &models.MonitorReport{
		Address:      address,
		Transactions: len(h.Transactions),
		Anomalies:    []models.Anomaly{},
		Risky:        []models.TransactionRisk{},
		Timestamp:    m.now().UTC(),
	}
	if len(h.Transactions) == 0 {
		return report, nil
	}

	current := features.Latest(h, report.Timestamp)
	key := strings.ToLower(address)

	m.mu.Lock()
	st, ok := m.state[key]
	if !ok {
		st = &accountState{last: current}
		m.state[key] = st
	}
	baseline := st.last
	lastHash := st.lastHash
	st.last = current
	st.lastHash = h.Transactions[len(h.Transactions)-1].Hash
	st.seenAt = report.Timestamp
	m.mu.Unlock()

	report.Features = current
	report.Baseline = baseline
	report.Anomalies = m.detector.Detect(current, baseline)

	window := features.Window(h)
	n := len(window)
	report.DriftScore = m.drift.Score(window[n-1], window[:n-1])

	for _, a := range report.Anomalies {
		m.metrics.RecordAnomaly(string(a.Type))
		m.l.Warn("anomaly detected",
			applogger.String("address", address),
			applogger.String("type", string(a.Type)),
			applogger.Float64("severity", a.Severity),
		)
	}
	if m.scorer != nil {
		report.Risky = m.scoreNew(h, lastHash)
		m.respond(ctx, report)
	}
	m.audit.Anomalies(ctx, address, report.Anomalies)
	m.metrics.RecordLatency("monitor", time.Since(start).Seconds())
	return report, nil
}

// scoreNew scores the transfers after lastHash, or the whole window when lastHash is
// unknown, and returns those above the mitigation threshold.
func (m *TransactionMonitor) scoreNew(h models.TransactionHistory, lastHash string) []models.TransactionRisk {
	from := 0
	if lastHash != "" {
		for i, tx := range h.Transactions {
			if tx.Hash == lastHash {
				from = i + 1
			}
		}
	}
	scored := features.Scored(h)
	risky := []models.TransactionRisk{}
	for i := from; i < len(h.Transactions); i++ {
		if r := m.scorer.Predict(scored[i]); r > m.threshold {
			risky = append(risky, models.TransactionRisk{Hash: h.Transactions[i].Hash, RiskScore: r})
		}
	}
	return risky
}

// respond submits one mitigation per risky transfer and one response per anomaly.
// Submission failures are logged and counted but never fail the pass.
func (m *TransactionMonitor) respond(ctx context.Context, report *models.MonitorReport) {
	responses := make([]*models.RiskResponse, 0, len(report.Risky)+len(report.Anomalies))
	for _, r := range report.Risky {
		responses = append(responses, &models.RiskResponse{
			Kind:      models.RiskResponseMitigation,
			Address:   report.Address,
			Function:  m.mitigateFn,
			TxHash:    r.Hash,
			RiskScore: r.RiskScore,
			CreatedAt: report.Timestamp,
		})
	}
	for i := range report.Anomalies {
		responses = append(responses, &models.RiskResponse{
			Kind:      models.RiskResponseAnomaly,
			Address:   report.Address,
			Function:  m.anomalyFn,
			Anomaly:   &report.Anomalies[i],
			CreatedAt: report.Timestamp,
		})
	}
	for _, r := range responses {
		ref, err := m.submitter.SubmitRiskResponse(ctx, r)
		if err != nil {
			m.metrics.RecordCollaboratorError("submit")
			m.l.Warn("risk response failed",
				applogger.String("address", r.Address),
				applogger.String("kind", string(r.Kind)),
				applogger.Error(err))
			continue
		}
		report.Responses = append(report.Responses, ref)
	}
}

// Sweep drops the state of addresses not monitored within the idle TTL and returns
// how many were dropped.
func (m *TransactionMonitor) Sweep() int {
	cutoff := m.now().UTC().Add(-m.idleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, st := range m.state {
		if st.seenAt.Before(cutoff) {
			delete(m.state, k)
			n++
		}
	}
	return n
}

// Tracked returns the number of addresses with monitoring state.
func (m *TransactionMonitor) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state)
}

// Run sweeps idle addresses until ctx is done.
func (m *TransactionMonitor) Run(ctx context.Context) {
	t := time.NewTicker(m.idleTTL / 4)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				m.l.Debug("monitor state swept", applogger.Int("addresses", n))
			}
		}
	}
}

// Background runs Monitor detached from ctx cancellation. Failures are logged.
func (m *TransactionMonitor) Background(ctx context.Context, address string) {
	bctx := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		bctx, cancel := context.WithTimeout(bctx, monitorTimeout)
		defer cancel()
		if _, err := m.Monitor(bctx, address); err != nil {
			m.l.Warn("background monitor failed", applogger.String("address", address), applogger.Error(err))
		}
	}()
}

// Wait blocks until background passes finish or ctx is done.
func (m *TransactionMonitor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
