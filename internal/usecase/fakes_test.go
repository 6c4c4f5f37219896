package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"DefiGuard/internal/domain/models"
	"DefiGuard/pkg/config"
	applogger "DefiGuard/pkg/logger"
)

var errDown = errors.New("node unavailable")

type fakeVerifier struct{ ok bool }

func (v fakeVerifier) Verify(models.BiometricSample) bool { return v.ok }
func (v fakeVerifier) Score(models.BiometricSample) (models.BiometricScores, bool) {
	return models.BiometricScores{}, v.ok
}
func (v fakeVerifier) Hash(models.BiometricSample) [32]byte { return [32]byte{0xab} }

type fakeScorer struct{ risk float64 }

func (s fakeScorer) Predict(models.TransactionFeatures) float64 { return s.risk }

type fakeDetector struct {
	out []models.Anomaly
	mu  sync.Mutex
	got [][2]models.TransactionFeatures
}

func (d *fakeDetector) Detect(current, historical models.TransactionFeatures) []models.Anomaly {
	d.mu.Lock()
	d.got = append(d.got, [2]models.TransactionFeatures{current, historical})
	d.mu.Unlock()
	return append([]models.Anomaly{}, d.out...)
}

type fakeHistory struct {
	h   models.TransactionHistory
	err error
}

func (f *fakeHistory) History(context.Context, string) (models.TransactionHistory, error) {
	return f.h, f.err
}

type fakeTrust struct {
	score       float64
	err         error
	mu          sync.Mutex
	invalidated []string
}

func (f *fakeTrust) TrustScore(context.Context, string) (float64, error) { return f.score, f.err }

func (f *fakeTrust) Invalidate(_ context.Context, addr string) error {
	f.mu.Lock()
	f.invalidated = append(f.invalidated, addr)
	f.mu.Unlock()
	return nil
}

type fakePools struct {
	st  models.PoolState
	err error
}

func (f *fakePools) PoolState(context.Context, string) (models.PoolState, error) { return f.st, f.err }

type fakeSubmitter struct {
	err         error
	mu          sync.Mutex
	transfers   []*models.TransferIntent
	adjustments []*models.LiquidityDecision
	responses   []*models.RiskResponse
}

func (f *fakeSubmitter) SubmitTransfer(_ context.Context, in *models.TransferIntent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.transfers = append(f.transfers, in)
	return in.AssessmentID, nil
}

func (f *fakeSubmitter) SubmitLiquidityAdjustment(_ context.Context, d *models.LiquidityDecision) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.adjustments = append(f.adjustments, d)
	return "adj:" + d.Pool, nil
}

func (f *fakeSubmitter) SubmitRiskResponse(_ context.Context, r *models.RiskResponse) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.responses = append(f.responses, r)
	return "resp:" + string(r.Kind), nil
}

func (f *fakeSubmitter) sent() []*models.RiskResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.RiskResponse(nil), f.responses...)
}

type fakeSink struct {
	err         error
	mu          sync.Mutex
	assessments []*models.RiskAssessment
	anomalies   map[string][]models.Anomaly
	decisions   []*models.LiquidityDecision
}

func newFakeSink() *fakeSink { return &fakeSink{anomalies: map[string][]models.Anomaly{}} }

func (s *fakeSink) RecordAssessment(_ context.Context, a *models.RiskAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessments = append(s.assessments, a)
	return s.err
}

func (s *fakeSink) RecordAnomalies(_ context.Context, addr string, an []models.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies[addr] = append(s.anomalies[addr], an...)
	return s.err
}

func (s *fakeSink) RecordLiquidityDecision(_ context.Context, d *models.LiquidityDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	return s.err
}

type fakeMetrics struct {
	mu            sync.Mutex
	assessments   []bool
	anomalies     []string
	collaborators []string
	auditErrors   int
	liquidity     []bool
}

func (m *fakeMetrics) RecordAssessment(accepted bool, _ float64, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments = append(m.assessments, accepted)
}

func (m *fakeMetrics) RecordAnomaly(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anomalies = append(m.anomalies, kind)
}

func (m *fakeMetrics) RecordCollaboratorError(c string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collaborators = append(m.collaborators, c)
}

func (m *fakeMetrics) RecordAuditError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditErrors++
}

func (m *fakeMetrics) RecordLiquidityDecision(adjust bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liquidity = append(m.liquidity, adjust)
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

type fakeLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	err    error
	unlock []string
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]bool{}} }

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	l.unlock = append(l.unlock, key)
	return nil
}

func testConfig() *config.Config {
	c := &config.Config{Engine: config.DefaultEngineConfig()}
	c.Aptos.ModuleAddress = "0xcafe"
	return c
}

func waitAudit(a *BackgroundAuditor) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = a.Wait(ctx)
}

func nopLogger() *applogger.Logger { return applogger.Nop() }
