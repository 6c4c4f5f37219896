package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"DefiGuard/internal/domain/models"
	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/internal/domain/service"
	"DefiGuard/internal/services/features"
	"DefiGuard/pkg/config"
	applogger "DefiGuard/pkg/logger"
)

const (
	RecommendHighRisk      = "High-risk transaction detected. Additional verification recommended."
	RecommendUnusual       = "Unusual transaction pattern detected. Please review details."
	RecommendAmount        = "Transaction amount significantly higher than usual."
	RecommendBiometricFail = "Biometric verification failed. Transfer requires a verified behavioral sample."
	RecommendOverThreshold = "Risk score exceeds threshold. Transfer rejected."
)

// AssessParams describes one prospective transfer.
type AssessParams struct {
	From   string
	To     string
	Amount float64
	Sample models.BiometricSample
	// Now sets the timing features, read in UTC as the monitor reads them; zero means time.Now().
	Now time.Time
}

// trustInvalidator is implemented by caching trust providers.
type trustInvalidator interface {
	Invalidate(ctx context.Context, address string) error
}

// Assessor sequences verification, scoring and anomaly detection for one transfer and
// decides whether it may proceed.
type Assessor struct {
	verifier  service.BiometricVerifier
	scorer    service.RiskScorer
	detector  service.AnomalyDetector
	history   domrepo.HistoryProvider
	trust     domrepo.TrustProvider
	submitter domrepo.TransferSubmitter
	audit     *BackgroundAuditor
	metrics   domrepo.Metrics
	cfg       config.DecisionConfig
	function  string
	monitor   *TransactionMonitor
	l         *applogger.Logger
}

type AssessorOption func(*Assessor)

// WithMonitor runs a monitoring pass over the sender after every accepted transfer.
func WithMonitor(m *TransactionMonitor) AssessorOption {
	return func(a *Assessor) {
		a.monitor = m
	}
}

func NewAssessor(
	verifier service.BiometricVerifier,
	scorer service.RiskScorer,
	detector service.AnomalyDetector,
	history domrepo.HistoryProvider,
	trust domrepo.TrustProvider,
	submitter domrepo.TransferSubmitter,
	audit *BackgroundAuditor,
	metrics domrepo.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
	opts ...AssessorOption,
) *Assessor {
	a := &Assessor{
		verifier:  verifier,
		scorer:    scorer,
		detector:  detector,
		history:   history,
		trust:     trust,
		submitter: submitter,
		audit:     audit,
		metrics:   metrics,
		cfg:       cfg.Engine.Decision,
		function:  cfg.Aptos.ModuleAddress + "::defi_agent::verify_and_transfer",
		l:         l,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess builds the risk assessment of a transfer. It fails only when the history or
// trust collaborator fails; the error then wraps ErrCollaborator.
func (a *Assessor) Assess(ctx context.Context, p AssessParams) (*models.RiskAssessment, error) {
	start := time.Now()
	now := p.Now
	if now.IsZero() {
		now = start
	}
	now = now.UTC()

	var (
		wg                   sync.WaitGroup
		history              models.TransactionHistory
		trust                float64
		historyErr, trustErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		history, historyErr = a.history.History(ctx, p.From)
	}()
	go func() {
		defer wg.Done()
		trust, trustErr = a.trust.TrustScore(ctx, p.To)
	}()
	wg.Wait()

	if historyErr != nil {
		a.metrics.RecordCollaboratorError("history")
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, historyErr)
	}
	if trustErr != nil {
		a.metrics.RecordCollaboratorError("trust")
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, trustErr)
	}

	verified := a.verifier.Verify(p.Sample)
	confidence := 0.0
	if verified {
		confidence = 1.0
	}
	hash := a.verifier.Hash(p.Sample)

	f := features.Build(p.Amount, history, trust, confidence, now)
	risk := a.scorer.Predict(f)
	anomalies := a.detector.Detect(f, features.Baseline(history, f))

	as := &models.RiskAssessment{
		ID:                uuid.NewString(),
		From:              p.From,
		To:                p.To,
		Amount:            p.Amount,
		RiskScore:         risk,
		AnomalyScore:      models.MaxSeverity(anomalies),
		Anomalies:         anomalies,
		BiometricVerified: verified,
		BiometricHash:     hash[:],
		Features:          f,
		Timestamp:         now,
	}
	as.Recommendations = a.recommend(as, history)

	for _, an := range anomalies {
		a.metrics.RecordAnomaly(string(an.Type))
	}
	a.metrics.RecordAssessment(a.DecideTransfer(as), risk, time.Since(start).Seconds())

	a.audit.Assessment(ctx, as)
	a.audit.Anomalies(ctx, p.From, anomalies)

	a.l.Debug("transfer assessed",
		applogger.String("id", as.ID),
		applogger.String("from", p.From),
		applogger.Float64("risk_score", risk),
		applogger.Float64("anomaly_score", as.AnomalyScore),
		applogger.Bool("biometric_verified", verified),
	)
	return as, nil
}

func (a *Assessor) recommend(as *models.RiskAssessment, h models.TransactionHistory) []string {
	recs := make([]string, 0, 4)
	if as.RiskScore > a.cfg.HighRiskRecommendation {
		recs = append(recs, RecommendHighRisk)
	}
	if as.AnomalyScore > a.cfg.AnomalyRecommendation {
		recs = append(recs, RecommendUnusual)
	}
	if as.Amount > h.AvgAmount*a.cfg.AmountMultiple {
		recs = append(recs, RecommendAmount)
	}
	if !as.BiometricVerified {
		recs = append(recs, RecommendBiometricFail)
	}
	if as.RiskScore > a.cfg.RiskThreshold {
		recs = append(recs, RecommendOverThreshold)
	}
	return recs
}

// DecideTransfer rejects when the risk score is above the threshold or the biometric
// sample was not verified.
func (a *Assessor) DecideTransfer(as *models.RiskAssessment) bool {
	if as == nil {
		return false
	}
	return as.RiskScore <= a.cfg.RiskThreshold && as.BiometricVerified
}

// ExecuteSecureTransfer assesses the transfer and, when accepted, hands the intent to
// the submitter. A rejected transfer is not an error.
func (a *Assessor) ExecuteSecureTransfer(ctx context.Context, p AssessParams) (*models.TransferDecision, error) {
	start := time.Now()
	as, err := a.Assess(ctx, p)
	if err != nil {
		return nil, err
	}

	d := &models.TransferDecision{Assessment: as}
	if !a.DecideTransfer(as) {
		d.Reasons = as.Recommendations
		a.l.Info("transfer rejected",
			applogger.String("id", as.ID),
			applogger.String("from", p.From),
			applogger.Float64("risk_score", as.RiskScore),
			applogger.Bool("biometric_verified", as.BiometricVerified),
		)
		return d, nil
	}

	intent := &models.TransferIntent{
		AssessmentID:  as.ID,
		From:          as.From,
		To:            as.To,
		Amount:        as.Amount,
		Function:      a.function,
		BiometricHash: as.BiometricHash,
		RiskScore:     as.RiskScore,
		CreatedAt:     time.Now().UTC(),
	}
	ref, err := a.submitter.SubmitTransfer(ctx, intent)
	if err != nil {
		a.metrics.RecordCollaboratorError("submit")
		return nil, fmt.Errorf("%w: submit transfer: %w", ErrCollaborator, err)
	}
	d.Accepted = true
	d.TxRef = ref
	d.Reasons = as.Recommendations

	if inv, ok := a.trust.(trustInvalidator); ok {
		if err := inv.Invalidate(ctx, as.To); err != nil {
			a.l.Warn("trust invalidation failed", applogger.String("address", as.To), applogger.Error(err))
		}
	}
	if a.monitor != nil {
		a.monitor.Background(ctx, as.From)
	}

	a.metrics.RecordLatency("execute", time.Since(start).Seconds())
	a.l.Info("transfer submitted",
		applogger.String("id", as.ID),
		applogger.String("tx_ref", ref),
		applogger.Float64("risk_score", as.RiskScore),
	)
	return d, nil
}
