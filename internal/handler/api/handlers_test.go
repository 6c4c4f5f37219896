package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DefiGuard/internal/domain/models"
	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/internal/service/capture"
	"DefiGuard/internal/service/ratelimit"
	"DefiGuard/internal/services/anomaly"
	"DefiGuard/internal/services/biometrics"
	"DefiGuard/internal/services/liquidity"
	"DefiGuard/internal/services/risk"
	"DefiGuard/internal/usecase"
	"DefiGuard/pkg/config"
	applogger "DefiGuard/pkg/logger"
)

const (
	sender    = "0xa11"
	recipient = "0xb0b"
)

type stubHistory struct{ err error }

func (s stubHistory) History(context.Context, string) (models.TransactionHistory, error) {
	return models.TransactionHistory{
		Transactions: []models.HistoricalTransaction{{Amount: 100}, {Amount: 100}},
		TotalVolume:  200,
		AvgAmount:    100,
	}, s.err
}

type stubTrust struct{}

func (stubTrust) TrustScore(context.Context, string) (float64, error) { return 0.9, nil }

type stubPools struct{ err error }

func (s stubPools) PoolState(_ context.Context, addr string) (models.PoolState, error) {
	return models.PoolState{
		Address: addr,
		Metrics: models.LiquidityMetrics{PoolDepth: 1000000, Volatility: 0.15, Volume24h: 500000, CurrentPrice: 1.2},
		Current: models.OptimalRange{Min: 0.2, Max: 0.2},
	}, s.err
}

type stubSubmitter struct{}

func (stubSubmitter) SubmitTransfer(_ context.Context, in *models.TransferIntent) (string, error) {
	return in.AssessmentID, nil
}

func (stubSubmitter) SubmitLiquidityAdjustment(_ context.Context, d *models.LiquidityDecision) (string, error) {
	return "adj", nil
}

func (stubSubmitter) SubmitRiskResponse(_ context.Context, r *models.RiskResponse) (string, error) {
	return "resp:" + string(r.Kind), nil
}

type nopSink struct{}

func (nopSink) RecordAssessment(context.Context, *models.RiskAssessment) error           { return nil }
func (nopSink) RecordAnomalies(context.Context, string, []models.Anomaly) error          { return nil }
func (nopSink) RecordLiquidityDecision(context.Context, *models.LiquidityDecision) error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordAssessment(bool, float64, float64) {}
func (nopMetrics) RecordAnomaly(string)                    {}
func (nopMetrics) RecordCollaboratorError(string)          {}
func (nopMetrics) RecordAuditError()                       {}
func (nopMetrics) RecordLiquidityDecision(bool)            {}
func (nopMetrics) RecordLatency(string, float64)           {}

type testEnv struct {
	e       *echo.Echo
	capture *capture.Store
}

type envOptions struct {
	history domrepo.HistoryProvider
	pools   domrepo.PoolStateProvider
	burst   int
}

func newEnv(t *testing.T, o envOptions) *testEnv {
	t.Helper()
	if o.history == nil {
		o.history = stubHistory{}
	}
	if o.pools == nil {
		o.pools = stubPools{}
	}
	if o.burst == 0 {
		o.burst = 100
	}
	cfg := &config.Config{Engine: config.DefaultEngineConfig()}
	cfg.Aptos.ModuleAddress = "0xcafe"
	ec := cfg.Engine
	l := applogger.Nop()

	verifier := biometrics.NewVerifier(ec.Biometric)
	scorer := risk.NewScorer(ec.Risk)
	rules := anomaly.NewRuleDetector(ec.Anomaly)
	zscore := anomaly.NewZScoreDetector(ec.Anomaly)
	liq := liquidity.NewOptimizer(ec.Liquidity)

	aud := usecase.NewBackgroundAuditor(nopSink{}, nopMetrics{}, l)
	mon := usecase.NewTransactionMonitor(o.history, rules, zscore, aud, nopMetrics{}, l)
	assessor := usecase.NewAssessor(verifier, scorer, rules, o.history, stubTrust{}, stubSubmitter{}, aud, nopMetrics{}, cfg, l)
	pools := usecase.NewPoolOptimizer(o.pools, liq, stubSubmitter{}, nil, aud, nopMetrics{}, l)
	store := capture.NewStore(l)

	e := echo.New()
	NewEnginesHandler(l, verifier, scorer, rules, zscore, liq).RegisterRoutes(e)
	NewTransactionsHandler(l, assessor, pools, mon, store, ratelimit.New(0.001, o.burst)).RegisterRoutes(e)
	return &testEnv{e: e, capture: store}
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) (int, json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var out envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out.Data
}

func humanSample() models.BiometricSample {
	var s models.BiometricSample
	tm := 0.0
	for i := 0; i < 8; i++ {
		s.KeystrokePatterns = append(s.KeystrokePatterns, models.KeystrokePattern{
			Key: string(rune('a' + i)), PressTime: tm, ReleaseTime: tm + 100,
		})
		tm += 300
		s.MouseMovements = append(s.MouseMovements, models.MouseMovement{
			X: float64(i * 10), Y: float64(i * 5), Timestamp: float64(i * 16), Velocity: 400, Acceleration: 20,
		})
	}
	s.TransactionTiming = []models.TransactionTiming{{StartTime: 0, ConfirmTime: 700, TotalDuration: 1000}}
	return s
}

func errorCode(t *testing.T, data json.RawMessage) string {
	t.Helper()
	var errs []struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(data, &errs))
	require.NotEmpty(t, errs)
	return errs[0].Code
}

func TestVerifyAndHash(t *testing.T) {
	env := newEnv(t, envOptions{})
	body := models.VerifyBiometricRequest{Sample: humanSample()}

	code, data := env.do(t, http.MethodPost, "/api/biometrics/verify", body)
	require.Equal(t, http.StatusOK, code)
	var v VerifyBiometricResponse
	require.NoError(t, json.Unmarshal(data, &v))
	assert.True(t, v.Verified)
	assert.InDelta(t, 1.0, v.Scores.Aggregate, 1e-9)

	code, data = env.do(t, http.MethodPost, "/api/biometrics/hash", body)
	require.Equal(t, http.StatusOK, code)
	var hres HashBiometricResponse
	require.NoError(t, json.Unmarshal(data, &hres))
	assert.True(t, strings.HasPrefix(hres.Hash, "0x"))
	assert.Len(t, hres.Hash, 66)
}

func TestScoreRisk(t *testing.T) {
	env := newEnv(t, envOptions{})
	code, data := env.do(t, http.MethodPost, "/api/risk/score", models.ScoreRiskRequest{
		Features: models.TransactionFeatures{Amount: 1000, HistoricalVolume: 5000, RecipientTrustScore: 0.8, BiometricConfidence: 0.9, TimeOfDay: 14, DayOfWeek: 2},
	})
	require.Equal(t, http.StatusOK, code)
	var r ScoreRiskResponse
	require.NoError(t, json.Unmarshal(data, &r))
	assert.GreaterOrEqual(t, r.RiskScore, 0.0)
	assert.LessOrEqual(t, r.RiskScore, 1.0)
	assert.Equal(t, r.RiskScore, r.Breakdown.Score)
}

func TestDetectAnomalies(t *testing.T) {
	env := newEnv(t, envOptions{})
	normal := models.TransactionFeatures{Amount: 100, HistoricalVolume: 1000, AvgTransactionSize: 100, RecipientTrustScore: 0.8, BiometricConfidence: 0.9, TimeOfDay: 14}

	night := normal
	night.TimeOfDay = 3
	code, data := env.do(t, http.MethodPost, "/api/anomalies/detect", models.DetectAnomaliesRequest{Current: night, Historical: normal})
	require.Equal(t, http.StatusOK, code)
	var r DetectAnomaliesResponse
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, "rules", r.Method)
	require.Len(t, r.Anomalies, 1)
	assert.Equal(t, models.AnomalyTiming, r.Anomalies[0].Type)
	assert.Equal(t, 0.7, r.AnomalyScore)

	code, data = env.do(t, http.MethodPost, "/api/anomalies/detect", models.DetectAnomaliesRequest{
		Method:  "zscore",
		Current: models.TransactionFeatures{Amount: 100},
		History: []models.TransactionFeatures{{Amount: 100}, {Amount: 100}},
	})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, "zscore", r.Method)
	assert.Empty(t, r.Anomalies)

	code, _ = env.do(t, http.MethodPost, "/api/anomalies/detect", models.DetectAnomaliesRequest{Method: "magic"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLiquidityRange(t *testing.T) {
	env := newEnv(t, envOptions{})
	code, data := env.do(t, http.MethodPost, "/api/liquidity/range", models.LiquidityRequest{
		Metrics: models.LiquidityMetrics{PoolDepth: 10, Volatility: 0.1, Volume24h: 10, CurrentPrice: 1},
	})
	require.Equal(t, http.StatusOK, code)
	var r RangeResponse
	require.NoError(t, json.Unmarshal(data, &r))
	assert.False(t, r.Valid)
	assert.NotEmpty(t, r.Reason)
	assert.Equal(t, 0.1, r.Min)

	code, data = env.do(t, http.MethodPost, "/api/liquidity/parameters", models.LiquidityRequest{
		Metrics: models.LiquidityMetrics{PoolDepth: 1000000, Volatility: 0.15, Volume24h: 500000, CurrentPrice: 1.2, PriceChange24h: 0.05},
	})
	require.Equal(t, http.StatusOK, code)
	var p models.OptimalParameters
	require.NoError(t, json.Unmarshal(data, &p))
	assert.InDelta(t, 1.8, p.MaxPrice, 1e-12)
}

func TestAssess(t *testing.T) {
	env := newEnv(t, envOptions{})
	sample := humanSample()
	code, data := env.do(t, http.MethodPost, "/api/transactions/assess", models.AssessRequest{
		From: sender, To: recipient, Amount: 120, Sample: &sample,
	})
	require.Equal(t, http.StatusOK, code)
	var as models.RiskAssessment
	require.NoError(t, json.Unmarshal(data, &as))
	assert.True(t, as.BiometricVerified)
	assert.Len(t, as.From, 66)
	assert.NotEmpty(t, as.ID)
}

func TestAssess_FromCaptureSession(t *testing.T) {
	env := newEnv(t, envOptions{})
	s := humanSample()
	for _, k := range s.KeystrokePatterns {
		env.capture.AddKeystroke("sess", k)
	}
	for _, m := range s.MouseMovements {
		env.capture.AddMouse("sess", m)
	}
	env.capture.AddTiming("sess", s.TransactionTiming[0])

	code, data := env.do(t, http.MethodPost, "/api/transactions/assess", models.AssessRequest{
		From: sender, To: recipient, Amount: 120, SessionID: "sess",
	})
	require.Equal(t, http.StatusOK, code)
	var as models.RiskAssessment
	require.NoError(t, json.Unmarshal(data, &as))
	assert.True(t, as.BiometricVerified)

	code, data = env.do(t, http.MethodPost, "/api/transactions/assess", models.AssessRequest{
		From: sender, To: recipient, Amount: 120, SessionID: "missing",
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "ERR_NOT_FOUND", errorCode(t, data))
}

func TestAssess_BadRequests(t *testing.T) {
	env := newEnv(t, envOptions{})
	sample := humanSample()
	tests := []struct {
		name string
		req  models.AssessRequest
	}{
		{"no sample or session", models.AssessRequest{From: sender, To: recipient, Amount: 1}},
		{"missing from", models.AssessRequest{To: recipient, Amount: 1, Sample: &sample}},
		{"negative amount", models.AssessRequest{From: sender, To: recipient, Amount: -1, Sample: &sample}},
		{"bad address", models.AssessRequest{From: "0xnothex", To: recipient, Amount: 1, Sample: &sample}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := env.do(t, http.MethodPost, "/api/transactions/assess", tt.req)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}

func TestAssess_CollaboratorFailure(t *testing.T) {
	env := newEnv(t, envOptions{history: stubHistory{err: errors.New("node down")}})
	sample := humanSample()
	code, data := env.do(t, http.MethodPost, "/api/transactions/assess", models.AssessRequest{
		From: sender, To: recipient, Amount: 1, Sample: &sample,
	})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "ERR_COLLABORATOR", errorCode(t, data))
}

func TestAssess_RateLimited(t *testing.T) {
	env := newEnv(t, envOptions{burst: 2})
	sample := humanSample()
	req := models.AssessRequest{From: sender, To: recipient, Amount: 1, Sample: &sample}

	for i := 0; i < 2; i++ {
		code, _ := env.do(t, http.MethodPost, "/api/transactions/assess", req)
		require.Equal(t, http.StatusOK, code)
	}
	// the same account in another spelling shares the bucket
	req.From = "0x0A11"
	code, data := env.do(t, http.MethodPost, "/api/transactions/assess", req)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "ERR_RATE_LIMITED", errorCode(t, data))
}

func TestDecide(t *testing.T) {
	env := newEnv(t, envOptions{})
	tests := []struct {
		as   models.RiskAssessment
		want bool
	}{
		{models.RiskAssessment{RiskScore: 0.2, BiometricVerified: true}, true},
		{models.RiskAssessment{RiskScore: 0.9, BiometricVerified: true}, false},
		{models.RiskAssessment{RiskScore: 0.2}, false},
	}
	for _, tt := range tests {
		code, data := env.do(t, http.MethodPost, "/api/transactions/decide", models.DecideRequest{Assessment: tt.as})
		require.Equal(t, http.StatusOK, code)
		var r DecideResponse
		require.NoError(t, json.Unmarshal(data, &r))
		assert.Equal(t, tt.want, r.Accepted)
	}
}

func TestExecute(t *testing.T) {
	env := newEnv(t, envOptions{})
	sample := humanSample()
	code, data := env.do(t, http.MethodPost, "/api/transactions/execute", models.AssessRequest{
		From: sender, To: recipient, Amount: 120, Sample: &sample,
	})
	require.Equal(t, http.StatusOK, code)
	var d models.TransferDecision
	require.NoError(t, json.Unmarshal(data, &d))
	assert.Equal(t, d.Assessment.ID, d.TxRef)
	assert.Equal(t, d.Accepted, d.TxRef != "")
}

func TestOptimizePool(t *testing.T) {
	env := newEnv(t, envOptions{})
	code, data := env.do(t, http.MethodPost, "/api/pools/0x9001/optimize", nil)
	require.Equal(t, http.StatusOK, code)
	var d models.LiquidityDecision
	require.NoError(t, json.Unmarshal(data, &d))
	assert.Equal(t, "0x9001", d.Pool)
	assert.True(t, d.Adjust)
	assert.Equal(t, "adj", d.TxRef)
}

func TestOptimizePool_Missing(t *testing.T) {
	env := newEnv(t, envOptions{pools: stubPools{err: domrepo.ErrResourceNotFound}})
	code, data := env.do(t, http.MethodPost, "/api/pools/0x9001/optimize", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "ERR_NOT_FOUND", errorCode(t, data))
}

func TestMonitor(t *testing.T) {
	env := newEnv(t, envOptions{})
	code, data := env.do(t, http.MethodGet, "/api/accounts/0xa11/monitor", nil)
	require.Equal(t, http.StatusOK, code)
	var r models.MonitorReport
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, 2, r.Transactions)
	assert.Equal(t, 100.0, r.Features.Amount)
}

func TestMonitor_InvalidAddress(t *testing.T) {
	env := newEnv(t, envOptions{})
	code, data := env.do(t, http.MethodGet, "/api/accounts/alice/monitor", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ERR_HEXADDR", errorCode(t, data))
}

func TestReady(t *testing.T) {
	e := echo.New()
	NewHealthHandler(map[string]Check{
		"clickhouse": func(context.Context) error { return nil },
		"redis":      func(context.Context) error { return errors.New("connection refused") },
	}).RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
