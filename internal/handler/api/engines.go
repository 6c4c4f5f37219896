package api

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"

	"DefiGuard/internal/domain/models"
	svcmetrics "DefiGuard/internal/service/metrics"
	"DefiGuard/internal/services/anomaly"
	"DefiGuard/internal/services/biometrics"
	"DefiGuard/internal/services/liquidity"
	"DefiGuard/internal/services/risk"
	xhttp "DefiGuard/pkg/http"
	applogger "DefiGuard/pkg/logger"
)

// EnginesHandler exposes the stateless scoring engines.
type EnginesHandler struct {
	logger    *applogger.Logger
	verifier  *biometrics.Verifier
	scorer    *risk.Scorer
	rules     *anomaly.RuleDetector
	zscore    *anomaly.ZScoreDetector
	liquidity *liquidity.Optimizer
}

func NewEnginesHandler(
	logger *applogger.Logger,
	verifier *biometrics.Verifier,
	scorer *risk.Scorer,
	rules *anomaly.RuleDetector,
	zscore *anomaly.ZScoreDetector,
	liq *liquidity.Optimizer,
) *EnginesHandler {
	return &EnginesHandler{
		logger:    logger,
		verifier:  verifier,
		scorer:    scorer,
		rules:     rules,
		zscore:    zscore,
		liquidity: liq,
	}
}

func (h *EnginesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/biometrics/verify", h.VerifyBiometric)
	g.POST("/biometrics/hash", h.HashBiometric)
	g.POST("/risk/score", h.ScoreRisk)
	g.POST("/anomalies/detect", h.DetectAnomalies)
	g.POST("/liquidity/range", h.OptimizeRange)
	g.POST("/liquidity/parameters", h.OptimizeParameters)
}

type VerifyBiometricResponse struct {
	Verified bool                   `json:"verified"`
	Scores   models.BiometricScores `json:"scores"`
}

func (h *EnginesHandler) VerifyBiometric(c echo.Context) error {
	defer observe("biometrics_verify", time.Now())
	req := &models.VerifyBiometricRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	scores, _ := h.verifier.Score(req.Sample)
	return xhttp.SuccessResponse(c, &VerifyBiometricResponse{
		Verified: h.verifier.Verify(req.Sample),
		Scores:   scores,
	})
}

type HashBiometricResponse struct {
	Hash string `json:"hash"`
}

func (h *EnginesHandler) HashBiometric(c echo.Context) error {
	defer observe("biometrics_hash", time.Now())
	req := &models.VerifyBiometricRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sum := h.verifier.Hash(req.Sample)
	return xhttp.SuccessResponse(c, &HashBiometricResponse{Hash: hexutil.Encode(sum[:])})
}

type ScoreRiskResponse struct {
	RiskScore float64            `json:"risk_score"`
	Breakdown risk.Contributions `json:"breakdown"`
}

func (h *EnginesHandler) ScoreRisk(c echo.Context) error {
	defer observe("risk_score", time.Now())
	req := &models.ScoreRiskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	b := h.scorer.Breakdown(req.Features)
	return xhttp.SuccessResponse(c, &ScoreRiskResponse{RiskScore: b.Score, Breakdown: b})
}

type DetectAnomaliesResponse struct {
	Method       string           `json:"method"`
	Anomalies    []models.Anomaly `json:"anomalies"`
	AnomalyScore float64          `json:"anomaly_score"`
}

// DetectAnomalies runs the rule detector, or the z-score detector over the supplied window.
func (h *EnginesHandler) DetectAnomalies(c echo.Context) error {
	defer observe("anomalies_detect", time.Now())
	req := &models.DetectAnomaliesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var res models.AnomalyResult
	if req.Method == "zscore" {
		res = h.zscore.Evaluate(req.Current, req.History)
	} else {
		res = h.rules.Evaluate(req.Current, req.Historical)
	}
	out := &DetectAnomaliesResponse{
		Method:       req.Method,
		Anomalies:    res.Flags,
		AnomalyScore: res.Aggregate(),
	}
	if out.Anomalies == nil {
		out.Anomalies = []models.Anomaly{}
	}
	return xhttp.SuccessResponse(c, out)
}

type RangeResponse struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Valid  bool    `json:"valid"`
	Reason string  `json:"reason,omitempty"`
}

func (h *EnginesHandler) OptimizeRange(c echo.Context) error {
	defer observe("liquidity_range", time.Now())
	req := &models.LiquidityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r := h.liquidity.OptimizeRange(req.Metrics)
	out := &RangeResponse{Min: r.Min, Max: r.Max, Valid: true}
	if err := h.liquidity.Validate(req.Metrics); err != nil {
		out.Valid = false
		out.Reason = err.Error()
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *EnginesHandler) OptimizeParameters(c echo.Context) error {
	defer observe("liquidity_parameters", time.Now())
	req := &models.LiquidityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.liquidity.OptimizeParameters(req.Metrics))
}

func observe(endpoint string, start time.Time) {
	svcmetrics.EngineLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
