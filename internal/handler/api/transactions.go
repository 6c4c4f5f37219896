package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"DefiGuard/internal/domain/models"
	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/internal/repository"
	svcmetrics "DefiGuard/internal/service/metrics"
	"DefiGuard/internal/service/ratelimit"
	"DefiGuard/internal/usecase"
	xhttp "DefiGuard/pkg/http"
	applogger "DefiGuard/pkg/logger"
)

// TransactionsHandler serves the orchestrated operations: assessment, secure transfer,
// pool optimization and account monitoring.
type TransactionsHandler struct {
	logger   *applogger.Logger
	assessor *usecase.Assessor
	pools    *usecase.PoolOptimizer
	monitor  *usecase.TransactionMonitor
	capture  domrepo.BiometricSource
	limiter  *ratelimit.Limiter
}

func NewTransactionsHandler(
	logger *applogger.Logger,
	assessor *usecase.Assessor,
	pools *usecase.PoolOptimizer,
	monitor *usecase.TransactionMonitor,
	capture domrepo.BiometricSource,
	limiter *ratelimit.Limiter,
) *TransactionsHandler {
	return &TransactionsHandler{
		logger:   logger,
		assessor: assessor,
		pools:    pools,
		monitor:  monitor,
		capture:  capture,
		limiter:  limiter,
	}
}

func (h *TransactionsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/transactions/assess", h.Assess)
	g.POST("/transactions/decide", h.Decide)
	g.POST("/transactions/execute", h.Execute)
	g.POST("/pools/:address/optimize", h.OptimizePool)
	g.GET("/accounts/:address/monitor", h.Monitor)
}

func (h *TransactionsHandler) Assess(c echo.Context) error {
	defer observe("transactions_assess", time.Now())
	p, err := h.params(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	as, err := h.assessor.Assess(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "transactions_assess", err)
	}
	return xhttp.SuccessResponse(c, as)
}

type DecideResponse struct {
	Accepted bool `json:"accepted"`
}

func (h *TransactionsHandler) Decide(c echo.Context) error {
	req := &models.DecideRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, &DecideResponse{Accepted: h.assessor.DecideTransfer(&req.Assessment)})
}

func (h *TransactionsHandler) Execute(c echo.Context) error {
	defer observe("transactions_execute", time.Now())
	p, err := h.params(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	d, err := h.assessor.ExecuteSecureTransfer(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "transactions_execute", err)
	}
	return xhttp.SuccessResponse(c, d)
}

func (h *TransactionsHandler) OptimizePool(c echo.Context) error {
	defer observe("pools_optimize", time.Now())
	req := &models.OptimizePoolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	d, err := h.pools.OptimizePool(c.Request().Context(), req.Address)
	if err != nil {
		return h.fail(c, "pools_optimize", err)
	}
	return xhttp.SuccessResponse(c, d)
}

func (h *TransactionsHandler) Monitor(c echo.Context) error {
	defer observe("accounts_monitor", time.Now())
	req := &models.MonitorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := h.monitor.Monitor(c.Request().Context(), req.Address)
	if err != nil {
		return h.fail(c, "accounts_monitor", err)
	}
	return xhttp.SuccessResponse(c, r)
}

// params reads an assess request, applies the per-sender limit and resolves the sample
// from the capture session when none is inline.
func (h *TransactionsHandler) params(c echo.Context) (usecase.AssessParams, error) {
	req := &models.AssessRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return usecase.AssessParams{}, xhttp.BadRequestError("invalid request").WithParam("errors", verr)
	}
	from, err := repository.NormalizeAddress(req.From)
	if err != nil {
		return usecase.AssessParams{}, xhttp.BadRequestError(err.Error())
	}
	to, err := repository.NormalizeAddress(req.To)
	if err != nil {
		return usecase.AssessParams{}, xhttp.BadRequestError(err.Error())
	}
	if h.limiter != nil && !h.limiter.Allow(from) {
		svcmetrics.RateLimited.Inc()
		return usecase.AssessParams{}, xhttp.TooManyRequestsError("too many assessments for sender").WithParam("from", from)
	}

	p := usecase.AssessParams{From: from, To: to, Amount: req.Amount}
	switch {
	case req.Sample != nil:
		p.Sample = *req.Sample
	default:
		s, ok := h.capture.Sample(req.SessionID)
		if !ok {
			return usecase.AssessParams{}, xhttp.NotFoundErrorf("capture session %q not found", req.SessionID)
		}
		p.Sample = s
	}
	return p, nil
}

func (h *TransactionsHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	svcmetrics.EngineErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	h.logger.Error("usecase error",
		applogger.String("endpoint", endpoint),
		applogger.String("code", appErr.Code),
		applogger.Error(err),
	)
	return xhttp.AppErrorResponse(c, appErr)
}
