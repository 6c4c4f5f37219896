package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "DefiGuard/internal/middleware"
	"DefiGuard/internal/service/capture"
	"DefiGuard/internal/service/ratelimit"
	"DefiGuard/internal/usecase"
	"DefiGuard/pkg/config"
	xhttp "DefiGuard/pkg/http"
	pkgkafka "DefiGuard/pkg/kafka"
	applogger "DefiGuard/pkg/logger"
	"DefiGuard/pkg/queue"
)

const (
	limiterIdle      = 10 * time.Minute
	limiterPruneTick = time.Minute
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server

	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler
	pipe     *mid.PoolPipeline
	queue    *queue.RedisQueue
	capture  *capture.Store
	limiter  *ratelimit.Limiter
	auditor  *usecase.BackgroundAuditor
	monitor  *usecase.TransactionMonitor
}

type Option func(*App)

// WithConsumer attaches the pool metrics consumer. A nil consumer leaves the pipeline
// reachable only through the optimize endpoint.
func WithConsumer(c *pkgkafka.Consumer, kh pkgkafka.MessageHandler, pipe *mid.PoolPipeline) Option {
	return func(a *App) {
		a.consumer = c
		a.kh = kh
		a.pipe = pipe
	}
}

func WithAuditQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.queue = q }
}

func WithCapture(s *capture.Store) Option {
	return func(a *App) { a.capture = s }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(a *App) { a.limiter = l }
}

// WithDrain registers background workers that are awaited on shutdown.
func WithDrain(aud *usecase.BackgroundAuditor, mon *usecase.TransactionMonitor) Option {
	return func(a *App) {
		a.auditor = aud
		a.monitor = mon
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, handlers []xhttp.Handler, opts ...Option) *App {
	metricsPath := cfg.Metrics.Path
	if !cfg.Metrics.Enabled {
		metricsPath = ""
	}
	a := &App{
		cfg: cfg,
		l:   l,
		httpServer: xhttp.NewServer(l, handlers,
			xhttp.WithPort(cfg.Server.Port),
			xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
			xhttp.WithMetricsPath(metricsPath),
			xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
		a.l.Info("audit queue started", applogger.String("name", a.cfg.Queue.Name))
	}

	if a.pipe != nil {
		a.pipe.Start(ctx)
	}
	if a.capture != nil {
		go a.capture.Run(ctx)
	}
	if a.monitor != nil {
		go a.monitor.Run(ctx)
	}
	if a.limiter != nil {
		go a.pruneLimiter(ctx)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("defiguard started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("node", a.cfg.Aptos.NodeURL),
	)

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) pruneLimiter(ctx context.Context) {
	t := time.NewTicker(limiterPruneTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Prune(limiterIdle); n > 0 {
				a.l.Debug("rate limiter pruned", applogger.Int("buckets", n))
			}
		}
	}
}

// shutdown stops intake first, then drains background work.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.pipe != nil {
		a.pipe.Stop()
	}
	if a.monitor != nil {
		if err := a.monitor.Wait(ctx); err != nil {
			a.l.Warn("monitor drain incomplete", applogger.Error(err))
		}
	}
	if a.auditor != nil {
		if err := a.auditor.Wait(ctx); err != nil {
			a.l.Warn("audit drain incomplete", applogger.Error(err))
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.l.Warn("audit queue stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
