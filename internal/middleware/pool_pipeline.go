package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"DefiGuard/internal/domain/models"
	svcmetrics "DefiGuard/internal/service/metrics"
	applogger "DefiGuard/pkg/logger"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, st *models.PoolState) error
}

// PoolPipeline sits between the pool metrics consumer and the optimizer.
// It validates, throttles per pool, and buffers snapshots when downstream fails.
// The retry buffer holds at most one snapshot per pool, always the newest, and a
// buffered snapshot is discarded once a newer one for the same pool is applied.
type PoolPipeline struct {
	proc       Proc
	l          *applogger.Logger
	interval   time.Duration
	bufSize    int
	workers    int
	maxRetries int
	notify     chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup

	mu       sync.Mutex
	started  bool
	lastSeen map[string]time.Time // per-pool last accepted time
	seq      map[string]uint64    // per-pool sequence of accepted snapshots
	applied  map[string]uint64    // per-pool sequence of the last applied snapshot
	pending  map[string]*retryEntry
	order    []string
}

type retryEntry struct {
	st       *models.PoolState
	seq      uint64
	attempts int
}

type PipelineOption func(*PoolPipeline)

// WithThrottleInterval sets the minimum time between two snapshots of the same pool.
func WithThrottleInterval(d time.Duration) PipelineOption {
	return func(p *PoolPipeline) {
		if d >= 0 {
			p.interval = d
		}
	}
}

// WithBufferSize sets how many pools can wait for retry while downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *PoolPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithWorkers(n int) PipelineOption {
	return func(p *PoolPipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxRetries caps the retry attempts of a buffered snapshot before it is dropped.
func WithMaxRetries(n int) PipelineOption {
	return func(p *PoolPipeline) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// NewPoolPipeline creates a new pipeline.
func NewPoolPipeline(proc Proc, l *applogger.Logger, opts ...PipelineOption) *PoolPipeline {
	p := &PoolPipeline{
		proc:       proc,
		l:          l,
		interval:   30 * time.Second,
		bufSize:    1024,
		workers:    1,
		maxRetries: 5,
		notify:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		lastSeen:   make(map[string]time.Time),
		seq:        make(map[string]uint64),
		applied:    make(map[string]uint64),
		pending:    make(map[string]*retryEntry),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers that retry buffered snapshots.
func (p *PoolPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.flush(ctx)
	}
}

// Stop stops the retry workers. Buffered snapshots are dropped.
func (p *PoolPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	p.wg.Wait()
}

func (p *PoolPipeline) flush(ctx context.Context) {
	defer p.wg.Done()
	backoff := 50 * time.Millisecond
	for {
		e := p.next()
		if e == nil {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case <-p.notify:
			}
			continue
		}
		if p.superseded(e) {
			svcmetrics.PipelineEvents.WithLabelValues("superseded").Inc()
			continue
		}
		if err := p.proc.Process(ctx, e.st); err != nil {
			// exponential backoff with cap
			if backoff < 2*time.Second {
				backoff *= 2
			}
			svcmetrics.PipelineEvents.WithLabelValues("flush_error").Inc()
			e.attempts++
			if e.attempts >= p.maxRetries {
				svcmetrics.PipelineEvents.WithLabelValues("retry_exhausted").Inc()
				p.l.Warn("pipeline retries exhausted, snapshot dropped",
					applogger.String("pool", e.st.Address), applogger.Int("attempts", e.attempts), applogger.Error(err))
				continue
			}
			p.l.Warn("pipeline retry failed", applogger.String("pool", e.st.Address), applogger.Error(err))
			select {
			case <-time.After(backoff):
			case <-p.stopCh:
				return
			}
			p.requeue(e)
			continue
		}
		backoff = 50 * time.Millisecond
		p.markApplied(e.st.Address, e.seq)
		svcmetrics.PipelineEvents.WithLabelValues("flushed").Inc()
	}
}

// Process validates, throttles, and forwards a snapshot downstream. A failed snapshot is
// buffered for retry; only a full buffer surfaces the downstream error. Throttled
// snapshots are dropped without error.
func (p *PoolPipeline) Process(ctx context.Context, st *models.PoolState) error {
	if err := validateSnapshot(st); err != nil {
		svcmetrics.PipelineEvents.WithLabelValues("invalid").Inc()
		return err
	}
	seq, ok := p.accept(st.Address, time.Now())
	if !ok {
		svcmetrics.PipelineEvents.WithLabelValues("throttled").Inc()
		return nil
	}

	if err := p.proc.Process(ctx, st); err != nil {
		svcmetrics.PipelineEvents.WithLabelValues("process_error").Inc()
		if p.enqueue(&retryEntry{st: st, seq: seq}) {
			return nil
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.markApplied(st.Address, seq)
	svcmetrics.PipelineEvents.WithLabelValues("processed").Inc()
	return nil
}

// enqueue buffers e, replacing any older snapshot already waiting for the same pool.
func (p *PoolPipeline) enqueue(e *retryEntry) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pool := e.st.Address
	if old, ok := p.pending[pool]; ok {
		if old.seq < e.seq {
			p.pending[pool] = e
		}
		return true
	}
	if len(p.pending) >= p.bufSize {
		svcmetrics.PipelineEvents.WithLabelValues("buffer_full").Inc()
		p.l.Warn("pipeline buffer full, snapshot dropped", applogger.String("pool", pool))
		return false
	}
	p.pending[pool] = e
	p.order = append(p.order, pool)
	svcmetrics.PipelineBufferDepth.Set(float64(len(p.pending)))
	p.signal()
	return true
}

// requeue puts a failed retry back unless a newer snapshot took its place meanwhile.
func (p *PoolPipeline) requeue(e *retryEntry) {
	p.mu.Lock()
	stale := p.pending[e.st.Address] != nil || p.applied[e.st.Address] > e.seq
	p.mu.Unlock()
	if stale {
		svcmetrics.PipelineEvents.WithLabelValues("superseded").Inc()
		return
	}
	p.enqueue(e)
}

func (p *PoolPipeline) next() *retryEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.order) > 0 {
		pool := p.order[0]
		p.order = p.order[1:]
		e, ok := p.pending[pool]
		if !ok {
			continue
		}
		delete(p.pending, pool)
		svcmetrics.PipelineBufferDepth.Set(float64(len(p.pending)))
		if len(p.order) > 0 {
			p.signal()
		}
		return e
	}
	return nil
}

func (p *PoolPipeline) superseded(e *retryEntry) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applied[e.st.Address] > e.seq
}

func (p *PoolPipeline) markApplied(pool string, seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq > p.applied[pool] {
		p.applied[pool] = seq
	}
	if e, ok := p.pending[pool]; ok && e.seq < seq {
		delete(p.pending, pool)
		svcmetrics.PipelineBufferDepth.Set(float64(len(p.pending)))
		svcmetrics.PipelineEvents.WithLabelValues("superseded").Inc()
	}
}

// signal wakes one idle worker. Callers hold p.mu.
func (p *PoolPipeline) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Buffered returns the number of pools waiting for retry.
func (p *PoolPipeline) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func validateSnapshot(st *models.PoolState) error {
	if st == nil {
		return fmt.Errorf("snapshot nil")
	}
	if st.Address == "" {
		return fmt.Errorf("pool address empty")
	}
	m := st.Metrics
	for name, v := range map[string]float64{
		"pool_depth":    m.PoolDepth,
		"volatility":    m.Volatility,
		"volume_24h":    m.Volume24h,
		"current_price": m.CurrentPrice,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s invalid: %v", name, v)
		}
	}
	return nil
}

// accept applies the per-pool throttle and stamps an accepted snapshot with its sequence.
func (p *PoolPipeline) accept(pool string, now time.Time) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interval > 0 {
		last, ok := p.lastSeen[pool]
		if ok && now.Sub(last) < p.interval {
			return 0, false
		}
		p.lastSeen[pool] = now
	}
	p.seq[pool]++
	return p.seq[pool], true
}
