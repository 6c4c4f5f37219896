package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    EngineLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "defiguard",
            Subsystem: "engine",
            Name:      "latency_seconds",
            Help:      "Latency of engine endpoints",
            Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
        },
        []string{"endpoint"},
    )

    EngineErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "defiguard",
            Subsystem: "engine",
            Name:      "errors_total",
            Help:      "Errors by engine endpoint",
        },
        []string{"endpoint", "kind"},
    )

    RateLimited = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "defiguard",
            Subsystem: "engine",
            Name:      "rate_limited_total",
            Help:      "Assessment requests rejected by the per-sender limiter",
        },
    )

    PipelineEvents = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "defiguard",
            Subsystem: "pipeline",
            Name:      "events_total",
            Help:      "Pool snapshots by pipeline outcome",
        },
        []string{"event"},
    )

    PipelineBufferDepth = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "defiguard",
            Subsystem: "pipeline",
            Name:      "buffer_depth",
            Help:      "Pool snapshots waiting for retry",
        },
    )
)

// Register adds the engine collectors to the default registry once.
func Register() {
    once.Do(func() {
        prometheus.MustRegister(EngineLatency, EngineErrors, RateLimited, PipelineEvents, PipelineBufferDepth)
    })
}
