package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "swapper"

// Metrics holds the session counters. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	reads        *prometheus.CounterVec
	staleReads   *prometheus.CounterVec
	transactions *prometheus.CounterVec
	steps        *prometheus.CounterVec
}

// New registers the session collectors, plus the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "chain",
				Name:      "reads_total",
				Help:      "Contract reads by kind and outcome",
			},
			[]string{"kind", "outcome"}, // pool/allowance/quote/balance
		),
		staleReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "stale_reads_total",
				Help:      "Read results dropped because the intent changed",
			},
			[]string{"kind"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "transactions_total",
				Help:      "Approval and swap transactions by status",
			},
			[]string{"kind", "status"}, // approve/swap, submitted/confirmed/failed/rejected
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "step_transitions_total",
				Help:      "Transitions into each session step",
			},
			[]string{"step"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reads,
		m.staleReads,
		m.transactions,
		m.steps,
	)
	return m
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRead(kind, outcome string) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveStale(kind string) {
	if m == nil {
		return
	}
	m.staleReads.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveTx(kind, status string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ObserveStep(step string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(step).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if m == nil || addr == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
