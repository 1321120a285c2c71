// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics instruments the pipeline's external calls and research
// tasks with Prometheus collectors on a private registry, and serves them
// over HTTP when an address is configured.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/research"
	"github.com/pdiddy/deep-research/internal/search"
	"github.com/pdiddy/deep-research/internal/supervisor"
)

const namespace = "deep_research"

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeFallback = "fallback"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	completions        *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	searches           *prometheus.CounterVec
	searchDuration     prometheus.Histogram
	tasks              *prometheus.CounterVec
	tasksInFlight      prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Completion calls by pipeline stage and outcome.",
		}, []string{"stage", "outcome"}),
		completionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Completion call latency by pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"stage"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Web search calls by outcome.",
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Web search latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_tasks_total",
			Help:      "Delegated research tasks by outcome.",
		}, []string{"outcome"}),
		tasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "research_tasks_in_flight",
			Help:      "Research tasks currently executing.",
		}),
	}
	m.registry.MustRegister(
		m.completions, m.completionDuration,
		m.searches, m.searchDuration,
		m.tasks, m.tasksInFlight,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Completer counts and times every call c makes under the stage label.
func (m *Metrics) Completer(stage string, c llm.Completer) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		start := time.Now()
		text, err := c.Complete(ctx, req)
		m.completionDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		m.completions.WithLabelValues(stage, outcome(err)).Inc()
		return text, err
	})
}

// Searcher counts and times every search s performs.
func (m *Metrics) Searcher(s search.Searcher) search.Searcher {
	return search.SearcherFunc(func(ctx context.Context, q search.Query) (search.Response, error) {
		start := time.Now()
		resp, err := s.Search(ctx, q)
		m.searchDuration.Observe(time.Since(start).Seconds())
		m.searches.WithLabelValues(outcome(err)).Inc()
		return resp, err
	})
}

// Researcher counts research tasks, separating compression fallbacks from
// clean successes.
func (m *Metrics) Researcher(r supervisor.Researcher) supervisor.Researcher {
	return supervisor.ResearcherFunc(func(ctx context.Context, topic string) (research.Output, error) {
		m.tasksInFlight.Inc()
		defer m.tasksInFlight.Dec()

		out, err := r.Research(ctx, topic)
		switch {
		case err != nil:
			m.tasks.WithLabelValues(OutcomeError).Inc()
		case out.Compressed.Fallback:
			m.tasks.WithLabelValues(OutcomeFallback).Inc()
		default:
			m.tasks.WithLabelValues(OutcomeOK).Inc()
		}
		return out, err
	})
}

// WatchCache exports the hit and miss counts of a search cache.
func (m *Metrics) WatchCache(c *search.CachedSearcher) error {
	hits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_cache_hits_total",
		Help:      "Searches answered from the run cache.",
	}, func() float64 { return float64(c.Hits()) })
	misses := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_cache_misses_total",
		Help:      "Searches forwarded to the search provider.",
	}, func() float64 { return float64(c.Misses()) })
	if err := m.registry.Register(hits); err != nil {
		return fmt.Errorf("registering cache hits: %w", err)
	}
	if err := m.registry.Register(misses); err != nil {
		m.registry.Unregister(hits)
		return fmt.Errorf("registering cache misses: %w", err)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
