// Package metrics provides Prometheus metrics for the savegame engine.
//
// Every method is safe to call on a nil *Metrics, so components can hold an
// optional reference without guarding each call.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "savegames"

// Metrics holds the collectors registered on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	scansTotal       *prometheus.CounterVec
	scanDuration     prometheus.Histogram
	readFailures     prometheus.Counter
	readRetries      prometheus.Counter
	catalogSize      prometheus.Gauge
	publishesSkipped prometheus.Counter
	transfersTotal   *prometheus.CounterVec
	watchErrors      prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Total number of save directory scans",
			},
			[]string{"status"},
		),
		scanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Time to list a save directory",
				Buckets:   prometheus.DefBuckets,
			},
		),
		readFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "read_failures_total",
				Help:      "Save files whose header could not be read after retries",
			},
		),
		readRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "read_retries_total",
				Help:      "Header reads retried after a transient failure",
			},
		),
		catalogSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_size",
				Help:      "Number of saves in the published catalog",
			},
		),
		publishesSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publishes_skipped_total",
				Help:      "Refreshes that found no change and were not published",
			},
		),
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Files processed by transfer and delete operations",
			},
			[]string{"operation", "status"},
		),
		watchErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_errors_total",
				Help:      "Directory watches torn down because of an error",
			},
		),
	}
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFile counts one file handled by a transfer or delete operation.
func (m *Metrics) ObserveFile(operation string, err error) {
	if m == nil {
		return
	}

	m.transfersTotal.WithLabelValues(operation, status(err)).Inc()
}

// ObserveReadFailure counts a save whose header could not be read.
func (m *Metrics) ObserveReadFailure() {
	if m == nil {
		return
	}

	m.readFailures.Inc()
}

// ObserveReadRetry counts a retried header read.
func (m *Metrics) ObserveReadRetry() {
	if m == nil {
		return
	}

	m.readRetries.Inc()
}

// ObserveScan records a directory scan.
func (m *Metrics) ObserveScan(duration time.Duration, err error) {
	if m == nil {
		return
	}

	m.scansTotal.WithLabelValues(status(err)).Inc()
	m.scanDuration.Observe(duration.Seconds())
}

// ObserveSkippedPublish counts a refresh that the differ found unchanged.
func (m *Metrics) ObserveSkippedPublish() {
	if m == nil {
		return
	}

	m.publishesSkipped.Inc()
}

// ObserveWatchError counts a torn down directory watch.
func (m *Metrics) ObserveWatchError() {
	if m == nil {
		return
	}

	m.watchErrors.Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second, //nolint:mnd // Scrapes are small
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}

	return nil
}

// SetCatalogSize records the size of the published catalog.
func (m *Metrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}

	m.catalogSize.Set(float64(n))
}

func status(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}
