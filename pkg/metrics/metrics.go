// Package metrics exposes the harvester's Prometheus metrics over HTTP.
// All metrics are defined in their respective packages (client, pagination,
// checkpoint, runner, sink, catalog) to keep those packages self-contained.
//
// This package provides the /metrics endpoint and documents every metric.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the Prometheus registry every harvester metric is registered
// with through promauto.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

const shutdownTimeout = 5 * time.Second

// Handler returns an HTTP handler serving /metrics and /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	return mux
}

// Serve listens on addr and serves Handler until ctx is done, then shuts
// the server down gracefully.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return serve(ctx, ln, logger)
}

func serve(ctx context.Context, ln net.Listener, logger zerolog.Logger) error {
	srv := &http.Server{
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics server started")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	logger.Info().Msg("Metrics server stopped")
	return nil
}

// Metrics Documentation
//
// Client Metrics (pkg/client):
//   - harvester_api_requests_total{status} (Counter): API calls by HTTP status
//   - harvester_api_request_duration_seconds (Histogram): API call duration
//   - harvester_api_errors_total{class} (Counter): Errors by class (quota, timeout, client, server, network, decode)
//
// Fetch Metrics (pkg/pagination):
//   - harvester_fetch_outcomes_total{kind} (Counter): Page fetches by outcome (ok, quota_exceeded, timed_out, failed)
//   - harvester_fetch_duration_seconds (Histogram): Page fetch duration including decoding
//
// Decode Metrics (pkg/catalog):
//   - harvester_decoded_records_total (Counter): Items decoded into records
//   - harvester_record_decode_failures_total (Counter): Malformed items skipped
//
// Checkpoint Metrics (pkg/checkpoint):
//   - harvester_flushes_total{result} (Counter): Flush attempts by result
//   - harvester_flushed_records_total (Counter): Records written to durable storage
//   - harvester_buffered_records (Gauge): Records awaiting a flush
//
// Run Metrics (pkg/runner):
//   - harvester_groups_total{result} (Counter): Groups by result (drained, failed, quota_exceeded)
//   - harvester_timeout_retries_total (Counter): Fetches re-issued after a timeout
//   - harvester_timeout_retry_delay_seconds (Histogram): Delay before a re-issue
//
// Sink Metrics (pkg/sink):
//   - harvester_sink_writes_total{backend, result} (Counter): Blob writes by backend
//
// Example Prometheus Queries:
//
//   # Records at risk (not yet durable)
//   harvester_buffered_records
//
//   # Timeout rate
//   rate(harvester_fetch_outcomes_total{kind="timed_out"}[5m])
//
//   # P95 API latency
//   histogram_quantile(0.95, rate(harvester_api_request_duration_seconds_bucket[5m]))
