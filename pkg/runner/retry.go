package runner

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Sternrassler/catalog-harvester/pkg/catalog"
	"github.com/Sternrassler/catalog-harvester/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	timeoutRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_timeout_retries_total",
		Help: "Total page fetches re-issued after a timeout",
	})

	retryDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_timeout_retry_delay_seconds",
		Help:    "Delay before re-issuing a timed out fetch",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// RetryConfig controls how timed out fetches are re-issued. There is no
// attempt ceiling; only context cancellation ends the loop.
type RetryConfig struct {
	// Delay is the wait before the first re-issue. Zero retries immediately.
	Delay time.Duration

	// MaxDelay caps the delay growth. Zero means Delay is never exceeded.
	MaxDelay time.Duration

	// Multiplier grows the delay after each consecutive timeout. Values
	// below 1 keep the delay constant.
	Multiplier float64
}

// DefaultRetryConfig retries immediately.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Multiplier: 1}
}

func (r RetryConfig) next(delay time.Duration) time.Duration {
	if r.Multiplier <= 1 {
		return delay
	}
	grown := time.Duration(float64(delay) * r.Multiplier)
	limit := r.MaxDelay
	if limit < r.Delay {
		limit = r.Delay
	}
	if grown > limit {
		return limit
	}
	return grown
}

// jitter spreads a delay by ±20%.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}

// fetchWithRetry issues the fetch until the outcome is something other than
// timed_out. It returns an error only when ctx ends while retrying.
func (c *Controller) fetchWithRetry(ctx context.Context, group catalog.Group, cursor string, summary *Summary) (pagination.Outcome, error) {
	delay := c.cfg.Retry.Delay

	for attempt := 1; ; attempt++ {
		outcome := c.fetcher.FetchPage(ctx, group, cursor)
		if outcome.Kind != pagination.OutcomeTimedOut {
			if attempt > 1 {
				c.logger.Info().
					Int("group_index", group.Index).
					Str("page_token", cursor).
					Int("attempt", attempt).
					Msg("Fetch succeeded after timeout retry")
			}
			return outcome, nil
		}

		if err := ctx.Err(); err != nil {
			return outcome, fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
		}

		summary.TimeoutRetries++
		timeoutRetriesTotal.Inc()

		wait := jitter(delay)
		c.logger.Warn().
			Int("group_index", group.Index).
			Str("page_token", cursor).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Fetch timed out, retrying")

		if wait > 0 {
			retryDelaySeconds.Observe(wait.Seconds())
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return outcome, fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
			case <-timer.C:
			}
			delay = c.cfg.Retry.next(delay)
		}
	}
}
