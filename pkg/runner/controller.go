package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-harvester/pkg/catalog"
	"github.com/Sternrassler/catalog-harvester/pkg/checkpoint"
	"github.com/Sternrassler/catalog-harvester/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultFlushInterval is the group index interval of periodic checkpoints.
const DefaultFlushInterval = 199

var groupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "harvester_groups_total",
	Help: "Total groups processed by result",
}, []string{"result"})

// PageFetcher fetches one classified page.
type PageFetcher interface {
	FetchPage(ctx context.Context, group catalog.Group, cursor string) pagination.Outcome
}

// Buffer is the record buffer the controller feeds and flushes.
type Buffer interface {
	Append(records []catalog.Record)
	FlushIfNonEmpty(ctx context.Context) (checkpoint.FlushResult, error)
	Len() int
}

// Config holds the run policy.
type Config struct {
	// FlushInterval flushes after every drained group whose index is a
	// positive multiple of it.
	FlushInterval int

	// Retry controls re-issuing timed out fetches.
	Retry RetryConfig
}

// DefaultConfig returns the default run policy.
func DefaultConfig() Config {
	return Config{
		FlushInterval: DefaultFlushInterval,
		Retry:         DefaultRetryConfig(),
	}
}

// Controller runs the fetch loop once. It is single use.
type Controller struct {
	fetcher PageFetcher
	buffer  Buffer
	cfg     Config
	logger  zerolog.Logger

	mu    sync.RWMutex
	state State
}

// New creates a Controller. A non-positive FlushInterval falls back to the default.
func New(fetcher PageFetcher, buffer Buffer, cfg Config, logger zerolog.Logger) *Controller {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Controller{
		fetcher: fetcher,
		buffer:  buffer,
		cfg:     cfg,
		logger:  logger,
		state:   StateIdle,
	}
}

// State returns the current lifecycle state. Safe to call from any goroutine.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return false
	}
	c.state = StateRunning
	return true
}

// Run processes groups in order. It returns nil when every group was
// processed or when the quota ran out; Summary.Reason tells them apart.
// Cancellation of ctx yields an error wrapping ErrInterrupted.
func (c *Controller) Run(ctx context.Context, groups []catalog.Group) (summary Summary, err error) {
	if !c.start() {
		return Summary{}, ErrAlreadyStarted
	}

	started := time.Now()
	summary = Summary{Groups: len(groups), LastGroup: -1}

	c.logger.Info().
		Int("groups", len(groups)).
		Int("flush_interval", c.cfg.FlushInterval).
		Msg("Run started")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			summary.Reason = ReasonError
			summary.Cause = err
			c.logger.Error().
				Interface("panic", r).
				Int("group_index", summary.LastGroup).
				Msg("Run panicked, flushing buffered records")
		}

		if cleanupErr := c.flush(ctx, "cleanup", &summary); cleanupErr != nil {
			err = errors.Join(err, cleanupErr)
			summary.Reason = ReasonError
			if summary.Cause == nil {
				summary.Cause = cleanupErr
			}
		}

		if summary.Reason == ReasonCompleted {
			c.setState(StateCompleted)
		} else {
			c.setState(StateAborted)
		}
		summary.Duration = time.Since(started)
		c.logSummary(summary, err)
	}()

	reason, loopErr := c.loop(ctx, groups, &summary)
	summary.Reason = reason
	summary.Cause = loopErr
	if reason == ReasonQuotaExceeded {
		return summary, nil
	}
	return summary, loopErr
}

func (c *Controller) loop(ctx context.Context, groups []catalog.Group, summary *Summary) (Reason, error) {
	for _, group := range groups {
		if ctx.Err() != nil {
			return ReasonInterrupted, interrupted(ctx)
		}

		summary.LastGroup = group.Index
		result, err := c.drain(ctx, group, summary)
		switch result {
		case groupInterrupted:
			return ReasonInterrupted, err

		case groupQuota:
			groupsTotal.WithLabelValues("quota_exceeded").Inc()
			c.logger.Error().
				Err(err).
				Int("group_index", group.Index).
				Int("buffered", c.buffer.Len()).
				Msg("Quota exceeded, stopping run")
			if flushErr := c.flush(ctx, "quota", summary); flushErr != nil {
				return ReasonError, flushErr
			}
			if err == nil {
				return ReasonQuotaExceeded, ErrQuotaExceeded
			}
			return ReasonQuotaExceeded, fmt.Errorf("%w: %w", ErrQuotaExceeded, err)

		case groupFailed:
			summary.GroupsFailed++
			groupsTotal.WithLabelValues("failed").Inc()
			c.logger.Warn().
				Err(err).
				Int("group_index", group.Index).
				Int("group_size", group.Len()).
				Msg("Group abandoned")

		case groupDrained:
			summary.GroupsDrained++
			groupsTotal.WithLabelValues("drained").Inc()
			if c.checkpointDue(group.Index) {
				if flushErr := c.flush(ctx, "checkpoint", summary); flushErr != nil {
					c.logger.Error().
						Err(flushErr).
						Int("group_index", group.Index).
						Msg("Checkpoint flush failed, stopping run")
					return ReasonError, flushErr
				}
			}
		}
	}
	return ReasonCompleted, nil
}

type groupResult int

const (
	groupDrained groupResult = iota
	groupFailed
	groupQuota
	groupInterrupted
)

// drain pages through one group until it is exhausted or fails.
func (c *Controller) drain(ctx context.Context, group catalog.Group, summary *Summary) (groupResult, error) {
	cursor := ""
	for {
		outcome, err := c.fetchWithRetry(ctx, group, cursor, summary)
		if err != nil {
			return groupInterrupted, err
		}

		switch outcome.Kind {
		case pagination.OutcomeOK:
			summary.Pages++
			summary.Records += len(outcome.Records)
			summary.SkippedItems += outcome.Skipped
			c.buffer.Append(outcome.Records)

			if ctx.Err() != nil {
				return groupInterrupted, interrupted(ctx)
			}
			if !outcome.HasNext() {
				return groupDrained, nil
			}
			cursor = outcome.NextCursor

		case pagination.OutcomeQuotaExceeded:
			return groupQuota, outcome.Err

		default:
			// An aborted in-flight request surfaces as a failure; report
			// it as the interrupt it is.
			if ctx.Err() != nil {
				return groupInterrupted, interrupted(ctx)
			}
			return groupFailed, outcome.Err
		}
	}
}

func (c *Controller) checkpointDue(index int) bool {
	return index > 0 && index%c.cfg.FlushInterval == 0
}

// flush writes the buffer if it holds anything. The write is detached from
// ctx cancellation so an interrupt cannot lose buffered records.
func (c *Controller) flush(ctx context.Context, trigger string, summary *Summary) error {
	if c.buffer.Len() == 0 {
		return nil
	}

	prev := c.State()
	c.setState(StateFlushing)
	defer c.setState(prev)

	result, err := c.buffer.FlushIfNonEmpty(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("%s flush: %w", trigger, err)
	}
	if result.Flushed {
		summary.Flushes++
		summary.FlushedRecords += result.Records
		c.logger.Info().
			Str("trigger", trigger).
			Str("destination", result.Destination).
			Int("records", result.Records).
			Msg("Checkpoint written")
	}
	return nil
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
}

func (c *Controller) logSummary(s Summary, err error) {
	level := zerolog.InfoLevel
	switch s.Reason {
	case ReasonQuotaExceeded, ReasonInterrupted:
		level = zerolog.WarnLevel
	case ReasonError:
		level = zerolog.ErrorLevel
	}

	c.logger.WithLevel(level).
		Err(err).
		Str("reason", string(s.Reason)).
		Int("groups", s.Groups).
		Int("groups_drained", s.GroupsDrained).
		Int("groups_failed", s.GroupsFailed).
		Int("pages", s.Pages).
		Int("records", s.Records).
		Int("skipped_items", s.SkippedItems).
		Int("timeout_retries", s.TimeoutRetries).
		Int("flushes", s.Flushes).
		Int("flushed_records", s.FlushedRecords).
		Dur("duration", s.Duration).
		Msg("Run finished")
}
