// Package throttle implements the submission control loop.
//
// Jobs are dispatched strictly sequentially: the controller polls cluster
// occupancy for the target partition and only submits the next job when
// the user's running-job count is below the partition ceiling. Occupancy
// is a globally shared counter this process can only observe, not reserve
// against, so adherence to the ceiling is eventual rather than exact.
// The design trades throughput for bounded, predictable load on a
// multi-tenant cluster.
package throttle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/simkit/mcbatch/pkg/cluster"
)

// State is the lifecycle state of one job inside the controller.
type State string

const (
	StatePending    State = "pending"
	StatePolling    State = "polling"
	StateDispatched State = "dispatched"

	// StateAborted: the attempt or wall-clock budget was exhausted and
	// the job was given up on instead of polling forever.
	StateAborted State = "aborted"
)

// Config configures the controller.
type Config struct {
	// Partition and User identify the occupancy query target.
	Partition string
	User      string

	// Ceiling is the occupancy ceiling; a job is dispatched only when the
	// observed running count is strictly below it.
	Ceiling int

	// PollBackoff is slept after an over-ceiling or unknown occupancy
	// observation. Default: 30s.
	PollBackoff time.Duration

	// Settle paces dispatches: at most one submission per Settle interval.
	// Default: 1s.
	Settle time.Duration

	// MaxAttempts bounds over-ceiling observations (and failed submits)
	// per job. Unknown-occupancy polls do not consume attempts.
	// Zero means retry forever.
	MaxAttempts int

	// MaxWait bounds the wall-clock time spent on a single job.
	// Zero means unbounded.
	MaxWait time.Duration
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		PollBackoff: 30 * time.Second,
		Settle:      time.Second,
	}
}

// Submission is one unit of work for the controller.
//
// Prepare is called once, immediately before the first poll, and returns
// the script to submit; Done is called after a successful dispatch (the
// caller typically removes the script file and records the dispatch).
type Submission struct {
	ID      string
	Prepare func() (scriptPath, workDir string, err error)
	Done    func() error
}

// JobResult describes one job's outcome.
type JobResult struct {
	ID       string
	State    State
	Polls    int
	Backoffs int
}

// Summary aggregates a completed (or aborted) run.
type Summary struct {
	Dispatched int
	Polls      int
	Backoffs   int
	Duration   time.Duration
	Jobs       []JobResult
}

// AbortError reports a job that exhausted its retry budget.
type AbortError struct {
	ID       string
	Reason   string
	Attempts int
	Elapsed  time.Duration
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("job %s aborted after %d attempts (%s): %s",
		e.ID, e.Attempts, e.Elapsed.Round(time.Second), e.Reason)
}

// Controller dispatches submissions one at a time.
//
// Controller is safe for single use only. It is single-threaded by
// design: job k is fully dispatched before job k+1's polling begins, so
// dispatch order is exactly the input order.
type Controller struct {
	queue   cluster.Queue
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter

	// sleep is injectable for tests; the default honors ctx cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Controller. Zero Config durations get defaults.
func New(q cluster.Queue, cfg Config) (*Controller, error) {
	if q == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if cfg.Ceiling <= 0 {
		return nil, fmt.Errorf("occupancy ceiling must be positive, got %d", cfg.Ceiling)
	}
	if cfg.PollBackoff <= 0 {
		cfg.PollBackoff = DefaultConfig().PollBackoff
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultConfig().Settle
	}
	return &Controller{
		queue:   q,
		cfg:     cfg,
		logger:  zap.NewNop(),
		limiter: rate.NewLimiter(rate.Every(cfg.Settle), 1),
		sleep:   sleepCtx,
	}, nil
}

// WithLogger sets the logger. Returns the controller for chaining.
func (c *Controller) WithLogger(l *zap.Logger) *Controller {
	if l != nil {
		c.logger = l
	}
	return c
}

// WithSleep overrides the backoff sleep, for tests.
func (c *Controller) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Controller {
	if fn != nil {
		c.sleep = fn
	}
	return c
}

// Run dispatches all submissions in order.
//
// Run blocks until every job is dispatched, the context is cancelled, or
// a job exhausts its budget. On abort the returned Summary covers the
// jobs completed so far and the error is an *AbortError.
func (c *Controller) Run(ctx context.Context, subs []Submission) (*Summary, error) {
	start := time.Now()
	sum := &Summary{Jobs: make([]JobResult, 0, len(subs))}

	for _, sub := range subs {
		res, err := c.dispatchOne(ctx, sub)
		sum.Jobs = append(sum.Jobs, res)
		sum.Polls += res.Polls
		sum.Backoffs += res.Backoffs
		if res.State == StateDispatched {
			sum.Dispatched++
		}
		if err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}
	}

	sum.Duration = time.Since(start)
	return sum, nil
}

// dispatchOne runs the poll loop for a single submission.
func (c *Controller) dispatchOne(ctx context.Context, sub Submission) (JobResult, error) {
	res := JobResult{ID: sub.ID, State: StatePending}

	scriptPath, workDir, err := sub.Prepare()
	if err != nil {
		return res, fmt.Errorf("prepare job %s: %w", sub.ID, err)
	}

	res.State = StatePolling
	start := time.Now()
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		snap, err := c.queue.Occupancy(ctx, c.cfg.Partition, c.cfg.User)
		res.Polls++
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			// Occupancy unknown: back off without consuming an attempt.
			// The wall-clock budget still applies.
			c.logger.Warn("Occupancy unknown, backing off",
				zap.String("job", sub.ID),
				zap.String("partition", c.cfg.Partition),
				zap.Error(err))
			if abort := c.checkBudget(sub.ID, attempts, start); abort != nil {
				res.State = StateAborted
				return res, abort
			}
			res.Backoffs++
			if err := c.sleep(ctx, c.cfg.PollBackoff); err != nil {
				return res, err
			}
			continue
		}

		if snap.Running < c.cfg.Ceiling {
			if err := c.queue.Submit(ctx, scriptPath, workDir); err != nil {
				c.logger.Warn("Submit failed, will retry",
					zap.String("job", sub.ID),
					zap.Error(err))
				attempts++
				if abort := c.checkBudget(sub.ID, attempts, start); abort != nil {
					res.State = StateAborted
					return res, abort
				}
				res.Backoffs++
				if err := c.sleep(ctx, c.cfg.PollBackoff); err != nil {
					return res, err
				}
				continue
			}

			res.State = StateDispatched
			c.logger.Info("Dispatched",
				zap.String("job", sub.ID),
				zap.Int("occupancy", snap.Running),
				zap.Int("ceiling", c.cfg.Ceiling),
				zap.Int("polls", res.Polls))
			if sub.Done != nil {
				if err := sub.Done(); err != nil {
					return res, fmt.Errorf("post-dispatch for job %s: %w", sub.ID, err)
				}
			}
			// Settle before the next job's polling begins.
			if err := c.limiter.Wait(ctx); err != nil {
				return res, err
			}
			return res, nil
		}

		c.logger.Info("Partition at capacity, waiting",
			zap.String("job", sub.ID),
			zap.Int("occupancy", snap.Running),
			zap.Int("ceiling", c.cfg.Ceiling))
		attempts++
		if abort := c.checkBudget(sub.ID, attempts, start); abort != nil {
			res.State = StateAborted
			return res, abort
		}
		res.Backoffs++
		if err := c.sleep(ctx, c.cfg.PollBackoff); err != nil {
			return res, err
		}
	}
}

// checkBudget returns an AbortError when the attempt or wall-clock budget
// is exhausted, nil otherwise.
func (c *Controller) checkBudget(id string, attempts int, start time.Time) *AbortError {
	if c.cfg.MaxAttempts > 0 && attempts >= c.cfg.MaxAttempts {
		return &AbortError{
			ID:       id,
			Reason:   fmt.Sprintf("attempt budget exhausted (%d)", c.cfg.MaxAttempts),
			Attempts: attempts,
			Elapsed:  time.Since(start),
		}
	}
	if c.cfg.MaxWait > 0 && time.Since(start) >= c.cfg.MaxWait {
		return &AbortError{
			ID:       id,
			Reason:   fmt.Sprintf("wall-clock budget exhausted (%s)", c.cfg.MaxWait),
			Attempts: attempts,
			Elapsed:  time.Since(start),
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
