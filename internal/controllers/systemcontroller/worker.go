package systemcontroller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/internal/notifications"
)

var (
	// ErrBusy is returned by Start while another bulk job is running.
	ErrBusy = errors.New("system: a bulk run is already in progress")

	// ErrIdle is returned by Abort when nothing is running.
	ErrIdle = errors.New("system: no bulk run in progress")

	ErrUnknownJob = errors.New("system: unknown job kind")
)

var notify = notifications.Send

// JobObserver is told about every finished bulk job.
type JobObserver interface {
	JobFinished(job model.Job, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) JobFinished(model.Job, time.Duration) {}

type job struct {
	model.Job
	cancel context.CancelFunc
}

func (c *Controller) jobFunc(kind model.JobKind) (func(context.Context) (Outcome, error), bool) {
	switch kind {
	case model.JobRun:
		return c.Run, true
	case model.JobWinterize:
		return func(ctx context.Context) (Outcome, error) { return OutcomeCompleted, c.Winterize(ctx) }, true
	case model.JobTest:
		return func(ctx context.Context) (Outcome, error) { return OutcomeCompleted, c.TestAll(ctx) }, true
	}
	return nil, false
}

// Start launches a bulk job on the worker goroutine and returns at once.
// Only one job runs at a time.
func (c *Controller) Start(kind model.JobKind) (model.Job, error) {
	fn, ok := c.jobFunc(kind)
	if !ok {
		return model.Job{}, fmt.Errorf("%w: %q", ErrUnknownJob, kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return c.current.Job, ErrBusy
	}
	if c.root.Err() != nil {
		return model.Job{}, fmt.Errorf("system: controller shut down: %w", c.root.Err())
	}

	ctx, cancel := context.WithCancel(c.root)
	j := &job{
		Job: model.Job{
			ID:        uuid.NewString(),
			Kind:      kind,
			State:     model.JobRunning,
			StartedAt: c.reg.Clock().Now(),
		},
		cancel: cancel,
	}
	c.current = j

	c.wg.Add(1)
	go c.execute(ctx, j, fn)

	log.Info().Str("job", j.ID).Str("kind", string(kind)).Msg("bulk job started")
	return j.Job, nil
}

func (c *Controller) execute(ctx context.Context, j *job, fn func(context.Context) (Outcome, error)) {
	defer c.wg.Done()
	defer j.cancel()

	outcome, err := fn(ctx)
	finished := c.reg.Clock().Now()

	result := j.Job
	result.FinishedAt = &finished
	switch {
	case errors.Is(err, context.Canceled):
		result.State = model.JobAborted
	case err != nil:
		result.State = model.JobFailed
		result.Error = err.Error()
	case outcome == OutcomeSkipped:
		result.State = model.JobSkipped
	default:
		result.State = model.JobCompleted
	}

	c.mu.Lock()
	c.last = &result
	c.current = nil
	c.mu.Unlock()

	elapsed := finished.Sub(result.StartedAt)
	event := log.Info()
	if err != nil && result.State == model.JobFailed {
		event = log.Error().Err(err)
	}
	event.Str("job", result.ID).Str("kind", string(result.Kind)).Str("state", string(result.State)).
		Dur("elapsed", elapsed).Msg("bulk job finished")

	c.observer.JobFinished(result, elapsed)
	c.announce(result)
}

func (c *Controller) announce(j model.Job) {
	if !notifications.Enabled() {
		return
	}
	var title, message string
	switch j.State {
	case model.JobFailed:
		title = fmt.Sprintf("Sprinkler %s failed", j.Kind)
		message = j.Error
	case model.JobCompleted:
		title = fmt.Sprintf("Sprinkler %s finished", j.Kind)
		message = fmt.Sprintf("Job %s completed", j.ID)
	default:
		return
	}
	if err := notify(title, message); err != nil {
		log.Warn().Err(err).Str("job", j.ID).Msg("failed to send notification")
	}
}

// Abort cancels the running job. The zone it was watering is closed before
// the worker exits.
func (c *Controller) Abort() (model.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return model.Job{}, ErrIdle
	}
	c.current.cancel()
	log.Info().Str("job", c.current.ID).Msg("bulk job abort requested")
	return c.current.Job, nil
}

// Current returns the running job, if any.
func (c *Controller) Current() (model.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return model.Job{}, false
	}
	return c.current.Job, true
}

// Last returns the most recently finished job, if any.
func (c *Controller) Last() (model.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return model.Job{}, false
	}
	return *c.last, true
}

// Wait blocks until no job is running.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Shutdown cancels any running job and waits for the worker to exit or ctx to end.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.cancelRoot()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
