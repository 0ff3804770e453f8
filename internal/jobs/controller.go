// Package jobs tracks the single in-flight brand analysis submission.
//
// A Controller moves Idle -> Submitting -> Submitted | Failed. Submitted means
// the backend accepted the request for processing; analysis itself runs
// asynchronously on the backend and is observed through the results poller.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spacesedan/feedbot/internal/models"
	"github.com/spacesedan/feedbot/internal/monitoring"
)

var ErrBusy = errors.New("[JobController] a submission is already in progress")

const (
	eventPublishTimeout = 5 * time.Second
	eventBuffer         = 32
)

type Submitter interface {
	SubmitAnalysis(ctx context.Context, req models.AnalyzeRequest) error
}

// EventSink receives every job status transition. Events are handed over from
// a background goroutine, so a slow sink never holds up a submission.
type EventSink interface {
	PublishJobEvent(ctx context.Context, event models.JobEvent) error
}

type Options struct {
	Limit          int
	IncludeReddit  bool
	IncludeTwitter bool
	// Timeout bounds one submission including retries. Zero means no bound.
	Timeout time.Duration
	Events  EventSink
}

type Controller struct {
	submitter Submitter
	opts      Options

	mu   sync.Mutex
	job  models.Job
	done chan struct{}

	events     chan models.JobEvent
	stopEvents chan struct{}
	eventsDone chan struct{}
	closeOnce  sync.Once

	now func() time.Time
}

func NewController(submitter Submitter, opts Options) *Controller {
	done := make(chan struct{})
	close(done)

	c := &Controller{
		submitter:  submitter,
		opts:       opts,
		job:        models.Job{Status: models.JobIdle},
		done:       done,
		stopEvents: make(chan struct{}),
		eventsDone: make(chan struct{}),
		now:        time.Now,
	}

	if opts.Events != nil {
		c.events = make(chan models.JobEvent, eventBuffer)
		go c.deliverEvents()
	} else {
		close(c.eventsDone)
	}
	return c
}

// Submit starts an analysis for brand. Leading and trailing whitespace is
// ignored and an empty brand is a no-op. While a submission is in flight
// Submit returns ErrBusy and leaves the current job untouched.
//
// The Submitting transition is visible as soon as Submit returns; the
// request itself runs in the background and outlives ctx.
func (c *Controller) Submit(ctx context.Context, brand string) error {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		slog.Debug("[JobController] Ignoring submission with empty brand")
		return nil
	}

	c.mu.Lock()
	if c.job.Status == models.JobSubmitting {
		current := c.job.Brand
		c.mu.Unlock()
		slog.Warn("[JobController] Rejecting submission while another is in flight",
			slog.String("brand", brand),
			slog.String("in_flight", current))
		return ErrBusy
	}

	job := models.Job{
		ID:        uuid.NewString(),
		Brand:     brand,
		Status:    models.JobSubmitting,
		StartedAt: c.now(),
	}
	done := make(chan struct{})
	c.job = job
	c.done = done
	c.mu.Unlock()

	slog.Info("[JobController] Submitting brand analysis",
		slog.String("job_id", job.ID),
		slog.String("brand", brand))

	go c.run(context.WithoutCancel(ctx), job, done)
	return nil
}

func (c *Controller) run(ctx context.Context, job models.Job, done chan struct{}) {
	c.publish(job)

	submitCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	err := c.submitter.SubmitAnalysis(submitCtx, models.AnalyzeRequest{
		Brand:          job.Brand,
		Limit:          c.opts.Limit,
		IncludeReddit:  c.opts.IncludeReddit,
		IncludeTwitter: c.opts.IncludeTwitter,
	})

	finished := c.now()
	job.FinishedAt = &finished
	if err != nil {
		job.Status = models.JobFailed
		job.Error = err.Error()
	} else {
		job.Status = models.JobSubmitted
	}

	c.mu.Lock()
	c.job = job
	c.mu.Unlock()
	c.publish(job)
	close(done)

	monitoring.JobSubmissions.WithLabelValues(job.Status.String()).Inc()
	if err != nil {
		slog.Error("[JobController] Submission failed",
			slog.String("job_id", job.ID),
			slog.String("brand", job.Brand),
			slog.String("error", err.Error()))
	} else {
		slog.Info("[JobController] Submission accepted",
			slog.String("job_id", job.ID),
			slog.String("brand", job.Brand),
			slog.Duration("took", finished.Sub(job.StartedAt)))
	}
}

// publish queues the transition for the sink. A full queue drops the event.
func (c *Controller) publish(job models.Job) {
	if c.events == nil {
		return
	}

	event := models.JobEvent{
		JobID:     job.ID,
		Brand:     job.Brand,
		Status:    job.Status,
		Error:     job.Error,
		Timestamp: c.now(),
	}

	select {
	case <-c.stopEvents:
		return
	default:
	}

	select {
	case c.events <- event:
	default:
		slog.Warn("[JobController] Event queue full, dropping job event",
			slog.String("job_id", job.ID),
			slog.String("status", job.Status.String()))
	}
}

func (c *Controller) deliverEvents() {
	defer close(c.eventsDone)

	for {
		select {
		case event := <-c.events:
			c.sendEvent(event)
		case <-c.stopEvents:
			// flush whatever was queued before Close
			for {
				select {
				case event := <-c.events:
					c.sendEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (c *Controller) sendEvent(event models.JobEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()

	if err := c.opts.Events.PublishJobEvent(ctx, event); err != nil {
		slog.Warn("[JobController] Failed to publish job event",
			slog.String("job_id", event.JobID),
			slog.String("status", event.Status.String()),
			slog.String("error", err.Error()))
	}
}

// Close stops event delivery after flushing queued events. Submissions keep
// working; later transitions are simply not published.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.stopEvents) })
	<-c.eventsDone
}

// Job returns a copy of the current job.
func (c *Controller) Job() models.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

func (c *Controller) Status() models.JobStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.Status
}

// Done is closed once the current submission settles and its terminal event
// is queued for the sink. It is already closed when nothing is in flight.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Wait blocks until the current submission settles or ctx is done.
func (c *Controller) Wait(ctx context.Context) (models.Job, error) {
	select {
	case <-c.Done():
		return c.Job(), nil
	case <-ctx.Done():
		return c.Job(), ctx.Err()
	}
}
