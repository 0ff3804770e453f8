package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacesedan/feedbot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	calls   atomic.Int32
	release chan struct{}
	err     error

	mu   sync.Mutex
	reqs []models.AnalyzeRequest
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{release: make(chan struct{})}
}

func (f *fakeSubmitter) SubmitAnalysis(ctx context.Context, req models.AnalyzeRequest) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	select {
	case <-f.release:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSubmitter) lastRequest() models.AnalyzeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.JobEvent
	err    error
}

func (r *recordingSink) PublishJobEvent(_ context.Context, event models.JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSink) snapshot() []models.JobEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.JobEvent(nil), r.events...)
}

func waitSettled(t *testing.T, c *Controller) models.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	job, err := c.Wait(ctx)
	require.NoError(t, err)
	return job
}

func TestNewControllerIsIdle(t *testing.T) {
	c := NewController(newFakeSubmitter(), Options{})

	assert.Equal(t, models.JobIdle, c.Status())
	select {
	case <-c.Done():
	default:
		t.Fatal("idle controller should report done")
	}
}

func TestSubmitMovesToSubmittingBeforeReturning(t *testing.T) {
	sub := newFakeSubmitter()
	c := NewController(sub, Options{Limit: 100, IncludeReddit: true, IncludeTwitter: true})

	require.NoError(t, c.Submit(context.Background(), "  Acme Corp \n"))

	job := c.Job()
	assert.Equal(t, models.JobSubmitting, job.Status)
	assert.Equal(t, "Acme Corp", job.Brand)
	assert.NotEmpty(t, job.ID)
	assert.Nil(t, job.FinishedAt)

	close(sub.release)
	settled := waitSettled(t, c)

	assert.Equal(t, models.JobSubmitted, settled.Status)
	assert.Equal(t, job.ID, settled.ID)
	assert.Empty(t, settled.Error)
	require.NotNil(t, settled.FinishedAt)
	assert.Equal(t, models.AnalyzeRequest{Brand: "Acme Corp", Limit: 100, IncludeReddit: true, IncludeTwitter: true}, sub.lastRequest())
}

func TestSubmitFailureRecordsMessage(t *testing.T) {
	sub := newFakeSubmitter()
	sub.err = errors.New("status 500: boom")
	close(sub.release)
	c := NewController(sub, Options{})

	require.NoError(t, c.Submit(context.Background(), "acme"))
	job := waitSettled(t, c)

	assert.Equal(t, models.JobFailed, job.Status)
	assert.Equal(t, "status 500: boom", job.Error)
}

func TestSubmitBlankBrandIsNoop(t *testing.T) {
	sub := newFakeSubmitter()
	c := NewController(sub, Options{})

	for _, brand := range []string{"", "   ", "\t\n"} {
		require.NoError(t, c.Submit(context.Background(), brand))
	}

	assert.Equal(t, models.JobIdle, c.Status())
	assert.Equal(t, int32(0), sub.calls.Load())
}

func TestSubmitWhileSubmittingIsRejected(t *testing.T) {
	sub := newFakeSubmitter()
	c := NewController(sub, Options{})

	require.NoError(t, c.Submit(context.Background(), "first"))
	first := c.Job()

	err := c.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, first, c.Job())

	close(sub.release)
	job := waitSettled(t, c)
	assert.Equal(t, "first", job.Brand)
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestSubmitAgainAfterTerminalState(t *testing.T) {
	sub := newFakeSubmitter()
	sub.err = errors.New("unreachable")
	close(sub.release)
	c := NewController(sub, Options{})

	require.NoError(t, c.Submit(context.Background(), "acme"))
	failed := waitSettled(t, c)
	require.Equal(t, models.JobFailed, failed.Status)

	sub.err = nil
	require.NoError(t, c.Submit(context.Background(), "acme"))
	retried := waitSettled(t, c)

	assert.Equal(t, models.JobSubmitted, retried.Status)
	assert.NotEqual(t, failed.ID, retried.ID)
	assert.Empty(t, retried.Error)
}

func TestSubmitTimeoutFails(t *testing.T) {
	sub := newFakeSubmitter()
	c := NewController(sub, Options{Timeout: 20 * time.Millisecond})

	require.NoError(t, c.Submit(context.Background(), "slow brand"))
	job := waitSettled(t, c)

	assert.Equal(t, models.JobFailed, job.Status)
	assert.Contains(t, job.Error, context.DeadlineExceeded.Error())
}

func TestSubmitOutlivesCallerContext(t *testing.T) {
	sub := newFakeSubmitter()
	c := NewController(sub, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Submit(ctx, "acme"))
	cancel()

	close(sub.release)
	job := waitSettled(t, c)
	assert.Equal(t, models.JobSubmitted, job.Status)
}

func TestWaitHonoursContext(t *testing.T) {
	sub := newFakeSubmitter()
	c := NewController(sub, Options{})
	require.NoError(t, c.Submit(context.Background(), "acme"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	job, err := c.Wait(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.JobSubmitting, job.Status)
	close(sub.release)
}

func TestSubmitPublishesTransitions(t *testing.T) {
	sub := newFakeSubmitter()
	close(sub.release)
	sink := &recordingSink{}
	c := NewController(sub, Options{Events: sink})
	t.Cleanup(c.Close)

	require.NoError(t, c.Submit(context.Background(), "acme"))
	job := waitSettled(t, c)

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	events := sink.snapshot()
	assert.Equal(t, models.JobSubmitting, events[0].Status)
	assert.Equal(t, models.JobSubmitted, events[1].Status)
	for _, e := range events {
		assert.Equal(t, job.ID, e.JobID)
		assert.Equal(t, "acme", e.Brand)
	}
}

func TestEventSinkErrorsDoNotAffectState(t *testing.T) {
	sub := newFakeSubmitter()
	close(sub.release)
	sink := &recordingSink{err: errors.New("broker down")}
	c := NewController(sub, Options{Events: sink})
	t.Cleanup(c.Close)

	require.NoError(t, c.Submit(context.Background(), "acme"))
	job := waitSettled(t, c)

	assert.Equal(t, models.JobSubmitted, job.Status)
}

type blockingSink struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingSink) PublishJobEvent(ctx context.Context, _ models.JobEvent) error {
	b.calls.Add(1)
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type timedSubmitter struct {
	called chan time.Time
}

func (s *timedSubmitter) SubmitAnalysis(context.Context, models.AnalyzeRequest) error {
	s.called <- time.Now()
	return nil
}

func TestSlowEventSinkDoesNotDelaySubmission(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	sub := &timedSubmitter{called: make(chan time.Time, 1)}
	c := NewController(sub, Options{Events: sink})

	start := time.Now()
	require.NoError(t, c.Submit(context.Background(), "acme"))

	select {
	case at := <-sub.called:
		assert.Less(t, at.Sub(start), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("backend was not called while the event sink was blocked")
	}

	job := waitSettled(t, c)
	assert.Equal(t, models.JobSubmitted, job.Status)
	assert.Less(t, time.Since(start), time.Second)

	close(sink.release)
	c.Close()
	assert.Equal(t, int32(2), sink.calls.Load())
}

func TestCloseFlushesQueuedEvents(t *testing.T) {
	sub := newFakeSubmitter()
	close(sub.release)
	sink := &recordingSink{}
	c := NewController(sub, Options{Events: sink})

	require.NoError(t, c.Submit(context.Background(), "acme"))
	waitSettled(t, c)
	c.Close()

	require.Len(t, sink.snapshot(), 2)

	// transitions after Close are not published
	require.NoError(t, c.Submit(context.Background(), "acme"))
	waitSettled(t, c)
	assert.Len(t, sink.snapshot(), 2)
	c.Close()
}
