// Package poller periodically re-fetches the results of one brand while a
// view of it is open.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spacesedan/feedbot/internal/models"
	"github.com/spacesedan/feedbot/internal/monitoring"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultLimit    = 100
)

type Fetcher interface {
	FetchResults(ctx context.Context, brand string, limit int) ([]models.Post, error)
}

type Options struct {
	Interval time.Duration
	Limit    int
}

// Subscription is one running poll loop. Snapshots are handed to the deliver
// callback in fetch order; deliver runs under the subscription lock and must
// not call Stop.
type Subscription struct {
	brand   string
	opts    Options
	fetcher Fetcher
	deliver func([]models.Post)

	ctx    context.Context
	cancel context.CancelFunc
	cron   *cron.Cron

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// Start fetches immediately and then on every interval boundary measured from
// now. A tick that comes due while the previous fetch is still running is
// skipped. The subscription ends on Stop or when ctx is done.
func Start(ctx context.Context, fetcher Fetcher, brand string, opts Options, deliver func([]models.Post)) *Subscription {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	subCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{brand: brand}

	s := &Subscription{
		brand:   brand,
		opts:    opts,
		fetcher: fetcher,
		deliver: deliver,
		ctx:     subCtx,
		cancel:  cancel,
		cron:    cron.New(cron.WithLogger(logger)),
		done:    make(chan struct{}),
	}

	// One wrapped job shares the skip guard between the first fetch and the
	// scheduled ones.
	job := cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(s.tick))

	s.cron.Schedule(gridSchedule{start: time.Now(), interval: opts.Interval}, job)

	slog.Info("[Poller] Starting",
		slog.String("brand", brand),
		slog.Duration("interval", opts.Interval),
		slog.Int("limit", opts.Limit))

	go job.Run()
	s.cron.Start()

	go func() {
		<-subCtx.Done()
		s.Stop()
	}()

	return s
}

func (s *Subscription) tick() {
	if s.Stopped() {
		return
	}

	posts, err := s.fetcher.FetchResults(s.ctx, s.brand, s.opts.Limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		monitoring.PollTicks.WithLabelValues(monitoring.TickDiscarded).Inc()
		return
	}
	if err != nil {
		monitoring.PollTicks.WithLabelValues(monitoring.TickError).Inc()
		slog.Warn("[Poller] Fetch failed, keeping schedule",
			slog.String("brand", s.brand),
			slog.String("error", err.Error()))
		return
	}

	if len(posts) == 0 {
		monitoring.PollTicks.WithLabelValues(monitoring.TickEmpty).Inc()
	} else {
		monitoring.PollTicks.WithLabelValues(monitoring.TickOK).Inc()
	}
	s.deliver(posts)
}

// Stop ends the subscription. It is safe to call more than once. Once it
// returns no further fetch is sent and no further snapshot is delivered.
func (s *Subscription) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.done)
	s.mu.Unlock()

	s.cancel()
	s.cron.Stop()

	slog.Info("[Poller] Stopped", slog.String("brand", s.brand))
}

func (s *Subscription) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Done is closed when the subscription stops.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Brand() string {
	return s.brand
}

// gridSchedule fires at start + k*interval for k >= 1. Sleeping past a
// boundary moves to the next one rather than firing twice.
type gridSchedule struct {
	start    time.Time
	interval time.Duration
}

func (g gridSchedule) Next(t time.Time) time.Time {
	if t.Before(g.start) {
		return g.start
	}
	k := t.Sub(g.start)/g.interval + 1
	return g.start.Add(k * g.interval)
}

// cronLogger routes cron's logs into slog and counts skipped ticks.
type cronLogger struct {
	brand string
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		monitoring.PollTicks.WithLabelValues(monitoring.TickSkipped).Inc()
		slog.Debug("[Poller] Previous fetch still running, skipping tick", slog.String("brand", l.brand))
		return
	}
	slog.Debug(fmt.Sprintf("[Poller] cron %s", msg), append([]any{"brand", l.brand}, keysAndValues...)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error(fmt.Sprintf("[Poller] cron %s", msg),
		append([]any{"brand", l.brand, "error", err.Error()}, keysAndValues...)...)
}
