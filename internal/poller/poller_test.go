package poller

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

type countingFetcher struct {
	issued   atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	failures atomic.Int32
	posts    []models.Post
}

func (f *countingFetcher) FetchResults(ctx context.Context, brand string, limit int) ([]models.Post, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.issued.Add(1)

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return nil, errors.New("backend unavailable")
	}
	return f.posts, nil
}

type collector struct {
	mu        sync.Mutex
	snapshots [][]models.Post
}

func (c *collector) deliver(posts []models.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = append(c.snapshots, posts)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snapshots)
}

func TestFirstFetchIsImmediate(t *testing.T) {
	f := &countingFetcher{posts: []models.Post{{ID: "a", Text: "hi"}}}
	c := &collector{}

	sub := Start(context.Background(), f, "acme", Options{Interval: time.Hour}, c.deliver)
	defer sub.Stop()

	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "acme", sub.Brand())
}

func TestPollsOnEveryInterval(t *testing.T) {
	f := &countingFetcher{}
	c := &collector{}

	sub := Start(context.Background(), f, "acme", Options{Interval: 20 * time.Millisecond}, c.deliver)
	defer sub.Stop()

	require.Eventually(t, func() bool { return c.count() >= 4 }, 2*time.Second, 5*time.Millisecond)
}

func TestNoFetchAfterStop(t *testing.T) {
	f := &countingFetcher{}
	c := &collector{}

	sub := Start(context.Background(), f, "acme", Options{Interval: 15 * time.Millisecond}, c.deliver)
	require.Eventually(t, func() bool { return f.issued.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	sub.Stop()
	issued := f.issued.Load()
	delivered := c.count()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, issued, f.issued.Load())
	assert.Equal(t, delivered, c.count())
	assert.True(t, sub.Stopped())
}

func TestStopIsIdempotent(t *testing.T) {
	sub := Start(context.Background(), &countingFetcher{}, "acme", Options{Interval: time.Hour}, func([]models.Post) {})

	sub.Stop()
	sub.Stop()

	select {
	case <-sub.Done():
	default:
		t.Fatal("done should be closed after stop")
	}
}

type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

// FetchResults ignores ctx so the result arrives after Stop.
func (b *blockingFetcher) FetchResults(context.Context, string, int) ([]models.Post, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return []models.Post{{ID: "late"}}, nil
}

func TestResultAfterStopIsDiscarded(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	var delivered atomic.Int32

	sub := Start(context.Background(), f, "acme", Options{Interval: time.Hour}, func([]models.Post) {
		delivered.Add(1)
	})

	select {
	case <-f.started:
	case <-time.After(time.Second):
		t.Fatal("fetch never started")
	}

	sub.Stop()
	close(f.release)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), delivered.Load())
}

func TestFetchesNeverOverlap(t *testing.T) {
	f := &countingFetcher{delay: 40 * time.Millisecond}
	c := &collector{}

	sub := Start(context.Background(), f, "acme", Options{Interval: 10 * time.Millisecond}, c.deliver)
	time.Sleep(250 * time.Millisecond)
	sub.Stop()

	assert.Equal(t, int32(1), f.maxSeen.Load())
	assert.GreaterOrEqual(t, f.issued.Load(), int32(2))
}

func TestFailuresKeepSchedule(t *testing.T) {
	f := &countingFetcher{posts: []models.Post{{ID: "a"}}}
	f.failures.Store(2)
	c := &collector{}

	sub := Start(context.Background(), f, "acme", Options{Interval: 15 * time.Millisecond}, c.deliver)
	defer sub.Stop()

	require.Eventually(t, func() bool { return c.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, f.issued.Load(), int32(4))
}

func TestParentContextStopsSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := Start(ctx, &countingFetcher{}, "acme", Options{Interval: time.Hour}, func([]models.Post) {})

	cancel()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop with its parent context")
	}
}

func TestDefaultsApplied(t *testing.T) {
	var gotLimit atomic.Int32
	f := fetcherFunc(func(_ context.Context, _ string, limit int) ([]models.Post, error) {
		gotLimit.Store(int32(limit))
		return nil, nil
	})

	sub := Start(context.Background(), f, "acme", Options{}, func([]models.Post) {})
	defer sub.Stop()

	require.Eventually(t, func() bool { return gotLimit.Load() == DefaultLimit }, time.Second, 5*time.Millisecond)
	assert.Equal(t, DefaultInterval, sub.opts.Interval)
}

type fetcherFunc func(ctx context.Context, brand string, limit int) ([]models.Post, error)

func (f fetcherFunc) FetchResults(ctx context.Context, brand string, limit int) ([]models.Post, error) {
	return f(ctx, brand, limit)
}

func TestGridScheduleNext(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := gridSchedule{start: start, interval: 10 * time.Second}

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"before start", start.Add(-5 * time.Second), start},
		{"at start", start, start.Add(10 * time.Second)},
		{"mid interval", start.Add(9 * time.Second), start.Add(10 * time.Second)},
		{"on boundary", start.Add(10 * time.Second), start.Add(20 * time.Second)},
		{"after a long stall", start.Add(25 * time.Second), start.Add(30 * time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Next(tt.at))
		})
	}
}
