package admission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/webhost-go/internal/core/domain"
	"github.com/yndnr/webhost-go/internal/telemetry/metric"
)

const waitFor = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLimiter(t *testing.T, opts RateLimitOptions, clk Clock, rec Recorder) *RateLimiter {
	t.Helper()
	l, err := NewRateLimiter(opts, clk, rec)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

func queued(l *RateLimiter, key string) int {
	p, ok := l.partitions.Get(key)
	if !ok {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// acquireAsync starts Acquire in a goroutine and waits until the request
// sits in the queue at position want.
func acquireAsync(t *testing.T, ctx context.Context, l *RateLimiter, key string, want int) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx, key) }()
	require.Eventually(t, func() bool { return queued(l, key) == want }, waitFor, time.Millisecond)
	return done
}

func requireDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitFor):
		t.Fatal("request still waiting")
		return nil
	}
}

func requirePending(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		t.Fatalf("request finished early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestNewRateLimiter_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts RateLimitOptions
	}{
		{"zero permits", RateLimitOptions{PermitLimit: 0, Window: time.Second}},
		{"zero window", RateLimitOptions{PermitLimit: 1}},
		{"negative queue", RateLimitOptions{PermitLimit: 1, Window: time.Second, QueueLimit: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRateLimiter(tt.opts, nil, nil)
			assert.Error(t, err)
		})
	}
}

func TestRateLimiter_FixedWindowWithQueue(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(t, RateLimitOptions{PermitLimit: 2, QueueLimit: 1, Window: time.Second}, clk, nil)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "k"))
	require.NoError(t, l.Acquire(ctx, "k"))

	third := acquireAsync(t, ctx, l, "k", 1)

	err := l.Acquire(ctx, "k")
	require.ErrorIs(t, err, domain.ErrRateLimited)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, time.Second, rle.RetryAfter)
	assert.Equal(t, "queue full", rle.Reason)

	requirePending(t, third)

	clk.Advance(time.Second)
	require.NoError(t, requireDone(t, third))

	// The queued request used one of the new window's permits.
	require.NoError(t, l.Acquire(ctx, "k"))
	fourth := acquireAsync(t, ctx, l, "k", 1)
	requirePending(t, fourth)
	clk.Advance(time.Second)
	require.NoError(t, requireDone(t, fourth))
}

func TestRateLimiter_QueuedBeforeNewArrivals(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(t, RateLimitOptions{PermitLimit: 1, QueueLimit: 2, Window: time.Second}, clk, nil)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "k"))
	first := acquireAsync(t, ctx, l, "k", 1)
	second := acquireAsync(t, ctx, l, "k", 2)

	clk.Advance(time.Second)
	require.NoError(t, requireDone(t, first))
	requirePending(t, second)

	// A new arrival must queue behind the older waiter.
	third := acquireAsync(t, ctx, l, "k", 2)

	clk.Advance(time.Second)
	require.NoError(t, requireDone(t, second))
	requirePending(t, third)

	clk.Advance(time.Second)
	require.NoError(t, requireDone(t, third))
}

func TestRateLimiter_LazyRefreshServesQueueFirst(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(t, RateLimitOptions{PermitLimit: 1, QueueLimit: 1, Window: time.Second}, clk, nil)
	ctx := context.Background()

	start := clk.Now()
	require.NoError(t, l.Acquire(ctx, "k"))
	waiting := acquireAsync(t, ctx, l, "k", 1)

	// Move past the boundary without firing the window timer; the next
	// arrival performs the refresh.
	clk.Set(start.Add(1500 * time.Millisecond))
	late := make(chan error, 1)
	go func() { late <- l.Acquire(ctx, "k") }()

	require.NoError(t, requireDone(t, waiting))
	require.Eventually(t, func() bool { return queued(l, "k") == 1 }, waitFor, time.Millisecond)
	requirePending(t, late)
}

func TestRateLimiter_WindowReset(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(t, RateLimitOptions{PermitLimit: 1, QueueLimit: 0, Window: 12 * time.Second}, clk, nil)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "k"))
	clk.Set(clk.Now().Add(11 * time.Second))
	err := l.Acquire(ctx, "k")
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, time.Second, rle.RetryAfter)

	// Several idle windows later the boundary stays aligned.
	clk.Set(clk.Now().Add(37 * time.Second))
	require.NoError(t, l.Acquire(ctx, "k"))
	err = l.Acquire(ctx, "k")
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 12*time.Second, rle.RetryAfter)
}

func TestRateLimiter_PartitionsAreIndependent(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(t, RateLimitOptions{PermitLimit: 1, Window: time.Second}, clk, nil)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "a"))
	require.ErrorIs(t, l.Acquire(ctx, "a"), domain.ErrRateLimited)
	require.NoError(t, l.Acquire(ctx, "b"))
	assert.Equal(t, 2, l.Partitions())
}

func TestRateLimiter_QueueTimeout(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(t, RateLimitOptions{
		PermitLimit:  1,
		QueueLimit:   1,
		Window:       time.Second,
		QueueTimeout: 500 * time.Millisecond,
	}, clk, nil)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "k"))
	waiting := acquireAsync(t, ctx, l, "k", 1)
	// Window timer plus the waiter's timeout.
	require.Eventually(t, func() bool { return clk.Pending() == 2 }, waitFor, time.Millisecond)

	clk.Advance(500 * time.Millisecond)
	err := requireDone(t, waiting)
	require.ErrorIs(t, err, domain.ErrRateLimited)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "queue timeout", rle.Reason)

	assert.Equal(t, 0, queued(l, "k"), "timed out waiter must free its slot")
	again := acquireAsync(t, ctx, l, "k", 1)
	clk.Advance(500 * time.Millisecond)
	require.NoError(t, requireDone(t, again))
}

func TestRateLimiter_ContextCancel(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(t, RateLimitOptions{PermitLimit: 1, QueueLimit: 1, Window: time.Second}, clk, nil)

	require.NoError(t, l.Acquire(context.Background(), "k"))

	ctx, cancel := context.WithCancel(context.Background())
	waiting := acquireAsync(t, ctx, l, "k", 1)
	cancel()

	require.ErrorIs(t, requireDone(t, waiting), context.Canceled)
	assert.Equal(t, 0, queued(l, "k"))

	// The freed permit of the next window goes to the next waiter.
	next := acquireAsync(t, context.Background(), l, "k", 1)
	clk.Advance(time.Second)
	require.NoError(t, requireDone(t, next))
}

func TestRateLimiter_CloseStopsTimerThatAlreadyFired(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(t, RateLimitOptions{PermitLimit: 1, QueueLimit: 2, Window: time.Second}, clk, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, l.Acquire(ctx, "k"))
	first := acquireAsync(t, ctx, l, "k", 1)
	acquireAsync(t, ctx, l, "k", 2)
	require.Equal(t, 1, clk.Pending())

	// Take the window callback as if it had fired and were waiting for the
	// partition lock while Close runs.
	clk.mu.Lock()
	timer := clk.timers[len(clk.timers)-1]
	timer.fired = true
	clk.mu.Unlock()

	l.Close()
	clk.Set(clk.Now().Add(time.Second))
	timer.f()

	require.NoError(t, requireDone(t, first))
	assert.Equal(t, 1, queued(l, "k"))
	assert.Equal(t, 0, clk.Pending(), "closed limiter re-armed its window timer")
}

func TestRateLimiter_RecordsDecisions(t *testing.T) {
	reg := metric.NewRegistry()
	clk := newFakeClock()
	l := newTestLimiter(t, RateLimitOptions{PermitLimit: 1, QueueLimit: 1, Window: time.Second}, clk, reg)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "k"))
	waiting := acquireAsync(t, ctx, l, "k", 1)
	require.Error(t, l.Acquire(ctx, "k"))
	clk.Advance(time.Second)
	require.NoError(t, requireDone(t, waiting))

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RateLimitDecisions.WithLabelValues(metric.DecisionAdmitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RateLimitDecisions.WithLabelValues(metric.DecisionQueued)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RateLimitDecisions.WithLabelValues(metric.DecisionRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RateLimitDecisions.WithLabelValues(metric.DecisionGranted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RateLimitPartitions))
}

func TestNewPartitionFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://API.example.com/x", nil)
	req.RemoteAddr = "10.1.2.3:5555"

	assert.Equal(t, "host:api.example.com", NewPartitionFunc(PartitionByHost)(req))
	assert.Equal(t, "addr:10.1.2.3", NewPartitionFunc(PartitionByRemoteAddr)(req))

	authed := req.WithContext(WithIdentity(req.Context(), "alice"))
	assert.Equal(t, "id:alice", NewPartitionFunc(PartitionByHost)(authed))
	assert.Equal(t, "id:alice", NewPartitionFunc(PartitionByRemoteAddr)(authed))
}

func TestRateLimitMiddleware(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(t, RateLimitOptions{PermitLimit: 1, QueueLimit: 0, Window: 1500 * time.Millisecond}, clk, nil)
	m := NewRateLimitMiddleware(l, NewPartitionFunc(PartitionByHost), discardLogger())

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(host string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("a.example.com").Code)

	rec := do("a.example.com")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, domain.ErrRateLimited.Code, rec.Header().Get("X-Error-Code"))
	assert.Contains(t, rec.Body.String(), domain.ErrRateLimited.Code)

	assert.Equal(t, http.StatusNoContent, do("b.example.com").Code)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 12, retryAfterSeconds(12*time.Second))
	assert.Equal(t, 13, retryAfterSeconds(12*time.Second+time.Millisecond))
}
