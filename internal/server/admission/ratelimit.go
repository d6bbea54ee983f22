package admission

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/webhost-go/internal/core/domain"
	"github.com/yndnr/webhost-go/internal/telemetry/metric"
	"github.com/yndnr/webhost-go/pkg/cmap"
)

// Partition strategies for anonymous requests.
const (
	PartitionByHost       = "host"
	PartitionByRemoteAddr = "remote_addr"
)

// RateLimitOptions configures a fixed-window limiter.
type RateLimitOptions struct {
	// PermitLimit is the number of requests admitted per window.
	PermitLimit int

	// QueueLimit is the number of requests that may wait for the next window.
	QueueLimit int

	// Window is the length of one window.
	Window time.Duration

	// QueueTimeout bounds how long a queued request waits. 0 means no bound.
	QueueTimeout time.Duration
}

// RateLimitError reports a rejected request.
type RateLimitError struct {
	Key        string
	Reason     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %s (retry after %s)", domain.ErrRateLimited.Error(), e.Reason, e.RetryAfter)
}

// Unwrap lets errors.Is match domain.ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimited
}

// RateLimiter is a fixed-window limiter with one independent window per
// partition key.
//
// Permits are restored only at window boundaries. When a window is out of
// permits, requests wait in a FIFO queue bounded by QueueLimit; queued
// requests are always served before new arrivals. Once the queue is full
// further requests are rejected immediately.
type RateLimiter struct {
	opts       RateLimitOptions
	clock      Clock
	rec        Recorder
	partitions *cmap.Map[*partition]
	closed     atomic.Bool
}

// partition is the window state of one key. All fields are guarded by mu.
type partition struct {
	mu      sync.Mutex
	permits int
	resetAt time.Time
	queue   *list.List // of *waiter, oldest at the front
	timer   Timer
}

type waiter struct {
	ready    chan struct{}
	granted  bool
	elem     *list.Element
	queuedAt time.Time
}

// NewRateLimiter creates a limiter. A nil clock selects SystemClock and a
// nil recorder discards metrics.
func NewRateLimiter(opts RateLimitOptions, clock Clock, rec Recorder) (*RateLimiter, error) {
	if opts.PermitLimit <= 0 {
		return nil, fmt.Errorf("rate limiter: permit limit must be positive, got %d", opts.PermitLimit)
	}
	if opts.Window <= 0 {
		return nil, fmt.Errorf("rate limiter: window must be positive, got %s", opts.Window)
	}
	if opts.QueueLimit < 0 {
		return nil, fmt.Errorf("rate limiter: queue limit must not be negative, got %d", opts.QueueLimit)
	}
	if clock == nil {
		clock = SystemClock
	}
	if rec == nil {
		rec = nopRecorder{}
	}

	return &RateLimiter{
		opts:       opts,
		clock:      clock,
		rec:        rec,
		partitions: cmap.New[*partition](),
	}, nil
}

// Options returns the limiter configuration.
func (l *RateLimiter) Options() RateLimitOptions {
	return l.opts
}

// Partitions returns the number of keys seen so far.
func (l *RateLimiter) Partitions() int {
	return l.partitions.Count()
}

// Acquire takes a permit for key, waiting in the partition queue when the
// current window is exhausted.
//
// It returns nil once a permit is held, a *RateLimitError when the queue
// is full or the queue timeout expires, and ctx.Err() when ctx ends while
// waiting.
func (l *RateLimiter) Acquire(ctx context.Context, key string) error {
	p := l.partition(key)

	p.mu.Lock()
	now := l.clock.Now()
	l.refresh(p, now)

	if p.permits > 0 && p.queue.Len() == 0 {
		p.permits--
		p.mu.Unlock()
		l.rec.RecordRateLimit(metric.DecisionAdmitted)
		return nil
	}

	if p.queue.Len() >= l.opts.QueueLimit {
		retryAfter := p.resetAt.Sub(now)
		p.mu.Unlock()
		l.rec.RecordRateLimit(metric.DecisionRejected)
		return &RateLimitError{Key: key, Reason: "queue full", RetryAfter: retryAfter}
	}

	w := &waiter{ready: make(chan struct{}), queuedAt: now}
	w.elem = p.queue.PushBack(w)
	if p.timer == nil {
		l.armTimer(p, now)
	}
	retryAfter := p.resetAt.Sub(now)
	p.mu.Unlock()
	l.rec.RecordRateLimit(metric.DecisionQueued)

	var timeout <-chan struct{}
	if l.opts.QueueTimeout > 0 {
		expired := make(chan struct{})
		t := l.clock.AfterFunc(l.opts.QueueTimeout, func() { close(expired) })
		defer t.Stop()
		timeout = expired
	}

	select {
	case <-w.ready:
		l.granted(w)
		return nil
	case <-ctx.Done():
		if l.abandon(p, w) {
			l.granted(w)
			return nil
		}
		l.rec.RecordRateLimit(metric.DecisionCanceled)
		return ctx.Err()
	case <-timeout:
		if l.abandon(p, w) {
			l.granted(w)
			return nil
		}
		l.rec.RecordRateLimit(metric.DecisionTimeout)
		return &RateLimitError{Key: key, Reason: "queue timeout", RetryAfter: retryAfter}
	}
}

func (l *RateLimiter) granted(w *waiter) {
	l.rec.RecordRateLimit(metric.DecisionGranted)
	l.rec.ObserveQueueWait(l.clock.Now().Sub(w.queuedAt).Seconds())
}

// abandon removes w from the queue. It reports true when w was granted a
// permit before it could be removed, in which case the caller owns it.
func (l *RateLimiter) abandon(p *partition, w *waiter) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w.granted {
		return true
	}
	p.queue.Remove(w.elem)
	return false
}

func (l *RateLimiter) partition(key string) *partition {
	p, existed := l.partitions.GetOrCreate(key, func() *partition {
		return &partition{
			permits: l.opts.PermitLimit,
			resetAt: l.clock.Now().Add(l.opts.Window),
			queue:   list.New(),
		}
	})
	if !existed {
		l.rec.SetPartitions(l.partitions.Count())
	}
	return p
}

// refresh starts a new window when the current one has ended and hands
// the fresh permits to queued requests, oldest first. p.mu must be held.
func (l *RateLimiter) refresh(p *partition, now time.Time) {
	if now.Before(p.resetAt) {
		return
	}

	elapsed := now.Sub(p.resetAt)
	p.resetAt = p.resetAt.Add(l.opts.Window * (elapsed/l.opts.Window + 1))
	p.permits = l.opts.PermitLimit

	for p.permits > 0 && p.queue.Len() > 0 {
		w := p.queue.Remove(p.queue.Front()).(*waiter)
		w.granted = true
		close(w.ready)
		p.permits--
	}
}

// armTimer schedules a refresh at the end of the current window so queued
// requests are served even when no new request arrives. p.mu must be held.
// Nothing is scheduled once the limiter is closed.
func (l *RateLimiter) armTimer(p *partition, now time.Time) {
	if l.closed.Load() {
		return
	}
	p.timer = l.clock.AfterFunc(p.resetAt.Sub(now), func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.timer = nil
		now := l.clock.Now()
		l.refresh(p, now)
		if p.queue.Len() > 0 {
			l.armTimer(p, now)
		}
	})
}

// Close stops pending window timers. Queued requests keep waiting on their
// own context.
func (l *RateLimiter) Close() {
	l.closed.Store(true)
	l.partitions.Range(func(_ string, p *partition) bool {
		p.mu.Lock()
		if p.timer != nil {
			p.timer.Stop()
			p.timer = nil
		}
		p.mu.Unlock()
		return true
	})
}

// PartitionFunc derives the rate limit partition key of a request.
type PartitionFunc func(r *http.Request) string

// NewPartitionFunc returns the key function for a partition strategy.
// The authenticated identity always wins over the anonymous key.
func NewPartitionFunc(strategy string) PartitionFunc {
	anonymous := func(r *http.Request) string {
		return "host:" + strings.ToLower(r.Host)
	}
	if strategy == PartitionByRemoteAddr {
		anonymous = func(r *http.Request) string {
			return "addr:" + remoteIP(r)
		}
	}

	return func(r *http.Request) string {
		if id := IdentityFromContext(r.Context()); id != "" {
			return "id:" + id
		}
		return anonymous(r)
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware enforces the limiter per partition.
type RateLimitMiddleware struct {
	limiter   *RateLimiter
	partition PartitionFunc
	logger    *slog.Logger
	sometimes rate.Sometimes
}

// NewRateLimitMiddleware wraps a limiter for use in the request chain.
func NewRateLimitMiddleware(limiter *RateLimiter, partition PartitionFunc, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:   limiter,
		partition: partition,
		logger:    logger,
		sometimes: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// Limiter returns the underlying limiter.
func (m *RateLimitMiddleware) Limiter() *RateLimiter {
	return m.limiter
}

// Middleware answers 429 with Retry-After when a request is rejected.
func (m *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.partition(r)

		err := m.limiter.Acquire(r.Context(), key)
		if err == nil {
			next.ServeHTTP(w, r)
			return
		}

		rle, ok := err.(*RateLimitError)
		if !ok {
			// The client went away while queued.
			m.logger.Debug("queued request abandoned", "partition", key, "error", err)
			return
		}

		m.sometimes.Do(func() {
			m.logger.Warn("rate limit exceeded",
				"partition", key,
				"reason", rle.Reason,
				"retry_after", rle.RetryAfter,
			)
		})

		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rle.RetryAfter)))
		writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Code, domain.ErrRateLimited.Message)
	})
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
