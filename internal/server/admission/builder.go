package admission

import (
	"log/slog"

	"github.com/yndnr/webhost-go/internal/core/domain"
	"github.com/yndnr/webhost-go/internal/server/config"
)

// Recorder receives admission metrics. *metric.Registry implements it.
type Recorder interface {
	RecordRateLimit(decision string)
	ObserveQueueWait(seconds float64)
	SetPartitions(n int)
	IncHostRejected()
	IncCORSPreflight()
}

type nopRecorder struct{}

func (nopRecorder) RecordRateLimit(string)   {}
func (nopRecorder) ObserveQueueWait(float64) {}
func (nopRecorder) SetPartitions(int)        {}
func (nopRecorder) IncHostRejected()         {}
func (nopRecorder) IncCORSPreflight()        {}

// Policies are the admission policies derived from settings.
// A nil field means the policy is disabled.
type Policies struct {
	CORS      *CORSPolicy
	Hosts     *HostFilter
	RateLimit *RateLimitMiddleware
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	clock Clock
}

// WithClock sets the clock used by the rate limiter.
func WithClock(c Clock) BuildOption {
	return func(o *buildOptions) {
		o.clock = c
	}
}

// Build derives the admission policies from settings.
func Build(s *config.ServerSettings, logger *slog.Logger, rec Recorder, opts ...BuildOption) (*Policies, error) {
	o := buildOptions{clock: SystemClock}
	for _, opt := range opts {
		opt(&o)
	}
	if rec == nil {
		rec = nopRecorder{}
	}

	p := &Policies{
		CORS:  NewCORSPolicy(s.CORSAllowedOrigins, logger, rec),
		Hosts: NewHostFilter(s.AllowedHosts, logger, rec),
	}

	if p.Hosts != nil {
		logger.Info("host filtering enabled", "allowed_hosts", s.AllowedHosts)
	}

	if !s.RateLimitEnabled() {
		logger.Debug("rate limiting disabled", "rate_limit", s.RateLimit)
		return p, nil
	}

	limiter, err := NewRateLimiter(RateLimitOptions{
		PermitLimit:  s.RateLimit,
		QueueLimit:   s.RateLimitQueue,
		Window:       s.RateLimitWindow(),
		QueueTimeout: s.QueueTimeout(),
	}, o.clock, rec)
	if err != nil {
		return nil, domain.ErrSettingsModel.WithDetails("web_server.rate_limit").WithCause(err)
	}

	p.RateLimit = NewRateLimitMiddleware(limiter, NewPartitionFunc(s.RateLimitPartition), logger)

	logger.Info("rate limiting enabled",
		"permits", s.RateLimit,
		"window", s.RateLimitWindow(),
		"queue", s.RateLimitQueue,
		"queue_timeout", s.QueueTimeout(),
		"partition", s.RateLimitPartition,
	)
	return p, nil
}

// Close releases limiter timers.
func (p *Policies) Close() {
	if p.RateLimit != nil {
		p.RateLimit.Limiter().Close()
	}
}
