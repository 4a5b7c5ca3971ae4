package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig caps outgoing upstream calls. Free-tier Groq keys are
// limited to a few dozen requests per minute; exceeding that returns 429.
type RateLimitConfig struct {
	// RequestsPerMinute limits the number of API calls per minute (0 = unlimited)
	RequestsPerMinute int
	// BurstSize allows temporary burst above the rate limit
	BurstSize int
}

// limiter is a token bucket refilled continuously at RequestsPerMinute.
type limiter struct {
	rpm   int
	burst int

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	waited     int
	allowed    int
}

func newLimiter(cfg RateLimitConfig) *limiter {
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &limiter{
		rpm:        cfg.RequestsPerMinute,
		burst:      burst,
		tokens:     float64(burst),
		lastRefill: time.Now(),
	}
}

// wait blocks until a request token is available or ctx is done.
func (l *limiter) wait(ctx context.Context) error {
	counted := false
	for {
		l.mu.Lock()
		l.refill(time.Now())
		if l.tokens >= 1 {
			l.tokens--
			l.allowed++
			l.mu.Unlock()
			return nil
		}
		if !counted {
			l.waited++
			counted = true
		}
		delay := time.Duration((1 - l.tokens) / l.perSecond() * float64(time.Second))
		l.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *limiter) perSecond() float64 {
	return float64(l.rpm) / 60.0
}

func (l *limiter) refill(now time.Time) {
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.perSecond()
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.lastRefill = now
}

// RateLimitStats contains rate limiting statistics.
type RateLimitStats struct {
	Allowed int // calls let through
	Waited  int // calls that had to wait for a token
}

// RateLimitProvider wraps a provider with rate limiting.
type RateLimitProvider struct {
	inner Provider
	lim   *limiter
}

// Name returns the underlying provider name.
func (r *RateLimitProvider) Name() string {
	return r.inner.Name()
}

// Model returns the underlying model when the inner provider reports one.
func (r *RateLimitProvider) Model() string {
	if m, ok := r.inner.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}

// Complete waits for capacity and delegates to the inner provider.
func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.lim.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Complete(ctx, prompt, opts)
}

// Stats returns current rate limiting statistics.
func (r *RateLimitProvider) Stats() RateLimitStats {
	r.lim.mu.Lock()
	defer r.lim.mu.Unlock()
	return RateLimitStats{Allowed: r.lim.allowed, Waited: r.lim.waited}
}

// Unwrap returns the wrapped provider.
func (r *RateLimitProvider) Unwrap() Provider {
	return r.inner
}

type prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}

// rateLimitPrompter keeps the Prompt method of agent-style providers visible
// through the wrapper.
type rateLimitPrompter struct {
	*RateLimitProvider
	p prompter
}

func (r *rateLimitPrompter) Prompt(ctx context.Context, message string) (string, error) {
	if err := r.lim.wait(ctx); err != nil {
		return "", err
	}
	return r.p.Prompt(ctx, message)
}

// WithRateLimit wraps p so that calls beyond cfg.RequestsPerMinute wait for
// capacity. A nil provider or an unlimited config returns p unchanged.
func WithRateLimit(p Provider, cfg RateLimitConfig) Provider {
	if p == nil || cfg.RequestsPerMinute <= 0 {
		return p
	}
	rl := &RateLimitProvider{inner: p, lim: newLimiter(cfg)}
	if pr, ok := p.(prompter); ok {
		return &rateLimitPrompter{RateLimitProvider: rl, p: pr}
	}
	return rl
}
