package resilience

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kbukum/scalestore/errors"
)

// RateLimiterConfig configures a rate limiter.
type RateLimiterConfig struct {
	// Name identifies this rate limiter in errors and logs.
	Name string `mapstructure:"name"`
	// Rate is the number of calls allowed per second.
	Rate float64 `mapstructure:"rate"`
	// Burst is the maximum burst size.
	Burst int `mapstructure:"burst"`
	// OnLimit is called when a call has to wait or is rejected.
	OnLimit func(name string) `mapstructure:"-"`
}

// DefaultRateLimiterConfig returns defaults sized for a cloud management API.
func DefaultRateLimiterConfig(name string) RateLimiterConfig {
	return RateLimiterConfig{Name: name, Rate: 5, Burst: 10}
}

// ApplyDefaults fills zero values.
func (c *RateLimiterConfig) ApplyDefaults() {
	if c.Rate <= 0 {
		c.Rate = 5
	}
	if c.Burst <= 0 {
		c.Burst = int(c.Rate)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
}

// Validate checks the configuration after defaults are applied.
func (c *RateLimiterConfig) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("rate_limit.rate must be positive, got %v", c.Rate)
	}
	if c.Burst < 1 {
		return fmt.Errorf("rate_limit.burst must be at least 1, got %d", c.Burst)
	}
	return nil
}

// RateLimiter is a token bucket backed by rate.Limiter that reports
// rejections as RATE_LIMITED.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
	now     func() time.Time
}

// NewRateLimiter creates a new rate limiter starting with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	config.ApplyDefaults()
	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
		now:     time.Now,
	}
}

// Allow reports whether a call may proceed now, consuming a token if so.
func (rl *RateLimiter) Allow() bool {
	if rl.limiter.AllowN(rl.now(), 1) {
		return true
	}
	rl.limited()
	return false
}

// Wait blocks until a token is available or ctx is done. A wait that would
// outlast the ctx deadline fails immediately with context.DeadlineExceeded.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.limiter.TokensAt(rl.now()) < 1 {
		rl.limited()
	}
	if err := rl.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w: %v", rl.config.Name, context.DeadlineExceeded, err)
	}
	return nil
}

// Execute runs fn if a token is available, else fails with RATE_LIMITED.
func (rl *RateLimiter) Execute(fn func() error) error {
	if !rl.Allow() {
		return errors.RateLimited(rl.config.Name)
	}
	return fn()
}

// ExecuteWait blocks until a token is available, then runs fn. Errors from
// fn are returned unchanged.
func (rl *RateLimiter) ExecuteWait(ctx context.Context, fn func() error) error {
	if err := rl.Wait(ctx); err != nil {
		return err
	}
	return fn()
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 { return rl.limiter.TokensAt(rl.now()) }

// Name returns the limiter name.
func (rl *RateLimiter) Name() string { return rl.config.Name }

func (rl *RateLimiter) limited() {
	if rl.config.OnLimit != nil {
		rl.config.OnLimit(rl.config.Name)
	}
}
