package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultTimeout    = 60 * time.Second
)

// Options tune the client's resilience behavior.
type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the backoff unit; attempt n sleeps BaseDelay << n.
	BaseDelay time.Duration
	// Timeout bounds each individual backend call.
	Timeout time.Duration
}

// Client wraps a Generator with caching and retry. The cache is the only
// persistent state this component owns; it is written on every successful
// non-cached call.
type Client struct {
	gen    Generator
	cache  *Cache
	opts   Options
	logger zerolog.Logger
}

// NewClient builds a client around gen. cache may be nil to disable
// response caching.
func NewClient(gen Generator, cache *Cache, opts Options, logger zerolog.Logger) *Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		gen:    gen,
		cache:  cache,
		opts:   opts,
		logger: logger.With().Str("component", "llm").Str("model", gen.Model()).Logger(),
	}
}

func (c *Client) Model() string {
	return c.gen.Model()
}

// Generate returns text for prompt, consulting the cache first. Transient
// failures (network errors, timeouts, rate limiting, empty output) are
// retried with exponential backoff up to the configured bound; a
// non-transient failure returns a GenerationError immediately. Successful
// results are guaranteed non-empty.
func (c *Client) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	key := CacheKey(prompt, c.gen.Model(), params)
	if c.cache != nil {
		if text, ok := c.cache.Get(key); ok {
			c.logger.Debug().Str("key", key[:12]).Msg("cache hit")
			return text, nil
		}
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.opts.BaseDelay << (attempt - 1)
			c.logger.Warn().Err(lastErr).Int("attempt", attempt).Dur("backoff", delay).
				Msg("retrying generation")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", &GenerationError{Attempts: attempts, Err: ctx.Err()}
			}
		}

		attempts++
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		text, err := c.gen.Generate(callCtx, prompt, params)
		cancel()

		if err == nil && strings.TrimSpace(text) == "" {
			err = errEmptyResponse
		}
		if err == nil {
			if c.cache != nil {
				if cacheErr := c.cache.Put(key, text); cacheErr != nil {
					c.logger.Warn().Err(cacheErr).Msg("failed to write response cache")
				}
			}
			return text, nil
		}

		lastErr = err
		if !isTransient(err) {
			return "", &GenerationError{Attempts: attempts, Err: err}
		}
	}

	return "", &GenerationError{Attempts: attempts, Err: lastErr}
}
