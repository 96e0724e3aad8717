package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"top8scraper/internal/config"
	"top8scraper/internal/observability"
)

// source performs a single GET without retries.
type source interface {
	get(ctx context.Context, path string, params map[string]string) ([]byte, error)
	close() error
}

type SleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher retrieves site pages through a bounded pool and retries transient
// failures after a fixed delay.
type Fetcher struct {
	source     source
	pool       *Pool
	logger     *observability.Logger
	retryDelay time.Duration
	maxRetries int
	sleep      SleepFunc
}

func NewFetcher(cfg *config.Config, logger *observability.Logger) (*Fetcher, error) {
	var (
		src source
		err error
	)
	switch cfg.Fetch.Engine {
	case config.EngineRod:
		src, err = newBrowserSource(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	default:
		src = newHTTPSource(cfg)
	}

	return newFetcher(src, cfg, logger), nil
}

func newFetcher(src source, cfg *config.Config, logger *observability.Logger) *Fetcher {
	return &Fetcher{
		source:     src,
		pool:       NewPool(cfg.HTTP.MaxConnections, cfg.HTTP.RequestsPerSecond),
		logger:     logger,
		retryDelay: cfg.GetRetryDelay(),
		maxRetries: cfg.HTTP.MaxRetries,
		sleep:      sleepContext,
	}
}

// WithSleep replaces the delay between retries.
func (f *Fetcher) WithSleep(sleep SleepFunc) *Fetcher {
	f.sleep = sleep
	return f
}

// Fetch returns the body of path with params as its query string. Transient
// failures are retried until the request succeeds or http.max_retries is
// exhausted; ctx cancellation ends the loop at once.
func (f *Fetcher) Fetch(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		body, err := f.fetchOnce(ctx, path, params)
		if err == nil {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !IsTransient(err) {
			return nil, err
		}
		if f.maxRetries > 0 && attempt > f.maxRetries {
			return nil, fmt.Errorf("fetch %s failed after %d retries: %w", path, f.maxRetries, err)
		}

		f.logger.Warn("Transient fetch error, retrying",
			"path", path,
			"params", params,
			"attempt", attempt,
			"error", err.Error(),
		)
		if err := f.sleep(ctx, f.retryDelay); err != nil {
			return nil, err
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	if err := f.pool.Acquire(ctx); err != nil {
		return nil, err
	}
	defer f.pool.Release()

	return f.source.get(ctx, path, params)
}

func (f *Fetcher) Close() error {
	return f.source.close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildURL joins base and path and merges params into the query string.
func buildURL(base, path string, params map[string]string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
