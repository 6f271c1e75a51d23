// Package fetch retrieves web pages and extracts the body text, head
// metadata, and link sets the ingestion pipeline works on.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/SiteSageAI/sitesage-mvp/engine/domain"
	"github.com/SiteSageAI/sitesage-mvp/pkg/fn"
)

// Config controls fetcher behaviour.
type Config struct {
	// UserAgent sent on every request.
	UserAgent string
	// Timeout per HTTP request.
	Timeout time.Duration
	// HostRPS is the per-host request rate; politeness towards origins.
	HostRPS float64
	// HostBurst is the per-host burst allowance.
	HostBurst int
	// MaxBodyBytes caps the response body read.
	MaxBodyBytes int64
	// Retry is the retry policy for transient failures.
	Retry fn.RetryOpts
}

// DefaultConfig returns the fetcher defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:    "sitesage-fetcher/1.0 (site knowledge indexing)",
		Timeout:      30 * time.Second,
		HostRPS:      2,
		HostBurst:    4,
		MaxBodyBytes: 4 << 20,
		Retry: fn.RetryOpts{
			MaxAttempts: 3,
			InitialWait: 2 * time.Second,
			MaxWait:     20 * time.Second,
			Jitter:      true,
		},
	}
}

// Fetcher fetches and extracts pages.
type Fetcher struct {
	cfg    Config
	client *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Fetcher with the given config.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultConfig().Retry
	}
	return &Fetcher{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiters: make(map[string]*rate.Limiter),
	}
}

// Fetch retrieves url and extracts its page content.
func (f *Fetcher) Fetch(ctx context.Context, url string) (domain.Page, error) {
	result := fn.Retry(ctx, f.cfg.Retry, func(ctx context.Context) fn.Result[string] {
		return f.doGet(ctx, url)
	})

	html, err := result.Unwrap()
	if err != nil {
		return domain.Page{}, fmt.Errorf("fetch %s: %w: %w", url, domain.ErrFetchFailed, err)
	}
	return extractPage(url, html), nil
}

func (f *Fetcher) doGet(ctx context.Context, url string) fn.Result[string] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fn.Err[string](err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	if err := f.limiterFor(req.URL.Host).Wait(ctx); err != nil {
		return fn.Err[string](err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fn.Err[string](err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fn.Err[string](fmt.Errorf("http %d from %s", resp.StatusCode, url))
	}
	if resp.StatusCode != http.StatusOK {
		return fn.Err[string](fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return fn.Err[string](fmt.Errorf("read body: %w", err))
	}
	return fn.Ok(string(body))
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		rps := f.cfg.HostRPS
		if rps <= 0 {
			rps = DefaultConfig().HostRPS
		}
		burst := f.cfg.HostBurst
		if burst <= 0 {
			burst = DefaultConfig().HostBurst
		}
		l = rate.NewLimiter(rate.Limit(rps), burst)
		f.limiters[host] = l
	}
	return l
}
