package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key. Source fetches are keyed by host,
// model calls by provider name.
type Limiter struct {
	buckets      sync.Map // key -> *rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter builds a limiter whose buckets refill at requestsPerSecond;
// requestsPerSecond <= 0 disables limiting
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Limiter{defaultRate: limit, defaultBurst: burst}
}

// Wait blocks until the host of rawURL may be contacted
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostKey(rawURL)
	if err != nil {
		return err
	}
	return l.WaitKey(ctx, host)
}

// WaitKey blocks until key has a token or ctx ends. A nil Limiter never blocks.
func (l *Limiter) WaitKey(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	return l.bucket(key).Wait(ctx)
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	if b, ok := l.buckets.Load(key); ok {
		return b.(*rate.Limiter)
	}
	b, _ := l.buckets.LoadOrStore(key, rate.NewLimiter(l.defaultRate, l.defaultBurst))
	return b.(*rate.Limiter)
}

func hostKey(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("no host in URL %q", rawURL)
	}
	return strings.ToLower(parsed.Host), nil
}
