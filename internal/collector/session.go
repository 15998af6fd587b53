package collector

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"LimitUpWatch/internal/config"
)

// HostLimiter paces requests per host with a token bucket.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewHostLimiter creates a limiter allowing rps requests per second per host.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{limiters: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	l.mu.Lock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.limiters[host] = lim
	}
	l.mu.Unlock()
	return lim.Wait(ctx)
}

// NewSession returns an http.Client that retries transient failures, sets
// the configured User-Agent and times out each attempt after timeout.
// Proxies come from the environment (HTTPS_PROXY).
func NewSession(cfg config.HTTPConfig, timeout time.Duration, limiter *HostLimiter, log zerolog.Logger) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	return &http.Client{
		Transport: &retryTransport{
			next:      base,
			retries:   cfg.Retries,
			backoff:   cfg.BackoffFactor,
			timeout:   timeout,
			userAgent: cfg.UserAgent,
			limiter:   limiter,
			log:       log,
		},
	}
}
