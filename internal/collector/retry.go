package collector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// maxBackoff caps a single wait between attempts.
const maxBackoff = 2 * time.Minute

var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// retryTransport retries idempotent-enough requests (GET and POST with a
// replayable body) on transport errors and transient statuses. Waits grow as
// backoff, 2*backoff, 4*backoff and stop early when the context ends.
type retryTransport struct {
	next      http.RoundTripper
	retries   int
	backoff   time.Duration
	timeout   time.Duration // per attempt
	userAgent string
	limiter   *HostLimiter
	log       zerolog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(ctx)
		req.Header.Set("User-Agent", t.userAgent)
	}
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
	retryable := (req.Method == http.MethodGet || req.Method == http.MethodPost) && replayable

	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req = req.Clone(ctx)
			req.Body = body
		}
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx, req.URL.Host); err != nil {
				return nil, err
			}
		}

		resp, err := t.attempt(req)
		if !retryable || attempt >= t.retries || ctx.Err() != nil || !shouldRetry(resp, err) {
			return resp, err
		}

		delay := t.delay(attempt, resp)
		ev := t.log.Debug().Str("url", req.URL.Redacted()).Int("attempt", attempt+1).Dur("wait", delay)
		if err != nil {
			ev.Err(err).Msg("request failed, retrying")
		} else {
			ev.Int("status", resp.StatusCode).Msg("transient status, retrying")
			drain(resp.Body)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// attempt runs one round trip under the per-attempt timeout. The timeout
// stays armed until the caller closes the response body.
func (t *retryTransport) attempt(req *http.Request) (*http.Response, error) {
	if t.timeout <= 0 {
		return t.next.RoundTrip(req)
	}
	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
	resp, err := t.next.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (t *retryTransport) delay(attempt int, resp *http.Response) time.Duration {
	d := t.backoff << attempt
	if resp != nil {
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && time.Duration(s)*time.Second > d {
			d = time.Duration(s) * time.Second
		}
	}
	if d > maxBackoff || d < 0 {
		d = maxBackoff
	}
	return d
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return retryStatuses[resp.StatusCode]
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
