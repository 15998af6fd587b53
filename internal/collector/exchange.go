package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"LimitUpWatch/internal/config"
	"LimitUpWatch/internal/table"
)

// maxBodyBytes bounds a single page read.
const maxBodyBytes = 16 << 20

// ErrBreakerOpen means the broker source failed often enough that further
// lookups are refused for a while.
var ErrBreakerOpen = errors.New("broker source unavailable")

// StatusError is returned for a non-200 response that survived retries.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// Client implements Fetcher against the ranking pages and the broker-detail
// page template from settings.
type Client struct {
	listing        *http.Client
	broker         *http.Client
	brokerTemplate string
	brokerFormat   string
	brokerEncoding string
	breaker        *gobreaker.CircuitBreaker
	log            zerolog.Logger
}

// NewClient builds listing and broker sessions sharing one per-host limiter.
func NewClient(cfg *config.Settings, log zerolog.Logger) *Client {
	limiter := NewHostLimiter(cfg.HTTP.RequestsPerSecond, cfg.HTTP.Burst)
	log = log.With().Str("component", "collector").Logger()

	st := gobreaker.Settings{Name: "broker-detail"}
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.HTTP.BreakerFailures
	}
	st.IsSuccessful = func(err error) bool {
		// A missing page for one stock says nothing about the source.
		var se *StatusError
		if errors.As(err, &se) {
			return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
		}
		return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, table.ErrNoData)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
	}

	return &Client{
		listing:        NewSession(cfg.HTTP, cfg.HTTP.Timeout, limiter, log),
		broker:         NewSession(cfg.HTTP, cfg.HTTP.BrokerTimeout, limiter, log),
		brokerTemplate: cfg.Source.BrokerDetailURLTemplate,
		brokerFormat:   cfg.Source.BrokerFormat,
		brokerEncoding: cfg.Source.BrokerEncoding,
		breaker:        gobreaker.NewCircuitBreaker(st),
		log:            log,
	}
}

func (c *Client) Name() string { return "exchange" }

// FetchListing downloads one limit-up ranking and extracts its tables.
func (c *Client) FetchListing(ctx context.Context, src config.ListingSource) ([]table.Table, error) {
	return c.fetchTables(ctx, c.listing, src.URL, src.Format, src.Encoding)
}

// FetchBrokerDetail downloads the broker breakdown of one stock. Calls go
// through the circuit breaker; once it opens they fail with ErrBreakerOpen.
func (c *Client) FetchBrokerDetail(ctx context.Context, symbol, tradeDate string) ([]table.Table, error) {
	u := BrokerURL(c.brokerTemplate, symbol, tradeDate)
	v, err := c.breaker.Execute(func() (any, error) {
		return c.fetchTables(ctx, c.broker, u, c.brokerFormat, c.brokerEncoding)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return v.([]table.Table), nil
}

// BrokerURL fills {code} and {date} in the broker-detail template.
func BrokerURL(template, symbol, tradeDate string) string {
	return strings.NewReplacer("{code}", symbol, "{date}", tradeDate).Replace(template)
}

func (c *Client) fetchTables(ctx context.Context, hc *http.Client, url, format, encoding string) ([]table.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body := io.LimitReader(resp.Body, maxBodyBytes)

	if format == "json" {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", url, err)
		}
		return table.FromJSON(data)
	}

	r, err := decodeBody(body, encoding, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	tables, err := table.ExtractHTML(r)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}
	c.log.Debug().Str("url", url).Int("tables", len(tables)).Msg("page fetched")
	return tables, nil
}
