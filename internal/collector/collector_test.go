package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/traditionalchinese"

	"LimitUpWatch/internal/config"
	"LimitUpWatch/internal/model"
	"LimitUpWatch/internal/table"
)

func testSettings(t *testing.T, brokerTemplate string) *config.Settings {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.HTTP.Retries = 2
	cfg.HTTP.BackoffFactor = time.Millisecond
	cfg.HTTP.RequestsPerSecond = 1000
	cfg.HTTP.Burst = 10
	cfg.HTTP.BreakerFailures = 2
	if brokerTemplate != "" {
		cfg.Source.BrokerDetailURLTemplate = brokerTemplate
	}
	return cfg
}

func big5(t *testing.T, s string) []byte {
	t.Helper()
	b, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return b
}

const rankingPage = `<html><head><meta http-equiv="Content-Type" content="text/html; charset=big5"></head><body>
<table><tr><td>股票代號</td><td>股票名稱</td><td>收盤</td><td>漲跌幅</td></tr>
<tr><td>2330</td><td>台積電</td><td>1000</td><td>+10.00%</td></tr></table></body></html>`

func TestFetchListing_DecodesBig5(t *testing.T) {
	body := big5(t, rankingPage)
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c := NewClient(testSettings(t, ""), zerolog.Nop())
	for _, enc := range []string{"big5", ""} {
		tables, err := c.FetchListing(context.Background(), config.ListingSource{Market: model.MarketTWSE, URL: srv.URL, Format: "html", Encoding: enc})
		require.NoError(t, err, "encoding %q", enc)
		require.Len(t, tables, 1)
		assert.Equal(t, []string{"2330", "台積電", "1000", "+10.00%"}, tables[0].Rows[0], "encoding %q", enc)
	}
	assert.Contains(t, ua.Load(), "LimitUpBrokerWatch")
}

func TestFetchListing_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"Code":"2330","Name":"台積電","ClosingPrice":"1000"}]`))
	}))
	defer srv.Close()

	c := NewClient(testSettings(t, ""), zerolog.Nop())
	tables, err := c.FetchListing(context.Background(), config.ListingSource{Market: model.MarketTWSE, URL: srv.URL, Format: "json"})
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, []string{"Code", "Name", "ClosingPrice"}, tables[0].Headers)
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(rankingPage))
	}))
	defer srv.Close()

	c := NewClient(testSettings(t, ""), zerolog.Nop())
	_, err := c.FetchListing(context.Background(), config.ListingSource{URL: srv.URL, Encoding: "utf-8"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRetry_GivesUpAfterLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testSettings(t, ""), zerolog.Nop())
	_, err := c.FetchListing(context.Background(), config.ListingSource{URL: srv.URL})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, int32(3), hits.Load(), "one attempt plus two retries")
}

func TestRetry_NotOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(testSettings(t, ""), zerolog.Nop())
	_, err := c.FetchListing(context.Background(), config.ListingSource{URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetry_ContextCancelsBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testSettings(t, "")
	cfg.HTTP.BackoffFactor = time.Hour
	c := NewClient(cfg, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.FetchListing(ctx, config.ListingSource{URL: srv.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchBrokerDetail_TemplateAndBreaker(t *testing.T) {
	var hits atomic.Int32
	var lastQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		lastQuery.Store(r.URL.RawQuery)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testSettings(t, srv.URL+"/zco?a={code}&e={date}")
	cfg.HTTP.Retries = 0
	c := NewClient(cfg, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.FetchBrokerDetail(ctx, "2330", "2024-05-02")
		var se *StatusError
		require.True(t, errors.As(err, &se))
	}
	assert.Equal(t, "a=2330&e=2024-05-02", lastQuery.Load())

	_, err := c.FetchBrokerDetail(ctx, "2317", "2024-05-02")
	assert.True(t, errors.Is(err, ErrBreakerOpen))
	assert.Equal(t, int32(2), hits.Load(), "open breaker does not reach the server")
}

func TestFetchBrokerDetail_NotFoundDoesNotTrip(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testSettings(t, srv.URL+"/zco?a={code}")
	c := NewClient(cfg, zerolog.Nop())
	for i := 0; i < 4; i++ {
		_, err := c.FetchBrokerDetail(context.Background(), "2330", "2024-05-02")
		assert.False(t, errors.Is(err, ErrBreakerOpen))
	}
	assert.Equal(t, int32(4), hits.Load())
}

func TestFetchBrokerDetail_EmptyJSONDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := testSettings(t, srv.URL+"/brokers?code={code}")
	cfg.Source.BrokerFormat = "json"
	c := NewClient(cfg, zerolog.Nop())
	for i := 0; i < 4; i++ {
		_, err := c.FetchBrokerDetail(context.Background(), "2330", "2024-05-02")
		assert.ErrorIs(t, err, table.ErrNoData)
	}
}

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "https://x.test/zco.djhtm?a=2330&e=2024-05-02&f=2024-05-02",
		BrokerURL("https://x.test/zco.djhtm?a={code}&e={date}&f={date}", "2330", "2024-05-02"))
}

func TestHostLimiter_Paces(t *testing.T) {
	l := NewHostLimiter(20, 1)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "a.test"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "b.test"))
	assert.Less(t, time.Since(start), 40*time.Millisecond, "hosts are paced independently")
}
