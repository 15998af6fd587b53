package notifier

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"LimitUpWatch/internal/config"
	"LimitUpWatch/internal/model"
)

func f(v float64) *float64 { return &v }

func TestFormatSubject(t *testing.T) {
	assert.Equal(t, "[漲停主力分點] 2024-05-02", FormatSubject("[漲停主力分點]", "2024-05-02"))
	assert.Equal(t, "2024-05-02", FormatSubject("", "2024-05-02"))
}

func TestFormatSummary_ZeroHits(t *testing.T) {
	s := &model.RunSummary{
		TradeDate: "2024-05-02",
		LimitUps:  make([]model.LimitUpRow, 3),
		Sources:   []model.SourceOutcome{{Market: model.MarketTWSE, Status: model.SourceOK}, {Market: model.MarketTPEX, Status: model.SourceEmpty}},
	}
	html := FormatSummary(s)
	assert.Contains(t, html, "<p>2024-05-02 無任何漲停股的買超第一名券商符合設定的主力分點清單。</p>")
	assert.Contains(t, html, "<p>漲停檔數：3，命中標的數：0</p>")
	assert.NotContains(t, html, "<table")
	assert.NotContains(t, html, "注意")
}

func TestFormatSummary_Hits(t *testing.T) {
	s := &model.RunSummary{
		TradeDate: "2024-05-02",
		LimitUps:  make([]model.LimitUpRow, 1),
		Hits: []model.BrokerHit{{
			TradeDate: "2024-05-02", Symbol: "2330", Name: "台積<電>", Market: model.MarketTWSE,
			Close: f(1000), PctChange: 9.95, BrokerName: "凱基台北", BrokerCode: "9268", BuyVolume: 2500,
		}},
		Sources: []model.SourceOutcome{{Market: model.MarketTPEX, Status: model.SourceSkipped}},
		Stocks:  []model.StockOutcome{{Symbol: "2330", Status: model.StockHit}, {Symbol: "4939", Status: model.StockSkipped}},
	}
	html := FormatSummary(s)
	assert.Contains(t, html, "<p>今日符合條件的標的如下：</p>")
	assert.Contains(t, html, "<th>買超券商</th>")
	assert.Contains(t, html, "<td>台積&lt;電&gt;</td><td>2330</td><td>TWSE</td><td>1000.00</td><td>-</td><td>9.95%</td><td>凱基台北</td><td>9268</td><td>2500</td>")
	assert.Contains(t, html, "TPEX 漲停清單抓取失敗")
	assert.Contains(t, html, "1 檔個股的券商資料抓取失敗")
}

func TestComposeMIME_RoundTrip(t *testing.T) {
	msg := &Message{
		From:    "bot@example.test",
		To:      []string{"a@example.test", "b@example.test"},
		Subject: "[漲停主力分點] 2024-05-02",
		HTML:    "<p>今日符合條件的標的如下：</p>",
	}
	var buf bytes.Buffer
	require.NoError(t, composeMIME(&buf, msg, time.Date(2024, 5, 2, 15, 30, 0, 0, time.UTC)))
	assert.Contains(t, buf.String(), "Content-Transfer-Encoding: base64")

	mr, err := mail.CreateReader(&buf)
	require.NoError(t, err)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, msg.Subject, subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	assert.Equal(t, "b@example.test", to[1].Address)

	p, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(p.Body)
	require.NoError(t, err)
	assert.Equal(t, msg.HTML, string(body))
}

func TestSendGridMailer(t *testing.T) {
	var auth string
	var payload []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		payload, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := &SendGridMailer{URL: srv.URL, APIKey: "SG.key", Client: srv.Client()}
	err := m.Send(context.Background(), &Message{From: "bot@example.test", To: []string{"a@example.test"}, Subject: "s", HTML: "<p>x</p>"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer SG.key", auth)
	assert.Equal(t, "a@example.test", gjson.GetBytes(payload, "personalizations.0.to.0.email").String())
	assert.Equal(t, "s", gjson.GetBytes(payload, "personalizations.0.subject").String())
	assert.Equal(t, "bot@example.test", gjson.GetBytes(payload, "from.email").String())
	assert.Equal(t, "text/html", gjson.GetBytes(payload, "content.0.type").String())
	assert.Equal(t, "<p>x</p>", gjson.GetBytes(payload, "content.0.value").String())
}

func TestSendGridMailer_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	m := &SendGridMailer{URL: srv.URL, APIKey: "nope"}
	err := m.Send(context.Background(), &Message{From: "a@example.test", To: []string{"b@example.test"}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, apiErr.Body, "bad key")
}

func TestNew(t *testing.T) {
	cred := config.Credentials{Username: "bot@example.test", Password: "pw", To: []string{"a@example.test"}}

	m, err := New(config.EmailConfig{Provider: "smtp", SMTPHost: "smtp.example.test", SMTPPort: 587}, cred)
	require.NoError(t, err)
	assert.Equal(t, "smtp", m.Name())

	m, err = New(config.EmailConfig{Provider: "sendgrid", SendGridURL: "https://api.example.test"}, cred)
	require.NoError(t, err)
	assert.Equal(t, "pw", m.(*SendGridMailer).APIKey)

	_, err = New(config.EmailConfig{Provider: "fax"}, cred)
	assert.Error(t, err)

	assert.Equal(t, "bot@example.test", SenderAddress(config.EmailConfig{}, cred))
	assert.Equal(t, "news@example.test", SenderAddress(config.EmailConfig{From: "news@example.test"}, cred))
}

func TestDryRunMailer(t *testing.T) {
	var buf bytes.Buffer
	m := &DryRunMailer{Log: zerolog.New(&buf)}
	require.NoError(t, m.Send(context.Background(), &Message{Subject: "s", To: []string{"a@example.test"}}))
	assert.Contains(t, buf.String(), "dry run")
}
