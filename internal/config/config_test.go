package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LimitUpWatch/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Asia/Taipei", cfg.Timezone)
	assert.InDelta(t, 9.8, cfg.LimitUp.MinPctChange, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 5, cfg.HTTP.Retries)
	assert.Equal(t, time.Second, cfg.HTTP.BackoffFactor)
	assert.Equal(t, "smtp", cfg.Email.Provider)
	assert.Equal(t, 465, cfg.Email.SMTPPort)
	assert.Equal(t, "0 30 15 * * 1-5", cfg.Schedule.Cron)
	assert.Equal(t, "data_clean", cfg.Output.Dir)

	sources := cfg.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, model.MarketTWSE, sources[0].Market)
	assert.Equal(t, model.MarketTPEX, sources[1].Market)
	assert.Equal(t, "big5", sources[0].Encoding)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeFile(t, "settings.yaml", `
timezone: Asia/Tokyo
limitup:
  min_pct_change: 9.5
http:
  timeout: 15s
  retries: 2
email:
  provider: sendgrid
  subject_prefix: "[test]"
source:
  broker_detail_url_template: "https://example.test/broker?code={code}&d={date}"
  markets:
    - market: twse
      url: https://example.test/twse.json
      format: json
    - market: TPEX
      url: https://example.test/tpex
`)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("EMAIL_FROM", "bot@example.test")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())
	assert.InDelta(t, 9.5, cfg.LimitUp.MinPctChange, 1e-9)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 2, cfg.HTTP.Retries)
	assert.Equal(t, "sendgrid", cfg.Email.Provider)
	assert.Equal(t, "[test]", cfg.Email.SubjectPrefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "bot@example.test", cfg.Email.From)

	sources := cfg.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, ListingSource{Market: model.MarketTWSE, URL: "https://example.test/twse.json", Format: "json"}, sources[0])
	assert.Equal(t, "html", sources[1].Format)
}

func TestLoad_ExplicitZeroKept(t *testing.T) {
	path := writeFile(t, "settings.yaml", `
http:
  retries: 0
  backoff_factor: 0s
source:
  tpex_limitup_url: ""
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0, cfg.HTTP.Retries)
	assert.Equal(t, time.Duration(0), cfg.HTTP.BackoffFactor)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout, "keys absent from the file keep their defaults")
	require.Len(t, cfg.Sources(), 1)
	assert.Equal(t, model.MarketTWSE, cfg.Sources()[0].Market)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"bad provider", func(s *Settings) { s.Email.Provider = "pigeon" }},
		{"bad timezone", func(s *Settings) { s.Timezone = "Mars/Olympus" }},
		{"template without code", func(s *Settings) { s.Source.BrokerDetailURLTemplate = "https://example.test/broker" }},
		{"unknown market", func(s *Settings) {
			s.Source.Markets = []MarketSource{{Market: "NYSE", URL: "https://example.test"}}
		}},
		{"no sources", func(s *Settings) { s.Source.TWSELimitUpURL, s.Source.TPEXLimitUpURL = "", "" }},
		{"negative threshold", func(s *Settings) { s.LimitUp.MinPctChange = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	_, err := Load(writeFile(t, "settings.yaml", "timezone: [unclosed"))
	assert.Error(t, err)
}

func TestLoadBrokers(t *testing.T) {
	path := writeFile(t, "brokers.yaml", `
targets:
  - name: 凱基台北
    code: "9268"
    max_ratio: 0.3
  - name: ""
  - code: 1480
`)
	b, err := LoadBrokers(path)
	require.NoError(t, err)
	require.Len(t, b.Targets, 2, "entries with neither name nor code are dropped")
	assert.Equal(t, "凱基台北", b.Targets[0].Name)

	ratio, ok := b.Targets[0].Ratio()
	require.True(t, ok)
	assert.InDelta(t, 0.3, ratio, 1e-9)
	assert.Equal(t, "1480", b.Targets[1].Code)

	_, err = LoadBrokers(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("EMAIL_USERNAME", "bot@example.test")
	t.Setenv("EMAIL_PASSWORD", "secret")
	t.Setenv("EMAIL_TO", " a@example.test, ,b@example.test ")

	c, err := CredentialsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.test", "b@example.test"}, c.To)

	t.Setenv("EMAIL_TO", " , ")
	_, err = CredentialsFromEnv()
	assert.True(t, errors.Is(err, ErrMissingCredentials))
}
