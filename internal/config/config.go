package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"LimitUpWatch/internal/model"
)

// Settings holds all application configuration from settings.yaml.
type Settings struct {
	Timezone string         `yaml:"timezone" default:"Asia/Taipei" validate:"required"`
	Source   SourceConfig   `yaml:"source"`
	LimitUp  LimitUpConfig  `yaml:"limitup"`
	HTTP     HTTPConfig     `yaml:"http"`
	Email    EmailConfig    `yaml:"email"`
	Output   OutputConfig   `yaml:"output"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`
}

type SourceConfig struct {
	TWSELimitUpURL          string         `yaml:"twse_limitup_url" default:"https://fubon-ebrokerdj.fbs.com.tw/z/zg/zg_A_0_0.djhtm" validate:"omitempty,url"`
	TPEXLimitUpURL          string         `yaml:"tpex_limitup_url" default:"https://fubon-ebrokerdj.fbs.com.tw/z/zg/zg_A_1_1.djhtm" validate:"omitempty,url"`
	BrokerDetailURLTemplate string         `yaml:"broker_detail_url_template" default:"https://fubon-ebrokerdj.fbs.com.tw/z/zc/zco/zco.djhtm?a={code}&e={date}&f={date}" validate:"required"`
	BrokerFormat            string         `yaml:"broker_format" default:"html" validate:"oneof=html json"`
	BrokerEncoding          string         `yaml:"broker_encoding" default:"big5"`
	Markets                 []MarketSource `yaml:"markets" validate:"dive"`
}

// MarketSource is one limit-up listing endpoint. When Markets is empty the
// TWSE and TPEX URLs are used as two HTML sources.
type MarketSource struct {
	Market   string `yaml:"market" validate:"required"`
	URL      string `yaml:"url" validate:"required,url"`
	Format   string `yaml:"format" validate:"omitempty,oneof=html json"` // default html
	Encoding string `yaml:"encoding"`                                     // empty: detect from headers and meta tags
}

type LimitUpConfig struct {
	MinPctChange float64 `yaml:"min_pct_change" default:"9.8" validate:"gt=0,lte=100"`
}

type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	BrokerTimeout     time.Duration `yaml:"broker_timeout" default:"20s" validate:"gt=0"`
	Retries           int           `yaml:"retries" default:"5" validate:"gte=0,lte=10"`
	BackoffFactor     time.Duration `yaml:"backoff_factor" default:"1s" validate:"gte=0"`
	UserAgent         string        `yaml:"user_agent" default:"Mozilla/5.0 (LimitUpBrokerWatch/1.0; +https://example.com)"`
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"2" validate:"gt=0"`
	Burst             int           `yaml:"burst" default:"1" validate:"gte=1"`
	BreakerFailures   uint32        `yaml:"breaker_failures" default:"5" validate:"gte=1"`
}

type EmailConfig struct {
	Provider      string        `yaml:"provider" default:"smtp" validate:"oneof=smtp sendgrid"`
	SubjectPrefix string        `yaml:"subject_prefix" default:"[漲停主力分點]"`
	From          string        `yaml:"from" validate:"omitempty,email"`
	SMTPHost      string        `yaml:"smtp_host" default:"smtp.gmail.com" validate:"required_if=Provider smtp"`
	SMTPPort      int           `yaml:"smtp_port" default:"465" validate:"gt=0,lte=65535"`
	SendGridURL   string        `yaml:"sendgrid_url" default:"https://api.sendgrid.com/v3/mail/send" validate:"url"`
	Timeout       time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
}

type OutputConfig struct {
	Dir         string `yaml:"dir" default:"data_clean" validate:"required"`
	SQLitePath  string `yaml:"sqlite_path"`
	MetricsFile string `yaml:"metrics_file"`
}

type ScheduleConfig struct {
	Cron string `yaml:"cron" default:"0 30 15 * * 1-5" validate:"required"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

var validate = validator.New()

// Load fills defaults, decodes the YAML file over them, then applies
// environment overrides. Keys present in the file win even when zero, so
// "retries: 0" disables retries. A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	cfg := &Settings{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse settings: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		cfg.Email.From = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	return cfg, nil
}

// Validate checks field constraints and the cross-field rules the struct
// tags cannot express.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	if !strings.Contains(s.Source.BrokerDetailURLTemplate, "{code}") {
		return fmt.Errorf("source.broker_detail_url_template must contain {code}")
	}
	sources := s.Sources()
	if len(sources) == 0 {
		return fmt.Errorf("no limit-up source configured")
	}
	for _, src := range s.Source.Markets {
		if _, ok := model.ParseMarket(src.Market); !ok {
			return fmt.Errorf("source.markets: unknown market %q", src.Market)
		}
	}
	return nil
}

// Location returns the configured timezone.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ListingSource is a validated limit-up endpoint.
type ListingSource struct {
	Market   model.Market
	URL      string
	Format   string
	Encoding string
}

// Sources returns the limit-up endpoints in run order.
func (s *Settings) Sources() []ListingSource {
	var out []ListingSource
	if len(s.Source.Markets) > 0 {
		for _, m := range s.Source.Markets {
			market, ok := model.ParseMarket(m.Market)
			if !ok {
				continue
			}
			format := m.Format
			if format == "" {
				format = "html"
			}
			out = append(out, ListingSource{Market: market, URL: m.URL, Format: format, Encoding: m.Encoding})
		}
		return out
	}
	if s.Source.TWSELimitUpURL != "" {
		out = append(out, ListingSource{Market: model.MarketTWSE, URL: s.Source.TWSELimitUpURL, Format: "html", Encoding: "big5"})
	}
	if s.Source.TPEXLimitUpURL != "" {
		out = append(out, ListingSource{Market: model.MarketTPEX, URL: s.Source.TPEXLimitUpURL, Format: "html", Encoding: "big5"})
	}
	return out
}

// Brokers is the watchlist file.
type Brokers struct {
	Targets []model.TargetBroker `yaml:"targets"`
}

// LoadBrokers reads the broker watchlist. Unlike settings, the file must exist.
func LoadBrokers(path string) (*Brokers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read brokers: %w", err)
	}
	b := &Brokers{}
	if err := yaml.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("parse brokers: %w", err)
	}
	kept := b.Targets[:0]
	for _, t := range b.Targets {
		if strings.TrimSpace(t.Name) == "" && strings.TrimSpace(t.Code) == "" {
			continue
		}
		kept = append(kept, t)
	}
	b.Targets = kept
	return b, nil
}

// ErrMissingCredentials is returned when EMAIL_USERNAME, EMAIL_PASSWORD or
// EMAIL_TO is unset.
var ErrMissingCredentials = errors.New("email credentials missing (EMAIL_USERNAME/EMAIL_PASSWORD/EMAIL_TO)")

// Credentials are read from the environment only, never from YAML.
type Credentials struct {
	Username string
	Password string // SMTP password or SendGrid API key
	To       []string
}

// CredentialsFromEnv reads the email credentials.
func CredentialsFromEnv() (Credentials, error) {
	c := Credentials{
		Username: strings.TrimSpace(os.Getenv("EMAIL_USERNAME")),
		Password: os.Getenv("EMAIL_PASSWORD"),
	}
	for _, addr := range strings.Split(os.Getenv("EMAIL_TO"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			c.To = append(c.To, addr)
		}
	}
	if c.Username == "" || c.Password == "" || len(c.To) == 0 {
		return c, ErrMissingCredentials
	}
	return c, nil
}
