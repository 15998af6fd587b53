// Package pipeline runs one trade date end to end: listings, broker
// lookups, snapshots and the summary email.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"LimitUpWatch/internal/collector"
	"LimitUpWatch/internal/config"
	"LimitUpWatch/internal/dates"
	"LimitUpWatch/internal/metrics"
	"LimitUpWatch/internal/model"
	"LimitUpWatch/internal/notifier"
	"LimitUpWatch/internal/recorder"
	"LimitUpWatch/internal/screener"
	"LimitUpWatch/internal/table"
)

// ErrAllSourcesFailed means no limit-up listing could be read, so there is
// nothing meaningful to report.
var ErrAllSourcesFailed = errors.New("all limit-up sources failed")

// Pipeline holds everything a run needs. Metrics and MetricsFile are optional.
type Pipeline struct {
	Fetcher   collector.Fetcher
	Mailer    notifier.Mailer
	Recorder  recorder.Recorder
	Metrics   *metrics.Recorder
	Sources   []config.ListingSource
	Targets   []model.TargetBroker
	Threshold float64
	Location  *time.Location

	SubjectPrefix string
	From          string
	To            []string
	MetricsFile   string

	Log zerolog.Logger
	Now func() time.Time
}

// New wires a pipeline from settings and the broker watchlist.
func New(cfg *config.Settings, brokers *config.Brokers, f collector.Fetcher, m notifier.Mailer, rec recorder.Recorder, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		Fetcher:       f,
		Mailer:        m,
		Recorder:      rec,
		Metrics:       metrics.New(),
		Sources:       cfg.Sources(),
		Targets:       brokers.Targets,
		Threshold:     cfg.LimitUp.MinPctChange,
		Location:      cfg.Location(),
		SubjectPrefix: cfg.Email.SubjectPrefix,
		MetricsFile:   cfg.Output.MetricsFile,
		Log:           log.With().Str("component", "pipeline").Logger(),
		Now:           time.Now,
	}
}

// Run processes the trade date named by dateArg (YYYY-MM-DD or a keyword
// such as "today"). The summary is returned even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, dateArg string) (*model.RunSummary, error) {
	now := p.now()
	tradeDate, err := dates.Resolve(dateArg, p.Location, now)
	if err != nil {
		return nil, err
	}

	s := &model.RunSummary{RunID: uuid.NewString(), TradeDate: tradeDate, StartedAt: now}
	log := p.Log.With().Str("run_id", s.RunID).Str("trade_date", tradeDate).Logger()
	log.Info().Int("sources", len(p.Sources)).Int("targets", len(p.Targets)).Msg("run started")

	p.collectListings(ctx, log, s)
	if countSources(s, model.SourceSkipped) == len(s.Sources) {
		return p.finish(log, s, ErrAllSourcesFailed)
	}
	log.Info().Int("limitups", len(s.LimitUps)).Msg("limit-up list built")
	if err := p.Recorder.RecordLimitUps(tradeDate, s.LimitUps); err != nil {
		log.Error().Err(err).Msg("record limit-ups")
	}

	if err := p.matchBrokers(ctx, log, s); err != nil {
		return p.finish(log, s, err)
	}
	log.Info().Int("hits", len(s.Hits)).Msg("broker matching done")
	if err := p.Recorder.RecordHits(tradeDate, s.Hits); err != nil {
		log.Error().Err(err).Msg("record hits")
	}

	msg := &notifier.Message{
		From:    p.From,
		To:      p.To,
		Subject: notifier.FormatSubject(p.SubjectPrefix, tradeDate),
		HTML:    notifier.FormatSummary(s),
	}
	if err := p.Mailer.Send(ctx, msg); err != nil {
		return p.finish(log, s, fmt.Errorf("send email via %s: %w", p.Mailer.Name(), err))
	}
	s.Emailed = true
	log.Info().Str("mailer", p.Mailer.Name()).Strs("to", p.To).Msg("email sent")

	return p.finish(log, s, nil)
}

func (p *Pipeline) collectListings(ctx context.Context, log zerolog.Logger, s *model.RunSummary) {
	for _, src := range p.Sources {
		out := model.SourceOutcome{Market: src.Market}
		rows, err := p.fetchListing(ctx, src, s.TradeDate)
		switch {
		case err != nil:
			out.Status, out.Err = model.SourceSkipped, err
			log.Warn().Err(err).Str("market", string(src.Market)).Str("url", src.URL).Msg("limit-up source skipped")
		case len(rows) == 0:
			out.Status = model.SourceEmpty
		default:
			out.Status, out.Count = model.SourceOK, len(rows)
			s.LimitUps = append(s.LimitUps, rows...)
		}
		s.Sources = append(s.Sources, out)
	}
}

func (p *Pipeline) fetchListing(ctx context.Context, src config.ListingSource, tradeDate string) ([]model.LimitUpRow, error) {
	tables, err := p.Fetcher.FetchListing(ctx, src)
	if errors.Is(err, table.ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cands, err := screener.ParseListing(tables, src.URL)
	if err != nil {
		return nil, err
	}
	return screener.FilterLimitUps(cands, src.Market, tradeDate, p.Threshold), nil
}

// matchBrokers looks up every limit-up stock in listing order. Per-stock
// failures are recorded and skipped. Only context cancellation aborts.
func (p *Pipeline) matchBrokers(ctx context.Context, log zerolog.Logger, s *model.RunSummary) error {
	sourceDown := false
	for _, row := range s.LimitUps {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := model.StockOutcome{Symbol: row.Symbol}
		if sourceDown {
			out.Status, out.Err = model.StockSkipped, collector.ErrBreakerOpen
			s.Stocks = append(s.Stocks, out)
			continue
		}

		tables, err := p.Fetcher.FetchBrokerDetail(ctx, row.Symbol, s.TradeDate)
		var brokers []model.BrokerRow
		if err == nil {
			brokers, err = screener.ParseBrokers(tables, row.Symbol)
		}
		if errors.Is(err, table.ErrNoData) {
			out.Status = model.StockNoData
			s.Stocks = append(s.Stocks, out)
			continue
		}
		if err != nil {
			if errors.Is(err, collector.ErrBreakerOpen) {
				sourceDown = true
				log.Error().Err(err).Msg("broker source down, skipping remaining stocks")
			} else {
				log.Warn().Err(err).Str("symbol", row.Symbol).Msg("broker lookup skipped")
			}
			out.Status, out.Err = model.StockSkipped, err
			s.Stocks = append(s.Stocks, out)
			continue
		}

		top, ok := screener.TopBuyer(brokers)
		if !ok {
			out.Status = model.StockNoData
			s.Stocks = append(s.Stocks, out)
			continue
		}
		out.TopBuyer = top.BrokerName

		matched, target := screener.Match(top.BrokerName, top.BrokerCode, p.Targets, top.BuyRatio)
		if !matched {
			out.Status = model.StockMiss
			s.Stocks = append(s.Stocks, out)
			continue
		}
		code := top.BrokerCode
		if code == "" {
			code = target.Code
		}
		s.Hits = append(s.Hits, model.BrokerHit{
			TradeDate:  s.TradeDate,
			Symbol:     row.Symbol,
			Name:       row.Name,
			Market:     row.Market,
			Close:      row.Close,
			Volume:     row.Volume,
			PctChange:  row.PctChange,
			BrokerName: top.BrokerName,
			BrokerCode: code,
			BuyVolume:  top.BuyVolume,
		})
		out.Status = model.StockHit
		s.Stocks = append(s.Stocks, out)
		log.Info().Str("symbol", row.Symbol).Str("broker", top.BrokerName).Msg("hit")
	}
	return nil
}

// finish stamps the summary and writes run history and metrics. Failures
// here are logged; they never mask runErr.
func (p *Pipeline) finish(log zerolog.Logger, s *model.RunSummary, runErr error) (*model.RunSummary, error) {
	s.FinishedAt = p.now()
	if err := p.Recorder.RecordRun(s); err != nil {
		log.Error().Err(err).Msg("record run")
	}
	if p.Metrics != nil {
		p.Metrics.Observe(s)
		if p.MetricsFile != "" {
			if err := p.Metrics.WriteTextfile(p.MetricsFile); err != nil {
				log.Error().Err(err).Msg("write metrics")
			}
		}
	}

	ev := log.Info()
	if runErr != nil {
		ev = log.Error().Err(runErr)
	}
	ev.Int("limitups", len(s.LimitUps)).
		Int("hits", len(s.Hits)).
		Int("skipped_stocks", s.CountStocks(model.StockSkipped)).
		Bool("emailed", s.Emailed).
		Dur("elapsed", s.FinishedAt.Sub(s.StartedAt)).
		Msg("run finished")
	return s, runErr
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func countSources(s *model.RunSummary, status model.SourceStatus) int {
	n := 0
	for _, o := range s.Sources {
		if o.Status == status {
			n++
		}
	}
	return n
}
