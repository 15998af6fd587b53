package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"LimitUpWatch/internal/collector"
	"LimitUpWatch/internal/config"
	"LimitUpWatch/internal/logger"
	"LimitUpWatch/internal/notifier"
	"LimitUpWatch/internal/pipeline"
	"LimitUpWatch/internal/recorder"
)

// app is everything a subcommand needs, built from the flags.
type app struct {
	cfg      *config.Settings
	log      zerolog.Logger
	pipeline *pipeline.Pipeline
	rec      recorder.Recorder
}

// newApp loads and validates configuration before any network access.
func newApp() (*app, error) {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	log.Info().Str("settings", settingsPath).Str("version", version).Msg("limitup-watch starting")

	brokers, err := config.LoadBrokers(brokersPath)
	if err != nil {
		return nil, err
	}
	if len(brokers.Targets) == 0 {
		log.Warn().Str("brokers", brokersPath).Msg("broker watchlist is empty, no stock can match")
	}

	var (
		mailer notifier.Mailer
		from   string
		to     []string
	)
	if dryRun {
		mailer = &notifier.DryRunMailer{Log: log}
		cred, _ := config.CredentialsFromEnv()
		from, to = notifier.SenderAddress(cfg.Email, cred), cred.To
	} else {
		cred, err := config.CredentialsFromEnv()
		if err != nil {
			return nil, err
		}
		if mailer, err = notifier.New(cfg.Email, cred); err != nil {
			return nil, err
		}
		from, to = notifier.SenderAddress(cfg.Email, cred), cred.To
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if !dryRun {
		if rec, err = newRecorder(cfg, log); err != nil {
			return nil, err
		}
	}

	fetcher := collector.NewClient(cfg, log)
	log.Info().Str("fetcher", fetcher.Name()).Str("mailer", mailer.Name()).Int("targets", len(brokers.Targets)).Msg("components ready")

	p := pipeline.New(cfg, brokers, fetcher, mailer, rec, log)
	p.From, p.To = from, to
	return &app{cfg: cfg, log: log, pipeline: p, rec: rec}, nil
}

// newRecorder always writes CSV snapshots and adds SQLite history when a
// path is configured. A broken database degrades to CSV only.
func newRecorder(cfg *config.Settings, log zerolog.Logger) (recorder.Recorder, error) {
	csvRec, err := recorder.NewCSVRecorder(cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("init csv recorder: %w", err)
	}
	recs := recorder.Multi{csvRec}
	if cfg.Output.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Output.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, csv only")
		} else {
			recs = append(recs, sr)
		}
	}
	return recs, nil
}

func (a *app) close() {
	if err := a.rec.Close(); err != nil {
		a.log.Error().Err(err).Msg("close recorder")
	}
}
