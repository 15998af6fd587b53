package recorder

import (
	"errors"

	"LimitUpWatch/internal/model"
)

// Recorder persists run output for later analysis.
type Recorder interface {
	RecordLimitUps(tradeDate string, rows []model.LimitUpRow) error
	RecordHits(tradeDate string, hits []model.BrokerHit) error
	RecordRun(s *model.RunSummary) error
	Close() error
}

// Multi fans every call out to all recorders. One failing recorder does not
// stop the others; their errors are joined.
type Multi []Recorder

func (m Multi) RecordLimitUps(tradeDate string, rows []model.LimitUpRow) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordLimitUps(tradeDate, rows))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordHits(tradeDate string, hits []model.BrokerHit) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordHits(tradeDate, hits))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordRun(s *model.RunSummary) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordRun(s))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
