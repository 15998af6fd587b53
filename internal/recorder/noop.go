package recorder

import "LimitUpWatch/internal/model"

// NoopRecorder is used when --dry-run skips persistence.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordLimitUps(_ string, _ []model.LimitUpRow) error { return nil }
func (n *NoopRecorder) RecordHits(_ string, _ []model.BrokerHit) error      { return nil }
func (n *NoopRecorder) RecordRun(_ *model.RunSummary) error                 { return nil }
func (n *NoopRecorder) Close() error                                        { return nil }
