package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"LimitUpWatch/internal/model"
)

// utf8BOM lets Excel open the files as UTF-8.
const utf8BOM = "\ufeff"

var (
	limitUpHeader = []string{"trade_date", "code", "stock_name", "market", "close", "volume", "pct_change"}
	hitHeader     = []string{"trade_date", "stock_name", "code", "market", "close", "volume", "pct_change", "broker_name", "broker_code", "buy_volume"}
)

// CSVRecorder writes one snapshot file per trade date and kind. Re-running a
// date overwrites its files.
type CSVRecorder struct {
	dir string
}

// NewCSVRecorder creates dir if needed.
func NewCSVRecorder(dir string) (*CSVRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &CSVRecorder{dir: dir}, nil
}

// LimitUpPath returns the limit-up snapshot path for tradeDate.
func (c *CSVRecorder) LimitUpPath(tradeDate string) string {
	return filepath.Join(c.dir, "limitup_"+tradeDate+".csv")
}

// HitsPath returns the broker-hit snapshot path for tradeDate.
func (c *CSVRecorder) HitsPath(tradeDate string) string {
	return filepath.Join(c.dir, "broker_hits_"+tradeDate+".csv")
}

// RecordLimitUps always writes the file, header only when rows is empty.
func (c *CSVRecorder) RecordLimitUps(tradeDate string, rows []model.LimitUpRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.TradeDate, r.Symbol, r.Name, string(r.Market),
			formatFloat(r.Close), formatFloat(r.Volume), strconv.FormatFloat(r.PctChange, 'f', -1, 64),
		})
	}
	return writeCSVAtomic(c.LimitUpPath(tradeDate), limitUpHeader, records)
}

// RecordHits writes the file only when there is at least one hit. Without
// hits, a file left by an earlier run of the same date is removed.
func (c *CSVRecorder) RecordHits(tradeDate string, hits []model.BrokerHit) error {
	if len(hits) == 0 {
		if err := os.Remove(c.HitsPath(tradeDate)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale hits: %w", err)
		}
		return nil
	}
	records := make([][]string, 0, len(hits))
	for _, h := range hits {
		records = append(records, []string{
			h.TradeDate, h.Name, h.Symbol, string(h.Market),
			formatFloat(h.Close), formatFloat(h.Volume), strconv.FormatFloat(h.PctChange, 'f', -1, 64),
			h.BrokerName, h.BrokerCode, strconv.FormatFloat(h.BuyVolume, 'f', -1, 64),
		})
	}
	return writeCSVAtomic(c.HitsPath(tradeDate), hitHeader, records)
}

func (c *CSVRecorder) RecordRun(_ *model.RunSummary) error { return nil }
func (c *CSVRecorder) Close() error                        { return nil }

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// writeCSVAtomic writes to a temp file in the same directory and renames it
// over path, so readers never see a half-written snapshot.
func writeCSVAtomic(path string, header []string, records [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}

	if _, err := tmp.WriteString(utf8BOM); err != nil {
		return fail(err)
	}
	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		return fail(err)
	}
	if err := w.WriteAll(records); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
