package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"LimitUpWatch/internal/model"
)

// SQLiteRecorder keeps run history in a SQLite database. Each trade date's
// limit-ups and hits replace the previous snapshot for that date.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id          TEXT PRIMARY KEY,
			trade_date      TEXT NOT NULL,
			started_at      INTEGER NOT NULL,
			finished_at     INTEGER NOT NULL,
			limitups        INTEGER NOT NULL,
			hits            INTEGER NOT NULL,
			skipped_sources INTEGER NOT NULL,
			skipped_stocks  INTEGER NOT NULL,
			emailed         INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(trade_date)`,

		`CREATE TABLE IF NOT EXISTS limitups (
			trade_date TEXT NOT NULL,
			symbol     TEXT NOT NULL,
			name       TEXT,
			market     TEXT,
			close      REAL,
			volume     REAL,
			pct_change REAL NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (trade_date, symbol)
		)`,

		`CREATE TABLE IF NOT EXISTS broker_hits (
			trade_date  TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			name        TEXT,
			market      TEXT,
			close       REAL,
			volume      REAL,
			pct_change  REAL NOT NULL,
			broker_name TEXT NOT NULL,
			broker_code TEXT,
			buy_volume  REAL NOT NULL,
			updated_at  INTEGER NOT NULL,
			PRIMARY KEY (trade_date, symbol)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hits_broker ON broker_hits(broker_name)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordLimitUps(tradeDate string, rows []model.LimitUpRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().Unix()
	return r.replaceDay("limitups", tradeDate, func(tx *sql.Tx) error {
		for _, row := range rows {
			if _, err := tx.Exec(`INSERT INTO limitups
				(trade_date, symbol, name, market, close, volume, pct_change, updated_at)
				VALUES (?,?,?,?,?,?,?,?)
				ON CONFLICT(trade_date, symbol) DO UPDATE SET
					name=excluded.name, market=excluded.market, close=excluded.close,
					volume=excluded.volume, pct_change=excluded.pct_change, updated_at=excluded.updated_at`,
				tradeDate, row.Symbol, row.Name, string(row.Market), row.Close, row.Volume, row.PctChange, now,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRecorder) RecordHits(tradeDate string, hits []model.BrokerHit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().Unix()
	return r.replaceDay("broker_hits", tradeDate, func(tx *sql.Tx) error {
		for _, h := range hits {
			if _, err := tx.Exec(`INSERT INTO broker_hits
				(trade_date, symbol, name, market, close, volume, pct_change, broker_name, broker_code, buy_volume, updated_at)
				VALUES (?,?,?,?,?,?,?,?,?,?,?)
				ON CONFLICT(trade_date, symbol) DO UPDATE SET
					name=excluded.name, market=excluded.market, close=excluded.close, volume=excluded.volume,
					pct_change=excluded.pct_change, broker_name=excluded.broker_name,
					broker_code=excluded.broker_code, buy_volume=excluded.buy_volume, updated_at=excluded.updated_at`,
				tradeDate, h.Symbol, h.Name, string(h.Market), h.Close, h.Volume, h.PctChange,
				h.BrokerName, h.BrokerCode, h.BuyVolume, now,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// replaceDay clears tradeDate from table and runs insert in one transaction.
func (r *SQLiteRecorder) replaceDay(table, tradeDate string, insert func(*sql.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM `+table+` WHERE trade_date = ?`, tradeDate); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := insert(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordRun(s *model.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	skippedSources := 0
	for _, src := range s.Sources {
		if src.Status == model.SourceSkipped {
			skippedSources++
		}
	}
	_, err := r.db.Exec(`INSERT INTO runs
		(run_id, trade_date, started_at, finished_at, limitups, hits, skipped_sources, skipped_stocks, emailed)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		s.RunID, s.TradeDate, s.StartedAt.Unix(), s.FinishedAt.Unix(),
		len(s.LimitUps), len(s.Hits), skippedSources, s.CountStocks(model.StockSkipped), s.Emailed,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
