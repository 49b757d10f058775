// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/models"
)

const expiryLayout = "2006-01-02"

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Scanner workers read concurrently while ingest writes
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- OHLCV bars per symbol and timeframe
	CREATE TABLE IF NOT EXISTS price_bars (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- Underlyings known to the engine
	CREATE TABLE IF NOT EXISTS instruments (
		symbol TEXT PRIMARY KEY,
		exchange TEXT NOT NULL,
		is_index INTEGER DEFAULT 0,
		lot_size INTEGER DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Option chain captures, one row per symbol, expiry and capture time
	CREATE TABLE IF NOT EXISTS chain_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		expiry TEXT NOT NULL,
		captured_at DATETIME NOT NULL,
		spot_price REAL,
		pcr REAL,
		max_pain REAL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, expiry, captured_at)
	);

	-- Near-month futures captures
	CREATE TABLE IF NOT EXISTS futures_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		expiry TEXT NOT NULL,
		captured_at DATETIME NOT NULL,
		ltp REAL NOT NULL,
		oi INTEGER,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, captured_at)
	);

	-- Scored cycles
	CREATE TABLE IF NOT EXISTS signal_journal (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		mode TEXT NOT NULL,
		class TEXT NOT NULL,
		cycle_at DATETIME NOT NULL,
		total_score REAL DEFAULT 0,
		priority INTEGER DEFAULT 0,
		alignment TEXT,
		notify INTEGER DEFAULT 0,
		score TEXT,
		signals TEXT,
		failures TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Sync status table
	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_price_bars_symbol_tf ON price_bars(symbol, timeframe, timestamp);
	CREATE INDEX IF NOT EXISTS idx_chain_symbol_expiry ON chain_snapshots(symbol, expiry, captured_at);
	CREATE INDEX IF NOT EXISTS idx_futures_symbol ON futures_snapshots(symbol, captured_at);
	CREATE INDEX IF NOT EXISTS idx_journal_symbol ON signal_journal(symbol, cycle_at);
	CREATE INDEX IF NOT EXISTS idx_journal_priority ON signal_journal(priority);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Price Bar Methods
// ============================================================================

// SaveCandles saves candles to the database.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO price_bars (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles between from and to, oldest first.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM price_bars
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, timeframe, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// GetCandlesFreshness returns the timestamp of the most recent candle.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	var timestamp sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM price_bars WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&timestamp)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	if !timestamp.Valid {
		return time.Time{}, nil
	}
	return timestamp.Time, nil
}

// ============================================================================
// Instrument Methods
// ============================================================================

// SaveInstrument inserts or updates an underlying.
func (s *SQLiteStore) SaveInstrument(ctx context.Context, inst models.Instrument) error {
	isIndex := 0
	if inst.IsIndex {
		isIndex = 1
	}
	exchange := inst.Exchange
	if exchange == "" {
		exchange = models.NSE
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO instruments (symbol, exchange, is_index, lot_size, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, inst.Symbol, string(exchange), isIndex, inst.LotSize, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save instrument: %w", err)
	}
	return nil
}

// GetInstrument returns the instrument for symbol, or nil when unknown.
func (s *SQLiteStore) GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error) {
	var inst models.Instrument
	var exchange string
	var isIndex int
	err := s.db.QueryRowContext(ctx, `
		SELECT symbol, exchange, is_index, lot_size FROM instruments WHERE symbol = ?
	`, symbol).Scan(&inst.Symbol, &exchange, &isIndex, &inst.LotSize)
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	inst.Exchange = models.Exchange(exchange)
	inst.IsIndex = isIndex == 1
	return &inst, nil
}

// Symbols lists every known underlying, alphabetically.
func (s *SQLiteStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM instruments ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

// ============================================================================
// Option Chain Methods
// ============================================================================

// SaveChainSnapshot stores one chain capture. A capture with the same symbol,
// expiry and time replaces the earlier one.
func (s *SQLiteStore) SaveChainSnapshot(ctx context.Context, snap *models.ChainSnapshot) error {
	if snap == nil {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode chain snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO chain_snapshots (symbol, expiry, captured_at, spot_price, pcr, max_pain, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.Symbol, snap.ExpiryKey(), snap.CapturedAt.UTC(), snap.SpotPrice, snap.EffectivePCR(), snap.EffectiveMaxPain(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to save chain snapshot: %w", err)
	}
	return nil
}

// GetChainSnapshots returns the captures of one expiry between from and to,
// oldest first.
func (s *SQLiteStore) GetChainSnapshots(ctx context.Context, symbol string, expiry, from, to time.Time) ([]models.ChainSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM chain_snapshots
		WHERE symbol = ? AND expiry = ? AND captured_at >= ? AND captured_at <= ?
		ORDER BY captured_at ASC
	`, symbol, expiry.Format(expiryLayout), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query chain snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.ChainSnapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan chain snapshot: %w", err)
		}
		var snap models.ChainSnapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("failed to decode chain snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	return snaps, rows.Err()
}

// LatestExpiries lists the expiries not yet past at asOf that have at least
// one capture taken by asOf, nearest first.
func (s *SQLiteStore) LatestExpiries(ctx context.Context, symbol string, asOf time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT expiry FROM chain_snapshots
		WHERE symbol = ? AND expiry >= ? AND captured_at <= ?
		ORDER BY expiry ASC
	`, symbol, asOf.Format(expiryLayout), asOf.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query expiries: %w", err)
	}
	defer rows.Close()

	var expiries []time.Time
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan expiry: %w", err)
		}
		expiry, err := time.Parse(expiryLayout, key)
		if err != nil {
			return nil, fmt.Errorf("invalid stored expiry %q: %w", key, err)
		}
		expiries = append(expiries, expiry)
	}

	return expiries, rows.Err()
}

// ============================================================================
// Futures Methods
// ============================================================================

// SaveFuturesSnapshot stores one futures capture.
func (s *SQLiteStore) SaveFuturesSnapshot(ctx context.Context, snap *models.FuturesSnapshot) error {
	if snap == nil {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode futures snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO futures_snapshots (symbol, expiry, captured_at, ltp, oi, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.Symbol, snap.Expiry.Format(expiryLayout), snap.CapturedAt.UTC(), snap.LTP, snap.OI, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save futures snapshot: %w", err)
	}
	return nil
}

// LatestFutures returns the newest capture taken by asOf, or nil when none
// exists.
func (s *SQLiteStore) LatestFutures(ctx context.Context, symbol string, asOf time.Time) (*models.FuturesSnapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM futures_snapshots
		WHERE symbol = ? AND captured_at <= ?
		ORDER BY captured_at DESC LIMIT 1
	`, symbol, asOf.UTC()).Scan(&payload)
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get futures snapshot: %w", err)
	}

	var snap models.FuturesSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode futures snapshot: %w", err)
	}
	return &snap, nil
}

// ============================================================================
// Signal Journal Methods
// ============================================================================

// JournalDecision writes a scored cycle to the journal.
func (s *SQLiteStore) JournalDecision(ctx context.Context, entry *JournalEntry) error {
	score, err := json.Marshal(entry.Score)
	if err != nil {
		return fmt.Errorf("failed to encode score: %w", err)
	}
	failures, _ := json.Marshal(entry.Failures)

	var total float64
	var alignment analysis.Alignment
	if entry.Score != nil {
		total = entry.Score.TotalScore
		alignment = entry.Score.Alignment
	}
	notify := 0
	if entry.Notify {
		notify = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO signal_journal
			(id, symbol, mode, class, cycle_at, total_score, priority, alignment, notify, score, signals, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Symbol, string(entry.Mode), string(entry.Class), entry.CycleAt.UTC(),
		total, int(entry.Priority()), string(alignment), notify, string(score), string(entry.Signals), string(failures))
	if err != nil {
		return fmt.Errorf("failed to save journal entry: %w", err)
	}
	return nil
}

// GetJournal retrieves journal entries, newest first.
func (s *SQLiteStore) GetJournal(ctx context.Context, filter JournalFilter) ([]JournalEntry, error) {
	query := "SELECT id, symbol, mode, class, cycle_at, notify, score, signals, failures FROM signal_journal WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Mode != "" {
		query += " AND mode = ?"
		args = append(args, string(filter.Mode))
	}
	if !filter.StartDate.IsZero() {
		query += " AND cycle_at >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND cycle_at <= ?"
		args = append(args, filter.EndDate.UTC())
	}
	if filter.MinPriority > analysis.PriorityNone {
		query += " AND priority >= ?"
		args = append(args, int(filter.MinPriority))
	}
	if filter.NotifyOnly {
		query += " AND notify = 1"
	}

	query += " ORDER BY cycle_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var mode, class string
		var notify int
		var scoreJSON, signalsJSON, failuresJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.Symbol, &mode, &class, &e.CycleAt, &notify, &scoreJSON, &signalsJSON, &failuresJSON); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Mode = analysis.Mode(mode)
		e.Class = analysis.InstrumentClass(class)
		e.Notify = notify == 1
		if scoreJSON.Valid && scoreJSON.String != "null" {
			var score analysis.ScoreResult
			if err := json.Unmarshal([]byte(scoreJSON.String), &score); err != nil {
				return nil, fmt.Errorf("failed to decode score: %w", err)
			}
			e.Score = &score
		}
		if signalsJSON.Valid && signalsJSON.String != "" {
			e.Signals = json.RawMessage(signalsJSON.String)
		}
		if failuresJSON.Valid {
			json.Unmarshal([]byte(failuresJSON.String), &e.Failures)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// ============================================================================
// Sync Status Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}
