package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/citawatch/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "citawatch.db"

// timestampLayout is fixed-width so that timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryDB stores observations in SQLite.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and the database file.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the
	// watch loop.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// createTables creates the schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id TEXT NOT NULL,
		target TEXT NOT NULL,
		outcome TEXT NOT NULL,
		labels TEXT NOT NULL DEFAULT '[]',
		signature TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		proxy TEXT NOT NULL DEFAULT 'direct',
		probable_block INTEGER NOT NULL DEFAULT 0,
		notified INTEGER NOT NULL DEFAULT 0,
		action TEXT NOT NULL DEFAULT 'none',
		reason TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		text_chars INTEGER NOT NULL DEFAULT 0,
		markup_chars INTEGER NOT NULL DEFAULT 0,
		date_label TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_obs_target ON observations(target);
	CREATE INDEX IF NOT EXISTS idx_obs_timestamp ON observations(timestamp);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// Observation is one stored target check.
type Observation struct {
	ID            int64         `json:"id"`
	AttemptID     string        `json:"attemptId"`
	Target        string        `json:"target"`
	Outcome       model.Outcome `json:"outcome"`
	Labels        []string      `json:"labels"`
	Signature     string        `json:"signature,omitempty"`
	Attempts      int           `json:"attempts"`
	Proxy         string        `json:"proxy"`
	ProbableBlock bool          `json:"probableBlock"`
	Notified      bool          `json:"notified"`
	Action        string        `json:"action"`
	Reason        string        `json:"reason,omitempty"`
	Error         string        `json:"error,omitempty"`
	TextChars     int           `json:"textChars"`
	MarkupChars   int           `json:"markupChars"`
	DateLabel     string        `json:"dateLabel,omitempty"`
	URL           string        `json:"url,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// SaveObservation inserts o and returns its row ID. A zero timestamp is
// replaced by the current time; an empty proxy is stored as "direct".
func (h *HistoryDB) SaveObservation(ctx context.Context, o *Observation) (int64, error) {
	labels := o.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize labels: %w", err)
	}
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	proxy := o.Proxy
	if proxy == "" {
		proxy = "direct"
	}
	action := o.Action
	if action == "" {
		action = "none"
	}

	query := `
	INSERT INTO observations (
		attempt_id, target, outcome, labels, signature, attempts, proxy,
		probable_block, notified, action, reason, error, text_chars,
		markup_chars, date_label, url, timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := h.db.ExecContext(ctx, query,
		o.AttemptID,
		o.Target,
		o.Outcome.String(),
		string(labelsJSON),
		o.Signature,
		o.Attempts,
		proxy,
		o.ProbableBlock,
		o.Notified,
		action,
		o.Reason,
		o.Error,
		o.TextChars,
		o.MarkupChars,
		o.DateLabel,
		o.URL,
		ts.UTC().Format(timestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert observation: %w", err)
	}
	return result.LastInsertId()
}

// selectColumns lists the observation columns in scan order.
const selectColumns = `
	id, attempt_id, target, outcome, labels, signature, attempts, proxy,
	probable_block, notified, action, reason, error, text_chars,
	markup_chars, date_label, url, timestamp`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanObservation reads one row in selectColumns order.
func scanObservation(row rowScanner) (Observation, error) {
	var (
		o          Observation
		outcome    string
		labelsJSON string
		timestamp  string
	)
	err := row.Scan(
		&o.ID,
		&o.AttemptID,
		&o.Target,
		&outcome,
		&labelsJSON,
		&o.Signature,
		&o.Attempts,
		&o.Proxy,
		&o.ProbableBlock,
		&o.Notified,
		&o.Action,
		&o.Reason,
		&o.Error,
		&o.TextChars,
		&o.MarkupChars,
		&o.DateLabel,
		&o.URL,
		&timestamp,
	)
	if err != nil {
		return Observation{}, err
	}

	if o.Outcome, err = model.ParseOutcome(outcome); err != nil {
		return Observation{}, err
	}
	if err := json.Unmarshal([]byte(labelsJSON), &o.Labels); err != nil {
		return Observation{}, fmt.Errorf("failed to parse labels: %w", err)
	}
	o.Timestamp = parseTimestamp(timestamp)
	return o, nil
}

// GetHistory returns up to limit observations of target, newest first.
// An empty target returns every target; a limit of zero or less means all.
func (h *HistoryDB) GetHistory(ctx context.Context, target string, limit int) ([]Observation, error) {
	query := `SELECT` + selectColumns + ` FROM observations WHERE 1=1`
	args := make([]any, 0, 2)

	if target != "" {
		query += " AND target = ?"
		args = append(args, target)
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var results []Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		results = append(results, o)
	}
	return results, rows.Err()
}

// LatestObservation returns the newest observation of target, or nil when
// there is none.
func (h *HistoryDB) LatestObservation(ctx context.Context, target string) (*Observation, error) {
	query := `SELECT` + selectColumns + `
	FROM observations
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1`

	o, err := scanObservation(h.db.QueryRowContext(ctx, query, target))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest observation: %w", err)
	}
	return &o, nil
}

// ListTargets returns the names of all targets with history.
func (h *HistoryDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT target FROM observations ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, name)
	}
	return targets, rows.Err()
}

// OutcomeCounts returns the number of observations per outcome. An empty
// target counts every target. Every outcome is present in the map.
func (h *HistoryDB) OutcomeCounts(ctx context.Context, target string) (map[model.Outcome]int, error) {
	query := `SELECT outcome, COUNT(*) FROM observations`
	var args []any
	if target != "" {
		query += " WHERE target = ?"
		args = append(args, target)
	}
	query += " GROUP BY outcome"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Outcome]int, len(model.AllOutcomes()))
	for _, o := range model.AllOutcomes() {
		counts[o] = 0
	}
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		o, err := model.ParseOutcome(name)
		if err != nil {
			return nil, err
		}
		counts[o] = n
	}
	return counts, rows.Err()
}

// timestampFormats are the layouts SQLite or older rows may use.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses s with the known layouts, returning zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
