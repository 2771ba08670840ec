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

	"github.com/nao1215/ringscan/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "ringscan.db"

// timestampLayout is fixed-width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryDB stores replay reports and their capture attempts.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file. Foreign keys are enabled
	// per connection so attempts cascade with their replay.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

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

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per replayed trace
	CREATE TABLE IF NOT EXISTS replays (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		replay_id TEXT NOT NULL UNIQUE,
		trace_name TEXT NOT NULL,
		trace_path TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		total_photos INTEGER NOT NULL DEFAULT 0,
		unique_angles INTEGER NOT NULL DEFAULT 0,
		complete INTEGER NOT NULL DEFAULT 0,
		coverage_level TEXT,
		mismatches INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_replays_trace ON replays(trace_name);
	CREATE INDEX IF NOT EXISTS idx_replays_timestamp ON replays(timestamp);

	-- Capture attempts in replay order
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		replay INTEGER NOT NULL REFERENCES replays(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		event INTEGER NOT NULL,
		ring TEXT,
		slot INTEGER,
		focus TEXT,
		accepted INTEGER NOT NULL,
		reason TEXT,
		token TEXT,
		UNIQUE(replay, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_replay ON attempts(replay);
	CREATE INDEX IF NOT EXISTS idx_attempts_reason ON attempts(reason);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReplay stores a replay report and its attempts in one transaction.
// It returns the database ID of the replay row.
func (h *HistoryDB) SaveReplay(ctx context.Context, report *model.ReplayReport) (id int64, err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	var total, unique int
	var complete bool
	level := ""
	if report.Final != nil {
		total = report.Final.TotalPhotosTaken
		unique = report.Final.UniqueAnglesTaken
		complete = report.Final.Complete
	}
	if report.Coverage != nil {
		level = report.Coverage.LevelText
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO replays (replay_id, trace_name, trace_path, timestamp, total_photos, unique_angles, complete, coverage_level, mismatches, failed, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.TraceName,
		report.TracePath,
		report.DateReplayed.UTC().Format(timestampLayout),
		total,
		unique,
		complete,
		level,
		len(report.Mismatches),
		report.Failed(),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save replay: %w", err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read replay id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO attempts (replay, seq, event, ring, slot, focus, accepted, reason, token)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare attempt insert: %w", err)
	}
	defer stmt.Close()

	for seq, a := range report.Attempts {
		if _, err = stmt.ExecContext(ctx, id, seq, a.Event, a.Ring, a.Slot, a.Focus, a.Accepted, a.Reason, a.Token); err != nil {
			return 0, fmt.Errorf("failed to save attempt %d: %w", seq, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit replay: %w", err)
	}
	return id, nil
}

// ListTraces returns the names of all traces with stored replays.
func (h *HistoryDB) ListTraces(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT trace_name FROM replays ORDER BY trace_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan trace name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ReplayMetadata is the summary row of a stored replay.
type ReplayMetadata struct {
	ID            int64     `json:"id"`
	ReplayID      string    `json:"replay_id"`
	TraceName     string    `json:"trace_name"`
	TracePath     string    `json:"trace_path"`
	Timestamp     time.Time `json:"timestamp"`
	TotalPhotos   int       `json:"total_photos"`
	UniqueAngles  int       `json:"unique_angles"`
	Complete      bool      `json:"complete"`
	CoverageLevel string    `json:"coverage_level"`
	Mismatches    int       `json:"mismatches"`
	Failed        bool      `json:"failed"`
}

// GetReplayHistory returns replay summaries, newest first. An empty
// traceName lists every trace.
func (h *HistoryDB) GetReplayHistory(ctx context.Context, traceName string) ([]ReplayMetadata, error) {
	query := `
	SELECT id, replay_id, trace_name, trace_path, timestamp, total_photos, unique_angles, complete, coverage_level, mismatches, failed
	FROM replays
	WHERE 1=1
	`
	args := make([]any, 0)
	if traceName != "" {
		query += " AND trace_name = ?"
		args = append(args, traceName)
	}
	query += " ORDER BY timestamp DESC, id DESC"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get replay history: %w", err)
	}
	defer rows.Close()

	var results []ReplayMetadata
	for rows.Next() {
		var meta ReplayMetadata
		var timestamp string
		var level sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.ReplayID,
			&meta.TraceName,
			&meta.TracePath,
			&timestamp,
			&meta.TotalPhotos,
			&meta.UniqueAngles,
			&meta.Complete,
			&level,
			&meta.Mismatches,
			&meta.Failed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan replay metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		meta.CoverageLevel = level.String
		results = append(results, meta)
	}
	return results, rows.Err()
}

// GetReplayByID returns the stored report with database ID id, or nil when
// there is none.
func (h *HistoryDB) GetReplayByID(ctx context.Context, id int64) (*model.ReplayReport, error) {
	return h.queryReport(ctx, `SELECT report_json FROM replays WHERE id = ?`, id)
}

// GetLatestReplay returns the newest stored report of a trace, or nil when
// the trace has never been replayed.
func (h *HistoryDB) GetLatestReplay(ctx context.Context, traceName string) (*model.ReplayReport, error) {
	return h.queryReport(ctx, `
	SELECT report_json FROM replays
	WHERE trace_name = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`, traceName)
}

func (h *HistoryDB) queryReport(ctx context.Context, query string, args ...any) (*model.ReplayReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get replay: %w", err)
	}

	var report model.ReplayReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// RejectionCounts returns how often each rejection reason occurred across
// all replays of a trace. An empty traceName counts every trace.
func (h *HistoryDB) RejectionCounts(ctx context.Context, traceName string) (map[string]int, error) {
	query := `
	SELECT a.reason, COUNT(*)
	FROM attempts a JOIN replays r ON a.replay = r.id
	WHERE a.accepted = 0
	`
	args := make([]any, 0)
	if traceName != "" {
		query += " AND r.trace_name = ?"
		args = append(args, traceName)
	}
	query += " GROUP BY a.reason"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count rejections: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rejection count: %w", err)
		}
		counts[reason] = n
	}
	return counts, rows.Err()
}

// DeleteReplay removes a replay and its attempts. It reports whether a row
// was deleted.
func (h *HistoryDB) DeleteReplay(ctx context.Context, id int64) (bool, error) {
	result, err := h.db.ExecContext(ctx, `DELETE FROM replays WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete replay: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
