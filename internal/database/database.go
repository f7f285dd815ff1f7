package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Action values stored in the actions table
const (
	ActionMove       = "MOVE"
	ActionDeleteFile = "DELETE_FILE"
	ActionDeleteDir  = "DELETE_DIR"
	ActionPruneDir   = "PRUNE_DIR"
	ActionError      = "ERROR"
)

// Object types stored in the actions table
const (
	ObjectFile      = "file"
	ObjectDirectory = "directory"
	ObjectSymlink   = "symlink"
)

// ActionDB manages the SQLite database for sanitise action history
type ActionDB struct {
	db *sql.DB
}

// ActionRecord represents a single filesystem mutation made by a run
type ActionRecord struct {
	ID           int64
	Timestamp    time.Time
	RunID        string
	Action       string
	Phase        string
	Path         string
	Destination  string // MOVE only
	ObjectType   string
	Size         int64
	ErrorMessage string
	CreatedAt    time.Time
}

// NewActionDB creates a new database connection and initializes schema
func NewActionDB(dbPath string) (*ActionDB, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// file: prefix with _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// A real statement forces SQLite to create the file
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	// WAL lets the query tool read while a run is writing
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	adb := &ActionDB{db: db}
	if err = adb.initSchema(); err != nil {
		return nil, err
	}

	return adb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *ActionDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		run_id TEXT NOT NULL,
		action TEXT NOT NULL,
		phase TEXT NOT NULL,
		path TEXT NOT NULL,
		destination TEXT,
		object_type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON actions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_run_id ON actions(run_id);
	CREATE INDEX IF NOT EXISTS idx_action ON actions(action);
	CREATE INDEX IF NOT EXISTS idx_path ON actions(path);

	-- Metadata table for schema versioning
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// RecordAction inserts one action into the database. A zero Timestamp
// is replaced with the current time.
func (d *ActionDB) RecordAction(rec ActionRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	query := `
	INSERT INTO actions (
		timestamp, run_id, action, phase, path, destination,
		object_type, size, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(
		query,
		rec.Timestamp,
		rec.RunID,
		rec.Action,
		rec.Phase,
		rec.Path,
		nullString(rec.Destination),
		rec.ObjectType,
		rec.Size,
		nullString(rec.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("record %s %s: %w", rec.Action, rec.Path, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close closes the database connection
func (d *ActionDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *ActionDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns database statistics
func (d *ActionDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRecords int64
	err := d.db.QueryRow("SELECT COUNT(*) FROM actions").Scan(&totalRecords)
	if err != nil {
		return nil, err
	}
	stats["total_records"] = totalRecords

	var totalRuns int64
	err = d.db.QueryRow("SELECT COUNT(DISTINCT run_id) FROM actions").Scan(&totalRuns)
	if err != nil {
		return nil, err
	}
	stats["total_runs"] = totalRuns

	var pageCount, pageSize int64
	err = d.db.QueryRow("PRAGMA page_count").Scan(&pageCount)
	if err != nil {
		return nil, err
	}
	err = d.db.QueryRow("PRAGMA page_size").Scan(&pageSize)
	if err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	// MIN/MAX lose the DATETIME column type, so the driver hands back text
	var oldest, newest sql.NullString
	err = d.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM actions").Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if t, ok := parseTimestamp(oldest); ok {
		stats["oldest_record"] = t
	}
	if t, ok := parseTimestamp(newest); ok {
		stats["newest_record"] = t
	}

	return stats, nil
}

// timestampLayouts are the forms SQLite hands back for stored time.Time
// values, e.g. "2025-11-19 23:01:56.489344855-05:00"
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseTimestamp(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
