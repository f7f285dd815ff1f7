package database

import (
	"database/sql"
	"time"
)

const selectActions = `
	SELECT id, timestamp, run_id, action, phase, path, destination,
	       object_type, size, error_message, created_at
	FROM actions
`

// GetRecentActions returns the N most recent actions
func (d *ActionDB) GetRecentActions(limit int) ([]ActionRecord, error) {
	return d.queryActions(selectActions+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetActionsByDateRange returns actions within a time range
func (d *ActionDB) GetActionsByDateRange(start, end time.Time) ([]ActionRecord, error) {
	return d.queryActions(selectActions+`
	WHERE timestamp BETWEEN ? AND ?
	ORDER BY timestamp DESC, id DESC
	`, start, end)
}

// GetActionsByType returns actions filtered by action type
func (d *ActionDB) GetActionsByType(action string) ([]ActionRecord, error) {
	return d.queryActions(selectActions+`
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`, action)
}

// GetActionsByPath returns actions whose source or destination matches a
// LIKE pattern
func (d *ActionDB) GetActionsByPath(pathPattern string) ([]ActionRecord, error) {
	return d.queryActions(selectActions+`
	WHERE path LIKE ? OR destination LIKE ?
	ORDER BY timestamp DESC, id DESC
	`, pathPattern, pathPattern)
}

// GetActionsByRun returns every action of one run in the order it happened
func (d *ActionDB) GetActionsByRun(runID string) ([]ActionRecord, error) {
	return d.queryActions(selectActions+`
	WHERE run_id = ?
	ORDER BY id ASC
	`, runID)
}

// GetTotalBytesMoved returns total bytes relocated in a time range
func (d *ActionDB) GetTotalBytesMoved(start, end time.Time) (int64, error) {
	query := `
	SELECT COALESCE(SUM(size), 0)
	FROM actions
	WHERE action = 'MOVE' AND timestamp BETWEEN ? AND ?
	`

	var total int64
	err := d.db.QueryRow(query, start, end).Scan(&total)
	return total, err
}

// GetActionCountByAction returns count of actions since a point in time
// grouped by action
func (d *ActionDB) GetActionCountByAction(since time.Time) (map[string]int, error) {
	query := `
	SELECT action, COUNT(*)
	FROM actions
	WHERE timestamp >= ?
	GROUP BY action
	`

	rows, err := d.db.Query(query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}

	return counts, rows.Err()
}

// ActionStats holds aggregated statistics
type ActionStats struct {
	TotalRuns       int
	TotalMoves      int
	TotalDeletions  int
	TotalPruned     int
	TotalErrors     int
	TotalBytesMoved int64
	ByAction        map[string]int
	StartDate       time.Time
	EndDate         time.Time
}

// GetActionStats returns comprehensive statistics for the last N days
func (d *ActionDB) GetActionStats(days int) (*ActionStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &ActionStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(DISTINCT run_id),
			COUNT(CASE WHEN action = 'MOVE' THEN 1 END),
			COUNT(CASE WHEN action IN ('DELETE_FILE', 'DELETE_DIR') THEN 1 END),
			COUNT(CASE WHEN action = 'PRUNE_DIR' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END)
		FROM actions
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalRuns, &stats.TotalMoves, &stats.TotalDeletions, &stats.TotalPruned, &stats.TotalErrors)
	if err != nil {
		return nil, err
	}

	stats.TotalBytesMoved, err = d.GetTotalBytesMoved(since, now)
	if err != nil {
		return nil, err
	}

	stats.ByAction, err = d.GetActionCountByAction(since)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// RunSummary describes one recorded run
type RunSummary struct {
	RunID   string
	Started time.Time
	Actions int
	Errors  int
}

// GetRecentRuns returns the N most recently started runs
func (d *ActionDB) GetRecentRuns(limit int) ([]RunSummary, error) {
	query := `
	SELECT run_id, MIN(timestamp) AS started, COUNT(*),
	       COUNT(CASE WHEN action = 'ERROR' THEN 1 END)
	FROM actions
	GROUP BY run_id
	ORDER BY started DESC
	LIMIT ?
	`

	rows, err := d.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var started sql.NullString
		if err := rows.Scan(&r.RunID, &started, &r.Actions, &r.Errors); err != nil {
			return nil, err
		}
		r.Started, _ = parseTimestamp(started)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// DeleteOldRecords removes records older than specified days
func (d *ActionDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`
		DELETE FROM actions WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// queryActions executes a query and scans the resulting rows
func (d *ActionDB) queryActions(query string, args ...interface{}) ([]ActionRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ActionRecord
	for rows.Next() {
		var r ActionRecord
		var dest, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.RunID, &r.Action, &r.Phase, &r.Path,
			&dest, &r.ObjectType, &r.Size, &errMsg, &r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		r.Destination = dest.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}

	return records, rows.Err()
}
